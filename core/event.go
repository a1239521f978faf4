package core

import (
	"encoding/json"
	"strings"
	"time"
)

// Webhook actions and entity types delivered by the tracker.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionRemove = "remove"

	EntityIssue = "Issue"
)

// Field names that appear in IssueEvent.UpdatedFrom.
const (
	FieldAssigneeID = "assigneeId"
	FieldStateID    = "stateId"
	FieldLabelIDs   = "labelIds"
)

// IssueEvent is the webhook payload for an issue lifecycle event. Data holds
// the entity snapshot after the change; UpdatedFrom maps each changed field to
// its previous value.
type IssueEvent struct {
	Action      string                     `json:"action"`
	Type        string                     `json:"type"`
	Data        IssueData                  `json:"data"`
	UpdatedFrom map[string]json.RawMessage `json:"updatedFrom,omitempty"`
	URL         string                     `json:"url,omitempty"`
	CreatedAt   time.Time                  `json:"createdAt"`
	WebhookID   string                     `json:"webhookId,omitempty"`
}

// IssueData is the issue snapshot carried by an IssueEvent.
type IssueData struct {
	ID          string      `json:"id"`
	Identifier  string      `json:"identifier,omitempty"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Priority    int         `json:"priority,omitempty"`
	AssigneeID  string      `json:"assigneeId,omitempty"`
	StateID     string      `json:"stateId,omitempty"`
	State       *EventState `json:"state,omitempty"`
	Labels      []Label     `json:"labels,omitempty"`
	ParentID    string      `json:"parentId,omitempty"`
}

// EventState is the workflow state embedded in IssueData.
type EventState struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// Changed reports whether the event names field as changed.
func (e IssueEvent) Changed(field string) bool {
	_, ok := e.UpdatedFrom[field]
	return ok
}

// IsIssueUpdate reports whether the event is an update of an issue entity.
func (e IssueEvent) IsIssueUpdate() bool {
	return strings.EqualFold(e.Action, ActionUpdate) && strings.EqualFold(e.Type, EntityIssue)
}

// LifecycleState returns the lifecycle state of the snapshot, resolved from
// the embedded state name and, failing that, its workflow type.
func (d IssueData) LifecycleState() (LifecycleState, bool) {
	if d.State == nil {
		return "", false
	}
	if s, ok := ParseLifecycleState(d.State.Name); ok {
		return s, true
	}
	return ParseLifecycleState(d.State.Type)
}
