package testutil

import (
	"encoding/json"
	"time"

	"github.com/hupe1980/autopm/core"
)

// EventBuilder provides a fluent helper for constructing webhook events in tests.
// Example:
//
//	ev := NewEventBuilder("issue-1").AssignedTo("bot").Build()
//
// Chain only the parts you need; sensible defaults are applied.
type EventBuilder struct {
	ev core.IssueEvent
}

// NewEventBuilder creates an issue update event for the given issue id.
func NewEventBuilder(issueID string) *EventBuilder {
	return &EventBuilder{ev: core.IssueEvent{
		Action:      core.ActionUpdate,
		Type:        core.EntityIssue,
		Data:        core.IssueData{ID: issueID, Title: "Test issue"},
		UpdatedFrom: map[string]json.RawMessage{},
		CreatedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		WebhookID:   "webhook-test",
	}}
}

// Action overrides the event action (chainable).
func (b *EventBuilder) Action(a string) *EventBuilder { b.ev.Action = a; return b }

// Type overrides the entity type (chainable).
func (b *EventBuilder) Type(t string) *EventBuilder { b.ev.Type = t; return b }

// Title sets the snapshot title (chainable).
func (b *EventBuilder) Title(t string) *EventBuilder { b.ev.Data.Title = t; return b }

// AssignedTo sets the new assignee and marks assigneeId as changed (chainable).
func (b *EventBuilder) AssignedTo(userID string) *EventBuilder {
	b.ev.Data.AssigneeID = userID
	b.ev.UpdatedFrom[core.FieldAssigneeID] = json.RawMessage(`null`)
	return b
}

// MovedTo sets the new workflow state by name and marks stateId as changed (chainable).
func (b *EventBuilder) MovedTo(stateName string) *EventBuilder {
	b.ev.Data.StateID = "state-" + stateName
	b.ev.Data.State = &core.EventState{ID: b.ev.Data.StateID, Name: stateName}
	b.ev.UpdatedFrom[core.FieldStateID] = json.RawMessage(`"state-previous"`)
	return b
}

// InState sets the snapshot's state without marking it as changed (chainable).
func (b *EventBuilder) InState(stateName string) *EventBuilder {
	b.ev.Data.StateID = "state-" + stateName
	b.ev.Data.State = &core.EventState{ID: b.ev.Data.StateID, Name: stateName}
	return b
}

// Changed marks an arbitrary field as changed (chainable).
func (b *EventBuilder) Changed(field string) *EventBuilder {
	b.ev.UpdatedFrom[field] = json.RawMessage(`null`)
	return b
}

// Build returns the constructed event.
func (b *EventBuilder) Build() core.IssueEvent { return b.ev }

// JSON returns the event encoded as a webhook body.
func (b *EventBuilder) JSON() []byte {
	data, err := json.Marshal(b.ev)
	if err != nil {
		panic(err)
	}
	return data
}
