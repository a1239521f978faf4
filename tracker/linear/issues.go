package linear

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hupe1980/autopm/core"
)

const issueFields = `
    id
    identifier
    title
    description
    priority
    parent { id }
    assignee { id }
    state { id name type }
    labels { nodes { id name } }`

type issueNode struct {
	ID          string        `json:"id"`
	Identifier  string        `json:"identifier"`
	Title       string        `json:"title"`
	Description *string       `json:"description"`
	Priority    float64       `json:"priority"`
	Parent      *idNode       `json:"parent"`
	Assignee    *idNode       `json:"assignee"`
	State       WorkflowState `json:"state"`
	Labels      struct {
		Nodes []core.Label `json:"nodes"`
	} `json:"labels"`
}

type idNode struct {
	ID string `json:"id"`
}

func (n issueNode) toTask() core.Task {
	t := core.Task{
		ID:         n.ID,
		Identifier: n.Identifier,
		Title:      n.Title,
		Priority:   int(n.Priority),
		Labels:     core.Labels(n.Labels.Nodes),
		State:      n.State.lifecycle(),
		StateName:  n.State.Name,
		StateID:    n.State.ID,
	}
	if n.Description != nil {
		t.Description = *n.Description
	}
	if n.Parent != nil {
		t.ParentID = n.Parent.ID
	}
	if n.Assignee != nil {
		t.AssigneeID = n.Assignee.ID
	}
	return t
}

// GetTask fetches a single issue by id or identifier.
func (c *Client) GetTask(ctx context.Context, id string) (core.Task, error) {
	const query = `query Issue($id: String!) {
  issue(id: $id) {` + issueFields + `
  }
}`
	data, err := c.execute(ctx, "issue", query, map[string]any{"id": id})
	if err != nil {
		return core.Task{}, fmt.Errorf("fetching issue %s: %w", id, err)
	}

	var result struct {
		Issue *issueNode `json:"issue"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return core.Task{}, fmt.Errorf("decoding issue: %w", err)
	}
	if result.Issue == nil {
		return core.Task{}, &core.TrackerError{Op: "issue", Messages: []string{fmt.Sprintf("issue %s not found", id)}, Codes: []string{"NOT_FOUND"}}
	}
	return result.Issue.toTask(), nil
}

// UpdateTask applies a partial update and returns the updated issue.
func (c *Client) UpdateTask(ctx context.Context, id string, update core.TaskUpdate) (core.Task, error) {
	input := map[string]any{}
	if update.Title != nil {
		input["title"] = *update.Title
	}
	if update.Description != nil {
		input["description"] = *update.Description
	}
	if update.Priority != nil {
		input["priority"] = *update.Priority
	}
	if update.LabelIDs != nil {
		input["labelIds"] = update.LabelIDs
	}
	if len(update.AddedLabelIDs) > 0 {
		input["addedLabelIds"] = update.AddedLabelIDs
	}
	if len(update.RemovedLabelIDs) > 0 {
		input["removedLabelIds"] = update.RemovedLabelIDs
	}
	if update.ParentID != nil {
		input["parentId"] = nullable(*update.ParentID)
	}
	if update.AssigneeID != nil {
		input["assigneeId"] = nullable(*update.AssigneeID)
	}
	switch {
	case update.StateID != nil:
		input["stateId"] = *update.StateID
	case update.State != nil:
		stateID, err := c.stateID(ctx, *update.State)
		if err != nil {
			return core.Task{}, err
		}
		input["stateId"] = stateID
	}

	return c.updateIssue(ctx, id, input)
}

// AssignTask sets or clears the issue's assignee.
func (c *Client) AssignTask(ctx context.Context, id string, assigneeID *string) error {
	var assignee any
	if assigneeID != nil {
		assignee = nullable(*assigneeID)
	}
	_, err := c.updateIssue(ctx, id, map[string]any{"assigneeId": assignee})
	return err
}

func (c *Client) updateIssue(ctx context.Context, id string, input map[string]any) (core.Task, error) {
	const query = `mutation IssueUpdate($id: String!, $input: IssueUpdateInput!) {
  issueUpdate(id: $id, input: $input) {
    success
    issue {` + issueFields + `
    }
  }
}`
	data, err := c.execute(ctx, "issueUpdate", query, map[string]any{"id": id, "input": input})
	if err != nil {
		return core.Task{}, fmt.Errorf("updating issue %s: %w", id, err)
	}

	var result struct {
		IssueUpdate struct {
			Success bool       `json:"success"`
			Issue   *issueNode `json:"issue"`
		} `json:"issueUpdate"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return core.Task{}, fmt.Errorf("decoding issue update response: %w", err)
	}
	if !result.IssueUpdate.Success || result.IssueUpdate.Issue == nil {
		return core.Task{}, &core.TrackerError{Op: "issueUpdate", Messages: []string{"linear reported issue update as unsuccessful"}}
	}
	return result.IssueUpdate.Issue.toTask(), nil
}

// ListTasks returns issues matching filter. Without a parent filter the
// configured team's issues are listed.
func (c *Client) ListTasks(ctx context.Context, filter core.TaskFilter) ([]core.Task, error) {
	const query = `query Issues($filter: IssueFilter) {
  issues(filter: $filter, first: 250) {
    nodes {` + issueFields + `
    }
  }
}`
	gqlFilter := map[string]any{}
	if filter.ParentID != "" {
		gqlFilter["parent"] = map[string]any{"id": map[string]any{"eq": filter.ParentID}}
	} else if c.teamID != "" {
		gqlFilter["team"] = map[string]any{"id": map[string]any{"eq": c.teamID}}
	}

	data, err := c.execute(ctx, "issues", query, map[string]any{"filter": gqlFilter})
	if err != nil {
		return nil, fmt.Errorf("listing issues: %w", err)
	}

	var result struct {
		Issues struct {
			Nodes []issueNode `json:"nodes"`
		} `json:"issues"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decoding issues: %w", err)
	}

	tasks := make([]core.Task, len(result.Issues.Nodes))
	for i, n := range result.Issues.Nodes {
		tasks[i] = n.toTask()
	}
	return tasks, nil
}

// CreateTask creates an issue in the configured team.
func (c *Client) CreateTask(ctx context.Context, input core.TaskInput) (core.Task, error) {
	const query = `mutation IssueCreate($input: IssueCreateInput!) {
  issueCreate(input: $input) {
    success
    issue {` + issueFields + `
    }
  }
}`
	if c.teamID == "" {
		return core.Task{}, errors.New("creating issue: team id not configured")
	}

	gqlInput := map[string]any{
		"teamId":      c.teamID,
		"title":       input.Title,
		"description": input.Description,
	}
	if input.ParentID != "" {
		gqlInput["parentId"] = input.ParentID
	}
	if input.Priority != 0 {
		gqlInput["priority"] = input.Priority
	}
	if input.State != "" {
		stateID, err := c.stateID(ctx, input.State)
		if err != nil {
			return core.Task{}, err
		}
		gqlInput["stateId"] = stateID
	}

	data, err := c.execute(ctx, "issueCreate", query, map[string]any{"input": gqlInput})
	if err != nil {
		return core.Task{}, fmt.Errorf("creating issue: %w", err)
	}

	var result struct {
		IssueCreate struct {
			Success bool       `json:"success"`
			Issue   *issueNode `json:"issue"`
		} `json:"issueCreate"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return core.Task{}, fmt.Errorf("decoding issue create response: %w", err)
	}
	if !result.IssueCreate.Success || result.IssueCreate.Issue == nil {
		return core.Task{}, &core.TrackerError{Op: "issueCreate", Messages: []string{"linear reported issue creation as unsuccessful"}}
	}
	return result.IssueCreate.Issue.toTask(), nil
}

// ListLabels returns the workspace label vocabulary.
func (c *Client) ListLabels(ctx context.Context) ([]core.Label, error) {
	const query = `query IssueLabels {
  issueLabels(first: 250) {
    nodes { id name }
  }
}`
	data, err := c.execute(ctx, "issueLabels", query, nil)
	if err != nil {
		return nil, fmt.Errorf("listing labels: %w", err)
	}

	var result struct {
		IssueLabels struct {
			Nodes []core.Label `json:"nodes"`
		} `json:"issueLabels"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decoding labels: %w", err)
	}
	return result.IssueLabels.Nodes, nil
}

// nullable maps "" to a GraphQL null.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
