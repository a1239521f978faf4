package linear

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hupe1980/autopm/core"
)

// WorkflowState is one of a team's workflow states.
type WorkflowState struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// typeStates maps Linear's workflow state types onto lifecycle states. Names
// take precedence since "In Review" is a "started" type state.
var typeStates = map[string]core.LifecycleState{
	"backlog":   core.StateBacklog,
	"unstarted": core.StateTodo,
	"started":   core.StateInProgress,
	"completed": core.StateDone,
	"canceled":  core.StateCancelled,
}

func (s WorkflowState) lifecycle() core.LifecycleState {
	if st, ok := core.ParseLifecycleState(s.Name); ok {
		return st
	}
	return typeStates[s.Type]
}

// FetchWorkflowStates returns the workflow states of the configured team.
func (c *Client) FetchWorkflowStates(ctx context.Context) ([]WorkflowState, error) {
	const query = `query TeamStates($teamID: String!) {
  team(id: $teamID) {
    states {
      nodes { id name type }
    }
  }
}`
	if c.teamID == "" {
		return nil, errors.New("fetching workflow states: team id not configured")
	}

	data, err := c.execute(ctx, "team.states", query, map[string]any{"teamID": c.teamID})
	if err != nil {
		return nil, fmt.Errorf("fetching workflow states: %w", err)
	}

	var result struct {
		Team struct {
			States struct {
				Nodes []WorkflowState `json:"nodes"`
			} `json:"states"`
		} `json:"team"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decoding workflow states: %w", err)
	}
	return result.Team.States.Nodes, nil
}

// stateID resolves a lifecycle state to the team's workflow state id. The
// mapping is fetched once and cached for the client's lifetime.
func (c *Client) stateID(ctx context.Context, state core.LifecycleState) (string, error) {
	c.statesMu.Lock()
	defer c.statesMu.Unlock()

	if c.states == nil {
		nodes, err := c.FetchWorkflowStates(ctx)
		if err != nil {
			return "", err
		}
		c.states = mapStates(nodes)
	}

	id, ok := c.states[state]
	if !ok {
		return "", fmt.Errorf("no workflow state for %q in team %s", state, c.teamID)
	}
	return id, nil
}

// mapStates picks one workflow state per lifecycle state: name matches first,
// then type matches for states still unmapped.
func mapStates(nodes []WorkflowState) map[core.LifecycleState]string {
	out := make(map[core.LifecycleState]string, len(core.LifecycleStates))
	for _, n := range nodes {
		if st, ok := core.ParseLifecycleState(n.Name); ok {
			if _, taken := out[st]; !taken {
				out[st] = n.ID
			}
		}
	}
	for _, n := range nodes {
		if st, ok := typeStates[n.Type]; ok {
			if _, taken := out[st]; !taken {
				out[st] = n.ID
			}
		}
	}
	return out
}
