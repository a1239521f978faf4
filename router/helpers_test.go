package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/autopm/agent"
	"github.com/hupe1980/autopm/core"
)

// mockCompletion is a testify mock for core.TextCompletionService.
type mockCompletion struct{ mock.Mock }

func (m *mockCompletion) Complete(ctx context.Context, messages []core.Message) (string, error) {
	args := m.Called(ctx, messages)
	return args.String(0), args.Error(1)
}

func staticHandler(out string) agent.Handler {
	return func(context.Context, core.Task, core.Capabilities) (string, error) { return out, nil }
}

// newTestRegistry registers GPT4, GPT35 and issue_creator.
func newTestRegistry(t *testing.T) *agent.Registry {
	t.Helper()
	reg, err := agent.NewRegistry(
		agent.Descriptor{Name: "GPT4", Description: "Uses GPT-4. Powerful but slower.", Handler: staticHandler("gpt4 result")},
		agent.Descriptor{Name: "GPT35", Description: "Uses GPT-3.5. Fast but less powerful.", Handler: staticHandler("gpt35 result")},
		agent.Descriptor{Name: "issue_creator", Description: "Creates new sub-issues for the provided issue.", Handler: staticHandler("created")},
	)
	require.NoError(t, err)
	return reg
}
