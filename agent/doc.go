// Package agent contains the handler registry and the built-in task handlers
// that autopm dispatches issues to.
//
// A handler is a plain function receiving a task and a capability bag. Handlers
// are registered once at startup through an explicit table of Descriptors:
//
//	reg, err := agent.NewRegistry(
//		agent.Descriptor{Name: "GPT4", Description: "Powerful but slower.", Handler: agent.NewCompletionHandler(gpt4)},
//		agent.Descriptor{Name: "issue_creator", Description: "Creates sub-issues.", Handler: agent.NewDecompositionHandler(gpt4)},
//		agent.Descriptor{Name: "GPT35Tools", Description: "Falls back to a calculator.", Handler: agent.NewToolsHandler(gpt35, tools)},
//	)
//
// The registry is immutable after construction and safe for concurrent reads.
// Names double as the token the routing model must echo back verbatim.
//
// Handler results:
//   - a non-empty string is the work product written back to the issue
//   - an empty string means the handler declined the task
//   - an error is a handler failure and triggers rollback upstream
package agent
