// Package core provides the foundational domain types and interfaces used by
// autopm. It defines the core abstractions for:
//
//   - Tasks (issues mirrored from the tracker) and their lifecycle states
//   - Labels, including orchestration bookkeeping labels and override directives
//   - Routing decisions produced when choosing a handler for a task
//   - Issue webhook events delivered by the tracker
//   - The consumed capabilities: TrackerClient and TextCompletionService
//
// Implementation concerns (GraphQL transport, model providers, HTTP plumbing)
// live in their own packages and depend on the small interfaces declared here.
package core
