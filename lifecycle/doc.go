// Package lifecycle drives issues through the automation state machine in
// response to tracker webhooks.
//
// Two transitions exist and at most one runs per delivery:
//
//   - assigned: the issue was assigned to the automation user. The issue is
//     marked Running and moved to in progress, a handler runs, and the result
//     is written back with the issue moved to review. On decline or failure
//     the prior state is restored. Running is removed and the assignee
//     cleared on every path.
//   - review: the issue moved into review. Sibling and child issues are
//     gathered as evidence, the issue is marked Evaluating, and a completion
//     judgement moves it to done when complete. Evaluating is removed on
//     every path.
//
// All label edits are set operations on a fresh read, so redelivered
// webhooks are harmless.
package lifecycle
