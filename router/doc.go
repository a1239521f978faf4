// Package router decides which registered handler processes a task and
// dispatches to it.
//
// Selection order:
//
//  1. An "Agent:<name>" label naming a registered handler wins outright; the
//     completion service is never consulted.
//  2. Otherwise the model receives a decision prompt (contract, few-shot
//     examples, handler descriptions, the task) and its reply is parsed by
//     DecisionParser.
//  3. Any unusable reply, or a failed completion call, falls back to the
//     configured default handler.
//
// Model output is untrusted: DecisionParser.Parse is total and never fails.
package router
