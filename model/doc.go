// Package model defines the provider‑agnostic completion model abstraction
// used by autopm's router, handlers and evaluator.
//
// A Model is a core.TextCompletionService that can also describe itself.
// Providers (OpenAI, Anthropic) live in sub-packages so the engine stays
// decoupled from vendor SDKs. ScriptedModel is a deterministic double for
// tests and dry runs; Instrument wraps any Model with latency metrics.
package model
