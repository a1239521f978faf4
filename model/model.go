package model

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hupe1980/autopm/core"
)

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "scripted", etc.
}

// Model is the completion capability plus self description.
type Model interface {
	core.TextCompletionService

	// Info returns information about the model implementation.
	Info() Info
}

// ErrNoScriptedReply is returned by ScriptedModel when its reply queue is
// exhausted and no ReplyFunc is set.
var ErrNoScriptedReply = errors.New("scripted model has no reply left")

// Reply is one canned ScriptedModel answer.
type Reply struct {
	Text string
	Err  error
}

// ScriptedModel is a deterministic in‑memory Model useful for tests and
// dry runs. Replies are consumed in order; when the queue is empty ReplyFunc
// is consulted.
type ScriptedModel struct {
	// ReplyFunc answers once the queue is drained. Optional.
	ReplyFunc func(messages []core.Message) (string, error)

	info    Info
	mu      sync.Mutex
	replies []Reply
	calls   [][]core.Message
}

// NewScriptedModel constructs a ScriptedModel answering with texts in order.
func NewScriptedModel(texts ...string) *ScriptedModel {
	m := &ScriptedModel{info: Info{Name: "scripted", Provider: "scripted"}}
	for _, t := range texts {
		m.replies = append(m.replies, Reply{Text: t})
	}
	return m
}

// Enqueue appends a canned reply.
func (m *ScriptedModel) Enqueue(text string) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, Reply{Text: text})
	return m
}

// EnqueueError appends a failing reply.
func (m *ScriptedModel) EnqueueError(err error) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, Reply{Err: err})
	return m
}

// Complete implements core.TextCompletionService.
func (m *ScriptedModel) Complete(ctx context.Context, messages []core.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	m.calls = append(m.calls, append([]core.Message(nil), messages...))
	if len(m.replies) > 0 {
		r := m.replies[0]
		m.replies = m.replies[1:]
		m.mu.Unlock()
		return r.Text, r.Err
	}
	fn := m.ReplyFunc
	m.mu.Unlock()

	if fn == nil {
		return "", ErrNoScriptedReply
	}
	return fn(messages)
}

// Calls returns a copy of every message list received so far.
func (m *ScriptedModel) Calls() [][]core.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]core.Message(nil), m.calls...)
}

// CallCount returns the number of Complete invocations.
func (m *ScriptedModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Info implements Model.
func (m *ScriptedModel) Info() Info { return m.info }

// LatencyRecorder receives one observation per completion call.
// metrics.Recorder satisfies it.
type LatencyRecorder interface {
	ObserveLLMRequest(provider, model string, err error, d time.Duration)
}

type instrumented struct {
	Model
	rec LatencyRecorder
}

// Instrument wraps m so that every Complete call is reported to rec.
func Instrument(m Model, rec LatencyRecorder) Model {
	if rec == nil {
		return m
	}
	return &instrumented{Model: m, rec: rec}
}

func (i *instrumented) Complete(ctx context.Context, messages []core.Message) (string, error) {
	start := time.Now()
	out, err := i.Model.Complete(ctx, messages)
	info := i.Info()
	i.rec.ObserveLLMRequest(info.Provider, info.Name, err, time.Since(start))
	return out, err
}
