package core

import "strings"

// Bookkeeping labels used purely for orchestration state. They are distinct
// from user facing labels and from override directives.
const (
	LabelRunning    = "Running"
	LabelEvaluating = "Evaluating"
)

// OverridePrefix marks a label as an explicit handler selection directive
// ("Agent:GPT4").
const OverridePrefix = "Agent:"

// Label is a tracker label.
type Label struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// IsOverride reports whether the label carries a handler override directive.
func (l Label) IsOverride() bool {
	return strings.HasPrefix(l.Name, OverridePrefix)
}

// Labels is an order-irrelevant label set. All mutating helpers return new
// slices and behave as set operations keyed by name.
type Labels []Label

// Names returns the label names in collection order.
func (ls Labels) Names() []string {
	names := make([]string, 0, len(ls))
	for _, l := range ls {
		names = append(names, l.Name)
	}
	return names
}

// IDs returns the label ids in collection order, skipping labels without id.
func (ls Labels) IDs() []string {
	ids := make([]string, 0, len(ls))
	for _, l := range ls {
		if l.ID != "" {
			ids = append(ids, l.ID)
		}
	}
	return ids
}

// Has reports whether a label with the given name is present.
func (ls Labels) Has(name string) bool {
	for _, l := range ls {
		if l.Name == name {
			return true
		}
	}
	return false
}

// With returns the set union of ls and l. Adding a label that is already
// present returns an equal set.
func (ls Labels) With(l Label) Labels {
	out := append(Labels(nil), ls...)
	if ls.Has(l.Name) {
		return out
	}
	return append(out, l)
}

// Without returns ls minus every label named name.
func (ls Labels) Without(name string) Labels {
	out := make(Labels, 0, len(ls))
	for _, l := range ls {
		if l.Name != name {
			out = append(out, l)
		}
	}
	return out
}
