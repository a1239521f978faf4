package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/autopm/core"
)

// ErrLabelNotFound is returned when a label name does not exist in the
// tracker's vocabulary, even after a refresh.
var ErrLabelNotFound = errors.New("label not found")

// LabelCache is a read-mostly cache of the workspace label vocabulary.
// Concurrent deliveries may race on refreshes; staleness is tolerated.
type LabelCache struct {
	client core.TrackerClient

	mu     sync.RWMutex
	byName map[string]core.Label
}

// NewLabelCache returns an empty cache that loads on first Lookup.
func NewLabelCache(client core.TrackerClient) *LabelCache {
	return &LabelCache{client: client}
}

// Lookup resolves a label by name, refreshing the vocabulary once on a miss.
func (c *LabelCache) Lookup(ctx context.Context, name string) (core.Label, error) {
	if l, ok := c.get(name); ok {
		return l, nil
	}
	if err := c.refresh(ctx); err != nil {
		return core.Label{}, err
	}
	if l, ok := c.get(name); ok {
		return l, nil
	}
	return core.Label{}, fmt.Errorf("%w: %q", ErrLabelNotFound, name)
}

// Invalidate drops the cached vocabulary.
func (c *LabelCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byName = nil
}

func (c *LabelCache) get(name string) (core.Label, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	l, ok := c.byName[name]
	return l, ok
}

func (c *LabelCache) refresh(ctx context.Context) error {
	labels, err := c.client.ListLabels(ctx)
	if err != nil {
		return fmt.Errorf("listing labels: %w", err)
	}

	byName := make(map[string]core.Label, len(labels))
	for _, l := range labels {
		byName[l.Name] = l
	}

	c.mu.Lock()
	c.byName = byName
	c.mu.Unlock()
	return nil
}

// Labeler edits task labels as set operations. Edits are sent as deltas
// (added or removed label ids) so the tracker applies them against its
// current set and concurrent edits of different labels never overwrite each
// other. A fresh read skips the write when the edit is already in place, so
// redelivered webhooks never duplicate labels.
type Labeler struct {
	client core.TrackerClient
	cache  *LabelCache
}

// NewLabeler returns a Labeler with its own LabelCache.
func NewLabeler(client core.TrackerClient) *Labeler {
	return &Labeler{client: client, cache: NewLabelCache(client)}
}

// Cache exposes the underlying label cache.
func (l *Labeler) Cache() *LabelCache { return l.cache }

// Add attaches the named label to the task (set union). The returned task
// reflects the tracker after the edit.
func (l *Labeler) Add(ctx context.Context, taskID, name string) (core.Task, error) {
	label, err := l.cache.Lookup(ctx, name)
	if err != nil {
		return core.Task{}, err
	}

	task, err := l.client.GetTask(ctx, taskID)
	if err != nil {
		return core.Task{}, err
	}
	if task.Labels.Has(name) {
		return task, nil
	}

	return l.client.UpdateTask(ctx, taskID, core.TaskUpdate{AddedLabelIDs: []string{label.ID}})
}

// Remove detaches every label with the given name (set difference).
func (l *Labeler) Remove(ctx context.Context, taskID, name string) (core.Task, error) {
	task, err := l.client.GetTask(ctx, taskID)
	if err != nil {
		return core.Task{}, err
	}

	var ids []string
	for _, lb := range task.Labels {
		if lb.Name == name {
			ids = append(ids, lb.ID)
		}
	}
	if len(ids) == 0 {
		return task, nil
	}

	return l.client.UpdateTask(ctx, taskID, core.TaskUpdate{RemovedLabelIDs: ids})
}
