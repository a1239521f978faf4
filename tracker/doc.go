// Package tracker holds tracker-agnostic helpers built on core.TrackerClient:
// a lazily refreshed cache of the workspace label vocabulary and idempotent
// set-based label editing. Concrete clients live in the linear and inmemory
// sub-packages.
package tracker
