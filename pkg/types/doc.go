// Package types defines the core data structures shared across the task queue.
//
// This package contains:
//   - TaskMessage, the wire record pushed by producers and forwarded by the master
//   - Worker roles, states and status snapshots
package types
