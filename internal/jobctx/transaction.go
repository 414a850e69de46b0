// Copyright 2025 James Ross

// Package jobctx implements the per-job Context facade nodes execute
// against: access to the job's declared inputs, shared object-store/item-db
// clients, and the Transaction accumulator nodes append mutations to.
package jobctx

import (
	"sync"

	"github.com/coppersystems/pipelined/internal/piper"
)

// ActionKind enumerates the supported transaction mutations. The engine
// only needs enough surface to let a node stage writes against the item
// database; the database's own class/attribute schema lives entirely on
// the other side of itemdb.Client.
type ActionKind int

const (
	ActionAddItem ActionKind = iota
)

// Action is one staged mutation. References to earlier actions within the
// same transaction are expressed positionally: an Attrs value produced by
// NewReference(0, -1-i) (a negative, out-of-range item id) means "the item
// created by action i of this same transaction," resolved when the
// transaction is applied.
type Action struct {
	Kind    ActionKind
	ClassID int64
	Attrs   map[string]piper.PipeData
}

// Transaction accumulates the mutations a job will apply to the item
// database if and only if every node in the pipeline finishes
// successfully. It is safe for concurrent use since multiple worker-pool
// goroutines may run nodes for the same job concurrently.
type Transaction struct {
	mu      sync.Mutex
	actions []Action
}

// Append adds one action, preserving the order in which nodes call it.
// Order matters: later actions may reference items created by earlier
// ones.
func (t *Transaction) Append(a Action) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.actions = append(t.actions, a)
}

// Actions returns a snapshot of the staged actions in insertion order.
func (t *Transaction) Actions() []Action {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Action, len(t.actions))
	copy(out, t.actions)
	return out
}

// Len reports how many actions are currently staged.
func (t *Transaction) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.actions)
}
