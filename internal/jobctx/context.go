// Copyright 2025 James Ross
package jobctx

import (
	"context"

	"github.com/coppersystems/pipelined/internal/objectstore"
	"github.com/coppersystems/pipelined/internal/piper"
)

// Context is the facade nodes execute against. The runner builds exactly
// one per job and passes it to every node's ProcessSignal/Run calls as the
// ctx interface{} argument (node.Node is deliberately decoupled from this
// package's concrete type).
type Context struct {
	// Ctx carries cancellation for the job's duration; nodes performing
	// blocking I/O (object-store reads, item-db writes) should pass it
	// through rather than context.Background().
	Ctx context.Context

	JobID   string
	OwnedBy int64

	BlobFragmentSize      int
	StreamChannelCapacity int

	ObjectStore objectstore.Client
	ItemDB      ItemDBClient

	inputs map[string]piper.PipeData

	transaction *Transaction
}

// ItemDBClient is the item-database surface a Context carries. It has the
// same method set as itemdb.Client and is declared here because package
// itemdb imports this package for Transaction.
type ItemDBClient interface {
	ApplyTransaction(ctx context.Context, tx *Transaction) error
}

// New builds a per-job Context. inputs is the job's declared input map,
// keyed by Input-node id.
func New(ctx context.Context, jobID string, ownedBy int64, inputs map[string]piper.PipeData, objStore objectstore.Client, db ItemDBClient, blobFragmentSize, streamChannelCapacity int) *Context {
	return &Context{
		Ctx:                   ctx,
		JobID:                 jobID,
		OwnedBy:               ownedBy,
		BlobFragmentSize:      blobFragmentSize,
		StreamChannelCapacity: streamChannelCapacity,
		ObjectStore:           objStore,
		ItemDB:                db,
		inputs:                inputs,
		transaction:           &Transaction{},
	}
}

// Inputs returns the job's declared input values, keyed by Input-node id.
func (c *Context) Inputs() map[string]piper.PipeData { return c.inputs }

// Transaction returns the job's accumulated mutation log.
func (c *Context) Transaction() *Transaction { return c.transaction }
