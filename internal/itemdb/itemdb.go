// Copyright 2025 James Ross

// Package itemdb is the narrow interface the engine consumes an external
// item database through: applying one job's accumulated Transaction
// atomically. The database's own dataset/class/attribute/item CRUD surface
// belongs to whatever service owns that schema, not the pipeline engine.
package itemdb

import (
	"context"

	"github.com/coppersystems/pipelined/internal/jobctx"
)

// Client is the engine's entire view of the item database.
type Client interface {
	ApplyTransaction(ctx context.Context, tx *jobctx.Transaction) error
}

// ApplyTransactionErrorKind enumerates the ways applying a transaction can
// fail, mirroring the upstream ApplyTransactionError taxonomy.
type ApplyTransactionErrorKind int

const (
	ErrDB ApplyTransactionErrorKind = iota
	ErrReferencedBadAction
	ErrReferencedNoneResult
	ErrReferencedResultWithBadType
	ErrAddItem
)

// ApplyTransactionError is returned from ApplyTransaction.
type ApplyTransactionError struct {
	Kind       ApplyTransactionErrorKind
	ActionIdx  int
	Message    string
	Cause      error
}

func (e *ApplyTransactionError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ApplyTransactionError) Unwrap() error { return e.Cause }
