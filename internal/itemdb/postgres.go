// Copyright 2025 James Ross
package itemdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/coppersystems/pipelined/internal/jobctx"
	"github.com/coppersystems/pipelined/internal/piper"
)

// PostgresClient applies a job's transaction to a Postgres-backed item
// table in one SQL transaction: every staged Action either all commit or
// none do, matching the engine's "only on full job success" contract.
type PostgresClient struct {
	db *sql.DB
}

// NewPostgresClient wraps an already-open connection pool. The caller is
// responsible for having run the schema migration that creates the `items`
// table this client writes to.
func NewPostgresClient(db *sql.DB) *PostgresClient {
	return &PostgresClient{db: db}
}

func (c *PostgresClient) ApplyTransaction(ctx context.Context, tx *jobctx.Transaction) error {
	actions := tx.Actions()
	if len(actions) == 0 {
		return nil
	}

	sqlTx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return &ApplyTransactionError{Kind: ErrDB, Message: "begin transaction", Cause: err}
	}
	defer sqlTx.Rollback()

	createdItemIDs := make([]int64, len(actions))

	for i, action := range actions {
		switch action.Kind {
		case jobctx.ActionAddItem:
			attrs, err := resolveReferences(action.Attrs, createdItemIDs, i)
			if err != nil {
				return err
			}
			payload, err := json.Marshal(attrs)
			if err != nil {
				return &ApplyTransactionError{Kind: ErrAddItem, ActionIdx: i, Message: "marshal attrs", Cause: err}
			}
			var itemID int64
			err = sqlTx.QueryRowContext(ctx,
				`INSERT INTO items (class_id, attrs) VALUES ($1, $2) RETURNING item_id`,
				action.ClassID, payload,
			).Scan(&itemID)
			if err != nil {
				return &ApplyTransactionError{Kind: ErrAddItem, ActionIdx: i, Message: "insert item", Cause: err}
			}
			createdItemIDs[i] = itemID
		default:
			return &ApplyTransactionError{Kind: ErrReferencedBadAction, ActionIdx: i, Message: "unknown action kind"}
		}
	}

	if err := sqlTx.Commit(); err != nil {
		return &ApplyTransactionError{Kind: ErrDB, Message: "commit transaction", Cause: err}
	}
	return nil
}

// resolveReferences rewrites any PipeData Reference whose ClassID is 0 and
// item id is negative into a reference to the item created by an earlier
// action in this same transaction, per jobctx.Action's documented
// convention (NewReference(0, -1-i)).
func resolveReferences(attrs map[string]piper.PipeData, created []int64, currentIdx int) (map[string]piper.PipeData, error) {
	out := make(map[string]piper.PipeData, len(attrs))
	for name, v := range attrs {
		classID, itemID, isRef := v.Reference()
		if isRef && classID == 0 && itemID < 0 {
			refIdx := -1 - int(itemID)
			if refIdx < 0 || refIdx >= currentIdx {
				return nil, &ApplyTransactionError{
					Kind:      ErrReferencedBadAction,
					ActionIdx: currentIdx,
					Message:   fmt.Sprintf("attribute %q references action %d, which has not run yet", name, refIdx),
				}
			}
			if created[refIdx] == 0 {
				return nil, &ApplyTransactionError{
					Kind:      ErrReferencedNoneResult,
					ActionIdx: currentIdx,
					Message:   fmt.Sprintf("attribute %q references action %d, which produced no item", name, refIdx),
				}
			}
			out[name] = piper.NewReference(0, created[refIdx])
			continue
		}
		out[name] = v
	}
	return out, nil
}
