// Package postgres emits drained notifications into a Postgres table:
//
//	CREATE TABLE notifications (
//	    id         BIGSERIAL PRIMARY KEY,
//	    process_id TEXT NOT NULL,
//	    state      TEXT NOT NULL,
//	    data       JSONB
//	);
//
// Rows of one batch are inserted in emission order within one transaction,
// so ordering by id gives the protocol order of a process.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	sequencer "github.com/alexgridx/notification-sequencer"
)

const insertStatement = `INSERT INTO %s (process_id, state, data) VALUES ($1, $2, $3)`

// Open connects to Postgres with a lib/pq connection string.
func Open(connectionStr, tableName string) (*Emitter, error) {
	db, err := sql.Open("postgres", connectionStr)
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	return New(db, tableName)
}

// New returns an emitter using an existing connection pool.
func New(db *sql.DB, tableName string) (*Emitter, error) {
	if tableName == "" {
		return nil, errors.New("must provide table name")
	}
	return &Emitter{
		db:     db,
		insert: fmt.Sprintf(insertStatement, pq.QuoteIdentifier(tableName)),
	}, nil
}

// Emitter inserts notifications into a Postgres table.
type Emitter struct {
	db     *sql.DB
	insert string
}

// Emit inserts ns in a single transaction.
func (e *Emitter) Emit(ctx context.Context, processID string, ns []sequencer.Notification) error {
	if len(ns) == 0 {
		return nil
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}

	for _, n := range ns {
		if _, err := tx.ExecContext(ctx, e.insert, processID, n.State.String(), payload(n)); err != nil {
			_ = tx.Rollback()
			return errors.Wrapf(err, "insert %s of process %s", n.State, processID)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

// Close closes the connection pool.
func (e *Emitter) Close() error {
	return e.db.Close()
}

func payload(n sequencer.Notification) interface{} {
	if len(n.Data) == 0 {
		return nil
	}
	return string(n.Data)
}
