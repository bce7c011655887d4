// Package mysql emits drained notifications into a MySQL table:
//
//	CREATE TABLE notifications (
//	    id         BIGINT AUTO_INCREMENT PRIMARY KEY,
//	    process_id VARCHAR(255) NOT NULL,
//	    state      VARCHAR(16) NOT NULL,
//	    data       JSON NULL
//	);
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"

	sequencer "github.com/alexgridx/notification-sequencer"
)

const insertStatement = "INSERT INTO %s (process_id, state, data) VALUES (?, ?, ?)"

// Open connects to MySQL with a go-sql-driver DSN.
func Open(dsn, tableName string) (*Emitter, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parse mysql dsn")
	}
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "mysql connector")
	}
	return New(sql.OpenDB(connector), tableName)
}

// New returns an emitter using an existing connection pool.
func New(db *sql.DB, tableName string) (*Emitter, error) {
	if tableName == "" {
		return nil, errors.New("must provide table name")
	}
	return &Emitter{
		db:     db,
		insert: fmt.Sprintf(insertStatement, quoteIdentifier(tableName)),
	}, nil
}

// Emitter inserts notifications into a MySQL table.
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
		var data interface{}
		if len(n.Data) > 0 {
			data = string(n.Data)
		}
		if _, err := tx.ExecContext(ctx, e.insert, processID, n.State.String(), data); err != nil {
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

// quoteIdentifier quotes each part of a possibly schema qualified name.
func quoteIdentifier(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = "`" + strings.ReplaceAll(p, "`", "``") + "`"
	}
	return strings.Join(parts, ".")
}
