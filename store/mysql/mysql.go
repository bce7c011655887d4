// Package mysql stores listener checkpoints in a MySQL table:
//
//	CREATE TABLE checkpoints (
//	    checkpoint_key  VARCHAR(255) NOT NULL PRIMARY KEY,
//	    sequence_number VARCHAR(128) NOT NULL
//	);
//
// Unlike the buffered stores, every SetCheckpoint is written through.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
)

const (
	selectStatement = "SELECT sequence_number FROM %s WHERE checkpoint_key = ?"
	upsertStatement = "INSERT INTO %s (sequence_number, checkpoint_key) VALUES (?, ?) ON DUPLICATE KEY UPDATE sequence_number = VALUES(sequence_number)"
)

// Open connects to MySQL with a go-sql-driver DSN.
func Open(appName, tableName, dsn string) (*Checkpoint, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parse mysql dsn")
	}
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "mysql connector")
	}
	return New(appName, tableName, sql.OpenDB(connector))
}

// New returns a checkpoint using an existing connection pool.
func New(appName, tableName string, db *sql.DB) (*Checkpoint, error) {
	if appName == "" {
		return nil, errors.New("must provide app name")
	}
	if tableName == "" {
		return nil, errors.New("must provide table name")
	}

	table := quoteIdentifier(tableName)
	return &Checkpoint{
		appName: appName,
		db:      db,
		get:     fmt.Sprintf(selectStatement, table),
		upsert:  fmt.Sprintf(upsertStatement, table),
	}, nil
}

// Checkpoint stores and retrieves the last sequence number read from a shard
type Checkpoint struct {
	appName string
	db      *sql.DB
	get     string
	upsert  string
}

// GetCheckpoint returns the last sequence number of a shard, or "" when the
// shard has no checkpoint yet.
func (c *Checkpoint) GetCheckpoint(ctx context.Context, streamName, shardID string) (string, error) {
	var val string
	err := c.db.QueryRowContext(ctx, c.get, c.key(streamName, shardID)).Scan(&val)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "get checkpoint")
	}
	return val, nil
}

// SetCheckpoint stores a checkpoint for a shard (e.g. sequence number of last record processed by application).
// Upon failover, record processing is resumed from this point.
func (c *Checkpoint) SetCheckpoint(ctx context.Context, streamName, shardID, sequenceNumber string) error {
	if sequenceNumber == "" {
		return errors.New("sequence number should not be empty")
	}
	if _, err := c.db.ExecContext(ctx, c.upsert, sequenceNumber, c.key(streamName, shardID)); err != nil {
		return errors.Wrap(err, "set checkpoint")
	}
	return nil
}

// Close closes the connection pool.
func (c *Checkpoint) Close() error {
	return c.db.Close()
}

// key generates a unique key for storage of Checkpoint.
func (c *Checkpoint) key(streamName, shardID string) string {
	return fmt.Sprintf("%v:checkpoint:%v:%v", c.appName, streamName, shardID)
}

func quoteIdentifier(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = "`" + strings.ReplaceAll(p, "`", "``") + "`"
	}
	return strings.Join(parts, ".")
}
