package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/alexgridx/notification-sequencer/listener"
)

var _ listener.Store = (*Checkpoint)(nil)

func newCheckpoint(t *testing.T) (*Checkpoint, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ck, err := New("app", "checkpoints", db)
	if err != nil {
		t.Fatalf("new checkpoint error: %v", err)
	}
	return ck, mock
}

func TestNew_Validation(t *testing.T) {
	if _, err := New("", "checkpoints", nil); err == nil {
		t.Errorf("expected error for empty app name")
	}
	if _, err := New("app", "", nil); err == nil {
		t.Errorf("expected error for empty table name")
	}
}

func TestCheckpoint_GetCheckpoint(t *testing.T) {
	ck, mock := newCheckpoint(t)
	query := regexp.QuoteMeta(`SELECT sequence_number FROM "checkpoints" WHERE namespace = $1 AND shard_id = $2`)

	mock.ExpectQuery(query).
		WithArgs("app-stream", "shard-0").
		WillReturnRows(sqlmock.NewRows([]string{"sequence_number"}).AddRow("42"))

	seq, err := ck.GetCheckpoint(context.Background(), "stream", "shard-0")
	if err != nil {
		t.Fatalf("get checkpoint error: %v", err)
	}
	if seq != "42" {
		t.Errorf("expected 42, got %q", seq)
	}

	mock.ExpectQuery(query).
		WithArgs("app-stream", "shard-1").
		WillReturnError(sql.ErrNoRows)

	seq, err = ck.GetCheckpoint(context.Background(), "stream", "shard-1")
	if err != nil {
		t.Fatalf("get checkpoint error: %v", err)
	}
	if seq != "" {
		t.Errorf("expected empty checkpoint, got %q", seq)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCheckpoint_GetCheckpointError(t *testing.T) {
	ck, mock := newCheckpoint(t)

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("connection refused"))

	if _, err := ck.GetCheckpoint(context.Background(), "stream", "shard-0"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestCheckpoint_SetAndShutdown(t *testing.T) {
	ck, mock := newCheckpoint(t)

	if err := ck.SetCheckpoint(context.Background(), "stream", "shard-0", ""); err == nil {
		t.Errorf("expected error for empty sequence number")
	}
	if err := ck.SetCheckpoint(context.Background(), "stream", "shard-0", "7"); err != nil {
		t.Fatalf("set checkpoint error: %v", err)
	}

	// unflushed checkpoints are served from memory
	seq, err := ck.GetCheckpoint(context.Background(), "stream", "shard-0")
	if err != nil {
		t.Fatalf("get checkpoint error: %v", err)
	}
	if seq != "7" {
		t.Errorf("expected 7, got %q", seq)
	}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "checkpoints" (namespace, shard_id, sequence_number) VALUES ($1, $2, $3)`)).
		WithArgs("app-stream", "shard-0", "7").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := ck.Shutdown(); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCheckpoint_ShutdownTwice(t *testing.T) {
	ck, mock := newCheckpoint(t)

	if err := ck.SetCheckpoint(context.Background(), "stream", "shard-0", "7"); err != nil {
		t.Fatalf("set checkpoint error: %v", err)
	}
	mock.ExpectExec("INSERT INTO").WillReturnError(errors.New("connection refused"))

	first := ck.Shutdown()
	if first == nil {
		t.Fatalf("shutdown expected error")
	}
	if second := ck.Shutdown(); second != first {
		t.Fatalf("second shutdown expected %v, got %v", first, second)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
