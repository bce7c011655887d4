package mysql

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/alexgridx/notification-sequencer/listener"
)

var _ listener.Store = (*Checkpoint)(nil)

func TestOpen_InvalidDSN(t *testing.T) {
	if _, err := Open("app", "checkpoints", "not a dsn"); err == nil {
		t.Fatalf("open expected error for invalid dsn")
	}
}

func TestCheckpoint_GetCheckpoint(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock error: %v", err)
	}
	defer db.Close()

	ck, err := New("app", "checkpoints", db)
	if err != nil {
		t.Fatalf("new checkpoint error: %v", err)
	}

	query := regexp.QuoteMeta("SELECT sequence_number FROM `checkpoints` WHERE checkpoint_key = ?")
	mock.ExpectQuery(query).
		WithArgs("app:checkpoint:stream:shard-0").
		WillReturnRows(sqlmock.NewRows([]string{"sequence_number"}).AddRow("42"))
	mock.ExpectQuery(query).
		WithArgs("app:checkpoint:stream:shard-1").
		WillReturnError(sql.ErrNoRows)

	seq, err := ck.GetCheckpoint(context.Background(), "stream", "shard-0")
	if err != nil {
		t.Fatalf("get checkpoint error: %v", err)
	}
	if seq != "42" {
		t.Errorf("expected 42, got %q", seq)
	}

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

func TestCheckpoint_SetCheckpoint(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock error: %v", err)
	}
	defer db.Close()

	ck, err := New("app", "checkpoints", db)
	if err != nil {
		t.Fatalf("new checkpoint error: %v", err)
	}

	if err := ck.SetCheckpoint(context.Background(), "stream", "shard-0", ""); err == nil {
		t.Errorf("expected error for empty sequence number")
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `checkpoints` (sequence_number, checkpoint_key) VALUES (?, ?)")).
		WithArgs("7", "app:checkpoint:stream:shard-0").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := ck.SetCheckpoint(context.Background(), "stream", "shard-0", "7"); err != nil {
		t.Fatalf("set checkpoint error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
