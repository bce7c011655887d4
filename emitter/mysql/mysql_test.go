package mysql

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	sequencer "github.com/alexgridx/notification-sequencer"
)

func TestOpen_InvalidDSN(t *testing.T) {
	if _, err := Open("not a dsn", "notifications"); err == nil {
		t.Fatalf("open expected error for invalid dsn")
	}
}

func TestEmitter_Emit(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock error: %v", err)
	}
	defer db.Close()

	e, err := New(db, "app.notifications")
	if err != nil {
		t.Fatalf("new emitter error: %v", err)
	}

	query := regexp.QuoteMeta("INSERT INTO `app`.`notifications` (process_id, state, data) VALUES (?, ?, ?)")
	mock.ExpectBegin()
	mock.ExpectExec(query).
		WithArgs("P", "START2", nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(query).
		WithArgs("P", "FINAL1", `"done"`).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	err = e.Emit(context.Background(), "P", []sequencer.Notification{
		{ProcessID: "P", State: sequencer.Start2},
		{ProcessID: "P", State: sequencer.Final1, Data: []byte(`"done"`)},
	})
	if err != nil {
		t.Fatalf("emit error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEmitter_EmitBeginFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock error: %v", err)
	}
	defer db.Close()

	e, _ := New(db, "notifications")

	boom := errors.New("boom")
	mock.ExpectBegin().WillReturnError(boom)

	err = e.Emit(context.Background(), "P", []sequencer.Notification{{ProcessID: "P", State: sequencer.Start1}})
	if !errors.Is(err, boom) {
		t.Fatalf("emit expected boom, got %v", err)
	}
}

func Test_quoteIdentifier(t *testing.T) {
	testCases := []struct {
		in, want string
	}{
		{in: "notifications", want: "`notifications`"},
		{in: "db.notifications", want: "`db`.`notifications`"},
		{in: "we`ird", want: "`we``ird`"},
	}

	for _, tc := range testCases {
		if got := quoteIdentifier(tc.in); got != tc.want {
			t.Errorf("quoteIdentifier(%q) expected %s, got %s", tc.in, tc.want, got)
		}
	}
}
