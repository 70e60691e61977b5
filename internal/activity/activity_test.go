package activity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/bl-concierge/pkg/logging"
)

func TestPostgresRecorder_Record(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rec := NewPostgresRecorder(db)
	mock.ExpectExec("INSERT INTO chat_activity").
		WithArgs(sqlmock.AnyArg(), "AI_REPLY", "85290001111", "invoice for bl number NYC220", "For BL NYC220: Here's your invoice: inv.pdf", "request_invoice", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = rec.Record(context.Background(), Entry{
		Kind:           KindAIReply,
		Sender:         "85290001111",
		Question:       "invoice for bl number NYC220",
		Reply:          "For BL NYC220: Here's your invoice: inv.pdf",
		Classification: "request_invoice",
		Identifiers:    []string{"NYC220"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecorder_RecordError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO chat_activity").WillReturnError(errors.New("relation does not exist"))

	err = NewPostgresRecorder(db).Record(context.Background(), Entry{Kind: KindIncomingMessage, Sender: "s"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "activity: insert entry")
}

func TestPostgresRecorder_Recent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "kind", "sender", "question", "reply", "classification", "bl_numbers", "created_at"}).
		AddRow("a1", "AI_REPLY", "s1", "ctn for bl number NYC220", "For BL NYC220: CTN number is 9.", "ask_ctn_number", "{NYC220,NYC221}", now).
		AddRow("a0", "INCOMING_MESSAGE", "s1", "hello", nil, nil, "{}", now.Add(-time.Minute))
	mock.ExpectQuery("SELECT id, kind, sender").WithArgs("s1", 20).WillReturnRows(rows)

	entries, err := NewPostgresRecorder(db).Recent(context.Background(), "s1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, KindAIReply, entries[0].Kind)
	assert.Equal(t, []string{"NYC220", "NYC221"}, entries[0].Identifiers)
	assert.Equal(t, "", entries[1].Reply)
	assert.Empty(t, entries[1].Identifiers)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogRecorder(t *testing.T) {
	rec := NewLogRecorder(logging.Discard())
	assert.NoError(t, rec.Record(context.Background(), Entry{Kind: KindAIReply, Sender: "s"}))
}

func TestNewPostgresRecorderPanicsOnNil(t *testing.T) {
	assert.Panics(t, func() { NewPostgresRecorder(nil) })
}
