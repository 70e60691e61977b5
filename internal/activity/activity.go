// Package activity keeps an append-only log of what customers asked and what
// the concierge answered.
package activity

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/wolfman30/bl-concierge/pkg/logging"
)

// Kind labels an activity entry.
type Kind string

const (
	KindIncomingMessage Kind = "INCOMING_MESSAGE"
	KindIncomingFile    Kind = "INCOMING_FILE"
	KindAIReply         Kind = "AI_REPLY"
)

// Entry is one activity record.
type Entry struct {
	ID             string    `json:"id"`
	Kind           Kind      `json:"kind"`
	Sender         string    `json:"sender"`
	Question       string    `json:"question,omitempty"`
	Reply          string    `json:"reply,omitempty"`
	Classification string    `json:"classification,omitempty"`
	Identifiers    []string  `json:"bl_numbers,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Recorder persists activity entries.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// PostgresRecorder writes entries to the chat_activity table.
type PostgresRecorder struct {
	db *sql.DB
}

func NewPostgresRecorder(db *sql.DB) *PostgresRecorder {
	if db == nil {
		panic("activity: db cannot be nil")
	}
	return &PostgresRecorder{db: db}
}

func (r *PostgresRecorder) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Identifiers == nil {
		e.Identifiers = []string{}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO chat_activity (
			id, kind, sender, question, reply, classification, bl_numbers, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		e.ID,
		string(e.Kind),
		e.Sender,
		nullString(e.Question),
		nullString(e.Reply),
		nullString(e.Classification),
		pq.Array(e.Identifiers),
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("activity: insert entry: %w", err)
	}
	return nil
}

// Recent returns the newest entries for sender, newest first.
func (r *PostgresRecorder) Recent(ctx context.Context, sender string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, sender, question, reply, classification, bl_numbers, created_at
		FROM chat_activity
		WHERE sender = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, sender, limit)
	if err != nil {
		return nil, fmt.Errorf("activity: query recent: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e               Entry
			kind            string
			question, reply sql.NullString
			classification  sql.NullString
		)
		if err := rows.Scan(&e.ID, &kind, &e.Sender, &question, &reply, &classification, pq.Array(&e.Identifiers), &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("activity: scan entry: %w", err)
		}
		e.Kind = Kind(kind)
		e.Question = question.String
		e.Reply = reply.String
		e.Classification = classification.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("activity: iterate entries: %w", err)
	}
	return entries, nil
}

// LogRecorder writes entries to the structured log. Used when no database is
// configured.
type LogRecorder struct {
	logger *logging.Logger
}

func NewLogRecorder(logger *logging.Logger) *LogRecorder {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogRecorder{logger: logger}
}

func (r *LogRecorder) Record(ctx context.Context, e Entry) error {
	r.logger.Info("activity",
		"kind", string(e.Kind),
		"sender", e.Sender,
		"question", e.Question,
		"reply", e.Reply,
		"classification", e.Classification,
		"bl_numbers", e.Identifiers,
	)
	return nil
}

var (
	_ Recorder = (*PostgresRecorder)(nil)
	_ Recorder = (*LogRecorder)(nil)
)

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
