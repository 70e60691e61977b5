package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/wolfman30/bl-concierge/internal/activity"
	"github.com/wolfman30/bl-concierge/pkg/logging"
)

type stubActivity struct {
	limit   int
	entries []activity.Entry
	err     error
}

func (s *stubActivity) Recent(_ context.Context, _ string, limit int) ([]activity.Entry, error) {
	s.limit = limit
	return s.entries, s.err
}

func TestAdminActivityHandler_ListActivityFromPostgres(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM chat_activity")).
		WithArgs("85290001111", 5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "kind", "sender", "question", "reply", "classification", "bl_numbers", "created_at"}).
			AddRow("a1", "AI_REPLY", "85290001111", "where is NYC220", "In transit", "shipment_status", "{NYC220}", created))

	h := NewAdminActivityHandler(activity.NewPostgresRecorder(db), logging.Discard())
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/admin/activity/85290001111?limit=5", nil), "sender", "85290001111")
	rec := httptest.NewRecorder()
	h.ListActivity(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Entries []activity.Entry `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Entries) != 1 || resp.Entries[0].Classification != "shipment_status" {
		t.Fatalf("unexpected entries %+v", resp.Entries)
	}
	if got := resp.Entries[0].Identifiers; len(got) != 1 || got[0] != "NYC220" {
		t.Fatalf("unexpected identifiers %v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAdminActivityHandler_Limits(t *testing.T) {
	stub := &stubActivity{}
	h := NewAdminActivityHandler(stub, logging.Discard())

	rec := httptest.NewRecorder()
	h.ListActivity(rec, withURLParam(httptest.NewRequest(http.MethodGet, "/admin/activity/x?limit=5000", nil), "sender", "x"))
	if rec.Code != http.StatusOK || stub.limit != maxActivityLimit {
		t.Fatalf("expected clamped limit %d, got status=%d limit=%d", maxActivityLimit, rec.Code, stub.limit)
	}
	if rec.Body.String() != "{\"entries\":[],\"sender\":\"x\"}\n" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ListActivity(rec, withURLParam(httptest.NewRequest(http.MethodGet, "/admin/activity/x?limit=zero", nil), "sender", "x"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	stub.err = errors.New("db down")
	rec = httptest.NewRecorder()
	h.ListActivity(rec, withURLParam(httptest.NewRequest(http.MethodGet, "/admin/activity/x", nil), "sender", "x"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
