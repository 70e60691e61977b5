package lookup

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore reads the bill_of_lading table.
type PostgresStore struct {
	db querier
}

// NewPostgresStore wraps a pgx pool (or anything with the same methods).
func NewPostgresStore(db querier) *PostgresStore {
	if db == nil {
		panic("lookup: db cannot be nil")
	}
	return &PostgresStore{db: db}
}

var (
	_ Store           = (*PostgresStore)(nil)
	_ ReceiptRecorder = (*PostgresStore)(nil)
)

func (s *PostgresStore) ValidIdentifiers(ctx context.Context, ids []string) ([]string, error) {
	keys := normalizeKeys(ids)
	if len(keys) == 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx, `SELECT bl_number FROM bill_of_lading WHERE UPPER(TRIM(bl_number)) = ANY($1)`, keys)
	if err != nil {
		return nil, fmt.Errorf("lookup: validate identifiers: %w", err)
	}
	defer rows.Close()

	var valid []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("lookup: scan identifier: %w", err)
		}
		valid = append(valid, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lookup: validate identifiers: %w", err)
	}
	return valid, nil
}

func (s *PostgresStore) InvoiceFilename(ctx context.Context, id string) (string, bool, error) {
	return s.singleColumn(ctx, "invoice_filename", id)
}

func (s *PostgresStore) UniqueNumber(ctx context.Context, id string) (string, bool, error) {
	return s.singleColumn(ctx, "unique_number", id)
}

func (s *PostgresStore) PaymentStatus(ctx context.Context, id string) (string, bool, error) {
	return s.singleColumn(ctx, "status", id)
}

// singleColumn reads one nullable text column. column is always a constant
// from this file.
func (s *PostgresStore) singleColumn(ctx context.Context, column, id string) (string, bool, error) {
	query := fmt.Sprintf(`SELECT %s FROM bill_of_lading WHERE UPPER(TRIM(bl_number)) = $1 LIMIT 1`, column)
	var value *string
	if err := s.db.QueryRow(ctx, query, normalizeKey(id)).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("lookup: %s for %s: %w", column, id, err)
	}
	if value == nil || *value == "" {
		return "", false, nil
	}
	return *value, true, nil
}

func (s *PostgresStore) Fees(ctx context.Context, ids []string) ([]Fees, error) {
	keys := normalizeKeys(ids)
	if len(keys) == 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx, `
		SELECT bl_number, COALESCE(invoice_filename, ''), COALESCE(customer_name, ''),
		       service_fee::float8, ctn_fee::float8, COALESCE(payment_link, '')
		FROM bill_of_lading
		WHERE UPPER(TRIM(bl_number)) = ANY($1)`, keys)
	if err != nil {
		return nil, fmt.Errorf("lookup: fees: %w", err)
	}
	defer rows.Close()

	var out []Fees
	for rows.Next() {
		var f Fees
		if err := rows.Scan(&f.Identifier, &f.InvoiceFilename, &f.CustomerName, &f.ServiceFee, &f.CTNFee, &f.PaymentLink); err != nil {
			return nil, fmt.Errorf("lookup: scan fees: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lookup: fees: %w", err)
	}
	return out, nil
}

// RecordReceipt attaches the receipt and flips the status for every id in a
// single transaction.
func (s *PostgresStore) RecordReceipt(ctx context.Context, ids []string, receiptURL string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("lookup: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, id := range ids {
		if _, err := tx.Exec(ctx, `
			UPDATE bill_of_lading
			SET receipt_filename = $1, status = $2,
			    receipt_uploaded_at = (CURRENT_TIMESTAMP AT TIME ZONE 'Asia/Hong_Kong')
			WHERE UPPER(TRIM(bl_number)) = $3`, receiptURL, ReceiptStatus, normalizeKey(id)); err != nil {
			return fmt.Errorf("lookup: record receipt for %s: %w", id, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("lookup: commit receipt: %w", err)
	}
	return nil
}
