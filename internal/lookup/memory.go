package lookup

import (
	"context"
	"sync"
)

// Record is one bill of lading held by MemoryStore.
type Record struct {
	Identifier      string
	InvoiceFilename string
	UniqueNumber    string
	Status          string
	CustomerName    string
	CTNFee          *float64
	ServiceFee      *float64
	ReceiptURL      string
}

// MemoryStore serves lookups from a fixed record set. Used for local runs
// without a database and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

func NewMemoryStore(records ...Record) *MemoryStore {
	m := &MemoryStore{records: make(map[string]*Record)}
	for _, r := range records {
		rec := r
		m.records[normalizeKey(r.Identifier)] = &rec
	}
	return m
}

var (
	_ Store           = (*MemoryStore)(nil)
	_ ReceiptRecorder = (*MemoryStore)(nil)
)

func (m *MemoryStore) get(id string) (Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[normalizeKey(id)]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

func (m *MemoryStore) ValidIdentifiers(ctx context.Context, ids []string) ([]string, error) {
	var valid []string
	for _, id := range ids {
		if r, ok := m.get(id); ok {
			valid = append(valid, r.Identifier)
		}
	}
	return valid, nil
}

func (m *MemoryStore) InvoiceFilename(ctx context.Context, id string) (string, bool, error) {
	r, ok := m.get(id)
	return r.InvoiceFilename, ok && r.InvoiceFilename != "", nil
}

func (m *MemoryStore) UniqueNumber(ctx context.Context, id string) (string, bool, error) {
	r, ok := m.get(id)
	return r.UniqueNumber, ok && r.UniqueNumber != "", nil
}

func (m *MemoryStore) PaymentStatus(ctx context.Context, id string) (string, bool, error) {
	r, ok := m.get(id)
	return r.Status, ok && r.Status != "", nil
}

func (m *MemoryStore) Fees(ctx context.Context, ids []string) ([]Fees, error) {
	var out []Fees
	for _, id := range ids {
		r, ok := m.get(id)
		if !ok {
			continue
		}
		out = append(out, Fees{
			Identifier:      r.Identifier,
			InvoiceFilename: r.InvoiceFilename,
			CustomerName:    r.CustomerName,
			CTNFee:          r.CTNFee,
			ServiceFee:      r.ServiceFee,
		})
	}
	return out, nil
}

func (m *MemoryStore) RecordReceipt(ctx context.Context, ids []string, receiptURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if r, ok := m.records[normalizeKey(id)]; ok {
			r.Status = ReceiptStatus
			r.ReceiptURL = receiptURL
		}
	}
	return nil
}

// Snapshot returns a copy of the record for id.
func (m *MemoryStore) Snapshot(id string) (Record, bool) {
	return m.get(id)
}
