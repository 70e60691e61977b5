// Package docextract pulls shipment identifiers and a paid amount out of
// documents customers upload, typically bank transfer receipts.
package docextract

import (
	"context"
	"strings"
)

// Document is an uploaded file. Data is base64 in JSON.
type Document struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// Supported reports whether the document is a PDF or an image.
func (d Document) Supported() bool {
	ct := strings.ToLower(strings.TrimSpace(d.ContentType))
	return ct == "application/pdf" || strings.HasPrefix(ct, "image/")
}

// Fields are the values found in a document.
type Fields struct {
	Identifiers []string `json:"bl_numbers"`
	PaidAmount  *float64 `json:"paid_amount"`
	RawText     string   `json:"raw_text,omitempty"`
}

// Empty reports whether nothing usable was found.
func (f Fields) Empty() bool {
	return len(f.Identifiers) == 0 && f.PaidAmount == nil
}

// Extractor reads fields from a document. Failures yield empty Fields.
type Extractor interface {
	Extract(ctx context.Context, doc Document) Fields
}
