// Package receipt renders, publishes and records payment receipts.
package receipt

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Document is the content of one payment receipt.
type Document struct {
	CustomerName   string
	Identifiers    []string
	PaidAmount     float64
	InvoiceDetails []string
	IssuedAt       time.Time
}

// Filename follows receipt_<ids>_<unix millis>.pdf.
func (d Document) Filename() string {
	return fmt.Sprintf("receipt_%s_%d.pdf", strings.Join(d.Identifiers, "_"), d.IssuedAt.UnixMilli())
}

// Lines returns the receipt body in print order. The title is not included.
func (d Document) Lines() []string {
	lines := []string{
		"Customer: " + d.CustomerName,
		"BL Number(s): " + strings.Join(d.Identifiers, ", "),
		"Paid Amount: $" + FormatAmount(d.PaidAmount),
		"",
		"Invoice Details:",
	}
	lines = append(lines, d.InvoiceDetails...)
	lines = append(lines, "", "Thank you for your payment!")
	return lines
}

// FormatAmount prints a dollar amount without trailing zeros (200, 200.5, 200.01).
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

const (
	title       = "Payment Receipt"
	pageWidth   = 612
	pageHeight  = 792
	margin      = 72
	titleSize   = 18
	bodySize    = 12
	lineSpacing = 16
)

// Render writes d as a single-page PDF using the built-in Helvetica font.
// Lines that do not fit on the page are dropped.
func Render(d Document) []byte {
	var content bytes.Buffer
	titleWidth := float64(len(title)) * titleSize * 0.5
	y := pageHeight - margin
	fmt.Fprintf(&content, "BT /F1 %d Tf %.2f %d Td (%s) Tj ET\n", titleSize, (pageWidth-titleWidth)/2, y, escape(title))
	y -= 2 * lineSpacing
	for _, line := range d.Lines() {
		if y < margin {
			break
		}
		if line != "" {
			fmt.Fprintf(&content, "BT /F1 %d Tf %d %d Td (%s) Tj ET\n", bodySize, margin, y, escape(line))
		}
		y -= lineSpacing
	}

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>", pageWidth, pageHeight),
		fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", content.Len(), content.String()),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var out bytes.Buffer
	out.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = out.Len()
		fmt.Fprintf(&out, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := out.Len()
	fmt.Fprintf(&out, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&out, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&out, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return out.Bytes()
}

// escape quotes PDF string delimiters and replaces runes outside the
// single-byte font with '?'.
func escape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '\\' || r == '(' || r == ')':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r < 0x20 || r > 0x7e:
			b.WriteByte('?')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
