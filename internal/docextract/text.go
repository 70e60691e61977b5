package docextract

import (
	"bytes"
	"compress/zlib"
	"io"
	"regexp"
	"strings"
)

const maxInflatedStream = 4 << 20

var (
	streamPattern  = regexp.MustCompile(`(?s)<<(.*?)>>\s*stream\r?\n(.*?)\r?\nendstream`)
	showText       = regexp.MustCompile(`(?s)\(((?:\\.|[^\\)])*)\)\s*Tj|\[((?:\\.|[^\]])*)\]\s*TJ`)
	arrayLiteral   = regexp.MustCompile(`\(((?:\\.|[^\\)])*)\)`)
	octalEscape    = regexp.MustCompile(`\\([0-7]{1,3})`)
	plainTextTypes = []string{"text/", "application/json"}
)

// Text returns the readable text of doc. Plain text is returned as is; PDFs
// yield the strings drawn by their content streams. Other documents, including
// images, have no text.
func Text(doc Document) string {
	ct := strings.ToLower(doc.ContentType)
	for _, prefix := range plainTextTypes {
		if strings.HasPrefix(ct, prefix) {
			return string(doc.Data)
		}
	}
	if ct == "application/pdf" || bytes.HasPrefix(doc.Data, []byte("%PDF-")) {
		return pdfText(doc.Data)
	}
	return ""
}

func pdfText(data []byte) string {
	var lines []string
	for _, m := range streamPattern.FindAllSubmatch(data, -1) {
		dict, body := m[1], m[2]
		if bytes.Contains(dict, []byte("/FlateDecode")) {
			if inflated, err := inflate(body); err == nil {
				body = inflated
			}
		}
		for _, show := range showText.FindAllSubmatch(body, -1) {
			if show[1] != nil {
				lines = append(lines, unescape(string(show[1])))
				continue
			}
			var parts []string
			for _, lit := range arrayLiteral.FindAllSubmatch(show[2], -1) {
				parts = append(parts, unescape(string(lit[1])))
			}
			lines = append(lines, strings.Join(parts, ""))
		}
	}
	return strings.Join(lines, "\n")
}

func inflate(body []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(io.LimitReader(r, maxInflatedStream))
}

func unescape(s string) string {
	s = octalEscape.ReplaceAllStringFunc(s, func(m string) string {
		var v byte
		for _, c := range m[1:] {
			v = v*8 + byte(c-'0')
		}
		return string(rune(v))
	})
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
