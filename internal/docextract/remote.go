package docextract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/wolfman30/bl-concierge/pkg/logging"
)

const defaultRemoteTimeout = 30 * time.Second

// RemoteExtractor posts the document to an extraction service that answers
// with the Fields JSON.
type RemoteExtractor struct {
	url    string
	client *http.Client
	logger *logging.Logger
}

func NewRemoteExtractor(url string, client *http.Client, logger *logging.Logger) *RemoteExtractor {
	if url == "" {
		panic("docextract: extraction url cannot be empty")
	}
	if client == nil {
		client = &http.Client{Timeout: defaultRemoteTimeout}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RemoteExtractor{url: url, client: client, logger: logger}
}

func (e *RemoteExtractor) Extract(ctx context.Context, doc Document) Fields {
	fields, err := e.post(ctx, doc)
	if err != nil {
		e.logger.Error("remote document extraction failed", "filename", doc.Filename, "error", err)
		return Fields{}
	}
	return fields
}

func (e *RemoteExtractor) post(ctx context.Context, doc Document) (Fields, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	filename := doc.Filename
	if filename == "" {
		filename = "upload"
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return Fields{}, fmt.Errorf("docextract: build form: %w", err)
	}
	if _, err := part.Write(doc.Data); err != nil {
		return Fields{}, fmt.Errorf("docextract: build form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return Fields{}, fmt.Errorf("docextract: build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, &body)
	if err != nil {
		return Fields{}, fmt.Errorf("docextract: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := e.client.Do(req)
	if err != nil {
		return Fields{}, fmt.Errorf("docextract: post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Fields{}, fmt.Errorf("docextract: status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var fields Fields
	if err := json.NewDecoder(resp.Body).Decode(&fields); err != nil {
		return Fields{}, fmt.Errorf("docextract: decode response: %w", err)
	}
	return fields, nil
}
