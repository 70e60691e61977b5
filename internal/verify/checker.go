package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// CheckResult is the authority's answer for one email/identifier pair.
type CheckResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Checker asks the back office whether email may see data for identifier.
type Checker interface {
	Check(ctx context.Context, email, identifier string) CheckResult
}

// HTTPChecker calls the back office's sensitive-access endpoint.
type HTTPChecker struct {
	endpoint string
	client   *http.Client
}

// NewHTTPChecker targets {baseURL}/api/verify_sensitive_access.
func NewHTTPChecker(baseURL string, timeout time.Duration) *HTTPChecker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPChecker{
		endpoint: strings.TrimRight(baseURL, "/") + "/api/verify_sensitive_access",
		client:   &http.Client{Timeout: timeout},
	}
}

// Check never returns an error; transport problems become a failed result
// carrying the error text.
func (c *HTTPChecker) Check(ctx context.Context, email, identifier string) CheckResult {
	body, err := json.Marshal(map[string]string{"email": email, "bl_number": identifier})
	if err != nil {
		return CheckResult{Message: err.Error()}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return CheckResult{Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return CheckResult{Message: err.Error()}
	}
	defer resp.Body.Close()

	var result CheckResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return CheckResult{Message: fmt.Sprintf("verification response unreadable: %v", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if result.Message == "" {
			result.Message = "Verification request failed"
		}
		result.Success = false
	}
	return result
}
