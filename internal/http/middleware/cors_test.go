package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	cases := []struct {
		name        string
		allowed     []string
		method      string
		origin      string
		preflight   bool
		wantOrigin  string
		wantStatus  int
		wantHandled bool
	}{
		{name: "listed origin", allowed: []string{"https://iqstrade.com"}, method: http.MethodPost, origin: "https://iqstrade.com", wantOrigin: "https://iqstrade.com", wantStatus: http.StatusOK, wantHandled: true},
		{name: "unknown origin", allowed: []string{"https://iqstrade.com"}, method: http.MethodPost, origin: "https://evil.example", wantStatus: http.StatusOK, wantHandled: true},
		{name: "wildcard", allowed: []string{" * "}, method: http.MethodGet, origin: "https://any.example", wantOrigin: "https://any.example", wantStatus: http.StatusOK, wantHandled: true},
		{name: "preflight", allowed: []string{"https://iqstrade.com"}, method: http.MethodOptions, origin: "https://iqstrade.com", preflight: true, wantOrigin: "https://iqstrade.com", wantStatus: http.StatusNoContent},
		{name: "disabled", allowed: nil, method: http.MethodGet, origin: "https://iqstrade.com", wantStatus: http.StatusOK, wantHandled: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handled := false
			handler := CORS(tc.allowed)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handled = true
				w.WriteHeader(http.StatusOK)
			}))
			req := httptest.NewRequest(tc.method, "/chat/message", nil)
			req.Header.Set("Origin", tc.origin)
			if tc.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, rec.Code)
			}
			if handled != tc.wantHandled {
				t.Fatalf("expected handled=%v, got %v", tc.wantHandled, handled)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tc.wantOrigin {
				t.Fatalf("expected allow origin %q, got %q", tc.wantOrigin, got)
			}
			if tc.wantOrigin != "" && rec.Header().Get("Access-Control-Allow-Methods") == "" {
				t.Fatalf("expected allow methods header")
			}
		})
	}
}
