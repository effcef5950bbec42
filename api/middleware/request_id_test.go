package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/telcobill-backend/api/responses"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
)

func TestRequestIDKeepsWellFormedHeader(t *testing.T) {
	var seen string
	h := RequestID(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = responses.RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set(RequestIDHeader, "lb-7f3a:01")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "lb-7f3a:01" || rec.Header().Get(RequestIDHeader) != "lb-7f3a:01" {
		t.Fatalf("inbound id not propagated: ctx=%q header=%q", seen, rec.Header().Get(RequestIDHeader))
	}
}

func TestRequestIDReplacesMalformedHeader(t *testing.T) {
	for _, bad := range []string{"", "id with spaces", "line\nbreak", strings.Repeat("a", 129)} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
		req.Header.Set(RequestIDHeader, bad)
		rec := httptest.NewRecorder()
		RequestID(nil)(okHandler()).ServeHTTP(rec, req)

		if _, err := uuid.Parse(rec.Header().Get(RequestIDHeader)); err != nil {
			t.Fatalf("%q: expected minted uuid, got %q", bad, rec.Header().Get(RequestIDHeader))
		}
	}
}
