package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"/":                    "/",
		"/books":               "/books",
		"/books/42":            "/books/:id",
		"/books/42/borrow":     "/books/:id/borrow",
		"/books/42/return":     "/books/:id/return",
		"/authors/abc-def":     "/authors/:id",
		"/users/7":             "/users/:id",
		"/healthz":             "/healthz",
		"/metrics":             "/metrics",
		"/unknown/deep/nested": "/unknown",
	}
	for raw, want := range cases {
		if got := canonicalPath(raw); got != want {
			t.Errorf("canonicalPath(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestInstrumentHandler(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	wrapped := InstrumentHandler(inner)

	req := httptest.NewRequest(http.MethodGet, "/books/1", nil)
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)
	if rec.Code != http.StatusTeapot {
		t.Fatalf("wrapper must pass the inner status through, got %d", rec.Code)
	}

	RecordLoanTransition("borrow", nil)
	RecordLoanTransition("return", http.ErrAbortHandler)

	metricsReq := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	metricsRec := httptest.NewRecorder()
	Handler().ServeHTTP(metricsRec, metricsReq)

	body := metricsRec.Body.String()
	for _, series := range []string{
		"library_http_requests_total",
		"library_loans_transitions_total",
	} {
		if !strings.Contains(body, series) {
			t.Fatalf("expected %s in metrics output", series)
		}
	}
}
