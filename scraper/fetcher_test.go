package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"donorwall/config"
	"donorwall/httputil"
)

func newTestFetcher(cookie string) *HTTPFetcher {
	cfg := config.HTTPConfig{UserAgent: "test-agent/1.0", Cookie: cookie}
	return NewHTTPFetcher(httputil.NewScrapingClient(cfg), httputil.NewCredentials(cfg))
}

func TestHTTPFetcher_SendsIdentityHeaders(t *testing.T) {
	var gotUA, gotCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotCookie = r.Header.Get("Cookie")
		w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	body, err := newTestFetcher("session=abc").Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if string(body) != "<html></html>" {
		t.Fatalf("unexpected body %q", body)
	}
	if gotUA != "test-agent/1.0" {
		t.Fatalf("expected user agent test-agent/1.0, got %q", gotUA)
	}
	if gotCookie != "session=abc" {
		t.Fatalf("expected cookie session=abc, got %q", gotCookie)
	}
}

func TestHTTPFetcher_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("denied"))
	}))
	defer srv.Close()

	body, err := newTestFetcher("").Fetch(context.Background(), srv.URL)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", se.StatusCode)
	}
	if se.Temporary() {
		t.Fatal("403 should not be temporary")
	}
	if string(body) != "denied" {
		t.Fatalf("expected body to be returned with the error, got %q", body)
	}
}

func TestStatusError_Temporary(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusNotFound, false},
		{http.StatusForbidden, false},
	}
	for _, tt := range tests {
		if got := (&StatusError{StatusCode: tt.code}).Temporary(); got != tt.want {
			t.Fatalf("status %d: expected temporary=%v, got %v", tt.code, tt.want, got)
		}
	}
}

func TestHTTPFetcher_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := newTestFetcher("").Fetch(ctx, srv.URL); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestFetchToFile_OverwritesSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fresh"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "snapshot.html")
	if err := os.WriteFile(path, []byte("stale content that is longer"), 0644); err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}

	if _, err := FetchToFile(context.Background(), newTestFetcher(""), srv.URL, path); err != nil {
		t.Fatalf("fetch to file failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if string(data) != "fresh" {
		t.Fatalf("expected snapshot to be replaced, got %q", data)
	}
}

func TestFetchToFile_SavesBodyOnErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("maintenance"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "snapshot.html")
	_, err := FetchToFile(context.Background(), newTestFetcher(""), srv.URL, path)
	if err == nil {
		t.Fatal("expected error for 503")
	}

	data, rerr := os.ReadFile(path)
	if rerr != nil {
		t.Fatalf("read snapshot: %v", rerr)
	}
	if string(data) != "maintenance" {
		t.Fatalf("expected error body to be saved, got %q", data)
	}
}
