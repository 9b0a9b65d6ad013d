package broker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aeris-platform/aeris/internal/core/model"
)

func TestResolveBearerToken_PrefersConfiguredToken(t *testing.T) {
	c := New("http://example.invalid", Credentials{BearerToken: "configured"}, Options{})
	tok, err := c.ResolveBearerToken(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if tok != "configured" {
		t.Fatalf("token = %q, want %q", tok, "configured")
	}
}

func TestResolveBearerToken_PrefersExistingTokenOverMinting(t *testing.T) {
	minted := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/users/tokens":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[{"access_token":"existing"}]`))
		case r.Method == http.MethodPost && r.URL.Path == "/api/users/token":
			minted = true
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token":"minted"}`))
		}
	}))
	defer srv.Close()

	c := New(srv.URL, Credentials{BasicUser: "u", BasicPass: "p"}, Options{})
	tok, err := c.ResolveBearerToken(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if tok != "existing" {
		t.Fatalf("token = %q, want %q (existing preferred over minted)", tok, "existing")
	}
	if minted {
		t.Fatal("should not have minted a new token when an existing one was available")
	}
}

func TestResolveBearerToken_MintsWhenNoExistingToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/users/tokens":
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPost && r.URL.Path == "/api/users/token":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token":"minted"}`))
		}
	}))
	defer srv.Close()

	c := New(srv.URL, Credentials{BasicUser: "u", BasicPass: "p"}, Options{})
	tok, err := c.ResolveBearerToken(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if tok != "minted" {
		t.Fatalf("token = %q, want %q", tok, "minted")
	}
}

func TestSubmit_SyncBinaryResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/tiff")
		w.Write([]byte("fake-tiff-bytes"))
	}))
	defer srv.Close()

	c := New(srv.URL, Credentials{}, Options{})
	out, err := c.Submit(context.Background(), model.GasNO2, srv.URL+"/coverage", "")
	if err != nil {
		t.Fatal(err)
	}
	if string(out.SyncBody) != "fake-tiff-bytes" {
		t.Fatalf("sync body = %q", out.SyncBody)
	}
}

func TestSubmit_RedirectToJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/jobs/abc123")
		w.WriteHeader(http.StatusFound)
	}))
	defer srv.Close()

	c := New(srv.URL, Credentials{}, Options{})
	out, err := c.Submit(context.Background(), model.GasNO2, srv.URL+"/coverage", "")
	if err != nil {
		t.Fatal(err)
	}
	if out.JobURL != srv.URL+"/jobs/abc123" {
		t.Fatalf("job url = %q", out.JobURL)
	}
}

func TestSubmit_JSONJobID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jobID":"xyz"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, Credentials{}, Options{})
	out, err := c.Submit(context.Background(), model.GasNO2, srv.URL+"/coverage", "")
	if err != nil {
		t.Fatal(err)
	}
	if out.JobURL != srv.URL+"/jobs/xyz" {
		t.Fatalf("job url = %q", out.JobURL)
	}
}

func TestSubmit_4xxAbortsWithoutRetry(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := New(srv.URL, Credentials{}, Options{})
	_, err := c.Submit(context.Background(), model.GasNO2, srv.URL+"/coverage", "")
	if err == nil {
		t.Fatal("expected error")
	}
	if hits != 1 {
		t.Fatalf("expected exactly 1 request for a non-retryable 4xx, got %d", hits)
	}
}

func TestSubmit_RetriesThenSucceeds(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "image/tiff")
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := New(srv.URL, Credentials{}, Options{RetryBase: 10 * time.Millisecond})
	out, err := c.Submit(context.Background(), model.GasNO2, srv.URL+"/coverage", "")
	if err != nil {
		t.Fatal(err)
	}
	if string(out.SyncBody) != "ok" {
		t.Fatalf("body = %q", out.SyncBody)
	}
	if hits != 2 {
		t.Fatalf("expected 2 attempts, got %d", hits)
	}
}

func TestPollJob_SuccessfulDownloadsDataLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/jobs/1":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"successful","links":[{"rel":"data","href":"/download/1"}]}`))
		case "/download/1":
			w.Write([]byte("raster-bytes"))
		}
	}))
	defer srv.Close()

	c := New(srv.URL, Credentials{}, Options{PollInterval: 10 * time.Millisecond, PollTimeout: time.Second})
	data, err := c.PollJob(context.Background(), model.GasNO2, srv.URL+"/jobs/1", "")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "raster-bytes" {
		t.Fatalf("data = %q", data)
	}
}

func TestPollJob_FailedStatusReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"failed","message":"boom"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, Credentials{}, Options{PollInterval: 10 * time.Millisecond, PollTimeout: time.Second})
	_, err := c.PollJob(context.Background(), model.GasNO2, srv.URL+"/jobs/1", "")
	if err == nil {
		t.Fatal("expected error on failed job status")
	}
}

func TestCoverageURL_IncludesSubsetsAndFormat(t *testing.T) {
	c := New("https://harmony.example", Credentials{}, Options{})
	bbox := model.Extent{West: -125, South: 24, East: -66, North: 50}
	start := time.Date(2026, 7, 30, 13, 0, 0, 0, time.UTC)
	end := time.Date(2026, 7, 30, 14, 0, 0, 0, time.UTC)
	u := c.CoverageURL("C123-PROV", "NO2_column", bbox, start, end)

	if !containsAll(u, "ogc-api-coverages", "collections/NO2_column/coverage/rangeset", "format=image%2Ftiff") {
		t.Fatalf("unexpected URL: %s", u)
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !contains(s, sub) {
			return false
		}
	}
	return true
}

func contains(s, sub string) bool {
	return len(s) >= len(sub) && (func() bool {
		for i := 0; i+len(sub) <= len(s); i++ {
			if s[i:i+len(sub)] == sub {
				return true
			}
		}
		return false
	})()
}
