package transparency

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cultivarhq/go-moderation-backend/internal/config"
)

func testSubmission() Submission {
	return Submission{
		StatementID:    "sor-1",
		DecisionGround: "terms_of_service",
		Facts:          "spam content",
		Action:         "quarantine",
		ContentType:    "post",
		DecidedAt:      "2026-01-02T15:04:05Z",
	}
}

func TestClient_Submit(t *testing.T) {
	var gotKey, gotAuth string
	var gotBody Submission
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"uuid":"tdb-abc"}`))
	}))
	defer srv.Close()

	c := NewClient(config.TransparencyConfig{
		Endpoint: srv.URL,
		APIKey:   "secret-key",
		Timeout:  5 * time.Second,
	})

	id, err := c.Submit(context.Background(), "sor:sor-1", testSubmission())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if id != "tdb-abc" {
		t.Fatalf("correlation id = %q", id)
	}
	if gotKey != "sor:sor-1" || gotAuth != "Bearer secret-key" {
		t.Fatalf("headers = %q / %q", gotKey, gotAuth)
	}
	if gotBody.StatementID != "sor-1" || gotBody.Action != "quarantine" {
		t.Fatalf("payload = %+v", gotBody)
	}
}

func TestClient_Submit_Disabled(t *testing.T) {
	c := NewClient(config.TransparencyConfig{})
	if _, err := c.Submit(context.Background(), "k", testSubmission()); !errors.Is(err, ErrDisabled) {
		t.Fatalf("got %v, want ErrDisabled", err)
	}
}

func TestClient_Submit_RetriesTransientFailure(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"uuid":"tdb-retry"}`))
	}))
	defer srv.Close()

	c := NewClient(config.TransparencyConfig{Endpoint: srv.URL, Timeout: 5 * time.Second})
	c.http.RetryWaitMin = time.Millisecond
	c.http.RetryWaitMax = 2 * time.Millisecond

	id, err := c.Submit(context.Background(), "k", testSubmission())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if id != "tdb-retry" || calls != 2 {
		t.Fatalf("id=%q calls=%d", id, calls)
	}
}

func TestClient_Submit_NonRetryableStatus(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewClient(config.TransparencyConfig{Endpoint: srv.URL, Timeout: 5 * time.Second})
	_, err := c.Submit(context.Background(), "k", testSubmission())
	if err == nil || !strings.Contains(err.Error(), "422") {
		t.Fatalf("got %v, want status error", err)
	}
	// Schema rejections must not burn the retry budget.
	if calls != 1 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestClient_Submit_MissingUUID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(config.TransparencyConfig{Endpoint: srv.URL, Timeout: 5 * time.Second})
	if _, err := c.Submit(context.Background(), "k", testSubmission()); err == nil {
		t.Fatal("empty uuid accepted")
	}
}
