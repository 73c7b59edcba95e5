package slackapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDownloadSendsBearerAndReadsBody(t *testing.T) {
	t.Parallel()

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte("mail bytes"))
	}))
	defer srv.Close()

	c := New(nil, "xoxb-test")
	data, err := c.Download(context.Background(), srv.URL, 1024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "mail bytes" {
		t.Fatalf("unexpected body: %q", data)
	}
	if gotAuth != "Bearer xoxb-test" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
}

func TestDownloadRejectsDeclaredOversize(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Content-Length announces more than the ceiling up front.
		body := strings.Repeat("x", 2048)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	c := New(nil, "xoxb-test")
	_, err := c.Download(context.Background(), srv.URL, 100)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestDownloadRejectsStreamedOversize(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Transfer-Encoding", "chunked")
		flusher := w.(http.Flusher)
		for i := 0; i < 10; i++ {
			_, _ = w.Write([]byte(strings.Repeat("y", 100)))
			flusher.Flush()
		}
	}))
	defer srv.Close()

	c := New(nil, "xoxb-test")
	_, err := c.Download(context.Background(), srv.URL, 500)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestDownloadNonOKStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := New(nil, "xoxb-test")
	if _, err := c.Download(context.Background(), srv.URL, 1024); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}
