package server

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestNormalizeAddr(t *testing.T) {
	cases := map[string]string{
		"":               "",
		"8080":           ":8080",
		":8080":          ":8080",
		"127.0.0.1:8080": "127.0.0.1:8080",
	}
	for in, want := range cases {
		if got := normalizeAddr(in); got != want {
			t.Errorf("normalizeAddr(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewHTTPServerTimeouts(t *testing.T) {
	srv := newHTTPServer(":0", nil, Options{})
	if srv.WriteTimeout != defaultWriteTimeout || srv.ReadHeaderTimeout != readHeaderTimeout {
		t.Fatalf("unexpected defaults: write=%v readHeader=%v", srv.WriteTimeout, srv.ReadHeaderTimeout)
	}
	srv = newHTTPServer(":0", nil, Options{WriteTimeout: 2 * time.Minute})
	if srv.WriteTimeout != 2*time.Minute {
		t.Fatalf("write timeout = %v", srv.WriteTimeout)
	}
}

func TestShutdownBeforeRun(t *testing.T) {
	s := New("127.0.0.1:0", http.NotFoundHandler(), Options{})
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := s.Run(); err != nil {
		t.Fatalf("Run after Shutdown: %v", err)
	}
}

func TestRunStopsOnShutdown(t *testing.T) {
	s := New("127.0.0.1:0", http.NotFoundHandler(), Options{})
	done := make(chan error, 1)
	go func() { done <- s.Run() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	// Shutdown may win the race with ListenAndServe; both paths must end Run cleanly.
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}
