// FloorSync - Multi-Tenant Restaurant Floor Coordination
// Copyright 2026 Mohammed Siddiqui (mohammedsiddiqui6872)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mohammedsiddiqui6872/backend-sub009

package services

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

// mockServer implements HTTPServer for tests.
type mockServer struct {
	listenErr  error
	blockCh    chan struct{}
	shutdowns  atomic.Int32
	shutdownEr error
}

func (m *mockServer) ListenAndServe() error {
	if m.listenErr != nil {
		return m.listenErr
	}
	<-m.blockCh
	return http.ErrServerClosed
}

func (m *mockServer) Shutdown(context.Context) error {
	m.shutdowns.Add(1)
	close(m.blockCh)
	return m.shutdownEr
}

func TestHTTPServiceGracefulShutdown(t *testing.T) {
	srv := &mockServer{blockCh: make(chan struct{})}
	svc := NewHTTPService(srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled on graceful shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	if srv.shutdowns.Load() != 1 {
		t.Errorf("Expected exactly one Shutdown call, got %d", srv.shutdowns.Load())
	}
}

func TestHTTPServiceStartupFailure(t *testing.T) {
	srv := &mockServer{listenErr: errors.New("port in use")}
	svc := NewHTTPService(srv, time.Second)

	err := svc.Serve(context.Background())
	if err == nil || !errors.Is(errors.Unwrap(err), srv.listenErr) {
		t.Errorf("Expected wrapped listen error, got %v", err)
	}
}

func TestHTTPServiceString(t *testing.T) {
	svc := NewHTTPService(&mockServer{blockCh: make(chan struct{})}, 0)
	if svc.String() != "http-server" {
		t.Errorf("Unexpected service name %q", svc.String())
	}
}

type stubHub struct {
	ran atomic.Bool
}

func (s *stubHub) RunWithContext(ctx context.Context) error {
	s.ran.Store(true)
	<-ctx.Done()
	return ctx.Err()
}

func TestHubServiceDelegates(t *testing.T) {
	hub := &stubHub{}
	svc := NewHubService(hub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	if !hub.ran.Load() {
		t.Error("Expected hub RunWithContext to be invoked")
	}
	if svc.String() != "event-bus-hub" {
		t.Errorf("Unexpected service name %q", svc.String())
	}
}
