// FloorSync - Multi-Tenant Restaurant Floor Coordination
// Copyright 2026 Mohammed Siddiqui (mohammedsiddiqui6872)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mohammedsiddiqui6872/backend-sub009

package connmgr

import (
	"io"
	"testing"

	"github.com/goccy/go-json"

	"github.com/mohammedsiddiqui6872/backend-sub009/internal/logging"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

func TestListenerRegistryDispatch(t *testing.T) {
	reg := newListenerRegistry()

	var got []string
	reg.add("assignment:created", func(data json.RawMessage) {
		got = append(got, string(data))
	})

	reg.dispatch("assignment:created", json.RawMessage(`{"id":"a1"}`))
	reg.dispatch("assignment:ended", json.RawMessage(`{"id":"a2"}`))

	if len(got) != 1 {
		t.Fatalf("Expected 1 delivery, got %d", len(got))
	}
	if got[0] != `{"id":"a1"}` {
		t.Errorf("Unexpected payload %q", got[0])
	}
}

func TestListenerRegistryMultipleSubscribers(t *testing.T) {
	reg := newListenerRegistry()

	delivered := 0
	reg.add("session:updated", func(json.RawMessage) { delivered++ })
	reg.add("session:updated", func(json.RawMessage) { delivered++ })

	reg.dispatch("session:updated", nil)

	if delivered != 2 {
		t.Errorf("Expected both subscribers invoked, got %d", delivered)
	}
}

func TestListenerRegistryUnsubscribe(t *testing.T) {
	reg := newListenerRegistry()

	calls := 0
	off := reg.add("table:status-updated", func(json.RawMessage) { calls++ })

	reg.dispatch("table:status-updated", nil)
	off()
	reg.dispatch("table:status-updated", nil)

	if calls != 1 {
		t.Errorf("Expected 1 call after unsubscribe, got %d", calls)
	}
	if reg.count("table:status-updated") != 0 {
		t.Error("Expected event entry pruned after last unsubscribe")
	}

	// Unsubscribing twice is harmless.
	off()
}

func TestListenerRegistryPanicIsolation(t *testing.T) {
	reg := newListenerRegistry()

	reg.add("order:status-updated", func(json.RawMessage) {
		panic("listener bug")
	})
	survived := false
	reg.add("order:status-updated", func(json.RawMessage) { survived = true })

	reg.dispatch("order:status-updated", nil)

	if !survived {
		t.Error("Expected second subscriber to run despite first panicking")
	}
}
