// FloorSync - Multi-Tenant Restaurant Floor Coordination
// Copyright 2026 Mohammed Siddiqui (mohammedsiddiqui6872)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mohammedsiddiqui6872/backend-sub009

package connmgr

import "sync"

// offlineQueue is the bounded FIFO buffer for commands issued while the
// connection is down.
//
// Capacity is fixed at construction; pushing onto a full queue evicts the
// oldest entry first. Losing the oldest command is the right trade for a
// floor device that has been offline for minutes: recent intent supersedes
// stale intent, and the post-reconnect resync repairs whatever the dropped
// command would have read.
type offlineQueue struct {
	mu    sync.Mutex
	items []queuedCommand
	limit int
}

// queuedCommand is one deferred outbound command.
type queuedCommand struct {
	event string
	data  any
}

func newOfflineQueue(limit int) *offlineQueue {
	return &offlineQueue{limit: limit}
}

// push appends a command, evicting the oldest entry when full. Returns true
// if an entry was evicted.
func (q *offlineQueue) push(cmd queuedCommand) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	evicted := false
	if len(q.items) >= q.limit {
		q.items = q.items[1:]
		evicted = true
	}
	q.items = append(q.items, cmd)
	return evicted
}

// requeue re-inserts a command at the head, so a replay that failed mid
// drain keeps its FIFO position ahead of commands queued after it. On a
// full queue the command is dropped instead: it is the oldest intent and
// would have been the eviction victim anyway.
func (q *offlineQueue) requeue(cmd queuedCommand) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.limit {
		return
	}
	q.items = append([]queuedCommand{cmd}, q.items...)
}

// pop removes and returns the oldest command.
func (q *offlineQueue) pop() (queuedCommand, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return queuedCommand{}, false
	}
	cmd := q.items[0]
	q.items = q.items[1:]
	return cmd, true
}

// len returns the current queue depth.
func (q *offlineQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// clear drops every queued command.
func (q *offlineQueue) clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
}
