// FloorSync - Multi-Tenant Restaurant Floor Coordination
// Copyright 2026 Mohammed Siddiqui (mohammedsiddiqui6872)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mohammedsiddiqui6872/backend-sub009

package assignment

import "errors"

var (
	// ErrInvalidReference indicates the waiter or table referenced by a
	// create request does not resolve within the tenant: unknown ID, wrong
	// role, or a deactivated user.
	ErrInvalidReference = errors.New("invalid waiter or table reference")

	// ErrAssignmentNotFound indicates the assignment does not exist or is
	// not active. Ending an already-ended assignment reports this error;
	// the second End call must never mutate state.
	ErrAssignmentNotFound = errors.New("assignment not found")
)
