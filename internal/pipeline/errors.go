// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

package pipeline

import "errors"

var (
	// ErrStageRunning is returned when a stage trigger is rejected because
	// the same stage is already in flight. Callers are rejected, never queued.
	ErrStageRunning = errors.New("stage already running")

	// ErrCredentialRotation is returned when the usage metrics upstream
	// rejects the macaroon with HTTP 401. The credential must be rotated by
	// an operator; retrying with the same credential cannot succeed.
	ErrCredentialRotation = errors.New("metrics credential rejected, macaroon rotation required")

	// ErrUnknownStep is returned for a step name the runner does not know.
	ErrUnknownStep = errors.New("unknown pipeline step")
)
