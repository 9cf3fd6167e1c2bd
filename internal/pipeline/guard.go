// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

package pipeline

import (
	"fmt"
	"sync"

	"github.com/storepulse/storepulse/internal/models"
)

// stageGuard is the single-flight gate for pipeline stages. Two concurrent
// invocations of the same stage would race on the shared tables (two scoring
// runs both clearing and reinserting the current score set), so a second
// trigger for a stage that is already in flight is rejected outright.
type stageGuard struct {
	mu      sync.Mutex
	running map[models.Step]bool
}

func newStageGuard() *stageGuard {
	return &stageGuard{running: make(map[models.Step]bool)}
}

// acquire marks the step as in flight, or fails with ErrStageRunning.
func (g *stageGuard) acquire(step models.Step) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running[step] {
		return fmt.Errorf("%w: %s", ErrStageRunning, step)
	}
	g.running[step] = true
	return nil
}

func (g *stageGuard) release(step models.Step) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.running, step)
}

func (g *stageGuard) active(step models.Step) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running[step]
}
