// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

package models

import "time"

// Step identifies one pipeline stage.
type Step string

const (
	StepCollect Step = "collect"
	StepFilter  Step = "filter"
	StepEnrich  Step = "enrich"
	StepScore   Step = "score"
)

// AllSteps lists the pipeline stages in execution order.
func AllSteps() []Step {
	return []Step{StepCollect, StepFilter, StepEnrich, StepScore}
}

// ValidStep reports whether s names a known pipeline stage.
func ValidStep(s string) bool {
	switch Step(s) {
	case StepCollect, StepFilter, StepEnrich, StepScore:
		return true
	}
	return false
}

// StepDisplayName returns the human name for a stage.
func StepDisplayName(s Step) string {
	switch s {
	case StepCollect:
		return "Collect"
	case StepFilter:
		return "Filter"
	case StepEnrich:
		return "Enrich"
	case StepScore:
		return "Score"
	default:
		return string(s)
	}
}

// StepLog is one append-only pipeline log row. Rows are never updated or
// deleted; status queries reduce over the full log.
type StepLog struct {
	ID        int64     `json:"id"`
	Step      Step      `json:"step"`
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// StepStatus summarizes the log for one stage: the most recent run's outcome
// and message, plus the independent last-successful and last-failed
// timestamps. A stage that never ran has Success == nil.
type StepStatus struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Success           *bool      `json:"success"`
	Message           *string    `json:"message"`
	LastSuccessfulRun *time.Time `json:"last_successful_run"`
	LastFailedRun     *time.Time `json:"last_failed_run"`
}
