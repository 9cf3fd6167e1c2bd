// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

package models

import "time"

// AllMediaTypes lists the media asset types counted by the metadata quality
// sub-score. The order is not significant; the length is (it anchors the
// denominator of the media coverage ratio).
var AllMediaTypes = []string{"icon", "screenshot", "video", "banner", "logo"}

// Developer validation grades that confer full dev-trust score.
const (
	ValidationVerified = "verified"
	ValidationStarred  = "starred"
)

// MediaEntry is a single media asset attached to a catalog item.
type MediaEntry struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Item is one marketplace package as stored in the catalog table.
// Mutable fields are overwritten wholesale on every collect run; the
// enrichment columns (active_devices, raw_rating, total_votes) and the
// eligibility flag are written by their own stages.
type Item struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Title       string `json:"title"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Version     string `json:"version"`
	Publisher   string `json:"publisher"`
	Revision    int    `json:"revision"`

	// Icon, Website and Contact are denormalized from media and links
	// during collection for cheap filtering and display.
	Icon    string `json:"icon,omitempty"`
	Website string `json:"website,omitempty"`
	Contact string `json:"contact,omitempty"`

	// Links maps link kinds (website, contact, issues, source...) to URL
	// lists. Media is the raw asset list. Both are stored as JSON text.
	Links map[string][]string `json:"links,omitempty"`
	Media []MediaEntry        `json:"media,omitempty"`

	DeveloperValidation string    `json:"developer_validation"`
	License             string    `json:"license,omitempty"`
	LastUpdated         time.Time `json:"last_updated"`

	// Enrichment columns.
	ActiveDevices int64    `json:"active_devices"`
	RawRating     *float64 `json:"raw_rating,omitempty"`
	TotalVotes    int64    `json:"total_votes"`

	// ReachesMinThreshold is the eligibility flag maintained by the filter
	// stage. Only eligible items are scored and assigned.
	ReachesMinThreshold bool `json:"reaches_min_threshold"`
}

// HasTrustedPublisher reports whether the item's developer validation grade
// grants the full dev-trust sub-score.
func (i *Item) HasTrustedPublisher() bool {
	return i.DeveloperValidation == ValidationVerified || i.DeveloperValidation == ValidationStarred
}

// MediaTypeCounts returns the number of assets per media type.
func (i *Item) MediaTypeCounts() map[string]int {
	counts := make(map[string]int, len(AllMediaTypes))
	for _, m := range i.Media {
		counts[m.Type]++
	}
	return counts
}

// NonEmptyLinkCount returns the number of link kinds with at least one URL.
func (i *Item) NonEmptyLinkCount() int {
	n := 0
	for _, urls := range i.Links {
		if len(urls) > 0 {
			n++
		}
	}
	return n
}
