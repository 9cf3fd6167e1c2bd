// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

package scoring

import "github.com/storepulse/storepulse/internal/models"

// maxCountedLinks caps the number of link kinds contributing to the metadata
// score.
const maxCountedLinks = 5

// MediaScore measures media coverage: the asset count across the known media
// types, scaled so a listing with two assets of every type scores 1.0.
func MediaScore(item *models.Item) float64 {
	counts := item.MediaTypeCounts()
	total := 0
	for _, mediaType := range models.AllMediaTypes {
		total += counts[mediaType]
	}
	return float64(total) / float64(len(models.AllMediaTypes)*2)
}

// MetadataScore combines media coverage with link completeness and license
// presence, averaged and clamped to at most 1.
func MetadataScore(item *models.Item) float64 {
	links := item.NonEmptyLinkCount()
	if links > maxCountedLinks {
		links = maxCountedLinks
	}

	licenseSet := 0
	if item.License != "" && item.License != "unset" {
		licenseSet = 1
	}

	linksQuality := float64(licenseSet+links) / float64(maxCountedLinks+1)
	score := (MediaScore(item) + linksQuality) / 2

	if score > 1 {
		return 1
	}
	return score
}

// DevScore is 1 for verified or starred publishers, 0 otherwise.
func DevScore(item *models.Item) float64 {
	if item.HasTrustedPublisher() {
		return 1
	}
	return 0
}
