// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/storepulse/storepulse/internal/models"
)

func TestMediaScore(t *testing.T) {
	tests := []struct {
		name  string
		media []models.MediaEntry
		want  float64
	}{
		{"no media", nil, 0},
		{"icon only", []models.MediaEntry{{Type: "icon"}}, 0.1},
		{
			"icon and two screenshots",
			[]models.MediaEntry{{Type: "icon"}, {Type: "screenshot"}, {Type: "screenshot"}},
			0.3,
		},
		{
			"unknown types ignored",
			[]models.MediaEntry{{Type: "icon"}, {Type: "hologram"}},
			0.1,
		},
		{
			"full coverage",
			[]models.MediaEntry{
				{Type: "icon"}, {Type: "icon"},
				{Type: "screenshot"}, {Type: "screenshot"},
				{Type: "video"}, {Type: "video"},
				{Type: "banner"}, {Type: "banner"},
				{Type: "logo"}, {Type: "logo"},
			},
			1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := &models.Item{Media: tt.media}
			assert.InDelta(t, tt.want, MediaScore(item), 1e-9)
		})
	}
}

func TestMetadataScore(t *testing.T) {
	full := &models.Item{
		License: "MIT",
		Links: map[string][]string{
			"website": {"https://a"}, "contact": {"mailto:x"}, "issues": {"https://b"},
			"source": {"https://c"}, "donations": {"https://d"},
		},
		Media: []models.MediaEntry{
			{Type: "icon"}, {Type: "icon"},
			{Type: "screenshot"}, {Type: "screenshot"},
			{Type: "video"}, {Type: "video"},
			{Type: "banner"}, {Type: "banner"},
			{Type: "logo"}, {Type: "logo"},
		},
	}
	assert.InDelta(t, 1, MetadataScore(full), 1e-9)

	bare := &models.Item{}
	assert.InDelta(t, 0, MetadataScore(bare), 1e-9)

	// license counts as one slot of six in links quality
	licensed := &models.Item{License: "GPL-3.0"}
	assert.InDelta(t, (1.0/6.0)/2, MetadataScore(licensed), 1e-9)

	// "unset" is the catalog's explicit no-license marker
	unset := &models.Item{License: "unset"}
	assert.InDelta(t, 0, MetadataScore(unset), 1e-9)
}

func TestMetadataScoreCapsLinks(t *testing.T) {
	many := &models.Item{
		Links: map[string][]string{
			"a": {"x"}, "b": {"x"}, "c": {"x"}, "d": {"x"},
			"e": {"x"}, "f": {"x"}, "g": {"x"},
		},
	}
	capped := &models.Item{
		Links: map[string][]string{
			"a": {"x"}, "b": {"x"}, "c": {"x"}, "d": {"x"}, "e": {"x"},
		},
	}
	assert.InDelta(t, MetadataScore(capped), MetadataScore(many), 1e-9)
}

func TestMetadataScoreClamped(t *testing.T) {
	// An absurd number of media entries must not push the score past 1.
	media := make([]models.MediaEntry, 0, 50)
	for i := 0; i < 50; i++ {
		media = append(media, models.MediaEntry{Type: "screenshot"})
	}
	item := &models.Item{
		License: "MIT",
		Links:   map[string][]string{"a": {"x"}, "b": {"x"}, "c": {"x"}, "d": {"x"}, "e": {"x"}},
		Media:   media,
	}
	assert.InDelta(t, 1, MetadataScore(item), 1e-9)
}

func TestDevScore(t *testing.T) {
	assert.Equal(t, 1.0, DevScore(&models.Item{DeveloperValidation: "verified"}))
	assert.Equal(t, 1.0, DevScore(&models.Item{DeveloperValidation: "starred"}))
	assert.Equal(t, 0.0, DevScore(&models.Item{DeveloperValidation: "unproven"}))
	assert.Equal(t, 0.0, DevScore(&models.Item{}))
}

func TestCategoryWeightsSumToOne(t *testing.T) {
	for _, cat := range models.AllCategories() {
		w, err := WeightsFor(cat)
		assert.NoError(t, err)
		sum := w.Usage + w.Recency + w.Metadata + w.Dev + w.Rating
		assert.InDelta(t, 1.0, sum, 1e-9, "weights for %s must sum to 1", cat)
	}
}

func TestWeightsForUnknownCategory(t *testing.T) {
	_, err := WeightsFor(models.Category("mystery"))
	assert.Error(t, err)
}
