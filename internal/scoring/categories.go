// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

package scoring

import (
	"fmt"

	"github.com/storepulse/storepulse/internal/models"
)

// Inputs holds the normalized signals feeding a category utility. All values
// are in [0,1].
type Inputs struct {
	Usage    float64 // log-scaled active devices
	Recency  float64 // elapsed fraction of last_updated within the population
	Metadata float64 // metadata quality sub-score
	Dev      float64 // developer trust sub-score
	Rating   float64 // raw community rating (0 when unrated)
}

// Weights is a linear weighting over the normalized inputs. Each category's
// vector sums to 1.0, keeping utilities comparable across categories.
type Weights struct {
	Usage    float64
	Recency  float64
	Metadata float64
	Dev      float64
	Rating   float64
}

// Utility applies the weight vector to the inputs.
func (w Weights) Utility(in Inputs) float64 {
	return w.Usage*in.Usage +
		w.Recency*in.Recency +
		w.Metadata*in.Metadata +
		w.Dev*in.Dev +
		w.Rating*in.Rating
}

// categoryWeights is the closed weight table. Adding a category means adding
// a row here plus the enum constant and the seed row.
var categoryWeights = map[models.Category]Weights{
	models.CategoryPopular:  {Usage: 0.7, Metadata: 0.1, Dev: 0.2},
	models.CategoryRecent:   {Recency: 0.5, Metadata: 0.3, Dev: 0.2},
	models.CategoryTrending: {Usage: 0.25, Recency: 0.25, Metadata: 0.3, Dev: 0.2},
	models.CategoryTopRated: {Rating: 0.7, Metadata: 0.1, Dev: 0.2},
}

// WeightsFor returns the weight vector for a category.
func WeightsFor(category models.Category) (Weights, error) {
	w, ok := categoryWeights[category]
	if !ok {
		return Weights{}, fmt.Errorf("unknown category: %s", category)
	}
	return w, nil
}
