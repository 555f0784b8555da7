package model

import (
	"fmt"
	"math"
)

// Report builds the prediction report. PerCategory follows catalog order, not
// probability order. raw may be nil when logits are not available.
func Report(probs Probabilities, raw RawScores, catalog ClassCatalog) (*PredictionReport, error) {
	if len(probs) == 0 || len(probs) != catalog.Len() {
		return nil, fmt.Errorf("%w: %d probabilities for %d classes", ErrShape, len(probs), catalog.Len())
	}
	if raw != nil && len(raw) != len(probs) {
		return nil, fmt.Errorf("%w: %d raw scores for %d probabilities", ErrShape, len(raw), len(probs))
	}

	top := Argmax(probs)
	label, _ := catalog.Label(top)

	perCategory := make([]CategoryScore, len(probs))
	for i, p := range probs {
		l, _ := catalog.Label(i)
		perCategory[i] = CategoryScore{Label: l, Probability: p}
		if raw != nil {
			perCategory[i].RawScore = raw[i]
		}
	}

	return &PredictionReport{
		TopLabel:             label,
		TopIndex:             top,
		TopConfidencePercent: math.Round(probs[top]*100*100) / 100,
		PerCategory:          perCategory,
	}, nil
}

// Summary is the one-line human readable verdict.
func (r *PredictionReport) Summary() string {
	return fmt.Sprintf("This image most likely belongs to '%s' with a %.2f percent confidence.", r.TopLabel, r.TopConfidencePercent)
}

// Probability looks up the probability of label.
func (r *PredictionReport) Probability(label string) (float64, bool) {
	for _, c := range r.PerCategory {
		if c.Label == label {
			return c.Probability, true
		}
	}
	return 0, false
}
