package journey

import (
	"math"

	"github.com/rowquest/rowquest-api/internal/apperrors"
)

// CompletionPercentage converts cumulative meters into a whole percentage of the journey,
// rounded half up and clamped to [0, 100].
func CompletionPercentage(cumulative, total float64) (int, error) {
	if total <= 0 || !isFinite(total) {
		return 0, apperrors.New(apperrors.ConfigurationInvalid, "journey.completion", "total journey distance must be positive and finite")
	}
	if !isFinite(cumulative) {
		return 0, apperrors.New(apperrors.InvalidInput, "journey.completion", "cumulative distance must be finite")
	}

	pct := math.Floor(cumulative/total*100 + 0.5)
	switch {
	case pct < 0:
		return 0, nil
	case pct > 100:
		return 100, nil
	}
	return int(pct), nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
