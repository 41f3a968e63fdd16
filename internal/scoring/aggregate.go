package scoring

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/fmuoria/resume-screener/internal/models"
)

// ErrContractViolation marks input the caller was required to validate
var ErrContractViolation = errors.New("contract violation")

// Priority bounds of a selected criterion
const (
	MinPriority = 1
	MaxPriority = 10
)

// OverallScore is the priority-weighted mean of scores on the 0-10 scale,
// rescaled to 0-100. scores and priorities must have the same key set and
// every priority must lie in MinPriority..MaxPriority.
func OverallScore(scores, priorities map[string]int) (float64, error) {
	if len(priorities) == 0 {
		return 0, fmt.Errorf("%w: no priorities", ErrContractViolation)
	}
	if len(scores) != len(priorities) {
		return 0, fmt.Errorf("%w: %d scores for %d priorities", ErrContractViolation, len(scores), len(priorities))
	}

	var weighted, total int
	for c, p := range priorities {
		s, ok := scores[c]
		if !ok {
			return 0, fmt.Errorf("%w: no score for criterion %q", ErrContractViolation, c)
		}
		if p < MinPriority || p > MaxPriority {
			return 0, fmt.Errorf("%w: priority %d for criterion %q outside %d..%d",
				ErrContractViolation, p, c, MinPriority, MaxPriority)
		}
		weighted += clampScore(s) * p
		total += p
	}

	return float64(weighted) / float64(total) / 10 * 100, nil
}

// RoundScore rounds an overall score to two decimals for display
func RoundScore(v float64) float64 {
	return math.Round(v*100) / 100
}

// Rank sorts results by descending overall score and numbers them from 1.
// Equal scores keep their input order.
func Rank(results []models.CandidateResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].OverallScore > results[j].OverallScore
	})
	for i := range results {
		results[i].Rank = i + 1
	}
}
