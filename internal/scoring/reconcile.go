package scoring

import "github.com/fmuoria/resume-screener/internal/models"

// Reconcile merges one candidate's comparative and detailed results.
// Detailed values win where present, comparative scores fill the gaps and
// anything left gets DefaultScore and NoJustification. No score is recomputed.
func Reconcile(criteria []string, comparative, detailedScores map[string]int, detailedJustifications map[string]string) models.Scorecard {
	scores, justs := Complete(criteria, detailedScores, detailedJustifications, comparative)
	return models.Scorecard{Scores: scores, Justifications: justs}
}
