package scoring

import (
	"strings"

	"golang.org/x/text/cases"
)

// MatchCriterion maps a free-text label from a model response to a canonical
// criterion name.
//
// The match is a heuristic: a label matches when either string contains the
// other, ignoring case. Criteria are tried in the given order and the first
// hit wins, so "Experience" listed before "Industry Experience" captures a
// label of "Industry Experience" as well. Callers that need precise identity
// must order their criteria accordingly.
func MatchCriterion(label string, criteria []string) (string, bool) {
	fold := cases.Fold()

	l := fold.String(cleanLabel(label))
	if l == "" {
		return "", false
	}

	for _, c := range criteria {
		fc := fold.String(strings.TrimSpace(c))
		if fc == "" {
			continue
		}
		if strings.Contains(fc, l) || strings.Contains(l, fc) {
			return c, true
		}
	}
	return "", false
}

// cleanLabel strips list markers and markdown emphasis around a label
func cleanLabel(label string) string {
	s := strings.TrimSpace(label)
	s = strings.TrimLeft(s, "-•>#")
	s = strings.TrimSpace(s)
	s = trimListNumber(s)
	return strings.TrimSpace(strings.Trim(s, "*_`[] "))
}

// trimListNumber removes a leading "1." or "2)" list number
func trimListNumber(s string) string {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i > 0 && i < len(s) && (s[i] == '.' || s[i] == ')') {
		return s[i+1:]
	}
	return s
}
