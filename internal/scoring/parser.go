package scoring

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

const (
	// DefaultScore is assigned when no usable score is available
	DefaultScore = 5
	// MinScore and MaxScore bound every criterion score
	MinScore = 0
	MaxScore = 10

	// NoJustification fills criteria the model did not justify
	NoJustification = "No specific justification provided."
)

// Block markers recognised in model responses, compared case-insensitively
const (
	markerCandidate     = "CANDIDATE"
	markerCriterion     = "CRITERION"
	markerScore         = "SCORE"
	markerJustification = "JUSTIFICATION"
)

// ParseScoreToken reads the first whitespace-delimited token of value as a
// number, truncates it to an integer and clamps it to [0,10]. Forms like
// "8/10" or "7." are accepted. fallback is returned when no number is found.
func ParseScoreToken(value string, fallback int) int {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return fallback
	}

	tok := strings.TrimLeft(fields[0], "*([")
	if i := strings.IndexByte(tok, '/'); i >= 0 {
		tok = tok[:i]
	}
	tok = strings.TrimRight(tok, "*.,;:)]%")

	f, err := strconv.ParseFloat(tok, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return fallback
	}
	return clampScore(int(f))
}

func clampScore(s int) int {
	if s < MinScore {
		return MinScore
	}
	if s > MaxScore {
		return MaxScore
	}
	return s
}

// ParseComparative parses a response made of "CANDIDATE: name" blocks, each
// followed by "Criterion: score" lines. The result is keyed by the candidate
// label as written by the model, then by canonical criterion name. Lines whose
// label matches no criterion are dropped. A matched label without a number
// scores DefaultScore.
func ParseComparative(text string, criteria []string) map[string]map[string]int {
	out := make(map[string]map[string]int)
	numeric := make(map[string]map[string]bool)
	current := ""

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		key, value, ok := splitField(line)
		if !ok {
			continue
		}

		if isMarker(key, markerCandidate) {
			current = cleanLabel(value)
			if current != "" && out[current] == nil {
				out[current] = make(map[string]int)
				numeric[current] = make(map[string]bool)
			}
			continue
		}

		if current == "" {
			continue
		}

		c, ok := MatchCriterion(key, criteria)
		if !ok {
			continue
		}
		if numeric[current][c] {
			continue
		}
		if s := ParseScoreToken(value, -1); s >= 0 {
			out[current][c] = s
			numeric[current][c] = true
		} else {
			out[current][c] = DefaultScore
		}
	}

	return out
}

// ParseDetailed parses a per-candidate response into scores and
// justifications keyed by canonical criterion name.
//
// Two layouts are understood and may be mixed:
//
//	CRITERION: Technical Skills
//	SCORE: 8
//	JUSTIFICATION: Strong match.
//
// and
//
//	Technical Skills: 8 - Strong match.
//	Justification: More detail.
//
// Text after an inline score opens the justification and a following
// Justification line extends it. Justification text continues over following lines until the next block or
// marker. Scores start from prior, so a criterion the response omits keeps its
// prior value. When a score is present but not numeric, the prior value (or
// DefaultScore without one) is used. The first score and justification seen
// for a criterion win.
func ParseDetailed(text string, criteria []string, prior map[string]int) (map[string]int, map[string]string) {
	scores := make(map[string]int, len(criteria))
	for c, s := range prior {
		scores[c] = s
	}
	justifications := make(map[string]string, len(criteria))

	fallback := func(c string) int {
		if s, ok := prior[c]; ok {
			return s
		}
		return DefaultScore
	}

	scored := make(map[string]bool)
	var (
		current    string
		inJust     bool
		inlineJust bool
		justParts  []string
	)

	// A non-numeric value only fills a gap; a later numeric score still wins.
	setScore := func(c, value string) {
		if c == "" || scored[c] {
			return
		}
		if s := ParseScoreToken(value, -1); s >= 0 {
			scores[c] = s
			scored[c] = true
			return
		}
		scores[c] = fallback(c)
	}

	flush := func() {
		if current != "" && len(justParts) > 0 {
			j := strings.TrimSpace(strings.Join(justParts, " "))
			if _, exists := justifications[current]; !exists && j != "" {
				justifications[current] = j
			}
		}
		inJust = false
		inlineJust = false
		justParts = nil
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		key, value, hasField := splitField(line)

		switch {
		case hasField && isMarker(key, markerCriterion):
			flush()
			current, _ = MatchCriterion(value, criteria)

		case hasField && isMarker(key, markerScore):
			inJust = false
			setScore(current, value)

		case hasField && isMarker(key, markerJustification):
			if !inlineJust {
				flush()
			}
			inJust = true
			inlineJust = false
			if value != "" {
				justParts = append(justParts, value)
			}

		case hasField && startsInlineBlock(key, value, inJust, criteria):
			flush()
			current, _ = MatchCriterion(key, criteria)
			setScore(current, value)
			if rest, _ := inlineRemainder(value); rest != "" && current != "" && ParseScoreToken(value, -1) >= 0 {
				inJust = true
				inlineJust = true
				justParts = append(justParts, rest)
			}

		case inJust:
			justParts = append(justParts, line)
		}
	}
	flush()

	return scores, justifications
}

// startsInlineBlock reports whether a "label: value" line opens a new
// criterion block. Inside a justification the value must be a bare score,
// optionally followed by a dash and text, so prose such as
// "Experience: 10 years in Go" stays part of the justification.
func startsInlineBlock(key, value string, inJust bool, criteria []string) bool {
	if _, ok := MatchCriterion(key, criteria); !ok {
		return false
	}
	if !inJust {
		return true
	}
	if ParseScoreToken(value, -1) < 0 {
		return false
	}
	rest, dashed := inlineRemainder(value)
	return rest == "" || dashed
}

// inlineRemainder returns the text after the score in an inline value such as
// "8/10 - strong Go background". A spaced "8 / 10" counts as one score.
// dashed reports whether a dash or colon separated the text from the score.
func inlineRemainder(value string) (rest string, dashed bool) {
	v := strings.TrimSpace(value)
	i := strings.IndexFunc(v, unicode.IsSpace)
	if i < 0 {
		return "", false
	}
	rest = strings.TrimSpace(v[i:])

	if strings.HasPrefix(rest, "/") {
		rest = strings.TrimSpace(rest[1:])
		end := strings.IndexFunc(rest, func(r rune) bool { return !unicode.IsDigit(r) })
		if end < 0 {
			end = len(rest)
		}
		rest = strings.TrimSpace(rest[end:])
	}

	if trimmed := strings.TrimLeft(rest, "-\u2013\u2014:"); trimmed != rest {
		return strings.TrimSpace(trimmed), true
	}
	return rest, false
}

// Complete returns copies of scores and justifications with every criterion
// present. Missing scores take the prior value or DefaultScore; missing
// justifications take NoJustification.
func Complete(criteria []string, scores map[string]int, justifications map[string]string, prior map[string]int) (map[string]int, map[string]string) {
	outScores := make(map[string]int, len(criteria))
	outJust := make(map[string]string, len(criteria))

	for _, c := range criteria {
		if s, ok := scores[c]; ok {
			outScores[c] = clampScore(s)
		} else if p, ok := prior[c]; ok {
			outScores[c] = clampScore(p)
		} else {
			outScores[c] = DefaultScore
		}

		if j := strings.TrimSpace(justifications[c]); j != "" {
			outJust[c] = j
		} else {
			outJust[c] = NoJustification
		}
	}
	return outScores, outJust
}

// splitField splits "key: value" at the first colon. Markdown emphasis around
// the key and at the start of the value is removed.
func splitField(line string) (key, value string, ok bool) {
	i := strings.IndexByte(line, ':')
	if i < 0 {
		return "", "", false
	}
	key = cleanLabel(line[:i])
	value = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line[i+1:]), "*_"))
	return key, value, key != ""
}

// isMarker reports whether key is marker, ignoring case and a trailing
// ordinal such as "Criterion 2".
func isMarker(key, marker string) bool {
	k := strings.TrimRight(key, "0123456789# ")
	return strings.EqualFold(strings.TrimSpace(k), marker)
}
