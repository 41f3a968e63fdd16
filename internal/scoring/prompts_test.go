package scoring

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/fmuoria/resume-screener/internal/models"
)

// TestSanitizeUTF8_ValidString tests that valid UTF-8 strings are returned unchanged
func TestSanitizeUTF8_ValidString(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "Simple ASCII text",
			input: "Hello, World!",
		},
		{
			name:  "UTF-8 with special characters",
			input: "José González - Software Engineer with 5+ years of experience in Go, Python, and Java.",
		},
		{
			name:  "Multi-language text",
			input: "Software Engineer - 软件工程师 - مهندس برمجيات",
		},
		{
			name:  "Empty string",
			input: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := sanitizeUTF8(tt.input)
			if result != tt.input {
				t.Errorf("sanitizeUTF8() changed valid UTF-8 string: got %q, want %q", result, tt.input)
			}
		})
	}
}

// TestSanitizeUTF8_InvalidString tests that invalid sequences are replaced and text survives
func TestSanitizeUTF8_InvalidString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		contains string
	}{
		{
			name:     "Invalid byte sequence at start",
			input:    string([]byte{0xFF, 0xFE}) + "Valid text",
			contains: "Valid text",
		},
		{
			name:     "Invalid byte sequence in middle",
			input:    "Before" + string([]byte{0xFF}) + "After",
			contains: "Before�After",
		},
		{
			name:     "Invalid continuation bytes",
			input:    "Name: John" + string([]byte{0x80, 0x81}),
			contains: "Name: John",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := sanitizeUTF8(tt.input)
			if !utf8.ValidString(result) {
				t.Errorf("sanitizeUTF8() returned invalid UTF-8 string: %q", result)
			}
			if !strings.Contains(result, tt.contains) {
				t.Errorf("sanitizeUTF8() = %q, want it to contain %q", result, tt.contains)
			}
		})
	}
}

// TestTruncate tests the truncate helper function
func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{
			name:   "Short string not truncated",
			input:  "Hello",
			maxLen: 10,
			want:   "Hello",
		},
		{
			name:   "Exact length not truncated",
			input:  "Hello",
			maxLen: 5,
			want:   "Hello",
		},
		{
			name:   "Long string truncated",
			input:  "This is a very long string that should be truncated",
			maxLen: 20,
			want:   "This is a very long ...",
		},
		{
			name:   "Multibyte characters counted once",
			input:  "Zoë Zoë Zoë",
			maxLen: 3,
			want:   "Zoë...",
		},
		{
			name:   "Empty string",
			input:  "",
			maxLen: 10,
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := truncate(tt.input, tt.maxLen)
			if result != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, result, tt.want)
			}
		})
	}
}

func TestBuildComparativePrompt_TruncatesEachResume(t *testing.T) {
	long := strings.Repeat("x", ComparativeResumeLimit+500)
	prompt := buildComparativePrompt("Backend engineer", []string{"Skills", "Experience"}, []comparativeEntry{
		{Label: "Ada", Resume: long},
		{Label: "Grace", Resume: "Short resume"},
	})

	if !strings.Contains(prompt, strings.Repeat("x", ComparativeResumeLimit)+"...") {
		t.Error("expected the long resume to be cut with an ellipsis")
	}
	if strings.Contains(prompt, strings.Repeat("x", ComparativeResumeLimit+1)) {
		t.Error("resume exceeds the comparative limit")
	}
	for _, want := range []string{"Candidate: Ada", "Candidate: Grace", "Short resume", "Skills, Experience", "CANDIDATE:"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildDetailedPrompt_PriorScores(t *testing.T) {
	criteria := []string{"Skills", "Experience"}

	withPrior := buildDetailedPrompt("JD", criteria, "resume", map[string]int{"Skills": 7})
	if !strings.Contains(withPrior, "Skills: 7/10") {
		t.Error("expected prior score in prompt")
	}
	if strings.Contains(withPrior, "Experience: ") {
		t.Error("criteria without a prior must not be listed as scored")
	}

	without := buildDetailedPrompt("JD", criteria, strings.Repeat("y", DetailedResumeLimit+1), nil)
	if strings.Contains(without, "PRIOR SCORES") {
		t.Error("prior section should be omitted without prior scores")
	}
	if !strings.Contains(without, strings.Repeat("y", DetailedResumeLimit)+"...") {
		t.Error("expected resume truncated at the detailed limit")
	}
	for _, want := range []string{"CRITERION:", "SCORE:", "JUSTIFICATION:"} {
		if !strings.Contains(without, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildFeedbackPrompt(t *testing.T) {
	prompt := buildFeedbackPrompt("JD", "resume", []models.CriterionScore{
		{Criterion: "Skills", Score: 8},
		{Criterion: "Experience", Score: 3},
	})
	for _, want := range []string{"Skills: 8/10", "Experience: 3/10", "3 key strengths", "Overall assessment"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
