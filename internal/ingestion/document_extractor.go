package ingestion

import (
	"errors"
	"fmt"
	"html"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

const (
	// BinarySampleSize is the number of bytes to sample for binary detection
	BinarySampleSize = 1000
	// BinaryThreshold is the proportion of non-printable characters that indicates binary data
	BinaryThreshold = 0.3

	// EmptyPDFPage stands in for a page that yielded no text
	EmptyPDFPage = "[PDF page with no extractable text]"
)

// ErrNoText is returned when a document contains no extractable text
var ErrNoText = errors.New("no text content found")

// ExtractText extracts text from PDF, DOCX, DOC, or TXT files
func ExtractText(filePath string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filePath))

	var (
		text string
		err  error
	)
	switch ext {
	case ".txt":
		text, err = extractTXT(filePath)
	case ".pdf":
		text, err = extractPDF(filePath)
	case ".docx":
		text, err = extractDOCX(filePath)
	case ".doc":
		text, err = extractDOC(filePath)
	default:
		return "", fmt.Errorf("unsupported file type: %s", ext)
	}
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w in %s", ErrNoText, filepath.Base(filePath))
	}
	return text, nil
}

// extractTXT reads the file as UTF-8, dropping invalid bytes
func extractTXT(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read text file: %w", err)
	}

	content := string(data)
	if IsBinaryData(content) {
		return "", fmt.Errorf("file %s has a .txt extension but binary content", filepath.Base(filePath))
	}
	return strings.ToValidUTF8(content, ""), nil
}

// extractPDF extracts the plain text of every page
func extractPDF(filePath string) (string, error) {
	f, r, err := pdf.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil || strings.TrimSpace(text) == "" {
			sb.WriteString(EmptyPDFPage)
		} else {
			sb.WriteString(text)
		}
		sb.WriteString("\n\n")
	}

	text := sb.String()
	if strings.TrimSpace(strings.ReplaceAll(text, EmptyPDFPage, "")) == "" {
		return "", fmt.Errorf("%w in PDF %s", ErrNoText, filepath.Base(filePath))
	}
	return text, nil
}

// extractDOCX reads word/document.xml and strips the markup
func extractDOCX(filePath string) (string, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open DOCX: %w", err)
	}
	defer r.Close()

	return StripWordXML(r.Editable().GetContent()), nil
}

// extractDOC shells out to antiword for legacy Word documents
func extractDOC(filePath string) (string, error) {
	cmd := exec.Command("antiword", filePath)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("DOC extraction requires 'antiword': %w\nFile appears to be binary DOC: %s", err, filePath)
	}
	return string(output), nil
}

var (
	wordBreak  = regexp.MustCompile(`</w:p>|<w:br[^>]*/>|<w:cr[^>]*/>`)
	wordTab    = regexp.MustCompile(`<w:tab[^>]*/>`)
	xmlTag     = regexp.MustCompile(`<[^>]+>`)
	blankLines = regexp.MustCompile(`\n{3,}`)
)

// StripWordXML turns WordprocessingML into plain text. Paragraphs and
// breaks become newlines and tabs become tab characters.
func StripWordXML(content string) string {
	s := wordBreak.ReplaceAllString(content, "\n")
	s = wordTab.ReplaceAllString(s, "\t")
	s = xmlTag.ReplaceAllString(s, "")
	s = html.UnescapeString(s)

	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	s = strings.Join(lines, "\n")
	return strings.TrimSpace(blankLines.ReplaceAllString(s, "\n\n"))
}

// IsBinaryData reports whether content looks like a PDF or ZIP container,
// or has too many control characters in its first BinarySampleSize bytes to
// be a plain text resume.
func IsBinaryData(content string) bool {
	switch {
	case content == "":
		return false
	case strings.HasPrefix(content, "%PDF-"), strings.HasPrefix(content, "PK"):
		return true
	}

	sample := content[:min(BinarySampleSize, len(content))]
	control := 0
	for i := range len(sample) {
		if c := sample[i]; c < ' ' && c != '\n' && c != '\r' && c != '\t' {
			control++
		}
	}
	return float64(control)/float64(len(sample)) > BinaryThreshold
}
