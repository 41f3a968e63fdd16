// Package ingestion stores uploaded resumes and turns them into candidate
// submissions.
package ingestion

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/fmuoria/resume-screener/internal/models"
)

// DefaultMaxUploadSize is the per-file upload limit
const DefaultMaxUploadSize int64 = 16 << 20

// DefaultExtensions are the resume formats accepted by default
var DefaultExtensions = []string{"txt", "pdf", "docx", "doc"}

var (
	// ErrUnsupportedFile is returned for extensions or content types outside the allowlist
	ErrUnsupportedFile = errors.New("unsupported file")
	// ErrFileTooLarge is returned when an upload exceeds the size limit
	ErrFileTooLarge = errors.New("file too large")
)

// FileHandler saves uploads under uploadsDir, one directory per submission ID
type FileHandler struct {
	uploadsDir string
	maxSize    int64
	allowed    map[string]bool
	logger     *slog.Logger
}

// FileOption configures a FileHandler
type FileOption func(*FileHandler)

// WithMaxSize sets the per-file upload limit in bytes
func WithMaxSize(n int64) FileOption {
	return func(fh *FileHandler) {
		if n > 0 {
			fh.maxSize = n
		}
	}
}

// WithExtensions replaces the accepted extensions. Leading dots are optional.
func WithExtensions(exts ...string) FileOption {
	return func(fh *FileHandler) {
		if len(exts) == 0 {
			return
		}
		fh.allowed = extensionSet(exts)
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) FileOption {
	return func(fh *FileHandler) {
		if logger != nil {
			fh.logger = logger
		}
	}
}

// NewFileHandler creates a new file handler
func NewFileHandler(uploadsDir string, opts ...FileOption) *FileHandler {
	fh := &FileHandler{
		uploadsDir: uploadsDir,
		maxSize:    DefaultMaxUploadSize,
		allowed:    extensionSet(DefaultExtensions),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(fh)
	}
	fh.logger = fh.logger.With(slog.String("component", "ingestion"))
	return fh
}

// Dir returns the uploads directory
func (fh *FileHandler) Dir() string {
	return fh.uploadsDir
}

// SaveUploadedFile stores content under a fresh submission ID and returns the
// saved path. The extension and sniffed content type must both be allowed.
func (fh *FileHandler) SaveUploadedFile(filename string, content io.Reader) (string, error) {
	name := filepath.Base(filepath.Clean(filename))
	ext := strings.ToLower(filepath.Ext(name))
	if !fh.allowed[ext] {
		return "", fmt.Errorf("%w: extension %q", ErrUnsupportedFile, ext)
	}

	data, err := io.ReadAll(io.LimitReader(content, fh.maxSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > fh.maxSize {
		return "", fmt.Errorf("%w: %s exceeds %d bytes", ErrFileTooLarge, name, fh.maxSize)
	}

	mime := mimetype.Detect(data).String()
	if !allowedMIMEFor(mime, ext) {
		return "", fmt.Errorf("%w: %s looks like %s", ErrUnsupportedFile, name, mime)
	}

	dir := filepath.Join(fh.uploadsDir, uuid.NewString())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create uploads directory: %w", err)
	}

	filePath := filepath.Join(dir, name)
	file, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	fh.logger.Debug("upload saved", slog.String("file", name), slog.String("mime", mime))
	return filePath, nil
}

// Ingest saves an upload and extracts its text into a submission
func (fh *FileHandler) Ingest(filename string, content io.Reader) (models.CandidateSubmission, error) {
	path, err := fh.SaveUploadedFile(filename, content)
	if err != nil {
		return models.CandidateSubmission{}, err
	}

	sub, err := submissionFromPath(path)
	if err != nil {
		_ = os.RemoveAll(filepath.Dir(path))
		return models.CandidateSubmission{}, err
	}
	return sub, nil
}

// LoadSubmissions reads every stored upload. Files whose text cannot be
// extracted are logged and skipped. Submissions are ordered by file name.
func (fh *FileHandler) LoadSubmissions() ([]models.CandidateSubmission, error) {
	entries, err := os.ReadDir(fh.uploadsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []models.CandidateSubmission{}, nil
		}
		return nil, fmt.Errorf("failed to read uploads directory: %w", err)
	}

	subs := make([]models.CandidateSubmission, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := uuid.Parse(entry.Name()); err != nil {
			continue
		}

		dir := filepath.Join(fh.uploadsDir, entry.Name())
		files, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", dir, err)
		}
		for _, f := range files {
			if f.IsDir() || !fh.allowed[strings.ToLower(filepath.Ext(f.Name()))] {
				continue
			}
			sub, err := submissionFromPath(filepath.Join(dir, f.Name()))
			if err != nil {
				fh.logger.Warn("skipping upload", slog.String("file", f.Name()), slog.String("error", err.Error()))
				continue
			}
			subs = append(subs, sub)
		}
	}

	sort.SliceStable(subs, func(i, j int) bool {
		if subs[i].Name != subs[j].Name {
			return subs[i].Name < subs[j].Name
		}
		return subs[i].ID < subs[j].ID
	})
	return subs, nil
}

// Remove deletes the stored upload of a submission. Paths outside the
// uploads directory are left alone.
func (fh *FileHandler) Remove(sub models.CandidateSubmission) error {
	if sub.SourcePath == "" {
		return nil
	}
	dir := filepath.Dir(sub.SourcePath)
	rel, err := filepath.Rel(fh.uploadsDir, dir)
	if err != nil || rel != sub.ID {
		return fmt.Errorf("%s is not a stored upload", sub.SourcePath)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove upload: %w", err)
	}
	return nil
}

// ClearUploads removes all files from the uploads directory
func (fh *FileHandler) ClearUploads() error {
	if err := os.RemoveAll(fh.uploadsDir); err != nil {
		return fmt.Errorf("failed to clear uploads directory: %w", err)
	}
	return os.MkdirAll(fh.uploadsDir, 0755)
}

// submissionFromPath builds a submission from <uploads>/<id>/<name>.<ext>
func submissionFromPath(path string) (models.CandidateSubmission, error) {
	text, err := ExtractText(path)
	if err != nil {
		return models.CandidateSubmission{}, err
	}

	base := filepath.Base(path)
	return models.CandidateSubmission{
		ID:         filepath.Base(filepath.Dir(path)),
		Name:       strings.TrimSuffix(base, filepath.Ext(base)),
		ResumeText: text,
		SourcePath: path,
	}, nil
}

func extensionSet(exts []string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = true
	}
	return set
}

// allowedMIMEFor checks a sniffed content type against the file extension
func allowedMIMEFor(m, ext string) bool {
	m = strings.ToLower(m)
	switch ext {
	case ".txt":
		return strings.HasPrefix(m, "text/")
	case ".pdf":
		return m == "application/pdf"
	case ".docx":
		return m == "application/vnd.openxmlformats-officedocument.wordprocessingml.document" ||
			m == "application/zip"
	case ".doc":
		return m == "application/msword" || m == "application/x-ole-storage"
	}
	return false
}
