package ingestion

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/fmuoria/resume-screener/internal/models"
)

const gmailUser = "me"

// ErrNoMessages is returned when no message matches the search
var ErrNoMessages = errors.New("no matching messages")

// GmailHandler fetches resume attachments from a mailbox
type GmailHandler struct {
	service *gmail.Service
	files   *FileHandler
	logger  *slog.Logger
}

// GmailConfig locates the OAuth client credentials and cached token
type GmailConfig struct {
	CredentialsPath string
	TokenPath       string
	// AuthCode reads an authorization code when no cached token exists
	AuthCode func(authURL string) (string, error)
}

// NewGmailHandler creates a handler authorised with the installed-app OAuth flow
func NewGmailHandler(ctx context.Context, cfg GmailConfig, files *FileHandler, logger *slog.Logger) (*GmailHandler, error) {
	b, err := os.ReadFile(cfg.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	client, err := oauthClient(ctx, config, cfg)
	if err != nil {
		return nil, err
	}

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail client: %w", err)
	}
	return NewGmailHandlerWithService(srv, files, logger), nil
}

// NewGmailHandlerWithService wraps an existing Gmail service
func NewGmailHandlerWithService(srv *gmail.Service, files *FileHandler, logger *slog.Logger) *GmailHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GmailHandler{
		service: srv,
		files:   files,
		logger:  logger.With(slog.String("component", "gmail")),
	}
}

// oauthClient uses the cached token, running the web flow and caching the
// result when there is none
func oauthClient(ctx context.Context, config *oauth2.Config, cfg GmailConfig) (*http.Client, error) {
	tok, err := tokenFromFile(cfg.TokenPath)
	if err != nil {
		if cfg.AuthCode == nil {
			return nil, fmt.Errorf("no cached token at %s: %w", cfg.TokenPath, err)
		}
		authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
		code, err := cfg.AuthCode(authURL)
		if err != nil {
			return nil, fmt.Errorf("unable to read authorization code: %w", err)
		}
		tok, err = config.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("unable to retrieve token from web: %w", err)
		}
		if err := saveToken(cfg.TokenPath, tok); err != nil {
			return nil, err
		}
	}
	return config.Client(ctx, tok), nil
}

// tokenFromFile retrieves a token from a local file
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

// saveToken saves a token to a file path
func saveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache oauth token: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// FetchAttachments ingests the resume attachments of messages with the given
// subject. Each attachment is named after its sender. Attachments that fail
// to download or extract are logged and skipped.
func (gh *GmailHandler) FetchAttachments(ctx context.Context, subject string) ([]models.CandidateSubmission, error) {
	query := fmt.Sprintf("subject:%q has:attachment", subject)

	r, err := gh.service.Users.Messages.List(gmailUser).Q(query).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve messages: %w", err)
	}
	if len(r.Messages) == 0 {
		return nil, fmt.Errorf("%w with subject %q", ErrNoMessages, subject)
	}

	var subs []models.CandidateSubmission
	for _, msg := range r.Messages {
		message, err := gh.service.Users.Messages.Get(gmailUser, msg.Id).Context(ctx).Do()
		if err != nil {
			if ctx.Err() != nil {
				return subs, ctx.Err()
			}
			gh.logger.WarnContext(ctx, "unable to retrieve message", slog.String("message", msg.Id), slog.String("error", err.Error()))
			continue
		}

		sender := extractSenderName(message)
		for _, part := range attachmentParts(message.Payload) {
			sub, err := gh.ingestPart(ctx, msg.Id, sender, part)
			if err != nil {
				if ctx.Err() != nil {
					return subs, ctx.Err()
				}
				gh.logger.WarnContext(ctx, "skipping attachment",
					slog.String("message", msg.Id),
					slog.String("file", part.Filename),
					slog.String("error", err.Error()),
				)
				continue
			}
			gh.logger.InfoContext(ctx, "attachment ingested", slog.String("candidate", sub.Name))
			subs = append(subs, sub)
		}
	}
	return subs, nil
}

func (gh *GmailHandler) ingestPart(ctx context.Context, messageID, sender string, part *gmail.MessagePart) (models.CandidateSubmission, error) {
	ext := strings.ToLower(filepath.Ext(part.Filename))
	if !gh.files.allowed[ext] {
		return models.CandidateSubmission{}, fmt.Errorf("%w: extension %q", ErrUnsupportedFile, ext)
	}

	attachment, err := gh.service.Users.Messages.Attachments.Get(gmailUser, messageID, part.Body.AttachmentId).Context(ctx).Do()
	if err != nil {
		return models.CandidateSubmission{}, fmt.Errorf("unable to retrieve attachment: %w", err)
	}

	data, err := decodeAttachment(attachment.Data)
	if err != nil {
		return models.CandidateSubmission{}, fmt.Errorf("unable to decode attachment: %w", err)
	}
	return gh.files.Ingest(sender+ext, bytes.NewReader(data))
}

// attachmentParts walks nested multipart payloads
func attachmentParts(part *gmail.MessagePart) []*gmail.MessagePart {
	if part == nil {
		return nil
	}
	var out []*gmail.MessagePart
	if part.Filename != "" && part.Body != nil && part.Body.AttachmentId != "" {
		out = append(out, part)
	}
	for _, p := range part.Parts {
		out = append(out, attachmentParts(p)...)
	}
	return out
}

// decodeAttachment accepts padded and unpadded URL-safe base64
func decodeAttachment(s string) ([]byte, error) {
	if data, err := base64.URLEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawURLEncoding.DecodeString(s)
}

// extractSenderName extracts the sender's name from email headers
func extractSenderName(message *gmail.Message) string {
	if message.Payload == nil {
		return "Unknown"
	}
	for _, header := range message.Payload.Headers {
		if !strings.EqualFold(header.Name, "From") {
			continue
		}
		// Parse "Name <email@example.com>" format
		from := header.Value
		if idx := strings.Index(from, "<"); idx > 0 {
			if name := safeName(strings.Trim(strings.TrimSpace(from[:idx]), `"`)); name != "" {
				return name
			}
		}
		// If no name, use email prefix
		from = strings.TrimPrefix(strings.TrimSpace(from), "<")
		if idx := strings.Index(from, "@"); idx > 0 {
			return safeName(from[:idx])
		}
		return "Unknown"
	}
	return "Unknown"
}

// safeName drops characters that cannot appear in a file name
func safeName(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', 0:
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}
