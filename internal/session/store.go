// Package session stores screening sessions between requests.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fmuoria/resume-screener/internal/models"
)

// ErrNotFound is returned when no session exists for an ID
var ErrNotFound = errors.New("session not found")

// Store is keyed session storage. Implementations return copies, so callers
// must Put a session again after changing it.
type Store interface {
	Get(ctx context.Context, id string) (*models.Session, error)
	Put(ctx context.Context, s *models.Session) error
	Delete(ctx context.Context, id string) error
}

func encode(s *models.Session) ([]byte, error) {
	if s == nil || s.ID == "" {
		return nil, errors.New("session has no ID")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session %s: %w", s.ID, err)
	}
	return data, nil
}

func decode(id string, data []byte) (*models.Session, error) {
	var s models.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return &s, nil
}
