package sessions

import (
	"context"
	"errors"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrCorruptSession  = errors.New("corrupt session payload")
)

// Repository persists sessions keyed by the hash of their refresh token,
// together with the per-user set of live hashes.
type Repository interface {
	Create(ctx context.Context, hash string, s Session) error
	// Get returns nil, nil when no session is stored under hash.
	Get(ctx context.Context, hash string) (*Session, error)
	// Rotate replaces oldHash by newHash for userID. It reports false when
	// oldHash was already gone.
	Rotate(ctx context.Context, userID, oldHash, newHash string) (bool, error)
	Delete(ctx context.Context, userID, hash string) error
	DeleteAll(ctx context.Context, userID string) (int, error)
	Hashes(ctx context.Context, userID string) ([]string, error)
}
