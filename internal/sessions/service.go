package sessions

import (
	"context"
	"errors"
	"fmt"

	"github.com/linkup/linkup/backend/go-services/internal/tokens"
	"github.com/linkup/linkup/backend/go-services/pkg/logger"
	"github.com/linkup/linkup/backend/go-services/pkg/metrics"
)

// Service wraps repository operations with the refresh token lifecycle:
// raw tokens go in and out, only their hashes reach the repository.
type Service struct {
	repo      Repository
	newSecret func() (string, error)
}

func NewService(r Repository) *Service {
	return &Service{repo: r, newSecret: tokens.GenerateOpaqueSecret}
}

// CreateSession stores a new refresh session and returns the raw refresh token.
func (s *Service) CreateSession(ctx context.Context, userID string) (string, error) {
	refresh, err := s.newSecret()
	if err != nil {
		return "", err
	}
	if err := s.repo.Create(ctx, tokens.Hash(refresh), Session{UserID: userID}); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return refresh, nil
}

// Resolve returns the session behind a raw refresh token or ErrSessionNotFound.
func (s *Service) Resolve(ctx context.Context, refresh string) (*Session, error) {
	sess, err := s.repo.Get(ctx, tokens.Hash(refresh))
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Rotate exchanges refresh for a new refresh token owned by the same user.
// A refresh token that was already rotated out or revoked yields
// ErrSessionNotFound, which is how replays are detected.
func (s *Service) Rotate(ctx context.Context, refresh string) (userID, next string, err error) {
	oldHash := tokens.Hash(refresh)
	sess, err := s.repo.Get(ctx, oldHash)
	if err != nil {
		metrics.SessionRotations.WithLabelValues("error").Inc()
		return "", "", err
	}
	if sess == nil {
		metrics.SessionRotations.WithLabelValues("rejected").Inc()
		return "", "", ErrSessionNotFound
	}
	next, err = s.newSecret()
	if err != nil {
		metrics.SessionRotations.WithLabelValues("error").Inc()
		return "", "", err
	}
	ok, err := s.repo.Rotate(ctx, sess.UserID, oldHash, tokens.Hash(next))
	if err != nil {
		metrics.SessionRotations.WithLabelValues("error").Inc()
		return "", "", fmt.Errorf("rotate session: %w", err)
	}
	if !ok {
		// lost the race against a concurrent refresh or logout
		metrics.SessionRotations.WithLabelValues("rejected").Inc()
		return "", "", ErrSessionNotFound
	}
	metrics.SessionRotations.WithLabelValues("ok").Inc()
	return sess.UserID, next, nil
}

// Revoke deletes the session behind refresh. Unknown tokens are not an error.
func (s *Service) Revoke(ctx context.Context, refresh string) error {
	hash := tokens.Hash(refresh)
	sess, err := s.repo.Get(ctx, hash)
	if err != nil && !errors.Is(err, ErrCorruptSession) {
		return err
	}
	if sess == nil {
		if err != nil {
			// corrupt payload: drop the key, the set entry expires with the set
			return s.repo.Delete(ctx, "", hash)
		}
		return nil
	}
	return s.repo.Delete(ctx, sess.UserID, hash)
}

// RevokeAll ends every session of userID, e.g. after a password change.
func (s *Service) RevokeAll(ctx context.Context, userID string) error {
	n, err := s.repo.DeleteAll(ctx, userID)
	if err != nil {
		return err
	}
	logger.Infof("revoked %d sessions for user %s", n, userID)
	return nil
}
