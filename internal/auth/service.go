// Package auth issues and rotates the cookie session: login, registration,
// refresh rotation and logout.
package auth

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/linkup/linkup/backend/go-services/internal/apperr"
	"github.com/linkup/linkup/backend/go-services/internal/events"
	"github.com/linkup/linkup/backend/go-services/internal/models"
	"github.com/linkup/linkup/backend/go-services/internal/sessions"
	"github.com/linkup/linkup/backend/go-services/internal/tokens"
	"github.com/linkup/linkup/backend/go-services/internal/userclient"
	"github.com/linkup/linkup/backend/go-services/pkg/logger"
	"github.com/linkup/linkup/backend/go-services/pkg/metrics"
)

const (
	msgInvalidCredentials = "Invalid credentials"
	msgLocked             = "Too many failed attempts, try after some time"
	msgRefreshMissing     = "Refresh token missing"
	msgInvalidToken       = "Invalid token"
	msgInterrupted        = "Service interrupted, please login"
	msgEmailTaken         = "Email already exist"
	msgProfileReminder    = "Successfully user registered, Please complete your profile"
)

// UserDirectory is the user service as seen from auth.
type UserDirectory interface {
	// Credentials returns userclient.ErrNotFound for unknown emails.
	Credentials(ctx context.Context, email string) (models.Credentials, error)
	// RegisterUser returns userclient.ErrEmailTaken for duplicates.
	RegisterUser(ctx context.Context, name, email, hashedPassword string) (string, error)
}

// AttemptLimiter bounds failed password checks per user.
type AttemptLimiter interface {
	Blocked(ctx context.Context, userID string) (bool, error)
	Fail(ctx context.Context, userID string) (int64, error)
	Reset(ctx context.Context, userID string) error
}

// Tokens are the three secrets handed to the browser as cookies.
type Tokens struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	CsrfToken    string
}

type Service struct {
	users    UserDirectory
	sessions *sessions.Service
	issuer   *tokens.Issuer
	limiter  AttemptLimiter
	events   events.Publisher
	cost     int
}

// NewService wires the auth flows. limiter and pub may be nil.
func NewService(users UserDirectory, sess *sessions.Service, issuer *tokens.Issuer, limiter AttemptLimiter, pub events.Publisher) *Service {
	return &Service{users: users, sessions: sess, issuer: issuer, limiter: limiter, events: pub, cost: bcrypt.DefaultCost}
}

// Register creates the account through the user service and opens a session.
func (s *Service) Register(ctx context.Context, name, email, password string) (*Tokens, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, apperr.Internal("Internal server error", err)
	}
	userID, err := s.users.RegisterUser(ctx, name, email, string(hash))
	if err != nil {
		if errors.Is(err, userclient.ErrEmailTaken) {
			return nil, apperr.Conflict(http.StatusBadRequest, msgEmailTaken)
		}
		logger.Errorw("user registration failed", "err", err)
		return nil, apperr.Internal("Internal server error", err)
	}
	t, err := s.issue(ctx, userID)
	if err != nil {
		return nil, err
	}
	events.Emit(ctx, s.events, events.Event{
		UserID:     userID,
		ActorID:    userID,
		Type:       events.Profile,
		Message:    msgProfileReminder,
		EntityType: events.EntityUser,
		EntityID:   events.Ref(userID),
	})
	return t, nil
}

// Login checks the password and opens a session. Locked accounts are
// refused before the password is compared.
func (s *Service) Login(ctx context.Context, email, password string) (*Tokens, error) {
	creds, err := s.users.Credentials(ctx, email)
	if err != nil {
		if errors.Is(err, userclient.ErrNotFound) {
			return nil, apperr.Auth(http.StatusUnauthorized, msgInvalidCredentials)
		}
		logger.Errorw("credential lookup failed", "err", err)
		return nil, apperr.Internal("Internal server error", err)
	}

	if s.limiter != nil {
		blocked, err := s.limiter.Blocked(ctx, creds.UserID)
		if err != nil {
			logger.Warnw("login limiter read failed", "userID", creds.UserID, "err", err)
		}
		if blocked {
			metrics.LoginLockouts.Inc()
			return nil, apperr.Auth(http.StatusForbidden, msgLocked)
		}
	}

	if bcrypt.CompareHashAndPassword([]byte(creds.HashedPassword), []byte(password)) != nil {
		if s.limiter != nil {
			if _, err := s.limiter.Fail(ctx, creds.UserID); err != nil {
				logger.Warnw("login limiter write failed", "userID", creds.UserID, "err", err)
			}
		}
		return nil, apperr.Auth(http.StatusUnauthorized, msgInvalidCredentials)
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, creds.UserID); err != nil {
			logger.Warnw("login limiter reset failed", "userID", creds.UserID, "err", err)
		}
	}
	return s.issue(ctx, creds.UserID)
}

// Refresh rotates the refresh token and mints a fresh access/csrf pair.
func (s *Service) Refresh(ctx context.Context, refresh string) (*Tokens, error) {
	if refresh == "" {
		return nil, apperr.Auth(http.StatusUnauthorized, msgRefreshMissing)
	}
	userID, next, err := s.sessions.Rotate(ctx, refresh)
	if err != nil {
		if errors.Is(err, sessions.ErrSessionNotFound) {
			return nil, apperr.Auth(http.StatusUnauthorized, msgInvalidToken)
		}
		logger.Errorw("refresh rotation failed", "err", err)
		return nil, apperr.Internal(msgInterrupted, err)
	}
	csrf, access, err := s.accessPair(userID)
	if err != nil {
		return nil, apperr.Internal(msgInterrupted, err)
	}
	return &Tokens{UserID: userID, AccessToken: access, RefreshToken: next, CsrfToken: csrf}, nil
}

// Logout revokes the session behind refresh. Failures are only logged:
// the caller clears cookies regardless.
func (s *Service) Logout(ctx context.Context, refresh string) {
	if refresh == "" {
		return
	}
	if err := s.sessions.Revoke(ctx, refresh); err != nil {
		logger.Warnw("logout revoke failed", "err", err)
	}
}

func (s *Service) issue(ctx context.Context, userID string) (*Tokens, error) {
	csrf, access, err := s.accessPair(userID)
	if err != nil {
		return nil, apperr.Internal("Internal server error", err)
	}
	refresh, err := s.sessions.CreateSession(ctx, userID)
	if err != nil {
		logger.Errorw("session create failed", "userID", userID, "err", err)
		return nil, apperr.Internal("Internal server error", err)
	}
	return &Tokens{UserID: userID, AccessToken: access, RefreshToken: refresh, CsrfToken: csrf}, nil
}

func (s *Service) accessPair(userID string) (csrf, access string, err error) {
	csrf, err = tokens.GenerateOpaqueSecret()
	if err != nil {
		return "", "", err
	}
	access, err = s.issuer.IssueAccessToken(userID, tokens.Hash(csrf))
	if err != nil {
		return "", "", err
	}
	return csrf, access, nil
}
