package users

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/linkup/linkup/backend/go-services/internal/apperr"
	"github.com/linkup/linkup/backend/go-services/internal/cache"
	"github.com/linkup/linkup/backend/go-services/internal/events"
	"github.com/linkup/linkup/backend/go-services/internal/models"
	"github.com/linkup/linkup/backend/go-services/internal/pagination"
	"github.com/linkup/linkup/backend/go-services/pkg/logger"
)

const (
	// MaxPictureSize bounds profile picture uploads.
	MaxPictureSize = 5 << 20
	picturePrefix  = "profile-pictures/"
)

var pictureTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
}

const (
	msgNotFound        = "Invalid ID or resource not found"
	msgInternal        = "Internal server error"
	msgSelfRequest     = "Sender and receiver can not be same"
	msgSelfAccept      = "Sender and accepter can not be same"
	msgSelfReject      = "User can not receive self request"
	msgSelfCancel      = "User can not cancel self request"
	msgSelfDelete      = "User cannot delete connection with self"
	msgRequestExists   = "Request or connection already exist"
	msgNoPending       = "No pending request"
	msgRequestMissing  = "Connection request not exist"
	msgNotConnected    = "No accepted connection exists between these users"
	msgWrongPassword   = "Old password is incorrect"
	msgSamePassword    = "New password must differ from the old one"
	msgPictureType     = "Only jpeg and png images are allowed"
	msgPictureSize     = "Image must be 5MB or smaller"
	msgPictureMissing  = "Profile picture is required"
	msgInvalidCursor   = "Invalid cursor"
	msgWorkRange       = "End date must be after start date"
	msgEducationRange  = "End date can not be before start date"
	msgSentRequest     = "sent you a connection request"
	msgAcceptedRequest = "accepted your connection request"
)

// PictureStore is the object storage behind profile pictures.
type PictureStore interface {
	UploadFile(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	DownloadFile(ctx context.Context, key string) (io.ReadCloser, string, error)
	RemoveFile(ctx context.Context, key string) error
}

// SessionRevoker drops every refresh session of a user.
type SessionRevoker interface {
	RevokeAll(ctx context.Context, userID string) error
}

// Basic is the payload of GET /users/me.
type Basic struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PictureURL   string `json:"profilePictureURL"`
	ThumbnailURL string `json:"thumbnailURL"`
}

// Service holds the user, profile and connection flows.
type Service struct {
	repo     Repository
	cache    *cache.Cache
	urls     PictureURLs
	pictures PictureStore
	sessions SessionRevoker
	events   events.Publisher
	cost     int
	now      func() time.Time
}

// NewService wires the user flows; pictures, sessions and pub may be nil.
func NewService(repo Repository, c *cache.Cache, urls PictureURLs, pictures PictureStore, sessions SessionRevoker, pub events.Publisher) *Service {
	return &Service{
		repo:     repo,
		cache:    c,
		urls:     urls,
		pictures: pictures,
		sessions: sessions,
		events:   pub,
		cost:     bcrypt.DefaultCost,
		now:      time.Now,
	}
}

func internal(op string, err error) error {
	logger.Errorw("user store failure", "op", op, "err", err)
	return apperr.Internal(msgInternal, err)
}

// Me returns the caller's basic info.
func (s *Service) Me(ctx context.Context, userID string) (*Basic, error) {
	b, err := cache.ReadThrough(ctx, s.cache, cache.UserBasic(userID), func(ctx context.Context) (*Basic, error) {
		u, err := s.repo.Get(ctx, userID)
		if err != nil {
			return nil, internal("me", err)
		}
		if u == nil {
			return nil, apperr.NotFound(msgNotFound)
		}
		return &Basic{ID: u.ID, Name: u.Name, Email: u.Email, PictureURL: u.PictureURL, ThumbnailURL: u.ThumbnailURL}, nil
	})
	if err == nil && b == nil {
		return nil, apperr.NotFound(msgNotFound)
	}
	return b, err
}

// Profile returns the public profile with skills.
func (s *Service) Profile(ctx context.Context, userID string) (*models.User, error) {
	u, err := cache.ReadThrough(ctx, s.cache, cache.UserProfile(userID), func(ctx context.Context) (*models.User, error) {
		u, err := s.repo.Get(ctx, userID)
		if err != nil {
			return nil, internal("profile", err)
		}
		if u == nil {
			return nil, apperr.NotFound(msgNotFound)
		}
		return u, nil
	})
	if err == nil && u == nil {
		return nil, apperr.NotFound(msgNotFound)
	}
	return u, err
}

func (s *Service) UpdateBasicInfo(ctx context.Context, userID string, in BasicInfo) error {
	if err := s.repo.UpdateBasicInfo(ctx, userID, in); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return apperr.NotFound(msgNotFound)
		}
		return internal("update basic info", err)
	}
	s.invalidateDisplay(ctx, userID)
	return nil
}

func (s *Service) AddSkill(ctx context.Context, userID, name string, level *string) (*models.Skill, error) {
	sk, err := s.repo.AddSkill(ctx, userID, name, level)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, apperr.NotFound(msgNotFound)
		}
		return nil, internal("add skill", err)
	}
	s.cache.Invalidate(ctx, cache.UserProfile(userID))
	return sk, nil
}

func (s *Service) UpdateSkill(ctx context.Context, userID, skillID, name string, level *string) (*models.Skill, error) {
	sk, err := s.repo.UpdateSkill(ctx, userID, skillID, name, level)
	if err != nil {
		if errors.Is(err, ErrSkillNotFound) {
			return nil, apperr.NotFound(msgNotFound)
		}
		return nil, internal("update skill", err)
	}
	s.cache.Invalidate(ctx, cache.UserProfile(userID))
	return sk, nil
}

func (s *Service) DeleteSkill(ctx context.Context, userID, skillID string) error {
	if err := s.repo.DeleteSkill(ctx, userID, skillID); err != nil {
		if errors.Is(err, ErrSkillNotFound) {
			return apperr.NotFound(msgNotFound)
		}
		return internal("delete skill", err)
	}
	s.cache.Invalidate(ctx, cache.UserProfile(userID))
	return nil
}

// profileWrite maps a profile section write failure and, on success, drops
// the cached profile.
func (s *Service) profileWrite(ctx context.Context, userID, op string, err error) error {
	if err != nil {
		if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrEntryNotFound) {
			return apperr.NotFound(msgNotFound)
		}
		return internal(op, err)
	}
	s.cache.Invalidate(ctx, cache.UserProfile(userID))
	return nil
}

func (s *Service) AddWork(ctx context.Context, userID string, in WorkInput) (*models.WorkExperience, error) {
	if !in.validRange() {
		return nil, apperr.Validation(msgWorkRange)
	}
	w, err := s.repo.AddWork(ctx, userID, in)
	if err := s.profileWrite(ctx, userID, "add work", err); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *Service) UpdateWork(ctx context.Context, userID, id string, in WorkInput) (*models.WorkExperience, error) {
	if !in.validRange() {
		return nil, apperr.Validation(msgWorkRange)
	}
	w, err := s.repo.UpdateWork(ctx, userID, id, in)
	if err := s.profileWrite(ctx, userID, "update work", err); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *Service) DeleteWork(ctx context.Context, userID, id string) error {
	return s.profileWrite(ctx, userID, "delete work", s.repo.DeleteWork(ctx, userID, id))
}

func (s *Service) AddEducation(ctx context.Context, userID string, in EducationInput) (*models.Education, error) {
	if !in.validRange() {
		return nil, apperr.Validation(msgEducationRange)
	}
	e, err := s.repo.AddEducation(ctx, userID, in)
	if err := s.profileWrite(ctx, userID, "add education", err); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Service) UpdateEducation(ctx context.Context, userID, id string, in EducationInput) (*models.Education, error) {
	if !in.validRange() {
		return nil, apperr.Validation(msgEducationRange)
	}
	e, err := s.repo.UpdateEducation(ctx, userID, id, in)
	if err := s.profileWrite(ctx, userID, "update education", err); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Service) DeleteEducation(ctx context.Context, userID, id string) error {
	return s.profileWrite(ctx, userID, "delete education", s.repo.DeleteEducation(ctx, userID, id))
}

func (s *Service) AddAward(ctx context.Context, userID string, in AwardInput) (*models.Award, error) {
	a, err := s.repo.AddAward(ctx, userID, in)
	if err := s.profileWrite(ctx, userID, "add award", err); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) UpdateAward(ctx context.Context, userID, id string, in AwardInput) (*models.Award, error) {
	a, err := s.repo.UpdateAward(ctx, userID, id, in)
	if err := s.profileWrite(ctx, userID, "update award", err); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) DeleteAward(ctx context.Context, userID, id string) error {
	return s.profileWrite(ctx, userID, "delete award", s.repo.DeleteAward(ctx, userID, id))
}

// ChangePassword replaces the password and signs the user out everywhere.
// A revocation failure is logged; the new password is already in place.
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	hash, err := s.repo.PasswordHash(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return apperr.NotFound(msgNotFound)
		}
		return internal("password lookup", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(oldPassword)) != nil {
		return apperr.Auth(http.StatusUnauthorized, msgWrongPassword)
	}
	if oldPassword == newPassword {
		return apperr.Validation(msgSamePassword)
	}
	next, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cost)
	if err != nil {
		return apperr.Internal(msgInternal, err)
	}
	if err := s.repo.SetPassword(ctx, userID, string(next)); err != nil {
		return internal("set password", err)
	}
	if s.sessions != nil {
		if err := s.sessions.RevokeAll(ctx, userID); err != nil {
			logger.Errorw("session revocation after password change failed", "userID", userID, "err", err)
		}
	}
	return nil
}

// UpdatePicture stores a new profile picture and returns its public URL.
func (s *Service) UpdatePicture(ctx context.Context, userID string, r io.Reader, size int64, contentType string) (string, error) {
	if r == nil || size <= 0 {
		return "", apperr.Validation(msgPictureMissing)
	}
	ext, ok := pictureTypes[contentType]
	if !ok {
		return "", apperr.Validation(msgPictureType)
	}
	if size > MaxPictureSize {
		return "", apperr.Validation(msgPictureSize)
	}
	if s.pictures == nil {
		return "", apperr.Internal(msgInternal, errors.New("picture storage not configured"))
	}
	key := picturePrefix + uuid.NewString() + "." + ext
	if err := s.pictures.UploadFile(ctx, key, r, size, contentType); err != nil {
		return "", internal("picture upload", err)
	}
	old, err := s.repo.SetPictureKey(ctx, userID, &key)
	if err != nil {
		s.removePicture(ctx, &key)
		if errors.Is(err, ErrUserNotFound) {
			return "", apperr.NotFound(msgNotFound)
		}
		return "", internal("set picture", err)
	}
	s.removePicture(ctx, old)
	s.invalidateDisplay(ctx, userID)
	return s.urls.URL(&key), nil
}

// DeletePicture falls back to the default picture.
func (s *Service) DeletePicture(ctx context.Context, userID string) error {
	old, err := s.repo.SetPictureKey(ctx, userID, nil)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return apperr.NotFound(msgNotFound)
		}
		return internal("clear picture", err)
	}
	s.removePicture(ctx, old)
	s.invalidateDisplay(ctx, userID)
	return nil
}

// Picture opens a stored picture by its public name.
func (s *Service) Picture(ctx context.Context, name string) (io.ReadCloser, string, error) {
	if !validPictureName(name) || s.pictures == nil {
		return nil, "", apperr.NotFound(msgNotFound)
	}
	rc, ct, err := s.pictures.DownloadFile(ctx, picturePrefix+name)
	if err != nil {
		logger.Warnw("picture download failed", "name", name, "err", err)
		return nil, "", apperr.NotFound(msgNotFound)
	}
	return rc, ct, nil
}

func pictureName(key string) string { return strings.TrimPrefix(key, picturePrefix) }

func validPictureName(name string) bool {
	ext := path.Ext(name)
	if ext != ".jpg" && ext != ".png" {
		return false
	}
	_, err := uuid.Parse(strings.TrimSuffix(name, ext))
	return err == nil
}

func (s *Service) removePicture(ctx context.Context, key *string) {
	if key == nil || *key == "" || s.pictures == nil {
		return
	}
	if err := s.pictures.RemoveFile(ctx, *key); err != nil {
		logger.Warnw("picture cleanup failed", "key", *key, "err", err)
	}
}

// invalidateDisplay follows a name or picture change: profile, basic info,
// own posts and the feeds that list them.
func (s *Service) invalidateDisplay(ctx context.Context, userID string) {
	keys := []cache.Key{cache.UserProfile(userID), cache.UserBasic(userID), cache.OwnPosts(userID)}
	keys = append(keys, cache.Feeds(ctx, s.repo, userID)...)
	s.cache.Invalidate(ctx, keys...)
}

// SendRequest opens a pending request from senderID to receiverID.
func (s *Service) SendRequest(ctx context.Context, senderID, receiverID string) error {
	if senderID == receiverID {
		return apperr.Validation(msgSelfRequest)
	}
	if err := s.repo.SendRequest(ctx, senderID, receiverID); err != nil {
		switch {
		case errors.Is(err, ErrRequestExists):
			return apperr.Conflict(http.StatusBadRequest, msgRequestExists)
		case errors.Is(err, ErrUserNotFound):
			return apperr.NotFound(msgNotFound)
		}
		return internal("send request", err)
	}
	s.cache.Invalidate(ctx, requestKeys(senderID, receiverID)...)
	events.Emit(ctx, s.events, events.Event{
		UserID:     receiverID,
		ActorID:    senderID,
		Type:       events.SentRequest,
		Message:    msgSentRequest,
		EntityType: events.EntityUser,
		EntityID:   events.Ref(senderID),
	})
	return nil
}

// AcceptRequest accepts the pending request sent by senderID to me.
func (s *Service) AcceptRequest(ctx context.Context, me, senderID string) error {
	if me == senderID {
		return apperr.Validation(msgSelfAccept)
	}
	if err := s.repo.AcceptRequest(ctx, me, senderID); err != nil {
		if errors.Is(err, ErrNoPendingRequest) {
			return apperr.Validation(msgNoPending)
		}
		return internal("accept request", err)
	}
	keys := requestKeys(senderID, me)
	keys = append(keys, connectionKeys(me, senderID)...)
	s.cache.Invalidate(ctx, keys...)
	events.Emit(ctx, s.events, events.Event{
		UserID:     senderID,
		ActorID:    me,
		Type:       events.AcceptRequest,
		Message:    msgAcceptedRequest,
		EntityType: events.EntityUser,
		EntityID:   events.Ref(me),
	})
	return nil
}

// RejectRequest drops the pending request sent by senderID to me.
func (s *Service) RejectRequest(ctx context.Context, me, senderID string) error {
	if me == senderID {
		return apperr.Validation(msgSelfReject)
	}
	if err := s.repo.DeleteRequest(ctx, senderID, me); err != nil {
		if errors.Is(err, ErrNoPendingRequest) {
			return apperr.NotFound(msgRequestMissing)
		}
		return internal("reject request", err)
	}
	s.cache.Invalidate(ctx, requestKeys(senderID, me)...)
	return nil
}

// CancelRequest withdraws the pending request me sent to receiverID.
func (s *Service) CancelRequest(ctx context.Context, me, receiverID string) error {
	if me == receiverID {
		return apperr.Validation(msgSelfCancel)
	}
	if err := s.repo.DeleteRequest(ctx, me, receiverID); err != nil {
		if errors.Is(err, ErrNoPendingRequest) {
			return apperr.NotFound(msgRequestMissing)
		}
		return internal("cancel request", err)
	}
	s.cache.Invalidate(ctx, requestKeys(me, receiverID)...)
	events.Emit(ctx, s.events, events.Event{
		UserID:     receiverID,
		ActorID:    me,
		Type:       events.CancelRequest,
		EntityType: events.EntityUser,
		EntityID:   events.Ref(me),
	})
	return nil
}

// RemoveConnection deletes an accepted connection between me and other.
func (s *Service) RemoveConnection(ctx context.Context, me, other string) error {
	if me == other {
		return apperr.Validation(msgSelfDelete)
	}
	if err := s.repo.DeleteConnection(ctx, me, other); err != nil {
		if errors.Is(err, ErrNotConnected) {
			return apperr.NotFound(msgNotConnected)
		}
		return internal("delete connection", err)
	}
	s.cache.Invalidate(ctx, connectionKeys(me, other)...)
	return nil
}

// requestKeys covers a pending request from sender to receiver changing state.
func requestKeys(senderID, receiverID string) []cache.Key {
	return []cache.Key{
		cache.UserReceivedConnection(receiverID),
		cache.UserReceivedConnectionCount(receiverID),
		cache.UserSentConnection(senderID),
		cache.UserSentConnectionCount(senderID),
		cache.UserSuggestion(senderID),
		cache.UserSuggestion(receiverID),
		cache.UserRelation(senderID, receiverID),
		cache.UserRelation(receiverID, senderID),
	}
}

// connectionKeys covers an accepted connection appearing or disappearing.
func connectionKeys(a, b string) []cache.Key {
	return []cache.Key{
		cache.UserConnection(a),
		cache.UserConnection(b),
		cache.UserConnectionCount(a),
		cache.UserConnectionCount(b),
		cache.UserSuggestion(a),
		cache.UserSuggestion(b),
		cache.UserRelation(a, b),
		cache.UserRelation(b, a),
		cache.FeedPosts(a),
		cache.FeedPosts(b),
	}
}

func (s *Service) Connections(ctx context.Context, userID, rawCursor string) (pagination.Page[Connection], error) {
	return s.page(ctx, cache.UserConnection(userID), rawCursor, func(ctx context.Context, cur pagination.Cursor) ([]Connection, error) {
		return s.repo.Connections(ctx, userID, cur, pagination.PageSize)
	})
}

func (s *Service) Received(ctx context.Context, userID, rawCursor string) (pagination.Page[Connection], error) {
	return s.page(ctx, cache.UserReceivedConnection(userID), rawCursor, func(ctx context.Context, cur pagination.Cursor) ([]Connection, error) {
		return s.repo.Received(ctx, userID, cur, pagination.PageSize)
	})
}

func (s *Service) Sent(ctx context.Context, userID, rawCursor string) (pagination.Page[Connection], error) {
	return s.page(ctx, cache.UserSentConnection(userID), rawCursor, func(ctx context.Context, cur pagination.Cursor) ([]Connection, error) {
		return s.repo.Sent(ctx, userID, cur, pagination.PageSize)
	})
}

// page serves one cursor page; only the first page goes through the cache.
func (s *Service) page(ctx context.Context, k cache.Key, rawCursor string, load func(context.Context, pagination.Cursor) ([]Connection, error)) (pagination.Page[Connection], error) {
	cur, err := pagination.UUID.Parse(rawCursor)
	if err != nil {
		return pagination.Page[Connection]{}, apperr.Validation(msgInvalidCursor)
	}
	if !pagination.UUID.IsFirst(cur, s.now()) {
		k = cache.Key{}
	}
	items, err := cache.ReadThrough(ctx, s.cache, k, func(ctx context.Context) ([]Connection, error) {
		items, err := load(ctx, cur)
		if err != nil {
			return nil, internal(fmt.Sprintf("list %s", k.Family), err)
		}
		return items, nil
	})
	if err != nil {
		return pagination.Page[Connection]{}, err
	}
	return pagination.NewPage(items, pagination.PageSize, connectionCursor), nil
}

func (s *Service) ConnectionCount(ctx context.Context, userID string) (int64, error) {
	return s.countThrough(ctx, cache.UserConnectionCount(userID), func(ctx context.Context) (int64, error) {
		return s.repo.CountConnections(ctx, userID)
	})
}

func (s *Service) ReceivedCount(ctx context.Context, userID string) (int64, error) {
	return s.countThrough(ctx, cache.UserReceivedConnectionCount(userID), func(ctx context.Context) (int64, error) {
		return s.repo.CountReceived(ctx, userID)
	})
}

func (s *Service) SentCount(ctx context.Context, userID string) (int64, error) {
	return s.countThrough(ctx, cache.UserSentConnectionCount(userID), func(ctx context.Context) (int64, error) {
		return s.repo.CountSent(ctx, userID)
	})
}

func (s *Service) countThrough(ctx context.Context, k cache.Key, load func(context.Context) (int64, error)) (int64, error) {
	n, err := cache.CountThrough(ctx, s.cache, k, load)
	if err != nil {
		return 0, internal("count "+k.Family, err)
	}
	return n, nil
}

func (s *Service) Suggestions(ctx context.Context, userID string) ([]models.UserSummary, error) {
	return cache.ReadThrough(ctx, s.cache, cache.UserSuggestion(userID), func(ctx context.Context) ([]models.UserSummary, error) {
		out, err := s.repo.Suggestions(ctx, userID, SuggestionLimit)
		if err != nil {
			return nil, internal("suggestions", err)
		}
		return out, nil
	})
}

// Relation describes how viewerID relates to otherID.
func (s *Service) Relation(ctx context.Context, viewerID, otherID string) (string, error) {
	if viewerID == otherID {
		return RelationSelf, nil
	}
	return cache.ReadThrough(ctx, s.cache, cache.UserRelation(viewerID, otherID), func(ctx context.Context) (string, error) {
		rel, err := s.repo.Relation(ctx, viewerID, otherID)
		if err != nil {
			return "", internal("relation", err)
		}
		return rel, nil
	})
}

// Internal API used by the auth and post services.

// Summary returns the display info of one user.
func (s *Service) Summary(ctx context.Context, userID string) (*models.UserSummary, error) {
	out, err := s.repo.Summaries(ctx, []string{userID})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrUserNotFound
	}
	return &out[0], nil
}

func (s *Service) Summaries(ctx context.Context, userIDs []string) ([]models.UserSummary, error) {
	return s.repo.Summaries(ctx, userIDs)
}

func (s *Service) ConnectionIDs(ctx context.Context, userID string) ([]string, error) {
	return s.repo.ConnectionIDs(ctx, userID)
}

// Credentials returns ErrUserNotFound for an unknown email.
func (s *Service) Credentials(ctx context.Context, email string) (*models.Credentials, error) {
	c, err := s.repo.Credentials(ctx, email)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrUserNotFound
	}
	return c, nil
}

// Register stores an account whose password the auth service already hashed.
func (s *Service) Register(ctx context.Context, name, email, hashedPassword string) (string, error) {
	return s.repo.Create(ctx, name, email, hashedPassword)
}
