package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/linkup/linkup/backend/go-services/internal/apperr"
	"github.com/linkup/linkup/backend/go-services/internal/cache"
	"github.com/linkup/linkup/backend/go-services/internal/events"
	"github.com/linkup/linkup/backend/go-services/internal/models"
	"github.com/linkup/linkup/backend/go-services/internal/pagination"
	"github.com/linkup/linkup/backend/go-services/pkg/logger"
)

const (
	msgInternal      = "Internal server error"
	msgInvalidCursor = "Invalid cursor"
	msgNotFound      = "Notification not found"
)

// cancels maps a retracting event to the type of the notification it removes.
var cancels = map[events.Type]events.Type{
	events.DeleteLike:    events.AddLike,
	events.DeleteComment: events.AddComment,
	events.CancelRequest: events.SentRequest,
}

// Pusher delivers a stored notification to a live client.
type Pusher interface {
	Push(userID string, n *Notification)
}

// ActorDirectory resolves display info for the users who caused notifications.
type ActorDirectory interface {
	GetUsers(ctx context.Context, userIDs []string) ([]models.UserSummary, error)
}

type Service struct {
	repo   Repository
	cache  *cache.Cache
	pusher Pusher
	actors ActorDirectory
	now    func() time.Time
}

// NewService wires the notification service. pusher and actors may be nil.
func NewService(repo Repository, c *cache.Cache, pusher Pusher, actors ActorDirectory) *Service {
	return &Service{repo: repo, cache: c, pusher: pusher, actors: actors, now: time.Now}
}

func internal(op string, err error) error {
	logger.Errorw("notification store failure", "op", op, "err", err)
	return apperr.Internal(msgInternal, err)
}

func (s *Service) invalidate(ctx context.Context, userID string) {
	s.cache.Invalidate(ctx, cache.Notifications(userID), cache.UnreadNotificationCount(userID))
}

// Handle applies one event from the notification channel. It is the
// events.Handler of the notification service.
func (s *Service) Handle(ctx context.Context, e events.Event) {
	if e.UserID == "" || !e.Type.Valid() {
		logger.Warnw("dropping notification event", "type", e.Type, "userID", e.UserID)
		return
	}
	if added, ok := cancels[e.Type]; ok {
		n, err := s.repo.DeleteMatching(ctx, Match{
			UserID:        e.UserID,
			ActorID:       e.ActorID,
			Type:          added,
			EntityID:      e.EntityID,
			ChildEntityID: e.ChildEntityID,
		})
		if err != nil {
			logger.Errorw("notification delete failed", "type", e.Type, "userID", e.UserID, "err", err)
			return
		}
		if n > 0 {
			s.invalidate(ctx, e.UserID)
		}
		return
	}

	n := &Notification{
		UserID:        e.UserID,
		ActorID:       e.ActorID,
		Type:          e.Type,
		Message:       e.Message,
		EntityType:    e.EntityType,
		EntityID:      e.EntityID,
		ChildEntityID: e.ChildEntityID,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		logger.Errorw("notification store failed", "type", e.Type, "userID", e.UserID, "err", err)
		return
	}
	s.invalidate(ctx, e.UserID)
	if s.pusher != nil {
		s.withActors(ctx, []*Notification{n})
		s.pusher.Push(e.UserID, n)
	}
}

// withActors fills Actor on each notification. Lookup failures leave the
// actors empty; the ids are still there for the client.
func (s *Service) withActors(ctx context.Context, ns []*Notification) {
	if s.actors == nil || len(ns) == 0 {
		return
	}
	seen := map[string]bool{}
	ids := []string{}
	for _, n := range ns {
		if n.ActorID != "" && !seen[n.ActorID] {
			seen[n.ActorID] = true
			ids = append(ids, n.ActorID)
		}
	}
	if len(ids) == 0 {
		return
	}
	users, err := s.actors.GetUsers(ctx, ids)
	if err != nil {
		logger.Warnw("actor lookup failed", "count", len(ids), "err", err)
		return
	}
	byID := make(map[string]*models.UserSummary, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}
	for _, n := range ns {
		n.Actor = byID[n.ActorID]
	}
}

func (s *Service) List(ctx context.Context, userID, rawCursor string) (pagination.Page[Notification], error) {
	cur, err := ObjectIDs.Parse(rawCursor)
	if err != nil {
		return pagination.Page[Notification]{}, apperr.Validation(msgInvalidCursor)
	}
	k := cache.Notifications(userID)
	if !ObjectIDs.IsFirst(cur, s.now()) {
		k = cache.Key{}
	}
	items, err := cache.ReadThrough(ctx, s.cache, k, func(ctx context.Context) ([]Notification, error) {
		list, err := s.repo.List(ctx, userID, cur, pagination.PageSize)
		if errors.Is(err, pagination.ErrInvalidCursor) {
			return nil, apperr.Validation(msgInvalidCursor)
		}
		if err != nil {
			return nil, internal("list", err)
		}
		ptrs := make([]*Notification, len(list))
		for i := range list {
			ptrs[i] = &list[i]
		}
		s.withActors(ctx, ptrs)
		return list, nil
	})
	if err != nil {
		return pagination.Page[Notification]{}, err
	}
	return pagination.NewPage(items, pagination.PageSize, notificationCursor), nil
}

func (s *Service) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return cache.CountThrough(ctx, s.cache, cache.UnreadNotificationCount(userID), func(ctx context.Context) (int64, error) {
		n, err := s.repo.CountUnread(ctx, userID)
		if err != nil {
			return 0, internal("count unread", err)
		}
		return n, nil
	})
}

func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	err := s.repo.MarkRead(ctx, userID, id)
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound(msgNotFound)
	}
	if err != nil {
		return internal("mark read", err)
	}
	s.invalidate(ctx, userID)
	return nil
}
