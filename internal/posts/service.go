package posts

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/linkup/linkup/backend/go-services/internal/apperr"
	"github.com/linkup/linkup/backend/go-services/internal/cache"
	"github.com/linkup/linkup/backend/go-services/internal/events"
	"github.com/linkup/linkup/backend/go-services/internal/models"
	"github.com/linkup/linkup/backend/go-services/internal/pagination"
	"github.com/linkup/linkup/backend/go-services/pkg/logger"
)

const (
	msgPostNotFound    = "Post not found"
	msgLikeNotFound    = "Like not found"
	msgCommentNotFound = "Comment not found"
	msgAlreadyLiked    = "Already liked the post"
	msgInternal        = "Internal server error"
	msgInvalidCursor   = "Invalid cursor"
	msgLiked           = "liked your post"
	msgCommented       = "commented on your post"
)

// UserDirectory is what the post service needs from the user service.
type UserDirectory interface {
	GetUsers(ctx context.Context, userIDs []string) ([]models.UserSummary, error)
	ConnectionIDs(ctx context.Context, userID string) ([]string, error)
}

type Service struct {
	repo   Repository
	users  UserDirectory
	cache  *cache.Cache
	events events.Publisher
	now    func() time.Time
}

func NewService(repo Repository, users UserDirectory, c *cache.Cache, pub events.Publisher) *Service {
	return &Service{repo: repo, users: users, cache: c, events: pub, now: time.Now}
}

func internal(op string, err error) error {
	logger.Errorw("post store failure", "op", op, "err", err)
	return apperr.Internal(msgInternal, err)
}

func (s *Service) authors(ctx context.Context, ids []string) (map[string]*models.UserSummary, error) {
	out := map[string]*models.UserSummary{}
	if len(ids) == 0 {
		return out, nil
	}
	seen := map[string]bool{}
	uniq := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			uniq = append(uniq, id)
		}
	}
	users, err := s.users.GetUsers(ctx, uniq)
	if err != nil {
		logger.Errorw("user lookup failed", "count", len(uniq), "err", err)
		return nil, apperr.Internal(msgInternal, err)
	}
	for i := range users {
		out[users[i].ID] = &users[i]
	}
	return out, nil
}

// enrich attaches author display info to items. It runs after the cache
// read so cached payloads never hold names or picture URLs, which change
// under keys the user service cannot reach.
func enrich[T any](ctx context.Context, s *Service, items []T, author func(*T) (string, **models.UserSummary)) error {
	ids := make([]string, 0, len(items))
	for i := range items {
		id, _ := author(&items[i])
		ids = append(ids, id)
	}
	byID, err := s.authors(ctx, ids)
	if err != nil {
		return err
	}
	for i := range items {
		id, slot := author(&items[i])
		*slot = byID[id]
	}
	return nil
}

func postAuthor(p *Post) (string, **models.UserSummary)         { return p.UserID, &p.User }
func feedPostAuthor(p *FeedPost) (string, **models.UserSummary) { return p.UserID, &p.User }
func likeAuthor(l *Like) (string, **models.UserSummary)         { return l.UserID, &l.User }
func commentAuthor(c *Comment) (string, **models.UserSummary)   { return c.UserID, &c.User }

// viewerPosts adds the viewer's flags to posts.
func (s *Service) viewerPosts(ctx context.Context, viewerID string, posts []Post) ([]FeedPost, error) {
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	liked, err := s.repo.LikedBy(ctx, viewerID, ids)
	if err != nil {
		return nil, internal("liked by", err)
	}
	out := make([]FeedPost, 0, len(posts))
	for _, p := range posts {
		out = append(out, FeedPost{Post: p, ViewerLiked: liked[p.ID], ViewerPost: p.UserID == viewerID})
	}
	return out, nil
}

func (s *Service) cursor(raw string, k cache.Key) (pagination.Cursor, cache.Key, error) {
	cur, err := pagination.UUID.Parse(raw)
	if err != nil {
		return cur, k, apperr.Validation(msgInvalidCursor)
	}
	if !pagination.UUID.IsFirst(cur, s.now()) {
		k = cache.Key{}
	}
	return cur, k, nil
}

// Feed lists posts by the viewer and their connections.
func (s *Service) Feed(ctx context.Context, viewerID, rawCursor string) (pagination.Page[FeedPost], error) {
	cur, k, err := s.cursor(rawCursor, cache.FeedPosts(viewerID))
	if err != nil {
		return pagination.Page[FeedPost]{}, err
	}
	items, err := cache.ReadThrough(ctx, s.cache, k, func(ctx context.Context) ([]FeedPost, error) {
		ids, err := s.users.ConnectionIDs(ctx, viewerID)
		if err != nil {
			logger.Errorw("connection lookup failed", "userID", viewerID, "err", err)
			return nil, apperr.Internal(msgInternal, err)
		}
		posts, err := s.repo.ByAuthors(ctx, append(ids, viewerID), cur, pagination.PageSize)
		if err != nil {
			return nil, internal("feed", err)
		}
		return s.viewerPosts(ctx, viewerID, posts)
	})
	if err != nil {
		return pagination.Page[FeedPost]{}, err
	}
	if err := enrich(ctx, s, items, feedPostAuthor); err != nil {
		return pagination.Page[FeedPost]{}, err
	}
	return pagination.NewPage(items, pagination.PageSize, feedCursor), nil
}

// OwnPosts lists the viewer's own posts.
func (s *Service) OwnPosts(ctx context.Context, viewerID, rawCursor string) (pagination.Page[FeedPost], error) {
	cur, k, err := s.cursor(rawCursor, cache.OwnPosts(viewerID))
	if err != nil {
		return pagination.Page[FeedPost]{}, err
	}
	items, err := cache.ReadThrough(ctx, s.cache, k, func(ctx context.Context) ([]FeedPost, error) {
		posts, err := s.repo.ByAuthors(ctx, []string{viewerID}, cur, pagination.PageSize)
		if err != nil {
			return nil, internal("own posts", err)
		}
		return s.viewerPosts(ctx, viewerID, posts)
	})
	if err != nil {
		return pagination.Page[FeedPost]{}, err
	}
	if err := enrich(ctx, s, items, feedPostAuthor); err != nil {
		return pagination.Page[FeedPost]{}, err
	}
	return pagination.NewPage(items, pagination.PageSize, feedCursor), nil
}

func (s *Service) Post(ctx context.Context, postID string) (*Post, error) {
	p, err := cache.ReadThrough(ctx, s.cache, cache.Post(postID), func(ctx context.Context) (*Post, error) {
		p, err := s.repo.Get(ctx, postID)
		if err != nil {
			return nil, internal("get post", err)
		}
		if p == nil {
			return nil, apperr.NotFound(msgPostNotFound)
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.NotFound(msgPostNotFound)
	}
	one := []Post{*p}
	if err := enrich(ctx, s, one, postAuthor); err != nil {
		return nil, err
	}
	return &one[0], nil
}

func (s *Service) Trending(ctx context.Context) ([]Post, error) {
	posts, err := cache.ReadThrough(ctx, s.cache, cache.TrendingPosts(), func(ctx context.Context) ([]Post, error) {
		posts, err := s.repo.Trending(ctx, TrendingLimit)
		if err != nil {
			return nil, internal("trending", err)
		}
		return posts, nil
	})
	if err != nil {
		return nil, err
	}
	if err := enrich(ctx, s, posts, postAuthor); err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *Service) Likes(ctx context.Context, postID, rawCursor string) (pagination.Page[Like], error) {
	cur, k, err := s.cursor(rawCursor, cache.LikesOnPost(postID))
	if err != nil {
		return pagination.Page[Like]{}, err
	}
	items, err := cache.ReadThrough(ctx, s.cache, k, func(ctx context.Context) ([]Like, error) {
		likes, err := s.repo.Likes(ctx, postID, cur, pagination.PageSize)
		if err != nil {
			return nil, internal("likes", err)
		}
		return likes, nil
	})
	if err != nil {
		return pagination.Page[Like]{}, err
	}
	if err := enrich(ctx, s, items, likeAuthor); err != nil {
		return pagination.Page[Like]{}, err
	}
	return pagination.NewPage(items, pagination.PageSize, likeCursor), nil
}

func (s *Service) Comments(ctx context.Context, postID, rawCursor string) (pagination.Page[Comment], error) {
	cur, k, err := s.cursor(rawCursor, cache.CommentsOnPost(postID))
	if err != nil {
		return pagination.Page[Comment]{}, err
	}
	items, err := cache.ReadThrough(ctx, s.cache, k, func(ctx context.Context) ([]Comment, error) {
		comments, err := s.repo.Comments(ctx, postID, cur, pagination.PageSize)
		if err != nil {
			return nil, internal("comments", err)
		}
		return comments, nil
	})
	if err != nil {
		return pagination.Page[Comment]{}, err
	}
	if err := enrich(ctx, s, items, commentAuthor); err != nil {
		return pagination.Page[Comment]{}, err
	}
	return pagination.NewPage(items, pagination.PageSize, commentCursor), nil
}

func (s *Service) LikeCount(ctx context.Context, postID string) (int64, error) {
	n, err := cache.CountThrough(ctx, s.cache, cache.LikesCountOnPost(postID), func(ctx context.Context) (int64, error) {
		return s.repo.CountLikes(ctx, postID)
	})
	if err != nil {
		return 0, internal("like count", err)
	}
	return n, nil
}

func (s *Service) CommentCount(ctx context.Context, postID string) (int64, error) {
	n, err := cache.CountThrough(ctx, s.cache, cache.CommentsCountOnPost(postID), func(ctx context.Context) (int64, error) {
		return s.repo.CountComments(ctx, postID)
	})
	if err != nil {
		return 0, internal("comment count", err)
	}
	return n, nil
}

func (s *Service) CreatePost(ctx context.Context, userID, content string) (*Post, error) {
	p, err := s.repo.Create(ctx, userID, content)
	if err != nil {
		return nil, internal("create post", err)
	}
	keys := []cache.Key{cache.OwnPosts(userID), cache.TrendingPosts()}
	keys = append(keys, cache.Feeds(ctx, s.users, userID)...)
	s.cache.Invalidate(ctx, keys...)
	return p, nil
}

// DeletePost removes a post written by userID; anything else is a 404.
func (s *Service) DeletePost(ctx context.Context, userID, postID string) error {
	if err := s.repo.Delete(ctx, postID, userID); err != nil {
		if errors.Is(err, ErrPostNotFound) {
			return apperr.NotFound(msgPostNotFound)
		}
		return internal("delete post", err)
	}
	keys := []cache.Key{
		cache.OwnPosts(userID),
		cache.Post(postID),
		cache.LikesOnPost(postID),
		cache.LikesCountOnPost(postID),
		cache.CommentsOnPost(postID),
		cache.CommentsCountOnPost(postID),
		cache.TrendingPosts(),
	}
	keys = append(keys, cache.Feeds(ctx, s.users, userID)...)
	s.cache.Invalidate(ctx, keys...)
	return nil
}

func (s *Service) author(ctx context.Context, postID string) (string, error) {
	author, err := s.repo.Author(ctx, postID)
	if err != nil {
		if errors.Is(err, ErrPostNotFound) {
			return "", apperr.NotFound(msgPostNotFound)
		}
		return "", internal("post author", err)
	}
	return author, nil
}

// engagementKeys is shared by like and comment changes; the per-kind list
// and count keys are appended by the caller.
func (s *Service) engagementKeys(ctx context.Context, actorID, authorID, postID string, extra ...cache.Key) []cache.Key {
	keys := []cache.Key{
		cache.OwnPosts(authorID),
		cache.FeedPosts(actorID),
		cache.Post(postID),
		cache.TrendingPosts(),
	}
	keys = append(keys, extra...)
	return append(keys, cache.Feeds(ctx, s.users, authorID)...)
}

func (s *Service) AddLike(ctx context.Context, userID, postID string) (*Like, error) {
	author, err := s.author(ctx, postID)
	if err != nil {
		return nil, err
	}
	l, err := s.repo.AddLike(ctx, postID, userID)
	if err != nil {
		switch {
		case errors.Is(err, ErrAlreadyLiked):
			return nil, apperr.Conflict(http.StatusForbidden, msgAlreadyLiked)
		case errors.Is(err, ErrPostNotFound):
			return nil, apperr.NotFound(msgPostNotFound)
		}
		return nil, internal("add like", err)
	}
	s.cache.Invalidate(ctx, s.engagementKeys(ctx, userID, author, postID,
		cache.LikesOnPost(postID), cache.LikesCountOnPost(postID))...)
	if author != userID {
		events.Emit(ctx, s.events, events.Event{
			UserID:        author,
			ActorID:       userID,
			Type:          events.AddLike,
			Message:       msgLiked,
			EntityType:    events.EntityPost,
			EntityID:      events.Ref(postID),
			ChildEntityID: events.Ref(l.ID),
		})
	}
	return l, nil
}

func (s *Service) DeleteLike(ctx context.Context, userID, postID string) error {
	author, err := s.author(ctx, postID)
	if err != nil {
		return err
	}
	likeID, err := s.repo.DeleteLike(ctx, postID, userID)
	if err != nil {
		if errors.Is(err, ErrLikeNotFound) {
			return apperr.NotFound(msgLikeNotFound)
		}
		return internal("delete like", err)
	}
	s.cache.Invalidate(ctx, s.engagementKeys(ctx, userID, author, postID,
		cache.LikesOnPost(postID), cache.LikesCountOnPost(postID))...)
	if author != userID {
		events.Emit(ctx, s.events, events.Event{
			UserID:        author,
			ActorID:       userID,
			Type:          events.DeleteLike,
			EntityType:    events.EntityPost,
			EntityID:      events.Ref(postID),
			ChildEntityID: events.Ref(likeID),
		})
	}
	return nil
}

func (s *Service) AddComment(ctx context.Context, userID, postID, content string) (*Comment, error) {
	author, err := s.author(ctx, postID)
	if err != nil {
		return nil, err
	}
	c, err := s.repo.AddComment(ctx, postID, userID, content)
	if err != nil {
		if errors.Is(err, ErrPostNotFound) {
			return nil, apperr.NotFound(msgPostNotFound)
		}
		return nil, internal("add comment", err)
	}
	s.cache.Invalidate(ctx, s.engagementKeys(ctx, userID, author, postID,
		cache.CommentsOnPost(postID), cache.CommentsCountOnPost(postID))...)
	if author != userID {
		events.Emit(ctx, s.events, events.Event{
			UserID:        author,
			ActorID:       userID,
			Type:          events.AddComment,
			Message:       msgCommented,
			EntityType:    events.EntityPost,
			EntityID:      events.Ref(postID),
			ChildEntityID: events.Ref(c.ID),
		})
	}
	return c, nil
}

// DeleteComment removes a comment the caller wrote on postID.
func (s *Service) DeleteComment(ctx context.Context, userID, postID, commentID string) error {
	author, err := s.author(ctx, postID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteComment(ctx, postID, commentID, userID); err != nil {
		if errors.Is(err, ErrCommentNotFound) {
			return apperr.NotFound(msgCommentNotFound)
		}
		return internal("delete comment", err)
	}
	s.cache.Invalidate(ctx, s.engagementKeys(ctx, userID, author, postID,
		cache.CommentsOnPost(postID), cache.CommentsCountOnPost(postID))...)
	if author != userID {
		events.Emit(ctx, s.events, events.Event{
			UserID:        author,
			ActorID:       userID,
			Type:          events.DeleteComment,
			EntityType:    events.EntityPost,
			EntityID:      events.Ref(postID),
			ChildEntityID: events.Ref(commentID),
		})
	}
	return nil
}
