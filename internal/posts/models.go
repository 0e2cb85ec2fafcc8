package posts

import (
	"time"

	"github.com/linkup/linkup/backend/go-services/internal/models"
	"github.com/linkup/linkup/backend/go-services/internal/pagination"
)

// Post carries its author's display info once enriched.
type Post struct {
	ID           string              `json:"id"`
	UserID       string              `json:"userID"`
	Content      string              `json:"content"`
	LikeCount    int64               `json:"likeCount"`
	CommentCount int64               `json:"commentCount"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
	User         *models.UserSummary `json:"user"`
}

// FeedPost is a Post as seen by a signed-in viewer.
type FeedPost struct {
	Post
	ViewerLiked bool `json:"viewerLiked"`
	ViewerPost  bool `json:"viewerPost"`
}

type Like struct {
	ID        string              `json:"id"`
	PostID    string              `json:"postID"`
	UserID    string              `json:"userID"`
	CreatedAt time.Time           `json:"createdAt"`
	User      *models.UserSummary `json:"user"`
}

type Comment struct {
	ID        string              `json:"id"`
	PostID    string              `json:"postID"`
	UserID    string              `json:"userID"`
	Content   string              `json:"content"`
	CreatedAt time.Time           `json:"createdAt"`
	User      *models.UserSummary `json:"user"`
}

func feedCursor(p FeedPost) pagination.Cursor {
	return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
}

func likeCursor(l Like) pagination.Cursor {
	return pagination.Cursor{CreatedAt: l.CreatedAt, ID: l.ID}
}

func commentCursor(c Comment) pagination.Cursor {
	return pagination.Cursor{CreatedAt: c.CreatedAt, ID: c.ID}
}
