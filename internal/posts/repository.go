package posts

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/linkup/linkup/backend/go-services/internal/pagination"
)

var (
	ErrPostNotFound    = errors.New("post not found")
	ErrAlreadyLiked    = errors.New("already liked")
	ErrLikeNotFound    = errors.New("like not found")
	ErrCommentNotFound = errors.New("comment not found")
)

// TrendingLimit is the size of the trending list.
const TrendingLimit = 10

var Schema = []string{
	`CREATE TABLE IF NOT EXISTS posts (
		id         UUID PRIMARY KEY,
		user_id    UUID NOT NULL,
		content    VARCHAR(700) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS likes (
		id         UUID PRIMARY KEY,
		post_id    UUID NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
		user_id    UUID NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (post_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS comments (
		id         UUID PRIMARY KEY,
		post_id    UUID NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
		user_id    UUID NOT NULL,
		content    VARCHAR(500) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS posts_user_created_idx ON posts (user_id, created_at DESC, id DESC)`,
	`CREATE INDEX IF NOT EXISTS likes_post_created_idx ON likes (post_id, created_at DESC, id DESC)`,
	`CREATE INDEX IF NOT EXISTS comments_post_created_idx ON comments (post_id, created_at DESC, id DESC)`,
}

type Repository interface {
	Create(ctx context.Context, userID, content string) (*Post, error)
	Get(ctx context.Context, postID string) (*Post, error)
	Author(ctx context.Context, postID string) (string, error)
	Delete(ctx context.Context, postID, userID string) error
	ByAuthors(ctx context.Context, authorIDs []string, cur pagination.Cursor, limit int) ([]Post, error)
	LikedBy(ctx context.Context, userID string, postIDs []string) (map[string]bool, error)
	Trending(ctx context.Context, limit int) ([]Post, error)

	AddLike(ctx context.Context, postID, userID string) (*Like, error)
	DeleteLike(ctx context.Context, postID, userID string) (string, error)
	Likes(ctx context.Context, postID string, cur pagination.Cursor, limit int) ([]Like, error)
	CountLikes(ctx context.Context, postID string) (int64, error)

	AddComment(ctx context.Context, postID, userID, content string) (*Comment, error)
	DeleteComment(ctx context.Context, postID, commentID, userID string) error
	Comments(ctx context.Context, postID string, cur pagination.Cursor, limit int) ([]Comment, error)
	CountComments(ctx context.Context, postID string) (int64, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func pqCode(err error) pq.ErrorCode {
	var pe *pq.Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

const postColumns = `p.id, p.user_id, p.content, p.created_at, p.updated_at,
	(SELECT count(*) FROM likes l WHERE l.post_id = p.id),
	(SELECT count(*) FROM comments c WHERE c.post_id = p.id)`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPost(s scanner) (Post, error) {
	var p Post
	err := s.Scan(&p.ID, &p.UserID, &p.Content, &p.CreatedAt, &p.UpdatedAt, &p.LikeCount, &p.CommentCount)
	return p, err
}

func (r *PostgresRepository) Create(ctx context.Context, userID, content string) (*Post, error) {
	p := Post{ID: uuid.NewString(), UserID: userID, Content: content}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO posts (id, user_id, content) VALUES ($1, $2, $3) RETURNING created_at, updated_at`,
		p.ID, userID, content).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Get returns nil, nil for a missing post.
func (r *PostgresRepository) Get(ctx context.Context, postID string) (*Post, error) {
	p, err := scanPost(r.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts p WHERE p.id = $1`, postID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PostgresRepository) Author(ctx context.Context, postID string) (string, error) {
	var author string
	err := r.db.QueryRowContext(ctx, `SELECT user_id FROM posts WHERE id = $1`, postID).Scan(&author)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrPostNotFound
	}
	return author, err
}

// Delete removes postID only when userID wrote it.
func (r *PostgresRepository) Delete(ctx context.Context, postID, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1 AND user_id = $2`, postID, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPostNotFound
	}
	return nil
}

func (r *PostgresRepository) ByAuthors(ctx context.Context, authorIDs []string, cur pagination.Cursor, limit int) ([]Post, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+postColumns+` FROM posts p
		WHERE p.user_id = ANY($1::uuid[]) AND (p.created_at, p.id) < ($2, $3::uuid)
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $4`, pq.Array(authorIDs), cur.CreatedAt, cur.ID, limit)
	if err != nil {
		return nil, err
	}
	return collectPosts(rows)
}

func collectPosts(rows *sql.Rows) ([]Post, error) {
	defer rows.Close()
	out := []Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) LikedBy(ctx context.Context, userID string, postIDs []string) (map[string]bool, error) {
	liked := map[string]bool{}
	if len(postIDs) == 0 {
		return liked, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT post_id FROM likes WHERE user_id = $1 AND post_id = ANY($2::uuid[])`, userID, pq.Array(postIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		liked[id] = true
	}
	return liked, rows.Err()
}

func (r *PostgresRepository) Trending(ctx context.Context, limit int) ([]Post, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+postColumns+` FROM posts p
		ORDER BY 6 DESC, p.created_at DESC, p.id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return collectPosts(rows)
}

func (r *PostgresRepository) AddLike(ctx context.Context, postID, userID string) (*Like, error) {
	l := Like{ID: uuid.NewString(), PostID: postID, UserID: userID}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO likes (id, post_id, user_id) VALUES ($1, $2, $3) RETURNING created_at`,
		l.ID, postID, userID).Scan(&l.CreatedAt)
	switch pqCode(err) {
	case "23505":
		return nil, ErrAlreadyLiked
	case "23503":
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// DeleteLike returns the id of the removed like.
func (r *PostgresRepository) DeleteLike(ctx context.Context, postID, userID string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx,
		`DELETE FROM likes WHERE post_id = $1 AND user_id = $2 RETURNING id`, postID, userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrLikeNotFound
	}
	return id, err
}

func (r *PostgresRepository) Likes(ctx context.Context, postID string, cur pagination.Cursor, limit int) ([]Like, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, post_id, user_id, created_at FROM likes
		WHERE post_id = $1 AND (created_at, id) < ($2, $3::uuid)
		ORDER BY created_at DESC, id DESC
		LIMIT $4`, postID, cur.CreatedAt, cur.ID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Like{}
	for rows.Next() {
		var l Like
		if err := rows.Scan(&l.ID, &l.PostID, &l.UserID, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) CountLikes(ctx context.Context, postID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM likes WHERE post_id = $1`, postID).Scan(&n)
	return n, err
}

func (r *PostgresRepository) AddComment(ctx context.Context, postID, userID, content string) (*Comment, error) {
	c := Comment{ID: uuid.NewString(), PostID: postID, UserID: userID, Content: content}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO comments (id, post_id, user_id, content) VALUES ($1, $2, $3, $4) RETURNING created_at`,
		c.ID, postID, userID, content).Scan(&c.CreatedAt)
	if pqCode(err) == "23503" {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PostgresRepository) DeleteComment(ctx context.Context, postID, commentID, userID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM comments WHERE id = $1 AND post_id = $2 AND user_id = $3`, commentID, postID, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCommentNotFound
	}
	return nil
}

func (r *PostgresRepository) Comments(ctx context.Context, postID string, cur pagination.Cursor, limit int) ([]Comment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, post_id, user_id, content, created_at FROM comments
		WHERE post_id = $1 AND (created_at, id) < ($2, $3::uuid)
		ORDER BY created_at DESC, id DESC
		LIMIT $4`, postID, cur.CreatedAt, cur.ID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Comment{}
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.UserID, &c.Content, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) CountComments(ctx context.Context, postID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM comments WHERE post_id = $1`, postID).Scan(&n)
	return n, err
}
