package users

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/linkup/linkup/backend/go-services/internal/models"
	"github.com/linkup/linkup/backend/go-services/internal/pagination"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrEmailTaken       = errors.New("email already exist")
	ErrSkillNotFound    = errors.New("skill not found")
	ErrRequestExists    = errors.New("request or connection already exist")
	ErrNoPendingRequest = errors.New("no pending request")
	ErrNotConnected     = errors.New("not connected")
)

// Relation of the viewer towards another user.
const (
	RelationSelf     = "self"
	RelationNone     = "no relation"
	RelationAccepted = "connection"
	RelationSent     = "request sent"
	RelationReceived = "request received"
)

// SuggestionLimit caps the suggestion list.
const SuggestionLimit = 30

// Schema is applied at startup by the user service.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id          UUID PRIMARY KEY,
		name        VARCHAR(50) NOT NULL,
		email       VARCHAR(50) NOT NULL UNIQUE,
		password    TEXT NOT NULL,
		dob         DATE,
		gender      VARCHAR(10),
		hometown    VARCHAR(50),
		languages   TEXT[] NOT NULL DEFAULT '{}',
		interests   TEXT[] NOT NULL DEFAULT '{}',
		picture_key TEXT,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS skills (
		id         UUID PRIMARY KEY,
		user_id    UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name       VARCHAR(50) NOT NULL,
		level      VARCHAR(20),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS work_experience (
		id           UUID PRIMARY KEY,
		user_id      UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		organization VARCHAR(50) NOT NULL,
		role         VARCHAR(50) NOT NULL,
		location     VARCHAR(50) NOT NULL,
		description  VARCHAR(750),
		start_date   DATE NOT NULL,
		end_date     DATE,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS education (
		id             UUID PRIMARY KEY,
		user_id        UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		institute      VARCHAR(50) NOT NULL,
		institute_type VARCHAR(20) NOT NULL,
		description    VARCHAR(750),
		start_date     DATE NOT NULL,
		end_date       DATE,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS awards (
		id          UUID PRIMARY KEY,
		user_id     UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title       VARCHAR(50) NOT NULL,
		description VARCHAR(750),
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS connections (
		id          UUID PRIMARY KEY,
		pair        TEXT NOT NULL UNIQUE,
		sender_id   UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		receiver_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		status      VARCHAR(10) NOT NULL DEFAULT 'pending',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS connected (
		user_id            UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		connection_user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (user_id, connection_user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS users_created_idx ON users (created_at DESC, id DESC)`,
	`CREATE INDEX IF NOT EXISTS skills_user_idx ON skills (user_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS work_experience_user_idx ON work_experience (user_id)`,
	`CREATE INDEX IF NOT EXISTS education_user_idx ON education (user_id)`,
	`CREATE INDEX IF NOT EXISTS awards_user_idx ON awards (user_id)`,
	`CREATE INDEX IF NOT EXISTS connections_receiver_idx ON connections (receiver_id, status, created_at DESC, sender_id DESC)`,
	`CREATE INDEX IF NOT EXISTS connections_sender_idx ON connections (sender_id, status, created_at DESC, receiver_id DESC)`,
	`CREATE INDEX IF NOT EXISTS connected_user_idx ON connected (user_id, created_at DESC, connection_user_id DESC)`,
}

// BasicInfo is a partial profile update; nil fields are left untouched.
type BasicInfo struct {
	Name      *string  `json:"name" binding:"omitempty,min=1,max=50"`
	DOB       *string  `json:"dob" binding:"omitempty,datetime=2006-01-02"`
	Gender    *string  `json:"gender" binding:"omitempty,oneof=male female other"`
	Hometown  *string  `json:"hometown" binding:"omitempty,max=50"`
	Languages []string `json:"languages" binding:"omitempty,max=10,dive,min=1,max=30"`
	Interests []string `json:"interests" binding:"omitempty,max=10,dive,min=1,max=30"`
}

// Connection is one row of a connection or request list.
type Connection struct {
	User      models.UserSummary `json:"user"`
	CreatedAt time.Time          `json:"createdAt"`
}

func connectionCursor(c Connection) pagination.Cursor {
	return pagination.Cursor{CreatedAt: c.CreatedAt, ID: c.User.ID}
}

// Repository is the user service persistence surface.
type Repository interface {
	Create(ctx context.Context, name, email, hashedPassword string) (string, error)
	Credentials(ctx context.Context, email string) (*models.Credentials, error)
	PasswordHash(ctx context.Context, userID string) (string, error)
	SetPassword(ctx context.Context, userID, hashedPassword string) error
	Get(ctx context.Context, userID string) (*models.User, error)
	Summaries(ctx context.Context, userIDs []string) ([]models.UserSummary, error)
	UpdateBasicInfo(ctx context.Context, userID string, in BasicInfo) error
	SetPictureKey(ctx context.Context, userID string, key *string) (*string, error)

	AddSkill(ctx context.Context, userID, name string, level *string) (*models.Skill, error)
	UpdateSkill(ctx context.Context, userID, skillID, name string, level *string) (*models.Skill, error)
	DeleteSkill(ctx context.Context, userID, skillID string) error

	AddWork(ctx context.Context, userID string, in WorkInput) (*models.WorkExperience, error)
	UpdateWork(ctx context.Context, userID, id string, in WorkInput) (*models.WorkExperience, error)
	DeleteWork(ctx context.Context, userID, id string) error
	AddEducation(ctx context.Context, userID string, in EducationInput) (*models.Education, error)
	UpdateEducation(ctx context.Context, userID, id string, in EducationInput) (*models.Education, error)
	DeleteEducation(ctx context.Context, userID, id string) error
	AddAward(ctx context.Context, userID string, in AwardInput) (*models.Award, error)
	UpdateAward(ctx context.Context, userID, id string, in AwardInput) (*models.Award, error)
	DeleteAward(ctx context.Context, userID, id string) error

	SendRequest(ctx context.Context, senderID, receiverID string) error
	AcceptRequest(ctx context.Context, receiverID, senderID string) error
	DeleteRequest(ctx context.Context, senderID, receiverID string) error
	DeleteConnection(ctx context.Context, a, b string) error
	Connections(ctx context.Context, userID string, cur pagination.Cursor, limit int) ([]Connection, error)
	Received(ctx context.Context, userID string, cur pagination.Cursor, limit int) ([]Connection, error)
	Sent(ctx context.Context, userID string, cur pagination.Cursor, limit int) ([]Connection, error)
	CountConnections(ctx context.Context, userID string) (int64, error)
	CountReceived(ctx context.Context, userID string) (int64, error)
	CountSent(ctx context.Context, userID string) (int64, error)
	ConnectionIDs(ctx context.Context, userID string) ([]string, error)
	Suggestions(ctx context.Context, userID string, limit int) ([]models.UserSummary, error)
	Relation(ctx context.Context, viewerID, otherID string) (string, error)
}

// PictureURLs turns stored object keys into public URLs.
type PictureURLs struct {
	Base    string
	Default string
}

func (p PictureURLs) URL(key *string) string {
	if key == nil || *key == "" {
		return p.Default
	}
	return p.Base + "/" + pictureName(*key)
}

// PostgresRepository implements Repository over lib/pq.
type PostgresRepository struct {
	db   *sql.DB
	urls PictureURLs
}

func NewPostgresRepository(db *sql.DB, urls PictureURLs) *PostgresRepository {
	return &PostgresRepository{db: db, urls: urls}
}

// pairKey orders two ids so a pair has one row whoever sent the request.
func pairKey(a, b string) string {
	if a < b {
		return a + ":" + b
	}
	return b + ":" + a
}

func pqCode(err error) pq.ErrorCode {
	var pe *pq.Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

const (
	codeUniqueViolation     pq.ErrorCode = "23505"
	codeForeignKeyViolation pq.ErrorCode = "23503"
)

func (r *PostgresRepository) Create(ctx context.Context, name, email, hashedPassword string) (string, error) {
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password) VALUES ($1, $2, $3, $4)`,
		id, name, email, hashedPassword)
	if pqCode(err) == codeUniqueViolation {
		return "", ErrEmailTaken
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// Credentials returns nil, nil for an unknown email.
func (r *PostgresRepository) Credentials(ctx context.Context, email string) (*models.Credentials, error) {
	var c models.Credentials
	err := r.db.QueryRowContext(ctx, `SELECT id, password FROM users WHERE email = $1`, email).
		Scan(&c.UserID, &c.HashedPassword)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PostgresRepository) PasswordHash(ctx context.Context, userID string) (string, error) {
	var hash string
	err := r.db.QueryRowContext(ctx, `SELECT password FROM users WHERE id = $1`, userID).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrUserNotFound
	}
	return hash, err
}

func (r *PostgresRepository) SetPassword(ctx context.Context, userID, hashedPassword string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET password = $2, updated_at = now() WHERE id = $1`, userID, hashedPassword)
	return affected(res, err, ErrUserNotFound)
}

func affected(res sql.Result, err error, none error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return none
	}
	return nil
}

// Get returns the full profile with skills, work, education and awards, or
// nil, nil when absent.
func (r *PostgresRepository) Get(ctx context.Context, userID string) (*models.User, error) {
	var (
		u       models.User
		dob     sql.NullTime
		gender  sql.NullString
		home    sql.NullString
		picture sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, dob, gender, hometown, languages, interests, picture_key, created_at, updated_at
		FROM users WHERE id = $1`, userID).
		Scan(&u.ID, &u.Name, &u.Email, &dob, &gender, &home,
			pq.Array(&u.Languages), pq.Array(&u.Interests), &picture, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if dob.Valid {
		s := dob.Time.Format("2006-01-02")
		u.DOB = &s
	}
	u.Gender = nullable(gender)
	u.Hometown = nullable(home)
	u.PictureURL = r.urls.URL(nullable(picture))
	u.ThumbnailURL = u.PictureURL

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, level, created_at FROM skills WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	u.Skills = []models.Skill{}
	for rows.Next() {
		var (
			s     models.Skill
			level sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.Name, &level, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Level = nullable(level)
		u.Skills = append(u.Skills, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadSections(ctx, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func nullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func (r *PostgresRepository) Summaries(ctx context.Context, userIDs []string) ([]models.UserSummary, error) {
	if len(userIDs) == 0 {
		return []models.UserSummary{}, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, picture_key FROM users WHERE id = ANY($1::uuid[])`, pq.Array(userIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.UserSummary{}
	for rows.Next() {
		var (
			s   models.UserSummary
			key sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.Name, &key); err != nil {
			return nil, err
		}
		s.ThumbnailURL = r.urls.URL(nullable(key))
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) UpdateBasicInfo(ctx context.Context, userID string, in BasicInfo) error {
	var langs, interests interface{}
	if in.Languages != nil {
		langs = pq.Array(in.Languages)
	}
	if in.Interests != nil {
		interests = pq.Array(in.Interests)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET
			name      = COALESCE($2, name),
			dob       = COALESCE($3::date, dob),
			gender    = COALESCE($4, gender),
			hometown  = COALESCE($5, hometown),
			languages = COALESCE($6::text[], languages),
			interests = COALESCE($7::text[], interests),
			updated_at = now()
		WHERE id = $1`,
		userID, in.Name, in.DOB, in.Gender, in.Hometown, langs, interests)
	return affected(res, err, ErrUserNotFound)
}

// SetPictureKey stores key (nil clears it) and returns the previous key.
func (r *PostgresRepository) SetPictureKey(ctx context.Context, userID string, key *string) (*string, error) {
	var old sql.NullString
	err := r.db.QueryRowContext(ctx, `
		UPDATE users u SET picture_key = $2, updated_at = now()
		FROM (SELECT id, picture_key FROM users WHERE id = $1 FOR UPDATE) prev
		WHERE u.id = prev.id
		RETURNING prev.picture_key`, userID, key).Scan(&old)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return nullable(old), nil
}

func (r *PostgresRepository) AddSkill(ctx context.Context, userID, name string, level *string) (*models.Skill, error) {
	s := models.Skill{ID: uuid.NewString(), Name: name, Level: level}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO skills (id, user_id, name, level) VALUES ($1, $2, $3, $4) RETURNING created_at`,
		s.ID, userID, name, level).Scan(&s.CreatedAt)
	if pqCode(err) == codeForeignKeyViolation {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PostgresRepository) UpdateSkill(ctx context.Context, userID, skillID, name string, level *string) (*models.Skill, error) {
	s := models.Skill{ID: skillID, Name: name, Level: level}
	err := r.db.QueryRowContext(ctx,
		`UPDATE skills SET name = $3, level = $4 WHERE id = $1 AND user_id = $2 RETURNING created_at`,
		skillID, userID, name, level).Scan(&s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSkillNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PostgresRepository) DeleteSkill(ctx context.Context, userID, skillID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM skills WHERE id = $1 AND user_id = $2`, skillID, userID)
	return affected(res, err, ErrSkillNotFound)
}

func (r *PostgresRepository) SendRequest(ctx context.Context, senderID, receiverID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO connections (id, pair, sender_id, receiver_id) VALUES ($1, $2, $3, $4)`,
		uuid.NewString(), pairKey(senderID, receiverID), senderID, receiverID)
	switch pqCode(err) {
	case codeUniqueViolation:
		return ErrRequestExists
	case codeForeignKeyViolation:
		return ErrUserNotFound
	}
	return err
}

// AcceptRequest flips the pending request and links both users in one
// transaction. ErrNoPendingRequest leaves nothing written.
func (r *PostgresRepository) AcceptRequest(ctx context.Context, receiverID, senderID string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE connections SET status = 'accepted'
			WHERE sender_id = $1 AND receiver_id = $2 AND status = 'pending'`, senderID, receiverID)
		if err := affected(res, err, ErrNoPendingRequest); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO connected (user_id, connection_user_id) VALUES ($1, $2), ($2, $1)
			ON CONFLICT DO NOTHING`, receiverID, senderID)
		return err
	})
}

func withTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// DeleteRequest removes a pending request from senderID to receiverID. It
// serves both reject (receiver side) and cancel (sender side).
func (r *PostgresRepository) DeleteRequest(ctx context.Context, senderID, receiverID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM connections WHERE sender_id = $1 AND receiver_id = $2 AND status = 'pending'`,
		senderID, receiverID)
	return affected(res, err, ErrNoPendingRequest)
}

func (r *PostgresRepository) DeleteConnection(ctx context.Context, a, b string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM connections WHERE pair = $1 AND status = 'accepted'`, pairKey(a, b))
		if err := affected(res, err, ErrNotConnected); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			DELETE FROM connected
			WHERE (user_id = $1 AND connection_user_id = $2) OR (user_id = $2 AND connection_user_id = $1)`, a, b)
		return err
	})
}

func (r *PostgresRepository) Connections(ctx context.Context, userID string, cur pagination.Cursor, limit int) ([]Connection, error) {
	return r.listConnections(ctx, `
		SELECT u.id, u.name, u.picture_key, c.created_at
		FROM connected c JOIN users u ON u.id = c.connection_user_id
		WHERE c.user_id = $1 AND (c.created_at, c.connection_user_id) < ($2, $3::uuid)
		ORDER BY c.created_at DESC, c.connection_user_id DESC
		LIMIT $4`, userID, cur, limit)
}

func (r *PostgresRepository) Received(ctx context.Context, userID string, cur pagination.Cursor, limit int) ([]Connection, error) {
	return r.listConnections(ctx, `
		SELECT u.id, u.name, u.picture_key, c.created_at
		FROM connections c JOIN users u ON u.id = c.sender_id
		WHERE c.receiver_id = $1 AND c.status = 'pending' AND (c.created_at, c.sender_id) < ($2, $3::uuid)
		ORDER BY c.created_at DESC, c.sender_id DESC
		LIMIT $4`, userID, cur, limit)
}

func (r *PostgresRepository) Sent(ctx context.Context, userID string, cur pagination.Cursor, limit int) ([]Connection, error) {
	return r.listConnections(ctx, `
		SELECT u.id, u.name, u.picture_key, c.created_at
		FROM connections c JOIN users u ON u.id = c.receiver_id
		WHERE c.sender_id = $1 AND c.status = 'pending' AND (c.created_at, c.receiver_id) < ($2, $3::uuid)
		ORDER BY c.created_at DESC, c.receiver_id DESC
		LIMIT $4`, userID, cur, limit)
}

func (r *PostgresRepository) listConnections(ctx context.Context, query, userID string, cur pagination.Cursor, limit int) ([]Connection, error) {
	rows, err := r.db.QueryContext(ctx, query, userID, cur.CreatedAt, cur.ID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Connection{}
	for rows.Next() {
		var (
			c   Connection
			key sql.NullString
		)
		if err := rows.Scan(&c.User.ID, &c.User.Name, &key, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.User.ThumbnailURL = r.urls.URL(nullable(key))
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) count(ctx context.Context, query string, args ...interface{}) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

func (r *PostgresRepository) CountConnections(ctx context.Context, userID string) (int64, error) {
	return r.count(ctx, `SELECT count(*) FROM connected WHERE user_id = $1`, userID)
}

func (r *PostgresRepository) CountReceived(ctx context.Context, userID string) (int64, error) {
	return r.count(ctx, `SELECT count(*) FROM connections WHERE receiver_id = $1 AND status = 'pending'`, userID)
}

func (r *PostgresRepository) CountSent(ctx context.Context, userID string) (int64, error) {
	return r.count(ctx, `SELECT count(*) FROM connections WHERE sender_id = $1 AND status = 'pending'`, userID)
}

func (r *PostgresRepository) ConnectionIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT connection_user_id FROM connected WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Suggestions lists the newest users with no request or connection either way.
func (r *PostgresRepository) Suggestions(ctx context.Context, userID string, limit int) ([]models.UserSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT u.id, u.name, u.picture_key FROM users u
		WHERE u.id <> $1
		  AND NOT EXISTS (
			SELECT 1 FROM connections c
			WHERE (c.sender_id = $1 AND c.receiver_id = u.id) OR (c.sender_id = u.id AND c.receiver_id = $1))
		ORDER BY u.created_at DESC, u.id DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.UserSummary{}
	for rows.Next() {
		var (
			s   models.UserSummary
			key sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.Name, &key); err != nil {
			return nil, err
		}
		s.ThumbnailURL = r.urls.URL(nullable(key))
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Relation(ctx context.Context, viewerID, otherID string) (string, error) {
	if viewerID == otherID {
		return RelationSelf, nil
	}
	var sender, status string
	err := r.db.QueryRowContext(ctx,
		`SELECT sender_id, status FROM connections WHERE pair = $1`, pairKey(viewerID, otherID)).
		Scan(&sender, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return RelationNone, nil
	}
	if err != nil {
		return "", err
	}
	switch {
	case status == "accepted":
		return RelationAccepted, nil
	case sender == viewerID:
		return RelationSent, nil
	default:
		return RelationReceived, nil
	}
}
