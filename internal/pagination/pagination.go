// Package pagination implements (createdAt desc, id desc) cursors.
//
// A cursor travels as a JSON object {createdAt, id} in the "cursor" query
// parameter. The sentinel cursor (far-future time + max id) marks the first
// page, which is the only page eligible for caching.
package pagination

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// PageSize is the number of items per page on every list endpoint.
const PageSize = 15

// SentinelTime sorts after every real row.
var SentinelTime = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

var ErrInvalidCursor = errors.New("invalid cursor")

type Cursor struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
}

// Scheme fixes the sentinel id and id validation for one id space.
type Scheme struct {
	Sentinel string
	Valid    func(id string) bool
}

// UUID is the scheme for Postgres-backed lists.
var UUID = Scheme{
	Sentinel: "ffffffff-ffff-ffff-ffff-ffffffffffff",
	Valid: func(id string) bool {
		_, err := uuid.Parse(id)
		return err == nil
	},
}

func (s Scheme) First() Cursor {
	return Cursor{CreatedAt: SentinelTime, ID: s.Sentinel}
}

// Parse decodes raw; an empty value means the first page.
func (s Scheme) Parse(raw string) (Cursor, error) {
	if raw == "" {
		return s.First(), nil
	}
	var c Cursor
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return Cursor{}, ErrInvalidCursor
	}
	if c.CreatedAt.IsZero() || c.ID == "" {
		return Cursor{}, ErrInvalidCursor
	}
	if c.ID != s.Sentinel && s.Valid != nil && !s.Valid(c.ID) {
		return Cursor{}, ErrInvalidCursor
	}
	return c, nil
}

// IsFirst reports whether c asks for the first page. Any cursor that lies in
// the future with the sentinel id counts, so clients echoing a re-encoded
// sentinel still hit the cache.
func (s Scheme) IsFirst(c Cursor, now time.Time) bool {
	return c.ID == s.Sentinel && c.CreatedAt.After(now)
}

// Page is the response envelope of every cursor-paginated list.
type Page[T any] struct {
	Items      []T     `json:"items"`
	NextCursor *Cursor `json:"nextCursor"`
}

// NewPage sets NextCursor iff the page is full.
func NewPage[T any](items []T, size int, cursorOf func(T) Cursor) Page[T] {
	if items == nil {
		items = []T{}
	}
	p := Page[T]{Items: items}
	if size > 0 && len(items) == size {
		next := cursorOf(items[len(items)-1])
		p.NextCursor = &next
	}
	return p
}
