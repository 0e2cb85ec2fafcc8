package sessions

import "time"

// RefreshTTL is the lifetime of a refresh session and of the per-user set.
const RefreshTTL = 7 * 24 * time.Hour

const (
	sessionPrefix = "refreshToken:"
	userSetPrefix = "refreshToken:userID:"
)

// Session is the value stored under refreshToken:<hash>. The raw refresh
// token is never persisted.
type Session struct {
	UserID string `json:"userID"`
}

func sessionKey(hash string) string { return sessionPrefix + hash }

func userSetKey(userID string) string { return userSetPrefix + userID }
