package cache

import "time"

// Key is one cache entry: the Redis key, its family (metrics label) and TTL.
// The zero Key disables caching, which is how non-first pages opt out.
type Key struct {
	Name   string
	Family string
	TTL    time.Duration
}

func (k Key) IsZero() bool { return k.Name == "" }

func key(family string, ttl time.Duration, scope string) Key {
	return Key{Name: family + ":" + scope, Family: family, TTL: ttl}
}

// Post service
func FeedPosts(userID string) Key { return key("userFeedPosts", 15*time.Second, userID) }
func OwnPosts(userID string) Key  { return key("userOwnPosts", 60*time.Second, userID) }
func Post(postID string) Key      { return key("post", time.Hour, postID) }
func CommentsOnPost(postID string) Key {
	return key("commentsOnPost", 60*time.Second, postID)
}
func CommentsCountOnPost(postID string) Key {
	return key("commentsCountOnPost", 60*time.Second, postID)
}
func LikesOnPost(postID string) Key { return key("likesOnPost", 60*time.Second, postID) }
func LikesCountOnPost(postID string) Key {
	return key("likesCountOnPost", 60*time.Second, postID)
}
func TrendingPosts() Key {
	return Key{Name: "trendingPosts", Family: "trendingPosts", TTL: 60 * time.Second}
}

// User service
func UserProfile(userID string) Key { return key("userProfile", 3*time.Hour, userID) }
func UserBasic(userID string) Key   { return key("userBasic", 6*time.Hour, userID) }
func UserConnection(userID string) Key {
	return key("userConnection", 60*time.Second, userID)
}
func UserConnectionCount(userID string) Key {
	return key("userConnectionCount", 15*time.Minute, userID)
}
func UserReceivedConnection(userID string) Key {
	return key("userReceivedConnection", 60*time.Second, userID)
}
func UserReceivedConnectionCount(userID string) Key {
	return key("userReceivedConnectionCount", 60*time.Second, userID)
}
func UserSentConnection(userID string) Key {
	return key("userSentConnection", 60*time.Second, userID)
}
func UserSentConnectionCount(userID string) Key {
	return key("userSentConnectionCount", 60*time.Second, userID)
}
func UserSuggestion(userID string) Key {
	return key("userSuggestion", 60*time.Second, userID)
}

// UserRelation is directional: the relation of a towards b.
func UserRelation(a, b string) Key {
	return Key{Name: "userRelation" + a + ":" + b, Family: "userRelation", TTL: 5 * time.Minute}
}

// Notification service
func Notifications(userID string) Key {
	return key("notifications", 30*time.Second, userID)
}
func UnreadNotificationCount(userID string) Key {
	return key("unreadNotificationCount", 60*time.Second, userID)
}
