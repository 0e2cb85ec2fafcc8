// Package events carries notification events between services over the
// Redis "notification" channel.
package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/linkup/linkup/backend/go-services/pkg/logger"
)

const Channel = "notification"

type Type string

const (
	AddLike       Type = "ADD-LIKE"
	DeleteLike    Type = "DELETE-LIKE"
	AddComment    Type = "ADD-COMMENT"
	DeleteComment Type = "DELETE-COMMENT"
	SentRequest   Type = "SENT-REQUEST"
	CancelRequest Type = "CANCEL-REQUEST"
	AcceptRequest Type = "ACCEPT-REQUEST"
	System        Type = "SYSTEM"
	Profile       Type = "PROFILE"
)

// Valid reports whether t is a known event type.
func (t Type) Valid() bool {
	switch t {
	case AddLike, DeleteLike, AddComment, DeleteComment, SentRequest, CancelRequest, AcceptRequest, System, Profile:
		return true
	}
	return false
}

type EntityType string

const (
	EntityPost EntityType = "POST"
	EntityUser EntityType = "USER"
)

// Event is addressed to UserID and caused by ActorID.
type Event struct {
	UserID        string     `json:"userID"`
	ActorID       string     `json:"actorID"`
	Type          Type       `json:"type"`
	Message       string     `json:"message"`
	EntityType    EntityType `json:"entityType"`
	EntityID      *string    `json:"entityID"`
	ChildEntityID *string    `json:"childEntityID"`
}

// Publisher sends events to the notification service.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, Channel, b).Err()
}

// Emit publishes e and only logs failures; notifications never fail the
// request that caused them. A nil publisher drops the event.
func Emit(ctx context.Context, p Publisher, e Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, e); err != nil {
		logger.Warnw("notification publish failed", "type", e.Type, "userID", e.UserID, "err", err)
	}
}

// Ref returns a pointer to s, for the optional entity ids.
func Ref(s string) *string { return &s }
