// Package notifications stores notification events in Mongo and pushes them
// to the recipient's live websocket.
package notifications

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linkup/linkup/backend/go-services/internal/events"
	"github.com/linkup/linkup/backend/go-services/internal/models"
	"github.com/linkup/linkup/backend/go-services/internal/pagination"
)

type Notification struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID        string              `bson:"userID" json:"userID"`
	ActorID       string              `bson:"actorID" json:"actorID"`
	Type          events.Type         `bson:"type" json:"type"`
	Message       string              `bson:"message" json:"message"`
	EntityType    events.EntityType   `bson:"entityType" json:"entityType"`
	EntityID      *string             `bson:"entityID" json:"entityID"`
	ChildEntityID *string             `bson:"childEntityID" json:"childEntityID"`
	IsRead        bool                `bson:"isRead" json:"isRead"`
	CreatedAt     time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time           `bson:"updatedAt" json:"updatedAt"`
	Actor         *models.UserSummary `bson:"-" json:"actor"`
}

// Match selects the notification a cancelling event takes back.
type Match struct {
	UserID        string
	ActorID       string
	Type          events.Type
	EntityID      *string
	ChildEntityID *string
}

// ObjectIDs is the cursor scheme for Mongo ids.
var ObjectIDs = pagination.Scheme{
	Sentinel: "ffffffffffffffffffffffff",
	Valid:    primitive.IsValidObjectID,
}

func notificationCursor(n Notification) pagination.Cursor {
	return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID.Hex()}
}
