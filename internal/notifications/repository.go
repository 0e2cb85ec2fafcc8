package notifications

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linkup/linkup/backend/go-services/internal/pagination"
)

var ErrNotFound = errors.New("notification not found")

const Collection = "notifications"

type Repository interface {
	Create(ctx context.Context, n *Notification) error
	DeleteMatching(ctx context.Context, m Match) (int64, error)
	List(ctx context.Context, userID string, cur pagination.Cursor, limit int) ([]Notification, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, userID, id string) error
}

// MongoRepository implements Repository over one collection.
type MongoRepository struct {
	col *mongo.Collection
	now func() time.Time
}

func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col, now: time.Now}
}

// EnsureIndexes creates the list and unread-count indexes.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userID", Value: 1}, {Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}},
		{Keys: bson.D{{Key: "userID", Value: 1}, {Key: "isRead", Value: 1}}},
	})
	return err
}

func (r *MongoRepository) Create(ctx context.Context, n *Notification) error {
	now := r.now().UTC().Truncate(time.Millisecond)
	n.ID = primitive.NewObjectID()
	n.CreatedAt = now
	n.UpdatedAt = now
	_, err := r.col.InsertOne(ctx, n)
	return err
}

// DeleteMatching removes the newest notification matching m. The child id
// narrows the match only when it is set.
func (r *MongoRepository) DeleteMatching(ctx context.Context, m Match) (int64, error) {
	filter := bson.M{
		"userID":   m.UserID,
		"actorID":  m.ActorID,
		"type":     m.Type,
		"entityID": m.EntityID,
	}
	if m.ChildEntityID != nil {
		filter["childEntityID"] = *m.ChildEntityID
	}
	opts := options.FindOneAndDelete().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	err := r.col.FindOneAndDelete(ctx, filter, opts).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return 1, nil
}

func (r *MongoRepository) List(ctx context.Context, userID string, cur pagination.Cursor, limit int) ([]Notification, error) {
	oid, err := primitive.ObjectIDFromHex(cur.ID)
	if err != nil {
		return nil, pagination.ErrInvalidCursor
	}
	filter := bson.M{
		"userID": userID,
		"$or": bson.A{
			bson.M{"createdAt": bson.M{"$lt": cur.CreatedAt}},
			bson.M{"createdAt": cur.CreatedAt, "_id": bson.M{"$lt": oid}},
		},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	out := []Notification{}
	for cursor.Next(ctx) {
		var n Notification
		if err := cursor.Decode(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, cursor.Err()
}

func (r *MongoRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{"userID": userID, "isRead": false})
}

// MarkRead flags id as read when userID is its recipient.
func (r *MongoRepository) MarkRead(ctx context.Context, userID, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": oid, "userID": userID},
		bson.M{"$set": bson.M{"isRead": true, "updatedAt": r.now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
