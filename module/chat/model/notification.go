package model

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"PulseIM/service/mgo"
)

type Notification struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Recipient primitive.ObjectID `bson:"recipient"`
	Sender    primitive.ObjectID `bson:"sender"`
	NotifType string             `bson:"notif_type"` // message/system
	Title     string             `bson:"title"`
	Body      string             `bson:"body"`
	Link      string             `bson:"link,omitempty"`
	IsRead    bool               `bson:"is_read"`

	CreatedAt time.Time `bson:"created_at"`
}

func (n *Notification) GetTableName() string { return "notification" }

func (n *Notification) Collection() *mongo.Collection {
	return mgo.GetDB().Collection(n.GetTableName())
}

func (n *Notification) Create(ctx context.Context) error {
	n.CreatedAt = time.Now()
	res, err := n.Collection().InsertOne(ctx, n)
	if err != nil {
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		n.ID = oid
	}
	return nil
}

// ListByRecipient returns the user's notifications, newest first.
func (n *Notification) ListByRecipient(ctx context.Context, userID primitive.ObjectID, limit int64) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	cur, err := n.Collection().Find(ctx, bson.M{"recipient": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []Notification
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkRead flips one notification owned by the user.
func (n *Notification) MarkRead(ctx context.Context, id, userID primitive.ObjectID) error {
	res, err := n.Collection().UpdateOne(ctx,
		bson.M{"_id": id, "recipient": userID},
		bson.M{"$set": bson.M{"is_read": true}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// MarkAllRead flips everything unread for the user.
func (n *Notification) MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	res, err := n.Collection().UpdateMany(ctx,
		bson.M{"recipient": userID, "is_read": false},
		bson.M{"$set": bson.M{"is_read": true}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
