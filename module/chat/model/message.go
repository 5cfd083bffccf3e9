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

type Message struct {
	ID             primitive.ObjectID   `bson:"_id,omitempty"`
	ConversationID primitive.ObjectID   `bson:"conversation_id"`
	Sender         primitive.ObjectID   `bson:"sender"`
	Content        string               `bson:"content"`
	MsgType        string               `bson:"msg_type"` // text/image/file/video
	FileURL        string               `bson:"file_url,omitempty"`
	ReadBy         []primitive.ObjectID `bson:"read_by"`
	IsRead         bool                 `bson:"is_read"`

	CreatedAt time.Time `bson:"created_at"`
}

func (m *Message) GetTableName() string { return "message" }

func (m *Message) Collection() *mongo.Collection {
	return mgo.GetDB().Collection(m.GetTableName())
}

func (m *Message) Create(ctx context.Context) error {
	m.CreatedAt = time.Now()
	if m.ReadBy == nil {
		m.ReadBy = []primitive.ObjectID{}
	}
	res, err := m.Collection().InsertOne(ctx, m)
	if err != nil {
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		m.ID = oid
	}
	return nil
}

func (m *Message) FindByID(ctx context.Context, id primitive.ObjectID) error {
	return m.Collection().FindOne(ctx, bson.M{"_id": id}).Decode(m)
}

// AppendReader atomically adds the reader to read_by and marks the message
// read. $addToSet carries the idempotency: a repeat reader modifies nothing.
// Returns whether the reader was new; mongo.ErrNoDocuments for unknown ids.
func (m *Message) AppendReader(ctx context.Context, msgID, userID primitive.ObjectID) (bool, error) {
	res, err := m.Collection().UpdateOne(ctx,
		bson.M{"_id": msgID},
		bson.M{
			"$addToSet": bson.M{"read_by": userID},
			"$set":      bson.M{"is_read": true},
		},
	)
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		return false, mongo.ErrNoDocuments
	}
	return res.ModifiedCount > 0, nil
}

// ListByConversation pages newest-first; pass a zero before-time for the
// first page.
func (m *Message) ListByConversation(ctx context.Context, convID primitive.ObjectID, before time.Time, limit int64) ([]Message, error) {
	filter := bson.M{"conversation_id": convID}
	if !before.IsZero() {
		filter["created_at"] = bson.M{"$lt": before}
	}
	if limit <= 0 {
		limit = 50
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	cur, err := m.Collection().Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
