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

type Conversation struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty"`
	Name         string               `bson:"name,omitempty"` // group conversations only
	IsGroup      bool                 `bson:"is_group"`
	Participants []primitive.ObjectID `bson:"participants"`
	LastMessage  primitive.ObjectID   `bson:"last_message,omitempty"`

	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (c *Conversation) GetTableName() string { return "conversation" }

func (c *Conversation) Collection() *mongo.Collection {
	return mgo.GetDB().Collection(c.GetTableName())
}

func (c *Conversation) Create(ctx context.Context) error {
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	res, err := c.Collection().InsertOne(ctx, c)
	if err != nil {
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		c.ID = oid
	}
	return nil
}

func (c *Conversation) FindByID(ctx context.Context, id primitive.ObjectID) error {
	return c.Collection().FindOne(ctx, bson.M{"_id": id}).Decode(c)
}

// FindByExactParticipants looks up the conversation holding exactly this
// participant set. One conversation per set is the uniqueness rule; $all plus
// $size is set equality for distinct members.
func (c *Conversation) FindByExactParticipants(ctx context.Context, ids []primitive.ObjectID) error {
	filter := bson.M{
		"participants": bson.M{"$all": ids, "$size": len(ids)},
	}
	return c.Collection().FindOne(ctx, filter).Decode(c)
}

// IsParticipant checks membership without loading the document.
func (c *Conversation) IsParticipant(ctx context.Context, convID, userID primitive.ObjectID) (bool, error) {
	n, err := c.Collection().CountDocuments(ctx, bson.M{"_id": convID, "participants": userID})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SetLastMessage advances the conversation's pointer to the latest message.
func (c *Conversation) SetLastMessage(ctx context.Context, convID, msgID primitive.ObjectID) error {
	res, err := c.Collection().UpdateOne(ctx,
		bson.M{"_id": convID},
		bson.M{"$set": bson.M{"last_message": msgID, "updated_at": time.Now()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// ListByParticipant returns the user's conversations, most recent first.
func (c *Conversation) ListByParticipant(ctx context.Context, userID primitive.ObjectID) ([]Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cur, err := c.Collection().Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []Conversation
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
