package model

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"PulseIM/data/database"
	"PulseIM/service/mgo"
)

type User struct {
	ID       primitive.ObjectID `bson:"_id,omitempty"`
	Username string             `bson:"username"`
	Email    string             `bson:"email"`
	Password string             `bson:"password"` // argon2id encoded hash
	Avatar   string             `bson:"avatar,omitempty"`

	IsOnline bool      `bson:"is_online"`          // written on 0<->1 presence transitions only
	LastSeen time.Time `bson:"last_seen"`

	CreatedAt time.Time `bson:"created_at"`
}

// every model satisfies the collection contract
var (
	_ database.Table = (*User)(nil)
	_ database.Table = (*Conversation)(nil)
	_ database.Table = (*Message)(nil)
	_ database.Table = (*Notification)(nil)
)

func (u *User) GetTableName() string { return "user" }

func (u *User) Collection() *mongo.Collection {
	return mgo.GetDB().Collection(u.GetTableName())
}

func (u *User) Create(ctx context.Context) error {
	u.CreatedAt = time.Now()
	u.LastSeen = u.CreatedAt
	res, err := u.Collection().InsertOne(ctx, u)
	if err != nil {
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		u.ID = oid
	}
	return nil
}

func (u *User) FindByEmail(ctx context.Context, email string) error {
	return u.Collection().FindOne(ctx, bson.M{"email": email}).Decode(u)
}

func (u *User) FindByID(ctx context.Context, id primitive.ObjectID) error {
	return u.Collection().FindOne(ctx, bson.M{"_id": id}).Decode(u)
}

// SetOnline flips the durable presence flag and refreshes last_seen.
func (u *User) SetOnline(ctx context.Context, id primitive.ObjectID, online bool) error {
	_, err := u.Collection().UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"is_online": online, "last_seen": time.Now()}},
	)
	return err
}

// FindManyByIDs loads a participant set in one query.
func (u *User) FindManyByIDs(ctx context.Context, ids []primitive.ObjectID) ([]User, error) {
	cur, err := u.Collection().Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []User
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListOthers returns everyone except the given user, for the contact list.
func (u *User) ListOthers(ctx context.Context, exclude primitive.ObjectID) ([]User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "username", Value: 1}})
	cur, err := u.Collection().Find(ctx, bson.M{"_id": bson.M{"$ne": exclude}}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []User
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
