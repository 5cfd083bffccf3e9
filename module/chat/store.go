package chat

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"PulseIM/module/chat/model"
	"PulseIM/service/chat"
	"PulseIM/tools/errs"
)

// MongoStore adapts the Mongo models to the coordinator's Store interface.
// It owns the id-format boundary: string ids from the wire are validated
// here, and mongo errors are classified into errs sentinels before they
// reach the coordinator.
type MongoStore struct{}

var _ chat.Store = (*MongoStore)(nil)

func NewMongoStore() *MongoStore { return &MongoStore{} }

func parseOID(field, id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, errs.ErrValidation.WithDetail("bad " + field)
	}
	return oid, nil
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if err == mongo.ErrNoDocuments {
		return errs.ErrNotFound
	}
	return errs.ErrPersistence.WrapMsg(err.Error())
}

func toUser(u *model.User) chat.User {
	return chat.User{
		ID:       u.ID.Hex(),
		Username: u.Username,
		Email:    u.Email,
		Avatar:   u.Avatar,
		IsOnline: u.IsOnline,
		LastSeen: u.LastSeen,
	}
}

func toMessage(m *model.Message, sender chat.User) *chat.Message {
	readBy := make([]string, 0, len(m.ReadBy))
	for _, r := range m.ReadBy {
		readBy = append(readBy, r.Hex())
	}
	return &chat.Message{
		ID:             m.ID.Hex(),
		ConversationID: m.ConversationID.Hex(),
		Sender:         sender,
		Content:        m.Content,
		Type:           m.MsgType,
		FileURL:        m.FileURL,
		ReadBy:         readBy,
		IsRead:         m.IsRead,
		CreatedAt:      m.CreatedAt,
	}
}

func (s *MongoStore) loadUser(ctx context.Context, id primitive.ObjectID) (chat.User, error) {
	var u model.User
	if err := u.FindByID(ctx, id); err != nil {
		return chat.User{}, classify(err)
	}
	return toUser(&u), nil
}

func (s *MongoStore) GetConversation(ctx context.Context, id string) (*chat.Conversation, error) {
	oid, err := parseOID("conversation id", id)
	if err != nil {
		return nil, err
	}
	var c model.Conversation
	if err := c.FindByID(ctx, oid); err != nil {
		return nil, classify(err)
	}

	var um model.User
	users, err := um.FindManyByIDs(ctx, c.Participants)
	if err != nil {
		return nil, classify(err)
	}
	participants := make([]chat.User, 0, len(users))
	for i := range users {
		participants = append(participants, toUser(&users[i]))
	}

	out := &chat.Conversation{
		ID:           c.ID.Hex(),
		Name:         c.Name,
		IsGroup:      c.IsGroup,
		Participants: participants,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
	if !c.LastMessage.IsZero() {
		var m model.Message
		if err := m.FindByID(ctx, c.LastMessage); err == nil {
			sender, serr := s.loadUser(ctx, m.Sender)
			if serr == nil {
				out.LastMessage = toMessage(&m, sender)
			}
		}
		// a dangling last_message pointer is not worth failing the load
	}
	return out, nil
}

func (s *MongoStore) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	convID, err := parseOID("conversation id", conversationID)
	if err != nil {
		return false, err
	}
	uid, err := parseOID("user id", userID)
	if err != nil {
		return false, err
	}
	var c model.Conversation
	ok, err := c.IsParticipant(ctx, convID, uid)
	if err != nil {
		return false, classify(err)
	}
	return ok, nil
}

func (s *MongoStore) CreateMessage(ctx context.Context, in *chat.NewMessage) (*chat.Message, error) {
	convID, err := parseOID("conversation id", in.ConversationID)
	if err != nil {
		return nil, err
	}
	senderID, err := parseOID("sender id", in.SenderID)
	if err != nil {
		return nil, err
	}
	sender, err := s.loadUser(ctx, senderID)
	if err != nil {
		return nil, err
	}
	m := model.Message{
		ConversationID: convID,
		Sender:         senderID,
		Content:        in.Content,
		MsgType:        in.Type,
		FileURL:        in.FileURL,
		ReadBy:         []primitive.ObjectID{},
	}
	if err := m.Create(ctx); err != nil {
		return nil, classify(err)
	}
	return toMessage(&m, sender), nil
}

func (s *MongoStore) SetLastMessage(ctx context.Context, conversationID, messageID string) error {
	convID, err := parseOID("conversation id", conversationID)
	if err != nil {
		return err
	}
	msgID, err := parseOID("message id", messageID)
	if err != nil {
		return err
	}
	var c model.Conversation
	return classify(c.SetLastMessage(ctx, convID, msgID))
}

func (s *MongoStore) AppendReader(ctx context.Context, messageID, userID string) (bool, error) {
	msgID, err := parseOID("message id", messageID)
	if err != nil {
		return false, err
	}
	uid, err := parseOID("user id", userID)
	if err != nil {
		return false, err
	}
	var m model.Message
	added, err := m.AppendReader(ctx, msgID, uid)
	if err != nil {
		return false, classify(err)
	}
	return added, nil
}

func (s *MongoStore) CreateNotification(ctx context.Context, in *chat.NewNotification) (*chat.Notification, error) {
	recipientID, err := parseOID("recipient id", in.Recipient)
	if err != nil {
		return nil, err
	}
	senderID, err := parseOID("sender id", in.SenderID)
	if err != nil {
		return nil, err
	}
	sender, err := s.loadUser(ctx, senderID)
	if err != nil {
		return nil, err
	}
	n := model.Notification{
		Recipient: recipientID,
		Sender:    senderID,
		NotifType: in.Type,
		Title:     in.Title,
		Body:      in.Body,
		Link:      in.Link,
	}
	if err := n.Create(ctx); err != nil {
		return nil, classify(err)
	}
	return &chat.Notification{
		ID:        n.ID.Hex(),
		Recipient: n.Recipient.Hex(),
		Sender:    sender,
		Type:      n.NotifType,
		Title:     n.Title,
		Body:      n.Body,
		Link:      n.Link,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}, nil
}

func (s *MongoStore) SetUserOnline(ctx context.Context, userID string, online bool) error {
	uid, err := parseOID("user id", userID)
	if err != nil {
		return err
	}
	var u model.User
	return classify(u.SetOnline(ctx, uid, online))
}
