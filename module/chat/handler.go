package chat

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"PulseIM/logger"
	midsec "PulseIM/middleware/security"
	"PulseIM/module/chat/model"
	"PulseIM/tools/errs"
)

type createConversationReq struct {
	Participants []string `json:"participants" binding:"required,min=1"`
	Name         string   `json:"name"`
	IsGroup      bool     `json:"isGroup"`
}

func fail(c *gin.Context, status int, err *errs.CodeError, detail string) {
	c.JSON(status, gin.H{"code": err.Code, "kind": err.Kind(), "msg": detail})
}

func callerID(c *gin.Context) (primitive.ObjectID, bool) {
	uid, err := primitive.ObjectIDFromHex(midsec.UserID(c))
	if err != nil {
		fail(c, http.StatusUnauthorized, errs.ErrAuthentication, "bad identity")
		return primitive.NilObjectID, false
	}
	return uid, true
}

func conversationBody(ctx context.Context, c *model.Conversation) gin.H {
	var um model.User
	users, err := um.FindManyByIDs(ctx, c.Participants)
	if err != nil {
		logger.Errorf("conversation participants: %v", err)
	}
	participants := make([]gin.H, 0, len(users))
	for i := range users {
		participants = append(participants, gin.H{
			"id":       users[i].ID.Hex(),
			"username": users[i].Username,
			"avatar":   users[i].Avatar,
			"isOnline": users[i].IsOnline,
			"lastSeen": users[i].LastSeen,
		})
	}

	body := gin.H{
		"id":           c.ID.Hex(),
		"name":         c.Name,
		"isGroup":      c.IsGroup,
		"participants": participants,
		"createdAt":    c.CreatedAt,
		"updatedAt":    c.UpdatedAt,
	}
	if !c.LastMessage.IsZero() {
		var m model.Message
		if err := m.FindByID(ctx, c.LastMessage); err == nil {
			body["lastMessage"] = messageBody(ctx, &m)
		}
	}
	return body
}

func messageBody(ctx context.Context, m *model.Message) gin.H {
	sender := gin.H{"id": m.Sender.Hex()}
	var u model.User
	if err := u.FindByID(ctx, m.Sender); err == nil {
		sender["username"] = u.Username
		sender["avatar"] = u.Avatar
	}
	readBy := make([]string, 0, len(m.ReadBy))
	for _, r := range m.ReadBy {
		readBy = append(readBy, r.Hex())
	}
	return gin.H{
		"id":             m.ID.Hex(),
		"conversationId": m.ConversationID.Hex(),
		"sender":         sender,
		"content":        m.Content,
		"messageType":    m.MsgType,
		"fileUrl":        m.FileURL,
		"readBy":         readBy,
		"isRead":         m.IsRead,
		"createdAt":      m.CreatedAt,
	}
}

// HandlerCreateConversation creates or returns the conversation for a
// participant set. The caller is always included; the set is deduplicated,
// and an existing conversation with the same set is returned instead of a
// duplicate.
func HandlerCreateConversation(c *gin.Context) {
	uid, ok := callerID(c)
	if !ok {
		return
	}
	var req createConversationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, errs.ErrValidation, err.Error())
		return
	}

	seen := map[primitive.ObjectID]bool{uid: true}
	ids := []primitive.ObjectID{uid}
	for _, p := range req.Participants {
		oid, err := primitive.ObjectIDFromHex(p)
		if err != nil {
			fail(c, http.StatusBadRequest, errs.ErrValidation, "bad participant id")
			return
		}
		if !seen[oid] {
			seen[oid] = true
			ids = append(ids, oid)
		}
	}
	if len(ids) < 2 {
		fail(c, http.StatusBadRequest, errs.ErrValidation, "conversation needs another participant")
		return
	}

	ctx := c.Request.Context()

	var um model.User
	users, err := um.FindManyByIDs(ctx, ids)
	if err != nil {
		logger.Errorf("conversation create lookup: %v", err)
		fail(c, http.StatusInternalServerError, errs.ErrPersistence, "lookup failed")
		return
	}
	if len(users) != len(ids) {
		fail(c, http.StatusBadRequest, errs.ErrValidation, "unknown participant")
		return
	}

	var existing model.Conversation
	switch err := existing.FindByExactParticipants(ctx, ids); {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"conversation": conversationBody(ctx, &existing), "created": false})
		return
	case err != mongo.ErrNoDocuments:
		logger.Errorf("conversation dedup lookup: %v", err)
		fail(c, http.StatusInternalServerError, errs.ErrPersistence, "lookup failed")
		return
	}

	conv := model.Conversation{
		Name:         req.Name,
		IsGroup:      req.IsGroup || len(ids) > 2,
		Participants: ids,
	}
	if err := conv.Create(ctx); err != nil {
		logger.Errorf("conversation create: %v", err)
		fail(c, http.StatusInternalServerError, errs.ErrPersistence, "create failed")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"conversation": conversationBody(ctx, &conv), "created": true})
}

// HandlerListConversations returns the caller's conversations, most recent
// activity first.
func HandlerListConversations(c *gin.Context) {
	uid, ok := callerID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var cm model.Conversation
	convs, err := cm.ListByParticipant(ctx, uid)
	if err != nil {
		logger.Errorf("conversation list: %v", err)
		fail(c, http.StatusInternalServerError, errs.ErrPersistence, "list failed")
		return
	}

	out := make([]gin.H, 0, len(convs))
	for i := range convs {
		out = append(out, conversationBody(ctx, &convs[i]))
	}
	c.JSON(http.StatusOK, gin.H{"conversations": out})
}

// HandlerListMessages pages a conversation's history backwards from the
// `before` timestamp (RFC3339, optional).
func HandlerListMessages(c *gin.Context) {
	uid, ok := callerID(c)
	if !ok {
		return
	}
	convID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, errs.ErrValidation, "bad conversation id")
		return
	}
	ctx := c.Request.Context()

	var cm model.Conversation
	member, err := cm.IsParticipant(ctx, convID, uid)
	if err != nil {
		logger.Errorf("message list membership: %v", err)
		fail(c, http.StatusInternalServerError, errs.ErrPersistence, "lookup failed")
		return
	}
	if !member {
		fail(c, http.StatusForbidden, errs.ErrAuthorization, "not a participant")
		return
	}

	var before time.Time
	if raw := c.Query("before"); raw != "" {
		before, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			fail(c, http.StatusBadRequest, errs.ErrValidation, "bad before timestamp")
			return
		}
	}

	var mm model.Message
	msgs, err := mm.ListByConversation(ctx, convID, before, 0)
	if err != nil {
		logger.Errorf("message list: %v", err)
		fail(c, http.StatusInternalServerError, errs.ErrPersistence, "list failed")
		return
	}

	out := make([]gin.H, 0, len(msgs))
	for i := range msgs {
		out = append(out, messageBody(ctx, &msgs[i]))
	}
	c.JSON(http.StatusOK, gin.H{"messages": out})
}

// HandlerListNotifications returns the caller's notifications, newest first.
func HandlerListNotifications(c *gin.Context) {
	uid, ok := callerID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var nm model.Notification
	notifs, err := nm.ListByRecipient(ctx, uid, 0)
	if err != nil {
		logger.Errorf("notification list: %v", err)
		fail(c, http.StatusInternalServerError, errs.ErrPersistence, "list failed")
		return
	}

	out := make([]gin.H, 0, len(notifs))
	for i := range notifs {
		n := &notifs[i]
		sender := gin.H{"id": n.Sender.Hex()}
		var u model.User
		if err := u.FindByID(ctx, n.Sender); err == nil {
			sender["username"] = u.Username
			sender["avatar"] = u.Avatar
		}
		out = append(out, gin.H{
			"id":        n.ID.Hex(),
			"recipient": n.Recipient.Hex(),
			"sender":    sender,
			"type":      n.NotifType,
			"title":     n.Title,
			"message":   n.Body,
			"link":      n.Link,
			"isRead":    n.IsRead,
			"createdAt": n.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"notifications": out})
}

// HandlerMarkNotificationRead marks one notification read; "all" marks
// everything unread.
func HandlerMarkNotificationRead(c *gin.Context) {
	uid, ok := callerID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	var nm model.Notification

	raw := c.Param("id")
	if raw == "all" {
		n, err := nm.MarkAllRead(ctx, uid)
		if err != nil {
			logger.Errorf("notification mark all: %v", err)
			fail(c, http.StatusInternalServerError, errs.ErrPersistence, "update failed")
			return
		}
		c.JSON(http.StatusOK, gin.H{"updated": n})
		return
	}

	nid, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		fail(c, http.StatusBadRequest, errs.ErrValidation, "bad notification id")
		return
	}
	switch err := nm.MarkRead(ctx, nid, uid); {
	case err == mongo.ErrNoDocuments:
		fail(c, http.StatusNotFound, errs.ErrNotFound, "notification not found")
	case err != nil:
		logger.Errorf("notification mark: %v", err)
		fail(c, http.StatusInternalServerError, errs.ErrPersistence, "update failed")
	default:
		c.JSON(http.StatusOK, gin.H{"updated": 1})
	}
}
