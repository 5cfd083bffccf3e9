package user

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"PulseIM/global"
	"PulseIM/logger"
	midsec "PulseIM/middleware/security"
	"PulseIM/module/chat/model"
	"PulseIM/tools/errs"
	"PulseIM/tools/security"
)

type registerReq struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Avatar   string `json:"avatar"`
}

type loginReq struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func userBody(u *model.User) gin.H {
	return gin.H{
		"id":       u.ID.Hex(),
		"username": u.Username,
		"email":    u.Email,
		"avatar":   u.Avatar,
		"isOnline": u.IsOnline,
		"lastSeen": u.LastSeen,
	}
}

func fail(c *gin.Context, status int, err *errs.CodeError, detail string) {
	c.JSON(status, gin.H{"code": err.Code, "kind": err.Kind(), "msg": detail})
}

// HandlerRegister creates an account. Email uniqueness is first-writer-wins;
// the unique index on email backstops races.
func HandlerRegister(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, errs.ErrValidation, err.Error())
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	var existing model.User
	switch err := existing.FindByEmail(c.Request.Context(), req.Email); {
	case err == nil:
		fail(c, http.StatusConflict, errs.ErrValidation, "email already registered")
		return
	case err != mongo.ErrNoDocuments:
		logger.Errorf("register lookup: %v", err)
		fail(c, http.StatusInternalServerError, errs.ErrPersistence, "lookup failed")
		return
	}

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		logger.Errorf("register hash: %v", err)
		fail(c, http.StatusInternalServerError, errs.ErrInternal, "hash failed")
		return
	}

	u := model.User{
		Username: strings.TrimSpace(req.Username),
		Email:    req.Email,
		Password: hash,
		Avatar:   req.Avatar,
	}
	if err := u.Create(c.Request.Context()); err != nil {
		logger.Errorf("register create: %v", err)
		fail(c, http.StatusInternalServerError, errs.ErrPersistence, "create failed")
		return
	}

	token, expireAt, err := security.Generate(global.JWTOptions(), u.ID.Hex(), u.Username)
	if err != nil {
		logger.Errorf("register token: %v", err)
		fail(c, http.StatusInternalServerError, errs.ErrInternal, "token failed")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"token":    token,
		"expireAt": expireAt,
		"user":     userBody(&u),
	})
}

// HandlerLogin verifies credentials and issues a JWT.
func HandlerLogin(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, errs.ErrValidation, err.Error())
		return
	}

	var u model.User
	err := u.FindByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err == mongo.ErrNoDocuments {
		fail(c, http.StatusUnauthorized, errs.ErrAuthentication, "invalid credentials")
		return
	}
	if err != nil {
		logger.Errorf("login lookup: %v", err)
		fail(c, http.StatusInternalServerError, errs.ErrPersistence, "lookup failed")
		return
	}

	ok, err := security.ComparePassword(req.Password, u.Password)
	if err != nil || !ok {
		fail(c, http.StatusUnauthorized, errs.ErrAuthentication, "invalid credentials")
		return
	}

	token, expireAt, err := security.Generate(global.JWTOptions(), u.ID.Hex(), u.Username)
	if err != nil {
		logger.Errorf("login token: %v", err)
		fail(c, http.StatusInternalServerError, errs.ErrInternal, "token failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":    token,
		"expireAt": expireAt,
		"user":     userBody(&u),
	})
}

// HandlerList returns every user except the caller, for contact pickers.
func HandlerList(c *gin.Context) {
	uid, err := primitive.ObjectIDFromHex(midsec.UserID(c))
	if err != nil {
		fail(c, http.StatusUnauthorized, errs.ErrAuthentication, "bad identity")
		return
	}

	var u model.User
	users, err := u.ListOthers(c.Request.Context(), uid)
	if err != nil {
		logger.Errorf("user list: %v", err)
		fail(c, http.StatusInternalServerError, errs.ErrPersistence, "list failed")
		return
	}

	out := make([]gin.H, 0, len(users))
	for i := range users {
		out = append(out, userBody(&users[i]))
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}
