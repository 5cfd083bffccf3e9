package security

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"PulseIM/tools/errs"
	"PulseIM/tools/security"
)

// Context keys set by the middleware. Downstream handlers read these two.
const (
	CtxUserIDKey   = "userID"   // string
	CtxUsernameKey = "username" // string
)

type Options struct {
	JWT security.Options

	// HeaderToken is consulted before the Authorization header. Default "authorization".
	HeaderToken               string
	EnableAuthorizationBearer bool // default true
}

func DefaultOptions(jwt security.Options) *Options {
	return &Options{
		JWT:                       jwt,
		HeaderToken:               "authorization",
		EnableAuthorizationBearer: true,
	}
}

// Middleware verifies the bearer token and stashes the identity into the
// gin context. Requests without a valid token are rejected with the
// authentication error body.
func Middleware(opts *Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader(opts.HeaderToken))

		if token == "" && opts.EnableAuthorizationBearer {
			if authz := strings.TrimSpace(c.GetHeader("Authorization")); authz != "" {
				if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
					token = strings.TrimSpace(authz[len("bearer "):])
				}
			}
		}

		if token == "" {
			abortAuth(c, "missing token")
			return
		}

		id, err := security.Verify(opts.JWT, token)
		if err != nil {
			abortAuth(c, "invalid token")
			return
		}

		c.Set(CtxUserIDKey, id.UserID)
		c.Set(CtxUsernameKey, id.Username)
		c.Next()
	}
}

func abortAuth(c *gin.Context, detail string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code": errs.ErrAuthentication.Code,
		"kind": errs.ErrAuthentication.Kind(),
		"msg":  detail,
	})
}

// UserID reads the verified identity set by Middleware.
func UserID(c *gin.Context) string {
	return c.GetString(CtxUserIDKey)
}

func Username(c *gin.Context) string {
	return c.GetString(CtxUsernameKey)
}
