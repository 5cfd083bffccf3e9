package middleware

import (
	"github.com/gin-gonic/gin"

	midsec "PulseIM/middleware/security"
)

type RouteOpt struct {
	IsAuth bool
}

var authOpts *midsec.Options

// UseAuth installs the auth options used by authenticated routes. Call once
// during bootstrap, before registering routes.
func UseAuth(opts *midsec.Options) {
	authOpts = opts
}

func POST(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	if opt.IsAuth {
		r.POST(path, midsec.Middleware(authOpts), handler)
	} else {
		r.POST(path, handler)
	}
}

func GET(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	if opt.IsAuth {
		r.GET(path, midsec.Middleware(authOpts), handler)
	} else {
		r.GET(path, handler)
	}
}

func PUT(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	if opt.IsAuth {
		r.PUT(path, midsec.Middleware(authOpts), handler)
	} else {
		r.PUT(path, handler)
	}
}
