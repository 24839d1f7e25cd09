package controller

import (
	"net/http"
	"time"

	_uuid "github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gin-gonic/gin"
)

// CORSMiddleware ...
// CORS (Cross-Origin Resource Sharing)
func CORSMiddleware(origin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, PATCH, DELETE")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "X-Requested-With, Content-Type, Origin, Authorization, Accept, Client-Security-Token, Accept-Encoding, x-access-token")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length, X-Request-Id")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

// RequestIDMiddleware ...
// Generate a unique ID and attach it to each request for future reference or use
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		uuid := _uuid.New()
		c.Writer.Header().Set("X-Request-Id", uuid.String())
		c.Set("requestId", uuid.String())
		c.Next()
	}
}

func LogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		logger.Infof(
			"[%s] %d | %v | %s | %s | %s | %s",
			c.GetString("requestId"),
			c.Writer.Status(),
			time.Since(start),
			c.ClientIP(),
			c.Request.Method,
			path,
			c.Request.UserAgent(),
		)
	}
}

// Handlers groups the controllers mounted by NewRouter.
type Handlers struct {
	Auth *AuthController
	User *UserController
	Chat *ChatController
}

func NewRouter(h Handlers, corsOrigin string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(CORSMiddleware(corsOrigin))
	r.Use(RequestIDMiddleware())
	r.Use(LogMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	{
		v1.POST("/user/register", h.User.Register)
		v1.POST("/user/login", h.User.Login)

		//Refresh the token
		v1.POST("/token/refresh", h.Auth.Refresh)

		authed := v1.Group("", h.Auth.TokenAuthMiddleware())
		authed.GET("/conversations", h.Chat.List)
		authed.POST("/conversations", h.Chat.Create)
		authed.GET("/conversations/:id", h.Chat.Get)
		authed.DELETE("/conversations/:id", h.Chat.Delete)
		authed.PATCH("/conversations/:id", h.Chat.Rename)
		authed.POST("/conversations/:id/messages", h.Chat.SendMessage)
		authed.POST("/conversations/:id/regenerate", h.Chat.Regenerate)
		authed.PATCH("/messages/:id", h.Chat.EditMessage)
	}
	return r
}
