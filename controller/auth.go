package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"convochat/service"
)

// AuthController ...
type AuthController struct {
	tokens *service.TokenService
}

func NewAuthController(tokens *service.TokenService) *AuthController {
	return &AuthController{tokens: tokens}
}

// TokenValid aborts the request unless it carries a valid access token, and
// stores the token's identity as "UserId" and "UserName".
func (a *AuthController) TokenValid(c *gin.Context) {
	tokenAuth, err := a.tokens.ExtractTokenMetadata(c.Request)
	if err != nil {
		//Token either expired or not valid
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Please login first"})
		return
	}

	c.Set("UserId", tokenAuth.UserID)
	c.Set("UserName", tokenAuth.UserName)
}

// TokenAuthMiddleware ...
// JWT Authentication middleware attached to each request that needs to be authenitcated to
// validate the access_token in the header
func (a *AuthController) TokenAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		a.TokenValid(c)
		if c.IsAborted() {
			return
		}
		c.Next()
	}
}

// Refresh ...
func (a *AuthController) Refresh(c *gin.Context) {
	ts, err := a.tokens.Refresh(c.Request)
	if err != nil {
		logger.Warnf("[%s] Token refresh rejected: %s", c.GetString("requestId"), err)
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid authorization, please login again"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": ts.AccessToken})
}

func currentUserID(c *gin.Context) uint {
	return c.GetUint("UserId")
}
