package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bivex/iap-reconciler/internal/application/dto"
	"github.com/bivex/iap-reconciler/internal/application/middleware"
	"github.com/bivex/iap-reconciler/internal/interfaces/http/response"
)

// AuthHandler issues and revokes the access tokens the reconciliation API
// requires. Token issuance trusts the caller's user id; this service sits
// behind the game's own account gateway, not on the public internet.
type AuthHandler struct {
	jwtMiddleware *middleware.JWTMiddleware
	accessTTL     time.Duration
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(jwtMiddleware *middleware.JWTMiddleware, accessTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		jwtMiddleware: jwtMiddleware,
		accessTTL:     accessTTL,
	}
}

// Token issues an access token for a user.
func (h *AuthHandler) Token(c *gin.Context) {
	var req dto.TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	token, _, err := h.jwtMiddleware.GenerateAccessToken(req.UserID)
	if err != nil {
		response.ServiceUnavailable(c, "Failed to issue token")
		return
	}

	response.OK(c, dto.TokenResponse{
		AccessToken: token,
		ExpiresAt:   time.Now().Add(h.accessTTL).Format("2006-01-02T15:04:05Z07:00"),
	})
}

// Revoke blocklists the caller's current token.
func (h *AuthHandler) Revoke(c *gin.Context) {
	jti := c.GetString("jti")
	if jti == "" {
		response.Unauthorized(c, "User not authenticated")
		return
	}

	if err := h.jwtMiddleware.RevokeToken(c.Request.Context(), jti, h.accessTTL); err != nil {
		response.ServiceUnavailable(c, "Failed to revoke token")
		return
	}
	response.OK(c, gin.H{"revoked": true})
}
