// internal/handlers/auth/auth_handler.go
package auth

import (
	"context"
	"net/http"
	"time"

	"billing-service/internal/middleware"
	"billing-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Revoker blacklists access tokens by jti
type Revoker interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
}

// AuthHandler exposes the session endpoints. Tokens are issued elsewhere; this
// service can only end them.
type AuthHandler struct {
	revoker Revoker
	logger  *zap.Logger
}

func NewAuthHandler(revoker Revoker, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		revoker: revoker,
		logger:  logger,
	}
}

// ========== Logout ==========

// Logout revokes the caller's token for the rest of its lifetime
func (h *AuthHandler) Logout(c *gin.Context) {
	if h.revoker == nil {
		response.Error(c, http.StatusNotImplemented, "token revocation requires redis", nil)
		return
	}

	identityID, _ := middleware.GetIdentityID(c)
	jti := middleware.GetJTI(c)
	expiresAt, ok := middleware.GetTokenExpiry(c)
	if jti == "" || !ok {
		response.Error(c, http.StatusBadRequest, "token cannot be revoked", nil)
		return
	}

	if err := h.revoker.BlacklistToken(c.Request.Context(), jti, time.Until(expiresAt)); err != nil {
		h.logger.Error("logout failed",
			zap.Int64("identity_id", identityID),
			zap.Error(err),
		)
		response.Error(c, http.StatusInternalServerError, "logout failed", err)
		return
	}

	h.logger.Info("token revoked",
		zap.Int64("identity_id", identityID),
		zap.String("jti", jti),
	)

	response.Success(c, http.StatusOK, "logged out successfully", nil)
}

// Me returns the identity and roles carried by the caller's token
func (h *AuthHandler) Me(c *gin.Context) {
	identityID, ok := middleware.GetIdentityID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	response.Success(c, http.StatusOK, "identity retrieved", gin.H{
		"identity_id": identityID,
		"roles":       middleware.GetRoles(c),
		"is_admin":    middleware.IsAdmin(c),
	})
}
