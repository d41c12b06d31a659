// internal/middleware/recovery_middleware.go
package middleware

import (
	"errors"
	"net"
	"net/http"
	"os"
	"strings"

	xerrors "billing-service/internal/pkg/errors"
	"billing-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RecoveryMiddleware turns handler panics into a 500 envelope. Panics caused
// by the client hanging up are logged at warn level and get no response.
func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Any("error", recovered),
		}
		if identityID, ok := GetIdentityID(c); ok {
			fields = append(fields, zap.Int64("identity_id", identityID))
		}

		if isBrokenConnection(recovered) {
			logger.Warn("connection broken during request", fields...)
			c.Abort()
			return
		}

		logger.Error("panic recovered", append(fields, zap.Stack("stack"))...)
		response.Error(c, http.StatusInternalServerError, "internal server error", xerrors.ErrInternal)
	})
}

func isBrokenConnection(recovered interface{}) bool {
	err, ok := recovered.(error)
	if !ok {
		return false
	}

	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		return false
	}
	var sysErr *os.SyscallError
	if !errors.As(opErr.Err, &sysErr) {
		return false
	}

	msg := strings.ToLower(sysErr.Error())
	return strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer")
}
