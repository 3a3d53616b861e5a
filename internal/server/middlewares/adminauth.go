package middlewares

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/markpress/markpress/internal/server/auth"
	"github.com/markpress/markpress/internal/server/handlers/api"
)

const (
	bearerPrefix = "Bearer "
	authHeader   = "Authorization"

	// UserContextKey holds the authenticated subject in the gin context.
	UserContextKey = "user"
)

// AdminAuth validates the bearer token and requires the admin claim.
// Every sync endpoint sits behind this; there is no lower privilege that
// may touch the canonical repository.
func AdminAuth(authService *auth.AuthService) gin.HandlerFunc {
	if !authService.IsEnabled() {
		slog.Warn("admin auth middleware disabled")
		return func(ctx *gin.Context) {
			ctx.Next()
		}
	}
	slog.Info("admin auth middleware enabled")
	return func(ctx *gin.Context) {
		headerValue := ctx.GetHeader(authHeader)
		if headerValue == "" {
			abortUnauthorized(ctx, "authorization header is missing")
			return
		}

		if !strings.HasPrefix(headerValue, bearerPrefix) {
			abortUnauthorized(ctx, "authorization header format must be Bearer {token}")
			return
		}

		tokenString := strings.TrimPrefix(headerValue, bearerPrefix)
		if tokenString == "" {
			abortUnauthorized(ctx, "token is missing")
			return
		}

		claims, err := authService.ValidateAdminToken(ctx, tokenString)
		if err != nil {
			abortUnauthorized(ctx, err.Error())
			return
		}

		ctx.Set(UserContextKey, claims.Subject)
		ctx.Next()
	}
}

func abortUnauthorized(ctx *gin.Context, message string) {
	ctx.AbortWithStatusJSON(http.StatusUnauthorized, api.Error{
		Code:    api.CodeAccessDenied,
		Message: message,
	})
}
