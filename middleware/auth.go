package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/punchclock/models"
	"github.com/cppla/punchclock/utils"
)

const (
	// ContextUserIDKey is the key used to store authenticated user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextUsernameKey stores the username inside Gin context.
	ContextUsernameKey = "username"
	// ContextRoleKey stores the role claim.
	ContextRoleKey = "role"
)

// AuthRequired ensures the request is authenticated via JWT.
func AuthRequired(issuer *utils.TokenIssuer) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authHeader := ctx.GetHeader("Authorization")
		if authHeader == "" {
			utils.Error(ctx, http.StatusUnauthorized, utils.CodeUnauthorized+1, "authorization header missing")
			ctx.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			utils.Error(ctx, http.StatusUnauthorized, utils.CodeUnauthorized+2, "invalid authorization header format")
			ctx.Abort()
			return
		}

		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			utils.Error(ctx, http.StatusUnauthorized, utils.CodeUnauthorized+3, "empty bearer token")
			ctx.Abort()
			return
		}

		claims, err := issuer.ParseToken(tokenString)
		if err != nil || claims.UserID == 0 {
			utils.Error(ctx, http.StatusUnauthorized, utils.CodeUnauthorized+5, "invalid token")
			ctx.Abort()
			return
		}

		role := claims.Role
		if role == "" {
			role = models.RoleEmployee
		}
		ctx.Set(ContextUserIDKey, claims.UserID)
		ctx.Set(ContextUsernameKey, claims.Username)
		ctx.Set(ContextRoleKey, role)
		ctx.Next()
	}
}

// RequireAdmin rejects callers without the admin role. It must run after AuthRequired.
func RequireAdmin() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !strings.EqualFold(ctx.GetString(ContextRoleKey), models.RoleAdmin) {
			utils.Error(ctx, http.StatusForbidden, utils.CodeForbidden, "admin role required")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}
