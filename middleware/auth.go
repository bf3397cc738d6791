package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wecare-app/wecare-backend/utils"
)

const (
	// ContextUserIDKey is the key used to store authenticated user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextPseudonymKey stores the caller's pseudonym inside Gin context.
	ContextPseudonymKey = "pseudonym"
)

// AuthRequired ensures the request is authenticated via JWT.
func AuthRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		claims, code, msg := parseBearer(ctx)
		if claims == nil {
			utils.Error(ctx, http.StatusUnauthorized, code, msg)
			ctx.Abort()
			return
		}
		ctx.Set(ContextUserIDKey, claims.UserID)
		ctx.Set(ContextPseudonymKey, claims.Pseudonym)
		ctx.Next()
	}
}

// AuthOptional attaches identity when a valid bearer token is presented and
// silently continues otherwise. Used on the feed so anonymous reads work
// while authenticated callers still get their own reaction state.
func AuthOptional() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if claims, _, _ := parseBearer(ctx); claims != nil {
			ctx.Set(ContextUserIDKey, claims.UserID)
			ctx.Set(ContextPseudonymKey, claims.Pseudonym)
		}
		ctx.Next()
	}
}

func parseBearer(ctx *gin.Context) (*utils.Claims, int, string) {
	authHeader := ctx.GetHeader("Authorization")
	if authHeader == "" {
		return nil, 40101, "authorization header missing"
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, 40102, "invalid authorization header format"
	}

	tokenString := strings.TrimSpace(parts[1])
	if tokenString == "" {
		return nil, 40103, "empty bearer token"
	}

	if utils.IsTokenBlacklisted(tokenString) {
		return nil, 40104, "token revoked"
	}

	claims, err := utils.ParseToken(tokenString)
	if err != nil {
		return nil, 40105, "invalid token"
	}
	return claims, 0, ""
}
