package restapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"tradesim/internal/entity"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const teamContextKey = "authenticatedTeam"

// TeamResolver maps a bearer credential to a team.
type TeamResolver interface {
	GetTeamByAPIKey(ctx context.Context, apiKey string) (*entity.Team, error)
}

// TeamAuth authenticates protected routes with an opaque bearer API key and
// stashes the resolved team in the request context.
func TeamAuth(teams TeamResolver, logger *zap.Logger) gin.HandlerFunc {
	log := logger.Named("TeamAuth")
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "missing or malformed Authorization header",
			})
			return
		}

		team, err := teams.GetTeamByAPIKey(c.Request.Context(), token)
		if err != nil {
			log.Error("Failed to resolve API key", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error":   "internal error",
			})
			return
		}
		if team == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "invalid API key",
			})
			return
		}

		c.Set(teamContextKey, team)
		c.Next()
	}
}

// AdminAuth guards administrative routes with the configured root API key.
func AdminAuth(rootAPIKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok || rootAPIKey == "" || token != rootAPIKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "admin authorization required",
			})
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func currentTeam(c *gin.Context) *entity.Team {
	value, exists := c.Get(teamContextKey)
	if !exists {
		return nil
	}
	return value.(*entity.Team)
}

// ZapLogger is a request logging middleware in the style of gin's default
// logger but emitting structured zap entries.
func ZapLogger(logger *zap.Logger) gin.HandlerFunc {
	log := logger.Named("HTTP")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("Request handled",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
