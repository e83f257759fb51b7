// internal/api/middleware.go
package api

import (
	"net/http"
	"strings"
	"time"

	"notification-gateway/internal/common/config"
	"notification-gateway/internal/common/logger"
	"notification-gateway/internal/common/observability"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	ctxKeyCallerID      = "caller_id"
	ctxKeyCorrelationID = "correlation_id"

	correlationHeader = "X-Correlation-ID"
)

// CorrelationMiddleware reads or generates the request correlation id and
// echoes it on the response so traces can be stitched across services.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(correlationHeader)
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		c.Set(ctxKeyCorrelationID, correlationID)
		c.Header(correlationHeader, correlationID)
		c.Next()
	}
}

// ObservabilityMiddleware records per-route request counts and durations.
func ObservabilityMiddleware(obs *observability.Observability) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		obs.RecordRequest(c.Request.Context(), route, c.Writer.Status())
		obs.RecordRequestDuration(c.Request.Context(), route, time.Since(start))
	}
}

// AuthMiddleware verifies the bearer token and stores the token subject
// as the caller identity used for rate limiting.
func AuthMiddleware(cfg config.AuthConfig, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("missing bearer token"))
			return
		}
		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(cfg.JWTSecret), nil
		},
			jwt.WithAudience(cfg.Audience),
			jwt.WithIssuer(cfg.Issuer),
			jwt.WithValidMethods([]string{"HS256"}),
		)
		if err != nil || !token.Valid {
			log.Warn("token verification failed", map[string]interface{}{
				"error": errString(err),
			})
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("could not validate credentials"))
			return
		}

		subject, err := token.Claims.GetSubject()
		if err != nil || subject == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("token has no subject"))
			return
		}

		c.Set(ctxKeyCallerID, subject)
		c.Next()
	}
}

// callerIdentity returns the rate-limit identity: the token subject the
// auth middleware verified before the handler ran, namespaced for the
// limiter's keyspace.
func callerIdentity(c *gin.Context) string {
	return "api:" + c.GetString(ctxKeyCallerID)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
