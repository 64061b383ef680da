package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joshua-takyi/eventhub/internal/helpers"
	"github.com/joshua-takyi/eventhub/internal/metrics"
	"github.com/joshua-takyi/eventhub/internal/models"
)

// AccessTokenCookie carries the access token for browser clients.
const AccessTokenCookie = "access_token"

// RequestID middleware adds a unique request ID to each request
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// StructuredLogger provides structured logging middleware
func StructuredLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}
		requestID, _ := c.Get("request_id")

		attrs := []any{
			"request_id", requestID,
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if user, ok := helpers.CurrentUser(c); ok {
			attrs = append(attrs, "user_id", user.UserID)
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			logger.Error("HTTP Request", attrs...)
		case status >= http.StatusBadRequest:
			logger.Warn("HTTP Request", attrs...)
		default:
			logger.Info("HTTP Request", attrs...)
		}
	}
}

// ErrorHandler logs errors attached with c.Error and answers with a generic 500
// unless the handler already wrote a response.
func ErrorHandler(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last()
		requestID, _ := c.Get("request_id")

		logger.Error("Request error",
			"request_id", requestID,
			"error", err.Error(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)

		if !c.Writer.Written() {
			c.JSON(http.StatusInternalServerError, models.ErrorBody{
				Message:   "Server error",
				Code:      "server_error",
				RequestID: requestID,
			})
		}
	}
}

// Metrics records request counts and latency by route template.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// AuthMiddleware resolves the bearer token (or the access_token cookie) into the
// caller identity stored under helpers.ContextUserKey.
func AuthMiddleware(verifier helpers.TokenVerifier, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := helpers.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			cookie, err := c.Cookie(AccessTokenCookie)
			if err != nil || cookie == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorBody{
					Message: "Not authorized, no token",
					Code:    "unauthenticated",
				})
				return
			}
			token = cookie
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			requestID, _ := c.Get("request_id")
			logger.Debug("Token rejected", "request_id", requestID, "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorBody{
				Message: "Not authorized, token failed",
				Code:    "unauthenticated",
			})
			return
		}

		c.Set(helpers.ContextUserKey, &helpers.AuthUser{
			UserID: claims.Subject,
			Email:  claims.Email,
			Name:   claims.DisplayName(),
		})
		c.Next()
	}
}

// ProfileStore records the authenticated caller's profile.
type ProfileStore interface {
	EnsureProfile(ctx context.Context, userID, email, name string) error
}

// EnsureProfile runs after AuthMiddleware for identity providers whose users can sign in
// without going through register or login. Failures are logged and the request continues.
func EnsureProfile(profiles ProfileStore, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user, ok := helpers.CurrentUser(c); ok {
			if err := profiles.EnsureProfile(c.Request.Context(), user.UserID, user.Email, user.Name); err != nil {
				requestID, _ := c.Get("request_id")
				logger.Warn("Failed to store caller profile", "request_id", requestID, "user_id", user.UserID, "error", err)
			}
		}
		c.Next()
	}
}
