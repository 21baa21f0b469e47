package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joshua-takyi/tourbook/internal/apperr"
	"github.com/joshua-takyi/tourbook/internal/helpers"
	"github.com/joshua-takyi/tourbook/internal/metrics"
	"github.com/joshua-takyi/tourbook/internal/models"
	"github.com/rs/zerolog"
)

const (
	RequestIDKey = "request_id"
	UserKey      = "user"
)

// RequestID middleware adds a unique request ID to each request
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(RequestIDKey, requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// StructuredLogger writes one line per request.
func StructuredLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}
		status := c.Writer.Status()

		evt := logger.Info()
		switch {
		case status >= http.StatusInternalServerError:
			evt = logger.Error()
		case status >= http.StatusBadRequest:
			evt = logger.Warn()
		}
		evt.Str("request_id", c.GetString(RequestIDKey)).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP Request")
	}
}

// Metrics records request counts and latency by matched route template so
// path parameters do not explode label cardinality.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

// ErrorHandler logs errors attached with c.Error and renders a generic 500
// when the handler wrote nothing.
func ErrorHandler(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last()
		logger.Error().
			Str("request_id", c.GetString(RequestIDKey)).
			Err(err.Err).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Msg("Request error")

		if !c.Writer.Written() {
			meta := apperr.MetadataFor(apperr.CodeInternal)
			c.JSON(meta.HTTPStatus, models.ErrorResponse(meta.PublicMessage, string(apperr.CodeInternal)))
		}
	}
}

// Recovery converts panics into the standard error envelope.
func Recovery(logger zerolog.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error().
			Str("request_id", c.GetString(RequestIDKey)).
			Interface("panic", recovered).
			Str("path", c.Request.URL.Path).
			Msg("panic recovered")
		abort(c, apperr.CodeInternal, apperr.MetadataFor(apperr.CodeInternal).PublicMessage)
	})
}

// UserLookup resolves the stored profile of an authenticated caller.
type UserLookup interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// AuthMiddleware verifies the bearer token and attaches *helpers.EnhancedClaims
// under UserKey. Callers without a stored profile are treated as customers so
// that first sign-in can register them.
func AuthMiddleware(verifier helpers.TokenVerifier, users UserLookup, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := helpers.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			abort(c, apperr.CodeUnauthorized, "No token provided")
			return
		}

		claims, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			logger.Debug().Err(err).Str("request_id", c.GetString(RequestIDKey)).Msg("token rejected")
			abort(c, apperr.CodeUnauthorized, "Invalid or expired token")
			return
		}

		enhanced := &helpers.EnhancedClaims{
			CustomClaims: claims,
			Email:        claims.Email,
			Name:         claims.Name,
			Role:         models.RoleCustomer,
			Status:       models.UserActive,
		}

		user, err := users.GetUserByEmail(c.Request.Context(), claims.Email)
		switch {
		case err == nil:
			enhanced.Role = user.Role
			enhanced.Status = user.Status
			if user.Name != "" {
				enhanced.Name = user.Name
			}
		case apperr.IsCode(err, apperr.CodeNotFound):
			logger.Debug().Str("email", claims.Email).Msg("profile not found, using default role")
		default:
			logger.Error().Err(err).Str("email", claims.Email).Msg("profile lookup failed")
			abort(c, apperr.CodeDependency, "failed to load user profile")
			return
		}

		if enhanced.Status == models.UserBanned {
			abort(c, apperr.CodeForbidden, "account is banned")
			return
		}

		c.Set(UserKey, enhanced)
		c.Next()
	}
}

// RequireRole must run after AuthMiddleware.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			abort(c, apperr.CodeUnauthorized, "No token provided")
			return
		}
		if !user.HasRole(roles...) {
			abort(c, apperr.CodeForbidden, "insufficient permissions")
			return
		}
		c.Next()
	}
}

func CurrentUser(c *gin.Context) (*helpers.EnhancedClaims, bool) {
	v, ok := c.Get(UserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*helpers.EnhancedClaims)
	return user, ok && user != nil
}

func abort(c *gin.Context, code apperr.Code, message string) {
	c.AbortWithStatusJSON(apperr.MetadataFor(code).HTTPStatus, models.ErrorResponse(message, string(code)))
}
