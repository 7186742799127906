package middleware

import (
	"net/http"
	"time"

	"github.com/leuf-systems/nexus/internal/core/ports"
	"github.com/leuf-systems/nexus/pkg/apperror"
	"github.com/leuf-systems/nexus/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	// Context keys
	CtxAPIUserID  = "api_user_id"
	CtxUsername   = "username"
	CtxSuperuser  = "superuser"
)

// BasicAuth authenticates every request against an APIUser row using HTTP
// Basic credentials. The request proceeds only once the username is found
// and the password verifies against its Argon2id hash.
func BasicAuth(userRepo ports.APIUserRepository, hashSvc ports.HashService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, password, ok := c.Request.BasicAuth()
		if !ok {
			c.Header("WWW-Authenticate", `Basic realm="nexus"`)
			response.Error(c, apperror.ErrInvalidCredentials())
			c.Abort()
			return
		}

		user, err := userRepo.GetByUsername(c.Request.Context(), username)
		if err != nil {
			log.Error().Err(err).Msg("failed to fetch api user")
			response.Error(c, apperror.InternalError(err))
			c.Abort()
			return
		}
		if user == nil {
			response.Error(c, apperror.ErrInvalidCredentials())
			c.Abort()
			return
		}

		valid, err := hashSvc.Verify(password, user.PasswordHash)
		if err != nil {
			log.Error().Err(err).Msg("failed to verify api user password")
			response.Error(c, apperror.InternalError(err))
			c.Abort()
			return
		}
		if !valid {
			response.Error(c, apperror.ErrInvalidCredentials())
			c.Abort()
			return
		}

		c.Set(CtxAPIUserID, user.ID)
		c.Set(CtxUsername, user.Username)
		c.Set(CtxSuperuser, user.Superuser)
		c.Next()
	}
}

// RequireSuperuser rejects requests from non-superuser accounts with 403.
// It must run after BasicAuth.
func RequireSuperuser() gin.HandlerFunc {
	return func(c *gin.Context) {
		superuser, _ := c.Get(CtxSuperuser)
		if su, ok := superuser.(bool); !ok || !su {
			response.Error(c, apperror.Forbidden("superuser privileges required"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequestLogger creates a middleware that logs every HTTP request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}

// Recovery creates a panic recovery middleware.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error_code": "SYS_001",
					"message":    "Internal server error",
				})
			}
		}()
		c.Next()
	}
}
