package api

import (
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"justmatcha-backend/internal/apperr"
	"justmatcha-backend/internal/model"
	"justmatcha-backend/internal/order"
)

const (
	headerRequestID      = "X-Request-ID"
	headerIdempotencyKey = "Idempotency-Key"

	ctxRequestID = "request_id"
	ctxUser      = "user"
)

// requestID reuses the caller's X-Request-ID or mints one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		evt := s.log.Info()
		if status >= 500 {
			evt = s.log.Error()
		}
		if len(c.Errors) > 0 {
			evt = evt.Err(c.Errors.Last().Err)
		}
		userID := "anonymous"
		if u, ok := currentUser(c); ok {
			userID = u.ID.Hex()
		}
		evt.Str("request_id", c.GetString(ctxRequestID)).
			Str("user_id", userID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request completed")
	}
}

func (s *Server) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error().
					Str("request_id", c.GetString(ctxRequestID)).
					Str("panic", fmt.Sprint(rec)).
					Bytes("stack", debug.Stack()).
					Msg("handler panicked")
				fail(c, apperr.Internal(fmt.Errorf("panic: %v", rec), "internal server error"))
			}
		}()
		c.Next()
	}
}

// authenticate resolves the bearer token to a user and stores it on the context.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			fail(c, apperr.Unauthorized("Unauthorized"))
			return
		}
		user, err := s.svc.Auth.Authenticate(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			fail(c, err)
			return
		}
		c.Set(ctxUser, user)
		c.Next()
	}
}

func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := currentUser(c)
		if !ok || !u.IsAdmin {
			fail(c, apperr.Forbidden("Not authorized as an admin"))
			return
		}
		c.Next()
	}
}

// idempotent rejects a repeated Idempotency-Key from the same user. The key is
// released when the request fails or panics so the client can retry it.
func (s *Server) idempotent(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(headerIdempotencyKey))
		u, authed := currentUser(c)
		if key == "" || !authed || s.svc.Idempotency == nil {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		owner := scope + ":" + u.ID.Hex()
		claimed, err := s.svc.Idempotency.Claim(ctx, owner, key)
		if err != nil {
			s.log.Warn().Err(err).Str("request_id", c.GetString(ctxRequestID)).Msg("idempotency claim failed")
			c.Next()
			return
		}
		if !claimed {
			fail(c, apperr.Conflict("Duplicate request for idempotency key %s", key))
			return
		}
		// Deferred so a panicking handler releases the key too.
		completed := false
		defer func() {
			if completed && c.Writer.Status() < 400 {
				return
			}
			if err := s.svc.Idempotency.Release(ctx, owner, key); err != nil {
				s.log.Warn().Err(err).Msg("idempotency release failed")
			}
		}()
		c.Next()
		completed = true
	}
}

func currentUser(c *gin.Context) (*model.User, bool) {
	v, ok := c.Get(ctxUser)
	if !ok {
		return nil, false
	}
	u, ok := v.(*model.User)
	return u, ok
}

func actor(c *gin.Context) order.Actor {
	u, _ := currentUser(c)
	if u == nil {
		return order.Actor{}
	}
	return order.Actor{ID: u.ID, IsAdmin: u.IsAdmin}
}
