package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"readquest/internal/security"
	"readquest/internal/service"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const OperatorContextKey ContextKey = "operator"

// Middleware holds dependencies for middleware functions
type Middleware struct {
	authService  *service.AuthService
	loginLimiter *security.RateLimiter
	logger       *zap.Logger
}

// NewMiddleware creates a new middleware instance
func NewMiddleware(authService *service.AuthService, loginLimiter *security.RateLimiter, logger *zap.Logger) *Middleware {
	return &Middleware{
		authService:  authService,
		loginLimiter: loginLimiter,
		logger:       logger,
	}
}

// RequireOperator rejects requests without a valid bearer token
func (m *Middleware) RequireOperator(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			respondWithError(w, http.StatusUnauthorized, "missing bearer token", nil)
			return
		}

		claims, err := m.authService.Validate(token)
		if err != nil {
			respondWithError(w, http.StatusUnauthorized, "invalid token", nil)
			return
		}

		ctx := context.WithValue(r.Context(), OperatorContextKey, claims)
		next(w, r.WithContext(ctx))
	}
}

// RateLimitLogin throttles login attempts per client IP
func (m *Middleware) RateLimitLogin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := security.GetClientIP(r)
		if !m.loginLimiter.Allow(ip) {
			respondWithError(w, http.StatusTooManyRequests, "too many login attempts", nil)
			return
		}
		next(w, r)
	}
}

// LogRequests logs method, path, status and duration for every request
func (m *Middleware) LogRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		m.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", recorder.status),
			zap.Duration("duration", time.Since(start)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// operatorEmail extracts the authenticated operator's email from the
// request context, or "" when unauthenticated
func operatorEmail(r *http.Request) string {
	claims, ok := r.Context().Value(OperatorContextKey).(*security.OperatorClaims)
	if !ok {
		return ""
	}
	return claims.Email
}
