package http

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net"
	stdhttp "net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"roadwiki/app/internal/metrics"
)

const rateLimitMessage = "too many requests, please wait a moment and try again"

func (s *Server) requestIDMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		reqID := uuid.NewString()
		goCtx := context.WithValue(ctx.Context(), requestIDContextKey, reqID)
		ctx = huma.WithContext(ctx, goCtx)
		ctx.SetHeader("X-Request-ID", reqID)

		if hub := sentry.GetHubFromContext(goCtx); hub != nil {
			hub.Scope().SetTag("request_id", reqID)
		}

		next(ctx)
	}
}

func (s *Server) rateLimitMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if s.rateLimiter == nil {
			next(ctx)
			return
		}

		req, _ := humago.Unwrap(ctx)
		if req == nil {
			next(ctx)
			return
		}

		ip := clientIPFromRequest(req)
		client := s.rateLimitClient(ctx, ip)
		if s.rateLimiter.Allow(client) {
			next(ctx)
			return
		}

		err := eris.New("rate limit exceeded")
		if s.logger != nil {
			fields := logrus.Fields{
				"ip":     ip,
				"client": client,
				"path":   req.URL.Path,
			}
			if requestID := RequestIDFromContext(ctx.Context()); requestID != "" {
				fields["request_id"] = requestID
			}
			s.logger.WithError(err).WithFields(fields).Warn("request rate limited")
		}

		ctx.SetHeader("Retry-After", "1")
		if writeErr := huma.WriteErr(s.api, ctx, stdhttp.StatusTooManyRequests, rateLimitMessage); writeErr != nil && s.logger != nil {
			s.logger.WithError(writeErr).WithField("ip", ip).Error("writing rate limit response failed")
		}
	}
}

// apiKeyMiddleware guards /api routes. With no keys configured the REST API
// is disabled and every /api request is refused.
func (s *Server) apiKeyMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op == nil || !strings.HasPrefix(op.Path, "/api/") {
			next(ctx)
			return
		}

		if len(s.apiKeys) == 0 {
			_ = huma.WriteErr(s.api, ctx, stdhttp.StatusForbidden, "the REST API is disabled")
			return
		}

		if !s.validAPIKey(apiKeyFromHeaders(ctx)) {
			ctx.SetHeader("WWW-Authenticate", apiKeyHeader)
			_ = huma.WriteErr(s.api, ctx, stdhttp.StatusUnauthorized, "a valid API key is required")
			return
		}

		next(ctx)
	}
}

const apiKeyHeader = "X-Api-Key"

func apiKeyFromHeaders(ctx huma.Context) string {
	if key := strings.TrimSpace(ctx.Header(apiKeyHeader)); key != "" {
		return key
	}
	return strings.TrimSpace(ctx.Header("Authorization"))
}

func (s *Server) validAPIKey(candidate string) bool {
	return s.apiKeyIndex(candidate) >= 0
}

// apiKeyIndex returns the position of candidate among the configured keys,
// or -1 when it matches none.
func (s *Server) apiKeyIndex(candidate string) int {
	if candidate == "" {
		return -1
	}
	for i, key := range s.apiKeys {
		if subtle.ConstantTimeCompare([]byte(candidate), key) == 1 {
			return i
		}
	}
	return -1
}

// rateLimitClient names the bucket a request draws from. Requests with a
// valid API key share that key's bucket whatever address they come from; the
// key itself never ends up in the limiter or the logs.
func (s *Server) rateLimitClient(ctx huma.Context, ip string) string {
	if i := s.apiKeyIndex(apiKeyFromHeaders(ctx)); i >= 0 {
		return "api-key:" + strconv.Itoa(i)
	}
	return "ip:" + ip
}

func (s *Server) loggingMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		start := time.Now()
		next(ctx)

		status := ctx.Status()
		if status == 0 {
			status = stdhttp.StatusOK
		}
		elapsed := time.Since(start)

		route := "unknown"
		if op := ctx.Operation(); op != nil {
			route = op.Path
		}
		metrics.HTTPRequests.WithLabelValues(ctx.Method(), route, strconv.Itoa(status)).Inc()
		metrics.HTTPDuration.WithLabelValues(ctx.Method(), route).Observe(elapsed.Seconds())

		if s.logger == nil {
			return
		}

		fields := logrus.Fields{
			"method":      ctx.Method(),
			"status":      status,
			"route":       route,
			"duration_ms": float64(elapsed.Microseconds()) / 1000,
		}

		if req, _ := humago.Unwrap(ctx); req != nil {
			fields["path"] = req.URL.Path
			fields["remote_addr"] = req.RemoteAddr
		}

		if requestID := RequestIDFromContext(ctx.Context()); requestID != "" {
			fields["request_id"] = requestID
		}

		entry := s.logger.WithFields(fields)
		if status >= 500 {
			entry.Error("request failed")
		} else {
			entry.Info("request completed")
		}
	}
}

func (s *Server) recoveryMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		defer func() {
			if rec := recover(); rec != nil {
				var err error
				switch v := rec.(type) {
				case error:
					err = v
				default:
					err = fmt.Errorf("panic: %v", v)
				}

				s.recordError(ctx.Context(), err, "panic recovered", nil)

				if hub := sentry.GetHubFromContext(ctx.Context()); hub != nil {
					hub.RecoverWithContext(ctx.Context(), rec)
					hub.Flush(2 * time.Second)
				}

				_ = huma.WriteErr(s.api, ctx, stdhttp.StatusInternalServerError, "internal server error")
			}
		}()

		next(ctx)
	}
}

func (s *Server) sentryMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if s.sentry == nil {
			next(ctx)
			return
		}

		hub := s.sentry.Clone()
		scope := hub.Scope()
		scope.SetTag("http.method", ctx.Method())
		if op := ctx.Operation(); op != nil {
			scope.SetTag("http.route", op.Path)
		}

		goCtx := sentry.SetHubOnContext(ctx.Context(), hub)
		ctx = huma.WithContext(ctx, goCtx)

		defer hub.Flush(2 * time.Second)

		next(ctx)
	}
}

func clientIPFromRequest(req *stdhttp.Request) string {
	if req == nil {
		return ""
	}

	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			candidate := strings.TrimSpace(parts[0])
			if candidate != "" {
				return candidate
			}
		}
	}

	if realIP := strings.TrimSpace(req.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}
