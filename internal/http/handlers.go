package http

import (
	"context"
	stdhttp "net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"roadwiki/app/internal/buildinfo"
	"roadwiki/app/internal/domain"
	"roadwiki/app/internal/search"
	"roadwiki/app/internal/users"
	"roadwiki/app/internal/wiki"
)

type healthResponse struct {
	Status int
	Body   struct {
		Status   string `json:"status"`
		Database string `json:"database"`
		Version  string `json:"version"`
	}
}

type versionResponse struct {
	Body buildinfo.Info
}

func (s *Server) registerSystemRoutes() {
	huma.Get(s.api, "/healthz", s.healthHandler, func(op *huma.Operation) {
		op.Summary = "Health check"
	})
	huma.Get(s.api, "/version", s.versionHandler, func(op *huma.Operation) {
		op.Summary = "Build information"
	})
}

func (s *Server) healthHandler(ctx context.Context, _ *struct{}) (*healthResponse, error) {
	resp := &healthResponse{Status: stdhttp.StatusOK}
	resp.Body.Status = "ok"
	resp.Body.Database = s.health.Name()
	resp.Body.Version = buildinfo.Version

	if err := s.health.Ping(ctx); err != nil {
		s.recordError(ctx, err, "health check failed", logrus.Fields{"database": s.health.Name()})
		resp.Status = stdhttp.StatusServiceUnavailable
		resp.Body.Status = "unavailable"
	}

	return resp, nil
}

func (s *Server) versionHandler(_ context.Context, _ *struct{}) (*versionResponse, error) {
	return &versionResponse{Body: buildinfo.Current()}, nil
}

// toHTTPError maps service and storage failures onto problem responses.
// Unexpected failures are reported before being hidden behind a 500.
func (s *Server) toHTTPError(ctx context.Context, err error, message string, fields logrus.Fields) error {
	switch {
	case eris.Is(err, users.ErrUserExists), eris.Is(err, wiki.ErrTitleTaken):
		return huma.Error409Conflict(err.Error())
	case domain.IsDuplicateKey(err):
		return huma.Error409Conflict("the record conflicts with an existing one")
	case eris.Is(err, users.ErrInvalidInput), eris.Is(err, wiki.ErrInvalidInput), eris.Is(err, users.ErrInvalidKey):
		return huma.Error400BadRequest(err.Error())
	case eris.Is(err, users.ErrUserNotFound), eris.Is(err, wiki.ErrPageNotFound):
		return huma.Error404NotFound(err.Error())
	case eris.Is(err, users.ErrInvalidCredentials):
		return huma.Error401Unauthorized(err.Error())
	case eris.Is(err, wiki.ErrPageLocked):
		return huma.Error403Forbidden(err.Error())
	case eris.Is(err, search.ErrDisabled):
		return huma.Error501NotImplemented("search is not configured")
	case domain.IsStorageUnavailable(err):
		s.recordError(ctx, err, message, fields)
		return huma.Error503ServiceUnavailable("storage is unavailable")
	default:
		s.recordError(ctx, err, message, fields)
		return huma.Error500InternalServerError(errorFallbackMessage)
	}
}

const errorFallbackMessage = "We couldn't process your request right now."

func (s *Server) recordError(ctx context.Context, err error, message string, fields logrus.Fields) {
	if err == nil {
		return
	}

	if s.logger != nil {
		entry := s.logger.WithField("error", err.Error())
		if fields != nil {
			entry = entry.WithFields(fields)
		}
		if requestID := RequestIDFromContext(ctx); requestID != "" {
			entry = entry.WithField("request_id", requestID)
		}
		entry.Error(message)
	}

	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	if s.sentry != nil {
		s.sentry.CaptureException(err)
	}
}
