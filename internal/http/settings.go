package http

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"roadwiki/app/internal/domain"
)

type settingsResponse struct {
	Body domain.SiteSettings
}

type saveSettingsInput struct {
	Body domain.SiteSettings
}

func (s *Server) registerSettingsRoutes() {
	huma.Get(s.api, "/api/settings", s.getSettingsHandler, func(op *huma.Operation) {
		op.Summary = "Fetch site settings"
	})
	huma.Put(s.api, "/api/settings", s.saveSettingsHandler, func(op *huma.Operation) {
		op.Summary = "Replace site settings"
	})
}

func (s *Server) getSettingsHandler(ctx context.Context, _ *struct{}) (*settingsResponse, error) {
	settings, err := s.wiki.SiteSettings(ctx)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "loading site settings", nil)
	}
	return &settingsResponse{Body: *settings}, nil
}

func (s *Server) saveSettingsHandler(ctx context.Context, input *saveSettingsInput) (*settingsResponse, error) {
	settings := input.Body
	if err := s.wiki.SaveSiteSettings(ctx, &settings); err != nil {
		return nil, s.toHTTPError(ctx, err, "saving site settings", nil)
	}
	return &settingsResponse{Body: settings}, nil
}
