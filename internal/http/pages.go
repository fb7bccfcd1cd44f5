package http

import (
	"context"
	stdhttp "net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sirupsen/logrus"

	"roadwiki/app/internal/domain"
	"roadwiki/app/internal/search"
	"roadwiki/app/internal/wiki"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 100
)

type pageBody struct {
	ID         int       `json:"id"`
	Title      string    `json:"title"`
	Tags       []string  `json:"tags"`
	CreatedBy  string    `json:"createdBy"`
	CreatedOn  time.Time `json:"createdOn"`
	ModifiedBy string    `json:"modifiedBy"`
	ModifiedOn time.Time `json:"modifiedOn"`
	IsLocked   bool      `json:"isLocked"`
}

type contentBody struct {
	ID            string    `json:"id"`
	PageID        int       `json:"pageId"`
	Text          string    `json:"text"`
	EditedBy      string    `json:"editedBy"`
	EditedOn      time.Time `json:"editedOn"`
	VersionNumber int       `json:"versionNumber"`
}

type pageViewBody struct {
	Page    pageBody    `json:"page"`
	Content contentBody `json:"content"`
}

func newPageBody(page *domain.Page) pageBody {
	tags := page.Tags
	if tags == nil {
		tags = []string{}
	}
	return pageBody{
		ID:         page.ID,
		Title:      page.Title,
		Tags:       tags,
		CreatedBy:  page.CreatedBy,
		CreatedOn:  page.CreatedOn,
		ModifiedBy: page.ModifiedBy,
		ModifiedOn: page.ModifiedOn,
		IsLocked:   page.IsLocked,
	}
}

func newContentBody(content *domain.PageContent) contentBody {
	return contentBody{
		ID:            content.ID.String(),
		PageID:        content.PageID,
		Text:          content.Text,
		EditedBy:      content.EditedBy,
		EditedOn:      content.EditedOn,
		VersionNumber: content.VersionNumber,
	}
}

func newPageViewBody(view *wiki.PageView) pageViewBody {
	return pageViewBody{Page: newPageBody(&view.Page), Content: newContentBody(&view.Content)}
}

type pageResponse struct {
	Body pageViewBody
}

type pagesResponse struct {
	Body []pageBody
}

type contentResponse struct {
	Body contentBody
}

type contentsResponse struct {
	Body []contentBody
}

type listPagesInput struct {
	Tag       string `query:"tag" doc:"Only pages carrying this tag"`
	CreatedBy string `query:"createdBy" doc:"Only pages created by this username"`
}

type pageIDInput struct {
	ID int `path:"id" minimum:"1"`
}

type pageTitleInput struct {
	Title string `query:"title" required:"true" minLength:"1"`
}

type versionInput struct {
	ID      int `path:"id" minimum:"1"`
	Version int `path:"version" minimum:"1"`
}

type pageEditBody struct {
	Title    string   `json:"title" minLength:"1"`
	Text     string   `json:"text"`
	Tags     []string `json:"tags,omitempty"`
	Author   string   `json:"author" minLength:"1"`
	IsLocked bool     `json:"isLocked,omitempty"`
}

func (b pageEditBody) toInput() wiki.PageInput {
	// API key holders act with admin rights.
	return wiki.PageInput{
		Title:    b.Title,
		Text:     b.Text,
		Tags:     b.Tags,
		Author:   b.Author,
		IsLocked: b.IsLocked,
		AsAdmin:  true,
	}
}

type createPageInput struct {
	Body pageEditBody
}

type updatePageInput struct {
	ID   int `path:"id" minimum:"1"`
	Body pageEditBody
}

type tagsResponse struct {
	Body []string
}

type searchInput struct {
	Query string `query:"q" required:"true"`
	Limit int    `query:"limit" minimum:"0" maximum:"100"`
}

type searchResponse struct {
	Body []search.Result
}

type reindexResponse struct {
	Status int
}

func (s *Server) registerPageRoutes() {
	huma.Get(s.api, "/api/pages", s.listPagesHandler, func(op *huma.Operation) {
		op.Summary = "List pages"
	})
	huma.Register(s.api, huma.Operation{
		OperationID:   "create-page",
		Method:        stdhttp.MethodPost,
		Path:          "/api/pages",
		Summary:       "Create a page",
		DefaultStatus: stdhttp.StatusCreated,
	}, s.createPageHandler)
	huma.Get(s.api, "/api/pages/lookup", s.pageByTitleHandler, func(op *huma.Operation) {
		op.Summary = "Fetch a page by title"
	})
	huma.Get(s.api, "/api/pages/{id}", s.getPageHandler, func(op *huma.Operation) {
		op.Summary = "Fetch a page"
	})
	huma.Put(s.api, "/api/pages/{id}", s.updatePageHandler, func(op *huma.Operation) {
		op.Summary = "Edit a page"
	})
	huma.Delete(s.api, "/api/pages/{id}", s.deletePageHandler, func(op *huma.Operation) {
		op.Summary = "Delete a page with its history"
	})
	huma.Get(s.api, "/api/pages/{id}/history", s.historyHandler, func(op *huma.Operation) {
		op.Summary = "List page versions"
	})
	huma.Get(s.api, "/api/pages/{id}/versions/{version}", s.versionContentHandler, func(op *huma.Operation) {
		op.Summary = "Fetch one page version"
	})
	huma.Get(s.api, "/api/tags", s.tagsHandler, func(op *huma.Operation) {
		op.Summary = "List tags"
	})
	huma.Get(s.api, "/api/search", s.searchHandler, func(op *huma.Operation) {
		op.Summary = "Search pages"
	})
	huma.Register(s.api, huma.Operation{
		OperationID:   "reindex",
		Method:        stdhttp.MethodPost,
		Path:          "/api/search/reindex",
		Summary:       "Rebuild the search index",
		DefaultStatus: stdhttp.StatusAccepted,
	}, s.reindexHandler)
}

func (s *Server) listPagesHandler(ctx context.Context, input *listPagesInput) (*pagesResponse, error) {
	var (
		pages []domain.Page
		err   error
	)
	switch {
	case input.Tag != "":
		pages, err = s.wiki.PagesWithTag(ctx, input.Tag)
	case input.CreatedBy != "":
		pages, err = s.wiki.PagesCreatedBy(ctx, input.CreatedBy)
	default:
		pages, err = s.wiki.ListPages(ctx)
	}
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "listing pages", logrus.Fields{"tag": input.Tag, "created_by": input.CreatedBy})
	}

	bodies := make([]pageBody, 0, len(pages))
	for i := range pages {
		bodies = append(bodies, newPageBody(&pages[i]))
	}
	return &pagesResponse{Body: bodies}, nil
}

func (s *Server) createPageHandler(ctx context.Context, input *createPageInput) (*pageResponse, error) {
	view, err := s.wiki.CreatePage(ctx, input.Body.toInput())
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "creating page", logrus.Fields{"title": input.Body.Title})
	}
	return &pageResponse{Body: newPageViewBody(view)}, nil
}

func (s *Server) getPageHandler(ctx context.Context, input *pageIDInput) (*pageResponse, error) {
	view, err := s.wiki.GetPage(ctx, input.ID)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "loading page", logrus.Fields{"page_id": input.ID})
	}
	return &pageResponse{Body: newPageViewBody(view)}, nil
}

func (s *Server) pageByTitleHandler(ctx context.Context, input *pageTitleInput) (*pageResponse, error) {
	view, err := s.wiki.GetPageByTitle(ctx, input.Title)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "loading page by title", logrus.Fields{"title": input.Title})
	}
	return &pageResponse{Body: newPageViewBody(view)}, nil
}

func (s *Server) updatePageHandler(ctx context.Context, input *updatePageInput) (*pageResponse, error) {
	view, err := s.wiki.UpdatePage(ctx, input.ID, input.Body.toInput())
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "updating page", logrus.Fields{"page_id": input.ID})
	}
	return &pageResponse{Body: newPageViewBody(view)}, nil
}

func (s *Server) deletePageHandler(ctx context.Context, input *pageIDInput) (*struct{}, error) {
	if err := s.wiki.DeletePage(ctx, input.ID); err != nil {
		return nil, s.toHTTPError(ctx, err, "deleting page", logrus.Fields{"page_id": input.ID})
	}
	return nil, nil
}

func (s *Server) historyHandler(ctx context.Context, input *pageIDInput) (*contentsResponse, error) {
	history, err := s.wiki.History(ctx, input.ID)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "loading page history", logrus.Fields{"page_id": input.ID})
	}
	bodies := make([]contentBody, 0, len(history))
	for i := range history {
		bodies = append(bodies, newContentBody(&history[i]))
	}
	return &contentsResponse{Body: bodies}, nil
}

func (s *Server) versionContentHandler(ctx context.Context, input *versionInput) (*contentResponse, error) {
	content, err := s.wiki.Version(ctx, input.ID, input.Version)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "loading page version", logrus.Fields{"page_id": input.ID, "version": input.Version})
	}
	return &contentResponse{Body: newContentBody(content)}, nil
}

func (s *Server) tagsHandler(ctx context.Context, _ *struct{}) (*tagsResponse, error) {
	tags, err := s.wiki.AllTags(ctx)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "listing tags", nil)
	}
	if tags == nil {
		tags = []string{}
	}
	return &tagsResponse{Body: tags}, nil
}

func (s *Server) searchHandler(ctx context.Context, input *searchInput) (*searchResponse, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	results, err := s.wiki.Search(ctx, input.Query, limit)
	if err != nil {
		return nil, s.toHTTPError(ctx, err, "searching pages", logrus.Fields{"query": input.Query})
	}
	if results == nil {
		results = []search.Result{}
	}
	return &searchResponse{Body: results}, nil
}

func (s *Server) reindexHandler(ctx context.Context, _ *struct{}) (*reindexResponse, error) {
	if err := s.wiki.Reindex(ctx); err != nil {
		return nil, s.toHTTPError(ctx, err, "rebuilding search index", nil)
	}
	return &reindexResponse{Status: stdhttp.StatusAccepted}, nil
}
