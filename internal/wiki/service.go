// Package wiki implements page editing and reading on top of the page
// repository, with an optional object cache and search index.
package wiki

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"roadwiki/app/internal/cache"
	"roadwiki/app/internal/domain"
	"roadwiki/app/internal/metrics"
	"roadwiki/app/internal/search"
)

// Service defines the page operations exposed to the transport layer.
type Service interface {
	CreatePage(ctx context.Context, input PageInput) (*PageView, error)
	UpdatePage(ctx context.Context, id int, input PageInput) (*PageView, error)
	GetPage(ctx context.Context, id int) (*PageView, error)
	GetPageByTitle(ctx context.Context, title string) (*PageView, error)
	History(ctx context.Context, id int) ([]domain.PageContent, error)
	Version(ctx context.Context, id, version int) (*domain.PageContent, error)
	DeletePage(ctx context.Context, id int) error
	ListPages(ctx context.Context) ([]domain.Page, error)
	PagesWithTag(ctx context.Context, tag string) ([]domain.Page, error)
	PagesCreatedBy(ctx context.Context, username string) ([]domain.Page, error)
	AllTags(ctx context.Context) ([]string, error)
	Search(ctx context.Context, query string, limit int) ([]search.Result, error)
	Reindex(ctx context.Context) error
	SiteSettings(ctx context.Context) (*domain.SiteSettings, error)
	SaveSiteSettings(ctx context.Context, settings *domain.SiteSettings) error
	// ClearCache drops every cached page, e.g. after a wipe.
	ClearCache(ctx context.Context) error
}

// Repository is the storage surface the service needs.
type Repository interface {
	domain.PageRepository
	domain.SiteConfigurationRepository
}

var (
	// ErrPageNotFound is returned when no page has the requested id or title.
	ErrPageNotFound = eris.New("page not found")
	// ErrTitleTaken is returned when another page already uses the title.
	ErrTitleTaken = eris.New("a page with that title already exists")
	// ErrPageLocked is returned when editing a locked page.
	ErrPageLocked = eris.New("page is locked")
	// ErrInvalidInput wraps validation failures.
	ErrInvalidInput = eris.New("invalid page input")
)

// PageInput carries the editable fields of a page.
type PageInput struct {
	Title    string
	Text     string
	Tags     []string
	Author   string
	IsLocked bool
	// AsAdmin allows editing locked pages and changing the lock.
	AsAdmin bool
}

// PageView is a page with its latest content.
type PageView struct {
	Page    domain.Page        `json:"page"`
	Content domain.PageContent `json:"content"`
}

// Options configures the service.
type Options struct {
	Repository Repository
	Cache      cache.Client
	CacheTTL   time.Duration
	Search     search.Indexer
	// IgnoreSearchErrors logs index failures instead of returning them.
	IgnoreSearchErrors bool
	Logger             *logrus.Logger
	SentryHub          *sentry.Hub
	Now                func() time.Time
}

type service struct {
	repo               Repository
	cache              cache.Client
	cacheTTL           time.Duration
	index              search.Indexer
	ignoreSearchErrors bool
	logger             *logrus.Logger
	sentryHub          *sentry.Hub
	now                func() time.Time
}

var _ Service = (*service)(nil)

// NewService wires the wiki service with its dependencies. A nil cache or
// index disables that feature.
func NewService(opts Options) (Service, error) {
	if opts.Repository == nil {
		return nil, eris.New("page repository is required")
	}

	svc := &service{
		repo:               opts.Repository,
		cache:              opts.Cache,
		cacheTTL:           opts.CacheTTL,
		index:              opts.Search,
		ignoreSearchErrors: opts.IgnoreSearchErrors,
		logger:             opts.Logger,
		sentryHub:          opts.SentryHub,
		now:                opts.Now,
	}
	if svc.cache == nil {
		svc.cache = cache.Noop{}
	}
	if svc.index == nil {
		svc.index = search.Disabled{}
	}
	if svc.now == nil {
		svc.now = func() time.Time { return time.Now().UTC() }
	}
	return svc, nil
}

func (s *service) CreatePage(ctx context.Context, input PageInput) (*PageView, error) {
	title, author, err := validate(input)
	if err != nil {
		return nil, err
	}

	if existing, err := s.repo.GetPageByTitle(ctx, title); err != nil {
		s.recordError(logrus.Fields{"title": title}, err, "checking page title")
		return nil, eris.Wrap(err, "checking page title")
	} else if existing != nil {
		return nil, ErrTitleTaken
	}

	now := s.now()
	page := &domain.Page{
		Title:      title,
		Tags:       domain.NormalizeTags(input.Tags),
		CreatedBy:  author,
		CreatedOn:  now,
		ModifiedBy: author,
		ModifiedOn: now,
		IsLocked:   input.IsLocked && input.AsAdmin,
	}

	content, err := s.repo.AddNewPage(ctx, page, input.Text, author, now)
	if domain.IsDuplicateKey(err) {
		return nil, ErrTitleTaken
	}
	if err != nil {
		s.recordError(logrus.Fields{"title": title}, err, "creating page")
		return nil, eris.Wrapf(err, "creating page %q", title)
	}

	view := &PageView{Page: *page, Content: *content}
	if err := s.indexPage(ctx, view); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"page_id": page.ID, "title": title}).Info("page created")
	}
	return view, nil
}

func (s *service) UpdatePage(ctx context.Context, id int, input PageInput) (*PageView, error) {
	title, author, err := validate(input)
	if err != nil {
		return nil, err
	}

	page, err := s.loadPage(ctx, id)
	if err != nil {
		return nil, err
	}
	if page.IsLocked && !input.AsAdmin {
		return nil, ErrPageLocked
	}

	if !strings.EqualFold(page.Title, title) {
		other, err := s.repo.GetPageByTitle(ctx, title)
		if err != nil {
			s.recordError(logrus.Fields{"title": title}, err, "checking page title")
			return nil, eris.Wrap(err, "checking page title")
		}
		if other != nil && other.ID != page.ID {
			return nil, ErrTitleTaken
		}
	}

	latest, err := s.repo.GetLatestPageContent(ctx, id)
	if err != nil {
		s.recordError(logrus.Fields{"page_id": id}, err, "loading latest content")
		return nil, eris.Wrapf(err, "loading latest content of page %d", id)
	}
	nextVersion := 1
	if latest != nil {
		nextVersion = latest.VersionNumber + 1
	}

	now := s.now()
	content, err := s.repo.AddNewPageContentVersion(ctx, page, input.Text, author, now, nextVersion)
	if err != nil {
		s.recordError(logrus.Fields{"page_id": id, "version": nextVersion}, err, "adding page version")
		return nil, eris.Wrapf(err, "adding version %d to page %d", nextVersion, id)
	}

	page.Title = title
	page.Tags = domain.NormalizeTags(input.Tags)
	page.ModifiedBy = author
	page.ModifiedOn = now
	if input.AsAdmin {
		page.IsLocked = input.IsLocked
	}

	saved, err := s.repo.SaveOrUpdatePage(ctx, page)
	if err != nil {
		s.recordError(logrus.Fields{"page_id": id}, err, "saving page")
		return nil, eris.Wrapf(err, "saving page %d", id)
	}

	s.invalidate(ctx, id)

	view := &PageView{Page: *saved, Content: *content}
	if err := s.indexPage(ctx, view); err != nil {
		return nil, err
	}
	return view, nil
}

func (s *service) GetPage(ctx context.Context, id int) (*PageView, error) {
	if view, ok := s.cached(ctx, id); ok {
		return view, nil
	}

	page, err := s.loadPage(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.withLatestContent(ctx, page)
}

func (s *service) GetPageByTitle(ctx context.Context, title string) (*PageView, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, eris.Wrap(ErrInvalidInput, "title is required")
	}

	page, err := s.repo.GetPageByTitle(ctx, title)
	if err != nil {
		s.recordError(logrus.Fields{"title": title}, err, "retrieving page by title")
		return nil, eris.Wrapf(err, "retrieving page %q", title)
	}
	if page == nil {
		return nil, ErrPageNotFound
	}

	if view, ok := s.cached(ctx, page.ID); ok {
		return view, nil
	}
	return s.withLatestContent(ctx, page)
}

func (s *service) History(ctx context.Context, id int) ([]domain.PageContent, error) {
	if _, err := s.loadPage(ctx, id); err != nil {
		return nil, err
	}

	contents, err := s.repo.FindPageContentsByPageID(ctx, id)
	if err != nil {
		s.recordError(logrus.Fields{"page_id": id}, err, "listing page history")
		return nil, eris.Wrapf(err, "listing history of page %d", id)
	}
	return contents, nil
}

func (s *service) Version(ctx context.Context, id, version int) (*domain.PageContent, error) {
	content, err := s.repo.GetPageContentByPageIDAndVersionNumber(ctx, id, version)
	if err != nil {
		s.recordError(logrus.Fields{"page_id": id, "version": version}, err, "retrieving page version")
		return nil, eris.Wrapf(err, "retrieving version %d of page %d", version, id)
	}
	if content == nil {
		return nil, ErrPageNotFound
	}
	return content, nil
}

func (s *service) DeletePage(ctx context.Context, id int) error {
	page, err := s.loadPage(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.DeletePage(ctx, page); err != nil {
		s.recordError(logrus.Fields{"page_id": id}, err, "deleting page")
		return eris.Wrapf(err, "deleting page %d", id)
	}

	s.invalidate(ctx, id)
	if err := s.index.Remove(ctx, id); err != nil {
		return s.searchFailure(logrus.Fields{"page_id": id}, err)
	}
	return nil
}

func (s *service) ListPages(ctx context.Context) ([]domain.Page, error) {
	pages, err := s.repo.AllPages(ctx)
	if err != nil {
		s.recordError(nil, err, "listing pages")
		return nil, eris.Wrap(err, "listing pages")
	}
	return pages, nil
}

func (s *service) PagesWithTag(ctx context.Context, tag string) ([]domain.Page, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil, eris.Wrap(ErrInvalidInput, "tag is required")
	}

	pages, err := s.repo.FindPagesContainingTag(ctx, tag)
	if err != nil {
		s.recordError(logrus.Fields{"tag": tag}, err, "listing pages by tag")
		return nil, eris.Wrapf(err, "listing pages tagged %q", tag)
	}
	return pages, nil
}

func (s *service) PagesCreatedBy(ctx context.Context, username string) ([]domain.Page, error) {
	pages, err := s.repo.FindPagesCreatedBy(ctx, strings.TrimSpace(username))
	if err != nil {
		s.recordError(logrus.Fields{"username": username}, err, "listing pages by author")
		return nil, eris.Wrapf(err, "listing pages created by %q", username)
	}
	return pages, nil
}

func (s *service) AllTags(ctx context.Context) ([]string, error) {
	tags, err := s.repo.AllTags(ctx)
	if err != nil {
		s.recordError(nil, err, "listing tags")
		return nil, eris.Wrap(err, "listing tags")
	}
	return tags, nil
}

func (s *service) Search(ctx context.Context, query string, limit int) ([]search.Result, error) {
	trimmedQuery := strings.TrimSpace(query)
	if trimmedQuery == "" {
		return nil, eris.Wrap(ErrInvalidInput, "query is required")
	}

	results, err := s.index.Search(ctx, trimmedQuery, limit)
	if err != nil {
		if !eris.Is(err, search.ErrDisabled) {
			s.recordError(logrus.Fields{"query": trimmedQuery}, err, "performing search")
		}
		return nil, eris.Wrap(err, "search failure")
	}
	return results, nil
}

func (s *service) Reindex(ctx context.Context) error {
	pages, err := s.repo.AllPages(ctx)
	if err != nil {
		s.recordError(nil, err, "listing pages for reindex")
		return eris.Wrap(err, "listing pages for reindex")
	}

	docs := make([]search.Document, 0, len(pages))
	for _, page := range pages {
		content, err := s.repo.GetLatestPageContent(ctx, page.ID)
		if err != nil {
			s.recordError(logrus.Fields{"page_id": page.ID}, err, "loading content for reindex")
			return eris.Wrapf(err, "loading content of page %d", page.ID)
		}
		doc := search.Document{PageID: page.ID, Title: page.Title, Tags: page.Tags}
		if content != nil {
			doc.Text = content.Text
		}
		docs = append(docs, doc)
	}

	if err := s.index.Reindex(ctx, docs); err != nil {
		return s.searchFailure(nil, err)
	}
	return nil
}

func (s *service) SiteSettings(ctx context.Context) (*domain.SiteSettings, error) {
	settings, err := s.repo.GetSiteSettings(ctx)
	if err != nil {
		s.recordError(nil, err, "loading site settings")
		return nil, eris.Wrap(err, "loading site settings")
	}
	return settings, nil
}

func (s *service) SaveSiteSettings(ctx context.Context, settings *domain.SiteSettings) error {
	if settings == nil {
		return eris.Wrap(ErrInvalidInput, "settings are required")
	}
	if err := s.repo.SaveSiteSettings(ctx, settings); err != nil {
		s.recordError(nil, err, "saving site settings")
		return eris.Wrap(err, "saving site settings")
	}
	return nil
}

func (s *service) ClearCache(ctx context.Context) error {
	return eris.Wrap(s.cache.Flush(ctx), "clearing page cache")
}

func (s *service) loadPage(ctx context.Context, id int) (*domain.Page, error) {
	page, err := s.repo.GetPageByID(ctx, id)
	if err != nil {
		s.recordError(logrus.Fields{"page_id": id}, err, "retrieving page")
		return nil, eris.Wrapf(err, "retrieving page %d", id)
	}
	if page == nil {
		return nil, ErrPageNotFound
	}
	return page, nil
}

func (s *service) withLatestContent(ctx context.Context, page *domain.Page) (*PageView, error) {
	content, err := s.repo.GetLatestPageContent(ctx, page.ID)
	if err != nil {
		s.recordError(logrus.Fields{"page_id": page.ID}, err, "retrieving latest content")
		return nil, eris.Wrapf(err, "retrieving latest content of page %d", page.ID)
	}

	view := &PageView{Page: *page}
	if content != nil {
		view.Content = *content
	}
	s.store(ctx, view)
	return view, nil
}

func (s *service) indexPage(ctx context.Context, view *PageView) error {
	err := s.index.Index(ctx, search.Document{
		PageID: view.Page.ID,
		Title:  view.Page.Title,
		Tags:   view.Page.Tags,
		Text:   view.Content.Text,
	})
	if err != nil {
		return s.searchFailure(logrus.Fields{"page_id": view.Page.ID}, err)
	}
	return nil
}

func (s *service) searchFailure(fields logrus.Fields, err error) error {
	s.recordError(fields, err, "updating search index")
	if s.ignoreSearchErrors {
		return nil
	}
	return eris.Wrap(err, "updating search index")
}

func cacheKey(id int) string {
	return "page:" + strconv.Itoa(id)
}

func (s *service) cached(ctx context.Context, id int) (*PageView, bool) {
	raw, err := s.cache.Get(ctx, cacheKey(id))
	switch {
	case cache.IsNotFound(err):
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	case err != nil:
		metrics.CacheLookups.WithLabelValues("error").Inc()
		s.logWarning(logrus.Fields{"page_id": id}, err, "reading page cache")
		return nil, false
	}

	var view PageView
	if err := json.Unmarshal([]byte(raw), &view); err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		s.logWarning(logrus.Fields{"page_id": id}, err, "decoding cached page")
		return nil, false
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return &view, true
}

func (s *service) store(ctx context.Context, view *PageView) {
	raw, err := json.Marshal(view)
	if err != nil {
		s.logWarning(logrus.Fields{"page_id": view.Page.ID}, err, "encoding page for cache")
		return
	}
	if err := s.cache.Set(ctx, cacheKey(view.Page.ID), string(raw), s.cacheTTL); err != nil {
		s.logWarning(logrus.Fields{"page_id": view.Page.ID}, err, "writing page cache")
	}
}

func (s *service) invalidate(ctx context.Context, id int) {
	if err := s.cache.Delete(ctx, cacheKey(id)); err != nil {
		s.logWarning(logrus.Fields{"page_id": id}, err, "invalidating page cache")
	}
}

func validate(input PageInput) (title, author string, err error) {
	title = strings.TrimSpace(input.Title)
	if title == "" {
		return "", "", eris.Wrap(ErrInvalidInput, "title is required")
	}
	author = strings.TrimSpace(input.Author)
	if author == "" {
		return "", "", eris.Wrap(ErrInvalidInput, "author is required")
	}
	return title, author, nil
}

func (s *service) logWarning(fields logrus.Fields, err error, message string) {
	if s.logger == nil || err == nil {
		return
	}
	s.logger.WithFields(fields).WithField("error", err.Error()).Warn(message)
}

func (s *service) recordError(fields logrus.Fields, err error, message string) {
	if err == nil {
		return
	}

	if s.logger != nil {
		entry := s.logger.WithField("error", err.Error())
		if len(fields) > 0 {
			entry = entry.WithFields(fields)
		}
		entry.Error(message)
	}

	if s.sentryHub != nil {
		s.sentryHub.CaptureException(err)
	}
}
