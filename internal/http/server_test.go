package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"

	"roadwiki/app/internal/domain"
	applog "roadwiki/app/internal/log"
	"roadwiki/app/internal/metrics"
	"roadwiki/app/internal/security/password"
	"roadwiki/app/internal/storage"
	"roadwiki/app/internal/storage/badgerstore"
	"roadwiki/app/internal/users"
	"roadwiki/app/internal/wiki"
)

const testAPIKey = "secret-key"

var fastHashing = password.Params{Memory: 1024, Time: 1, Parallelism: 1, KeyLen: 16, SaltLen: 8}

type testServer struct {
	*Server
	store domain.Store
}

func newTestServer(t *testing.T, configure func(*Options)) testServer {
	t.Helper()

	store, err := badgerstore.New(storage.StaticSettings{Connection: "badger://memory", Database: badgerstore.Name}, applog.Discard())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	userService, err := users.NewService(users.Options{
		Repository: store,
		Policy:     password.Policy{MinLength: 6},
		Hashing:    fastHashing,
		Logger:     applog.Discard(),
	})
	if err != nil {
		t.Fatalf("users.NewService returned error: %v", err)
	}

	wikiService, err := wiki.NewService(wiki.Options{Repository: store, Logger: applog.Discard()})
	if err != nil {
		t.Fatalf("wiki.NewService returned error: %v", err)
	}

	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		t.Fatalf("registering metrics: %v", err)
	}

	opts := Options{
		Users:    userService,
		Wiki:     wikiService,
		Health:   store,
		Logger:   applog.Discard(),
		APIKeys:  []string{testAPIKey},
		Gatherer: registry,
		RateLimiter: RateLimiterSettings{
			RequestsPerSecond: 1000,
			Burst:             1000,
			ClientTTL:         time.Minute,
		},
	}
	if configure != nil {
		configure(&opts)
	}

	srv, err := NewServer(opts)
	if err != nil {
		t.Fatalf("NewServer returned error: %v", err)
	}
	return testServer{Server: srv, store: store}
}

func (s testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return s.doWithKey(t, method, path, body, testAPIKey)
}

func (s testServer) doWithKey(t *testing.T, method, path string, body any, key string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set(apiKeyHeader, key)
	}

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return out
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

type failingHealth struct{}

func (failingHealth) Name() string { return "broken" }

func (failingHealth) Ping(context.Context) error {
	return domain.NewStorageError(domain.ErrStorageUnavailable, "Ping", "", "", eris.New("connection refused"))
}

func TestHealthRouteReportsOK(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, nil)
	rec := srv.doWithKey(t, "GET", "/healthz", nil, "")
	expectStatus(t, rec, 200)

	body := decode[map[string]string](t, rec)
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %q", body["status"])
	}
	if body["database"] != badgerstore.Name {
		t.Fatalf("expected database %q, got %q", badgerstore.Name, body["database"])
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header to be set")
	}
}

func TestHealthRouteReportsUnavailableStore(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, func(opts *Options) { opts.Health = failingHealth{} })
	rec := srv.doWithKey(t, "GET", "/healthz", nil, "")
	expectStatus(t, rec, 503)

	body := decode[map[string]string](t, rec)
	if body["status"] != "unavailable" {
		t.Fatalf("expected status unavailable, got %q", body["status"])
	}
}

func TestVersionRoute(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, nil)
	rec := srv.doWithKey(t, "GET", "/version", nil, "")
	expectStatus(t, rec, 200)

	body := decode[map[string]string](t, rec)
	if body["version"] == "" || body["goVersion"] == "" {
		t.Fatalf("expected version fields, got %v", body)
	}
}

func TestAPIDisabledWithoutKeys(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, func(opts *Options) { opts.APIKeys = nil })
	if srv.RESTEnabled() {
		t.Fatalf("expected REST API to be disabled")
	}

	rec := srv.do(t, "GET", "/api/pages", nil)
	expectStatus(t, rec, 403)
}

func TestAPIRequiresValidKey(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, nil)

	expectStatus(t, srv.doWithKey(t, "GET", "/api/pages", nil, ""), 401)
	expectStatus(t, srv.doWithKey(t, "GET", "/api/pages", nil, "wrong"), 401)
	expectStatus(t, srv.do(t, "GET", "/api/pages", nil), 200)

	req := httptest.NewRequest("GET", "/api/tags", nil)
	req.Header.Set("Authorization", testAPIKey)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	expectStatus(t, rec, 200)
}

func TestUserRegistrationFlow(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, nil)

	rec := srv.do(t, "POST", "/api/users", map[string]any{
		"username": "alice",
		"email":    "Alice@Example.com",
		"password": "correct horse",
		"isEditor": true,
	})
	expectStatus(t, rec, 201)

	if strings.Contains(rec.Body.String(), "passwordHash") || strings.Contains(rec.Body.String(), "correct horse") {
		t.Fatalf("expected credentials to stay out of the response, got %s", rec.Body.String())
	}

	registered := decode[struct {
		User          userBody `json:"user"`
		ActivationKey string   `json:"activationKey"`
	}](t, rec)
	if registered.User.Email != "alice@example.com" {
		t.Fatalf("expected lowercased email, got %q", registered.User.Email)
	}
	if registered.User.IsActivated || registered.ActivationKey == "" {
		t.Fatalf("expected unactivated user with activation key, got %+v", registered)
	}

	expectStatus(t, srv.do(t, "POST", "/api/users/authenticate", map[string]string{
		"email": "alice@example.com", "password": "correct horse",
	}), 401)

	rec = srv.do(t, "POST", "/api/users/activate", map[string]string{"key": registered.ActivationKey})
	expectStatus(t, rec, 200)
	if !decode[userBody](t, rec).IsActivated {
		t.Fatalf("expected user to be activated")
	}

	expectStatus(t, srv.do(t, "POST", "/api/users/activate", map[string]string{"key": registered.ActivationKey}), 400)

	rec = srv.do(t, "POST", "/api/users/authenticate", map[string]string{
		"email": "alice@example.com", "password": "correct horse",
	})
	expectStatus(t, rec, 200)

	rec = srv.do(t, "GET", "/api/users/editors", nil)
	expectStatus(t, rec, 200)
	if editors := decode[[]userBody](t, rec); len(editors) != 1 || editors[0].Username != "alice" {
		t.Fatalf("expected alice as the only editor, got %+v", editors)
	}

	rec = srv.do(t, "GET", "/api/users/"+registered.User.ID, nil)
	expectStatus(t, rec, 200)
}

func TestUserRegistrationConflictAndValidation(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, nil)
	payload := map[string]any{"username": "bob", "email": "bob@example.com", "password": "hunter22"}

	expectStatus(t, srv.do(t, "POST", "/api/users", payload), 201)
	expectStatus(t, srv.do(t, "POST", "/api/users", payload), 409)

	expectStatus(t, srv.do(t, "POST", "/api/users", map[string]any{
		"username": "carol", "email": "carol@example.com", "password": "abc",
	}), 400)
}

func TestUserPasswordResetAndRoles(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, nil)

	rec := srv.do(t, "POST", "/api/users", map[string]any{
		"username": "dave", "email": "dave@example.com", "password": "original1", "activated": true,
	})
	expectStatus(t, rec, 201)
	id := decode[struct {
		User userBody `json:"user"`
	}](t, rec).User.ID

	rec = srv.do(t, "POST", "/api/users/password-reset", map[string]string{"email": "dave@example.com"})
	expectStatus(t, rec, 202)
	resetKey := decode[map[string]string](t, rec)["resetKey"]
	if resetKey == "" {
		t.Fatalf("expected reset key in response")
	}

	expectStatus(t, srv.do(t, "POST", "/api/users/password-reset/confirm", map[string]string{
		"key": resetKey, "password": "replaced1",
	}), 200)
	expectStatus(t, srv.do(t, "POST", "/api/users/authenticate", map[string]string{
		"email": "dave@example.com", "password": "replaced1",
	}), 200)

	rec = srv.do(t, "PUT", "/api/users/"+id+"/roles", map[string]bool{"isAdmin": true, "isEditor": false})
	expectStatus(t, rec, 200)
	if body := decode[userBody](t, rec); !body.IsAdmin || body.IsEditor {
		t.Fatalf("expected admin-only roles, got %+v", body)
	}

	rec = srv.do(t, "GET", "/api/users/admins", nil)
	expectStatus(t, rec, 200)
	if admins := decode[[]userBody](t, rec); len(admins) != 1 {
		t.Fatalf("expected one admin, got %d", len(admins))
	}

	expectStatus(t, srv.do(t, "DELETE", "/api/users/"+id, nil), 204)
	expectStatus(t, srv.do(t, "GET", "/api/users/"+id, nil), 404)
}

func TestUserRouteRejectsMalformedID(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, nil)
	expectStatus(t, srv.do(t, "GET", "/api/users/not-a-uuid", nil), 400)
}

func TestPageLifecycle(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, nil)

	rec := srv.do(t, "POST", "/api/pages", map[string]any{
		"title": "Home", "text": "Welcome", "tags": []string{"Intro", "main"}, "author": "alice",
	})
	expectStatus(t, rec, 201)
	created := decode[pageViewBody](t, rec)
	if created.Page.ID == 0 || created.Content.VersionNumber != 1 {
		t.Fatalf("expected page id and first version, got %+v", created)
	}

	expectStatus(t, srv.do(t, "POST", "/api/pages", map[string]any{
		"title": "home", "text": "again", "author": "bob",
	}), 409)

	path := "/api/pages/" + strconv.Itoa(created.Page.ID)

	rec = srv.do(t, "GET", path, nil)
	expectStatus(t, rec, 200)
	if got := decode[pageViewBody](t, rec); got.Content.Text != "Welcome" {
		t.Fatalf("expected page text Welcome, got %q", got.Content.Text)
	}

	rec = srv.do(t, "GET", "/api/pages/lookup?title=HOME", nil)
	expectStatus(t, rec, 200)
	if got := decode[pageViewBody](t, rec); got.Page.ID != created.Page.ID {
		t.Fatalf("expected lookup to find page %d, got %d", created.Page.ID, got.Page.ID)
	}

	rec = srv.do(t, "PUT", path, map[string]any{
		"title": "Home", "text": "Welcome back", "tags": []string{"intro"}, "author": "bob",
	})
	expectStatus(t, rec, 200)
	if got := decode[pageViewBody](t, rec); got.Content.VersionNumber != 2 || got.Page.ModifiedBy != "bob" {
		t.Fatalf("expected second version by bob, got %+v", got)
	}

	rec = srv.do(t, "GET", path+"/history", nil)
	expectStatus(t, rec, 200)
	if history := decode[[]contentBody](t, rec); len(history) != 2 {
		t.Fatalf("expected two versions, got %d", len(history))
	}

	rec = srv.do(t, "GET", path+"/versions/1", nil)
	expectStatus(t, rec, 200)
	if got := decode[contentBody](t, rec); got.Text != "Welcome" {
		t.Fatalf("expected first version text, got %q", got.Text)
	}
	expectStatus(t, srv.do(t, "GET", path+"/versions/9", nil), 404)

	rec = srv.do(t, "GET", "/api/pages?tag=INTRO", nil)
	expectStatus(t, rec, 200)
	if pages := decode[[]pageBody](t, rec); len(pages) != 1 {
		t.Fatalf("expected one tagged page, got %d", len(pages))
	}

	rec = srv.do(t, "GET", "/api/tags", nil)
	expectStatus(t, rec, 200)
	if tags := decode[[]string](t, rec); len(tags) != 1 || tags[0] != "intro" {
		t.Fatalf("expected [intro], got %v", tags)
	}

	expectStatus(t, srv.do(t, "DELETE", path, nil), 204)
	expectStatus(t, srv.do(t, "GET", path, nil), 404)
	expectStatus(t, srv.do(t, "GET", "/api/pages/lookup?title=Home", nil), 404)
}

func TestPageCreateRejectsBlankTitle(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, nil)
	expectStatus(t, srv.do(t, "POST", "/api/pages", map[string]any{
		"title": "   ", "text": "x", "author": "alice",
	}), 400)
}

func TestSearchWithoutIndexIsNotImplemented(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, nil)
	expectStatus(t, srv.do(t, "GET", "/api/search?q=home", nil), 501)
}

func TestSiteSettingsRoundTrip(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, nil)

	rec := srv.do(t, "GET", "/api/settings", nil)
	expectStatus(t, rec, 200)
	settings := decode[domain.SiteSettings](t, rec)
	if settings.SiteName != domain.DefaultSiteSettings().SiteName {
		t.Fatalf("expected default site name, got %q", settings.SiteName)
	}

	settings.SiteName = "Road wiki"
	settings.AllowUserSignup = true
	expectStatus(t, srv.do(t, "PUT", "/api/settings", settings), 200)

	rec = srv.do(t, "GET", "/api/settings", nil)
	expectStatus(t, rec, 200)
	if got := decode[domain.SiteSettings](t, rec); got.SiteName != "Road wiki" || !got.AllowUserSignup {
		t.Fatalf("expected saved settings, got %+v", got)
	}
}

func TestMetricsRouteExposesRequestCounters(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, nil)
	expectStatus(t, srv.doWithKey(t, "GET", "/healthz", nil, ""), 200)

	rec := srv.doWithKey(t, "GET", "/metrics", nil, "")
	expectStatus(t, rec, 200)
	if !strings.Contains(rec.Body.String(), "roadwiki_http_requests_total") {
		t.Fatalf("expected request counter in metrics output")
	}
}

func TestRateLimitedRequestsGet429(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, func(opts *Options) {
		opts.RateLimiter = RateLimiterSettings{RequestsPerSecond: 0.001, Burst: 1, ClientTTL: time.Minute}
	})

	expectStatus(t, srv.doWithKey(t, "GET", "/healthz", nil, ""), 200)

	rec := srv.doWithKey(t, "GET", "/healthz", nil, "")
	expectStatus(t, rec, stdhttp.StatusTooManyRequests)
	if rec.Header().Get("Retry-After") != "1" {
		t.Fatalf("expected Retry-After header, got %q", rec.Header().Get("Retry-After"))
	}
}

func TestRateLimitKeyedOnAPIKey(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, func(opts *Options) {
		opts.RateLimiter = RateLimiterSettings{RequestsPerSecond: 0.001, Burst: 1, ClientTTL: time.Minute}
	})

	expectStatus(t, srv.doWithKey(t, "GET", "/healthz", nil, testAPIKey), 200)
	// Same address without a key draws from the address bucket.
	expectStatus(t, srv.doWithKey(t, "GET", "/healthz", nil, ""), 200)
	expectStatus(t, srv.doWithKey(t, "GET", "/healthz", nil, testAPIKey), stdhttp.StatusTooManyRequests)
	// An unknown key falls back to the address, which is spent too.
	expectStatus(t, srv.doWithKey(t, "GET", "/healthz", nil, "not-a-key"), stdhttp.StatusTooManyRequests)

	if got := srv.rateLimiter.Clients(); got != 2 {
		t.Fatalf("expected one key bucket and one address bucket, got %d", got)
	}
}

func TestNewServerValidatesOptions(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, nil)

	_, err := NewServer(Options{Users: srv.users, Wiki: srv.wiki, Health: srv.health})
	if err == nil || !strings.Contains(err.Error(), "burst") {
		t.Fatalf("expected rate limiter validation error, got %v", err)
	}

	_, err = NewServer(Options{Wiki: srv.wiki, Health: srv.health})
	if err == nil {
		t.Fatalf("expected error without user service")
	}
}

func TestClientIPFromRequestPrefersForwardedFor(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	if ip := clientIPFromRequest(req); ip != "10.0.0.1" {
		t.Fatalf("expected remote address host, got %q", ip)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if ip := clientIPFromRequest(req); ip != "203.0.113.7" {
		t.Fatalf("expected forwarded address, got %q", ip)
	}
}
