// Package storetest is the behaviour suite every domain.Store backend must pass.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadwiki/app/internal/domain"
)

// Factory returns an empty, migrated store. The factory owns cleanup via t.Cleanup.
type Factory func(t *testing.T) domain.Store

// Run executes the full suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, store domain.Store)
	}{
		{"SaveThenGetByID", testSaveThenGetByID},
		{"SaveOrUpdateIsIdempotent", testSaveOrUpdateIsIdempotent},
		{"SaveOrUpdateReplacesExisting", testSaveOrUpdateReplacesExisting},
		{"ActivatedFilter", testActivatedFilter},
		{"RoleLookups", testRoleLookups},
		{"ActivationKeyIgnoresActivatedUsers", testActivationKeyIgnoresActivatedUsers},
		{"PasswordResetKey", testPasswordResetKey},
		{"DeleteIsIdempotent", testDeleteIsIdempotent},
		{"DeleteAllUsers", testDeleteAllUsers},
		{"EditorsScenario", testEditorsScenario},
		{"DuplicateEmailRejected", testDuplicateEmailRejected},
		{"DuplicateUsernameRejected", testDuplicateUsernameRejected},
		{"UsernameOrEmail", testUsernameOrEmail},
		{"PagesAndVersions", testPagesAndVersions},
		{"PageLookups", testPageLookups},
		{"SeparatorTagsSplit", testSeparatorTagsSplit},
		{"ExplicitIDPageThenAddNewPageKeepsBoth", testExplicitIDPageThenAddNewPageKeepsBoth},
		{"PageContentUpdateAndDelete", testPageContentUpdateAndDelete},
		{"ContentRequiresExistingPage", testContentRequiresExistingPage},
		{"DeletePageCascades", testDeletePageCascades},
		{"SiteSettingsSingleton", testSiteSettingsSingleton},
		{"WipeRemovesEverything", testWipeRemovesEverything},
		{"PingAndMigrateAreRepeatable", testPingAndMigrateAreRepeatable},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			store := newStore(t)
			tc.fn(t, store)
		})
	}
}

func newUser(username, email string) *domain.User {
	return &domain.User{
		ID:            uuid.New(),
		Username:      username,
		Email:         email,
		Firstname:     "First",
		Lastname:      "Last",
		PasswordHash:  "hash-" + username,
		Salt:          "salt-" + username,
		ActivationKey: uuid.NewString(),
	}
}

func save(t *testing.T, store domain.Store, user *domain.User) *domain.User {
	t.Helper()
	saved, err := store.SaveOrUpdateUser(context.Background(), user)
	require.NoError(t, err)
	require.NotNil(t, saved)
	return saved
}

func testSaveThenGetByID(t *testing.T, store domain.Store) {
	ctx := context.Background()
	user := newUser("alice", "alice@example.com")
	user.IsEditor = true
	save(t, store, user)

	got, err := store.GetUserByID(ctx, user.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, *user, *got)

	missing, err := store.GetUserByID(ctx, uuid.New(), nil)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func testSaveOrUpdateIsIdempotent(t *testing.T, store domain.Store) {
	ctx := context.Background()
	user := newUser("alice", "alice@example.com")
	save(t, store, user)
	save(t, store, user)

	all, err := store.FindAllEditors(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	user.IsEditor = true
	save(t, store, user)
	save(t, store, user)

	editors, err := store.FindAllEditors(ctx)
	require.NoError(t, err)
	require.Len(t, editors, 1)
	assert.Equal(t, user.ID, editors[0].ID)
}

func testSaveOrUpdateReplacesExisting(t *testing.T, store domain.Store) {
	ctx := context.Background()
	user := newUser("alice", "alice@example.com")
	save(t, store, user)

	user.Email = "alice@new.example.com"
	user.Username = "alice2"
	user.IsActivated = true
	save(t, store, user)

	got, err := store.GetUserByID(ctx, user.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alice2", got.Username)
	assert.Equal(t, "alice@new.example.com", got.Email)

	old, err := store.GetUserByEmail(ctx, "alice@example.com", nil)
	require.NoError(t, err)
	assert.Nil(t, old, "old email must no longer resolve")

	byName, err := store.GetUserByUsername(ctx, "alice2")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, user.ID, byName.ID)

	// the freed email can be claimed by another user
	other := newUser("carol", "alice@example.com")
	save(t, store, other)
}

func testActivatedFilter(t *testing.T, store domain.Store) {
	ctx := context.Background()
	user := newUser("alice", "alice@example.com")
	save(t, store, user)

	got, err := store.GetUserByID(ctx, user.ID, domain.Bool(true))
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = store.GetUserByID(ctx, user.ID, domain.Bool(false))
	require.NoError(t, err)
	require.NotNil(t, got)

	got, err = store.GetUserByEmail(ctx, "alice@example.com", domain.Bool(true))
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = store.GetUserByEmail(ctx, "alice@example.com", domain.Bool(false))
	require.NoError(t, err)
	require.NotNil(t, got)

	user.IsActivated = true
	save(t, store, user)

	got, err = store.GetUserByEmail(ctx, "alice@example.com", domain.Bool(true))
	require.NoError(t, err)
	require.NotNil(t, got)

	got, err = store.GetUserByEmail(ctx, "alice@example.com", nil)
	require.NoError(t, err)
	require.NotNil(t, got)
}

func testRoleLookups(t *testing.T, store domain.Store) {
	ctx := context.Background()
	admin := newUser("admin", "admin@example.com")
	admin.IsAdmin = true
	editor := newUser("editor", "editor@example.com")
	editor.IsEditor = true
	both := newUser("both", "both@example.com")
	both.IsAdmin = true
	both.IsEditor = true
	for _, u := range []*domain.User{admin, editor, both, newUser("plain", "plain@example.com")} {
		save(t, store, u)
	}

	admins, err := store.FindAllAdmins(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"admin", "both"}, usernames(admins))

	editors, err := store.FindAllEditors(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"editor", "both"}, usernames(editors))

	got, err := store.GetAdminByID(ctx, admin.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	got, err = store.GetAdminByID(ctx, editor.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = store.GetEditorByID(ctx, editor.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	got, err = store.GetEditorByID(ctx, admin.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func testActivationKeyIgnoresActivatedUsers(t *testing.T, store domain.Store) {
	ctx := context.Background()
	user := newUser("alice", "alice@example.com")
	key := user.ActivationKey
	save(t, store, user)

	got, err := store.GetUserByActivationKey(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, user.ID, got.ID)

	user.IsActivated = true
	save(t, store, user)

	got, err = store.GetUserByActivationKey(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got, "a consumed activation key must not resolve")

	got, err = store.GetUserByActivationKey(ctx, "unknown")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func testPasswordResetKey(t *testing.T, store domain.Store) {
	ctx := context.Background()
	user := newUser("alice", "alice@example.com")
	user.PasswordResetKey = "reset-123"
	save(t, store, user)

	got, err := store.GetUserByPasswordResetKey(ctx, "reset-123")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, user.ID, got.ID)

	got, err = store.GetUserByPasswordResetKey(ctx, "reset-999")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func testDeleteIsIdempotent(t *testing.T, store domain.Store) {
	ctx := context.Background()
	user := newUser("alice", "alice@example.com")
	save(t, store, user)

	require.NoError(t, store.DeleteUser(ctx, user))

	got, err := store.GetUserByID(ctx, user.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.DeleteUser(ctx, user), "deleting an absent user is a no-op")

	// username and email are free again
	save(t, store, newUser("alice", "alice@example.com"))
}

func testDeleteAllUsers(t *testing.T, store domain.Store) {
	ctx := context.Background()
	for _, name := range []string{"a", "b", "c"} {
		u := newUser(name, name+"@example.com")
		u.IsAdmin = true
		save(t, store, u)
	}

	require.NoError(t, store.DeleteAllUsers(ctx))

	admins, err := store.FindAllAdmins(ctx)
	require.NoError(t, err)
	assert.Empty(t, admins)

	got, err := store.GetUserByUsername(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func testEditorsScenario(t *testing.T, store domain.Store) {
	ctx := context.Background()
	alice := newUser("alice", "a@x.com")
	alice.IsEditor = true
	save(t, store, alice)

	editors, err := store.FindAllEditors(ctx)
	require.NoError(t, err)
	require.Len(t, editors, 1)
	assert.Equal(t, "alice", editors[0].Username)
}

func testDuplicateEmailRejected(t *testing.T, store domain.Store) {
	ctx := context.Background()
	alice := newUser("alice", "a@x.com")
	alice.IsEditor = true
	save(t, store, alice)

	bob := newUser("bob", "a@x.com")
	_, err := store.SaveOrUpdateUser(ctx, bob)
	require.Error(t, err)
	assert.True(t, domain.IsDuplicateKey(err), "expected duplicate key, got %v", err)

	got, err := store.GetUserByEmail(ctx, "a@x.com", nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, alice.ID, got.ID, "identities must not be merged")

	missing, err := store.GetUserByID(ctx, bob.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func testDuplicateUsernameRejected(t *testing.T, store domain.Store) {
	ctx := context.Background()
	save(t, store, newUser("alice", "alice@example.com"))

	_, err := store.SaveOrUpdateUser(ctx, newUser("alice", "other@example.com"))
	require.Error(t, err)
	assert.True(t, domain.IsDuplicateKey(err), "expected duplicate key, got %v", err)
}

func testUsernameOrEmail(t *testing.T, store domain.Store) {
	ctx := context.Background()
	alice := newUser("alice", "a@x.com")
	save(t, store, alice)

	got, err := store.GetUserByUsernameOrEmail(ctx, "alice", "nomatch@x.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alice", got.Username)

	got, err = store.GetUserByUsernameOrEmail(ctx, "nomatch", "a@x.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, alice.ID, got.ID)

	got, err = store.GetUserByUsernameOrEmail(ctx, "nomatch", "nomatch@x.com")
	require.NoError(t, err)
	assert.Nil(t, got)

	bob := newUser("bob", "b@x.com")
	save(t, store, bob)

	_, err = store.GetUserByUsernameOrEmail(ctx, "alice", "b@x.com")
	require.Error(t, err)
	assert.True(t, domain.IsDataIntegrity(err), "two owners must be reported, got %v", err)
}

func testPagesAndVersions(t *testing.T, store domain.Store) {
	ctx := context.Background()
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	page := &domain.Page{
		Title:     "Home",
		Tags:      []string{"Intro", "welcome"},
		CreatedBy: "alice",
		CreatedOn: created,
	}
	content, err := store.AddNewPage(ctx, page, "first", "alice", created)
	require.NoError(t, err)
	require.NotNil(t, content)
	require.NotZero(t, page.ID, "backend must assign a page id")
	assert.Equal(t, page.ID, content.PageID)
	assert.Equal(t, 1, content.VersionNumber)

	second, err := store.AddNewPage(ctx, &domain.Page{Title: "Second", CreatedBy: "bob", CreatedOn: created}, "b", "bob", created)
	require.NoError(t, err)
	assert.NotEqual(t, page.ID, second.PageID)

	edited := created.Add(time.Hour)
	v2, err := store.AddNewPageContentVersion(ctx, page, "second", "bob", edited, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, v2.VersionNumber)

	latest, err := store.GetLatestPageContent(ctx, page.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "second", latest.Text)
	assert.Equal(t, 2, latest.VersionNumber)
	assert.True(t, edited.Equal(latest.EditedOn))

	history, err := store.FindPageContentsByPageID(ctx, page.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 1, history[0].VersionNumber)
	assert.Equal(t, 2, history[1].VersionNumber)

	v1, err := store.GetPageContentByPageIDAndVersionNumber(ctx, page.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, v1)
	assert.Equal(t, "first", v1.Text)

	byID, err := store.GetPageContentByID(ctx, v2.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "second", byID.Text)

	missing, err := store.GetPageContentByPageIDAndVersionNumber(ctx, page.ID, 9)
	require.NoError(t, err)
	assert.Nil(t, missing)

	edits, err := store.FindPageContentsEditedBy(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, edits, 2)

	all, err := store.AllPageContents(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func testSeparatorTagsSplit(t *testing.T, store domain.Store) {
	ctx := context.Background()
	now := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)

	page := &domain.Page{Title: "Languages", Tags: []string{"C++,go", "Go;Wiki"}, CreatedBy: "alice", CreatedOn: now, ModifiedBy: "alice", ModifiedOn: now}
	_, err := store.AddNewPage(ctx, page, "text", "alice", now)
	require.NoError(t, err)
	assert.Equal(t, []string{"c++", "go", "wiki"}, page.Tags)

	got, err := store.GetPageByID(ctx, page.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"c++", "go", "wiki"}, got.Tags)

	tagged, err := store.FindPagesContainingTag(ctx, "go")
	require.NoError(t, err)
	require.Len(t, tagged, 1)
	assert.Equal(t, page.ID, tagged[0].ID)
}

func testExplicitIDPageThenAddNewPageKeepsBoth(t *testing.T, store domain.Store) {
	ctx := context.Background()
	now := time.Date(2024, 3, 3, 10, 0, 0, 0, time.UTC)

	explicit, err := store.SaveOrUpdatePage(ctx, &domain.Page{ID: 1, Title: "Explicit", CreatedBy: "alice", CreatedOn: now, ModifiedBy: "alice", ModifiedOn: now})
	require.NoError(t, err)
	require.Equal(t, 1, explicit.ID)

	fresh := &domain.Page{Title: "Fresh", CreatedBy: "bob", CreatedOn: now, ModifiedBy: "bob", ModifiedOn: now}
	_, err = store.AddNewPage(ctx, fresh, "text", "bob", now)
	require.NoError(t, err)
	assert.NotEqual(t, explicit.ID, fresh.ID)

	got, err := store.GetPageByID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Explicit", got.Title)

	all, err := store.AllPages(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func testPageLookups(t *testing.T, store domain.Store) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	home := &domain.Page{Title: "Home", Tags: []string{"Intro", "welcome"}, CreatedBy: "alice", CreatedOn: now, ModifiedBy: "bob", ModifiedOn: now}
	_, err := store.AddNewPage(ctx, home, "x", "alice", now)
	require.NoError(t, err)
	guide := &domain.Page{Title: "Guide", Tags: []string{"intro"}, CreatedBy: "bob", CreatedOn: now, ModifiedBy: "bob", ModifiedOn: now}
	_, err = store.AddNewPage(ctx, guide, "y", "bob", now)
	require.NoError(t, err)

	got, err := store.GetPageByID(ctx, home.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Home", got.Title)
	assert.Equal(t, []string{"intro", "welcome"}, got.Tags)

	byTitle, err := store.GetPageByTitle(ctx, "guide")
	require.NoError(t, err)
	require.NotNil(t, byTitle, "title lookup ignores case")
	assert.Equal(t, guide.ID, byTitle.ID)

	none, err := store.GetPageByID(ctx, 999999)
	require.NoError(t, err)
	assert.Nil(t, none)

	created, err := store.FindPagesCreatedBy(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "Guide", created[0].Title)

	modified, err := store.FindPagesModifiedBy(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, modified, 2)

	tagged, err := store.FindPagesContainingTag(ctx, "INTRO")
	require.NoError(t, err)
	assert.Len(t, tagged, 2)

	tags, err := store.AllTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"intro", "welcome"}, tags)

	all, err := store.AllPages(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	home.Title = "Main page"
	home.IsLocked = true
	saved, err := store.SaveOrUpdatePage(ctx, home)
	require.NoError(t, err)
	assert.Equal(t, home.ID, saved.ID)

	got, err = store.GetPageByID(ctx, home.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Main page", got.Title)
	assert.True(t, got.IsLocked)

	all, err = store.AllPages(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2, "update must not add a page")
}

func testPageContentUpdateAndDelete(t *testing.T, store domain.Store) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	page := &domain.Page{Title: "Home", CreatedBy: "alice", CreatedOn: now}
	content, err := store.AddNewPage(ctx, page, "draft", "alice", now)
	require.NoError(t, err)

	content.Text = "fixed typo"
	require.NoError(t, store.UpdatePageContent(ctx, content))

	got, err := store.GetPageContentByID(ctx, content.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "fixed typo", got.Text)

	require.NoError(t, store.DeletePageContent(ctx, content))
	require.NoError(t, store.DeletePageContent(ctx, content))

	got, err = store.GetPageContentByID(ctx, content.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func testContentRequiresExistingPage(t *testing.T, store domain.Store) {
	ctx := context.Background()
	_, err := store.AddNewPageContentVersion(ctx, &domain.Page{ID: 424242}, "orphan", "alice", time.Now(), 1)
	require.Error(t, err)
	assert.True(t, domain.IsDataIntegrity(err), "expected data integrity violation, got %v", err)
}

func testDeletePageCascades(t *testing.T, store domain.Store) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	page := &domain.Page{Title: "Home", CreatedBy: "alice", CreatedOn: now}
	_, err := store.AddNewPage(ctx, page, "v1", "alice", now)
	require.NoError(t, err)
	_, err = store.AddNewPageContentVersion(ctx, page, "v2", "alice", now, 2)
	require.NoError(t, err)

	keep := &domain.Page{Title: "Keep", CreatedBy: "alice", CreatedOn: now}
	_, err = store.AddNewPage(ctx, keep, "kept", "alice", now)
	require.NoError(t, err)

	require.NoError(t, store.DeletePage(ctx, page))
	require.NoError(t, store.DeletePage(ctx, page))

	got, err := store.GetPageByID(ctx, page.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	history, err := store.FindPageContentsByPageID(ctx, page.ID)
	require.NoError(t, err)
	assert.Empty(t, history)

	latest, err := store.GetLatestPageContent(ctx, keep.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)

	require.NoError(t, store.DeleteAllPages(ctx))
	all, err := store.AllPages(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	contents, err := store.AllPageContents(ctx)
	require.NoError(t, err)
	assert.Empty(t, contents)
}

func testSiteSettingsSingleton(t *testing.T, store domain.Store) {
	ctx := context.Background()

	defaults, err := store.GetSiteSettings(ctx)
	require.NoError(t, err)
	require.NotNil(t, defaults)
	assert.False(t, defaults.Installed)

	defaults.Installed = true
	defaults.Theme = "Mediawiki"
	require.NoError(t, store.SaveSiteSettings(ctx, defaults))

	defaults.SiteName = "Roadwiki"
	require.NoError(t, store.SaveSiteSettings(ctx, defaults))

	got, err := store.GetSiteSettings(ctx)
	require.NoError(t, err)
	assert.True(t, got.Installed)
	assert.Equal(t, "Mediawiki", got.Theme)
	assert.Equal(t, "Roadwiki", got.SiteName)
}

func testWipeRemovesEverything(t *testing.T, store domain.Store) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	user := newUser("alice", "alice@example.com")
	user.IsAdmin = true
	user.IsEditor = true
	save(t, store, user)
	page := &domain.Page{Title: "Home", CreatedBy: "alice", CreatedOn: now}
	_, err := store.AddNewPage(ctx, page, "body", "alice", now)
	require.NoError(t, err)
	settings := domain.DefaultSiteSettings()
	settings.Installed = true
	require.NoError(t, store.SaveSiteSettings(ctx, settings))

	require.NoError(t, store.Wipe(ctx))

	got, err := store.GetUserByID(ctx, user.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	admins, err := store.FindAllAdmins(ctx)
	require.NoError(t, err)
	assert.Empty(t, admins)

	editors, err := store.FindAllEditors(ctx)
	require.NoError(t, err)
	assert.Empty(t, editors)

	pages, err := store.AllPages(ctx)
	require.NoError(t, err)
	assert.Empty(t, pages)

	p, err := store.GetPageByID(ctx, page.ID)
	require.NoError(t, err)
	assert.Nil(t, p)

	reloaded, err := store.GetSiteSettings(ctx)
	require.NoError(t, err)
	assert.False(t, reloaded.Installed)

	// the store stays usable after a wipe
	save(t, store, newUser("alice", "alice@example.com"))
}

func testPingAndMigrateAreRepeatable(t *testing.T, store domain.Store) {
	ctx := context.Background()
	require.NoError(t, store.Ping(ctx))
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Migrate(ctx))
	assert.NotEmpty(t, store.Name())
}

func usernames(users []domain.User) []string {
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.Username)
	}
	return names
}
