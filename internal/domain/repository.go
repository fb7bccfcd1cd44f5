package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UserRepository defines persistence operations for wiki users.
//
// Lookups return (nil, nil) when nothing matches. A lookup on a unique
// attribute that matches more than one user fails with ErrDataIntegrity.
type UserRepository interface {
	GetUserByID(ctx context.Context, id uuid.UUID, activated *bool) (*User, error)
	GetAdminByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetEditorByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByEmail(ctx context.Context, email string, activated *bool) (*User, error)
	GetUserByUsernameOrEmail(ctx context.Context, username, email string) (*User, error)
	GetUserByActivationKey(ctx context.Context, key string) (*User, error)
	GetUserByPasswordResetKey(ctx context.Context, key string) (*User, error)
	FindAllEditors(ctx context.Context) ([]User, error)
	FindAllAdmins(ctx context.Context) ([]User, error)
	SaveOrUpdateUser(ctx context.Context, user *User) (*User, error)
	DeleteUser(ctx context.Context, user *User) error
	DeleteAllUsers(ctx context.Context) error
}

// PageRepository defines persistence operations for pages and their content versions.
type PageRepository interface {
	AddNewPage(ctx context.Context, page *Page, text, editedBy string, editedOn time.Time) (*PageContent, error)
	AddNewPageContentVersion(ctx context.Context, page *Page, text, editedBy string, editedOn time.Time, version int) (*PageContent, error)
	AllPages(ctx context.Context) ([]Page, error)
	GetPageByID(ctx context.Context, id int) (*Page, error)
	GetPageByTitle(ctx context.Context, title string) (*Page, error)
	FindPagesCreatedBy(ctx context.Context, username string) ([]Page, error)
	FindPagesModifiedBy(ctx context.Context, username string) ([]Page, error)
	FindPagesContainingTag(ctx context.Context, tag string) ([]Page, error)
	AllTags(ctx context.Context) ([]string, error)
	SaveOrUpdatePage(ctx context.Context, page *Page) (*Page, error)
	DeletePage(ctx context.Context, page *Page) error
	DeleteAllPages(ctx context.Context) error

	GetLatestPageContent(ctx context.Context, pageID int) (*PageContent, error)
	GetPageContentByID(ctx context.Context, id uuid.UUID) (*PageContent, error)
	GetPageContentByPageIDAndVersionNumber(ctx context.Context, pageID, version int) (*PageContent, error)
	FindPageContentsByPageID(ctx context.Context, pageID int) ([]PageContent, error)
	FindPageContentsEditedBy(ctx context.Context, username string) ([]PageContent, error)
	AllPageContents(ctx context.Context) ([]PageContent, error)
	UpdatePageContent(ctx context.Context, content *PageContent) error
	DeletePageContent(ctx context.Context, content *PageContent) error
}

// SiteConfigurationRepository reads and writes the singleton site settings row.
type SiteConfigurationRepository interface {
	GetSiteSettings(ctx context.Context) (*SiteSettings, error)
	SaveSiteSettings(ctx context.Context, settings *SiteSettings) error
}

// Store is one backend implementation of every repository.
type Store interface {
	UserRepository
	PageRepository
	SiteConfigurationRepository

	// Name reports the backend name, e.g. "mongodb" or "sqlite".
	Name() string
	// Migrate creates tables, collections and indexes. It is idempotent.
	Migrate(ctx context.Context) error
	// Ping verifies that the backend is reachable.
	Ping(ctx context.Context) error
	// Wipe drops every known collection. It is best-effort per collection:
	// a failure on one collection does not undo earlier drops.
	Wipe(ctx context.Context) error
	Close() error
}
