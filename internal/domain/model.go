package domain

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Collection names shared by every backend. Each entity maps to exactly one
// collection or table named after the entity type.
const (
	CollectionUsers             = "User"
	CollectionPages             = "Page"
	CollectionPageContents      = "PageContent"
	CollectionSiteConfiguration = "SiteConfigurationEntity"
)

// Collections lists every collection dropped by a wipe, in drop order.
var Collections = []string{
	CollectionPageContents,
	CollectionPages,
	CollectionUsers,
	CollectionSiteConfiguration,
}

// Entity is implemented by every persisted record.
type Entity interface {
	ObjectID() string
}

// User is a registered wiki account.
type User struct {
	ID               uuid.UUID
	Username         string
	Email            string
	Firstname        string
	Lastname         string
	PasswordHash     string
	Salt             string
	IsAdmin          bool
	IsEditor         bool
	IsActivated      bool
	ActivationKey    string
	PasswordResetKey string
}

// ObjectID implements Entity.
func (u *User) ObjectID() string {
	return u.ID.String()
}

// Page holds the metadata for a wiki page. The body lives in PageContent rows.
type Page struct {
	ID         int
	Title      string
	Tags       []string
	CreatedBy  string
	CreatedOn  time.Time
	ModifiedBy string
	ModifiedOn time.Time
	IsLocked   bool
}

// ObjectID implements Entity.
func (p *Page) ObjectID() string {
	return strconv.Itoa(p.ID)
}

// PageContent is one version of a page body.
type PageContent struct {
	ID            uuid.UUID
	PageID        int
	Text          string
	EditedBy      string
	EditedOn      time.Time
	VersionNumber int
}

// ObjectID implements Entity.
func (c *PageContent) ObjectID() string {
	return c.ID.String()
}

// SiteConfigurationID is the identifier of the singleton configuration row.
var SiteConfigurationID = uuid.MustParse("b960e8e5-529f-4f7c-aee4-28eb23e13dbd")

// SiteConfiguration is the singleton row holding site-wide settings as JSON.
type SiteConfiguration struct {
	ID      uuid.UUID
	Version string
	Content string
}

// ObjectID implements Entity.
func (s *SiteConfiguration) ObjectID() string {
	return s.ID.String()
}
