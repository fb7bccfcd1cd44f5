package mongostore

import (
	"time"

	"github.com/google/uuid"

	"roadwiki/app/internal/domain"
)

// Field names shared by documents and filters.
const (
	fieldID               = "_id"
	fieldUsername         = "username"
	fieldEmail            = "email"
	fieldIsAdmin          = "isAdmin"
	fieldIsEditor         = "isEditor"
	fieldIsActivated      = "isActivated"
	fieldActivationKey    = "activationKey"
	fieldPasswordResetKey = "passwordResetKey"
	fieldTitle            = "title"
	fieldTags             = "tags"
	fieldCreatedBy        = "createdBy"
	fieldModifiedBy       = "modifiedBy"
	fieldPageID           = "pageId"
	fieldEditedBy         = "editedBy"
	fieldVersionNumber    = "versionNumber"
	fieldSequence         = "seq"
)

const countersCollection = "counters"

type userDocument struct {
	ID               string `bson:"_id"`
	Username         string `bson:"username"`
	Email            string `bson:"email"`
	Firstname        string `bson:"firstname"`
	Lastname         string `bson:"lastname"`
	PasswordHash     string `bson:"passwordHash"`
	Salt             string `bson:"salt"`
	IsAdmin          bool   `bson:"isAdmin"`
	IsEditor         bool   `bson:"isEditor"`
	IsActivated      bool   `bson:"isActivated"`
	ActivationKey    string `bson:"activationKey"`
	PasswordResetKey string `bson:"passwordResetKey"`
}

func newUserDocument(u *domain.User) userDocument {
	return userDocument{
		ID:               u.ID.String(),
		Username:         u.Username,
		Email:            u.Email,
		Firstname:        u.Firstname,
		Lastname:         u.Lastname,
		PasswordHash:     u.PasswordHash,
		Salt:             u.Salt,
		IsAdmin:          u.IsAdmin,
		IsEditor:         u.IsEditor,
		IsActivated:      u.IsActivated,
		ActivationKey:    u.ActivationKey,
		PasswordResetKey: u.PasswordResetKey,
	}
}

func (d userDocument) toDomain() (domain.User, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return domain.User{}, err
	}
	return domain.User{
		ID:               id,
		Username:         d.Username,
		Email:            d.Email,
		Firstname:        d.Firstname,
		Lastname:         d.Lastname,
		PasswordHash:     d.PasswordHash,
		Salt:             d.Salt,
		IsAdmin:          d.IsAdmin,
		IsEditor:         d.IsEditor,
		IsActivated:      d.IsActivated,
		ActivationKey:    d.ActivationKey,
		PasswordResetKey: d.PasswordResetKey,
	}, nil
}

type pageDocument struct {
	ID         int       `bson:"_id"`
	Title      string    `bson:"title"`
	Tags       []string  `bson:"tags"`
	CreatedBy  string    `bson:"createdBy"`
	CreatedOn  time.Time `bson:"createdOn"`
	ModifiedBy string    `bson:"modifiedBy"`
	ModifiedOn time.Time `bson:"modifiedOn"`
	IsLocked   bool      `bson:"isLocked"`
}

func newPageDocument(p *domain.Page) pageDocument {
	return pageDocument{
		ID:         p.ID,
		Title:      p.Title,
		Tags:       domain.NormalizeTags(p.Tags),
		CreatedBy:  p.CreatedBy,
		CreatedOn:  p.CreatedOn,
		ModifiedBy: p.ModifiedBy,
		ModifiedOn: p.ModifiedOn,
		IsLocked:   p.IsLocked,
	}
}

func (d pageDocument) toDomain() domain.Page {
	return domain.Page{
		ID:         d.ID,
		Title:      d.Title,
		Tags:       domain.NormalizeTags(d.Tags),
		CreatedBy:  d.CreatedBy,
		CreatedOn:  d.CreatedOn.UTC(),
		ModifiedBy: d.ModifiedBy,
		ModifiedOn: d.ModifiedOn.UTC(),
		IsLocked:   d.IsLocked,
	}
}

type pageContentDocument struct {
	ID            string    `bson:"_id"`
	PageID        int       `bson:"pageId"`
	Text          string    `bson:"text"`
	EditedBy      string    `bson:"editedBy"`
	EditedOn      time.Time `bson:"editedOn"`
	VersionNumber int       `bson:"versionNumber"`
}

func newPageContentDocument(c *domain.PageContent) pageContentDocument {
	return pageContentDocument{
		ID:            c.ID.String(),
		PageID:        c.PageID,
		Text:          c.Text,
		EditedBy:      c.EditedBy,
		EditedOn:      c.EditedOn,
		VersionNumber: c.VersionNumber,
	}
}

func (d pageContentDocument) toDomain() (domain.PageContent, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return domain.PageContent{}, err
	}
	return domain.PageContent{
		ID:            id,
		PageID:        d.PageID,
		Text:          d.Text,
		EditedBy:      d.EditedBy,
		EditedOn:      d.EditedOn.UTC(),
		VersionNumber: d.VersionNumber,
	}, nil
}

type siteConfigurationDocument struct {
	ID      string `bson:"_id"`
	Version string `bson:"version"`
	Content string `bson:"content"`
}

type counterDocument struct {
	ID  string `bson:"_id"`
	Seq int    `bson:"seq"`
}
