package gormstore

import (
	"time"

	"github.com/google/uuid"

	"roadwiki/app/internal/domain"
)

type userRecord struct {
	ID               string `gorm:"primaryKey;size:36"`
	Username         string `gorm:"size:255;uniqueIndex:idx_user_username;not null"`
	Email            string `gorm:"size:255;uniqueIndex:idx_user_email;not null"`
	Firstname        string `gorm:"size:255"`
	Lastname         string `gorm:"size:255"`
	PasswordHash     string `gorm:"type:text"`
	Salt             string `gorm:"size:255"`
	IsAdmin          bool   `gorm:"not null"`
	IsEditor         bool   `gorm:"not null"`
	IsActivated      bool   `gorm:"not null"`
	ActivationKey    string `gorm:"size:255;index:idx_user_activation_key"`
	PasswordResetKey string `gorm:"size:255;index:idx_user_password_reset_key"`
}

func (userRecord) TableName() string {
	return domain.CollectionUsers
}

type pageRecord struct {
	ID         int    `gorm:"primaryKey;autoIncrement"`
	Title      string `gorm:"size:255;index:idx_page_title;not null"`
	Tags       string `gorm:"type:text"`
	CreatedBy  string `gorm:"size:255;index:idx_page_created_by"`
	CreatedOn  time.Time
	ModifiedBy string `gorm:"size:255;index:idx_page_modified_by"`
	ModifiedOn time.Time
	IsLocked   bool `gorm:"not null"`
}

func (pageRecord) TableName() string {
	return domain.CollectionPages
}

type pageContentRecord struct {
	ID            string `gorm:"primaryKey;size:36"`
	PageID        int    `gorm:"not null;uniqueIndex:idx_page_content_version,priority:1"`
	Text          string `gorm:"type:text"`
	EditedBy      string `gorm:"size:255;index:idx_page_content_edited_by"`
	EditedOn      time.Time
	VersionNumber int `gorm:"not null;uniqueIndex:idx_page_content_version,priority:2"`
}

func (pageContentRecord) TableName() string {
	return domain.CollectionPageContents
}

type siteConfigurationRecord struct {
	ID      string `gorm:"primaryKey;size:36"`
	Version string `gorm:"size:32"`
	Content string `gorm:"type:text"`
}

func (siteConfigurationRecord) TableName() string {
	return domain.CollectionSiteConfiguration
}

// models lists the records in the same order as domain.Collections.
func models() []any {
	return []any{&pageContentRecord{}, &pageRecord{}, &userRecord{}, &siteConfigurationRecord{}}
}

func toUserRecord(u *domain.User) userRecord {
	return userRecord{
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

func (r userRecord) toDomain() (domain.User, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return domain.User{}, err
	}
	return domain.User{
		ID:               id,
		Username:         r.Username,
		Email:            r.Email,
		Firstname:        r.Firstname,
		Lastname:         r.Lastname,
		PasswordHash:     r.PasswordHash,
		Salt:             r.Salt,
		IsAdmin:          r.IsAdmin,
		IsEditor:         r.IsEditor,
		IsActivated:      r.IsActivated,
		ActivationKey:    r.ActivationKey,
		PasswordResetKey: r.PasswordResetKey,
	}, nil
}

func toPageRecord(p *domain.Page) pageRecord {
	return pageRecord{
		ID:         p.ID,
		Title:      p.Title,
		Tags:       domain.JoinTags(p.Tags),
		CreatedBy:  p.CreatedBy,
		CreatedOn:  p.CreatedOn.UTC(),
		ModifiedBy: p.ModifiedBy,
		ModifiedOn: p.ModifiedOn.UTC(),
		IsLocked:   p.IsLocked,
	}
}

func (r pageRecord) toDomain() domain.Page {
	return domain.Page{
		ID:         r.ID,
		Title:      r.Title,
		Tags:       domain.ParseTags(r.Tags),
		CreatedBy:  r.CreatedBy,
		CreatedOn:  r.CreatedOn.UTC(),
		ModifiedBy: r.ModifiedBy,
		ModifiedOn: r.ModifiedOn.UTC(),
		IsLocked:   r.IsLocked,
	}
}

func toPageContentRecord(c *domain.PageContent) pageContentRecord {
	return pageContentRecord{
		ID:            c.ID.String(),
		PageID:        c.PageID,
		Text:          c.Text,
		EditedBy:      c.EditedBy,
		EditedOn:      c.EditedOn.UTC(),
		VersionNumber: c.VersionNumber,
	}
}

func (r pageContentRecord) toDomain() (domain.PageContent, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return domain.PageContent{}, err
	}
	return domain.PageContent{
		ID:            id,
		PageID:        r.PageID,
		Text:          r.Text,
		EditedBy:      r.EditedBy,
		EditedOn:      r.EditedOn.UTC(),
		VersionNumber: r.VersionNumber,
	}, nil
}
