package gormstore

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"roadwiki/app/internal/domain"
)

// GetSiteSettings loads the singleton row, returning defaults when it is absent.
func (s *Store) GetSiteSettings(ctx context.Context) (*domain.SiteSettings, error) {
	db, err := s.db(ctx, "GetSiteSettings", domain.CollectionSiteConfiguration)
	if err != nil {
		return nil, err
	}

	key := domain.SiteConfigurationID.String()
	var record siteConfigurationRecord
	err = db.First(&record, "id = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.DefaultSiteSettings(), nil
	}
	if err != nil {
		return nil, s.fail(domain.ErrStorageUnavailable, "GetSiteSettings", domain.CollectionSiteConfiguration, key, err)
	}

	id, err := uuid.Parse(record.ID)
	if err != nil {
		return nil, s.fail(domain.ErrDataIntegrity, "GetSiteSettings", domain.CollectionSiteConfiguration, key, err)
	}
	settings, err := domain.DecodeSiteSettings(&domain.SiteConfiguration{
		ID:      id,
		Version: record.Version,
		Content: record.Content,
	})
	if err != nil {
		return nil, s.fail(domain.ErrDataIntegrity, "GetSiteSettings", domain.CollectionSiteConfiguration, key, err)
	}
	return settings, nil
}

// SaveSiteSettings upserts the singleton row.
func (s *Store) SaveSiteSettings(ctx context.Context, settings *domain.SiteSettings) error {
	row, err := domain.EncodeSiteSettings(settings)
	if err != nil {
		return domain.NewStorageError(domain.ErrDataIntegrity, "SaveSiteSettings", domain.CollectionSiteConfiguration, "", err)
	}

	db, err := s.db(ctx, "SaveSiteSettings", domain.CollectionSiteConfiguration)
	if err != nil {
		return err
	}

	record := siteConfigurationRecord{ID: row.ID.String(), Version: row.Version, Content: row.Content}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&record).Error
	if err != nil {
		return s.fail(domain.ErrStorageUnavailable, "SaveSiteSettings", domain.CollectionSiteConfiguration, record.ID, err)
	}
	return nil
}
