package badgerstore

import (
	"context"

	"github.com/dgraph-io/badger/v4"

	"roadwiki/app/internal/domain"
)

// GetSiteSettings loads the singleton document, returning defaults when absent.
func (s *Store) GetSiteSettings(ctx context.Context) (*domain.SiteSettings, error) {
	var row *domain.SiteConfiguration
	err := s.view(ctx, "GetSiteSettings", domain.CollectionSiteConfiguration, domain.SiteConfigurationID.String(), func(txn *badger.Txn) error {
		var doc domain.SiteConfiguration
		found, err := getDocument(txn, siteConfigurationKey(), &doc)
		if err != nil || !found {
			return err
		}
		row = &doc
		return nil
	})
	if err != nil {
		return nil, err
	}

	settings, err := domain.DecodeSiteSettings(row)
	if err != nil {
		return nil, s.fail(domain.ErrDataIntegrity, "GetSiteSettings", domain.CollectionSiteConfiguration, domain.SiteConfigurationID.String(), err)
	}
	return settings, nil
}

// SaveSiteSettings replaces the singleton document.
func (s *Store) SaveSiteSettings(ctx context.Context, settings *domain.SiteSettings) error {
	row, err := domain.EncodeSiteSettings(settings)
	if err != nil {
		return domain.NewStorageError(domain.ErrDataIntegrity, "SaveSiteSettings", domain.CollectionSiteConfiguration, "", err)
	}

	return s.update(ctx, "SaveSiteSettings", domain.CollectionSiteConfiguration, row.ID.String(), func(txn *badger.Txn) error {
		return putDocument(txn, siteConfigurationKey(), row)
	})
}
