package mongostore

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"roadwiki/app/internal/domain"
)

// GetSiteSettings loads the singleton document, returning defaults when absent.
func (s *Store) GetSiteSettings(ctx context.Context) (*domain.SiteSettings, error) {
	coll, err := s.collection(ctx, "GetSiteSettings", domain.CollectionSiteConfiguration)
	if err != nil {
		return nil, err
	}

	key := domain.SiteConfigurationID.String()
	var doc siteConfigurationDocument
	err = coll.FindOne(ctx, idFilter(key)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.DefaultSiteSettings(), nil
	}
	if err != nil {
		return nil, s.fail("GetSiteSettings", domain.CollectionSiteConfiguration, key, err)
	}

	settings, err := domain.DecodeSiteSettings(&domain.SiteConfiguration{
		ID:      domain.SiteConfigurationID,
		Version: doc.Version,
		Content: doc.Content,
	})
	if err != nil {
		return nil, s.fail("GetSiteSettings", domain.CollectionSiteConfiguration, key, &decodeError{err: err})
	}
	return settings, nil
}

// SaveSiteSettings upserts the singleton document.
func (s *Store) SaveSiteSettings(ctx context.Context, settings *domain.SiteSettings) error {
	row, err := domain.EncodeSiteSettings(settings)
	if err != nil {
		return domain.NewStorageError(domain.ErrDataIntegrity, "SaveSiteSettings", domain.CollectionSiteConfiguration, "", err)
	}

	coll, err := s.collection(ctx, "SaveSiteSettings", domain.CollectionSiteConfiguration)
	if err != nil {
		return err
	}

	doc := siteConfigurationDocument{ID: row.ID.String(), Version: row.Version, Content: row.Content}
	if _, err := coll.ReplaceOne(ctx, idFilter(doc.ID), doc, options.Replace().SetUpsert(true)); err != nil {
		return s.fail("SaveSiteSettings", domain.CollectionSiteConfiguration, doc.ID, err)
	}
	return nil
}
