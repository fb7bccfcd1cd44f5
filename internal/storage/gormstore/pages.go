package gormstore

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"roadwiki/app/internal/domain"
)

var errPageMissing = eris.New("page does not exist")

// AddNewPage inserts the page and its first content version in one transaction.
func (s *Store) AddNewPage(ctx context.Context, page *domain.Page, text, editedBy string, editedOn time.Time) (*domain.PageContent, error) {
	if page == nil {
		return nil, domain.NewStorageError(domain.ErrDataIntegrity, "AddNewPage", domain.CollectionPages, "", errNilEntity)
	}

	db, err := s.db(ctx, "AddNewPage", domain.CollectionPages)
	if err != nil {
		return nil, err
	}

	page.Tags = domain.NormalizeTags(page.Tags)
	record := toPageRecord(page)
	var content domain.PageContent

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			return err
		}

		content = domain.PageContent{
			ID:            uuid.New(),
			PageID:        record.ID,
			Text:          text,
			EditedBy:      editedBy,
			EditedOn:      editedOn,
			VersionNumber: 1,
		}
		contentRecord := toPageContentRecord(&content)
		return tx.Create(&contentRecord).Error
	})
	if err != nil {
		return nil, s.fail(domain.ErrStorageUnavailable, "AddNewPage", domain.CollectionPages, page.Title, err)
	}

	page.ID = record.ID
	return &content, nil
}

// AddNewPageContentVersion stores a new version for an existing page.
func (s *Store) AddNewPageContentVersion(ctx context.Context, page *domain.Page, text, editedBy string, editedOn time.Time, version int) (*domain.PageContent, error) {
	if page == nil {
		return nil, domain.NewStorageError(domain.ErrDataIntegrity, "AddNewPageContentVersion", domain.CollectionPageContents, "", errNilEntity)
	}

	content := domain.PageContent{
		ID:            uuid.New(),
		PageID:        page.ID,
		Text:          text,
		EditedBy:      editedBy,
		EditedOn:      editedOn,
		VersionNumber: version,
	}
	if err := s.writeContent(ctx, "AddNewPageContentVersion", &content, false); err != nil {
		return nil, err
	}
	return &content, nil
}

// UpdatePageContent replaces a stored version in place.
func (s *Store) UpdatePageContent(ctx context.Context, content *domain.PageContent) error {
	if content == nil {
		return domain.NewStorageError(domain.ErrDataIntegrity, "UpdatePageContent", domain.CollectionPageContents, "", errNilEntity)
	}
	return s.writeContent(ctx, "UpdatePageContent", content, true)
}

// writeContent inserts or upserts a content row after checking its page exists.
func (s *Store) writeContent(ctx context.Context, op string, content *domain.PageContent, upsert bool) error {
	db, err := s.db(ctx, op, domain.CollectionPageContents)
	if err != nil {
		return err
	}

	key := content.ID.String()
	record := toPageContentRecord(content)

	err = db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&pageRecord{}).Where("id = ?", content.PageID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return errPageMissing
		}

		if upsert {
			return tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				UpdateAll: true,
			}).Create(&record).Error
		}
		return tx.Create(&record).Error
	})
	if errors.Is(err, errPageMissing) {
		return s.fail(domain.ErrDataIntegrity, op, domain.CollectionPageContents, strconv.Itoa(content.PageID), err)
	}
	if err != nil {
		return s.fail(domain.ErrStorageUnavailable, op, domain.CollectionPageContents, key, err)
	}
	return nil
}

func (s *Store) findPages(ctx context.Context, op, key string, scope func(*gorm.DB) *gorm.DB) ([]domain.Page, error) {
	db, err := s.db(ctx, op, domain.CollectionPages)
	if err != nil {
		return nil, err
	}

	var records []pageRecord
	if err := scope(db.Model(&pageRecord{})).Order("id ASC").Find(&records).Error; err != nil {
		return nil, s.fail(domain.ErrStorageUnavailable, op, domain.CollectionPages, key, err)
	}

	pages := make([]domain.Page, 0, len(records))
	for _, record := range records {
		pages = append(pages, record.toDomain())
	}
	return pages, nil
}

func allRows(db *gorm.DB) *gorm.DB { return db }

// AllPages implements domain.PageRepository.
func (s *Store) AllPages(ctx context.Context) ([]domain.Page, error) {
	return s.findPages(ctx, "AllPages", "", allRows)
}

// GetPageByID implements domain.PageRepository.
func (s *Store) GetPageByID(ctx context.Context, id int) (*domain.Page, error) {
	key := strconv.Itoa(id)
	pages, err := s.findPages(ctx, "GetPageByID", key, func(db *gorm.DB) *gorm.DB {
		return db.Where("id = ?", id)
	})
	if err != nil {
		return nil, err
	}
	return domain.Single("GetPageByID", domain.CollectionPages, key, pages)
}

// GetPageByTitle matches the title ignoring case.
func (s *Store) GetPageByTitle(ctx context.Context, title string) (*domain.Page, error) {
	pages, err := s.findPages(ctx, "GetPageByTitle", title, func(db *gorm.DB) *gorm.DB {
		return db.Where("LOWER(title) = LOWER(?)", title)
	})
	if err != nil {
		return nil, err
	}
	return domain.Single("GetPageByTitle", domain.CollectionPages, title, pages)
}

// FindPagesCreatedBy implements domain.PageRepository.
func (s *Store) FindPagesCreatedBy(ctx context.Context, username string) ([]domain.Page, error) {
	return s.findPages(ctx, "FindPagesCreatedBy", username, func(db *gorm.DB) *gorm.DB {
		return db.Where("created_by = ?", username)
	})
}

// FindPagesModifiedBy implements domain.PageRepository.
func (s *Store) FindPagesModifiedBy(ctx context.Context, username string) ([]domain.Page, error) {
	return s.findPages(ctx, "FindPagesModifiedBy", username, func(db *gorm.DB) *gorm.DB {
		return db.Where("modified_by = ?", username)
	})
}

// FindPagesContainingTag narrows candidates in SQL and confirms each tag exactly.
func (s *Store) FindPagesContainingTag(ctx context.Context, tag string) ([]domain.Page, error) {
	normalized := domain.NormalizeTags([]string{tag})
	if len(normalized) == 0 {
		return []domain.Page{}, nil
	}

	candidates, err := s.findPages(ctx, "FindPagesContainingTag", tag, func(db *gorm.DB) *gorm.DB {
		return db.Where("tags LIKE ?", "%"+normalized[0]+"%")
	})
	if err != nil {
		return nil, err
	}

	pages := make([]domain.Page, 0, len(candidates))
	for _, page := range candidates {
		if page.HasTag(normalized[0]) {
			pages = append(pages, page)
		}
	}
	return pages, nil
}

// AllTags implements domain.PageRepository.
func (s *Store) AllTags(ctx context.Context) ([]string, error) {
	pages, err := s.findPages(ctx, "AllTags", "", func(db *gorm.DB) *gorm.DB {
		return db.Select("id", "tags").Where("tags <> ''")
	})
	if err != nil {
		return nil, err
	}
	return domain.CollectTags(pages), nil
}

// SaveOrUpdatePage inserts a page without an id or replaces the row with the same id.
func (s *Store) SaveOrUpdatePage(ctx context.Context, page *domain.Page) (*domain.Page, error) {
	if page == nil {
		return nil, domain.NewStorageError(domain.ErrDataIntegrity, "SaveOrUpdatePage", domain.CollectionPages, "", errNilEntity)
	}

	db, err := s.db(ctx, "SaveOrUpdatePage", domain.CollectionPages)
	if err != nil {
		return nil, err
	}

	page.Tags = domain.NormalizeTags(page.Tags)
	record := toPageRecord(page)
	err = db.Transaction(func(tx *gorm.DB) error {
		if record.ID == 0 {
			return tx.Create(&record).Error
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(&record).Error
		if err != nil {
			return err
		}
		return s.syncPageIDSequence(tx)
	})
	if err != nil {
		return nil, s.fail(domain.ErrStorageUnavailable, "SaveOrUpdatePage", domain.CollectionPages, page.ObjectID(), err)
	}

	page.ID = record.ID
	saved := *page
	return &saved, nil
}

// DeletePage removes the page together with all of its content versions.
func (s *Store) DeletePage(ctx context.Context, page *domain.Page) error {
	if page == nil {
		return nil
	}

	db, err := s.db(ctx, "DeletePage", domain.CollectionPages)
	if err != nil {
		return err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("page_id = ?", page.ID).Delete(&pageContentRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", page.ID).Delete(&pageRecord{}).Error
	})
	if err != nil {
		return s.fail(domain.ErrStorageUnavailable, "DeletePage", domain.CollectionPages, page.ObjectID(), err)
	}
	return nil
}

// DeleteAllPages removes every page and content row.
func (s *Store) DeleteAllPages(ctx context.Context) error {
	db, err := s.db(ctx, "DeleteAllPages", domain.CollectionPages)
	if err != nil {
		return err
	}

	err = db.Session(&gorm.Session{AllowGlobalUpdate: true}).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&pageContentRecord{}).Error; err != nil {
			return err
		}
		return tx.Delete(&pageRecord{}).Error
	})
	if err != nil {
		return s.fail(domain.ErrStorageUnavailable, "DeleteAllPages", domain.CollectionPages, "", err)
	}
	return nil
}

func (s *Store) findContents(ctx context.Context, op, key string, scope func(*gorm.DB) *gorm.DB) ([]domain.PageContent, error) {
	db, err := s.db(ctx, op, domain.CollectionPageContents)
	if err != nil {
		return nil, err
	}

	var records []pageContentRecord
	if err := scope(db.Model(&pageContentRecord{})).Order("page_id ASC, version_number ASC").Find(&records).Error; err != nil {
		return nil, s.fail(domain.ErrStorageUnavailable, op, domain.CollectionPageContents, key, err)
	}

	contents := make([]domain.PageContent, 0, len(records))
	for _, record := range records {
		content, err := record.toDomain()
		if err != nil {
			return nil, s.fail(domain.ErrDataIntegrity, op, domain.CollectionPageContents, record.ID, err)
		}
		contents = append(contents, content)
	}
	return contents, nil
}

// GetLatestPageContent returns the highest version of the page.
func (s *Store) GetLatestPageContent(ctx context.Context, pageID int) (*domain.PageContent, error) {
	contents, err := s.FindPageContentsByPageID(ctx, pageID)
	if err != nil || len(contents) == 0 {
		return nil, err
	}
	latest := contents[len(contents)-1]
	return &latest, nil
}

// GetPageContentByID implements domain.PageRepository.
func (s *Store) GetPageContentByID(ctx context.Context, id uuid.UUID) (*domain.PageContent, error) {
	key := id.String()
	contents, err := s.findContents(ctx, "GetPageContentByID", key, func(db *gorm.DB) *gorm.DB {
		return db.Where("id = ?", key)
	})
	if err != nil {
		return nil, err
	}
	return domain.Single("GetPageContentByID", domain.CollectionPageContents, key, contents)
}

// GetPageContentByPageIDAndVersionNumber implements domain.PageRepository.
func (s *Store) GetPageContentByPageIDAndVersionNumber(ctx context.Context, pageID, version int) (*domain.PageContent, error) {
	key := strconv.Itoa(pageID) + "/" + strconv.Itoa(version)
	contents, err := s.findContents(ctx, "GetPageContentByPageIDAndVersionNumber", key, func(db *gorm.DB) *gorm.DB {
		return db.Where("page_id = ? AND version_number = ?", pageID, version)
	})
	if err != nil {
		return nil, err
	}
	return domain.Single("GetPageContentByPageIDAndVersionNumber", domain.CollectionPageContents, key, contents)
}

// FindPageContentsByPageID returns every version of the page, oldest first.
func (s *Store) FindPageContentsByPageID(ctx context.Context, pageID int) ([]domain.PageContent, error) {
	return s.findContents(ctx, "FindPageContentsByPageID", strconv.Itoa(pageID), func(db *gorm.DB) *gorm.DB {
		return db.Where("page_id = ?", pageID)
	})
}

// FindPageContentsEditedBy implements domain.PageRepository.
func (s *Store) FindPageContentsEditedBy(ctx context.Context, username string) ([]domain.PageContent, error) {
	return s.findContents(ctx, "FindPageContentsEditedBy", username, func(db *gorm.DB) *gorm.DB {
		return db.Where("edited_by = ?", username)
	})
}

// AllPageContents implements domain.PageRepository.
func (s *Store) AllPageContents(ctx context.Context) ([]domain.PageContent, error) {
	return s.findContents(ctx, "AllPageContents", "", allRows)
}

// DeletePageContent removes one version. Deleting an absent version is a no-op.
func (s *Store) DeletePageContent(ctx context.Context, content *domain.PageContent) error {
	if content == nil {
		return nil
	}

	db, err := s.db(ctx, "DeletePageContent", domain.CollectionPageContents)
	if err != nil {
		return err
	}

	if err := db.Where("id = ?", content.ID.String()).Delete(&pageContentRecord{}).Error; err != nil {
		return s.fail(domain.ErrStorageUnavailable, "DeletePageContent", domain.CollectionPageContents, content.ID.String(), err)
	}
	return nil
}

// syncPageIDSequence moves the postgres id sequence past the highest stored
// page id. SQLite autoincrement already continues from the table maximum.
func (s *Store) syncPageIDSequence(tx *gorm.DB) error {
	if s.dialect != DialectPostgres {
		return nil
	}
	table := `"` + domain.CollectionPages + `"`
	return tx.Exec(
		"SELECT setval(pg_get_serial_sequence(?, 'id'), GREATEST((SELECT MAX(id) FROM "+table+"), 1))",
		table,
	).Error
}
