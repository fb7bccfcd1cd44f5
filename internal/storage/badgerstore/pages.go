package badgerstore

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"roadwiki/app/internal/domain"
)

// AddNewPage stores the page with a fresh id and its first content version.
func (s *Store) AddNewPage(ctx context.Context, page *domain.Page, text, editedBy string, editedOn time.Time) (*domain.PageContent, error) {
	if page == nil {
		return nil, domain.NewStorageError(domain.ErrDataIntegrity, "AddNewPage", domain.CollectionPages, "", errNilEntity)
	}

	b, err := s.backend(ctx, "AddNewPage", domain.CollectionPages)
	if err != nil {
		return nil, err
	}
	id, err := b.freePageID()
	if err != nil {
		return nil, s.fail(domain.ErrStorageUnavailable, "AddNewPage", domain.CollectionPages, page.Title, err)
	}

	stored := *page
	stored.ID = id
	stored.Tags = domain.NormalizeTags(page.Tags)
	content := domain.PageContent{
		ID:            uuid.New(),
		PageID:        id,
		Text:          text,
		EditedBy:      editedBy,
		EditedOn:      editedOn,
		VersionNumber: 1,
	}

	err = s.update(ctx, "AddNewPage", domain.CollectionPages, stored.ObjectID(), func(txn *badger.Txn) error {
		if err := claimPageID(txn, id); err != nil {
			return err
		}
		if err := putDocument(txn, pageKey(id), &stored); err != nil {
			return err
		}
		return insertContent(txn, &content)
	})
	if err != nil {
		return nil, err
	}

	page.ID = id
	page.Tags = stored.Tags
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

	err := s.update(ctx, "AddNewPageContentVersion", domain.CollectionPageContents, strconv.Itoa(page.ID), func(txn *badger.Txn) error {
		if err := requirePage(txn, page.ID); err != nil {
			return err
		}
		return insertContent(txn, &content)
	})
	if err != nil {
		return nil, err
	}
	return &content, nil
}

func requirePage(txn *badger.Txn, id int) error {
	_, err := txn.Get(pageKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return errPageMissing
	}
	return err
}

// claimPageID fails when a page is already stored under id.
func claimPageID(txn *badger.Txn, id int) error {
	_, err := txn.Get(pageKey(id))
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return nil
	case err != nil:
		return err
	}
	return errPageIDTaken
}

// insertContent writes a new version and its (page, version) index entry.
func insertContent(txn *badger.Txn, content *domain.PageContent) error {
	versionKey := pageVersionKey(content.PageID, content.VersionNumber)
	_, err := txn.Get(versionKey)
	switch {
	case err == nil:
		return errVersionTaken
	case !errors.Is(err, badger.ErrKeyNotFound):
		return err
	}

	if err := txn.Set(versionKey, []byte(content.ID.String())); err != nil {
		return err
	}
	return putDocument(txn, pageContentKey(content.ID), content)
}

func (s *Store) scanPages(ctx context.Context, op, key string, keep func(*domain.Page) bool) ([]domain.Page, error) {
	var pages []domain.Page
	err := s.view(ctx, op, domain.CollectionPages, key, func(txn *badger.Txn) error {
		var err error
		pages, err = scanDocuments(txn, documentPrefix(domain.CollectionPages), keep)
		return err
	})
	if err != nil {
		return nil, err
	}
	if pages == nil {
		pages = []domain.Page{}
	}
	return pages, nil
}

func everyPage(*domain.Page) bool { return true }

// AllPages implements domain.PageRepository.
func (s *Store) AllPages(ctx context.Context) ([]domain.Page, error) {
	return s.scanPages(ctx, "AllPages", "", everyPage)
}

// GetPageByID implements domain.PageRepository.
func (s *Store) GetPageByID(ctx context.Context, id int) (*domain.Page, error) {
	var page *domain.Page
	err := s.view(ctx, "GetPageByID", domain.CollectionPages, strconv.Itoa(id), func(txn *badger.Txn) error {
		var doc domain.Page
		found, err := getDocument(txn, pageKey(id), &doc)
		if err != nil || !found {
			return err
		}
		page = &doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// GetPageByTitle matches the title ignoring case.
func (s *Store) GetPageByTitle(ctx context.Context, title string) (*domain.Page, error) {
	pages, err := s.scanPages(ctx, "GetPageByTitle", title, func(p *domain.Page) bool {
		return strings.EqualFold(p.Title, title)
	})
	if err != nil {
		return nil, err
	}
	return domain.Single("GetPageByTitle", domain.CollectionPages, title, pages)
}

// FindPagesCreatedBy implements domain.PageRepository.
func (s *Store) FindPagesCreatedBy(ctx context.Context, username string) ([]domain.Page, error) {
	return s.scanPages(ctx, "FindPagesCreatedBy", username, func(p *domain.Page) bool {
		return p.CreatedBy == username
	})
}

// FindPagesModifiedBy implements domain.PageRepository.
func (s *Store) FindPagesModifiedBy(ctx context.Context, username string) ([]domain.Page, error) {
	return s.scanPages(ctx, "FindPagesModifiedBy", username, func(p *domain.Page) bool {
		return p.ModifiedBy == username
	})
}

// FindPagesContainingTag implements domain.PageRepository.
func (s *Store) FindPagesContainingTag(ctx context.Context, tag string) ([]domain.Page, error) {
	return s.scanPages(ctx, "FindPagesContainingTag", tag, func(p *domain.Page) bool {
		return p.HasTag(tag)
	})
}

// AllTags implements domain.PageRepository.
func (s *Store) AllTags(ctx context.Context) ([]string, error) {
	pages, err := s.AllPages(ctx)
	if err != nil {
		return nil, err
	}
	return domain.CollectTags(pages), nil
}

// SaveOrUpdatePage replaces the page document, assigning an id when it has none.
func (s *Store) SaveOrUpdatePage(ctx context.Context, page *domain.Page) (*domain.Page, error) {
	if page == nil {
		return nil, domain.NewStorageError(domain.ErrDataIntegrity, "SaveOrUpdatePage", domain.CollectionPages, "", errNilEntity)
	}

	if page.ID == 0 {
		b, err := s.backend(ctx, "SaveOrUpdatePage", domain.CollectionPages)
		if err != nil {
			return nil, err
		}
		id, err := b.freePageID()
		if err != nil {
			return nil, s.fail(domain.ErrStorageUnavailable, "SaveOrUpdatePage", domain.CollectionPages, page.Title, err)
		}
		page.ID = id
	}

	page.Tags = domain.NormalizeTags(page.Tags)
	saved := *page
	err := s.update(ctx, "SaveOrUpdatePage", domain.CollectionPages, saved.ObjectID(), func(txn *badger.Txn) error {
		return putDocument(txn, pageKey(saved.ID), &saved)
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// DeletePage removes the page and every one of its versions.
func (s *Store) DeletePage(ctx context.Context, page *domain.Page) error {
	if page == nil {
		return nil
	}

	return s.update(ctx, "DeletePage", domain.CollectionPages, page.ObjectID(), func(txn *badger.Txn) error {
		ids, err := scanKeys(txn, pageVersionPrefix(page.ID))
		if err != nil {
			return err
		}
		for _, raw := range ids {
			id, err := uuid.ParseBytes(raw)
			if err != nil {
				return domain.NewStorageError(domain.ErrDataIntegrity, "DeletePage", domain.CollectionPageContents, string(raw), err)
			}
			var content domain.PageContent
			found, err := getDocument(txn, pageContentKey(id), &content)
			if err != nil {
				return err
			}
			if found {
				if err := deleteContent(txn, &content); err != nil {
					return err
				}
			}
		}
		return txn.Delete(pageKey(page.ID))
	})
}

// DeleteAllPages drops every page and content document.
func (s *Store) DeleteAllPages(ctx context.Context) error {
	b, err := s.backend(ctx, "DeleteAllPages", domain.CollectionPages)
	if err != nil {
		return err
	}

	prefixes := [][]byte{
		documentPrefix(domain.CollectionPageContents), indexPrefix(domain.CollectionPageContents),
		documentPrefix(domain.CollectionPages), indexPrefix(domain.CollectionPages),
	}
	if err := b.db.DropPrefix(prefixes...); err != nil {
		return s.fail(domain.ErrStorageUnavailable, "DeleteAllPages", domain.CollectionPages, "", err)
	}
	return nil
}

func deleteContent(txn *badger.Txn, content *domain.PageContent) error {
	if err := txn.Delete(pageVersionKey(content.PageID, content.VersionNumber)); err != nil {
		return err
	}
	return txn.Delete(pageContentKey(content.ID))
}

func (s *Store) scanContents(ctx context.Context, op, key string, keep func(*domain.PageContent) bool) ([]domain.PageContent, error) {
	var contents []domain.PageContent
	err := s.view(ctx, op, domain.CollectionPageContents, key, func(txn *badger.Txn) error {
		var err error
		contents, err = scanDocuments(txn, documentPrefix(domain.CollectionPageContents), keep)
		return err
	})
	if err != nil {
		return nil, err
	}
	if contents == nil {
		contents = []domain.PageContent{}
	}
	domain.SortPageContents(contents)
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
	var content *domain.PageContent
	err := s.view(ctx, "GetPageContentByID", domain.CollectionPageContents, id.String(), func(txn *badger.Txn) error {
		var doc domain.PageContent
		found, err := getDocument(txn, pageContentKey(id), &doc)
		if err != nil || !found {
			return err
		}
		content = &doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return content, nil
}

// GetPageContentByPageIDAndVersionNumber implements domain.PageRepository.
func (s *Store) GetPageContentByPageIDAndVersionNumber(ctx context.Context, pageID, version int) (*domain.PageContent, error) {
	key := strconv.Itoa(pageID) + "/" + strconv.Itoa(version)
	var content *domain.PageContent
	err := s.view(ctx, "GetPageContentByPageIDAndVersionNumber", domain.CollectionPageContents, key, func(txn *badger.Txn) error {
		item, err := txn.Get(pageVersionKey(pageID, version))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		id, err := uuid.ParseBytes(raw)
		if err != nil {
			return domain.NewStorageError(domain.ErrDataIntegrity, "GetPageContentByPageIDAndVersionNumber", domain.CollectionPageContents, key, err)
		}
		var doc domain.PageContent
		found, err := getDocument(txn, pageContentKey(id), &doc)
		if err != nil || !found {
			return err
		}
		content = &doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return content, nil
}

// FindPageContentsByPageID returns every version of the page, oldest first.
func (s *Store) FindPageContentsByPageID(ctx context.Context, pageID int) ([]domain.PageContent, error) {
	return s.scanContents(ctx, "FindPageContentsByPageID", strconv.Itoa(pageID), func(c *domain.PageContent) bool {
		return c.PageID == pageID
	})
}

// FindPageContentsEditedBy implements domain.PageRepository.
func (s *Store) FindPageContentsEditedBy(ctx context.Context, username string) ([]domain.PageContent, error) {
	return s.scanContents(ctx, "FindPageContentsEditedBy", username, func(c *domain.PageContent) bool {
		return c.EditedBy == username
	})
}

// AllPageContents implements domain.PageRepository.
func (s *Store) AllPageContents(ctx context.Context) ([]domain.PageContent, error) {
	return s.scanContents(ctx, "AllPageContents", "", func(*domain.PageContent) bool { return true })
}

// UpdatePageContent replaces a stored version, keeping the version index in step.
func (s *Store) UpdatePageContent(ctx context.Context, content *domain.PageContent) error {
	if content == nil {
		return domain.NewStorageError(domain.ErrDataIntegrity, "UpdatePageContent", domain.CollectionPageContents, "", errNilEntity)
	}

	updated := *content
	return s.update(ctx, "UpdatePageContent", domain.CollectionPageContents, updated.ID.String(), func(txn *badger.Txn) error {
		if err := requirePage(txn, updated.PageID); err != nil {
			return err
		}

		var previous domain.PageContent
		found, err := getDocument(txn, pageContentKey(updated.ID), &previous)
		if err != nil {
			return err
		}
		if found {
			if err := deleteContent(txn, &previous); err != nil {
				return err
			}
		}
		return insertContent(txn, &updated)
	})
}

// DeletePageContent removes one version. Absent versions are a no-op.
func (s *Store) DeletePageContent(ctx context.Context, content *domain.PageContent) error {
	if content == nil {
		return nil
	}

	return s.update(ctx, "DeletePageContent", domain.CollectionPageContents, content.ID.String(), func(txn *badger.Txn) error {
		var stored domain.PageContent
		found, err := getDocument(txn, pageContentKey(content.ID), &stored)
		if err != nil || !found {
			return err
		}
		return deleteContent(txn, &stored)
	})
}
