package mongostore

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"roadwiki/app/internal/domain"
)

var errPageMissing = eris.New("page does not exist")

// nextPageID increments the page counter document.
func (s *Store) nextPageID(ctx context.Context, op string) (int, error) {
	counters, err := s.collection(ctx, op, countersCollection)
	if err != nil {
		return 0, err
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var counter counterDocument
	if err := counters.FindOneAndUpdate(ctx, idFilter(domain.CollectionPages), incrementSequence(), opts).Decode(&counter); err != nil {
		return 0, s.fail(op, countersCollection, domain.CollectionPages, err)
	}
	return counter.Seq, nil
}

// reservePageID keeps the page counter at or above an id chosen by the caller,
// so later AddNewPage calls never collide with it.
func (s *Store) reservePageID(ctx context.Context, op string, id int) error {
	counters, err := s.collection(ctx, op, countersCollection)
	if err != nil {
		return err
	}

	opts := options.Update().SetUpsert(true)
	if _, err := counters.UpdateOne(ctx, idFilter(domain.CollectionPages), raiseSequence(id), opts); err != nil {
		return s.fail(op, countersCollection, domain.CollectionPages, err)
	}
	return nil
}

// AddNewPage stores the page under a fresh id and its first version.
func (s *Store) AddNewPage(ctx context.Context, page *domain.Page, text, editedBy string, editedOn time.Time) (*domain.PageContent, error) {
	if page == nil {
		return nil, domain.NewStorageError(domain.ErrDataIntegrity, "AddNewPage", domain.CollectionPages, "", errNilEntity)
	}

	id, err := s.nextPageID(ctx, "AddNewPage")
	if err != nil {
		return nil, err
	}

	pages, err := s.collection(ctx, "AddNewPage", domain.CollectionPages)
	if err != nil {
		return nil, err
	}

	doc := newPageDocument(page)
	doc.ID = id
	if _, err := pages.InsertOne(ctx, doc); err != nil {
		return nil, s.fail("AddNewPage", domain.CollectionPages, strconv.Itoa(id), err)
	}
	page.ID = id
	page.Tags = doc.Tags

	content := domain.PageContent{
		ID:            uuid.New(),
		PageID:        id,
		Text:          text,
		EditedBy:      editedBy,
		EditedOn:      editedOn,
		VersionNumber: 1,
	}
	if err := s.insertContent(ctx, "AddNewPage", &content); err != nil {
		return nil, err
	}
	return &content, nil
}

// AddNewPageContentVersion stores a new version for an existing page.
func (s *Store) AddNewPageContentVersion(ctx context.Context, page *domain.Page, text, editedBy string, editedOn time.Time, version int) (*domain.PageContent, error) {
	if page == nil {
		return nil, domain.NewStorageError(domain.ErrDataIntegrity, "AddNewPageContentVersion", domain.CollectionPageContents, "", errNilEntity)
	}
	if err := s.requirePage(ctx, "AddNewPageContentVersion", page.ID); err != nil {
		return nil, err
	}

	content := domain.PageContent{
		ID:            uuid.New(),
		PageID:        page.ID,
		Text:          text,
		EditedBy:      editedBy,
		EditedOn:      editedOn,
		VersionNumber: version,
	}
	if err := s.insertContent(ctx, "AddNewPageContentVersion", &content); err != nil {
		return nil, err
	}
	return &content, nil
}

func (s *Store) requirePage(ctx context.Context, op string, id int) error {
	pages, err := s.collection(ctx, op, domain.CollectionPages)
	if err != nil {
		return err
	}

	count, err := pages.CountDocuments(ctx, idFilter(id), options.Count().SetLimit(1))
	if err != nil {
		return s.fail(op, domain.CollectionPages, strconv.Itoa(id), err)
	}
	if count == 0 {
		return s.fail(op, domain.CollectionPageContents, strconv.Itoa(id), errPageMissing)
	}
	return nil
}

func (s *Store) insertContent(ctx context.Context, op string, content *domain.PageContent) error {
	contents, err := s.collection(ctx, op, domain.CollectionPageContents)
	if err != nil {
		return err
	}
	if _, err := contents.InsertOne(ctx, newPageContentDocument(content)); err != nil {
		return s.fail(op, domain.CollectionPageContents, content.ID.String(), err)
	}
	return nil
}

func (s *Store) findPages(ctx context.Context, op, key string, filter bson.D) ([]domain.Page, error) {
	coll, err := s.collection(ctx, op, domain.CollectionPages)
	if err != nil {
		return nil, err
	}

	docs, err := findAll[pageDocument](ctx, coll, filter, options.Find().SetSort(bson.D{{Key: fieldID, Value: 1}}))
	if err != nil {
		return nil, s.fail(op, domain.CollectionPages, key, err)
	}

	pages := make([]domain.Page, 0, len(docs))
	for _, doc := range docs {
		pages = append(pages, doc.toDomain())
	}
	return pages, nil
}

// AllPages implements domain.PageRepository.
func (s *Store) AllPages(ctx context.Context) ([]domain.Page, error) {
	return s.findPages(ctx, "AllPages", "", bson.D{})
}

// GetPageByID implements domain.PageRepository.
func (s *Store) GetPageByID(ctx context.Context, id int) (*domain.Page, error) {
	key := strconv.Itoa(id)
	pages, err := s.findPages(ctx, "GetPageByID", key, idFilter(id))
	if err != nil {
		return nil, err
	}
	return domain.Single("GetPageByID", domain.CollectionPages, key, pages)
}

// GetPageByTitle matches the title ignoring case.
func (s *Store) GetPageByTitle(ctx context.Context, title string) (*domain.Page, error) {
	pages, err := s.findPages(ctx, "GetPageByTitle", title, titleFilter(title))
	if err != nil {
		return nil, err
	}
	return domain.Single("GetPageByTitle", domain.CollectionPages, title, pages)
}

// FindPagesCreatedBy implements domain.PageRepository.
func (s *Store) FindPagesCreatedBy(ctx context.Context, username string) ([]domain.Page, error) {
	return s.findPages(ctx, "FindPagesCreatedBy", username, fieldEquals(fieldCreatedBy, username))
}

// FindPagesModifiedBy implements domain.PageRepository.
func (s *Store) FindPagesModifiedBy(ctx context.Context, username string) ([]domain.Page, error) {
	return s.findPages(ctx, "FindPagesModifiedBy", username, fieldEquals(fieldModifiedBy, username))
}

// FindPagesContainingTag implements domain.PageRepository.
func (s *Store) FindPagesContainingTag(ctx context.Context, tag string) ([]domain.Page, error) {
	return s.findPages(ctx, "FindPagesContainingTag", tag, tagFilter(tag))
}

// AllTags returns the distinct tags across pages, sorted.
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
		id, err := s.nextPageID(ctx, "SaveOrUpdatePage")
		if err != nil {
			return nil, err
		}
		page.ID = id
	} else if err := s.reservePageID(ctx, "SaveOrUpdatePage", page.ID); err != nil {
		return nil, err
	}

	coll, err := s.collection(ctx, "SaveOrUpdatePage", domain.CollectionPages)
	if err != nil {
		return nil, err
	}

	doc := newPageDocument(page)
	opts := options.FindOneAndReplace().SetUpsert(true).SetReturnDocument(options.After)
	var stored pageDocument
	if err := coll.FindOneAndReplace(ctx, idFilter(doc.ID), doc, opts).Decode(&stored); err != nil {
		return nil, s.fail("SaveOrUpdatePage", domain.CollectionPages, page.ObjectID(), err)
	}

	saved := stored.toDomain()
	page.Tags = saved.Tags
	return &saved, nil
}

// DeletePage removes the page and its versions, versions first.
func (s *Store) DeletePage(ctx context.Context, page *domain.Page) error {
	if page == nil {
		return nil
	}

	contents, err := s.collection(ctx, "DeletePage", domain.CollectionPageContents)
	if err != nil {
		return err
	}
	if _, err := contents.DeleteMany(ctx, fieldEquals(fieldPageID, page.ID)); err != nil {
		return s.fail("DeletePage", domain.CollectionPageContents, page.ObjectID(), err)
	}

	pages, err := s.collection(ctx, "DeletePage", domain.CollectionPages)
	if err != nil {
		return err
	}
	if _, err := pages.DeleteOne(ctx, idFilter(page.ID)); err != nil {
		return s.fail("DeletePage", domain.CollectionPages, page.ObjectID(), err)
	}
	return nil
}

// DeleteAllPages removes every page and content document.
func (s *Store) DeleteAllPages(ctx context.Context) error {
	for _, name := range []string{domain.CollectionPageContents, domain.CollectionPages} {
		coll, err := s.collection(ctx, "DeleteAllPages", name)
		if err != nil {
			return err
		}
		if _, err := coll.DeleteMany(ctx, bson.D{}); err != nil {
			return s.fail("DeleteAllPages", name, "", err)
		}
	}
	return nil
}

func (s *Store) findContents(ctx context.Context, op, key string, filter bson.D, opts ...*options.FindOptions) ([]domain.PageContent, error) {
	coll, err := s.collection(ctx, op, domain.CollectionPageContents)
	if err != nil {
		return nil, err
	}

	if len(opts) == 0 {
		opts = append(opts, options.Find().SetSort(bson.D{{Key: fieldPageID, Value: 1}, {Key: fieldVersionNumber, Value: 1}}))
	}
	docs, err := findAll[pageContentDocument](ctx, coll, filter, opts...)
	if err != nil {
		return nil, s.fail(op, domain.CollectionPageContents, key, err)
	}

	contents := make([]domain.PageContent, 0, len(docs))
	for _, doc := range docs {
		content, err := doc.toDomain()
		if err != nil {
			return nil, s.fail(op, domain.CollectionPageContents, doc.ID, &decodeError{err: err})
		}
		contents = append(contents, content)
	}
	return contents, nil
}

// GetLatestPageContent returns the highest version of the page.
func (s *Store) GetLatestPageContent(ctx context.Context, pageID int) (*domain.PageContent, error) {
	opts := options.Find().SetSort(bson.D{{Key: fieldVersionNumber, Value: -1}}).SetLimit(1)
	contents, err := s.findContents(ctx, "GetLatestPageContent", strconv.Itoa(pageID), fieldEquals(fieldPageID, pageID), opts)
	if err != nil || len(contents) == 0 {
		return nil, err
	}
	return &contents[0], nil
}

// GetPageContentByID implements domain.PageRepository.
func (s *Store) GetPageContentByID(ctx context.Context, id uuid.UUID) (*domain.PageContent, error) {
	key := id.String()
	contents, err := s.findContents(ctx, "GetPageContentByID", key, idFilter(key))
	if err != nil {
		return nil, err
	}
	return domain.Single("GetPageContentByID", domain.CollectionPageContents, key, contents)
}

// GetPageContentByPageIDAndVersionNumber implements domain.PageRepository.
func (s *Store) GetPageContentByPageIDAndVersionNumber(ctx context.Context, pageID, version int) (*domain.PageContent, error) {
	key := strconv.Itoa(pageID) + "/" + strconv.Itoa(version)
	contents, err := s.findContents(ctx, "GetPageContentByPageIDAndVersionNumber", key, contentVersionFilter(pageID, version))
	if err != nil {
		return nil, err
	}
	return domain.Single("GetPageContentByPageIDAndVersionNumber", domain.CollectionPageContents, key, contents)
}

// FindPageContentsByPageID returns every version of the page, oldest first.
func (s *Store) FindPageContentsByPageID(ctx context.Context, pageID int) ([]domain.PageContent, error) {
	return s.findContents(ctx, "FindPageContentsByPageID", strconv.Itoa(pageID), fieldEquals(fieldPageID, pageID))
}

// FindPageContentsEditedBy implements domain.PageRepository.
func (s *Store) FindPageContentsEditedBy(ctx context.Context, username string) ([]domain.PageContent, error) {
	return s.findContents(ctx, "FindPageContentsEditedBy", username, fieldEquals(fieldEditedBy, username))
}

// AllPageContents implements domain.PageRepository.
func (s *Store) AllPageContents(ctx context.Context) ([]domain.PageContent, error) {
	return s.findContents(ctx, "AllPageContents", "", bson.D{})
}

// UpdatePageContent replaces a stored version, inserting it when absent.
func (s *Store) UpdatePageContent(ctx context.Context, content *domain.PageContent) error {
	if content == nil {
		return domain.NewStorageError(domain.ErrDataIntegrity, "UpdatePageContent", domain.CollectionPageContents, "", errNilEntity)
	}
	if err := s.requirePage(ctx, "UpdatePageContent", content.PageID); err != nil {
		return err
	}

	coll, err := s.collection(ctx, "UpdatePageContent", domain.CollectionPageContents)
	if err != nil {
		return err
	}

	doc := newPageContentDocument(content)
	_, err = coll.ReplaceOne(ctx, idFilter(doc.ID), doc, options.Replace().SetUpsert(true))
	if err != nil {
		return s.fail("UpdatePageContent", domain.CollectionPageContents, doc.ID, err)
	}
	return nil
}

// DeletePageContent removes one version. Absent versions are a no-op.
func (s *Store) DeletePageContent(ctx context.Context, content *domain.PageContent) error {
	if content == nil {
		return nil
	}

	coll, err := s.collection(ctx, "DeletePageContent", domain.CollectionPageContents)
	if err != nil {
		return err
	}
	_, err = coll.DeleteOne(ctx, idFilter(content.ObjectID()))
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return s.fail("DeletePageContent", domain.CollectionPageContents, content.ObjectID(), err)
	}
	return nil
}
