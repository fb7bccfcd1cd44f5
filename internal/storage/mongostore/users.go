package mongostore

import (
	"context"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"roadwiki/app/internal/domain"
)

func (s *Store) findUsers(ctx context.Context, op, key string, filter bson.D, opts ...*options.FindOptions) ([]domain.User, error) {
	coll, err := s.collection(ctx, op, domain.CollectionUsers)
	if err != nil {
		return nil, err
	}

	docs, err := findAll[userDocument](ctx, coll, filter, opts...)
	if err != nil {
		return nil, s.fail(op, domain.CollectionUsers, key, err)
	}

	users := make([]domain.User, 0, len(docs))
	for _, doc := range docs {
		user, err := doc.toDomain()
		if err != nil {
			return nil, s.fail(op, domain.CollectionUsers, doc.ID, &decodeError{err: err})
		}
		users = append(users, user)
	}
	return users, nil
}

// findUser fetches at most two matches so a broken unique key is reported.
func (s *Store) findUser(ctx context.Context, op, key string, filter bson.D) (*domain.User, error) {
	users, err := s.findUsers(ctx, op, key, filter, options.Find().SetLimit(2))
	if err != nil {
		return nil, err
	}
	return domain.Single(op, domain.CollectionUsers, key, users)
}

// GetUserByID implements domain.UserRepository.
func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID, activated *bool) (*domain.User, error) {
	return s.findUser(ctx, "GetUserByID", id.String(), userByIDFilter(id, activated))
}

// GetAdminByID implements domain.UserRepository.
func (s *Store) GetAdminByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.findUser(ctx, "GetAdminByID", id.String(), userWithRoleFilter(id, fieldIsAdmin))
}

// GetEditorByID implements domain.UserRepository.
func (s *Store) GetEditorByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.findUser(ctx, "GetEditorByID", id.String(), userWithRoleFilter(id, fieldIsEditor))
}

// GetUserByUsername implements domain.UserRepository.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.findUser(ctx, "GetUserByUsername", username, usernameFilter(username))
}

// GetUserByEmail implements domain.UserRepository.
func (s *Store) GetUserByEmail(ctx context.Context, email string, activated *bool) (*domain.User, error) {
	return s.findUser(ctx, "GetUserByEmail", email, emailFilter(email, activated))
}

// GetUserByUsernameOrEmail implements domain.UserRepository.
func (s *Store) GetUserByUsernameOrEmail(ctx context.Context, username, email string) (*domain.User, error) {
	return s.findUser(ctx, "GetUserByUsernameOrEmail", username+"|"+email, usernameOrEmailFilter(username, email))
}

// GetUserByActivationKey implements domain.UserRepository. Activated users
// never match.
func (s *Store) GetUserByActivationKey(ctx context.Context, key string) (*domain.User, error) {
	return s.findUser(ctx, "GetUserByActivationKey", key, activationKeyFilter(key))
}

// GetUserByPasswordResetKey implements domain.UserRepository.
func (s *Store) GetUserByPasswordResetKey(ctx context.Context, key string) (*domain.User, error) {
	return s.findUser(ctx, "GetUserByPasswordResetKey", key, passwordResetKeyFilter(key))
}

// FindAllEditors implements domain.UserRepository.
func (s *Store) FindAllEditors(ctx context.Context) ([]domain.User, error) {
	return s.findUsers(ctx, "FindAllEditors", "", flagFilter(fieldIsEditor))
}

// FindAllAdmins implements domain.UserRepository.
func (s *Store) FindAllAdmins(ctx context.Context) ([]domain.User, error) {
	return s.findUsers(ctx, "FindAllAdmins", "", flagFilter(fieldIsAdmin))
}

// SaveOrUpdateUser replaces the document with the same id, inserting it when
// absent, in a single server call.
func (s *Store) SaveOrUpdateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	if user == nil {
		return nil, domain.NewStorageError(domain.ErrDataIntegrity, "SaveOrUpdateUser", domain.CollectionUsers, "", errNilEntity)
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	coll, err := s.collection(ctx, "SaveOrUpdateUser", domain.CollectionUsers)
	if err != nil {
		return nil, err
	}

	doc := newUserDocument(user)
	opts := options.FindOneAndReplace().SetUpsert(true).SetReturnDocument(options.After)

	var stored userDocument
	if err := coll.FindOneAndReplace(ctx, idFilter(doc.ID), doc, opts).Decode(&stored); err != nil {
		return nil, s.fail("SaveOrUpdateUser", domain.CollectionUsers, doc.ID, err)
	}

	saved, err := stored.toDomain()
	if err != nil {
		return nil, s.fail("SaveOrUpdateUser", domain.CollectionUsers, doc.ID, &decodeError{err: err})
	}
	return &saved, nil
}

// DeleteUser removes the document. Deleting an absent user is a no-op.
func (s *Store) DeleteUser(ctx context.Context, user *domain.User) error {
	if user == nil {
		return nil
	}

	coll, err := s.collection(ctx, "DeleteUser", domain.CollectionUsers)
	if err != nil {
		return err
	}
	if _, err := coll.DeleteOne(ctx, idFilter(user.ObjectID())); err != nil {
		return s.fail("DeleteUser", domain.CollectionUsers, user.ObjectID(), err)
	}
	return nil
}

// DeleteAllUsers removes every user document.
func (s *Store) DeleteAllUsers(ctx context.Context) error {
	coll, err := s.collection(ctx, "DeleteAllUsers", domain.CollectionUsers)
	if err != nil {
		return err
	}
	if _, err := coll.DeleteMany(ctx, bson.D{}); err != nil {
		return s.fail("DeleteAllUsers", domain.CollectionUsers, "", err)
	}
	return nil
}
