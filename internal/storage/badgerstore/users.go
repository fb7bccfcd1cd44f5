package badgerstore

import (
	"bytes"
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"roadwiki/app/internal/domain"
)

func (s *Store) scanUsers(ctx context.Context, op, key string, keep func(*domain.User) bool) ([]domain.User, error) {
	var users []domain.User
	err := s.view(ctx, op, domain.CollectionUsers, key, func(txn *badger.Txn) error {
		var err error
		users, err = scanDocuments(txn, documentPrefix(domain.CollectionUsers), keep)
		return err
	})
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}

func (s *Store) findUser(ctx context.Context, op, key string, keep func(*domain.User) bool) (*domain.User, error) {
	users, err := s.scanUsers(ctx, op, key, keep)
	if err != nil {
		return nil, err
	}
	return domain.Single(op, domain.CollectionUsers, key, users)
}

// userByIndex follows a unique index entry to its document.
func (s *Store) userByIndex(ctx context.Context, op, key string, indexKey []byte, activated *bool) (*domain.User, error) {
	var user *domain.User
	err := s.view(ctx, op, domain.CollectionUsers, key, func(txn *badger.Txn) error {
		item, err := txn.Get(indexKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		owner, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		id, err := uuid.ParseBytes(owner)
		if err != nil {
			return domain.NewStorageError(domain.ErrDataIntegrity, op, domain.CollectionUsers, key, err)
		}

		var doc domain.User
		found, err := getDocument(txn, userKey(id), &doc)
		if err != nil {
			return err
		}
		if !found {
			return domain.NewStorageError(domain.ErrDataIntegrity, op, domain.CollectionUsers, key, errors.New("index points at a missing user"))
		}
		if doc.MatchesActivated(activated) {
			user = &doc
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByID implements domain.UserRepository.
func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID, activated *bool) (*domain.User, error) {
	return s.userByID(ctx, "GetUserByID", id, func(u *domain.User) bool {
		return u.MatchesActivated(activated)
	})
}

// GetAdminByID implements domain.UserRepository.
func (s *Store) GetAdminByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.userByID(ctx, "GetAdminByID", id, func(u *domain.User) bool { return u.IsAdmin })
}

// GetEditorByID implements domain.UserRepository.
func (s *Store) GetEditorByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.userByID(ctx, "GetEditorByID", id, func(u *domain.User) bool { return u.IsEditor })
}

func (s *Store) userByID(ctx context.Context, op string, id uuid.UUID, keep func(*domain.User) bool) (*domain.User, error) {
	var user *domain.User
	err := s.view(ctx, op, domain.CollectionUsers, id.String(), func(txn *badger.Txn) error {
		var doc domain.User
		found, err := getDocument(txn, userKey(id), &doc)
		if err != nil || !found {
			return err
		}
		if keep(&doc) {
			user = &doc
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByUsername implements domain.UserRepository.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.userByIndex(ctx, "GetUserByUsername", username, usernameKey(username), nil)
}

// GetUserByEmail implements domain.UserRepository.
func (s *Store) GetUserByEmail(ctx context.Context, email string, activated *bool) (*domain.User, error) {
	return s.userByIndex(ctx, "GetUserByEmail", email, emailKey(email), activated)
}

// GetUserByUsernameOrEmail implements domain.UserRepository.
func (s *Store) GetUserByUsernameOrEmail(ctx context.Context, username, email string) (*domain.User, error) {
	users, err := s.scanUsers(ctx, "GetUserByUsernameOrEmail", username+"|"+email, func(u *domain.User) bool {
		return u.Username == username || u.Email == email
	})
	if err != nil {
		return nil, err
	}
	return domain.Single("GetUserByUsernameOrEmail", domain.CollectionUsers, username+"|"+email, domain.DistinctUsers(users))
}

// GetUserByActivationKey implements domain.UserRepository. Activated users
// never match.
func (s *Store) GetUserByActivationKey(ctx context.Context, key string) (*domain.User, error) {
	return s.findUser(ctx, "GetUserByActivationKey", key, func(u *domain.User) bool {
		return u.ActivationKey == key && !u.IsActivated
	})
}

// GetUserByPasswordResetKey implements domain.UserRepository.
func (s *Store) GetUserByPasswordResetKey(ctx context.Context, key string) (*domain.User, error) {
	return s.findUser(ctx, "GetUserByPasswordResetKey", key, func(u *domain.User) bool {
		return u.PasswordResetKey == key
	})
}

// FindAllEditors implements domain.UserRepository.
func (s *Store) FindAllEditors(ctx context.Context) ([]domain.User, error) {
	return s.scanUsers(ctx, "FindAllEditors", "", func(u *domain.User) bool { return u.IsEditor })
}

// FindAllAdmins implements domain.UserRepository.
func (s *Store) FindAllAdmins(ctx context.Context) ([]domain.User, error) {
	return s.scanUsers(ctx, "FindAllAdmins", "", func(u *domain.User) bool { return u.IsAdmin })
}

// SaveOrUpdateUser replaces the user document and its index entries in one
// transaction. Index entries owned by another user abort the write.
func (s *Store) SaveOrUpdateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	if user == nil {
		return nil, domain.NewStorageError(domain.ErrDataIntegrity, "SaveOrUpdateUser", domain.CollectionUsers, "", errNilEntity)
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	saved := *user
	owner := []byte(saved.ID.String())

	err := s.update(ctx, "SaveOrUpdateUser", domain.CollectionUsers, saved.ID.String(), func(txn *badger.Txn) error {
		var previous domain.User
		existed, err := getDocument(txn, userKey(saved.ID), &previous)
		if err != nil {
			return err
		}

		for _, indexKey := range [][]byte{usernameKey(saved.Username), emailKey(saved.Email)} {
			if err := claimIndex(txn, indexKey, owner); err != nil {
				return err
			}
		}

		if existed {
			if previous.Username != saved.Username {
				if err := txn.Delete(usernameKey(previous.Username)); err != nil {
					return err
				}
			}
			if previous.Email != saved.Email {
				if err := txn.Delete(emailKey(previous.Email)); err != nil {
					return err
				}
			}
		}

		return putDocument(txn, userKey(saved.ID), &saved)
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// claimIndex points indexKey at owner unless another document holds it.
func claimIndex(txn *badger.Txn, indexKey, owner []byte) error {
	item, err := txn.Get(indexKey)
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return txn.Set(indexKey, owner)
	case err != nil:
		return err
	}

	current, err := item.ValueCopy(nil)
	if err != nil {
		return err
	}
	if !bytes.Equal(current, owner) {
		return errIndexOwned
	}
	return nil
}

// DeleteUser removes the user and its index entries. Absent users are a no-op.
func (s *Store) DeleteUser(ctx context.Context, user *domain.User) error {
	if user == nil {
		return nil
	}

	return s.update(ctx, "DeleteUser", domain.CollectionUsers, user.ID.String(), func(txn *badger.Txn) error {
		var stored domain.User
		found, err := getDocument(txn, userKey(user.ID), &stored)
		if err != nil || !found {
			return err
		}
		for _, key := range [][]byte{usernameKey(stored.Username), emailKey(stored.Email), userKey(user.ID)} {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteAllUsers drops every user document and index entry.
func (s *Store) DeleteAllUsers(ctx context.Context) error {
	b, err := s.backend(ctx, "DeleteAllUsers", domain.CollectionUsers)
	if err != nil {
		return err
	}
	if err := b.db.DropPrefix(documentPrefix(domain.CollectionUsers), indexPrefix(domain.CollectionUsers)); err != nil {
		return s.fail(domain.ErrStorageUnavailable, "DeleteAllUsers", domain.CollectionUsers, "", err)
	}
	return nil
}
