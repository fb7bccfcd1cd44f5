package gormstore

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"roadwiki/app/internal/domain"
)

func (s *Store) findUsers(ctx context.Context, op, key string, scope func(*gorm.DB) *gorm.DB) ([]domain.User, error) {
	db, err := s.db(ctx, op, domain.CollectionUsers)
	if err != nil {
		return nil, err
	}

	var records []userRecord
	if err := scope(db.Model(&userRecord{})).Find(&records).Error; err != nil {
		return nil, s.fail(domain.ErrStorageUnavailable, op, domain.CollectionUsers, key, err)
	}

	users := make([]domain.User, 0, len(records))
	for _, record := range records {
		user, err := record.toDomain()
		if err != nil {
			return nil, s.fail(domain.ErrDataIntegrity, op, domain.CollectionUsers, record.ID, err)
		}
		users = append(users, user)
	}
	return users, nil
}

func (s *Store) findUser(ctx context.Context, op, key string, scope func(*gorm.DB) *gorm.DB) (*domain.User, error) {
	users, err := s.findUsers(ctx, op, key, scope)
	if err != nil {
		return nil, err
	}
	return domain.Single(op, domain.CollectionUsers, key, users)
}

func withActivated(db *gorm.DB, activated *bool) *gorm.DB {
	if activated == nil {
		return db
	}
	return db.Where("is_activated = ?", *activated)
}

// GetUserByID implements domain.UserRepository.
func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID, activated *bool) (*domain.User, error) {
	return s.findUser(ctx, "GetUserByID", id.String(), func(db *gorm.DB) *gorm.DB {
		return withActivated(db.Where("id = ?", id.String()), activated)
	})
}

// GetAdminByID implements domain.UserRepository.
func (s *Store) GetAdminByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.findUser(ctx, "GetAdminByID", id.String(), func(db *gorm.DB) *gorm.DB {
		return db.Where("id = ? AND is_admin = ?", id.String(), true)
	})
}

// GetEditorByID implements domain.UserRepository.
func (s *Store) GetEditorByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.findUser(ctx, "GetEditorByID", id.String(), func(db *gorm.DB) *gorm.DB {
		return db.Where("id = ? AND is_editor = ?", id.String(), true)
	})
}

// GetUserByUsername implements domain.UserRepository.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.findUser(ctx, "GetUserByUsername", username, func(db *gorm.DB) *gorm.DB {
		return db.Where("username = ?", username)
	})
}

// GetUserByEmail implements domain.UserRepository.
func (s *Store) GetUserByEmail(ctx context.Context, email string, activated *bool) (*domain.User, error) {
	return s.findUser(ctx, "GetUserByEmail", email, func(db *gorm.DB) *gorm.DB {
		return withActivated(db.Where("email = ?", email), activated)
	})
}

// GetUserByUsernameOrEmail implements domain.UserRepository.
func (s *Store) GetUserByUsernameOrEmail(ctx context.Context, username, email string) (*domain.User, error) {
	return s.findUser(ctx, "GetUserByUsernameOrEmail", username+"|"+email, func(db *gorm.DB) *gorm.DB {
		return db.Where("username = ? OR email = ?", username, email)
	})
}

// GetUserByActivationKey implements domain.UserRepository. Activated users
// never match, so a consumed key cannot be replayed.
func (s *Store) GetUserByActivationKey(ctx context.Context, key string) (*domain.User, error) {
	return s.findUser(ctx, "GetUserByActivationKey", key, func(db *gorm.DB) *gorm.DB {
		return db.Where("activation_key = ? AND is_activated = ?", key, false)
	})
}

// GetUserByPasswordResetKey implements domain.UserRepository.
func (s *Store) GetUserByPasswordResetKey(ctx context.Context, key string) (*domain.User, error) {
	return s.findUser(ctx, "GetUserByPasswordResetKey", key, func(db *gorm.DB) *gorm.DB {
		return db.Where("password_reset_key = ?", key)
	})
}

// FindAllEditors implements domain.UserRepository.
func (s *Store) FindAllEditors(ctx context.Context) ([]domain.User, error) {
	return s.findUsers(ctx, "FindAllEditors", "", func(db *gorm.DB) *gorm.DB {
		return db.Where("is_editor = ?", true)
	})
}

// FindAllAdmins implements domain.UserRepository.
func (s *Store) FindAllAdmins(ctx context.Context) ([]domain.User, error) {
	return s.findUsers(ctx, "FindAllAdmins", "", func(db *gorm.DB) *gorm.DB {
		return db.Where("is_admin = ?", true)
	})
}

// SaveOrUpdateUser inserts or replaces the user row in a single statement.
func (s *Store) SaveOrUpdateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	if user == nil {
		return nil, domain.NewStorageError(domain.ErrDataIntegrity, "SaveOrUpdateUser", domain.CollectionUsers, "", errNilEntity)
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	db, err := s.db(ctx, "SaveOrUpdateUser", domain.CollectionUsers)
	if err != nil {
		return nil, err
	}

	record := toUserRecord(user)
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&record).Error
	if err != nil {
		return nil, s.fail(domain.ErrStorageUnavailable, "SaveOrUpdateUser", domain.CollectionUsers, user.ID.String(), err)
	}

	saved := *user
	return &saved, nil
}

// DeleteUser removes the user row. Deleting an absent user is a no-op.
func (s *Store) DeleteUser(ctx context.Context, user *domain.User) error {
	if user == nil {
		return nil
	}

	db, err := s.db(ctx, "DeleteUser", domain.CollectionUsers)
	if err != nil {
		return err
	}

	if err := db.Where("id = ?", user.ID.String()).Delete(&userRecord{}).Error; err != nil {
		return s.fail(domain.ErrStorageUnavailable, "DeleteUser", domain.CollectionUsers, user.ID.String(), err)
	}
	return nil
}

// DeleteAllUsers removes every user row.
func (s *Store) DeleteAllUsers(ctx context.Context) error {
	db, err := s.db(ctx, "DeleteAllUsers", domain.CollectionUsers)
	if err != nil {
		return err
	}

	if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&userRecord{}).Error; err != nil {
		return s.fail(domain.ErrStorageUnavailable, "DeleteAllUsers", domain.CollectionUsers, "", err)
	}
	return nil
}
