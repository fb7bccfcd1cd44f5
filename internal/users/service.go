// Package users implements account workflows on top of the user repository:
// registration, activation, password resets, sign-in and role management.
package users

import (
	"context"
	"net/mail"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"roadwiki/app/internal/domain"
	"roadwiki/app/internal/security/password"
)

var (
	// ErrUserExists is returned when the username or email is already taken.
	ErrUserExists = eris.New("a user with that username or email already exists")
	// ErrUserNotFound is returned when no matching user exists.
	ErrUserNotFound = eris.New("user not found")
	// ErrInvalidKey is returned for unknown activation or password reset keys.
	ErrInvalidKey = eris.New("key is invalid or has already been used")
	// ErrInvalidCredentials is returned when sign-in fails for any reason.
	ErrInvalidCredentials = eris.New("invalid email or password")
	// ErrInvalidInput wraps validation failures.
	ErrInvalidInput = eris.New("invalid user input")
)

// Service defines the account operations exposed to the transport layer.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*domain.User, error)
	Activate(ctx context.Context, key string) (*domain.User, error)
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, key, newPassword string) (*domain.User, error)
	Authenticate(ctx context.Context, email, plain string) (*domain.User, error)
	SetRoles(ctx context.Context, id uuid.UUID, isAdmin, isEditor bool) (*domain.User, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Admins(ctx context.Context) ([]domain.User, error)
	Editors(ctx context.Context) ([]domain.User, error)
}

// RegisterInput carries the fields supplied at sign-up.
type RegisterInput struct {
	Username  string
	Email     string
	Firstname string
	Lastname  string
	Password  string
	IsAdmin   bool
	IsEditor  bool
	// Activated skips the activation-key step, e.g. for the installer's admin account.
	Activated bool
}

// Options configures the service.
type Options struct {
	Repository domain.UserRepository
	Policy     password.Policy
	Hashing    password.Params
	Logger     *logrus.Logger
	SentryHub  *sentry.Hub
}

type service struct {
	repo      domain.UserRepository
	policy    password.Policy
	hashing   password.Params
	logger    *logrus.Logger
	sentryHub *sentry.Hub
	newKey    func() string
}

var _ Service = (*service)(nil)

// NewService wires the user service with its dependencies.
func NewService(opts Options) (Service, error) {
	if opts.Repository == nil {
		return nil, eris.New("user repository is required")
	}

	hashing := opts.Hashing
	if hashing == (password.Params{}) {
		hashing = password.Default
	}

	return &service{
		repo:      opts.Repository,
		policy:    opts.Policy,
		hashing:   hashing,
		logger:    opts.Logger,
		sentryHub: opts.SentryHub,
		newKey:    uuid.NewString,
	}, nil
}

func (s *service) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.ToLower(strings.TrimSpace(input.Email))

	if username == "" {
		return nil, eris.Wrap(ErrInvalidInput, "username is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, eris.Wrapf(ErrInvalidInput, "email %q is not valid", email)
	}
	if err := s.policy.Validate(input.Password); err != nil {
		return nil, eris.Wrap(ErrInvalidInput, err.Error())
	}

	existing, err := s.repo.GetUserByUsernameOrEmail(ctx, username, email)
	switch {
	case domain.IsDataIntegrity(err):
		// Username and email belong to two different accounts.
		return nil, ErrUserExists
	case err != nil:
		s.recordError(logrus.Fields{"username": username}, err, "checking for existing user")
		return nil, eris.Wrap(err, "checking for existing user")
	case existing != nil:
		return nil, ErrUserExists
	}

	hashed, err := password.Hash(s.hashing, input.Password)
	if err != nil {
		return nil, eris.Wrap(err, "hashing password")
	}

	user := &domain.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		Firstname:    strings.TrimSpace(input.Firstname),
		Lastname:     strings.TrimSpace(input.Lastname),
		PasswordHash: hashed.PHC,
		Salt:         hashed.Salt,
		IsAdmin:      input.IsAdmin,
		IsEditor:     input.IsEditor,
		IsActivated:  input.Activated,
	}
	if !input.Activated {
		user.ActivationKey = s.newKey()
	}

	saved, err := s.save(ctx, user, "registering user")
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"user_id": saved.ID, "username": saved.Username}).Info("user registered")
	}
	return saved, nil
}

func (s *service) Activate(ctx context.Context, key string) (*domain.User, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrInvalidKey
	}

	user, err := s.repo.GetUserByActivationKey(ctx, key)
	if err != nil {
		s.recordError(nil, err, "looking up activation key")
		return nil, eris.Wrap(err, "looking up activation key")
	}
	if user == nil {
		return nil, ErrInvalidKey
	}

	user.IsActivated = true
	user.ActivationKey = ""
	return s.save(ctx, user, "activating user")
}

func (s *service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.repo.GetUserByEmail(ctx, email, domain.Bool(true))
	if err != nil {
		s.recordError(nil, err, "looking up user for password reset")
		return "", eris.Wrap(err, "looking up user for password reset")
	}
	if user == nil {
		return "", ErrUserNotFound
	}

	user.PasswordResetKey = s.newKey()
	if _, err := s.save(ctx, user, "storing password reset key"); err != nil {
		return "", err
	}
	return user.PasswordResetKey, nil
}

func (s *service) ResetPassword(ctx context.Context, key, newPassword string) (*domain.User, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrInvalidKey
	}
	if err := s.policy.Validate(newPassword); err != nil {
		return nil, eris.Wrap(ErrInvalidInput, err.Error())
	}

	user, err := s.repo.GetUserByPasswordResetKey(ctx, key)
	if err != nil {
		s.recordError(nil, err, "looking up password reset key")
		return nil, eris.Wrap(err, "looking up password reset key")
	}
	if user == nil {
		return nil, ErrInvalidKey
	}

	hashed, err := password.Hash(s.hashing, newPassword)
	if err != nil {
		return nil, eris.Wrap(err, "hashing password")
	}

	user.PasswordHash = hashed.PHC
	user.Salt = hashed.Salt
	user.PasswordResetKey = ""
	return s.save(ctx, user, "resetting password")
}

func (s *service) Authenticate(ctx context.Context, email, plain string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || plain == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.repo.GetUserByEmail(ctx, email, domain.Bool(true))
	if err != nil {
		s.recordError(nil, err, "looking up user for sign-in")
		return nil, eris.Wrap(err, "looking up user for sign-in")
	}
	if user == nil || !password.Verify(plain, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *service) SetRoles(ctx context.Context, id uuid.UUID, isAdmin, isEditor bool) (*domain.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	user.IsAdmin = isAdmin
	user.IsEditor = isEditor
	return s.save(ctx, user, "updating roles")
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.repo.GetUserByID(ctx, id, nil)
	if err != nil {
		s.recordError(logrus.Fields{"user_id": id}, err, "retrieving user")
		return nil, eris.Wrapf(err, "retrieving user %s", id)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteUser(ctx, user); err != nil {
		s.recordError(logrus.Fields{"user_id": id}, err, "deleting user")
		return eris.Wrapf(err, "deleting user %s", id)
	}
	return nil
}

func (s *service) Admins(ctx context.Context) ([]domain.User, error) {
	admins, err := s.repo.FindAllAdmins(ctx)
	if err != nil {
		s.recordError(nil, err, "listing admins")
		return nil, eris.Wrap(err, "listing admins")
	}
	return admins, nil
}

func (s *service) Editors(ctx context.Context) ([]domain.User, error) {
	editors, err := s.repo.FindAllEditors(ctx)
	if err != nil {
		s.recordError(nil, err, "listing editors")
		return nil, eris.Wrap(err, "listing editors")
	}
	return editors, nil
}

func (s *service) save(ctx context.Context, user *domain.User, action string) (*domain.User, error) {
	saved, err := s.repo.SaveOrUpdateUser(ctx, user)
	if domain.IsDuplicateKey(err) {
		return nil, ErrUserExists
	}
	if err != nil {
		s.recordError(logrus.Fields{"user_id": user.ID}, err, action)
		return nil, eris.Wrap(err, action)
	}
	return saved, nil
}

func (s *service) recordError(fields logrus.Fields, err error, message string) {
	if err == nil {
		return
	}

	if s.logger != nil {
		entry := s.logger.WithField("error", err.Error())
		if len(fields) > 0 {
			entry = entry.WithFields(fields)
		}
		entry.Error(message)
	}

	if s.sentryHub != nil {
		s.sentryHub.CaptureException(err)
	}
}
