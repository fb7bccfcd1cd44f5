package users

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadwiki/app/internal/domain"
	applog "roadwiki/app/internal/log"
	"roadwiki/app/internal/security/password"
	"roadwiki/app/internal/storage"
	"roadwiki/app/internal/storage/badgerstore"
)

var fastHashing = password.Params{Memory: 1024, Time: 1, Parallelism: 1, KeyLen: 16, SaltLen: 8}

func newTestService(t *testing.T) (Service, domain.Store) {
	t.Helper()

	store, err := badgerstore.New(storage.StaticSettings{Connection: "badger://memory", Database: badgerstore.Name}, applog.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	svc, err := NewService(Options{
		Repository: store,
		Policy:     password.Policy{MinLength: 6},
		Hashing:    fastHashing,
		Logger:     applog.Discard(),
	})
	require.NoError(t, err)
	return svc, store
}

func register(t *testing.T, svc Service, username, email string) *domain.User {
	t.Helper()

	user, err := svc.Register(context.Background(), RegisterInput{
		Username: username,
		Email:    email,
		Password: "secret-pass",
	})
	require.NoError(t, err)
	return user
}

func TestNewServiceRequiresRepository(t *testing.T) {
	t.Parallel()

	_, err := NewService(Options{})
	assert.Error(t, err)
}

func TestRegisterCreatesUnactivatedUser(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t)
	user := register(t, svc, " alice ", "Alice@Example.com")

	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.False(t, user.IsActivated)
	assert.NotEmpty(t, user.ActivationKey)
	assert.NotEmpty(t, user.Salt)
	assert.True(t, password.Verify("secret-pass", user.PasswordHash))

	stored, err := store.GetUserByActivationKey(context.Background(), user.ActivationKey)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, user.ID, stored.ID)
}

func TestRegisterRejectsTakenUsernameOrEmail(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	register(t, svc, "alice", "a@x.com")
	register(t, svc, "bob", "b@x.com")

	ctx := context.Background()
	for _, input := range []RegisterInput{
		{Username: "alice", Email: "new@x.com", Password: "secret-pass"},
		{Username: "carol", Email: "a@x.com", Password: "secret-pass"},
		{Username: "alice", Email: "b@x.com", Password: "secret-pass"},
	} {
		_, err := svc.Register(ctx, input)
		assert.True(t, eris.Is(err, ErrUserExists), "input %+v: got %v", input, err)
	}
}

func TestRegisterValidatesInput(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, input := range []RegisterInput{
		{Username: "", Email: "a@x.com", Password: "secret-pass"},
		{Username: "alice", Email: "not-an-email", Password: "secret-pass"},
		{Username: "alice", Email: "a@x.com", Password: "short"},
	} {
		_, err := svc.Register(ctx, input)
		assert.True(t, eris.Is(err, ErrInvalidInput), "input %+v: got %v", input, err)
	}
}

func TestActivateConsumesKey(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()
	user := register(t, svc, "alice", "a@x.com")

	activated, err := svc.Activate(ctx, user.ActivationKey)
	require.NoError(t, err)
	assert.True(t, activated.IsActivated)
	assert.Empty(t, activated.ActivationKey)

	_, err = svc.Activate(ctx, user.ActivationKey)
	assert.True(t, eris.Is(err, ErrInvalidKey))

	_, err = svc.Activate(ctx, "  ")
	assert.True(t, eris.Is(err, ErrInvalidKey))
}

func TestAuthenticateRequiresActivation(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()
	user := register(t, svc, "alice", "a@x.com")

	_, err := svc.Authenticate(ctx, "a@x.com", "secret-pass")
	assert.True(t, eris.Is(err, ErrInvalidCredentials))

	_, err = svc.Activate(ctx, user.ActivationKey)
	require.NoError(t, err)

	signedIn, err := svc.Authenticate(ctx, " A@X.com ", "secret-pass")
	require.NoError(t, err)
	assert.Equal(t, user.ID, signedIn.ID)

	_, err = svc.Authenticate(ctx, "a@x.com", "wrong-pass")
	assert.True(t, eris.Is(err, ErrInvalidCredentials))
}

func TestPasswordResetFlow(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "a@x.com", Password: "secret-pass", Activated: true})
	require.NoError(t, err)

	_, err = svc.RequestPasswordReset(ctx, "nobody@x.com")
	assert.True(t, eris.Is(err, ErrUserNotFound))

	key, err := svc.RequestPasswordReset(ctx, "a@x.com")
	require.NoError(t, err)
	require.NotEmpty(t, key)

	_, err = svc.ResetPassword(ctx, key, "tiny")
	assert.True(t, eris.Is(err, ErrInvalidInput))

	updated, err := svc.ResetPassword(ctx, key, "brand-new-pass")
	require.NoError(t, err)
	assert.Empty(t, updated.PasswordResetKey)

	_, err = svc.Authenticate(ctx, "a@x.com", "brand-new-pass")
	require.NoError(t, err)

	_, err = svc.ResetPassword(ctx, key, "another-pass")
	assert.True(t, eris.Is(err, ErrInvalidKey))
}

func TestSetRolesAndListings(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()
	alice := register(t, svc, "alice", "a@x.com")
	bob := register(t, svc, "bob", "b@x.com")

	_, err := svc.SetRoles(ctx, alice.ID, true, true)
	require.NoError(t, err)
	_, err = svc.SetRoles(ctx, bob.ID, false, true)
	require.NoError(t, err)

	admins, err := svc.Admins(ctx)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, alice.ID, admins[0].ID)

	editors, err := svc.Editors(ctx)
	require.NoError(t, err)
	assert.Len(t, editors, 2)

	_, err = svc.SetRoles(ctx, uuid.New(), true, true)
	assert.True(t, eris.Is(err, ErrUserNotFound))
}

func TestDeleteRemovesUser(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()
	alice := register(t, svc, "alice", "a@x.com")

	require.NoError(t, svc.Delete(ctx, alice.ID))

	_, err := svc.Get(ctx, alice.ID)
	assert.True(t, eris.Is(err, ErrUserNotFound))

	err = svc.Delete(ctx, alice.ID)
	assert.True(t, eris.Is(err, ErrUserNotFound))
}
