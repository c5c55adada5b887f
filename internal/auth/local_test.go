package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/danchettos12/EntrevistIA/internal/kv"
	"github.com/danchettos12/EntrevistIA/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newLocalGateway(t *testing.T) (*LocalGateway, *kv.Store) {
	t.Helper()
	store, err := kv.New(testhelpers.SetupTestDB(t))
	require.NoError(t, err)
	return NewLocalGateway(store, NewTokenIssuer("secret", time.Hour), NewLocalNotifier(), zap.NewNop()), store
}

func storedUsers(t *testing.T, store *kv.Store) []localUser {
	t.Helper()
	var users []localUser
	require.NoError(t, kv.GetJSON(context.Background(), store, UsersKey, &users))
	return users
}

func TestLocalRegisterCreatesOneUserAndSignsIn(t *testing.T) {
	g, store := newLocalGateway(t)
	ctx := context.Background()

	res := g.Register(ctx, " Ana ", "Ana@Example.com", "hunter22")
	require.Equal(t, StatusSuccess, res.Status, res.Message)
	require.NotNil(t, res.Session)
	assert.Equal(t, "Ana", res.Session.User.Name)
	assert.Equal(t, "ana@example.com", res.Session.User.Email)
	assert.NotEmpty(t, res.Session.Token)

	users := storedUsers(t, store)
	require.Len(t, users, 1)
	assert.NotEqual(t, "hunter22", users[0].PasswordHash)
	assert.True(t, strings.HasPrefix(users[0].PasswordHash, "$2"), "expected a bcrypt hash")

	raw, err := store.Get(ctx, UsersKey)
	require.NoError(t, err)
	assert.NotContains(t, raw, "hunter22")

	current, err := g.Current(ctx, res.Session.Token)
	require.NoError(t, err)
	assert.Equal(t, res.Session.User, *current)
}

func TestLocalRegisterRejectsDuplicateEmail(t *testing.T) {
	g, store := newLocalGateway(t)
	ctx := context.Background()

	require.Equal(t, StatusSuccess, g.Register(ctx, "Ana", "ana@example.com", "hunter22").Status)
	res := g.Register(ctx, "Other", "ANA@example.com", "different")

	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, "email_taken", res.Code)
	assert.Nil(t, res.Session)
	assert.Len(t, storedUsers(t, store), 1)
}

func TestLocalRegisterRequiresAllFields(t *testing.T) {
	g, store := newLocalGateway(t)

	res := g.Register(context.Background(), "", "ana@example.com", "pw")
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, "missing_fields", res.Code)
	assert.Empty(t, storedUsers(t, store))
}

func TestLocalLogin(t *testing.T) {
	g, _ := newLocalGateway(t)
	ctx := context.Background()
	require.Equal(t, StatusSuccess, g.Register(ctx, "Ana", "ana@example.com", "hunter22").Status)

	session, err := g.Login(ctx, "ana@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "Ana", session.User.Name)

	_, err = g.Login(ctx, "ana@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = g.Login(ctx, "nobody@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLocalLogoutRevokesTokenAndForgetsCurrentUser(t *testing.T) {
	g, _ := newLocalGateway(t)
	ctx := context.Background()
	res := g.Register(ctx, "Ana", "ana@example.com", "hunter22")
	require.Equal(t, StatusSuccess, res.Status)

	resumed, err := g.Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.Session.User.ID, resumed.User.ID)

	var events []IdentityEvent
	cancel := g.OnIdentityChange(func(e IdentityEvent) { events = append(events, e) })
	defer cancel()

	require.NoError(t, g.Logout(ctx, res.Session.Token))

	_, err = g.Current(ctx, res.Session.Token)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = g.Current(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	require.Len(t, events, 1)
	assert.False(t, events[0].SignedIn())
	assert.Equal(t, res.Session.User.ID, events[0].UserID)
}

func TestLocalUpdatePreferredRole(t *testing.T) {
	g, _ := newLocalGateway(t)
	ctx := context.Background()
	res := g.Register(ctx, "Ana", "ana@example.com", "hunter22")
	require.Equal(t, StatusSuccess, res.Status)

	user, err := g.UpdatePreferredRole(ctx, res.Session.User.ID, "  Data Engineer ")
	require.NoError(t, err)
	assert.Equal(t, "Data Engineer", user.PreferredRole)

	current, err := g.Current(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "Data Engineer", current.PreferredRole)

	_, err = g.UpdatePreferredRole(ctx, "missing", "x")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestLocalConfirmNotSupported(t *testing.T) {
	g, _ := newLocalGateway(t)
	_, err := g.Confirm(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrNotSupported)
	assert.Equal(t, "local", g.Mode())
}
