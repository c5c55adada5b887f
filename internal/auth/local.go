package auth

import (
	"context"
	"strings"
	"sync"

	"github.com/danchettos12/EntrevistIA/internal/config"
	"github.com/danchettos12/EntrevistIA/internal/kv"
	"github.com/danchettos12/EntrevistIA/internal/models"
	"github.com/rs/xid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// local storage keys
const (
	UsersKey       = "entrevistia_users"
	CurrentUserKey = "entrevistia_current_user"
)

type localUser struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	PasswordHash  string `json:"password_hash"`
	PreferredRole string `json:"preferred_role,omitempty"`
}

func (u localUser) user() models.User {
	return models.User{
		ID:            u.ID,
		Name:          DisplayName(u.Name, u.Email),
		Email:         u.Email,
		PreferredRole: u.PreferredRole,
	}
}

// LocalGateway is the offline fallback: users live in the local key-value store with bcrypt hashes.
// The last signed-in user is remembered so a fresh client can resume without a token.
type LocalGateway struct {
	kv       *kv.Store
	tokens   *TokenIssuer
	notifier Notifier
	logger   *zap.Logger

	mu sync.Mutex
}

func NewLocalGateway(store *kv.Store, tokens *TokenIssuer, notifier Notifier, logger *zap.Logger) *LocalGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = NewLocalNotifier()
	}
	return &LocalGateway{kv: store, tokens: tokens, notifier: notifier, logger: logger}
}

func (g *LocalGateway) Mode() string { return config.ModeLocal }

func (g *LocalGateway) Ping(ctx context.Context) error {
	return g.kv.Ping(ctx)
}

func (g *LocalGateway) Register(ctx context.Context, name, email, password string) RegisterResult {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return failed("missing_fields", "All fields are required")
	}

	g.mu.Lock()
	users, err := g.readUsers(ctx)
	if err != nil {
		g.mu.Unlock()
		return failed("unavailable", "Registration is temporarily unavailable")
	}
	for _, u := range users {
		if u.Email == email {
			g.mu.Unlock()
			return failed("email_taken", "User already registered")
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		g.mu.Unlock()
		return failed("unavailable", "Registration is temporarily unavailable")
	}
	created := localUser{ID: xid.New().String(), Name: name, Email: email, PasswordHash: string(hash)}
	users = append(users, created)
	err = kv.SetJSON(ctx, g.kv, UsersKey, users)
	g.mu.Unlock()
	if err != nil {
		g.logger.Error("Failed to write local users", zap.Error(err))
		return failed("unavailable", "Registration is temporarily unavailable")
	}

	session, err := g.signIn(ctx, created.user())
	if err != nil {
		return failed("unavailable", "Registration is temporarily unavailable")
	}
	return RegisterResult{Status: StatusSuccess, Session: session}
}

func (g *LocalGateway) Login(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	g.mu.Lock()
	users, err := g.readUsers(ctx)
	g.mu.Unlock()
	if err != nil {
		return nil, err
	}

	for _, u := range users {
		if u.Email != email {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
			return nil, ErrInvalidCredentials
		}
		return g.signIn(ctx, u.user())
	}
	return nil, ErrInvalidCredentials
}

func (g *LocalGateway) Logout(ctx context.Context, token string) error {
	claims, err := g.tokens.Revoke(ctx, token)
	if err != nil {
		return err
	}
	if err := g.kv.Delete(ctx, CurrentUserKey); err != nil {
		return err
	}
	if claims != nil {
		g.publish(ctx, IdentityEvent{UserID: claims.Subject, Email: claims.Email})
	}
	return nil
}

// Current resolves token; an empty token resumes the remembered local user.
func (g *LocalGateway) Current(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		var current *models.User
		if err := kv.GetJSON(ctx, g.kv, CurrentUserKey, &current); err != nil {
			return nil, err
		}
		if current == nil {
			return nil, ErrUnauthenticated
		}
		return g.lookup(ctx, current.ID)
	}

	claims, err := g.tokens.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	return g.lookup(ctx, claims.Subject)
}

// Resume issues a token for the remembered local user.
func (g *LocalGateway) Resume(ctx context.Context) (*Session, error) {
	user, err := g.Current(ctx, "")
	if err != nil {
		return nil, err
	}
	return g.tokens.Issue(*user)
}

func (g *LocalGateway) Confirm(ctx context.Context, confirmationToken string) (*Session, error) {
	return nil, ErrNotSupported
}

func (g *LocalGateway) UpdatePreferredRole(ctx context.Context, userID, role string) (*models.User, error) {
	g.mu.Lock()
	users, err := g.readUsers(ctx)
	if err != nil {
		g.mu.Unlock()
		return nil, err
	}
	idx := -1
	for i := range users {
		if users[i].ID == userID {
			idx = i
			break
		}
	}
	if idx < 0 {
		g.mu.Unlock()
		return nil, ErrUserNotFound
	}
	users[idx].PreferredRole = strings.TrimSpace(role)
	err = kv.SetJSON(ctx, g.kv, UsersKey, users)
	g.mu.Unlock()
	if err != nil {
		return nil, err
	}

	user := users[idx].user()
	g.rememberIfCurrent(ctx, user)
	g.publish(ctx, IdentityEvent{UserID: user.ID, Email: user.Email, User: &user})
	return &user, nil
}

func (g *LocalGateway) OnIdentityChange(fn func(IdentityEvent)) func() {
	return g.notifier.Subscribe(fn)
}

func (g *LocalGateway) signIn(ctx context.Context, user models.User) (*Session, error) {
	session, err := g.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	if err := kv.SetJSON(ctx, g.kv, CurrentUserKey, user); err != nil {
		g.logger.Warn("Failed to remember current user", zap.String("user_id", user.ID), zap.Error(err))
	}
	g.publish(ctx, IdentityEvent{UserID: user.ID, Email: user.Email, User: &user})
	return session, nil
}

func (g *LocalGateway) rememberIfCurrent(ctx context.Context, user models.User) {
	var current *models.User
	if err := kv.GetJSON(ctx, g.kv, CurrentUserKey, &current); err != nil || current == nil || current.ID != user.ID {
		return
	}
	if err := kv.SetJSON(ctx, g.kv, CurrentUserKey, user); err != nil {
		g.logger.Warn("Failed to refresh current user", zap.String("user_id", user.ID), zap.Error(err))
	}
}

func (g *LocalGateway) lookup(ctx context.Context, id string) (*models.User, error) {
	g.mu.Lock()
	users, err := g.readUsers(ctx)
	g.mu.Unlock()
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.ID == id {
			user := u.user()
			return &user, nil
		}
	}
	return nil, ErrUnauthenticated
}

func (g *LocalGateway) readUsers(ctx context.Context) ([]localUser, error) {
	var users []localUser
	if err := kv.GetJSON(ctx, g.kv, UsersKey, &users); err != nil {
		g.logger.Error("Failed to read local users", zap.Error(err))
		return nil, err
	}
	return users, nil
}

func (g *LocalGateway) publish(ctx context.Context, event IdentityEvent) {
	if err := g.notifier.Publish(ctx, event); err != nil {
		g.logger.Warn("Failed to publish identity event", zap.String("user_id", event.UserID), zap.Error(err))
	}
}

var (
	_ Gateway = (*LocalGateway)(nil)
	_ Gateway = (*RemoteGateway)(nil)
)
