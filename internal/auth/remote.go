package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/danchettos12/EntrevistIA/internal/config"
	"github.com/danchettos12/EntrevistIA/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Account is the backend identity row. Metadata carries the user-editable attributes.
type Account struct {
	ID           string `gorm:"primaryKey;type:varchar(36)"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Metadata     datatypes.JSON
	ConfirmedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type ConfirmationToken struct {
	Token     string    `gorm:"primaryKey;type:varchar(64)"`
	AccountID string    `gorm:"index;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	CreatedAt time.Time
}

type accountMetadata struct {
	FullName      string `json:"full_name,omitempty"`
	PreferredRole string `json:"preferred_role,omitempty"`
}

func (a *Account) metadata() accountMetadata {
	var meta accountMetadata
	if len(a.Metadata) > 0 {
		_ = json.Unmarshal(a.Metadata, &meta)
	}
	return meta
}

func (a *Account) user() models.User {
	meta := a.metadata()
	return models.User{
		ID:            a.ID,
		Name:          DisplayName(meta.FullName, a.Email),
		Email:         a.Email,
		PreferredRole: meta.PreferredRole,
	}
}

// ConfirmationSender delivers the link that confirms a new account.
type ConfirmationSender interface {
	SendConfirmation(to, name, link string) error
}

// RemoteGateway keeps accounts in the backend database. With a mailer configured,
// new accounts stay unconfirmed until the emailed link is followed.
type RemoteGateway struct {
	db       *gorm.DB
	tokens   *TokenIssuer
	notifier Notifier
	mailer   ConfirmationSender
	appURL   string
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

type RemoteOptions struct {
	DB       *gorm.DB
	Tokens   *TokenIssuer
	Notifier Notifier
	// Mailer is optional; nil confirms accounts at registration
	Mailer          ConfirmationSender
	AppURL          string
	ConfirmationTTL time.Duration
	Logger          *zap.Logger
}

func NewRemoteGateway(opts RemoteOptions) (*RemoteGateway, error) {
	if err := opts.DB.AutoMigrate(&Account{}, &ConfirmationToken{}); err != nil {
		return nil, fmt.Errorf("failed to migrate auth tables: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Notifier == nil {
		opts.Notifier = NewLocalNotifier()
	}
	if opts.ConfirmationTTL <= 0 {
		opts.ConfirmationTTL = 24 * time.Hour
	}
	return &RemoteGateway{
		db:       opts.DB,
		tokens:   opts.Tokens,
		notifier: opts.Notifier,
		mailer:   opts.Mailer,
		appURL:   strings.TrimRight(opts.AppURL, "/"),
		ttl:      opts.ConfirmationTTL,
		logger:   opts.Logger,
		now:      time.Now,
	}, nil
}

func (g *RemoteGateway) Mode() string { return config.ModeRemote }

func (g *RemoteGateway) Ping(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (g *RemoteGateway) Register(ctx context.Context, name, email, password string) RegisterResult {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return failed("missing_fields", "All fields are required")
	}

	db := g.db.WithContext(ctx)
	var existing Account
	err := db.First(&existing, "email = ?", email).Error
	switch {
	case err == nil:
		purged, perr := g.purgeIfExpired(ctx, &existing)
		if perr != nil {
			g.logger.Error("Failed to check stale registration", zap.String("email", email), zap.Error(perr))
			return failed("unavailable", "Registration is temporarily unavailable")
		}
		if !purged {
			return failed("email_taken", "User already registered")
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		g.logger.Error("Failed to look up account", zap.String("email", email), zap.Error(err))
		return failed("unavailable", "Registration is temporarily unavailable")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return failed("unavailable", "Registration is temporarily unavailable")
	}
	meta, _ := json.Marshal(accountMetadata{FullName: name})
	account := Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Metadata:     datatypes.JSON(meta),
	}

	if g.mailer == nil {
		now := g.now()
		account.ConfirmedAt = &now
		if err := db.Create(&account).Error; err != nil {
			g.logger.Error("Failed to create account", zap.String("email", email), zap.Error(err))
			return failed("unavailable", "Registration is temporarily unavailable")
		}
		session, err := g.signIn(ctx, account)
		if err != nil {
			return failed("unavailable", "Registration is temporarily unavailable")
		}
		return RegisterResult{Status: StatusSuccess, Session: session}
	}

	token := ConfirmationToken{
		Token:     strings.ReplaceAll(uuid.NewString(), "-", ""),
		AccountID: account.ID,
		ExpiresAt: g.now().Add(g.ttl),
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&account).Error; err != nil {
			return err
		}
		return tx.Create(&token).Error
	})
	if err != nil {
		g.logger.Error("Failed to create pending account", zap.String("email", email), zap.Error(err))
		return failed("unavailable", "Registration is temporarily unavailable")
	}

	link := g.appURL + "/api/v1/auth/confirm?token=" + url.QueryEscape(token.Token)
	if err := g.mailer.SendConfirmation(email, name, link); err != nil {
		// without the mail the account could never be confirmed
		g.db.Delete(&ConfirmationToken{}, "account_id = ?", account.ID)
		g.db.Delete(&Account{}, "id = ?", account.ID)
		return failed("mail_failed", "Could not send the confirmation email, please try again")
	}

	return RegisterResult{
		Status:  StatusPendingConfirmation,
		Message: "Check your email for the confirmation link",
	}
}

func (g *RemoteGateway) Login(ctx context.Context, email, password string) (*Session, error) {
	var account Account
	err := g.db.WithContext(ctx).First(&account, "email = ?", normalizeEmail(email)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	if account.ConfirmedAt == nil {
		return nil, ErrEmailNotConfirmed
	}
	return g.signIn(ctx, account)
}

func (g *RemoteGateway) Logout(ctx context.Context, token string) error {
	claims, err := g.tokens.Revoke(ctx, token)
	if err != nil || claims == nil {
		return err
	}
	g.publish(ctx, IdentityEvent{UserID: claims.Subject, Email: claims.Email})
	return nil
}

func (g *RemoteGateway) Current(ctx context.Context, token string) (*models.User, error) {
	claims, err := g.tokens.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	account, err := g.account(ctx, claims.Subject)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}
	user := account.user()
	return &user, nil
}

func (g *RemoteGateway) Confirm(ctx context.Context, confirmationToken string) (*Session, error) {
	db := g.db.WithContext(ctx)
	var token ConfirmationToken
	if err := db.First(&token, "token = ?", confirmationToken).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidConfirmation
		}
		return nil, err
	}
	if g.now().After(token.ExpiresAt) {
		db.Delete(&token)
		return nil, ErrInvalidConfirmation
	}

	account, err := g.account(ctx, token.AccountID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidConfirmation
		}
		return nil, err
	}

	now := g.now()
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(account).Update("confirmed_at", now).Error; err != nil {
			return err
		}
		return tx.Delete(&token).Error
	})
	if err != nil {
		return nil, err
	}
	account.ConfirmedAt = &now
	return g.signIn(ctx, *account)
}

func (g *RemoteGateway) UpdatePreferredRole(ctx context.Context, userID, role string) (*models.User, error) {
	account, err := g.account(ctx, userID)
	if err != nil {
		return nil, err
	}
	meta := account.metadata()
	meta.PreferredRole = strings.TrimSpace(role)
	raw, _ := json.Marshal(meta)
	if err := g.db.WithContext(ctx).Model(account).Update("metadata", datatypes.JSON(raw)).Error; err != nil {
		return nil, err
	}
	account.Metadata = datatypes.JSON(raw)
	user := account.user()
	g.publish(ctx, IdentityEvent{UserID: user.ID, Email: user.Email, User: &user})
	return &user, nil
}

func (g *RemoteGateway) OnIdentityChange(fn func(IdentityEvent)) func() {
	return g.notifier.Subscribe(fn)
}

// PurgeExpiredRegistrations deletes unconfirmed accounts whose confirmation link has expired.
func (g *RemoteGateway) PurgeExpiredRegistrations(ctx context.Context) (int64, error) {
	db := g.db.WithContext(ctx)
	var expired []ConfirmationToken
	if err := db.Where("expires_at <= ?", g.now()).Find(&expired).Error; err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(expired))
	for _, t := range expired {
		ids = append(ids, t.AccountID)
	}

	var removed int64
	err := db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id IN ? AND confirmed_at IS NULL", ids).Delete(&Account{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected
		return tx.Where("account_id IN ?", ids).Delete(&ConfirmationToken{}).Error
	})
	return removed, err
}

// purgeIfExpired frees the email of an unconfirmed account whose link has expired.
func (g *RemoteGateway) purgeIfExpired(ctx context.Context, account *Account) (bool, error) {
	if account.ConfirmedAt != nil {
		return false, nil
	}
	db := g.db.WithContext(ctx)

	var token ConfirmationToken
	err := db.Where("account_id = ?", account.ID).Order("created_at DESC").First(&token).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}
	if err == nil && g.now().Before(token.ExpiresAt) {
		return false, nil
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", account.ID).Delete(&ConfirmationToken{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Account{}, "id = ?", account.ID).Error
	})
	return err == nil, err
}

func (g *RemoteGateway) account(ctx context.Context, id string) (*Account, error) {
	var account Account
	err := g.db.WithContext(ctx).First(&account, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (g *RemoteGateway) signIn(ctx context.Context, account Account) (*Session, error) {
	user := account.user()
	session, err := g.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	g.publish(ctx, IdentityEvent{UserID: user.ID, Email: user.Email, User: &user})
	return session, nil
}

func (g *RemoteGateway) publish(ctx context.Context, event IdentityEvent) {
	if err := g.notifier.Publish(ctx, event); err != nil {
		g.logger.Warn("Failed to publish identity event", zap.String("user_id", event.UserID), zap.Error(err))
	}
}
