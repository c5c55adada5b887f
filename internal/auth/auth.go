package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/danchettos12/EntrevistIA/internal/models"
)

var (
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrEmailNotConfirmed   = errors.New("email not confirmed")
	ErrUnauthenticated     = errors.New("not authenticated")
	ErrInvalidConfirmation = errors.New("confirmation link is invalid or expired")
	ErrUserNotFound        = errors.New("user not found")
	ErrNotSupported        = errors.New("operation not supported in this mode")
)

type RegisterStatus string

const (
	StatusSuccess             RegisterStatus = "success"
	StatusPendingConfirmation RegisterStatus = "pending_confirmation"
	StatusFailed              RegisterStatus = "failed"
)

// RegisterResult tells the caller which of the three outcomes registration reached.
// Message is the service text shown to the user verbatim.
type RegisterResult struct {
	Status  RegisterStatus `json:"status"`
	Session *Session       `json:"session,omitempty"`
	Message string         `json:"message,omitempty"`
	// Code is a stable reason identifier for failures
	Code string `json:"code,omitempty"`
}

func failed(code, message string) RegisterResult {
	return RegisterResult{Status: StatusFailed, Code: code, Message: message}
}

type Session struct {
	User      models.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// IdentityEvent reports a sign-in (User set) or sign-out (User nil) that happened elsewhere.
type IdentityEvent struct {
	UserID string       `json:"userId"`
	Email  string       `json:"email"`
	User   *models.User `json:"user,omitempty"`
}

func (e IdentityEvent) SignedIn() bool {
	return e.User != nil
}

// Gateway is implemented by the remote and local auth backends.
type Gateway interface {
	Mode() string
	Register(ctx context.Context, name, email, password string) RegisterResult
	Login(ctx context.Context, email, password string) (*Session, error)
	Logout(ctx context.Context, token string) error
	// Current resolves a token to its user; ErrUnauthenticated when it is not valid.
	Current(ctx context.Context, token string) (*models.User, error)
	Confirm(ctx context.Context, confirmationToken string) (*Session, error)
	UpdatePreferredRole(ctx context.Context, userID, role string) (*models.User, error)
	OnIdentityChange(fn func(IdentityEvent)) (cancel func())
	Ping(ctx context.Context) error
}

// DisplayName applies the fallback chain: name, then the email local part, then "User".
func DisplayName(name, email string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return "User"
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
