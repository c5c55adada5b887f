package llm

import (
	"context"
	"errors"
)

// ErrNotConfigured is wrapped by every error from Unconfigured.
var ErrNotConfigured = errors.New("ai service not configured")

// Unconfigured stands in for a provider whose credentials are missing.
// Every call fails immediately without touching the network.
type Unconfigured struct {
	Name   string
	Reason string
}

func (u *Unconfigured) GenerateContent(ctx context.Context, req *Request) (*Response, error) {
	msg := "AI service is not configured"
	if u.Reason != "" {
		msg += ": " + u.Reason
	}
	return nil, &ProviderError{
		Provider: u.GetProviderName(),
		Code:     ErrCodeNotConfigured,
		Message:  msg,
		Err:      ErrNotConfigured,
	}
}

func (u *Unconfigured) GetProviderName() string {
	if u.Name == "" {
		return "unconfigured"
	}
	return u.Name
}

// NewProviderOrUnconfigured builds the named provider, falling back to Unconfigured when the factory fails.
func NewProviderOrUnconfigured(name string) (Provider, error) {
	p, err := NewProvider(name)
	if err != nil {
		return &Unconfigured{Name: name, Reason: err.Error()}, err
	}
	return p, nil
}

// ErrorCode extracts the provider error code, or "" when err is not a ProviderError.
func ErrorCode(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}
