package llm

import (
	"context"
)

// defines the interface for LLM providers
type Provider interface {
	GenerateContent(ctx context.Context, req *Request) (*Response, error)
	GetProviderName() string
}

// Request is one generate-content call. Audio is optional inline media sent with the prompt.
type Request struct {
	Prompt        string
	Audio         []byte
	AudioMIMEType string
	// Schema constrains the output to JSON of this shape; nil means free text
	Schema *Schema
	// Structured selects the provider's analysis model
	Structured bool
	RequestID  string
}

type Response struct {
	Content   string
	RequestID string
	Provider  string
	Model     string
	LatencyMS int64
}

type SchemaType string

const (
	TypeObject  SchemaType = "object"
	TypeArray   SchemaType = "array"
	TypeString  SchemaType = "string"
	TypeInteger SchemaType = "integer"
	TypeNumber  SchemaType = "number"
)

// Schema is a provider-neutral subset of JSON schema
type Schema struct {
	Type        SchemaType
	Description string
	Properties  map[string]*Schema
	Items       *Schema
	Required    []string
	Enum        []string
}

// represents an error from an LLM provider
type ProviderError struct {
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return e.Provider + " error: " + e.Message + " (" + e.Err.Error() + ")"
	}
	return e.Provider + " error: " + e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Common error codes
// For current and future use across different providers
const (
	ErrCodeAPIKey        = "invalid_api_key"
	ErrCodeRateLimit     = "rate_limit_exceeded"
	ErrCodeServiceDown   = "service_unavailable"
	ErrCodeInvalidInput  = "invalid_input"
	ErrCodeTimeout       = "timeout"
	ErrCodeNotConfigured = "not_configured"
	ErrCodeEmptyResponse = "empty_response"
)
