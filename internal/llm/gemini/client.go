package gemini

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/danchettos12/EntrevistIA/internal/llm"
	"google.golang.org/genai"
)

// Client represents a Gemini LLM client
type Client struct {
	client *genai.Client
	config *Config
}

func NewClient(config *Config) (*Client, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &llm.ProviderError{
			Provider: "gemini",
			Code:     llm.ErrCodeAPIKey,
			Message:  "Failed to create Gemini client",
			Err:      err,
		}
	}

	return &Client{
		client: client,
		config: config,
	}, nil
}

func (c *Client) GenerateContent(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if req == nil || (strings.TrimSpace(req.Prompt) == "" && len(req.Audio) == 0) {
		return nil, &llm.ProviderError{
			Provider: "gemini",
			Code:     llm.ErrCodeInvalidInput,
			Message:  "Empty request",
		}
	}

	startTime := time.Now()
	model := c.config.Model
	if req.Structured && c.config.AnalysisModel != "" {
		model = c.config.AnalysisModel
	}

	result, err := c.client.Models.GenerateContent(ctx, model, buildContents(req), buildConfig(req))
	if err != nil {
		return nil, classifyError(err)
	}
	if result == nil {
		return nil, &llm.ProviderError{
			Provider: "gemini",
			Code:     llm.ErrCodeEmptyResponse,
			Message:  "No response generated",
		}
	}

	text := extractText(result)
	if strings.TrimSpace(text) == "" {
		return nil, &llm.ProviderError{
			Provider: "gemini",
			Code:     llm.ErrCodeEmptyResponse,
			Message:  "Empty response generated",
		}
	}

	return &llm.Response{
		Content:   text,
		RequestID: req.RequestID,
		Provider:  "gemini",
		Model:     model,
		LatencyMS: time.Since(startTime).Milliseconds(),
	}, nil
}

func (c *Client) GetProviderName() string {
	return "gemini"
}

func buildContents(req *llm.Request) []*genai.Content {
	var parts []*genai.Part
	if len(req.Audio) > 0 {
		mime := req.AudioMIMEType
		if mime == "" {
			mime = "audio/webm"
		}
		parts = append(parts, genai.NewPartFromBytes(req.Audio, mime))
	}
	if req.Prompt != "" {
		parts = append(parts, genai.NewPartFromText(req.Prompt))
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

func buildConfig(req *llm.Request) *genai.GenerateContentConfig {
	if req.Schema == nil {
		return nil
	}
	return &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   toGenaiSchema(req.Schema),
	}
}

func toGenaiSchema(s *llm.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        toGenaiType(s.Type),
		Description: s.Description,
		Required:    s.Required,
		Enum:        s.Enum,
		Items:       toGenaiSchema(s.Items),
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toGenaiSchema(prop)
		}
	}
	return out
}

func toGenaiType(t llm.SchemaType) genai.Type {
	switch t {
	case llm.TypeObject:
		return genai.TypeObject
	case llm.TypeArray:
		return genai.TypeArray
	case llm.TypeInteger:
		return genai.TypeInteger
	case llm.TypeNumber:
		return genai.TypeNumber
	default:
		return genai.TypeString
	}
}

// concatenates the text parts of the first candidate
func extractText(result *genai.GenerateContentResponse) string {
	if len(result.Candidates) == 0 || result.Candidates[0] == nil || result.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
	return sb.String()
}

func classifyError(err error) error {
	code := llm.ErrCodeServiceDown
	message := "Failed to generate content"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		code = llm.ErrCodeTimeout
		message = "Request timed out"
	case isRateLimitError(err):
		code = llm.ErrCodeRateLimit
		message = "Rate limit exceeded"
	case isAuthError(err):
		code = llm.ErrCodeAPIKey
		message = "API key rejected"
	}
	return &llm.ProviderError{
		Provider: "gemini",
		Code:     code,
		Message:  message,
		Err:      err,
	}
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "RESOURCE_EXHAUSTED") ||
		strings.Contains(strings.ToLower(msg), "quota")
}

func isAuthError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "API_KEY_INVALID") ||
		strings.Contains(msg, "PERMISSION_DENIED") ||
		strings.Contains(msg, "401")
}
