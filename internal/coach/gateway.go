package coach

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/danchettos12/EntrevistIA/internal/llm"
	"github.com/danchettos12/EntrevistIA/internal/metrics"
	"github.com/danchettos12/EntrevistIA/internal/models"
	"github.com/danchettos12/EntrevistIA/internal/prompts"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FallbackQuestion is asked whenever a question cannot be generated.
const FallbackQuestion = "Háblame de un proyecto reciente del que te sientas orgulloso: ¿cuál era la situación, cuál era tu responsabilidad, qué hiciste exactamente y qué resultado obtuviste?"

// operation labels for logs and metrics
const (
	OpTranscribe = "transcribe"
	OpQuestion   = "question"
	OpAnalysis   = "analysis"
	OpSummary    = "summary"
)

// Gateway turns interview operations into provider calls and parses the replies.
type Gateway struct {
	provider llm.Provider
	prompts  *prompts.PromptManager
	logger   *zap.Logger
}

func NewGateway(provider llm.Provider, pm *prompts.PromptManager, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{provider: provider, prompts: pm, logger: logger}
}

func (g *Gateway) ProviderName() string {
	return g.provider.GetProviderName()
}

// Configured is false when the gateway runs on the unconfigured provider.
func (g *Gateway) Configured() bool {
	_, unconfigured := g.provider.(*llm.Unconfigured)
	return !unconfigured
}

// Transcribe returns the verbatim text of the audio, or "" when the service produced none.
func (g *Gateway) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if len(audio) == 0 {
		return "", nil
	}
	prompt, err := g.prompts.BuildPrompt(prompts.ModeTranscription, prompts.VariantDefault, nil)
	if err != nil {
		return "", err
	}

	resp, err := g.call(ctx, OpTranscribe, &llm.Request{Prompt: prompt, Audio: audio, AudioMIMEType: mimeType})
	if err != nil {
		if llm.ErrorCode(err) == llm.ErrCodeEmptyResponse {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

// GenerateQuestion never fails; any error yields FallbackQuestion.
func (g *Gateway) GenerateQuestion(ctx context.Context, cfg models.SessionConfig, asked []string) string {
	data := map[string]any{
		"Role":       cfg.Role,
		"Pressure":   cfg.Pressure,
		"Focus":      cfg.Focus,
		"FocusLabel": prompts.FocusLabel(cfg.Focus),
		"Asked":      asked,
	}
	prompt, err := g.prompts.BuildPrompt(prompts.ModeQuestion, prompts.QuestionVariant(cfg.Pressure), data)
	if err != nil {
		return g.fallbackQuestion(err)
	}

	resp, err := g.call(ctx, OpQuestion, &llm.Request{Prompt: prompt})
	if err != nil {
		return g.fallbackQuestion(err)
	}
	question := strings.TrimSpace(resp.Content)
	if question == "" {
		return g.fallbackQuestion(fmt.Errorf("empty question"))
	}
	return question
}

func (g *Gateway) fallbackQuestion(err error) string {
	g.logger.Warn("Question generation failed, using fallback", zap.Error(err))
	metrics.AIFallback(OpQuestion)
	return FallbackQuestion
}

// AnalyzeResponse returns per-question feedback. A malformed reply degrades to defaults with a nil error;
// only provider failures are returned.
func (g *Gateway) AnalyzeResponse(ctx context.Context, question, answer string, cfg models.SessionConfig) (models.QuestionFeedback, error) {
	prompt, err := g.prompts.BuildPrompt(prompts.ModeAnalysis, prompts.VariantDefault, map[string]any{
		"Question": question,
		"Answer":   answer,
		"Role":     cfg.Role,
	})
	if err != nil {
		return models.QuestionFeedback{}, err
	}

	resp, err := g.call(ctx, OpAnalysis, &llm.Request{Prompt: prompt, Schema: feedbackSchema, Structured: true})
	if err != nil {
		return models.QuestionFeedback{}, err
	}

	fb, ok := parseFeedback(resp.Content, question, answer)
	if !ok {
		g.malformed(OpAnalysis, resp)
	}
	return fb, nil
}

// SummarizeSession produces the session-wide summary with the same tolerant parsing as AnalyzeResponse.
func (g *Gateway) SummarizeSession(ctx context.Context, questions []models.QuestionFeedback, cfg models.SessionConfig) (models.SessionSummary, error) {
	prompt, err := g.prompts.BuildPrompt(prompts.ModeSummary, prompts.VariantDefault, map[string]any{
		"Questions":   questions,
		"Role":        cfg.Role,
		"MaxMistakes": models.MaxMistakes,
	})
	if err != nil {
		return models.SessionSummary{}, err
	}

	resp, err := g.call(ctx, OpSummary, &llm.Request{Prompt: prompt, Schema: summarySchema, Structured: true})
	if err != nil {
		return models.SessionSummary{}, err
	}

	summary, ok := parseSummary(resp.Content)
	if !ok {
		g.malformed(OpSummary, resp)
	}
	return summary, nil
}

func (g *Gateway) call(ctx context.Context, op string, req *llm.Request) (*llm.Response, error) {
	req.RequestID = uuid.NewString()
	resp, err := g.provider.GenerateContent(ctx, req)
	if err != nil {
		metrics.AIRequest(op, metrics.OutcomeError)
		g.logger.Warn("AI request failed",
			zap.String("operation", op),
			zap.String("request_id", req.RequestID),
			zap.String("provider", g.provider.GetProviderName()),
			zap.String("code", llm.ErrorCode(err)),
			zap.Error(err))
		return nil, err
	}
	metrics.AIRequest(op, metrics.OutcomeOK)
	g.logger.Debug("AI request completed",
		zap.String("operation", op),
		zap.String("request_id", req.RequestID),
		zap.String("model", resp.Model),
		zap.Int64("latency_ms", resp.LatencyMS))
	return resp, nil
}

func (g *Gateway) malformed(op string, resp *llm.Response) {
	metrics.AIRequest(op, metrics.OutcomeMalformed)
	preview := resp.Content
	preview = truncate(preview, 200)
	g.logger.Warn("Malformed AI response, using defaults",
		zap.String("operation", op),
		zap.String("request_id", resp.RequestID),
		zap.String("preview", preview))
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
