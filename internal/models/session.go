package models

import (
	"math"
	"strings"
)

// SessionConfig is the setup form's output; passed by value into a run.
type SessionConfig struct {
	Role          string `json:"role"`
	QuestionCount int    `json:"questionCount"`
	TimeLimit     int    `json:"timeLimit"` // seconds per question
	Pressure      int    `json:"pressure"`
	Focus         int    `json:"focus"` // 0 technical .. 100 behavioral
}

// DefaultSessionConfig returns the setup defaults. An empty preferred role keeps the default role.
func DefaultSessionConfig(preferredRole string) SessionConfig {
	cfg := SessionConfig{
		Role:          DefaultRole,
		QuestionCount: DefaultQuestionCount,
		TimeLimit:     DefaultTimeLimit,
		Pressure:      DefaultPressure,
		Focus:         DefaultFocus,
	}
	if role := strings.TrimSpace(preferredRole); role != "" {
		cfg.Role = role
	}
	return cfg
}

// implements the Validator interface
func (c *SessionConfig) Validate() error {
	c.Role = strings.TrimSpace(c.Role)
	if c.Role == "" {
		return &ErrorResponse{Code: "missing_role", Message: "role is required"}
	}

	var details []ValidationErrorDetail
	if c.QuestionCount < MinQuestionCount || c.QuestionCount > MaxQuestionCount {
		details = append(details, ValidationErrorDetail{Field: "questionCount", Reason: "must be between 1 and 10"})
	}
	if c.TimeLimit < MinTimeLimit || c.TimeLimit > MaxTimeLimit {
		details = append(details, ValidationErrorDetail{Field: "timeLimit", Reason: "must be between 30 and 300 seconds"})
	}
	if c.Pressure < 0 || c.Pressure > 100 {
		details = append(details, ValidationErrorDetail{Field: "pressure", Reason: "must be between 0 and 100"})
	}
	if c.Focus < 0 || c.Focus > 100 {
		details = append(details, ValidationErrorDetail{Field: "focus", Reason: "must be between 0 and 100"})
	}
	if len(details) > 0 {
		return &ErrorResponse{Code: "invalid_config", Message: "session configuration is out of range", Details: details}
	}
	return nil
}

type HighlightType string

const (
	HighlightWeak    HighlightType = "weak"
	HighlightStrong  HighlightType = "strong"
	HighlightNeutral HighlightType = "neutral"
)

// NormalizeHighlightType maps anything outside {weak, strong, neutral} to neutral.
func NormalizeHighlightType(raw string) HighlightType {
	switch HighlightType(strings.ToLower(strings.TrimSpace(raw))) {
	case HighlightWeak:
		return HighlightWeak
	case HighlightStrong:
		return HighlightStrong
	default:
		return HighlightNeutral
	}
}

type Highlight struct {
	Text   string        `json:"text"`
	Type   HighlightType `json:"type"`
	Reason string        `json:"reason,omitempty"`
}

type StarAnalysis struct {
	Situation string `json:"situation"`
	Task      string `json:"task"`
	Action    string `json:"action"`
	Result    string `json:"result"`
	Score     int    `json:"score"`
}

// QuestionFeedback is the analysis of one answer. Immutable once produced.
type QuestionFeedback struct {
	Question                 string       `json:"question"`
	OriginalResponse         string       `json:"originalResponse"`
	IdealResponse            string       `json:"idealResponse"`
	Highlights               []Highlight  `json:"highlights"`
	StarAnalysis             StarAnalysis `json:"starAnalysis"`
	ToneScore                int          `json:"toneScore"`
	ToneExplanation          string       `json:"toneExplanation"`
	AssertivenessScore       int          `json:"assertivenessScore"`
	AssertivenessExplanation string       `json:"assertivenessExplanation"`
	GeneralFeedback          string       `json:"generalFeedback"`
}

type SessionSummary struct {
	OverallSummary     string   `json:"overallSummary"`
	FillerWordAnalysis string   `json:"fillerWordAnalysis"`
	Mistakes           []string `json:"mistakes"`
	OverallScore       int      `json:"overallScore"`
}

// SessionRecord is one completed interview run. Never mutated after it is stored.
type SessionRecord struct {
	ID                 string             `json:"id"`
	UserID             string             `json:"userId"`
	Timestamp          int64              `json:"timestamp"` // epoch milliseconds
	Config             SessionConfig      `json:"config"`
	Questions          []QuestionFeedback `json:"questions"`
	OverallScore       int                `json:"overallScore"`
	OverallSummary     string             `json:"overallSummary"`
	FillerWordAnalysis string             `json:"fillerWordAnalysis"`
	Mistakes           []string           `json:"mistakes"`
}

// NewSessionRecord assembles an unsaved record; the store assigns ID and timestamp.
func NewSessionRecord(userID string, timestamp int64, config SessionConfig, questions []QuestionFeedback, summary SessionSummary) SessionRecord {
	qs := make([]QuestionFeedback, len(questions))
	copy(qs, questions)
	mistakes := summary.Mistakes
	if mistakes == nil {
		mistakes = []string{}
	}
	return SessionRecord{
		UserID:             userID,
		Timestamp:          timestamp,
		Config:             config,
		Questions:          qs,
		OverallScore:       ClampScore(float64(summary.OverallScore)),
		OverallSummary:     summary.OverallSummary,
		FillerWordAnalysis: summary.FillerWordAnalysis,
		Mistakes:           mistakes,
	}
}

// ClampScore rounds to the nearest integer and bounds the result to [0,100]. NaN maps to 0.
func ClampScore(score float64) int {
	if math.IsNaN(score) || score <= 0 {
		return 0
	}
	if score >= 100 {
		return 100
	}
	return int(math.Round(score))
}
