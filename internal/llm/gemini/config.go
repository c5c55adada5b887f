package gemini

import (
	"errors"
	"os"
)

// holds Gemini-specific configuration
type Config struct {
	APIKey string
	// fast model for questions and transcription
	Model string
	// model for schema-constrained analysis and summaries
	AnalysisModel string
}

func NewConfig() (*Config, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY environment variable is required")
	}

	model := os.Getenv("GEMINI_MODEL")
	if model == "" {
		model = "gemini-2.5-flash" // default model
	}
	analysisModel := os.Getenv("GEMINI_ANALYSIS_MODEL")
	if analysisModel == "" {
		analysisModel = "gemini-2.5-pro"
	}

	return &Config{
		APIKey:        apiKey,
		Model:         model,
		AnalysisModel: analysisModel,
	}, nil
}
