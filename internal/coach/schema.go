package coach

import "github.com/danchettos12/EntrevistIA/internal/llm"

var feedbackSchema = &llm.Schema{
	Type: llm.TypeObject,
	Properties: map[string]*llm.Schema{
		"originalResponse": {Type: llm.TypeString},
		"idealResponse": {
			Type:        llm.TypeString,
			Description: "La respuesta del usuario reescrita para sonar como un experto senior (Modo Espejo)",
		},
		"highlights": {
			Type: llm.TypeArray,
			Items: &llm.Schema{
				Type: llm.TypeObject,
				Properties: map[string]*llm.Schema{
					"text":   {Type: llm.TypeString},
					"type":   {Type: llm.TypeString, Enum: []string{"weak", "strong", "neutral"}},
					"reason": {Type: llm.TypeString, Description: "Razón del análisis"},
				},
				Required: []string{"text", "type"},
			},
		},
		"starAnalysis": {
			Type: llm.TypeObject,
			Properties: map[string]*llm.Schema{
				"situation": {Type: llm.TypeString},
				"task":      {Type: llm.TypeString},
				"action":    {Type: llm.TypeString},
				"result":    {Type: llm.TypeString},
				"score":     {Type: llm.TypeNumber},
			},
			Required: []string{"situation", "task", "action", "result", "score"},
		},
		"toneScore":                {Type: llm.TypeNumber},
		"toneExplanation":          {Type: llm.TypeString},
		"assertivenessScore":       {Type: llm.TypeNumber},
		"assertivenessExplanation": {Type: llm.TypeString},
		"generalFeedback":          {Type: llm.TypeString},
	},
	Required: []string{
		"originalResponse", "idealResponse", "highlights", "starAnalysis", "toneScore",
		"toneExplanation", "assertivenessScore", "assertivenessExplanation", "generalFeedback",
	},
}

var summarySchema = &llm.Schema{
	Type: llm.TypeObject,
	Properties: map[string]*llm.Schema{
		"overallSummary":     {Type: llm.TypeString},
		"fillerWordAnalysis": {Type: llm.TypeString},
		"mistakes":           {Type: llm.TypeArray, Items: &llm.Schema{Type: llm.TypeString}},
		"overallScore":       {Type: llm.TypeNumber},
	},
	Required: []string{"overallSummary", "fillerWordAnalysis", "mistakes", "overallScore"},
}
