package coach

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/danchettos12/EntrevistIA/internal/models"
)

// score accepts a JSON number or numeric string; anything else decodes as missing.
type score struct {
	value float64
	set   bool
}

func (s *score) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil
		}
		if v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			s.value, s.set = v, true
		}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	s.value, s.set = v, true
	return nil
}

func (s score) clamp() int {
	if !s.set {
		return 0
	}
	return models.ClampScore(s.value)
}

// text accepts a JSON string; any other value decodes as missing.
type text string

func (t *text) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		*t = text(raw)
	}
	return nil
}

// textList accepts a list of strings or a single string. Non-string items are dropped.
type textList []string

func (l *textList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = textList{single}
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil
	}
	out := make(textList, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
		}
	}
	*l = out
	return nil
}

type highlightWire struct {
	Text   text `json:"text"`
	Type   text `json:"type"`
	Reason text `json:"reason"`
}

// highlightList keeps the well-formed entries of a highlights array.
type highlightList []highlightWire

func (l *highlightList) UnmarshalJSON(data []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil
	}
	out := make(highlightList, 0, len(items))
	for _, item := range items {
		var h highlightWire
		if err := json.Unmarshal(item, &h); err == nil {
			out = append(out, h)
		}
	}
	*l = out
	return nil
}

type starWire struct {
	Situation text  `json:"situation"`
	Task      text  `json:"task"`
	Action    text  `json:"action"`
	Result    text  `json:"result"`
	Score     score `json:"score"`
}

func (w *starWire) UnmarshalJSON(data []byte) error {
	type plain starWire
	var v plain
	if err := json.Unmarshal(data, &v); err == nil {
		*w = starWire(v)
	}
	return nil
}

type feedbackWire struct {
	OriginalResponse         text          `json:"originalResponse"`
	IdealResponse            text          `json:"idealResponse"`
	Highlights               highlightList `json:"highlights"`
	StarAnalysis             starWire      `json:"starAnalysis"`
	ToneScore                score         `json:"toneScore"`
	ToneExplanation          text          `json:"toneExplanation"`
	AssertivenessScore       score         `json:"assertivenessScore"`
	AssertivenessExplanation text          `json:"assertivenessExplanation"`
	GeneralFeedback          text          `json:"generalFeedback"`
}

type summaryWire struct {
	OverallSummary     text     `json:"overallSummary"`
	FillerWordAnalysis text     `json:"fillerWordAnalysis"`
	Mistakes           textList `json:"mistakes"`
	OverallScore       score    `json:"overallScore"`
}

// decodeObject fills wire from a JSON object. Fields decode independently, so a
// mistyped field only loses itself.
func decodeObject(raw string, wire any) bool {
	body := stripFences(raw)
	if !strings.HasPrefix(body, "{") {
		return false
	}
	return json.Unmarshal([]byte(body), wire) == nil
}

// defaultFeedback is what a malformed analysis degrades to.
func defaultFeedback(question, answer string) models.QuestionFeedback {
	return models.QuestionFeedback{
		Question:         question,
		OriginalResponse: answer,
		Highlights:       []models.Highlight{},
	}
}

func defaultSummary() models.SessionSummary {
	return models.SessionSummary{Mistakes: []string{}}
}

// parseFeedback decodes a model reply. ok is false when the payload was not a JSON object.
func parseFeedback(raw, question, answer string) (models.QuestionFeedback, bool) {
	var wire feedbackWire
	if !decodeObject(raw, &wire) {
		return defaultFeedback(question, answer), false
	}

	fb := models.QuestionFeedback{
		Question:         question,
		OriginalResponse: string(wire.OriginalResponse),
		IdealResponse:    string(wire.IdealResponse),
		Highlights:       make([]models.Highlight, 0, len(wire.Highlights)),
		StarAnalysis: models.StarAnalysis{
			Situation: string(wire.StarAnalysis.Situation),
			Task:      string(wire.StarAnalysis.Task),
			Action:    string(wire.StarAnalysis.Action),
			Result:    string(wire.StarAnalysis.Result),
			Score:     wire.StarAnalysis.Score.clamp(),
		},
		ToneScore:                wire.ToneScore.clamp(),
		ToneExplanation:          string(wire.ToneExplanation),
		AssertivenessScore:       wire.AssertivenessScore.clamp(),
		AssertivenessExplanation: string(wire.AssertivenessExplanation),
		GeneralFeedback:          string(wire.GeneralFeedback),
	}
	if strings.TrimSpace(fb.OriginalResponse) == "" {
		fb.OriginalResponse = answer
	}
	for _, h := range wire.Highlights {
		if strings.TrimSpace(string(h.Text)) == "" {
			continue
		}
		fb.Highlights = append(fb.Highlights, models.Highlight{
			Text:   string(h.Text),
			Type:   models.NormalizeHighlightType(string(h.Type)),
			Reason: string(h.Reason),
		})
	}
	return fb, true
}

func parseSummary(raw string) (models.SessionSummary, bool) {
	var wire summaryWire
	if !decodeObject(raw, &wire) {
		return defaultSummary(), false
	}

	summary := models.SessionSummary{
		OverallSummary:     string(wire.OverallSummary),
		FillerWordAnalysis: string(wire.FillerWordAnalysis),
		Mistakes:           make([]string, 0, len(wire.Mistakes)),
		OverallScore:       wire.OverallScore.clamp(),
	}
	for _, m := range wire.Mistakes {
		if m = strings.TrimSpace(m); m != "" {
			summary.Mistakes = append(summary.Mistakes, m)
		}
	}
	return summary, true
}

// models sometimes wrap JSON in a markdown fence even in JSON mode
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
