package feedback

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/danchettos12/EntrevistIA/internal/models"
)

var ErrQuestionOutOfRange = errors.New("question index out of range")

// Overview is the global tab of a completed session.
type Overview struct {
	SessionID          string               `json:"sessionId,omitempty"`
	Timestamp          int64                `json:"timestamp"`
	Config             models.SessionConfig `json:"config"`
	OverallScore       int                  `json:"overallScore"`
	OverallSummary     string               `json:"overallSummary"`
	FillerWordAnalysis string               `json:"fillerWordAnalysis"`
	Mistakes           []string             `json:"mistakes"`
	QuestionCount      int                  `json:"questionCount"`
}

// QuestionView is one entry of the per-question tab.
type QuestionView struct {
	Index    int                     `json:"index"`
	Total    int                     `json:"total"`
	Feedback models.QuestionFeedback `json:"feedback"`
}

// MirrorEntry places the literal answer beside the expert rewrite.
type MirrorEntry struct {
	Index            int    `json:"index"`
	Question         string `json:"question"`
	OriginalResponse string `json:"originalResponse"`
	IdealResponse    string `json:"idealResponse"`
}

// Presenter is a read-only view over one SessionRecord. It copies the record on construction.
type Presenter struct {
	record models.SessionRecord
}

func NewPresenter(record models.SessionRecord) *Presenter {
	qs := make([]models.QuestionFeedback, len(record.Questions))
	copy(qs, record.Questions)
	record.Questions = qs
	record.Mistakes = append([]string{}, record.Mistakes...)
	return &Presenter{record: record}
}

func (p *Presenter) Record() models.SessionRecord {
	return p.record
}

func (p *Presenter) Overview() Overview {
	return Overview{
		SessionID:          p.record.ID,
		Timestamp:          p.record.Timestamp,
		Config:             p.record.Config,
		OverallScore:       models.ClampScore(float64(p.record.OverallScore)),
		OverallSummary:     p.record.OverallSummary,
		FillerWordAnalysis: p.record.FillerWordAnalysis,
		Mistakes:           append([]string{}, p.record.Mistakes...),
		QuestionCount:      len(p.record.Questions),
	}
}

// Question returns the feedback for the zero-based index i.
func (p *Presenter) Question(i int) (QuestionView, error) {
	if i < 0 || i >= len(p.record.Questions) {
		return QuestionView{}, fmt.Errorf("%w: %d of %d", ErrQuestionOutOfRange, i, len(p.record.Questions))
	}
	fb := p.record.Questions[i]
	fb.Highlights = append([]models.Highlight{}, fb.Highlights...)
	return QuestionView{Index: i, Total: len(p.record.Questions), Feedback: fb}, nil
}

func (p *Presenter) Mirror() []MirrorEntry {
	out := make([]MirrorEntry, 0, len(p.record.Questions))
	for i, q := range p.record.Questions {
		out = append(out, MirrorEntry{
			Index:            i,
			Question:         q.Question,
			OriginalResponse: q.OriginalResponse,
			IdealResponse:    q.IdealResponse,
		})
	}
	return out
}

// TrendPoint is one session on the dashboard score chart.
type TrendPoint struct {
	Label     string `json:"label"`
	SessionID string `json:"sessionId"`
	Timestamp int64  `json:"timestamp"`
	Score     int    `json:"score"`
}

type ProgressStats struct {
	Sessions     int          `json:"sessions"`
	AverageScore int          `json:"averageScore"`
	Trend        []TrendPoint `json:"trend"`
}

// Progress summarizes a user's history. The trend runs oldest first regardless of input order.
func Progress(records []models.SessionRecord) ProgressStats {
	stats := ProgressStats{Sessions: len(records), Trend: []TrendPoint{}}
	if len(records) == 0 {
		return stats
	}

	ordered := make([]models.SessionRecord, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Timestamp < ordered[j].Timestamp })

	total := 0
	for i, r := range ordered {
		score := models.ClampScore(float64(r.OverallScore))
		total += score
		stats.Trend = append(stats.Trend, TrendPoint{
			Label:     fmt.Sprintf("S%d", i+1),
			SessionID: r.ID,
			Timestamp: r.Timestamp,
			Score:     score,
		})
	}
	stats.AverageScore = int(math.Round(float64(total) / float64(len(ordered))))
	return stats
}
