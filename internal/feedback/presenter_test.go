package feedback

import (
	"errors"
	"testing"

	"github.com/danchettos12/EntrevistIA/internal/models"
)

func sampleRecord() models.SessionRecord {
	return models.SessionRecord{
		ID:        "s1",
		UserID:    "u1",
		Timestamp: 1000,
		Config:    models.DefaultSessionConfig("Product Manager"),
		Questions: []models.QuestionFeedback{
			{Question: "Q1", OriginalResponse: "mi respuesta", IdealResponse: "respuesta experta",
				Highlights: []models.Highlight{{Text: "eh", Type: models.HighlightWeak}}},
			{Question: "Q2", OriginalResponse: "otra", IdealResponse: "mejor"},
		},
		OverallScore:       72,
		OverallSummary:     "Sólido",
		FillerWordAnalysis: "Usa 'eh' a menudo",
		Mistakes:           []string{"Falta de métricas"},
	}
}

func TestPresenter_Overview(t *testing.T) {
	p := NewPresenter(sampleRecord())
	ov := p.Overview()
	if ov.OverallScore != 72 || ov.QuestionCount != 2 || ov.SessionID != "s1" {
		t.Fatalf("unexpected overview: %+v", ov)
	}
	if len(ov.Mistakes) != 1 || ov.Mistakes[0] != "Falta de métricas" {
		t.Fatalf("unexpected mistakes: %v", ov.Mistakes)
	}
}

func TestPresenter_QuestionBounds(t *testing.T) {
	p := NewPresenter(sampleRecord())

	qv, err := p.Question(1)
	if err != nil {
		t.Fatalf("Question(1): %v", err)
	}
	if qv.Feedback.Question != "Q2" || qv.Total != 2 {
		t.Fatalf("unexpected view: %+v", qv)
	}

	for _, i := range []int{-1, 2} {
		if _, err := p.Question(i); !errors.Is(err, ErrQuestionOutOfRange) {
			t.Fatalf("Question(%d): expected ErrQuestionOutOfRange, got %v", i, err)
		}
	}
}

func TestPresenter_DoesNotShareState(t *testing.T) {
	rec := sampleRecord()
	p := NewPresenter(rec)

	rec.Questions[0].Question = "changed"
	rec.Mistakes[0] = "changed"
	if p.Mirror()[0].Question != "Q1" || p.Overview().Mistakes[0] != "Falta de métricas" {
		t.Fatalf("presenter observed caller mutation")
	}

	qv, _ := p.Question(0)
	qv.Feedback.Highlights[0].Text = "changed"
	again, _ := p.Question(0)
	if again.Feedback.Highlights[0].Text != "eh" {
		t.Fatalf("question view leaked internal highlights")
	}
}

func TestPresenter_Mirror(t *testing.T) {
	m := NewPresenter(sampleRecord()).Mirror()
	if len(m) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(m))
	}
	if m[0].OriginalResponse != "mi respuesta" || m[0].IdealResponse != "respuesta experta" || m[1].Index != 1 {
		t.Fatalf("unexpected mirror: %+v", m)
	}
}

func TestProgress(t *testing.T) {
	empty := Progress(nil)
	if empty.Sessions != 0 || empty.AverageScore != 0 || empty.Trend == nil {
		t.Fatalf("unexpected empty stats: %+v", empty)
	}

	// newest first, as the stores return them
	records := []models.SessionRecord{
		{ID: "c", Timestamp: 300, OverallScore: 90},
		{ID: "b", Timestamp: 200, OverallScore: 61},
		{ID: "a", Timestamp: 100, OverallScore: 150},
	}
	stats := Progress(records)
	if stats.Sessions != 3 {
		t.Fatalf("expected 3 sessions, got %d", stats.Sessions)
	}
	// (100 + 61 + 90) / 3 = 83.67
	if stats.AverageScore != 84 {
		t.Fatalf("expected average 84, got %d", stats.AverageScore)
	}
	if stats.Trend[0].SessionID != "a" || stats.Trend[0].Label != "S1" || stats.Trend[0].Score != 100 {
		t.Fatalf("unexpected first trend point: %+v", stats.Trend[0])
	}
	if stats.Trend[2].SessionID != "c" {
		t.Fatalf("trend not chronological: %+v", stats.Trend)
	}
	if records[0].ID != "c" {
		t.Fatalf("Progress reordered the caller's slice")
	}
}
