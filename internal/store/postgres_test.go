package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/danchettos12/EntrevistIA/internal/models"
	"github.com/danchettos12/EntrevistIA/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

func sampleRecord(userID string) models.SessionRecord {
	return models.SessionRecord{
		ID:        "client-supplied",
		UserID:    userID,
		Timestamp: 1,
		Config:    models.SessionConfig{Role: "Product Manager", QuestionCount: 1, TimeLimit: 60, Pressure: 50, Focus: 50},
		Questions: []models.QuestionFeedback{{
			Question:         "Q1",
			OriginalResponse: "I led a team of 5 engineers",
			Highlights:       []models.Highlight{{Text: "I led", Type: models.HighlightStrong}},
			StarAnalysis:     models.StarAnalysis{Score: 70},
		}},
		OverallScore:       82,
		OverallSummary:     "good",
		FillerWordAnalysis: "none",
		Mistakes:           []string{"rushed the result"},
	}
}

func TestPostgresStoreCreateAndList(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	s, err := NewPostgresStore(db, zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	stored, err := s.CreateSession(ctx, sampleRecord("u1"))
	require.NoError(t, err)
	assert.NotEqual(t, "client-supplied", stored.ID, "id must be assigned by the store")
	assert.Len(t, stored.ID, 36)
	assert.Greater(t, stored.Timestamp, int64(1), "timestamp must be assigned by the store")
	assert.Equal(t, "Q1", stored.Questions[0].Question)
	assert.Equal(t, models.HighlightStrong, stored.Questions[0].Highlights[0].Type)

	list, err := s.ListSessionsForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, *stored, list[0])

	other, err := s.ListSessionsForUser(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestPostgresStoreListsNewestFirst(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	s, err := NewPostgresStore(db, zap.NewNop())
	require.NoError(t, err)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "new", "mid"} {
		offset := map[string]time.Duration{"old": 0, "mid": time.Hour, "new": 2 * time.Hour}[id]
		row := SessionRow{
			ID:        id,
			UserID:    "u1",
			Config:    datatypes.JSON(`{"role":"r"}`),
			Questions: datatypes.JSON(`[]`),
			Timestamp: base.Add(offset),
		}
		require.NoError(t, db.Create(&row).Error, "row %d", i)
	}

	list, err := s.ListSessionsForUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"new", "mid", "old"}, []string{list[0].ID, list[1].ID, list[2].ID})
	assert.Equal(t, base.Add(2*time.Hour).UnixMilli(), list[0].Timestamp)
	assert.Empty(t, list[2].Mistakes)
}

func TestPostgresStoreReportsUnavailable(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	s, err := NewPostgresStore(db, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, db.Migrator().DropTable(&SessionRow{}))

	_, err = s.CreateSession(context.Background(), sampleRecord("u1"))
	assert.True(t, errors.Is(err, ErrStoreUnavailable), "got %v", err)

	_, err = s.ListSessionsForUser(context.Background(), "u1")
	assert.True(t, errors.Is(err, ErrStoreUnavailable), "got %v", err)
}

func TestToRowClampsScore(t *testing.T) {
	rec := sampleRecord("u1")
	rec.OverallScore = 140
	rec.Mistakes = nil

	row, err := toRow(rec)
	require.NoError(t, err)
	assert.Equal(t, 100, row.OverallScore)
	assert.Equal(t, "", row.ID)
	assert.JSONEq(t, `[]`, string(row.Mistakes))
}
