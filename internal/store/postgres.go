package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/danchettos12/EntrevistIA/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SessionRow is the relational shape of a session record.
type SessionRow struct {
	ID                 string         `gorm:"primaryKey;type:varchar(36)"`
	UserID             string         `gorm:"index;not null"`
	Config             datatypes.JSON `gorm:"not null"`
	OverallScore       int            `gorm:"not null;default:0"`
	OverallSummary     string         `gorm:"type:text"`
	FillerWordAnalysis string         `gorm:"type:text"`
	Mistakes           datatypes.JSON
	Questions          datatypes.JSON `gorm:"not null"`
	Timestamp          time.Time      `gorm:"autoCreateTime;index"`
}

func (SessionRow) TableName() string {
	return "sessions"
}

func (r *SessionRow) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// PostgresStore is the remote backend.
type PostgresStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// OpenPostgres connects to dsn and migrates the sessions table.
func OpenPostgres(dsn string, logger *zap.Logger) (*PostgresStore, *gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	s, err := NewPostgresStore(db, logger)
	if err != nil {
		return nil, nil, err
	}
	return s, db, nil
}

func NewPostgresStore(db *gorm.DB, logger *zap.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := db.AutoMigrate(&SessionRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &PostgresStore{db: db, logger: logger}, nil
}

func (s *PostgresStore) Backend() string { return "remote" }

func (s *PostgresStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *PostgresStore) CreateSession(ctx context.Context, record models.SessionRecord) (*models.SessionRecord, error) {
	row, err := toRow(record)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		s.logger.Error("Failed to create session", zap.String("user_id", record.UserID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	stored, err := fromRow(row)
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

func (s *PostgresStore) ListSessionsForUser(ctx context.Context, userID string) ([]models.SessionRecord, error) {
	var rows []SessionRow
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}, Desc: true}).
		Find(&rows).Error
	if err != nil {
		s.logger.Error("Failed to list sessions", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	records := make([]models.SessionRecord, 0, len(rows))
	for i := range rows {
		rec, err := fromRow(&rows[i])
		if err != nil {
			s.logger.Warn("Skipping undecodable session row", zap.String("session_id", rows[i].ID), zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// the id and timestamp are always assigned by the store
func toRow(record models.SessionRecord) (*SessionRow, error) {
	cfg, err := json.Marshal(record.Config)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	questions := record.Questions
	if questions == nil {
		questions = []models.QuestionFeedback{}
	}
	qs, err := json.Marshal(questions)
	if err != nil {
		return nil, fmt.Errorf("encode questions: %w", err)
	}
	mistakes := record.Mistakes
	if mistakes == nil {
		mistakes = []string{}
	}
	ms, err := json.Marshal(mistakes)
	if err != nil {
		return nil, fmt.Errorf("encode mistakes: %w", err)
	}

	return &SessionRow{
		UserID:             record.UserID,
		Config:             datatypes.JSON(cfg),
		OverallScore:       models.ClampScore(float64(record.OverallScore)),
		OverallSummary:     record.OverallSummary,
		FillerWordAnalysis: record.FillerWordAnalysis,
		Mistakes:           datatypes.JSON(ms),
		Questions:          datatypes.JSON(qs),
	}, nil
}

func fromRow(row *SessionRow) (models.SessionRecord, error) {
	rec := models.SessionRecord{
		ID:                 row.ID,
		UserID:             row.UserID,
		Timestamp:          row.Timestamp.UnixMilli(),
		OverallScore:       row.OverallScore,
		OverallSummary:     row.OverallSummary,
		FillerWordAnalysis: row.FillerWordAnalysis,
		Questions:          []models.QuestionFeedback{},
		Mistakes:           []string{},
	}
	if err := json.Unmarshal(row.Config, &rec.Config); err != nil {
		return rec, fmt.Errorf("decode config: %w", err)
	}
	if len(row.Questions) > 0 {
		if err := json.Unmarshal(row.Questions, &rec.Questions); err != nil {
			return rec, fmt.Errorf("decode questions: %w", err)
		}
	}
	if len(row.Mistakes) > 0 {
		if err := json.Unmarshal(row.Mistakes, &rec.Mistakes); err != nil {
			return rec, fmt.Errorf("decode mistakes: %w", err)
		}
	}
	return rec, nil
}
