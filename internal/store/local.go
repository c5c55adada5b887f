package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/danchettos12/EntrevistIA/internal/kv"
	"github.com/danchettos12/EntrevistIA/internal/models"
	"github.com/rs/xid"
	"go.uber.org/zap"
)

// SessionsKey holds every local user's records in one list.
const SessionsKey = "entrevistia_sessions"

// LocalStore keeps sessions in the local key-value store. Writes are serialized within
// this process only; a second process sharing the file can still lose updates.
type LocalStore struct {
	kv     *kv.Store
	logger *zap.Logger
	now    func() time.Time

	mu sync.Mutex
}

func NewLocalStore(store *kv.Store, logger *zap.Logger) *LocalStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalStore{kv: store, logger: logger, now: time.Now}
}

func (s *LocalStore) Backend() string { return "local" }

func (s *LocalStore) Ping(ctx context.Context) error {
	return s.kv.Ping(ctx)
}

func (s *LocalStore) CreateSession(ctx context.Context, record models.SessionRecord) (*models.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll(ctx)
	if err != nil {
		return nil, err
	}

	stored := record
	stored.ID = xid.New().String()
	stored.Timestamp = s.now().UnixMilli()
	if stored.Questions == nil {
		stored.Questions = []models.QuestionFeedback{}
	}
	if stored.Mistakes == nil {
		stored.Mistakes = []string{}
	}

	all = append([]models.SessionRecord{stored}, all...)
	if err := kv.SetJSON(ctx, s.kv, SessionsKey, all); err != nil {
		s.logger.Error("Failed to write local sessions", zap.String("user_id", record.UserID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return &stored, nil
}

func (s *LocalStore) ListSessionsForUser(ctx context.Context, userID string) ([]models.SessionRecord, error) {
	s.mu.Lock()
	all, err := s.readAll(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([]models.SessionRecord, 0)
	for _, rec := range all {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *LocalStore) readAll(ctx context.Context) ([]models.SessionRecord, error) {
	var all []models.SessionRecord
	if err := kv.GetJSON(ctx, s.kv, SessionsKey, &all); err != nil {
		s.logger.Error("Failed to read local sessions", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return all, nil
}
