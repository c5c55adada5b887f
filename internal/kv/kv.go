package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var ErrNotFound = errors.New("key not found")

// Entry is one stored key. Values are opaque serialized blobs.
type Entry struct {
	Key   string `gorm:"column:entry_key;primaryKey;size:191"`
	Value string `gorm:"column:entry_value;type:text;not null"`
}

func (Entry) TableName() string {
	return "kv_entries"
}

// Store is a small string key-value store on top of a relational database.
type Store struct {
	DB *gorm.DB
}

// Open opens (or creates) a sqlite-backed store at path.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	return New(db)
}

// New wraps an existing connection and migrates the entries table.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("migrate local store: %w", err)
	}
	return &Store{DB: db}, nil
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var e Entry
	err := s.DB.WithContext(ctx).First(&e, "entry_key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return e.Value, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"entry_value"}),
	}).Create(&Entry{Key: key, Value: value}).Error
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.DB.WithContext(ctx).Delete(&Entry{}, "entry_key = ?", key).Error
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetJSON decodes the value under key into out. A missing key leaves out untouched and returns nil.
func GetJSON(ctx context.Context, s *Store, key string, out any) error {
	raw, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func SetJSON(ctx context.Context, s *Store, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, string(data))
}
