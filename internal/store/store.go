package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"traffic-analytics/internal/metrics"
	"traffic-analytics/internal/model"
)

// documentRecord holds one identity namespace's analytics document, written
// whole on every save. Revision lets watchers tell their own writes apart
// from another process's.
type documentRecord struct {
	Key       string `gorm:"primaryKey;size:255"`
	Data      []byte
	Revision  int64
	UpdatedAt time.Time
}

func (documentRecord) TableName() string { return "analytics_documents" }

// sessionRecord is the single "who is logged in" row. It is read fresh on
// every Load/Save because the active identity can change between calls.
type sessionRecord struct {
	ID        int `gorm:"primaryKey"`
	Email     string
	UpdatedAt time.Time
}

func (sessionRecord) TableName() string { return "current_session" }

const sessionRowID = 1

// Store persists analytics documents per identity namespace in an embedded
// SQLite database. Persistence is advisory: Save swallows failures and the
// caller's in-memory document stays authoritative.
type Store struct {
	db      *gorm.DB
	path    string
	baseKey string
	log     zerolog.Logger
}

func Open(path, baseKey string, log zerolog.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}

	if err := db.AutoMigrate(&documentRecord{}, &sessionRecord{}); err != nil {
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	return &Store{db: db, path: path, baseKey: baseKey, log: log}, nil
}

// Path returns the database file location, used by the change watcher.
func (s *Store) Path() string { return s.path }

// SetIdentity records the active identity. Subsequent loads and saves land in
// that identity's namespace.
func (s *Store) SetIdentity(email string) error {
	rec := sessionRecord{ID: sessionRowID, Email: email, UpdatedAt: time.Now()}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "updated_at"}),
	}).Create(&rec).Error
}

// ClearIdentity reverts to the shared namespace.
func (s *Store) ClearIdentity() error {
	return s.db.Delete(&sessionRecord{}, sessionRowID).Error
}

// CurrentIdentity reads the session row. Missing row means anonymous.
func (s *Store) CurrentIdentity() string {
	var rec sessionRecord
	err := s.db.First(&rec, sessionRowID).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Warn().Err(err).Msg("session lookup failed, using shared namespace")
		}
		return ""
	}
	return rec.Email
}

// Namespace derives the document key for the current identity, resolved
// fresh on every call.
func (s *Store) Namespace() string {
	if email := s.CurrentIdentity(); email != "" {
		return s.baseKey + "_" + email
	}
	return s.baseKey
}

// Load reads the document for the current identity. Absent, corrupt, or
// damaged documents come back as normalized defaults, never as an error.
func (s *Store) Load() *model.AnalyticsDocument {
	key := s.Namespace()

	var rec documentRecord
	err := s.db.First(&rec, "key = ?", key).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Warn().Err(err).Str("namespace", key).Msg("document read failed, starting fresh")
		}
		return model.NewDocument()
	}

	doc := model.NewDocument()
	if err := json.Unmarshal(rec.Data, doc); err != nil {
		s.log.Warn().Err(err).Str("namespace", key).Msg("corrupt document, starting fresh")
		return model.NewDocument()
	}
	doc.Normalize()
	return doc
}

// Save serializes the full document and writes it under the current identity.
// Failures are logged and swallowed; the returned revision is 0 on failure.
func (s *Store) Save(doc *model.AnalyticsDocument) int64 {
	key := s.Namespace()

	data, err := json.Marshal(doc)
	if err != nil {
		metrics.StoreSaveFailures.Inc()
		s.log.Error().Err(err).Str("namespace", key).Msg("document serialization failed")
		return 0
	}

	rec := documentRecord{Key: key, Data: data, Revision: 1, UpdatedAt: time.Now()}
	// Upsert and revision read share one transaction so a concurrent writer
	// landing in between cannot hand us its revision as our own.
	err = s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "key"}},
			DoUpdates: clause.Assignments(map[string]any{
				"data":       data,
				"revision":   gorm.Expr("revision + 1"),
				"updated_at": rec.UpdatedAt,
			}),
		}).Create(&rec).Error
		if err != nil {
			return err
		}
		return tx.First(&rec, "key = ?", key).Error
	})
	if err != nil {
		metrics.StoreSaveFailures.Inc()
		s.log.Error().Err(err).Str("namespace", key).Msg("document write failed")
		return 0
	}

	return rec.Revision
}

// Revision reports the stored revision for the current identity's document.
func (s *Store) Revision() int64 {
	var rec documentRecord
	err := s.db.Select("revision").First(&rec, "key = ?", s.Namespace()).Error
	if err != nil {
		return 0
	}
	return rec.Revision
}
