package paymentwatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbpkg "github.com/angelmondragon/storefront-backend/pkg/db"
)

// MemoryMarkerStore keeps the marker for the life of the process.
type MemoryMarkerStore struct {
	mu     sync.Mutex
	marker *Marker
}

// NewMemoryMarkerStore returns an empty store.
func NewMemoryMarkerStore() *MemoryMarkerStore {
	return &MemoryMarkerStore{}
}

// Load returns a copy of the marker, or nil when none is set.
func (s *MemoryMarkerStore) Load(ctx context.Context) (*Marker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.marker == nil {
		return nil, nil
	}
	clone := *s.marker
	return &clone, nil
}

// Save replaces any existing marker.
func (s *MemoryMarkerStore) Save(ctx context.Context, marker Marker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marker = &marker
	return nil
}

// Clear drops the marker. Clearing an empty store is not an error.
func (s *MemoryMarkerStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marker = nil
	return nil
}

const markerSlot = 1

const markerSchema = `
CREATE TABLE IF NOT EXISTS pending_payment_markers (
  slot INTEGER PRIMARY KEY,
  order_id TEXT NOT NULL,
  reference TEXT NOT NULL,
  is_retry INTEGER NOT NULL DEFAULT 0,
  started_at DATETIME NOT NULL
);`

type markerRow struct {
	Slot      int       `gorm:"column:slot;primaryKey;autoIncrement:false"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:text"`
	Reference string    `gorm:"column:reference"`
	IsRetry   bool      `gorm:"column:is_retry"`
	StartedAt time.Time `gorm:"column:started_at"`
}

func (markerRow) TableName() string { return "pending_payment_markers" }

// SQLiteMarkerStore persists the marker in the client's local database so a
// restarted app resumes polling.
type SQLiteMarkerStore struct {
	db *gorm.DB
}

// OpenSQLiteMarkerStore opens (or creates) the marker file at path.
func OpenSQLiteMarkerStore(path string) (*SQLiteMarkerStore, error) {
	if path == "" {
		return nil, errors.New("marker path required")
	}
	conn, err := dbpkg.Open(sqlite.Open(path))
	if err != nil {
		return nil, err
	}
	return NewSQLiteMarkerStore(conn)
}

// NewSQLiteMarkerStore prepares the marker table on an open connection.
func NewSQLiteMarkerStore(db *gorm.DB) (*SQLiteMarkerStore, error) {
	if db == nil {
		return nil, errors.New("db required")
	}
	if err := db.Exec(markerSchema).Error; err != nil {
		return nil, err
	}
	return &SQLiteMarkerStore{db: db}, nil
}

// Load reads the single marker row; no row is (nil, nil).
func (s *SQLiteMarkerStore) Load(ctx context.Context) (*Marker, error) {
	var row markerRow
	err := s.db.WithContext(ctx).Where("slot = ?", markerSlot).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &Marker{
		OrderID:   row.OrderID,
		Reference: row.Reference,
		IsRetry:   row.IsRetry,
		StartedAt: row.StartedAt,
	}, nil
}

// Save upserts the marker row.
func (s *SQLiteMarkerStore) Save(ctx context.Context, marker Marker) error {
	row := markerRow{
		Slot:      markerSlot,
		OrderID:   marker.OrderID,
		Reference: marker.Reference,
		IsRetry:   marker.IsRetry,
		StartedAt: marker.StartedAt.UTC(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "slot"}},
			UpdateAll: true,
		}).
		Create(&row).Error
}

// Clear deletes the marker row.
func (s *SQLiteMarkerStore) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).Where("slot = ?", markerSlot).Delete(&markerRow{}).Error
}

// Close releases the underlying connection.
func (s *SQLiteMarkerStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
