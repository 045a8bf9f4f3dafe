package eventstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// storedEvent is the GORM model for one row of the event log.
// The autoincrement primary key doubles as the global feed position; the
// unique (stream_id, version) index makes concurrent appends to the same
// stream lose deterministically.
type storedEvent struct {
	GlobalPosition int64     `gorm:"primaryKey;autoIncrement;column:global_position"`
	StreamID       string    `gorm:"column:stream_id;size:128;not null;uniqueIndex:idx_stream_version,priority:1"`
	Version        int64     `gorm:"column:version;not null;uniqueIndex:idx_stream_version,priority:2"`
	Type           string    `gorm:"column:type;size:128;not null"`
	Payload        []byte    `gorm:"column:payload;not null"`
	Timestamp      time.Time `gorm:"column:timestamp;not null"`
}

// TableName returns the table name for GORM
func (storedEvent) TableName() string {
	return "events"
}

// projectionCheckpoint is the GORM model for a projector's durable position
type projectionCheckpoint struct {
	ProjectionName string    `gorm:"column:projection_name;primaryKey;size:128"`
	Position       int64     `gorm:"column:position;not null"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

// TableName returns the table name for GORM
func (projectionCheckpoint) TableName() string {
	return "projection_checkpoints"
}

// GormStore implements Store and CheckpointStore on a GORM-managed
// database. SQLite is the default driver; the schema is portable.
type GormStore struct {
	db         *gorm.DB
	serializer *Serializer
}

// OpenSQLite opens (or creates) a SQLite-backed event store at the given
// DSN. Use ":memory:" for an ephemeral store in tests.
func OpenSQLite(dsn string, serializer *Serializer) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open event store database: %w", err)
	}
	return NewGormStore(db, serializer)
}

// NewGormStore creates a store on an existing GORM connection and
// migrates the event log and checkpoint tables
func NewGormStore(db *gorm.DB, serializer *Serializer) (*GormStore, error) {
	if err := db.AutoMigrate(&storedEvent{}, &projectionCheckpoint{}); err != nil {
		return nil, fmt.Errorf("failed to migrate event store schema: %w", err)
	}
	return &GormStore{db: db, serializer: serializer}, nil
}

// Append appends events to a stream with optimistic concurrency
func (s *GormStore) Append(ctx context.Context, streamID string, expectedVersion int64, events []shared.DomainEvent) (int64, error) {
	if len(events) == 0 {
		return expectedVersion, nil
	}

	rows := make([]storedEvent, 0, len(events))
	for i, event := range events {
		payload, err := s.serializer.Serialize(event)
		if err != nil {
			return 0, err
		}
		rows = append(rows, storedEvent{
			StreamID:  streamID,
			Version:   expectedVersion + int64(i) + 1,
			Type:      event.EventType(),
			Payload:   payload,
			Timestamp: event.OccurredAt(),
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current int64
		if err := tx.Model(&storedEvent{}).
			Where("stream_id = ?", streamID).
			Count(&current).Error; err != nil {
			return err
		}
		if current != expectedVersion {
			return shared.ErrConcurrencyConflict
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		// A concurrent writer can slip between the count and the insert;
		// the unique (stream_id, version) index catches it.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return 0, shared.ErrConcurrencyConflict
		}
		return 0, err
	}

	return expectedVersion + int64(len(events)), nil
}

// Read returns the stream's events with version > fromVersion
func (s *GormStore) Read(ctx context.Context, streamID string, fromVersion int64) ([]RecordedEvent, error) {
	var rows []storedEvent
	err := s.db.WithContext(ctx).
		Where("stream_id = ? AND version > ?", streamID, fromVersion).
		Order("version ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toRecorded(rows), nil
}

// ReadAll returns events across all streams after the given global position
func (s *GormStore) ReadAll(ctx context.Context, afterPosition int64, limit int) ([]RecordedEvent, error) {
	query := s.db.WithContext(ctx).
		Where("global_position > ?", afterPosition).
		Order("global_position ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []storedEvent
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toRecorded(rows), nil
}

// Load returns the saved position for a projection, 0 when absent
func (s *GormStore) Load(ctx context.Context, projectionName string) (int64, error) {
	var checkpoint projectionCheckpoint
	err := s.db.WithContext(ctx).
		Where("projection_name = ?", projectionName).
		First(&checkpoint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return checkpoint.Position, nil
}

// Save durably records the projection's position
func (s *GormStore) Save(ctx context.Context, projectionName string, position int64) error {
	checkpoint := projectionCheckpoint{
		ProjectionName: projectionName,
		Position:       position,
		UpdatedAt:      time.Now(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "projection_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"position", "updated_at"}),
		}).
		Create(&checkpoint).Error
}

func toRecorded(rows []storedEvent) []RecordedEvent {
	recs := make([]RecordedEvent, len(rows))
	for i, row := range rows {
		recs[i] = RecordedEvent{
			StreamID:       row.StreamID,
			Version:        row.Version,
			GlobalPosition: row.GlobalPosition,
			Type:           row.Type,
			Payload:        row.Payload,
			Timestamp:      row.Timestamp,
		}
	}
	return recs
}

// Ensure GormStore implements both contracts
var (
	_ Store           = (*GormStore)(nil)
	_ CheckpointStore = (*GormStore)(nil)
)
