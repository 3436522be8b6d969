// Package journal persists committed ledger events in a relational store so
// operators can audit escrow and receipt history after the fact.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"cardledger/core/events"
	"cardledger/core/types"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrUnknownDriver is returned by Open for unsupported driver names.
var ErrUnknownDriver = errors.New("journal: unknown driver")

// Entry is one committed event. Seq preserves commit order.
type Entry struct {
	Seq        uint64    `gorm:"primaryKey;autoIncrement"`
	ID         uuid.UUID `gorm:"type:uuid;uniqueIndex"`
	Type       string    `gorm:"index;not null"`
	Subject    string    `gorm:"index"`
	Reference  string    `gorm:"index"`
	Attributes string    `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"index"`
}

// TableName pins the table name independent of gorm's pluralisation.
func (Entry) TableName() string { return "journal_entries" }

// Decode returns the stored attribute map.
func (e Entry) Decode() (map[string]string, error) {
	attrs := make(map[string]string)
	if e.Attributes == "" {
		return attrs, nil
	}
	if err := json.Unmarshal([]byte(e.Attributes), &attrs); err != nil {
		return nil, fmt.Errorf("journal: decode %s: %w", e.ID, err)
	}
	return attrs, nil
}

// Open connects to the journal database.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverSQLite, "":
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	return gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
}

// AutoMigrate creates or updates the journal schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Entry{})
}

// Journal writes committed events. It implements events.Emitter so it can be
// attached to the ledger runtime next to other observers.
type Journal struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

// New migrates the schema and returns a journal over db.
func New(db *gorm.DB, log *slog.Logger) (*Journal, error) {
	if db == nil {
		return nil, errors.New("journal: nil database")
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Journal{db: db, logger: log, now: time.Now}, nil
}

// Emit implements events.Emitter. Emission cannot fail the instruction that
// produced the event, so storage errors are logged and dropped.
func (j *Journal) Emit(evt events.Event) {
	record, ok := evt.(events.Record)
	if !ok || record.Event() == nil {
		return
	}
	if _, err := j.Append(context.Background(), record.Event()); err != nil {
		j.logger.Error("journal append failed",
			slog.String("type", record.EventType()),
			slog.String("error", err.Error()))
	}
}

// Append stores evt and returns the new entry.
func (j *Journal) Append(ctx context.Context, evt *types.Event) (*Entry, error) {
	if evt == nil || evt.Type == "" {
		return nil, errors.New("journal: event type required")
	}
	attrs := evt.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	raw, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("journal: encode attributes: %w", err)
	}
	entry := &Entry{
		ID:         uuid.New(),
		Type:       evt.Type,
		Subject:    subjectOf(attrs),
		Reference:  attrs["reference"],
		Attributes: string(raw),
		CreatedAt:  j.now().UTC(),
	}
	if err := j.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, fmt.Errorf("journal: insert: %w", err)
	}
	return entry, nil
}

func subjectOf(attrs map[string]string) string {
	if v := attrs["escrow"]; v != "" {
		return v
	}
	return attrs["receipt"]
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Type       string
	TypePrefix string
	Subject    string
	Reference  string
	Limit      int
}

// List returns matching entries oldest first.
func (j *Journal) List(ctx context.Context, f Filter) ([]Entry, error) {
	q := j.db.WithContext(ctx).Model(&Entry{})
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.TypePrefix != "" {
		q = q.Where("type LIKE ?", f.TypePrefix+"%")
	}
	if f.Subject != "" {
		q = q.Where("subject = ?", f.Subject)
	}
	if f.Reference != "" {
		q = q.Where("reference = ?", f.Reference)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var out []Entry
	if err := q.Order("seq asc").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of entries of eventType, or all entries when
// eventType is empty.
func (j *Journal) Count(ctx context.Context, eventType string) (int64, error) {
	q := j.db.WithContext(ctx).Model(&Entry{})
	if eventType != "" {
		q = q.Where("type = ?", eventType)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}
