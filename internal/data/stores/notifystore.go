package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/colonyops/cueline/internal/core/milestone"
	"github.com/colonyops/cueline/internal/data/db"
)

// NotifyStore implements milestone.Store using SQLite.
type NotifyStore struct {
	db *db.DB
}

var _ milestone.Store = (*NotifyStore)(nil)

// NewNotifyStore creates a new SQLite-backed notification record store.
func NewNotifyStore(db *db.DB) *NotifyStore {
	return &NotifyStore{db: db}
}

// Create inserts a record. The unique index on (slot_id, kind) turns a
// repeated insert into milestone.ErrDuplicate.
func (s *NotifyStore) Create(ctx context.Context, rec milestone.Record) error {
	recipients, err := json.Marshal(rec.Recipients)
	if err != nil {
		return fmt.Errorf("marshal recipients: %w", err)
	}

	_, err = s.db.Conn().ExecContext(ctx,
		"INSERT INTO notifications (slot_id, kind, recipients, message, sent_at) VALUES (?, ?, ?, ?, ?)",
		rec.SlotID, string(rec.Kind), string(recipients), rec.Message, rec.SentAt.UnixNano())
	if IsUniqueViolation(err) {
		return milestone.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert notification record: %w", err)
	}

	return nil
}

// Exists reports whether a record exists for the (slot, kind) pair.
func (s *NotifyStore) Exists(ctx context.Context, slotID int64, kind milestone.Kind) (bool, error) {
	var count int64
	err := s.db.Conn().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM notifications WHERE slot_id = ? AND kind = ?",
		slotID, string(kind)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check notification record: %w", err)
	}
	return count > 0, nil
}

// List returns all records, newest first.
func (s *NotifyStore) List(ctx context.Context) ([]milestone.Record, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		"SELECT id, slot_id, kind, recipients, message, sent_at FROM notifications ORDER BY sent_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list notification records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []milestone.Record
	for rows.Next() {
		var (
			rec        milestone.Record
			kind       string
			recipients string
			sentAt     int64
		)
		if err := rows.Scan(&rec.ID, &rec.SlotID, &kind, &recipients, &rec.Message, &sentAt); err != nil {
			return nil, fmt.Errorf("scan notification record: %w", err)
		}

		rec.Kind = milestone.Kind(kind)
		rec.SentAt = time.Unix(0, sentAt)
		if err := json.Unmarshal([]byte(recipients), &rec.Recipients); err != nil {
			return nil, fmt.Errorf("unmarshal recipients: %w", err)
		}

		records = append(records, rec)
	}

	return records, rows.Err()
}

// Clear deletes every record.
func (s *NotifyStore) Clear(ctx context.Context) error {
	if _, err := s.db.Conn().ExecContext(ctx, "DELETE FROM notifications"); err != nil {
		return fmt.Errorf("clear notification records: %w", err)
	}
	return nil
}
