package stores

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/colonyops/cueline/internal/core/schedule"
	"github.com/colonyops/cueline/internal/data/db"
)

// SlotStore implements schedule.Store using SQLite.
type SlotStore struct {
	db *db.DB
}

var _ schedule.Store = (*SlotStore)(nil)

// NewSlotStore creates a new SQLite-backed slot store.
func NewSlotStore(db *db.DB) *SlotStore {
	return &SlotStore{db: db}
}

const slotColumns = "id, name, planned_minutes, member1_id, member2_id, member3_id, sort_order, actual_seconds, completed_at, created_at"

// Create inserts a slot with the given order value and returns it with its id set.
func (s *SlotStore) Create(ctx context.Context, slot schedule.Slot) (schedule.Slot, error) {
	res, err := s.db.Conn().ExecContext(ctx,
		`INSERT INTO slots (name, planned_minutes, member1_id, member2_id, member3_id, sort_order, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		slot.Name, slot.PlannedMinutes, slot.Member1ID, slot.Member2ID, slot.Member3ID, slot.Order, slot.CreatedAt.UnixNano(),
	)
	if err != nil {
		return schedule.Slot{}, fmt.Errorf("insert slot: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return schedule.Slot{}, fmt.Errorf("read slot id: %w", err)
	}

	slot.ID = id
	return slot, nil
}

// Get returns a slot by id. Returns schedule.ErrNotFound if not found.
func (s *SlotStore) Get(ctx context.Context, id int64) (schedule.Slot, error) {
	row := s.db.Conn().QueryRowContext(ctx,
		"SELECT "+slotColumns+" FROM slots WHERE id = ?", id)

	slot, err := scanSlot(row)
	if IsNotFoundError(err) {
		return schedule.Slot{}, schedule.ErrNotFound
	}
	if err != nil {
		return schedule.Slot{}, fmt.Errorf("get slot: %w", err)
	}

	return slot, nil
}

// List returns all slots ordered by their sequence position.
func (s *SlotStore) List(ctx context.Context) ([]schedule.Slot, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		"SELECT "+slotColumns+" FROM slots ORDER BY sort_order ASC")
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var slots []schedule.Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, slot)
	}

	return slots, rows.Err()
}

// Update rewrites the mutable fields of a slot.
func (s *SlotStore) Update(ctx context.Context, slot schedule.Slot) error {
	res, err := s.db.Conn().ExecContext(ctx,
		`UPDATE slots SET name = ?, planned_minutes = ?, member1_id = ?, member2_id = ?, member3_id = ?
		 WHERE id = ?`,
		slot.Name, slot.PlannedMinutes, slot.Member1ID, slot.Member2ID, slot.Member3ID, slot.ID,
	)
	if err != nil {
		return fmt.Errorf("update slot: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update slot: %w", err)
	}
	if n == 0 {
		return schedule.ErrNotFound
	}

	return nil
}

// Delete removes a slot and compacts the order values after it by one.
func (s *SlotStore) Delete(ctx context.Context, id int64) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var order int
		err := tx.QueryRowContext(ctx, "SELECT sort_order FROM slots WHERE id = ?", id).Scan(&order)
		if IsNotFoundError(err) {
			return schedule.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("find slot order: %w", err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM slots WHERE id = ?", id); err != nil {
			return fmt.Errorf("delete slot: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			"UPDATE slots SET sort_order = sort_order - 1 WHERE sort_order > ?", order); err != nil {
			return fmt.Errorf("compact slot order: %w", err)
		}

		return nil
	})
}

// Reorder atomically assigns order 1..n following the given id sequence.
// Callers are responsible for verifying the id set matches the stored set.
func (s *SlotStore) Reorder(ctx context.Context, ids []int64) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		for i, id := range ids {
			res, err := tx.ExecContext(ctx,
				"UPDATE slots SET sort_order = ? WHERE id = ?", i+1, id)
			if err != nil {
				return fmt.Errorf("reorder slot %d: %w", id, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("reorder slot %d: %w", id, err)
			}
			if n == 0 {
				return schedule.ErrNotFound
			}
		}
		return nil
	})
}

// NextPending returns the first incomplete slot ordered after afterOrder.
// Returns schedule.ErrNotFound when none remain.
func (s *SlotStore) NextPending(ctx context.Context, afterOrder int) (schedule.Slot, error) {
	row := s.db.Conn().QueryRowContext(ctx,
		"SELECT "+slotColumns+` FROM slots
		 WHERE completed_at IS NULL AND sort_order > ?
		 ORDER BY sort_order ASC LIMIT 1`, afterOrder)

	slot, err := scanSlot(row)
	if IsNotFoundError(err) {
		return schedule.Slot{}, schedule.ErrNotFound
	}
	if err != nil {
		return schedule.Slot{}, fmt.Errorf("next pending slot: %w", err)
	}

	return slot, nil
}

// MarkCompleted stamps a slot with its actual duration and completion time.
func (s *SlotStore) MarkCompleted(ctx context.Context, id int64, actualSeconds int, at time.Time) error {
	res, err := s.db.Conn().ExecContext(ctx,
		"UPDATE slots SET actual_seconds = ?, completed_at = ? WHERE id = ?",
		actualSeconds, at.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("mark slot completed: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark slot completed: %w", err)
	}
	if n == 0 {
		return schedule.ErrNotFound
	}

	return nil
}

// DeleteAll removes every slot and purges notification records in the same
// transaction, returning the number of slots deleted.
func (s *SlotStore) DeleteAll(ctx context.Context) (int64, error) {
	var deleted int64
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM slots")
		if err != nil {
			return fmt.Errorf("delete slots: %w", err)
		}

		deleted, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete slots: %w", err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM notifications"); err != nil {
			return fmt.Errorf("purge notification records: %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return deleted, nil
}

// Count returns the total number of slots.
func (s *SlotStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.Conn().QueryRowContext(ctx, "SELECT COUNT(*) FROM slots").Scan(&count); err != nil {
		return 0, fmt.Errorf("count slots: %w", err)
	}
	return count, nil
}

// CountIncomplete returns the number of slots not yet completed.
func (s *SlotStore) CountIncomplete(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.Conn().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM slots WHERE completed_at IS NULL").Scan(&count); err != nil {
		return 0, fmt.Errorf("count incomplete slots: %w", err)
	}
	return count, nil
}

// MaxOrder returns the highest order value in use, or 0 when empty.
func (s *SlotStore) MaxOrder(ctx context.Context) (int, error) {
	var max sql.NullInt64
	if err := s.db.Conn().QueryRowContext(ctx,
		"SELECT MAX(sort_order) FROM slots").Scan(&max); err != nil {
		return 0, fmt.Errorf("max slot order: %w", err)
	}
	return int(max.Int64), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSlot(row rowScanner) (schedule.Slot, error) {
	var (
		slot        schedule.Slot
		actual      sql.NullInt64
		completedAt sql.NullInt64
		createdAt   int64
	)

	err := row.Scan(
		&slot.ID, &slot.Name, &slot.PlannedMinutes,
		&slot.Member1ID, &slot.Member2ID, &slot.Member3ID,
		&slot.Order, &actual, &completedAt, &createdAt,
	)
	if err != nil {
		return schedule.Slot{}, err
	}

	if actual.Valid {
		v := int(actual.Int64)
		slot.ActualSeconds = &v
	}
	if completedAt.Valid {
		t := time.Unix(0, completedAt.Int64)
		slot.CompletedAt = &t
	}
	slot.CreatedAt = time.Unix(0, createdAt)

	return slot, nil
}
