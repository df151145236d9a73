package stores

import (
	"context"
	"fmt"
	"time"

	"github.com/colonyops/cueline/internal/core/roster"
	"github.com/colonyops/cueline/internal/data/db"
)

// MemberStore implements roster.Store using SQLite.
type MemberStore struct {
	db *db.DB
}

var _ roster.Store = (*MemberStore)(nil)

// NewMemberStore creates a new SQLite-backed member store.
func NewMemberStore(db *db.DB) *MemberStore {
	return &MemberStore{db: db}
}

const memberColumns = "id, name, line_user_id, is_active, created_at"

// Create inserts a member and returns it with its id set.
func (s *MemberStore) Create(ctx context.Context, m roster.Member) (roster.Member, error) {
	res, err := s.db.Conn().ExecContext(ctx,
		"INSERT INTO members (name, line_user_id, is_active, created_at) VALUES (?, ?, ?, ?)",
		m.Name, m.LineUserID, m.Active, m.CreatedAt.UnixNano())
	if err != nil {
		return roster.Member{}, fmt.Errorf("insert member: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return roster.Member{}, fmt.Errorf("read member id: %w", err)
	}

	m.ID = id
	return m, nil
}

// Get returns a member by id. Returns roster.ErrNotFound if not found.
func (s *MemberStore) Get(ctx context.Context, id int64) (roster.Member, error) {
	row := s.db.Conn().QueryRowContext(ctx,
		"SELECT "+memberColumns+" FROM members WHERE id = ?", id)
	return s.scanOne(row)
}

// GetByName returns an active member by exact name match.
func (s *MemberStore) GetByName(ctx context.Context, name string) (roster.Member, error) {
	row := s.db.Conn().QueryRowContext(ctx,
		"SELECT "+memberColumns+" FROM members WHERE name = ? AND is_active = 1", name)
	return s.scanOne(row)
}

// GetByLineUserID returns the active member linked to the given LINE account.
func (s *MemberStore) GetByLineUserID(ctx context.Context, lineUserID string) (roster.Member, error) {
	row := s.db.Conn().QueryRowContext(ctx,
		"SELECT "+memberColumns+" FROM members WHERE line_user_id = ? AND is_active = 1", lineUserID)
	return s.scanOne(row)
}

// ListActive returns all active members ordered by name.
func (s *MemberStore) ListActive(ctx context.Context) ([]roster.Member, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		"SELECT "+memberColumns+" FROM members WHERE is_active = 1 ORDER BY name ASC")
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var members []roster.Member
	for rows.Next() {
		var (
			m         roster.Member
			createdAt int64
		)
		if err := rows.Scan(&m.ID, &m.Name, &m.LineUserID, &m.Active, &createdAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		m.CreatedAt = time.Unix(0, createdAt)
		members = append(members, m)
	}

	return members, rows.Err()
}

// SetLineUserID links (or with an empty id, unlinks) a member's LINE account.
func (s *MemberStore) SetLineUserID(ctx context.Context, id int64, lineUserID string) error {
	res, err := s.db.Conn().ExecContext(ctx,
		"UPDATE members SET line_user_id = ? WHERE id = ?", lineUserID, id)
	if err != nil {
		return fmt.Errorf("set member line id: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set member line id: %w", err)
	}
	if n == 0 {
		return roster.ErrNotFound
	}

	return nil
}

func (s *MemberStore) scanOne(row rowScanner) (roster.Member, error) {
	var (
		m         roster.Member
		createdAt int64
	)

	err := row.Scan(&m.ID, &m.Name, &m.LineUserID, &m.Active, &createdAt)
	if IsNotFoundError(err) {
		return roster.Member{}, roster.ErrNotFound
	}
	if err != nil {
		return roster.Member{}, fmt.Errorf("get member: %w", err)
	}

	m.CreatedAt = time.Unix(0, createdAt)
	return m, nil
}
