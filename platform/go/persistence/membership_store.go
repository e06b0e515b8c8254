package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// MembershipsTable links identity provider subjects to schools.
const MembershipsTable = "school_memberships"

// Membership is a row of the memberships table.
type Membership struct {
	UserID    string    `db:"user_id"`
	SchoolID  int64     `db:"school_id"`
	Role      string    `db:"role"`
	CreatedAt time.Time `db:"created_at"`
}

// MembershipStore reads and writes school memberships in the shared namespace.
type MembershipStore struct {
	exec *ScopedExecutor
}

func NewMembershipStore(exec *ScopedExecutor) *MembershipStore {
	if exec == nil {
		panic("MembershipStore requires executor")
	}
	return &MembershipStore{exec: exec}
}

// IsMember reports whether userID holds any role in schoolID.
func (s *MembershipStore) IsMember(ctx context.Context, userID string, schoolID int64) (bool, error) {
	var exists bool
	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE user_id = $1 AND school_id = $2)", MembershipsTable)
	err := s.exec.QueryOne(ForShared(ctx), func(row pgx.Row) error { return row.Scan(&exists) }, query, userID, schoolID)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return exists, nil
}

// Grant adds or updates the role userID holds in schoolID.
func (s *MembershipStore) Grant(ctx context.Context, userID string, schoolID int64, role string) (Membership, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Membership{}, errors.New("user id is required")
	}
	if role = strings.TrimSpace(role); role == "" {
		role = "member"
	}

	query := fmt.Sprintf(`
        INSERT INTO %s (user_id, school_id, role)
        VALUES ($1, $2, $3)
        ON CONFLICT (user_id, school_id) DO UPDATE SET role = EXCLUDED.role
        RETURNING user_id, school_id, role, created_at
    `, MembershipsTable)
	return CollectOne[Membership](ForShared(ctx), s.exec, query, userID, schoolID, role)
}

// Revoke removes userID from schoolID. Revoking a missing membership is not an error.
func (s *MembershipStore) Revoke(ctx context.Context, userID string, schoolID int64) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE user_id = $1 AND school_id = $2", MembershipsTable)
	if _, err := s.exec.Execute(ForShared(ctx), query, userID, schoolID); err != nil {
		return fmt.Errorf("revoke membership: %w", err)
	}
	return nil
}

// ListForUser returns every membership held by userID.
func (s *MembershipStore) ListForUser(ctx context.Context, userID string) ([]Membership, error) {
	query := fmt.Sprintf("SELECT user_id, school_id, role, created_at FROM %s WHERE user_id = $1 ORDER BY school_id", MembershipsTable)
	return CollectMany[Membership](ForShared(ctx), s.exec, query, userID)
}
