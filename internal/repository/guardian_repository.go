package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-adp-scheduler/internal/models"
)

// GuardianRepository reads parent to student links.
type GuardianRepository struct {
	db *sqlx.DB
}

// NewGuardianRepository constructs a GuardianRepository.
func NewGuardianRepository(db *sqlx.DB) *GuardianRepository {
	return &GuardianRepository{db: db}
}

// ListChildren returns the students linked to a parent.
func (r *GuardianRepository) ListChildren(ctx context.Context, parentID string) ([]models.Child, error) {
	const query = `SELECT s.id, s.full_name FROM guardians g JOIN students s ON s.id = g.student_id WHERE g.parent_id = $1 ORDER BY s.full_name ASC`
	var children []models.Child
	if err := r.db.SelectContext(ctx, &children, query, parentID); err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	return children, nil
}

// IsGuardian reports whether parentID is linked to studentID.
func (r *GuardianRepository) IsGuardian(ctx context.Context, parentID, studentID string) (bool, error) {
	const query = `SELECT 1 FROM guardians WHERE parent_id = $1 AND student_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, parentID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check guardian: %w", err)
	}
	return true, nil
}
