package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// EnrolmentRepository persists the enrolment edges owned by this engine.
// The roster_enrolments table itself is the provenance marker: every row in
// it was created by a sync pass, never by interactive enrolment.
type EnrolmentRepository struct {
	db *sqlx.DB
}

// NewEnrolmentRepository constructs the repository.
func NewEnrolmentRepository(db *sqlx.DB) *EnrolmentRepository {
	return &EnrolmentRepository{db: db}
}

// ListUserIDs returns the users currently enrolled through an instance.
func (r *EnrolmentRepository) ListUserIDs(ctx context.Context, instanceID string) ([]string, error) {
	const query = `SELECT user_id FROM roster_enrolments WHERE instance_id = $1`
	var userIDs []string
	if err := r.db.SelectContext(ctx, &userIDs, query, instanceID); err != nil {
		return nil, fmt.Errorf("list enrolments: %w", err)
	}
	return userIDs, nil
}

// Enrol records an enrolment edge. Enrolling an already-enrolled user is a
// no-op, so concurrent duplicate application is safe.
func (r *EnrolmentRepository) Enrol(ctx context.Context, instanceID, userID string) error {
	const query = `INSERT INTO roster_enrolments (instance_id, user_id, created_at)
        VALUES ($1, $2, $3) ON CONFLICT (instance_id, user_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, instanceID, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("enrol user: %w", err)
	}
	return nil
}

// Unenrol removes an enrolment edge. Removing an absent edge is a no-op.
func (r *EnrolmentRepository) Unenrol(ctx context.Context, instanceID, userID string) error {
	const query = `DELETE FROM roster_enrolments WHERE instance_id = $1 AND user_id = $2`
	if _, err := r.db.ExecContext(ctx, query, instanceID, userID); err != nil {
		return fmt.Errorf("unenrol user: %w", err)
	}
	return nil
}

// DeleteAllForInstance removes every enrolment edge of one instance.
func (r *EnrolmentRepository) DeleteAllForInstance(ctx context.Context, instanceID string) (int64, error) {
	const query = `DELETE FROM roster_enrolments WHERE instance_id = $1`
	res, err := r.db.ExecContext(ctx, query, instanceID)
	if err != nil {
		return 0, fmt.Errorf("delete instance enrolments: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete instance enrolments: %w", err)
	}
	return affected, nil
}
