package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-roster-sync/internal/models"
)

// IdentityRepository resolves registrar identities against local user
// accounts. Lookup only; this engine never provisions users.
type IdentityRepository struct {
	db *sqlx.DB
}

// NewIdentityRepository constructs the repository.
func NewIdentityRepository(db *sqlx.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

// LookupUser maps an external student record to a local user ID. The lookup
// is scoped to the registrar-compatible identity provider and matches the
// identity code exactly; when matchName is set the display name must match
// too. Returns sql.ErrNoRows when no account matches.
func (r *IdentityRepository) LookupUser(ctx context.Context, provider, code, displayName string, matchName bool) (string, error) {
	query := `SELECT id FROM users WHERE auth = $1 AND username = $2`
	args := []interface{}{provider, code}
	if matchName {
		query += " AND last_name = $3"
		args = append(args, displayName)
	}
	var userID string
	if err := r.db.GetContext(ctx, &userID, query, args...); err != nil {
		return "", err
	}
	return userID, nil
}

// ListCourseTeachers returns the recognized teachers of a course: users
// authenticated through the given provider holding the teacher role in the
// course context.
func (r *IdentityRepository) ListCourseTeachers(ctx context.Context, courseID, teacherRoleID, provider string) ([]models.Teacher, error) {
	const query = `SELECT u.id AS user_id, u.last_name AS display_name
        FROM role_assignments ra
        JOIN users u ON u.id = ra.user_id
        WHERE ra.context_id = $1 AND ra.role_id = $2 AND u.auth = $3`
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query, courseID, teacherRoleID, provider); err != nil {
		return nil, fmt.Errorf("list course teachers: %w", err)
	}
	return teachers, nil
}
