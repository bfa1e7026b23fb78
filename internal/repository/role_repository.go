package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-roster-sync/internal/models"
)

// RoleRepository manages role assignments in the shared host table. This
// engine only ever touches rows carrying its own provenance component.
type RoleRepository struct {
	db *sqlx.DB
}

// NewRoleRepository constructs the repository.
func NewRoleRepository(db *sqlx.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// Assign grants a role in a course context, tagged with this engine's
// provenance. Re-assigning an existing grant is a no-op.
func (r *RoleRepository) Assign(ctx context.Context, ra models.RoleAssignment) error {
	const query = `INSERT INTO role_assignments (role_id, user_id, context_id, component, item_id)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (role_id, user_id, context_id, component, item_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, ra.RoleID, ra.UserID, ra.ContextID, models.ProvenanceComponent, ra.ItemID); err != nil {
		return fmt.Errorf("assign role: %w", err)
	}
	return nil
}

// Unassign revokes one engine-owned role grant.
func (r *RoleRepository) Unassign(ctx context.Context, ra models.RoleAssignment) error {
	const query = `DELETE FROM role_assignments
        WHERE role_id = $1 AND user_id = $2 AND context_id = $3 AND component = $4 AND item_id = $5`
	if _, err := r.db.ExecContext(ctx, query, ra.RoleID, ra.UserID, ra.ContextID, models.ProvenanceComponent, ra.ItemID); err != nil {
		return fmt.Errorf("unassign role: %w", err)
	}
	return nil
}

// ListOrphaned returns engine-owned role assignments no longer justified by
// an enrolment edge on an enabled instance. Disabled plugins and deleted
// instances both surface here, so the purge pass fully revokes permissions.
// An instance with an empty role_id grants the deployment default role, so
// the join resolves empty through defaultRoleID before comparing.
func (r *RoleRepository) ListOrphaned(ctx context.Context, defaultRoleID string) ([]models.RoleAssignment, error) {
	const query = `SELECT ra.role_id, ra.user_id, ra.context_id, ra.component, ra.item_id
        FROM role_assignments ra
        LEFT JOIN roster_enrolments re ON (re.instance_id = ra.item_id AND re.user_id = ra.user_id)
        LEFT JOIN sync_instances si ON (si.id = ra.item_id AND si.status = $2 AND COALESCE(NULLIF(si.role_id, ''), $3) = ra.role_id)
        WHERE ra.component = $1 AND (re.user_id IS NULL OR si.id IS NULL)`
	var orphans []models.RoleAssignment
	if err := r.db.SelectContext(ctx, &orphans, query, models.ProvenanceComponent, models.InstanceStatusEnabled, defaultRoleID); err != nil {
		return nil, fmt.Errorf("list orphaned role assignments: %w", err)
	}
	return orphans, nil
}

// DeleteAllForInstance removes every engine-owned role grant of one instance.
func (r *RoleRepository) DeleteAllForInstance(ctx context.Context, instanceID string) (int64, error) {
	const query = `DELETE FROM role_assignments WHERE component = $1 AND item_id = $2`
	res, err := r.db.ExecContext(ctx, query, models.ProvenanceComponent, instanceID)
	if err != nil {
		return 0, fmt.Errorf("delete instance role assignments: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete instance role assignments: %w", err)
	}
	return affected, nil
}
