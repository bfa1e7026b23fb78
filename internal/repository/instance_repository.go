package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-roster-sync/internal/models"
)

// InstanceRepository handles persistence of sync instances.
type InstanceRepository struct {
	db *sqlx.DB
}

// NewInstanceRepository constructs the repository.
func NewInstanceRepository(db *sqlx.DB) *InstanceRepository {
	return &InstanceRepository{db: db}
}

// Create persists a new sync instance.
func (r *InstanceRepository) Create(ctx context.Context, instance *models.SyncInstance) error {
	if instance.ID == "" {
		instance.ID = uuid.NewString()
	}
	if instance.Status == "" {
		instance.Status = models.InstanceStatusEnabled
	}
	instance.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO sync_instances (id, course_id, course_number, role_id, semester, status, note, updated_at)
        VALUES (:id, :course_id, :course_number, :role_id, :semester, :status, :note, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, instance); err != nil {
		return fmt.Errorf("create sync instance: %w", err)
	}
	return nil
}

// FindByID returns an instance by its ID.
func (r *InstanceRepository) FindByID(ctx context.Context, id string) (*models.SyncInstance, error) {
	const query = `SELECT id, course_id, course_number, role_id, semester, status, note, updated_at FROM sync_instances WHERE id = $1`
	var instance models.SyncInstance
	if err := r.db.GetContext(ctx, &instance, query, id); err != nil {
		return nil, err
	}
	return &instance, nil
}

// List returns every instance regardless of status, optionally filtered to
// one local course.
func (r *InstanceRepository) List(ctx context.Context, courseID string) ([]models.SyncInstance, error) {
	query := `SELECT id, course_id, course_number, role_id, semester, status, note, updated_at FROM sync_instances`
	var args []interface{}
	if courseID != "" {
		query += " WHERE course_id = $1"
		args = append(args, courseID)
	}
	query += " ORDER BY updated_at DESC"

	var instances []models.SyncInstance
	if err := r.db.SelectContext(ctx, &instances, query, args...); err != nil {
		return nil, fmt.Errorf("list sync instances: %w", err)
	}
	return instances, nil
}

// ListEnabled returns enabled instances, optionally filtered to one course.
func (r *InstanceRepository) ListEnabled(ctx context.Context, courseID string) ([]models.SyncInstance, error) {
	query := `SELECT id, course_id, course_number, role_id, semester, status, note, updated_at FROM sync_instances WHERE status = $1`
	args := []interface{}{models.InstanceStatusEnabled}
	if courseID != "" {
		query += fmt.Sprintf(" AND course_id = $%d", len(args)+1)
		args = append(args, courseID)
	}
	query += " ORDER BY updated_at ASC"

	var instances []models.SyncInstance
	if err := r.db.SelectContext(ctx, &instances, query, args...); err != nil {
		return nil, fmt.Errorf("list enabled sync instances: %w", err)
	}
	return instances, nil
}

// UpdateNote records the outcome summary of the latest sync pass.
func (r *InstanceRepository) UpdateNote(ctx context.Context, id, note string) error {
	const query = `UPDATE sync_instances SET note = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, note, time.Now().UTC()); err != nil {
		return fmt.Errorf("update sync instance note: %w", err)
	}
	return nil
}

// SetStatus enables or disables an instance.
func (r *InstanceRepository) SetStatus(ctx context.Context, id string, status models.InstanceStatus) error {
	const query = `UPDATE sync_instances SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("set sync instance status: %w", err)
	}
	return nil
}

// Delete removes an instance. Enrolment and role cleanup is the caller's
// responsibility; see InstanceService.Delete.
func (r *InstanceRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM sync_instances WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete sync instance: %w", err)
	}
	return nil
}
