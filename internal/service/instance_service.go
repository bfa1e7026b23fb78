package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-roster-sync/internal/models"
	appErrors "github.com/noah-isme/sma-roster-sync/pkg/errors"
)

type instanceStore interface {
	Create(ctx context.Context, instance *models.SyncInstance) error
	FindByID(ctx context.Context, id string) (*models.SyncInstance, error)
	List(ctx context.Context, courseID string) ([]models.SyncInstance, error)
	SetStatus(ctx context.Context, id string, status models.InstanceStatus) error
	Delete(ctx context.Context, id string) error
}

type instanceEnrolmentSweeper interface {
	DeleteAllForInstance(ctx context.Context, instanceID string) (int64, error)
}

type instanceRoleSweeper interface {
	DeleteAllForInstance(ctx context.Context, instanceID string) (int64, error)
}

// CreateInstanceInput is the admin-facing payload for binding a course to a
// registrar course number.
type CreateInstanceInput struct {
	CourseID     string `json:"course_id" validate:"required"`
	CourseNumber string `json:"course_number" validate:"required"`
	RoleID       string `json:"role_id"`
	Semester     string `json:"semester"`
}

// InstanceService manages the lifecycle of sync instances.
type InstanceService struct {
	instances  instanceStore
	enrolments instanceEnrolmentSweeper
	roles      instanceRoleSweeper
	validate   *validator.Validate
	logger     *zap.Logger
}

// NewInstanceService constructs the service.
func NewInstanceService(instances instanceStore, enrolments instanceEnrolmentSweeper, roles instanceRoleSweeper, logger *zap.Logger) *InstanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstanceService{
		instances:  instances,
		enrolments: enrolments,
		roles:      roles,
		validate:   validator.New(),
		logger:     logger,
	}
}

// Create binds a local course to a registrar course number. The instance
// starts enabled and is picked up by the next sync pass.
func (s *InstanceService) Create(ctx context.Context, input CreateInstanceInput) (*models.SyncInstance, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid sync instance payload")
	}

	instance := &models.SyncInstance{
		CourseID:     input.CourseID,
		CourseNumber: input.CourseNumber,
		RoleID:       input.RoleID,
		Semester:     input.Semester,
	}
	if err := s.instances.Create(ctx, instance); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create sync instance")
	}

	s.logger.Info("sync instance created",
		zap.String("instance_id", instance.ID),
		zap.String("course_id", instance.CourseID),
		zap.String("course_number", instance.CourseNumber),
	)
	return instance, nil
}

// Get returns one instance by ID.
func (s *InstanceService) Get(ctx context.Context, id string) (*models.SyncInstance, error) {
	instance, err := s.instances.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "sync instance not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sync instance")
	}
	return instance, nil
}

// List returns every instance, optionally filtered to one course.
func (s *InstanceService) List(ctx context.Context, courseID string) ([]models.SyncInstance, error) {
	instances, err := s.instances.List(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sync instances")
	}
	return instances, nil
}

// SetStatus enables or disables an instance. Disabling stops future passes;
// enrolments are then revoked by the orphaned-role purge, not here.
func (s *InstanceService) SetStatus(ctx context.Context, id string, status models.InstanceStatus) (*models.SyncInstance, error) {
	if status != models.InstanceStatusEnabled && status != models.InstanceStatusDisabled {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be ENABLED or DISABLED")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := s.instances.SetStatus(ctx, id, status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update sync instance status")
	}
	return s.Get(ctx, id)
}

// Delete removes the binding and everything it granted: enrolment edges
// first, then the role assignments they justified, then the instance row.
func (s *InstanceService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	removed, err := s.enrolments.DeleteAllForInstance(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove instance enrolments")
	}
	revoked, err := s.roles.DeleteAllForInstance(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke instance roles")
	}
	if err := s.instances.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete sync instance")
	}

	s.logger.Info("sync instance deleted",
		zap.String("instance_id", id),
		zap.Int64("enrolments_removed", removed),
		zap.Int64("roles_revoked", revoked),
	)
	return nil
}
