package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-roster-sync/internal/models"
	"github.com/noah-isme/sma-roster-sync/pkg/config"
	appErrors "github.com/noah-isme/sma-roster-sync/pkg/errors"
)

type rosterFetcher interface {
	Sections(ctx context.Context, courseNumber, semester string) ([]models.Section, error)
	Roster(ctx context.Context, sectionID string) ([]models.StudentRecord, error)
}

type syncInstanceRepository interface {
	List(ctx context.Context, courseID string) ([]models.SyncInstance, error)
	ListEnabled(ctx context.Context, courseID string) ([]models.SyncInstance, error)
	UpdateNote(ctx context.Context, id, note string) error
}

type enrolmentRepository interface {
	ListUserIDs(ctx context.Context, instanceID string) ([]string, error)
	Enrol(ctx context.Context, instanceID, userID string) error
	Unenrol(ctx context.Context, instanceID, userID string) error
	DeleteAllForInstance(ctx context.Context, instanceID string) (int64, error)
}

type roleRepository interface {
	Assign(ctx context.Context, ra models.RoleAssignment) error
	Unassign(ctx context.Context, ra models.RoleAssignment) error
	ListOrphaned(ctx context.Context, defaultRoleID string) ([]models.RoleAssignment, error)
	DeleteAllForInstance(ctx context.Context, instanceID string) (int64, error)
}

type identityRepository interface {
	LookupUser(ctx context.Context, provider, code, displayName string, matchName bool) (string, error)
	ListCourseTeachers(ctx context.Context, courseID, teacherRoleID, provider string) ([]models.Teacher, error)
}

// LockHandle is a held per-instance advisory lock.
type LockHandle interface {
	Release(ctx context.Context) error
}

// InstanceLocker serializes sync passes over one instance, so a scheduled
// run and an interactive "sync now" cannot interleave their diff+apply.
type InstanceLocker interface {
	Acquire(ctx context.Context, key string) (LockHandle, bool, error)
}

// SyncService is the reconciliation engine: it fetches external rosters,
// matches sections to recognized teachers, resolves student identities and
// applies the enrol/unenrol and role-assign/unassign delta.
type SyncService struct {
	instances  syncInstanceRepository
	enrolments enrolmentRepository
	roles      roleRepository
	identities identityRepository
	fetcher    rosterFetcher
	locker     InstanceLocker

	syncCfg  config.SyncConfig
	provider string
	semester string

	logger  *zap.Logger
	metrics *MetricsService
}

// NewSyncService constructs the engine. registrarCfg supplies the identity
// provider name and the default semester; syncCfg everything else.
func NewSyncService(
	instances syncInstanceRepository,
	enrolments enrolmentRepository,
	roles roleRepository,
	identities identityRepository,
	fetcher rosterFetcher,
	locker InstanceLocker,
	registrarCfg config.RegistrarConfig,
	syncCfg config.SyncConfig,
	logger *zap.Logger,
	metrics *MetricsService,
) *SyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncService{
		instances:  instances,
		enrolments: enrolments,
		roles:      roles,
		identities: identities,
		fetcher:    fetcher,
		locker:     locker,
		syncCfg:    syncCfg,
		provider:   registrarCfg.Provider,
		semester:   registrarCfg.Semester,
		logger:     logger,
		metrics:    metrics,
	}
}

// SyncOne reconciles a single instance under its advisory lock and records
// the outcome as the instance's status note. Failures never propagate as
// errors; they are captured in the result so a batch can continue.
func (s *SyncService) SyncOne(ctx context.Context, instance models.SyncInstance) models.SyncResult {
	start := time.Now()

	if instance.Status != models.InstanceStatusEnabled {
		// Interactive triggers reach here too; a disabled instance must
		// never gain fresh enrolments.
		return models.SyncResult{InstanceID: instance.ID, Outcome: models.OutcomeSkipped, Note: "sync instance disabled"}
	}

	lk, ok, err := s.locker.Acquire(ctx, "roster-sync:instance:"+instance.ID)
	if err != nil {
		s.logger.Error("instance lock unavailable", zap.String("instance_id", instance.ID), zap.Error(err))
		return models.SyncResult{InstanceID: instance.ID, Outcome: models.OutcomeSkipped, Note: "sync lock unavailable"}
	}
	if !ok {
		s.logger.Info("sync already in progress", zap.String("instance_id", instance.ID))
		return models.SyncResult{InstanceID: instance.ID, Outcome: models.OutcomeSkipped, Note: "sync already in progress"}
	}
	defer func() {
		if err := lk.Release(ctx); err != nil {
			s.logger.Warn("failed to release instance lock", zap.String("instance_id", instance.ID), zap.Error(err))
		}
	}()

	result := s.reconcile(ctx, instance)

	if err := s.instances.UpdateNote(ctx, instance.ID, result.Note); err != nil {
		s.logger.Error("failed to record sync note", zap.String("instance_id", instance.ID), zap.Error(err))
	}

	s.metrics.ObserveSyncResult(result, time.Since(start))
	s.logger.Info("instance synced",
		zap.String("instance_id", instance.ID),
		zap.String("outcome", string(result.Outcome)),
		zap.Int("enrolled", result.Enrolled),
		zap.Int("unenrolled", result.Unenrolled),
		zap.Int("unmatched", result.Unmatched),
	)
	return result
}

func (s *SyncService) reconcile(ctx context.Context, instance models.SyncInstance) models.SyncResult {
	result := models.SyncResult{InstanceID: instance.ID}

	teachers, err := s.identities.ListCourseTeachers(ctx, instance.CourseID, s.syncCfg.TeacherRoleID, s.provider)
	if err != nil {
		result.Outcome = models.OutcomeFetchError
		result.Note = "failed to resolve course teachers: " + appErrors.FromError(err).Message
		return result
	}
	if len(teachers) == 0 {
		// Local misconfiguration must never tear down enrolments.
		result.Outcome = models.OutcomeNoTeacher
		result.Note = "no recognized teacher for this course"
		return result
	}

	semester := instance.Semester
	if semester == "" {
		semester = s.semester
	}

	sections, err := s.fetcher.Sections(ctx, instance.CourseNumber, semester)
	if err != nil {
		// Fail-safe: an unreachable registrar leaves existing state untouched.
		result.Outcome = models.OutcomeFetchError
		result.Note = appErrors.FromError(err).Message
		return result
	}

	matched := MatchSections(sections, teachers)

	target := make(map[string]struct{})
	if len(matched) == 0 {
		// A course not offered this term legitimately clears its roster,
		// unlike the fetch-error path above. Proceed with an empty target.
		result.Outcome = models.OutcomeNoMatch
		result.Note = "no synchronizable course"
	} else {
		for _, section := range matched {
			result.Sections = append(result.Sections, section.ID)
			students, err := s.fetcher.Roster(ctx, section.ID)
			if err != nil {
				result.Outcome = models.OutcomeFetchError
				result.Note = appErrors.FromError(err).Message
				result.Sections = nil
				return result
			}
			for _, student := range students {
				userID, err := s.identities.LookupUser(ctx, s.provider, student.Code, student.Name, s.syncCfg.MatchNameStrict)
				if err != nil {
					if errors.Is(err, sql.ErrNoRows) {
						// Unmatched students are silently skipped, never provisioned.
						result.Unmatched++
						continue
					}
					result.Outcome = models.OutcomeFetchError
					result.Note = "identity lookup failed: " + appErrors.FromError(err).Message
					result.Sections = nil
					return result
				}
				target[userID] = struct{}{}
			}
		}
		result.Outcome = models.OutcomeSynced
		result.Note = fmt.Sprintf("%s-%s: %d students, %d unmatched",
			matched[0].CourseName, strings.Join(result.Sections, ","), len(target), result.Unmatched)
	}

	if err := s.applyDiff(ctx, instance, target, &result); err != nil {
		result.Outcome = models.OutcomeFetchError
		result.Note = "failed to apply enrolment delta: " + appErrors.FromError(err).Message
		return result
	}

	return result
}

// applyDiff computes target − current / current − target and applies the
// minimal mutation set. Every operation is an idempotent upsert/delete keyed
// by (instance, user), so an interrupted pass is safe to resume.
func (s *SyncService) applyDiff(ctx context.Context, instance models.SyncInstance, target map[string]struct{}, result *models.SyncResult) error {
	current, err := s.enrolments.ListUserIDs(ctx, instance.ID)
	if err != nil {
		return err
	}
	currentSet := make(map[string]struct{}, len(current))
	for _, userID := range current {
		currentSet[userID] = struct{}{}
	}

	var toAdd, toRemove []string
	allTarget := make([]string, 0, len(target))
	for userID := range target {
		allTarget = append(allTarget, userID)
		if _, ok := currentSet[userID]; !ok {
			toAdd = append(toAdd, userID)
		}
	}
	for _, userID := range current {
		if _, ok := target[userID]; !ok {
			toRemove = append(toRemove, userID)
		}
	}
	sort.Strings(allTarget)
	sort.Strings(toAdd)
	sort.Strings(toRemove)

	for _, userID := range toAdd {
		if err := s.enrolments.Enrol(ctx, instance.ID, userID); err != nil {
			return err
		}
		result.Enrolled++
	}
	// Roles are upserted for every targeted user, not just the newly
	// enrolled. The purge pass revokes roles while an instance is disabled;
	// re-enabling must reinstate them even though the enrolment edge never
	// went away.
	for _, userID := range allTarget {
		if err := s.roles.Assign(ctx, s.roleEdge(instance, userID)); err != nil {
			return err
		}
	}
	for _, userID := range toRemove {
		if err := s.enrolments.Unenrol(ctx, instance.ID, userID); err != nil {
			return err
		}
		if err := s.roles.Unassign(ctx, s.roleEdge(instance, userID)); err != nil {
			return err
		}
		result.Unenrolled++
	}
	return nil
}

func (s *SyncService) roleEdge(instance models.SyncInstance, userID string) models.RoleAssignment {
	roleID := instance.RoleID
	if roleID == "" {
		roleID = s.syncCfg.DefaultRoleID
	}
	return models.RoleAssignment{
		RoleID:    roleID,
		UserID:    userID,
		ContextID: instance.CourseID,
		Component: models.ProvenanceComponent,
		ItemID:    instance.ID,
	}
}

// SyncAll reconciles every enabled instance, optionally filtered to one
// course. One instance's failure never stops the batch; the batch may be
// cancelled cooperatively between instances. The role purge at the end runs
// unconditionally: with sync disabled the pass degenerates to purge only,
// so disabling the integration fully revokes the roles it granted.
func (s *SyncService) SyncAll(ctx context.Context, courseID string) (*models.BatchResult, error) {
	batch := &models.BatchResult{StartedAt: time.Now().UTC()}

	if s.syncCfg.UnenrolAll {
		// Administrative sweep replaces the pass entirely.
		if err := s.PurgeAll(ctx, batch); err != nil {
			return nil, err
		}
		batch.CompletedAt = time.Now().UTC()
		return batch, nil
	}

	if s.syncCfg.Enabled {
		instances, err := s.instances.ListEnabled(ctx, courseID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sync instances")
		}
		for _, instance := range instances {
			if err := ctx.Err(); err != nil {
				return batch, err
			}
			batch.Results = append(batch.Results, s.SyncOne(ctx, instance))
		}
	}

	purged, err := s.purgeOrphanedRoles(ctx)
	if err != nil {
		s.logger.Error("role purge failed", zap.Error(err))
	}
	batch.RolesPurged = purged

	batch.CompletedAt = time.Now().UTC()
	return batch, nil
}

// purgeOrphanedRoles revokes every engine-owned role assignment no longer
// backed by an enrolment edge on an enabled instance.
func (s *SyncService) purgeOrphanedRoles(ctx context.Context) (int, error) {
	orphans, err := s.roles.ListOrphaned(ctx, s.syncCfg.DefaultRoleID)
	if err != nil {
		return 0, err
	}
	purged := 0
	for _, orphan := range orphans {
		if err := s.roles.Unassign(ctx, orphan); err != nil {
			return purged, err
		}
		purged++
	}
	s.metrics.AddRolesPurged(purged)
	return purged, nil
}

// PurgeAll removes every engine-owned enrolment and role assignment across
// all instances, enabled or not. Used by the unenrol-all administrative
// flag and the explicit purge endpoint.
func (s *SyncService) PurgeAll(ctx context.Context, batch *models.BatchResult) error {
	instances, err := s.instances.List(ctx, "")
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sync instances")
	}
	for _, instance := range instances {
		if err := ctx.Err(); err != nil {
			return err
		}
		removed, err := s.enrolments.DeleteAllForInstance(ctx, instance.ID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sweep enrolments")
		}
		purgedRoles, err := s.roles.DeleteAllForInstance(ctx, instance.ID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sweep role assignments")
		}
		if err := s.instances.UpdateNote(ctx, instance.ID, "all enrolments removed by administrator"); err != nil {
			s.logger.Warn("failed to record sweep note", zap.String("instance_id", instance.ID), zap.Error(err))
		}
		if batch != nil {
			batch.Results = append(batch.Results, models.SyncResult{
				InstanceID: instance.ID,
				Outcome:    models.OutcomeSynced,
				Note:       "all enrolments removed by administrator",
				Unenrolled: int(removed),
			})
			batch.RolesPurged += int(purgedRoles)
		}
		s.metrics.AddRolesPurged(int(purgedRoles))
	}
	return nil
}
