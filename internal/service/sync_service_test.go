package service

import (
	"context"
	"database/sql"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-roster-sync/internal/models"
	"github.com/noah-isme/sma-roster-sync/pkg/config"
	appErrors "github.com/noah-isme/sma-roster-sync/pkg/errors"
)

type fakeFetcher struct {
	sections    map[string][]models.Section
	sectionsErr error
	rosters     map[string][]models.StudentRecord
	rosterErr   map[string]error
	rosterCalls map[string]int
}

func (f *fakeFetcher) Sections(_ context.Context, courseNumber, _ string) ([]models.Section, error) {
	if f.sectionsErr != nil {
		return nil, f.sectionsErr
	}
	return f.sections[courseNumber], nil
}

func (f *fakeFetcher) Roster(_ context.Context, sectionID string) ([]models.StudentRecord, error) {
	if f.rosterCalls == nil {
		f.rosterCalls = make(map[string]int)
	}
	f.rosterCalls[sectionID]++
	if err := f.rosterErr[sectionID]; err != nil {
		return nil, err
	}
	return f.rosters[sectionID], nil
}

type fakeInstanceRepo struct {
	instances []models.SyncInstance
	notes     map[string]string
}

func (f *fakeInstanceRepo) List(_ context.Context, courseID string) ([]models.SyncInstance, error) {
	var out []models.SyncInstance
	for _, in := range f.instances {
		if courseID == "" || in.CourseID == courseID {
			out = append(out, in)
		}
	}
	return out, nil
}

func (f *fakeInstanceRepo) ListEnabled(ctx context.Context, courseID string) ([]models.SyncInstance, error) {
	all, _ := f.List(ctx, courseID)
	var out []models.SyncInstance
	for _, in := range all {
		if in.Status == models.InstanceStatusEnabled {
			out = append(out, in)
		}
	}
	return out, nil
}

func (f *fakeInstanceRepo) UpdateNote(_ context.Context, id, note string) error {
	if f.notes == nil {
		f.notes = make(map[string]string)
	}
	f.notes[id] = note
	return nil
}

type fakeEnrolmentRepo struct {
	members map[string]map[string]struct{}
	enrols  int
	removes int
}

func (f *fakeEnrolmentRepo) set(instanceID string, userIDs ...string) {
	if f.members == nil {
		f.members = make(map[string]map[string]struct{})
	}
	m := make(map[string]struct{})
	for _, id := range userIDs {
		m[id] = struct{}{}
	}
	f.members[instanceID] = m
}

func (f *fakeEnrolmentRepo) ListUserIDs(_ context.Context, instanceID string) ([]string, error) {
	var out []string
	for id := range f.members[instanceID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeEnrolmentRepo) Enrol(_ context.Context, instanceID, userID string) error {
	if f.members == nil {
		f.members = make(map[string]map[string]struct{})
	}
	if f.members[instanceID] == nil {
		f.members[instanceID] = make(map[string]struct{})
	}
	f.members[instanceID][userID] = struct{}{}
	f.enrols++
	return nil
}

func (f *fakeEnrolmentRepo) Unenrol(_ context.Context, instanceID, userID string) error {
	delete(f.members[instanceID], userID)
	f.removes++
	return nil
}

func (f *fakeEnrolmentRepo) DeleteAllForInstance(_ context.Context, instanceID string) (int64, error) {
	n := int64(len(f.members[instanceID]))
	delete(f.members, instanceID)
	return n, nil
}

type fakeRoleRepo struct {
	assigned   map[models.RoleAssignment]struct{}
	orphans    []models.RoleAssignment
	unassigned []models.RoleAssignment
}

func (f *fakeRoleRepo) Assign(_ context.Context, ra models.RoleAssignment) error {
	if f.assigned == nil {
		f.assigned = make(map[models.RoleAssignment]struct{})
	}
	f.assigned[ra] = struct{}{}
	return nil
}

func (f *fakeRoleRepo) Unassign(_ context.Context, ra models.RoleAssignment) error {
	delete(f.assigned, ra)
	f.unassigned = append(f.unassigned, ra)
	return nil
}

func (f *fakeRoleRepo) ListOrphaned(_ context.Context, _ string) ([]models.RoleAssignment, error) {
	return f.orphans, nil
}

func (f *fakeRoleRepo) DeleteAllForInstance(_ context.Context, instanceID string) (int64, error) {
	var n int64
	for ra := range f.assigned {
		if ra.ItemID == instanceID {
			delete(f.assigned, ra)
			n++
		}
	}
	return n, nil
}

type fakeIdentityRepo struct {
	users    map[string]string // code -> user ID
	teachers map[string][]models.Teacher
}

func (f *fakeIdentityRepo) LookupUser(_ context.Context, _, code, _ string, _ bool) (string, error) {
	id, ok := f.users[code]
	if !ok {
		return "", sql.ErrNoRows
	}
	return id, nil
}

func (f *fakeIdentityRepo) ListCourseTeachers(_ context.Context, courseID, _, _ string) ([]models.Teacher, error) {
	return f.teachers[courseID], nil
}

type fakeLock struct{}

func (fakeLock) Release(context.Context) error { return nil }

type fakeLocker struct {
	busy     bool
	acquired []string
}

func (f *fakeLocker) Acquire(_ context.Context, key string) (LockHandle, bool, error) {
	if f.busy {
		return nil, false, nil
	}
	f.acquired = append(f.acquired, key)
	return fakeLock{}, true, nil
}

type engineFixture struct {
	svc        *SyncService
	instances  *fakeInstanceRepo
	enrolments *fakeEnrolmentRepo
	roles      *fakeRoleRepo
	identities *fakeIdentityRepo
	fetcher    *fakeFetcher
	locker     *fakeLocker
}

func newEngineFixture(syncCfg config.SyncConfig) *engineFixture {
	fx := &engineFixture{
		instances:  &fakeInstanceRepo{},
		enrolments: &fakeEnrolmentRepo{},
		roles:      &fakeRoleRepo{},
		identities: &fakeIdentityRepo{},
		fetcher:    &fakeFetcher{},
		locker:     &fakeLocker{},
	}
	fx.svc = NewSyncService(
		fx.instances, fx.enrolments, fx.roles, fx.identities, fx.fetcher, fx.locker,
		config.RegistrarConfig{Provider: "cas", Semester: "2023-spring"},
		syncCfg,
		zap.NewNop(),
		nil,
	)
	return fx
}

func defaultSyncCfg() config.SyncConfig {
	return config.SyncConfig{
		Enabled:         true,
		TeacherRoleID:   "role-teacher",
		DefaultRoleID:   "role-student",
		MatchNameStrict: true,
	}
}

func testInstance() models.SyncInstance {
	return models.SyncInstance{
		ID:           "inst-1",
		CourseID:     "course-1",
		CourseNumber: "08T1031050",
		RoleID:       "role-student",
		Status:       models.InstanceStatusEnabled,
	}
}

func TestSyncOneEnrolsOnlyMatchedSectionRoster(t *testing.T) {
	fx := newEngineFixture(defaultSyncCfg())
	fx.identities.teachers = map[string][]models.Teacher{
		"course-1": {{UserID: "t1", DisplayName: "Zhang San"}},
	}
	fx.fetcher.sections = map[string][]models.Section{
		"08T1031050": {
			{ID: "101", CourseName: "Data Structures", TeacherName: "Zhang San"},
			{ID: "102", CourseName: "Data Structures", TeacherName: "Li Si"},
		},
	}
	fx.fetcher.rosters = map[string][]models.StudentRecord{
		"101": {
			{Code: "1180300101", Name: "Wang Wu"},
			{Code: "1180300102", Name: "Zhao Liu"},
		},
	}
	fx.identities.users = map[string]string{"1180300101": "u-wang"}

	result := fx.svc.SyncOne(context.Background(), testInstance())

	assert.Equal(t, models.OutcomeSynced, result.Outcome)
	assert.Equal(t, []string{"101"}, result.Sections)
	assert.Equal(t, 1, result.Enrolled)
	assert.Equal(t, 1, result.Unmatched)
	// only the owned section's roster is consulted, exactly once
	assert.Equal(t, 1, fx.fetcher.rosterCalls["101"])
	assert.Zero(t, fx.fetcher.rosterCalls["102"])

	members, _ := fx.enrolments.ListUserIDs(context.Background(), "inst-1")
	assert.Equal(t, []string{"u-wang"}, members)
	assert.Contains(t, fx.roles.assigned, models.RoleAssignment{
		RoleID: "role-student", UserID: "u-wang", ContextID: "course-1",
		Component: models.ProvenanceComponent, ItemID: "inst-1",
	})
	assert.Contains(t, fx.instances.notes["inst-1"], "Data Structures-101")
}

func TestSyncOneIsIdempotent(t *testing.T) {
	fx := newEngineFixture(defaultSyncCfg())
	fx.identities.teachers = map[string][]models.Teacher{
		"course-1": {{UserID: "t1", DisplayName: "Zhang San"}},
	}
	fx.fetcher.sections = map[string][]models.Section{
		"08T1031050": {{ID: "101", CourseName: "Algorithms", TeacherName: "Zhang San"}},
	}
	fx.fetcher.rosters = map[string][]models.StudentRecord{
		"101": {{Code: "1180300101", Name: "Wang Wu"}},
	}
	fx.identities.users = map[string]string{"1180300101": "u-wang"}

	first := fx.svc.SyncOne(context.Background(), testInstance())
	require.Equal(t, 1, first.Enrolled)

	second := fx.svc.SyncOne(context.Background(), testInstance())
	assert.Equal(t, models.OutcomeSynced, second.Outcome)
	assert.Zero(t, second.Enrolled)
	assert.Zero(t, second.Unenrolled)
}

func TestSyncOneUnionsOverlappingSections(t *testing.T) {
	fx := newEngineFixture(defaultSyncCfg())
	fx.identities.teachers = map[string][]models.Teacher{
		"course-1": {{UserID: "t1", DisplayName: "Zhang San"}},
	}
	fx.fetcher.sections = map[string][]models.Section{
		"08T1031050": {
			{ID: "101", CourseName: "Algorithms", TeacherName: "Zhang San"},
			{ID: "103", CourseName: "Algorithms", TeacherName: "Zhang San"},
		},
	}
	fx.fetcher.rosters = map[string][]models.StudentRecord{
		"101": {{Code: "1180300101", Name: "Wang Wu"}},
		"103": {{Code: "1180300101", Name: "Wang Wu"}, {Code: "1180300102", Name: "Zhao Liu"}},
	}
	fx.identities.users = map[string]string{"1180300101": "u-wang", "1180300102": "u-zhao"}

	result := fx.svc.SyncOne(context.Background(), testInstance())

	assert.Equal(t, models.OutcomeSynced, result.Outcome)
	assert.Equal(t, 2, result.Enrolled)
	members, _ := fx.enrolments.ListUserIDs(context.Background(), "inst-1")
	assert.Equal(t, []string{"u-wang", "u-zhao"}, members)
}

func TestSyncOneReinstatesRolesPurgedWhileDisabled(t *testing.T) {
	fx := newEngineFixture(defaultSyncCfg())
	fx.identities.teachers = map[string][]models.Teacher{
		"course-1": {{UserID: "t1", DisplayName: "Zhang San"}},
	}
	fx.fetcher.sections = map[string][]models.Section{
		"08T1031050": {{ID: "101", CourseName: "Algorithms", TeacherName: "Zhang San"}},
	}
	fx.fetcher.rosters = map[string][]models.StudentRecord{
		"101": {{Code: "1180300101", Name: "Wang Wu"}},
	}
	fx.identities.users = map[string]string{"1180300101": "u-wang"}
	// state after a disable/purge/re-enable cycle: the enrolment edge
	// survived but the role grant was revoked by the purge pass
	fx.enrolments.set("inst-1", "u-wang")

	result := fx.svc.SyncOne(context.Background(), testInstance())

	assert.Equal(t, models.OutcomeSynced, result.Outcome)
	assert.Zero(t, result.Enrolled)
	assert.Contains(t, fx.roles.assigned, models.RoleAssignment{
		RoleID: "role-student", UserID: "u-wang", ContextID: "course-1",
		Component: models.ProvenanceComponent, ItemID: "inst-1",
	})
}

func TestSyncOneSkipsDisabledInstance(t *testing.T) {
	fx := newEngineFixture(defaultSyncCfg())
	fx.instances.notes = map[string]string{"inst-1": "previous note"}
	instance := testInstance()
	instance.Status = models.InstanceStatusDisabled

	result := fx.svc.SyncOne(context.Background(), instance)

	// an interactive trigger on a disabled instance must not touch anything
	assert.Equal(t, models.OutcomeSkipped, result.Outcome)
	assert.Empty(t, fx.locker.acquired)
	assert.Empty(t, fx.fetcher.rosterCalls)
	assert.Zero(t, fx.enrolments.enrols)
	assert.Equal(t, "previous note", fx.instances.notes["inst-1"])
}

func TestSyncOnePreservesStateOnFetchError(t *testing.T) {
	fx := newEngineFixture(defaultSyncCfg())
	fx.identities.teachers = map[string][]models.Teacher{
		"course-1": {{UserID: "t1", DisplayName: "Zhang San"}},
	}
	fx.fetcher.sectionsErr = appErrors.ErrRegistrarUnavailable
	fx.enrolments.set("inst-1", "u-wang", "u-zhao")

	result := fx.svc.SyncOne(context.Background(), testInstance())

	assert.Equal(t, models.OutcomeFetchError, result.Outcome)
	assert.Equal(t, appErrors.ErrRegistrarUnavailable.Message, result.Note)
	members, _ := fx.enrolments.ListUserIDs(context.Background(), "inst-1")
	assert.Len(t, members, 2)
	assert.Zero(t, fx.enrolments.removes)
}

func TestSyncOnePreservesStateOnMidPassRosterError(t *testing.T) {
	fx := newEngineFixture(defaultSyncCfg())
	fx.identities.teachers = map[string][]models.Teacher{
		"course-1": {{UserID: "t1", DisplayName: "Zhang San"}},
	}
	fx.fetcher.sections = map[string][]models.Section{
		"08T1031050": {
			{ID: "101", CourseName: "Algorithms", TeacherName: "Zhang San"},
			{ID: "103", CourseName: "Algorithms", TeacherName: "Zhang San"},
		},
	}
	fx.fetcher.rosters = map[string][]models.StudentRecord{
		"101": {{Code: "1180300101", Name: "Wang Wu"}},
	}
	fx.fetcher.rosterErr = map[string]error{"103": appErrors.ErrRegistrarUnavailable}
	fx.identities.users = map[string]string{"1180300101": "u-wang"}
	fx.enrolments.set("inst-1", "u-old")

	result := fx.svc.SyncOne(context.Background(), testInstance())

	// a partial roster must never drive unenrolments
	assert.Equal(t, models.OutcomeFetchError, result.Outcome)
	members, _ := fx.enrolments.ListUserIDs(context.Background(), "inst-1")
	assert.Equal(t, []string{"u-old"}, members)
	assert.Zero(t, fx.enrolments.enrols)
}

func TestSyncOneRevokesWhenCourseNotOffered(t *testing.T) {
	fx := newEngineFixture(defaultSyncCfg())
	fx.identities.teachers = map[string][]models.Teacher{
		"course-1": {{UserID: "t1", DisplayName: "Zhang San"}},
	}
	// registrar answers, but every section belongs to someone else
	fx.fetcher.sections = map[string][]models.Section{
		"08T1031050": {{ID: "102", CourseName: "Algorithms", TeacherName: "Li Si"}},
	}
	fx.enrolments.set("inst-1", "u-wang")
	require.NoError(t, fx.roles.Assign(context.Background(), models.RoleAssignment{
		RoleID: "role-student", UserID: "u-wang", ContextID: "course-1",
		Component: models.ProvenanceComponent, ItemID: "inst-1",
	}))

	result := fx.svc.SyncOne(context.Background(), testInstance())

	assert.Equal(t, models.OutcomeNoMatch, result.Outcome)
	assert.Equal(t, 1, result.Unenrolled)
	members, _ := fx.enrolments.ListUserIDs(context.Background(), "inst-1")
	assert.Empty(t, members)
	assert.Empty(t, fx.roles.assigned)
}

func TestSyncOneSkipsWithoutRecognizedTeacher(t *testing.T) {
	fx := newEngineFixture(defaultSyncCfg())
	fx.fetcher.sections = map[string][]models.Section{
		"08T1031050": {{ID: "101", CourseName: "Algorithms", TeacherName: "Zhang San"}},
	}
	fx.enrolments.set("inst-1", "u-wang")

	result := fx.svc.SyncOne(context.Background(), testInstance())

	assert.Equal(t, models.OutcomeNoTeacher, result.Outcome)
	// fail-safe: nothing fetched, nothing revoked
	assert.Empty(t, fx.fetcher.rosterCalls)
	members, _ := fx.enrolments.ListUserIDs(context.Background(), "inst-1")
	assert.Equal(t, []string{"u-wang"}, members)
}

func TestSyncOneSkipsWhenLockHeld(t *testing.T) {
	fx := newEngineFixture(defaultSyncCfg())
	fx.locker.busy = true
	fx.instances.notes = map[string]string{"inst-1": "previous note"}
	// reconcile must not run at all; leave the fetcher unset so a call panics

	result := fx.svc.SyncOne(context.Background(), testInstance())

	assert.Equal(t, models.OutcomeSkipped, result.Outcome)
	assert.Equal(t, "previous note", fx.instances.notes["inst-1"])
}

func TestSyncAllPurgesRolesEvenWhenDisabled(t *testing.T) {
	cfg := defaultSyncCfg()
	cfg.Enabled = false
	fx := newEngineFixture(cfg)
	orphan := models.RoleAssignment{
		RoleID: "role-student", UserID: "u-gone", ContextID: "course-1",
		Component: models.ProvenanceComponent, ItemID: "inst-1",
	}
	fx.roles.orphans = []models.RoleAssignment{orphan}

	batch, err := fx.svc.SyncAll(context.Background(), "")
	require.NoError(t, err)

	assert.Empty(t, batch.Results)
	assert.Equal(t, 1, batch.RolesPurged)
	assert.Equal(t, []models.RoleAssignment{orphan}, fx.roles.unassigned)
}

func TestSyncAllFiltersByCourse(t *testing.T) {
	fx := newEngineFixture(defaultSyncCfg())
	other := testInstance()
	other.ID = "inst-2"
	other.CourseID = "course-2"
	fx.instances.instances = []models.SyncInstance{testInstance(), other}
	fx.identities.teachers = map[string][]models.Teacher{
		"course-1": {{UserID: "t1", DisplayName: "Zhang San"}},
	}
	fx.fetcher.sections = map[string][]models.Section{}

	batch, err := fx.svc.SyncAll(context.Background(), "course-1")
	require.NoError(t, err)

	require.Len(t, batch.Results, 1)
	assert.Equal(t, "inst-1", batch.Results[0].InstanceID)
}

func TestSyncAllUnenrolAllSweepsEverything(t *testing.T) {
	cfg := defaultSyncCfg()
	cfg.UnenrolAll = true
	fx := newEngineFixture(cfg)
	disabled := testInstance()
	disabled.ID = "inst-2"
	disabled.Status = models.InstanceStatusDisabled
	fx.instances.instances = []models.SyncInstance{testInstance(), disabled}
	fx.enrolments.set("inst-1", "u-wang", "u-zhao")
	fx.enrolments.set("inst-2", "u-qian")
	require.NoError(t, fx.roles.Assign(context.Background(), models.RoleAssignment{
		RoleID: "role-student", UserID: "u-qian", ContextID: "course-1",
		Component: models.ProvenanceComponent, ItemID: "inst-2",
	}))

	batch, err := fx.svc.SyncAll(context.Background(), "")
	require.NoError(t, err)

	// disabled instances are swept too
	require.Len(t, batch.Results, 2)
	assert.Empty(t, fx.enrolments.members)
	assert.Empty(t, fx.roles.assigned)
	assert.Equal(t, 1, batch.RolesPurged)
	assert.Equal(t, "all enrolments removed by administrator", fx.instances.notes["inst-2"])
}
