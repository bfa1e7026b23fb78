package models

import "time"

// InstanceStatus represents the administrative state of a sync instance.
type InstanceStatus string

const (
	InstanceStatusEnabled  InstanceStatus = "ENABLED"
	InstanceStatusDisabled InstanceStatus = "DISABLED"
)

// SyncInstance binds a local course to an external registrar course number.
// Note carries the human-readable summary of the last sync pass.
type SyncInstance struct {
	ID           string         `db:"id" json:"id"`
	CourseID     string         `db:"course_id" json:"course_id"`
	CourseNumber string         `db:"course_number" json:"course_number"`
	RoleID       string         `db:"role_id" json:"role_id"`
	Semester     string         `db:"semester" json:"semester,omitempty"`
	Status       InstanceStatus `db:"status" json:"status"`
	Note         string         `db:"note" json:"note,omitempty"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// SyncOutcome classifies how a single instance pass ended.
type SyncOutcome string

const (
	// OutcomeSynced means the roster was fetched and the diff applied.
	OutcomeSynced SyncOutcome = "SYNCED"
	// OutcomeNoTeacher means no locally recognized teacher exists for the
	// course; nothing was fetched and nothing was revoked.
	OutcomeNoTeacher SyncOutcome = "NO_TEACHER"
	// OutcomeNoMatch means the registrar answered but no section belongs to a
	// recognized teacher; existing enrolments were revoked.
	OutcomeNoMatch SyncOutcome = "NO_MATCH"
	// OutcomeFetchError means the registrar could not be consulted; existing
	// state was left untouched.
	OutcomeFetchError SyncOutcome = "FETCH_ERROR"
	// OutcomeSkipped means another sync pass already holds the instance lock.
	OutcomeSkipped SyncOutcome = "SKIPPED"
)

// SyncResult summarizes one instance pass.
type SyncResult struct {
	InstanceID string      `json:"instance_id"`
	Outcome    SyncOutcome `json:"outcome"`
	Note       string      `json:"note"`
	Sections   []string    `json:"sections,omitempty"`
	Enrolled   int         `json:"enrolled"`
	Unenrolled int         `json:"unenrolled"`
	Unmatched  int         `json:"unmatched"`
}

// BatchResult summarizes a full sync pass over all instances.
type BatchResult struct {
	Results     []SyncResult `json:"results"`
	RolesPurged int          `json:"roles_purged"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt time.Time    `json:"completed_at"`
}
