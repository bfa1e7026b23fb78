package models

// ProvenanceComponent tags role assignments created by this engine so the
// purge pass never touches roles granted by other mechanisms.
const ProvenanceComponent = "enrol_registrar"

// Teacher is a locally recognized course teacher: a user authenticated via
// the registrar-compatible identity provider holding the teacher role in the
// course context.
type Teacher struct {
	UserID      string `db:"user_id" json:"user_id"`
	DisplayName string `db:"display_name" json:"display_name"`
}

// RoleAssignment is one engine-owned role grant in a course context.
type RoleAssignment struct {
	RoleID    string `db:"role_id" json:"role_id"`
	UserID    string `db:"user_id" json:"user_id"`
	ContextID string `db:"context_id" json:"context_id"`
	Component string `db:"component" json:"component"`
	ItemID    string `db:"item_id" json:"item_id"`
}
