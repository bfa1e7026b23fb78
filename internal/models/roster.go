package models

// Section is one taught offering of a registrar course number, owned by a
// single teacher. Fetched fresh on every sync pass, never persisted.
type Section struct {
	ID          string `json:"id"`
	CourseName  string `json:"course_name"`
	TeacherName string `json:"teacher_name"`
}

// StudentRecord is one enrolled student inside a Section as reported by the
// registrar: an identity code plus a display name.
type StudentRecord struct {
	Code string `json:"code"`
	Name string `json:"name"`
}
