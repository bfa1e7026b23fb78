package service

import "github.com/noah-isme/sma-roster-sync/internal/models"

// MatchSections resolves which external sections belong to the local course.
// Registrar course numbers are shared across independently-taught sections
// (cross-listing), so ownership is decided by exact teacher display-name
// equality: a section matches when any recognized teacher owns it, and one
// matching teacher is enough. With no recognized teachers nothing matches.
func MatchSections(sections []models.Section, teachers []models.Teacher) []models.Section {
	if len(teachers) == 0 {
		return nil
	}

	var matched []models.Section
	for _, section := range sections {
		for _, teacher := range teachers {
			if teacher.DisplayName == section.TeacherName {
				matched = append(matched, section)
				break
			}
		}
	}
	return matched
}
