package registrar

import (
	"encoding/xml"

	"github.com/noah-isme/sma-roster-sync/internal/models"
	appErrors "github.com/noah-isme/sma-roster-sync/pkg/errors"
)

// envelope mirrors the registrar's XML response shape: a retu status block,
// then either a course listing or a student roster, never both.
type envelope struct {
	Status struct {
		Flag      *int   `xml:"flag"`
		ErrorInfo string `xml:"errorinfo"`
	} `xml:"retu"`
	Courses struct {
		Items []sectionItem `xml:"item"`
	} `xml:"course"`
	Students struct {
		Items []studentItem `xml:"item"`
	} `xml:"stud"`
}

type sectionItem struct {
	ID          string `xml:"xkid"`
	CourseName  string `xml:"kcname"`
	TeacherName string `xml:"jsname"`
}

type studentItem struct {
	Code string `xml:"code"`
	Name string `xml:"name"`
}

// decode parses a raw response body and checks the embedded status flag.
// A body that cannot be parsed at all and a body that carries a failure flag
// surface through the same channel: the caller only sees "the registrar did
// not give us a usable answer".
func decode(raw []byte) (*envelope, error) {
	if len(raw) == 0 {
		return nil, appErrors.Clone(appErrors.ErrRegistrarRejected, "registrar returned an empty document")
	}

	var doc envelope
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrRegistrarRejected.Code, appErrors.ErrRegistrarRejected.Status, "malformed registrar document")
	}

	if doc.Status.Flag == nil {
		return nil, appErrors.Clone(appErrors.ErrRegistrarRejected, "registrar document missing status flag")
	}
	if *doc.Status.Flag == 0 {
		msg := doc.Status.ErrorInfo
		if msg == "" {
			msg = "registrar reported an unspecified error"
		}
		return nil, appErrors.Clone(appErrors.ErrRegistrarRejected, msg)
	}

	return &doc, nil
}

func parseSections(raw []byte) ([]models.Section, error) {
	doc, err := decode(raw)
	if err != nil {
		return nil, err
	}

	sections := make([]models.Section, 0, len(doc.Courses.Items))
	for _, item := range doc.Courses.Items {
		if item.ID == "" || item.TeacherName == "" {
			return nil, appErrors.Clone(appErrors.ErrRegistrarRejected, "registrar section entry missing required fields")
		}
		sections = append(sections, models.Section{
			ID:          item.ID,
			CourseName:  item.CourseName,
			TeacherName: item.TeacherName,
		})
	}
	return sections, nil
}

func parseStudents(raw []byte) ([]models.StudentRecord, error) {
	doc, err := decode(raw)
	if err != nil {
		return nil, err
	}

	students := make([]models.StudentRecord, 0, len(doc.Students.Items))
	for _, item := range doc.Students.Items {
		if item.Code == "" {
			return nil, appErrors.Clone(appErrors.ErrRegistrarRejected, "registrar student entry missing identity code")
		}
		students = append(students, models.StudentRecord{
			Code: item.Code,
			Name: item.Name,
		})
	}
	return students, nil
}
