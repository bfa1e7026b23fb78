package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-roster-sync/internal/models"
	appErrors "github.com/noah-isme/sma-roster-sync/pkg/errors"
	"github.com/noah-isme/sma-roster-sync/pkg/export"
)

// ReportFormat selects the rendered output of a status report.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

type reportInstanceRepository interface {
	List(ctx context.Context, courseID string) ([]models.SyncInstance, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ReportResult is a rendered status report ready to be served.
type ReportResult struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ReportService renders sync status reports for administrators.
type ReportService struct {
	instances reportInstanceRepository
	csv       csvRenderer
	pdf       pdfRenderer
	logger    *zap.Logger
}

// NewReportService constructs a ReportService.
func NewReportService(instances reportInstanceRepository, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ReportService{instances: instances, csv: csv, pdf: pdf, logger: logger}
}

var reportHeaders = []string{"Course ID", "Course Number", "Semester", "Status", "Last Sync", "Updated At"}

// Generate renders the status of every instance, optionally filtered to one
// course, in the requested format.
func (s *ReportService) Generate(ctx context.Context, courseID string, format ReportFormat) (*ReportResult, error) {
	if format != ReportFormatCSV && format != ReportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported report format %q", format))
	}

	instances, err := s.instances.List(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sync instances")
	}

	dataset := export.Dataset{Headers: reportHeaders}
	for _, instance := range instances {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Course ID":     instance.CourseID,
			"Course Number": instance.CourseNumber,
			"Semester":      instance.Semester,
			"Status":        string(instance.Status),
			"Last Sync":     instance.Note,
			"Updated At":    instance.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}

	var payload []byte
	switch format {
	case ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, "Roster Sync Status")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}

	result := &ReportResult{
		Filename: fmt.Sprintf("roster-sync-status-%s.%s", time.Now().UTC().Format("20060102-150405"), format),
		Payload:  payload,
	}
	switch format {
	case ReportFormatCSV:
		result.ContentType = "text/csv"
	case ReportFormatPDF:
		result.ContentType = "application/pdf"
	}

	s.logger.Info("status report generated",
		zap.String("format", string(format)),
		zap.Int("instances", len(instances)),
	)
	return result, nil
}
