package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/export"
)

type rosterSource interface {
	FindByID(ctx context.Context, id int64) (*models.Course, error)
}

type rosterLister interface {
	ListByCourse(ctx context.Context, courseID int64) ([]models.EnrollmentDetail, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type xlsxRenderer interface {
	Render(data export.Dataset, sheet string) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// Roster column headers.
const (
	rosterColNo       = "No"
	rosterColStudent  = "Student"
	rosterColEmail    = "Email"
	rosterColStatus   = "Status"
	rosterColEnrolled = "Enrolled At"
)

// ExportFile is a rendered document ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ExportService renders course rosters.
type ExportService struct {
	courses     rosterSource
	enrollments rosterLister
	csv         csvRenderer
	xlsx        xlsxRenderer
	pdf         pdfRenderer
	logger      *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers fall back to the
// pkg/export implementations.
func NewExportService(courses rosterSource, enrollments rosterLister, logger *zap.Logger, csv csvRenderer, xlsx xlsxRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if xlsx == nil {
		xlsx = export.NewXLSXExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{courses: courses, enrollments: enrollments, csv: csv, xlsx: xlsx, pdf: pdf, logger: logger}
}

// ExportRoster renders the students of a course in the requested format.
// tutorID zero skips the ownership check.
func (s *ExportService) ExportRoster(ctx context.Context, tutorID, courseID int64, rawFormat string) (*ExportFile, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "format must be csv, xlsx or pdf")
	}

	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, storageFailure(s.logger, err, "failed to load course", zap.Int64("course_id", courseID))
	}
	if tutorID != 0 && course.TutorID != tutorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "course belongs to another tutor")
	}

	roster, err := s.enrollments.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, storageFailure(s.logger, err, "failed to load roster", zap.Int64("course_id", courseID))
	}
	dataset := rosterDataset(roster)

	var content []byte
	switch format {
	case export.FormatXLSX:
		content, err = s.xlsx.Render(dataset, "Roster")
	case export.FormatPDF:
		content, err = s.pdf.Render(dataset, course.Name+" roster")
	default:
		content, err = s.csv.Render(dataset)
	}
	if err != nil {
		s.logger.Error("failed to render roster", zap.Int64("course_id", courseID), zap.String("format", string(format)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}

	s.logger.Info("roster exported",
		zap.Int64("course_id", courseID),
		zap.String("format", string(format)),
		zap.Int("rows", len(roster)))
	return &ExportFile{
		Filename:    fmt.Sprintf("course-%d-roster.%s", courseID, format),
		ContentType: format.ContentType(),
		Content:     content,
	}, nil
}

func rosterDataset(roster []models.EnrollmentDetail) export.Dataset {
	data := export.Dataset{
		Headers: []string{rosterColNo, rosterColStudent, rosterColEmail, rosterColStatus, rosterColEnrolled},
		Rows:    make([]map[string]string, 0, len(roster)),
	}
	for i, entry := range roster {
		data.Rows = append(data.Rows, map[string]string{
			rosterColNo:       fmt.Sprintf("%d", i+1),
			rosterColStudent:  entry.StudentName,
			rosterColEmail:    entry.StudentEmail,
			rosterColStatus:   string(entry.Status),
			rosterColEnrolled: entry.EnrolledAt.UTC().Format("2006-01-02 15:04"),
		})
	}
	return data
}
