package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/medrota/rota-api/internal/models"
	appErrors "github.com/medrota/rota-api/pkg/errors"
	"github.com/medrota/rota-api/pkg/export"
)

// RosterFormat selects the rendered export format.
type RosterFormat string

const (
	RosterFormatCSV RosterFormat = "csv"
	RosterFormatPDF RosterFormat = "pdf"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type exportResidentStore interface {
	List(ctx context.Context, filter models.ResidentFilter) ([]models.Resident, error)
}

// RosterExport is a rendered roster ready to stream to the client.
type RosterExport struct {
	Payload     []byte
	Filename    string
	ContentType string
}

// ExportService renders the block roster as a resident-by-week grid.
type ExportService struct {
	residents   exportResidentStore
	assignments scheduleAssignmentStore
	rotations   scheduleRotationStore
	csv         csvRenderer
	pdf         pdfRenderer
	logger      *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(residents exportResidentStore, assignments scheduleAssignmentStore, rotations scheduleRotationStore, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		residents:   residents,
		assignments: assignments,
		rotations:   rotations,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		logger:      logger,
	}
}

// Roster renders the schedule for every active resident between from and
// to as a grid, one row per resident and one column per block week.
func (s *ExportService) Roster(ctx context.Context, from, to time.Time, format RosterFormat) (*RosterExport, error) {
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "to must not precede from")
	}

	residents, err := s.residents.List(ctx, models.ResidentFilter{ActiveOnly: true})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list residents")
	}
	if len(residents) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no active residents")
	}

	residentIDs := make([]string, len(residents))
	for i, resident := range residents {
		residentIDs[i] = resident.ID
	}
	assignments, err := s.assignments.ListByResidents(ctx, models.AssignmentFilter{
		ResidentIDs: residentIDs,
		From:        &from,
		To:          &to,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}

	rotationIDs := make([]string, 0, len(assignments))
	seen := make(map[string]struct{}, len(assignments))
	for _, assignment := range assignments {
		if _, ok := seen[assignment.RotationID]; ok {
			continue
		}
		seen[assignment.RotationID] = struct{}{}
		rotationIDs = append(rotationIDs, assignment.RotationID)
	}
	rotations, err := s.rotations.GetByIDs(ctx, rotationIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rotations")
	}

	dataset := buildRosterDataset(residents, assignments, rotations)

	title := fmt.Sprintf("Rotation Roster %s to %s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	switch format {
	case RosterFormatCSV:
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &RosterExport{
			Payload:     payload,
			Filename:    rosterFilename(from, to, "csv"),
			ContentType: "text/csv",
		}, nil
	case RosterFormatPDF:
		payload, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &RosterExport{
			Payload:     payload,
			Filename:    rosterFilename(from, to, "pdf"),
			ContentType: "application/pdf",
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

func buildRosterDataset(residents []models.Resident, assignments []models.ScheduleAssignment, rotations map[string]models.Rotation) export.Dataset {
	weekSet := make(map[time.Time]struct{})
	byCell := make(map[string]string)
	for _, assignment := range assignments {
		week := dayKey(assignment.WeekStart)
		weekSet[week] = struct{}{}
		name := assignment.RotationID
		if rotation, ok := rotations[assignment.RotationID]; ok {
			name = rotationSummary(rotation)
		}
		byCell[assignment.ResidentID+"|"+week.Format("2006-01-02")] = name
	}

	weeks := make([]time.Time, 0, len(weekSet))
	for week := range weekSet {
		weeks = append(weeks, week)
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].Before(weeks[j]) })

	headers := []string{"Resident", "PGY"}
	for _, week := range weeks {
		headers = append(headers, week.Format("2006-01-02"))
	}

	sorted := make([]models.Resident, len(residents))
	copy(sorted, residents)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].PGYLevel != sorted[j].PGYLevel {
			return sorted[i].PGYLevel.Seniority() < sorted[j].PGYLevel.Seniority()
		}
		return strings.ToUpper(sorted[i].Name) < strings.ToUpper(sorted[j].Name)
	})

	rows := make([]map[string]string, 0, len(sorted))
	for _, resident := range sorted {
		row := map[string]string{
			"Resident": resident.Name,
			"PGY":      string(resident.PGYLevel),
		}
		for _, week := range weeks {
			key := week.Format("2006-01-02")
			row[key] = byCell[resident.ID+"|"+key]
		}
		rows = append(rows, row)
	}

	return export.Dataset{Headers: headers, Rows: rows}
}

func rosterFilename(from, to time.Time, ext string) string {
	return fmt.Sprintf("roster_%s_%s.%s", from.Format("20060102"), to.Format("20060102"), ext)
}
