package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/medrota/rota-api/internal/dto"
	"github.com/medrota/rota-api/internal/models"
	"github.com/medrota/rota-api/pkg/config"
	appErrors "github.com/medrota/rota-api/pkg/errors"
)

type importAssignmentStore interface {
	ListByResidents(ctx context.Context, filter models.AssignmentFilter) ([]models.ScheduleAssignment, error)
	BulkUpsert(ctx context.Context, assignments []models.ScheduleAssignment) error
}

type importResidentStore interface {
	List(ctx context.Context, filter models.ResidentFilter) ([]models.Resident, error)
}

type importRotationStore interface {
	GetByIDs(ctx context.Context, ids []string) (map[string]models.Rotation, error)
	GetByNames(ctx context.Context, names []string) (map[string]models.Rotation, error)
}

// ImportService ingests a block schedule workbook. The expected layout is
// a grid: row 1 holds week-start dates from column B onward, column A
// holds resident names, and each cell names the rotation for that
// resident and week. Unknown names are skipped and reported, never fatal.
type ImportService struct {
	assignments importAssignmentStore
	residents   importResidentStore
	rotations   importRotationStore
	validator   scheduleValidator
	audit       auditLogger
	cfg         config.ImportsConfig
	logger      *zap.Logger
}

// NewImportService constructs the service.
func NewImportService(assignments importAssignmentStore, residents importResidentStore, rotations importRotationStore, validator scheduleValidator, audit auditLogger, cfg config.ImportsConfig, logger *zap.Logger) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportService{
		assignments: assignments,
		residents:   residents,
		rotations:   rotations,
		validator:   validator,
		audit:       audit,
		cfg:         cfg,
		logger:      logger,
	}
}

// ImportSchedule parses the workbook and writes every resolvable cell as
// an assignment in one transaction. Without force, duty-hour violations on
// the imported residents abort before anything is written; with force, the
// import commits and the override is audited.
func (s *ImportService) ImportSchedule(ctx context.Context, adminID string, reader io.Reader, force bool) (*dto.ImportResult, error) {
	workbook, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is not a readable xlsx workbook")
	}
	defer workbook.Close()

	sheet := workbook.GetSheetName(0)
	if sheet == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "workbook has no sheets")
	}
	rows, err := workbook.GetRows(sheet)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "failed to read workbook rows")
	}
	if len(rows) < 2 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "workbook has no schedule rows")
	}
	if s.cfg.MaxRows > 0 && len(rows) > s.cfg.MaxRows {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("workbook exceeds %d rows", s.cfg.MaxRows))
	}

	weekStarts, skipped := parseHeaderWeeks(rows[0])
	if len(weekStarts) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "header row contains no week-start dates")
	}

	residentsByName, err := s.residentIndex(ctx)
	if err != nil {
		return nil, err
	}

	rotationNames := collectRotationNames(rows[1:], weekStarts)
	rotationsByName, err := s.rotations.GetByNames(ctx, rotationNames)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rotations")
	}

	var assignments []models.ScheduleAssignment
	matched := make(map[string]struct{})

	for rowIdx, row := range rows[1:] {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		name := strings.TrimSpace(row[0])
		resident, ok := residentsByName[strings.ToUpper(name)]
		if !ok {
			skipped = append(skipped, fmt.Sprintf("row %d: unknown resident %q", rowIdx+2, name))
			continue
		}
		matched[resident.ID] = struct{}{}

		for _, week := range weekStarts {
			cell := ""
			if week.col < len(row) {
				cell = strings.TrimSpace(row[week.col])
			}
			if cell == "" {
				continue
			}
			rotation, ok := rotationsByName[strings.ToUpper(cell)]
			if !ok {
				skipped = append(skipped, fmt.Sprintf("row %d col %d: unknown rotation %q", rowIdx+2, week.col+1, cell))
				continue
			}
			assignments = append(assignments, models.ScheduleAssignment{
				ResidentID:     resident.ID,
				RotationID:     rotation.ID,
				WeekStart:      week.start,
				WeekEnd:        week.start.AddDate(0, 0, 6),
				AcademicYearID: resident.AcademicYearID,
				Source:         models.SourceExcel,
			})
		}
	}

	if len(assignments) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no assignments could be resolved from the workbook")
	}

	residentIDs := make([]string, 0, len(matched))
	for id := range matched {
		residentIDs = append(residentIDs, id)
	}

	violations, err := s.previewViolations(ctx, residentIDs, assignments)
	if err != nil {
		return nil, err
	}
	if hasHard(violations) && !force {
		// Nothing was written; the admin can fix the workbook and retry,
		// or re-submit with force to override.
		return &dto.ImportResult{
				ResidentsMatched:   len(matched),
				AssignmentsWritten: 0,
				SkippedCells:       skipped,
				Violations:         violations,
			}, appErrors.WithDetails(appErrors.ErrScheduleViolation,
				fmt.Sprintf("imported schedule violates duty-hour rules (%d violations)", len(violations)),
				violations,
			)
	}

	if err := s.assignments.BulkUpsert(ctx, assignments); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write assignments")
	}

	s.emitImportAudit(ctx, adminID, len(assignments), violations, force)
	s.logger.Info("schedule imported",
		zap.String("admin_id", adminID),
		zap.Int("residents", len(matched)),
		zap.Int("assignments", len(assignments)),
		zap.Int("skipped", len(skipped)),
		zap.Bool("forced", force),
	)

	return &dto.ImportResult{
		ResidentsMatched:   len(matched),
		AssignmentsWritten: len(assignments),
		SkippedCells:       skipped,
		Violations:         violations,
		Forced:             force && hasHard(violations),
	}, nil
}

// previewViolations evaluates the schedule as it would look after the
// import: the matched residents' current assignments with the imported
// weeks swapped in.
func (s *ImportService) previewViolations(ctx context.Context, residentIDs []string, incoming []models.ScheduleAssignment) ([]models.Violation, error) {
	existing, err := s.assignments.ListByResidents(ctx, models.AssignmentFilter{ResidentIDs: residentIDs})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}

	type slot struct {
		resident string
		week     time.Time
	}
	replaced := make(map[slot]struct{}, len(incoming))
	for _, assignment := range incoming {
		replaced[slot{assignment.ResidentID, dayKey(assignment.WeekStart)}] = struct{}{}
	}

	prospective := make([]models.ScheduleAssignment, 0, len(existing)+len(incoming))
	for _, assignment := range existing {
		if _, ok := replaced[slot{assignment.ResidentID, dayKey(assignment.WeekStart)}]; ok {
			continue
		}
		prospective = append(prospective, assignment)
	}
	prospective = append(prospective, incoming...)

	rotationIDs := make([]string, 0, len(prospective))
	seen := make(map[string]struct{}, len(prospective))
	for _, assignment := range prospective {
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

	return EvaluateSchedule(s.validator.Rules(), prospective, rotations), nil
}

func (s *ImportService) residentIndex(ctx context.Context) (map[string]models.Resident, error) {
	residents, err := s.residents.List(ctx, models.ResidentFilter{ActiveOnly: true})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list residents")
	}
	index := make(map[string]models.Resident, len(residents))
	for _, resident := range residents {
		index[strings.ToUpper(strings.TrimSpace(resident.Name))] = resident
	}
	return index, nil
}

func (s *ImportService) emitImportAudit(ctx context.Context, adminID string, written int, violations []models.Violation, force bool) {
	if s.audit == nil {
		return
	}
	entityType := "schedule"
	summary := fmt.Sprintf(`{"assignmentsWritten":%d,"forced":%t}`, written, force)
	log := &models.AuditLog{
		AdminID:    &adminID,
		Action:     models.AuditActionScheduleImport,
		EntityType: &entityType,
		NewValue:   []byte(summary),
	}
	if force && hasHard(violations) {
		log.Action = models.AuditActionScheduleForce
		log.OldValue = marshalViolations(violations)
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

// headerWeek ties a parsed week-start date to the workbook column it came
// from, so skipped header cells never shift later columns' data.
type headerWeek struct {
	col   int
	start time.Time
}

// parseHeaderWeeks reads the week-start dates from row 1, column B onward.
// Cells that do not parse as dates are reported, not fatal.
func parseHeaderWeeks(header []string) ([]headerWeek, []string) {
	var weekStarts []headerWeek
	var skipped []string
	for idx := 1; idx < len(header); idx++ {
		raw := strings.TrimSpace(header[idx])
		if raw == "" {
			continue
		}
		parsed, err := parseCellDate(raw)
		if err != nil {
			skipped = append(skipped, fmt.Sprintf("header col %d: unparseable date %q", idx+1, raw))
			continue
		}
		weekStarts = append(weekStarts, headerWeek{col: idx, start: parsed})
	}
	return weekStarts, skipped
}

func parseCellDate(raw string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "01/02/2006", "1/2/2006", "01-02-06"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date format: %s", raw)
}

func collectRotationNames(rows [][]string, weekStarts []headerWeek) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, row := range rows {
		for _, week := range weekStarts {
			if week.col >= len(row) {
				continue
			}
			cell := strings.TrimSpace(row[week.col])
			if cell == "" {
				continue
			}
			key := strings.ToUpper(cell)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			names = append(names, cell)
		}
	}
	return names
}
