package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/medrota/rota-api/internal/models"
)

func TestRosterDatasetOrdersBySeniority(t *testing.T) {
	residents := []models.Resident{
		{ID: "res-1", Name: "Avery Park", PGYLevel: models.PGYLevelPGY3},
		{ID: "res-2", Name: "Zara Quinn", PGYLevel: models.PGYLevelTY},
		{ID: "res-3", Name: "Blake Young", PGYLevel: models.PGYLevelPGY1},
		{ID: "res-4", Name: "Adam Cole", PGYLevel: models.PGYLevelTY},
	}

	dataset := buildRosterDataset(residents, nil, nil)

	names := make([]string, len(dataset.Rows))
	for i, row := range dataset.Rows {
		names[i] = row["Resident"]
	}
	// TY is the most junior tier and leads the roster even though it sorts
	// after PGY3 as a string; ties break alphabetically.
	require.Equal(t, []string{"Adam Cole", "Zara Quinn", "Blake Young", "Avery Park"}, names)
}

func TestRosterDatasetPlacesCellsByWeek(t *testing.T) {
	residents := []models.Resident{
		{ID: "res-1", Name: "Avery Park", PGYLevel: models.PGYLevelPGY2},
	}
	week := time.Date(2025, 7, 5, 0, 0, 0, 0, time.UTC)
	assignments := []models.ScheduleAssignment{
		{ResidentID: "res-1", RotationID: "rot-icu", WeekStart: week, WeekEnd: week.AddDate(0, 0, 6)},
	}
	rotations := map[string]models.Rotation{
		"rot-icu": {ID: "rot-icu", Name: "ICU"},
	}

	dataset := buildRosterDataset(residents, assignments, rotations)

	require.Equal(t, []string{"Resident", "PGY", "2025-07-05"}, dataset.Headers)
	require.Len(t, dataset.Rows, 1)
	require.Equal(t, "ICU", dataset.Rows[0]["2025-07-05"])
	require.Equal(t, "PGY2", dataset.Rows[0]["PGY"])
}
