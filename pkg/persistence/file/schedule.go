package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/flowmesh/flowmesh/pkg/models"
	"github.com/flowmesh/flowmesh/pkg/persistence"
)

// ScheduleRepository handles schedule storage on the file system.
type ScheduleRepository struct {
	dir string
}

// NewScheduleRepository creates a schedule repository under root/schedules.
func NewScheduleRepository(root string) *ScheduleRepository {
	return &ScheduleRepository{dir: filepath.Join(root, "schedules")}
}

// List returns all stored schedules sorted by identifier.
func (sr *ScheduleRepository) List(ctx context.Context) ([]*models.Schedule, error) {
	ids, err := listDocumentIDs(sr.dir)
	if err != nil {
		return nil, err
	}

	sort.Strings(ids)

	schedules := make([]*models.Schedule, 0, len(ids))

	for _, id := range ids {
		schedule, err := sr.ByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load schedule %s: %w", id, err)
		}

		schedules = append(schedules, schedule)
	}

	return schedules, nil
}

// ByID loads a single schedule.
func (sr *ScheduleRepository) ByID(_ context.Context, id string) (*models.Schedule, error) {
	var schedule models.Schedule

	err := readDocument(sr.dir, id, &schedule)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", persistence.ErrScheduleNotFound, id)
	}

	if err != nil {
		return nil, err
	}

	return &schedule, nil
}

// Save writes the schedule document, replacing any previous version.
func (sr *ScheduleRepository) Save(_ context.Context, schedule *models.Schedule) error {
	return writeDocument(sr.dir, schedule.ID, schedule)
}

// Delete removes the schedule document.
func (sr *ScheduleRepository) Delete(_ context.Context, id string) error {
	err := removeDocument(sr.dir, id)
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", persistence.ErrScheduleNotFound, id)
	}

	return err
}
