package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/leuf-systems/nexus/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ScheduledTaskRepo implements ports.ScheduledTaskRepository.
type ScheduledTaskRepo struct {
	pool Pool
}

// NewScheduledTaskRepo creates a new ScheduledTaskRepo.
func NewScheduledTaskRepo(pool Pool) *ScheduledTaskRepo {
	return &ScheduledTaskRepo{pool: pool}
}

const scheduledTaskColumns = `id, resource_type, resource_id, name, task_type, cron_spec, params_json,
	prev_execution_epoch_sec, next_execution_epoch_sec`

// Create inserts a new scheduled task.
func (r *ScheduledTaskRepo) Create(ctx context.Context, t *domain.ScheduledTask) error {
	query := `INSERT INTO scheduled_tasks (` + scheduledTaskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.pool.Exec(ctx, query,
		t.ID, t.ResourceType, t.ResourceID, t.Name, t.TaskType, t.CronSpec, t.ParamsJSON,
		t.PrevExecutionEpochSec, t.NextExecutionEpochSec,
	)
	if err != nil {
		return fmt.Errorf("insert scheduled task: %w", err)
	}
	return nil
}

// GetByID fetches a scheduled task by UUID.
func (r *ScheduledTaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ScheduledTask, error) {
	query := `SELECT ` + scheduledTaskColumns + ` FROM scheduled_tasks WHERE id = $1`
	return r.scan(r.pool.QueryRow(ctx, query, id))
}

// ListByResource fetches every scheduled task bound to (resourceType, resourceID).
func (r *ScheduledTaskRepo) ListByResource(ctx context.Context, resourceType string, resourceID uuid.UUID) ([]domain.ScheduledTask, error) {
	query := `SELECT ` + scheduledTaskColumns + ` FROM scheduled_tasks WHERE resource_type = $1 AND resource_id = $2`

	rows, err := r.pool.Query(ctx, query, resourceType, resourceID)
	if err != nil {
		return nil, fmt.Errorf("list scheduled tasks by resource: %w", err)
	}
	defer rows.Close()
	return r.collect(rows)
}

// ListAll fetches every scheduled task, used at scheduler startup.
func (r *ScheduledTaskRepo) ListAll(ctx context.Context) ([]domain.ScheduledTask, error) {
	query := `SELECT ` + scheduledTaskColumns + ` FROM scheduled_tasks`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list all scheduled tasks: %w", err)
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *ScheduledTaskRepo) collect(rows pgx.Rows) ([]domain.ScheduledTask, error) {
	var out []domain.ScheduledTask
	for rows.Next() {
		t, err := scanScheduledTaskRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scheduled task rows: %w", err)
	}
	return out, nil
}

// RecordExecution updates a task's prev/next execution epoch after a run.
func (r *ScheduledTaskRepo) RecordExecution(ctx context.Context, id uuid.UUID, prevEpochSec int64, nextEpochSec int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE scheduled_tasks SET prev_execution_epoch_sec = $1, next_execution_epoch_sec = $2 WHERE id = $3`,
		prevEpochSec, nextEpochSec, id)
	if err != nil {
		return fmt.Errorf("record scheduled task execution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("scheduled task not found: %s", id)
	}
	return nil
}

func (r *ScheduledTaskRepo) scan(row pgx.Row) (*domain.ScheduledTask, error) {
	t := &domain.ScheduledTask{}
	err := row.Scan(
		&t.ID, &t.ResourceType, &t.ResourceID, &t.Name, &t.TaskType, &t.CronSpec, &t.ParamsJSON,
		&t.PrevExecutionEpochSec, &t.NextExecutionEpochSec,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan scheduled task: %w", err)
	}
	return t, nil
}

func scanScheduledTaskRow(row scanRows) (*domain.ScheduledTask, error) {
	t := &domain.ScheduledTask{}
	err := row.Scan(
		&t.ID, &t.ResourceType, &t.ResourceID, &t.Name, &t.TaskType, &t.CronSpec, &t.ParamsJSON,
		&t.PrevExecutionEpochSec, &t.NextExecutionEpochSec,
	)
	if err != nil {
		return nil, fmt.Errorf("scan scheduled task row: %w", err)
	}
	return t, nil
}
