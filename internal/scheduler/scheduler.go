// Package scheduler drives cron-scheduled fetch/submit tasks against the
// ledger and initiation services.
package scheduler

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/leuf-systems/nexus/internal/core/domain"
	"github.com/leuf-systems/nexus/internal/core/ports"
	"github.com/leuf-systems/nexus/pkg/apperror"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Service implements ports.SchedulerService using robfig/cron. Each
// ScheduledTask row becomes one cron entry; Start loads every row once and
// subsequent ScheduleTask/Unschedule calls mutate the running cron directly
// so an operator's edit takes effect without a restart.
type Service struct {
	taskRepo  ports.ScheduledTaskRepository
	ledgerSvc ports.LedgerService
	initSvc   ports.InitiationService
	clock     domain.Clock
	log       zerolog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	entries map[uuid.UUID]cron.EntryID
}

// New constructs a scheduler Service.
func New(
	taskRepo ports.ScheduledTaskRepository,
	ledgerSvc ports.LedgerService,
	initSvc ports.InitiationService,
	clock domain.Clock,
	log zerolog.Logger,
) *Service {
	return &Service{
		taskRepo:  taskRepo,
		ledgerSvc: ledgerSvc,
		initSvc:   initSvc,
		clock:     clock,
		log:       log,
		cron:      cron.New(cron.WithSeconds()),
		entries:   make(map[uuid.UUID]cron.EntryID),
	}
}

var _ ports.SchedulerService = (*Service)(nil)

// Start loads every persisted ScheduledTask and registers it with the
// underlying cron, then starts the cron's own goroutine.
func (s *Service) Start(ctx context.Context) error {
	tasks, err := s.taskRepo.ListAll(ctx)
	if err != nil {
		return apperror.InternalError(err)
	}

	s.mu.Lock()
	for _, t := range tasks {
		if err := s.scheduleLocked(t); err != nil {
			s.log.Error().Err(err).Str("task_id", t.ID.String()).Msg("scheduler: failed to register task, skipping")
		}
	}
	s.mu.Unlock()

	s.cron.Start()
	return nil
}

// Stop halts the cron and waits for any in-flight run to finish.
func (s *Service) Stop() {
	<-s.cron.Stop().Done()
}

// ScheduleTask registers or replaces t's cron entry.
func (s *Service) ScheduleTask(t domain.ScheduledTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.entries[t.ID]; ok {
		s.cron.Remove(id)
		delete(s.entries, t.ID)
	}
	return s.scheduleLocked(t)
}

// Unschedule removes taskID's cron entry, if any.
func (s *Service) Unschedule(taskID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.entries[taskID]; ok {
		s.cron.Remove(id)
		delete(s.entries, taskID)
	}
}

// scheduleLocked must be called with s.mu held.
func (s *Service) scheduleLocked(t domain.ScheduledTask) error {
	task := t
	spec := task.CronSpec
	if spec == "* * *" {
		// The "* * *" literal means every tick: once a second.
		spec = "* * * * * *"
	}
	id, err := s.cron.AddFunc(spec, func() { s.run(task) })
	if err != nil {
		return err
	}
	s.entries[task.ID] = id
	return nil
}

// run executes one ScheduledTask. Errors are logged; cron has no channel to
// report them back through, and one failing task must never stop the
// others from firing.
func (s *Service) run(t domain.ScheduledTask) {
	ctx := context.Background()
	log := s.log.With().Str("task_id", t.ID.String()).Str("task_type", string(t.TaskType)).Logger()

	switch t.TaskType {
	case domain.TaskTypeFetch:
		s.runFetch(ctx, t, log)
	case domain.TaskTypeSubmit:
		if err := s.initSvc.Submit(ctx, t.ResourceID); err != nil {
			log.Error().Err(err).Msg("scheduler: submit task failed")
		}
	default:
		log.Warn().Msg("scheduler: unknown task type")
	}

	prev := t.NextExecutionEpochSec
	next := s.clock.Now().Unix()
	if err := s.taskRepo.RecordExecution(ctx, t.ID, deref(prev, next), next); err != nil {
		log.Error().Err(err).Msg("scheduler: failed to record execution")
	}
}

func (s *Service) runFetch(ctx context.Context, t domain.ScheduledTask, log zerolog.Logger) {
	var params domain.FetchTaskParams
	if err := json.Unmarshal(t.ParamsJSON, &params); err != nil {
		log.Error().Err(err).Msg("scheduler: malformed fetch task params")
		return
	}

	levels := []domain.FetchLevel{params.Level}
	if params.Level == domain.FetchLevelAll {
		levels = []domain.FetchLevel{domain.FetchLevelReport, domain.FetchLevelStatement, domain.FetchLevelNotification}
	}

	for _, level := range levels {
		if err := s.ledgerSvc.Fetch(ctx, t.ResourceID, level, params.RangeType, params.Number); err != nil {
			log.Error().Err(err).Str("level", string(level)).Msg("scheduler: fetch task failed")
		}
	}
}

func deref(v *int64, fallback int64) int64 {
	if v == nil {
		return fallback
	}
	return *v
}
