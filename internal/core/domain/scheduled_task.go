package domain

import "github.com/google/uuid"

// TaskType enumerates the kinds of work the scheduler dispatches (spec
// §4.5).
type TaskType string

const (
	TaskTypeFetch  TaskType = "fetch"
	TaskTypeSubmit TaskType = "submit"
)

// RangeType selects how much history a fetch task requests.
type RangeType string

const (
	RangeTypeLatest      RangeType = "latest"
	RangeTypeAll         RangeType = "all"
	RangeTypeSinceLast   RangeType = "since-last"
	RangeTypePreviousDays RangeType = "previous-days"
)

// FetchTaskParams is the decoded params payload for a TaskTypeFetch row.
type FetchTaskParams struct {
	Level     FetchLevel `json:"level"`
	RangeType RangeType  `json:"rangeType"`
	Number    *int       `json:"number,omitempty"`
}

// FetchLevelAll is a sentinel RangeType-adjacent level meaning "all three
// fetch levels", used in FetchTaskParams.Level.
const FetchLevelAll FetchLevel = "all"

// ScheduledTask binds a cron spec to a (resource, task name) pair. The
// scheduler owns mutating Next/PrevExecutionEpochSec.
type ScheduledTask struct {
	ID           uuid.UUID
	ResourceType string // "bank-account"
	ResourceID   uuid.UUID
	Name         string
	TaskType     TaskType
	CronSpec     string
	ParamsJSON   []byte

	PrevExecutionEpochSec *int64
	NextExecutionEpochSec int64
}
