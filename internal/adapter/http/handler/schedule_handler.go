package handler

import (
	"encoding/json"

	"github.com/leuf-systems/nexus/internal/adapter/http/dto"
	"github.com/leuf-systems/nexus/internal/core/domain"
	"github.com/leuf-systems/nexus/internal/core/ports"
	"github.com/leuf-systems/nexus/pkg/apperror"
	"github.com/leuf-systems/nexus/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ScheduleHandler registers cron-driven fetch/submit tasks against a bank
// account.
type ScheduleHandler struct {
	taskRepo     ports.ScheduledTaskRepository
	schedulerSvc ports.SchedulerService
}

// NewScheduleHandler creates a new ScheduleHandler.
func NewScheduleHandler(taskRepo ports.ScheduledTaskRepository, schedulerSvc ports.SchedulerService) *ScheduleHandler {
	return &ScheduleHandler{taskRepo: taskRepo, schedulerSvc: schedulerSvc}
}

// Create handles POST /api/v1/bank-accounts/{a}/schedule.
func (h *ScheduleHandler) Create(c *gin.Context) {
	bankAccountID, err := parseUUIDParam(c, "a")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	paramsJSON, err := json.Marshal(req.Params)
	if err != nil {
		response.Error(c, apperror.Validation("params must be valid JSON"))
		return
	}

	task := domain.ScheduledTask{
		ID:           uuid.New(),
		ResourceType: "bank-account",
		ResourceID:   bankAccountID,
		Name:         req.Name,
		TaskType:     domain.TaskType(req.Type),
		CronSpec:     req.CronSpec,
		ParamsJSON:   paramsJSON,
	}

	if err := h.taskRepo.Create(c.Request.Context(), &task); err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}
	if err := h.schedulerSvc.ScheduleTask(task); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	response.Created(c, dto.ScheduleResponse{
		ID:       task.ID.String(),
		Name:     task.Name,
		CronSpec: task.CronSpec,
		Type:     string(task.TaskType),
	})
}
