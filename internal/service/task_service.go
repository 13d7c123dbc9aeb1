package service

import (
	"context"
	"fmt"
	"strings"
	"taskBot/internal/logger"
	"taskBot/internal/models/task"
	rep "taskBot/internal/repository"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

const DefaultMaxDescriptionLength = 500

// TaskService is the only entry point to task persistence. It owns no state
// besides the injected storage and checks input shape before delegating.
type TaskService struct {
	storage              TaskStorage
	maxDescriptionLength int
}

func NewTaskService(storage TaskStorage, maxDescriptionLength int) *TaskService {
	if maxDescriptionLength <= 0 {
		maxDescriptionLength = DefaultMaxDescriptionLength
	}
	return &TaskService{
		storage:              storage,
		maxDescriptionLength: maxDescriptionLength,
	}
}

func (s *TaskService) HealthCheck(ctx context.Context) error {
	if err := s.storage.HealthCheck(ctx); err != nil {
		return fmt.Errorf("service health check: %w", rep.Wrap("health_check", err))
	}
	return nil
}

func (s *TaskService) AddTask(ctx context.Context, ownerID int64, description string) (int64, error) {
	const op = "add_task"
	start := time.Now()

	if err := validateOwner(ownerID); err != nil {
		logger.Warn("Service: Validation failed", append(logger.Operation(op, ownerID, "invalid"), zap.Error(err))...)
		return 0, err
	}
	if err := s.validateDescription(description); err != nil {
		logger.Warn("Service: Validation failed", append(logger.Operation(op, ownerID, "invalid"), zap.Error(err))...)
		return 0, err
	}

	id, err := s.storage.Insert(ctx, ownerID, description)
	if err != nil {
		err = rep.Wrap("insert", err)
		logger.Error("Service: Failed to add task", err, logger.Operation(op, ownerID, "error")...)
		return 0, err
	}

	logger.Info("Service: Task added", append(logger.Operation(op, ownerID, "created"),
		zap.Int64("task_id", id),
		zap.Duration("ms", time.Since(start)))...)
	return id, nil
}

func (s *TaskService) GetTasks(ctx context.Context, ownerID int64, limit, offset int) ([]*task.Task, error) {
	const op = "get_tasks"

	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, NewValidationError("limit", "must be positive")
	}
	if offset < 0 {
		return nil, NewValidationError("offset", "must not be negative")
	}

	tasks, err := s.storage.List(ctx, ownerID, limit, offset)
	if err != nil {
		err = rep.Wrap("list", err)
		logger.Error("Service: Failed to get tasks", err, logger.Operation(op, ownerID, "error")...)
		return nil, err
	}
	return tasks, nil
}

// CountTasks counts the owner's tasks; a nil completed means no status filter.
func (s *TaskService) CountTasks(ctx context.Context, ownerID int64, completed *bool) (int, error) {
	const op = "count_tasks"

	if err := validateOwner(ownerID); err != nil {
		return 0, err
	}

	count, err := s.storage.Count(ctx, ownerID, completed)
	if err != nil {
		err = rep.Wrap("count", err)
		logger.Error("Service: Failed to count tasks", err, logger.Operation(op, ownerID, "error")...)
		return 0, err
	}
	return count, nil
}

// SetStatus reports whether a task with this id exists under this owner.
// Setting the value the row already has still reports true.
func (s *TaskService) SetStatus(ctx context.Context, ownerID, taskID int64, completed bool) (bool, error) {
	const op = "set_status"

	if err := validateOwner(ownerID); err != nil {
		return false, err
	}
	if err := validateTaskID(taskID); err != nil {
		return false, err
	}

	found, err := s.storage.SetCompleted(ctx, ownerID, taskID, completed)
	if err != nil {
		err = rep.Wrap("set_completed", err)
		logger.Error("Service: Failed to set task status", err,
			append(logger.Operation(op, ownerID, "error"), zap.Int64("task_id", taskID))...)
		return false, err
	}

	logger.Info("Service: Task status changed", append(logger.Operation(op, ownerID, outcome(found)),
		zap.Int64("task_id", taskID),
		zap.Bool("completed", completed))...)
	return found, nil
}

func (s *TaskService) DeleteTask(ctx context.Context, ownerID, taskID int64) (bool, error) {
	const op = "delete_task"

	if err := validateOwner(ownerID); err != nil {
		return false, err
	}
	if err := validateTaskID(taskID); err != nil {
		return false, err
	}

	found, err := s.storage.Delete(ctx, ownerID, taskID)
	if err != nil {
		err = rep.Wrap("delete", err)
		logger.Error("Service: Failed to delete task", err,
			append(logger.Operation(op, ownerID, "error"), zap.Int64("task_id", taskID))...)
		return false, err
	}

	logger.Info("Service: Task deleted", append(logger.Operation(op, ownerID, outcome(found)),
		zap.Int64("task_id", taskID))...)
	return found, nil
}

func (s *TaskService) validateDescription(description string) error {
	if strings.TrimSpace(description) == "" {
		return NewValidationError("description", "must not be empty")
	}
	if utf8.RuneCountInString(description) > s.maxDescriptionLength {
		return NewValidationError("description",
			fmt.Sprintf("must be at most %d characters", s.maxDescriptionLength))
	}
	return nil
}

func validateOwner(ownerID int64) error {
	if ownerID <= 0 {
		return NewValidationError("owner_id", "must be a positive integer")
	}
	return nil
}

func validateTaskID(taskID int64) error {
	if taskID <= 0 {
		return NewValidationError("task_id", "must be a positive integer")
	}
	return nil
}

func outcome(found bool) string {
	if found {
		return "ok"
	}
	return "not_found"
}
