package handlers

import (
	"context"
	"taskBot/internal/models/task"
)

type Service interface {
	AddTask(ctx context.Context, ownerID int64, description string) (int64, error)
	GetTasks(ctx context.Context, ownerID int64, limit, offset int) ([]*task.Task, error)
	CountTasks(ctx context.Context, ownerID int64, completed *bool) (int, error)
	SetStatus(ctx context.Context, ownerID, taskID int64, completed bool) (bool, error)
	DeleteTask(ctx context.Context, ownerID, taskID int64) (bool, error)
	HealthCheck(ctx context.Context) error
}
