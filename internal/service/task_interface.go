package service

import (
	"context"
	"taskBot/internal/models/task"
)

// TaskStorage is the storage backend contract. Implementations wrap every
// failure into *repository.StorageError.
type TaskStorage interface {
	Init(ctx context.Context) error
	Insert(ctx context.Context, ownerID int64, description string) (int64, error)
	List(ctx context.Context, ownerID int64, limit, offset int) ([]*task.Task, error)
	Count(ctx context.Context, ownerID int64, completed *bool) (int, error)
	SetCompleted(ctx context.Context, ownerID, taskID int64, completed bool) (bool, error)
	Delete(ctx context.Context, ownerID, taskID int64) (bool, error)
	HealthCheck(ctx context.Context) error
	Close() error
}
