package inmemory

import (
	"context"
	"sync"
	"taskBot/internal/logger"
	"taskBot/internal/models/task"
	repo "taskBot/internal/repository"
	"time"
)

// TaskStorage is a process-local backend. Tasks are lost on exit.
type TaskStorage struct {
	storage map[int64]*task.Task
	ids     []int64
	nextID  int64
	mtx     *sync.Mutex
	closed  bool
}

func NewTaskStorage() *TaskStorage {
	return &TaskStorage{
		storage: make(map[int64]*task.Task),
		ids:     []int64{},
		mtx:     &sync.Mutex{},
	}
}

func (s *TaskStorage) Init(ctx context.Context) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.closed {
		return repo.Wrap("init", repo.ErrClosed)
	}
	return nil
}

func (s *TaskStorage) Close() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if !s.closed {
		s.closed = true
		logger.Info("Repository: In-memory storage closed")
	}
	return nil
}

func (s *TaskStorage) HealthCheck(ctx context.Context) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.closed {
		return repo.Wrap("health_check", repo.ErrClosed)
	}
	return nil
}

func (s *TaskStorage) Insert(ctx context.Context, ownerID int64, description string) (int64, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.closed {
		return 0, repo.Wrap("insert", repo.ErrClosed)
	}

	s.nextID++
	t := &task.Task{
		ID:          s.nextID,
		OwnerID:     ownerID,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	s.storage[t.ID] = t
	s.ids = append(s.ids, t.ID)
	return t.ID, nil
}

// List returns copies so callers never alias stored rows.
func (s *TaskStorage) List(ctx context.Context, ownerID int64, limit, offset int) ([]*task.Task, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.closed {
		return nil, repo.Wrap("list", repo.ErrClosed)
	}

	res := []*task.Task{}
	skipped := 0
	for _, id := range s.ids {
		if len(res) >= limit {
			break
		}
		t := s.storage[id]
		if t.OwnerID != ownerID {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		copied := *t
		res = append(res, &copied)
	}
	return res, nil
}

func (s *TaskStorage) Count(ctx context.Context, ownerID int64, completed *bool) (int, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.closed {
		return 0, repo.Wrap("count", repo.ErrClosed)
	}

	count := 0
	for _, t := range s.storage {
		if t.OwnerID != ownerID {
			continue
		}
		if completed != nil && t.Completed != *completed {
			continue
		}
		count++
	}
	return count, nil
}

func (s *TaskStorage) SetCompleted(ctx context.Context, ownerID, taskID int64, completed bool) (bool, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.closed {
		return false, repo.Wrap("set_completed", repo.ErrClosed)
	}

	t, ok := s.storage[taskID]
	if !ok || t.OwnerID != ownerID {
		return false, nil
	}
	t.Completed = completed
	return true, nil
}

func (s *TaskStorage) Delete(ctx context.Context, ownerID, taskID int64) (bool, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.closed {
		return false, repo.Wrap("delete", repo.ErrClosed)
	}

	t, ok := s.storage[taskID]
	if !ok || t.OwnerID != ownerID {
		return false, nil
	}

	delete(s.storage, taskID)
	for ind, val := range s.ids {
		if val == taskID {
			s.ids = append(s.ids[:ind], s.ids[ind+1:]...)
			break
		}
	}
	return true, nil
}
