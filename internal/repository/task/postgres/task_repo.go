package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"taskBot/internal/logger"
	"taskBot/internal/models/task"
	repo "taskBot/internal/repository"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const defaultMaxDescriptionLength = 500

type Options struct {
	MaxConnections int32
	IdleTimeout    time.Duration
}

type Storage struct {
	pool      *pgxpool.Pool
	mtx       sync.Mutex
	closeOnce sync.Once
	closed    bool
	maxLen    int
}

func New(ctx context.Context, connString string, maxDescriptionLength int, opts Options) (*Storage, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		logger.Error("Repository: Failed to parse connection string", err)
		return nil, repo.Wrap("open", fmt.Errorf("parse config: %w", err))
	}

	config.MaxConns = 1
	if opts.MaxConnections > 0 {
		config.MaxConns = opts.MaxConnections
	}
	config.MinConns = 1
	config.MaxConnIdleTime = time.Minute * 5
	if opts.IdleTimeout > 0 {
		config.MaxConnIdleTime = opts.IdleTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		logger.Error("Repository: Failed to create pool", err)
		return nil, repo.Wrap("open", fmt.Errorf("create pool: %w", err))
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		logger.Error("Repository: Ping failed", err)
		return nil, repo.Wrap("ping", err)
	}

	logger.Info("Repository: Connected to PostgreSQL", zap.Int32("max_conns", config.MaxConns))
	if maxDescriptionLength <= 0 {
		maxDescriptionLength = defaultMaxDescriptionLength
	}
	return &Storage{pool: pool, maxLen: maxDescriptionLength}, nil
}

func (s *Storage) Init(ctx context.Context) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.closed {
		return repo.Wrap("init", repo.ErrClosed)
	}

	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS tasks (
			id BIGSERIAL PRIMARY KEY,
			owner_id BIGINT NOT NULL,
			description TEXT NOT NULL CHECK (char_length(description) <= %d),
			completed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, s.maxLen),
		`CREATE INDEX IF NOT EXISTS idx_tasks_owner_id ON tasks(owner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_owner_task ON tasks(owner_id, id)`,
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return repo.Wrap("init", err)
	}
	defer tx.Rollback(ctx)

	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			logger.Error("Repository: Schema init failed", err)
			return repo.Wrap("init", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return repo.Wrap("init", err)
	}

	logger.Info("Repository: Schema ready")
	return nil
}

func (s *Storage) Close() error {
	s.closeOnce.Do(func() {
		s.mtx.Lock()
		defer s.mtx.Unlock()
		s.closed = true
		s.pool.Close()
		logger.Info("Repository: PostgreSQL connections closed")
	})
	return nil
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.closed {
		return repo.Wrap("health_check", repo.ErrClosed)
	}
	if err := s.pool.Ping(ctx); err != nil {
		logger.Error("Repository: Ping failed", err)
		return repo.Wrap("health_check", err)
	}
	return nil
}

func (s *Storage) Insert(ctx context.Context, ownerID int64, description string) (int64, error) {
	start := time.Now()
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.closed {
		return 0, repo.Wrap("insert", repo.ErrClosed)
	}

	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO tasks (owner_id, description) VALUES ($1, $2) RETURNING id`,
		ownerID, description).Scan(&id)
	if err != nil {
		logger.Error("Repository: Failed to insert task", err, zap.Int64("owner_id", ownerID))
		return 0, repo.Wrap("insert", err)
	}

	warnIfSlow(start)
	return id, nil
}

func (s *Storage) List(ctx context.Context, ownerID int64, limit, offset int) ([]*task.Task, error) {
	start := time.Now()
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.closed {
		return nil, repo.Wrap("list", repo.ErrClosed)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_id, description, completed, created_at
		FROM tasks
		WHERE owner_id = $1
		ORDER BY id ASC
		LIMIT $2 OFFSET $3`,
		ownerID, limit, offset)
	if err != nil {
		logger.Error("Repository: Failed to list tasks", err, zap.Int64("owner_id", ownerID))
		return nil, repo.Wrap("list", err)
	}
	defer rows.Close()

	tasks := []*task.Task{}
	for rows.Next() {
		t := &task.Task{}
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.Description, &t.Completed, &t.CreatedAt); err != nil {
			logger.Error("Repository: Failed to scan task", err)
			return nil, repo.Wrap("list", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		logger.Error("Repository: Row iteration failed", err)
		return nil, repo.Wrap("list", err)
	}

	warnIfSlow(start)
	return tasks, nil
}

func (s *Storage) Count(ctx context.Context, ownerID int64, completed *bool) (int, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.closed {
		return 0, repo.Wrap("count", repo.ErrClosed)
	}

	var count int
	var err error
	if completed == nil {
		err = s.pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM tasks WHERE owner_id = $1`, ownerID).Scan(&count)
	} else {
		err = s.pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM tasks WHERE owner_id = $1 AND completed = $2`, ownerID, *completed).Scan(&count)
	}
	if err != nil {
		logger.Error("Repository: Failed to count tasks", err, zap.Int64("owner_id", ownerID))
		return 0, repo.Wrap("count", err)
	}
	return count, nil
}

func (s *Storage) SetCompleted(ctx context.Context, ownerID, taskID int64, completed bool) (bool, error) {
	return s.mutateOwned(ctx, "set_completed", ownerID, taskID,
		`UPDATE tasks SET completed = $1 WHERE id = $2 AND owner_id = $3`,
		completed, taskID, ownerID)
}

func (s *Storage) Delete(ctx context.Context, ownerID, taskID int64) (bool, error) {
	return s.mutateOwned(ctx, "delete", ownerID, taskID,
		`DELETE FROM tasks WHERE id = $1 AND owner_id = $2`,
		taskID, ownerID)
}

// mutateOwned locks the (id, owner_id) row, then writes it, all in one
// transaction under the storage lock.
func (s *Storage) mutateOwned(ctx context.Context, op string, ownerID, taskID int64, stmt string, args ...any) (bool, error) {
	start := time.Now()
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.closed {
		return false, repo.Wrap(op, repo.ErrClosed)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, repo.Wrap(op, err)
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx,
		`SELECT id FROM tasks WHERE id = $1 AND owner_id = $2 FOR UPDATE`, taskID, ownerID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		logger.Error("Repository: Task lookup failed", err, zap.String("operation", op), zap.Int64("task_id", taskID))
		return false, repo.Wrap(op, err)
	}

	if _, err := tx.Exec(ctx, stmt, args...); err != nil {
		logger.Error("Repository: Task write failed", err, zap.String("operation", op), zap.Int64("task_id", taskID))
		return false, repo.Wrap(op, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, repo.Wrap(op, err)
	}

	warnIfSlow(start)
	return true, nil
}

func warnIfSlow(start time.Time) {
	if time.Since(start) > time.Millisecond*100 {
		logger.Warn("Repository: Slow query", zap.Duration("ms", time.Since(start)))
	}
}
