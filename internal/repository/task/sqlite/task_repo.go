package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"taskBot/internal/logger"
	"taskBot/internal/models/task"
	repo "taskBot/internal/repository"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const (
	slowQuery                   = 50 * time.Millisecond
	defaultMaxDescriptionLength = 500
)

// Storage keeps tasks in a single SQLite file. All access goes through one
// connection and one mutex, so lookup-then-write sequences never interleave.
type Storage struct {
	db        *sql.DB
	mtx       sync.Mutex
	closeOnce sync.Once
	closed    bool
	maxLen    int
}

func New(ctx context.Context, path string, maxDescriptionLength int) (*Storage, error) {
	if path == "" {
		return nil, repo.Wrap("open", errors.New("db path is required"))
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		logger.Error("Repository: Failed to open SQLite", err, zap.String("path", path))
		return nil, repo.Wrap("open", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		logger.Error("Repository: SQLite ping failed", err, zap.String("path", path))
		return nil, repo.Wrap("ping", err)
	}

	logger.Info("Repository: SQLite connection opened", zap.String("path", path))
	if maxDescriptionLength <= 0 {
		maxDescriptionLength = defaultMaxDescriptionLength
	}
	return &Storage{db: db, maxLen: maxDescriptionLength}, nil
}

func (s *Storage) Init(ctx context.Context) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.closed {
		return repo.Wrap("init", repo.ErrClosed)
	}

	// The length CHECK is fixed by whichever maxLen first creates the table.
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner_id INTEGER NOT NULL,
			description TEXT NOT NULL CHECK(length(description) <= %d),
			completed BOOLEAN NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, s.maxLen),
		`CREATE INDEX IF NOT EXISTS idx_tasks_owner_id ON tasks(owner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_owner_task ON tasks(owner_id, id)`,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return repo.Wrap("init", err)
	}
	defer tx.Rollback()

	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			logger.Error("Repository: Schema init failed", err)
			return repo.Wrap("init", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return repo.Wrap("init", err)
	}

	logger.Info("Repository: Schema ready")
	return nil
}

func (s *Storage) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mtx.Lock()
		defer s.mtx.Unlock()
		s.closed = true
		err = s.db.Close()
		logger.Info("Repository: SQLite connection closed")
	})
	return repo.Wrap("close", err)
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.closed {
		return repo.Wrap("health_check", repo.ErrClosed)
	}
	if err := s.db.PingContext(ctx); err != nil {
		logger.Error("Repository: SQLite ping failed", err)
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

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (owner_id, description, created_at) VALUES (?, ?, ?)`,
		ownerID, description, time.Now().UTC())
	if err != nil {
		logger.Error("Repository: Failed to insert task", err, zap.Int64("owner_id", ownerID))
		return 0, repo.Wrap("insert", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
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

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, description, completed, created_at
		FROM tasks
		WHERE owner_id = ?
		ORDER BY id ASC
		LIMIT ? OFFSET ?`,
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
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM tasks WHERE owner_id = ?`, ownerID).Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM tasks WHERE owner_id = ? AND completed = ?`, ownerID, *completed).Scan(&count)
	}
	if err != nil {
		logger.Error("Repository: Failed to count tasks", err, zap.Int64("owner_id", ownerID))
		return 0, repo.Wrap("count", err)
	}
	return count, nil
}

func (s *Storage) SetCompleted(ctx context.Context, ownerID, taskID int64, completed bool) (bool, error) {
	return s.mutateOwned(ctx, "set_completed", ownerID, taskID,
		`UPDATE tasks SET completed = ? WHERE id = ? AND owner_id = ?`,
		completed, taskID, ownerID)
}

func (s *Storage) Delete(ctx context.Context, ownerID, taskID int64) (bool, error) {
	return s.mutateOwned(ctx, "delete", ownerID, taskID,
		`DELETE FROM tasks WHERE id = ? AND owner_id = ?`,
		taskID, ownerID)
}

// mutateOwned runs lookup-then-write for one (id, owner_id) row in a single
// transaction while holding the storage lock. It reports whether the row
// exists, independent of whether the write changed any column value.
func (s *Storage) mutateOwned(ctx context.Context, op string, ownerID, taskID int64, stmt string, args ...any) (bool, error) {
	start := time.Now()
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.closed {
		return false, repo.Wrap(op, repo.ErrClosed)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, repo.Wrap(op, err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM tasks WHERE id = ? AND owner_id = ?`, taskID, ownerID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		logger.Error("Repository: Task lookup failed", err, zap.String("operation", op), zap.Int64("task_id", taskID))
		return false, repo.Wrap(op, err)
	}

	if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
		logger.Error("Repository: Task write failed", err, zap.String("operation", op), zap.Int64("task_id", taskID))
		return false, repo.Wrap(op, err)
	}
	if err := tx.Commit(); err != nil {
		return false, repo.Wrap(op, err)
	}

	warnIfSlow(start)
	return true, nil
}

func warnIfSlow(start time.Time) {
	if time.Since(start) > slowQuery {
		logger.Warn("Repository: Slow query", zap.Duration("ms", time.Since(start)))
	}
}
