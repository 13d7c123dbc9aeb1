package service_test

import (
	"context"
	"errors"
	"strings"
	"taskBot/internal/models/task"
	"taskBot/internal/repository"
	"taskBot/internal/service"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockTaskStorage - storage mock
type MockTaskStorage struct {
	mock.Mock
}

func (m *MockTaskStorage) Init(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTaskStorage) Insert(ctx context.Context, ownerID int64, description string) (int64, error) {
	args := m.Called(ctx, ownerID, description)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTaskStorage) List(ctx context.Context, ownerID int64, limit, offset int) ([]*task.Task, error) {
	args := m.Called(ctx, ownerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*task.Task), args.Error(1)
}

func (m *MockTaskStorage) Count(ctx context.Context, ownerID int64, completed *bool) (int, error) {
	args := m.Called(ctx, ownerID, completed)
	return args.Int(0), args.Error(1)
}

func (m *MockTaskStorage) SetCompleted(ctx context.Context, ownerID, taskID int64, completed bool) (bool, error) {
	args := m.Called(ctx, ownerID, taskID, completed)
	return args.Bool(0), args.Error(1)
}

func (m *MockTaskStorage) Delete(ctx context.Context, ownerID, taskID int64) (bool, error) {
	args := m.Called(ctx, ownerID, taskID)
	return args.Bool(0), args.Error(1)
}

func (m *MockTaskStorage) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTaskStorage) Close() error {
	args := m.Called()
	return args.Error(0)
}

var _ service.TaskStorage = (*MockTaskStorage)(nil)

func TestTaskService_HealthCheck(t *testing.T) {
	tests := []struct {
		name        string
		setupMock   func(*MockTaskStorage)
		expectError bool
	}{
		{
			name: "success - storage healthy",
			setupMock: func(m *MockTaskStorage) {
				m.On("HealthCheck", mock.Anything).Return(nil)
			},
		},
		{
			name: "error - storage down",
			setupMock: func(m *MockTaskStorage) {
				m.On("HealthCheck", mock.Anything).Return(errors.New("disk gone"))
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockStorage := new(MockTaskStorage)
			tt.setupMock(mockStorage)

			svc := service.NewTaskService(mockStorage, 0)
			err := svc.HealthCheck(context.Background())

			if tt.expectError {
				require.Error(t, err)
				assert.True(t, repository.IsStorageError(err))
			} else {
				assert.NoError(t, err)
			}
			mockStorage.AssertExpectations(t)
		})
	}
}

func TestTaskService_AddTask(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name           string
		ownerID        int64
		description    string
		setupMock      func(*MockTaskStorage)
		expectedID     int64
		expectValidate bool
		expectStorage  bool
	}{
		{
			name:        "success - task added",
			ownerID:     42,
			description: "buy milk",
			setupMock: func(m *MockTaskStorage) {
				m.On("Insert", mock.Anything, int64(42), "buy milk").Return(int64(7), nil)
			},
			expectedID: 7,
		},
		{
			name:           "error - empty description",
			ownerID:        42,
			description:    "",
			setupMock:      func(m *MockTaskStorage) {},
			expectValidate: true,
		},
		{
			name:           "error - whitespace description",
			ownerID:        42,
			description:    "   \t ",
			setupMock:      func(m *MockTaskStorage) {},
			expectValidate: true,
		},
		{
			name:           "error - description too long",
			ownerID:        42,
			description:    strings.Repeat("a", 501),
			setupMock:      func(m *MockTaskStorage) {},
			expectValidate: true,
		},
		{
			name:        "success - description at the limit counts runes",
			ownerID:     42,
			description: strings.Repeat("я", 500),
			setupMock: func(m *MockTaskStorage) {
				m.On("Insert", mock.Anything, int64(42), strings.Repeat("я", 500)).Return(int64(1), nil)
			},
			expectedID: 1,
		},
		{
			name:           "error - invalid owner",
			ownerID:        0,
			description:    "buy milk",
			setupMock:      func(m *MockTaskStorage) {},
			expectValidate: true,
		},
		{
			name:        "error - storage failure is wrapped",
			ownerID:     42,
			description: "buy milk",
			setupMock: func(m *MockTaskStorage) {
				m.On("Insert", mock.Anything, int64(42), "buy milk").Return(int64(0), errors.New("database is locked"))
			},
			expectStorage: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockStorage := new(MockTaskStorage)
			tt.setupMock(mockStorage)

			svc := service.NewTaskService(mockStorage, 500)
			id, err := svc.AddTask(ctx, tt.ownerID, tt.description)

			switch {
			case tt.expectValidate:
				require.Error(t, err)
				_, ok := service.AsValidationError(err)
				assert.True(t, ok, "Expected validation error")
				mockStorage.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything, mock.Anything)
			case tt.expectStorage:
				require.Error(t, err)
				assert.True(t, repository.IsStorageError(err))
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.expectedID, id)
			}
			mockStorage.AssertExpectations(t)
		})
	}
}

func TestTaskService_GetTasks(t *testing.T) {
	ctx := context.Background()

	t.Run("success - passes pagination through", func(t *testing.T) {
		mockStorage := new(MockTaskStorage)
		mockStorage.On("List", mock.Anything, int64(5), 10, 20).Return([]*task.Task{
			{ID: 21, OwnerID: 5, Description: "one"},
			{ID: 22, OwnerID: 5, Description: "two"},
		}, nil)

		svc := service.NewTaskService(mockStorage, 0)
		tasks, err := svc.GetTasks(ctx, 5, 10, 20)

		require.NoError(t, err)
		assert.Len(t, tasks, 2)
		mockStorage.AssertExpectations(t)
	})

	t.Run("error - non positive limit", func(t *testing.T) {
		mockStorage := new(MockTaskStorage)
		svc := service.NewTaskService(mockStorage, 0)

		_, err := svc.GetTasks(ctx, 5, 0, 0)

		_, ok := service.AsValidationError(err)
		assert.True(t, ok)
		mockStorage.AssertNotCalled(t, "List", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("error - negative offset", func(t *testing.T) {
		mockStorage := new(MockTaskStorage)
		svc := service.NewTaskService(mockStorage, 0)

		_, err := svc.GetTasks(ctx, 5, 10, -1)

		_, ok := service.AsValidationError(err)
		assert.True(t, ok)
	})

	t.Run("error - storage failure", func(t *testing.T) {
		mockStorage := new(MockTaskStorage)
		mockStorage.On("List", mock.Anything, int64(5), 10, 0).Return(nil, errors.New("io error"))

		svc := service.NewTaskService(mockStorage, 0)
		_, err := svc.GetTasks(ctx, 5, 10, 0)

		assert.True(t, repository.IsStorageError(err))
	})
}

func TestTaskService_CountTasks(t *testing.T) {
	ctx := context.Background()
	done := true

	mockStorage := new(MockTaskStorage)
	mockStorage.On("Count", mock.Anything, int64(5), (*bool)(nil)).Return(15, nil)
	mockStorage.On("Count", mock.Anything, int64(5), &done).Return(4, nil)

	svc := service.NewTaskService(mockStorage, 0)

	total, err := svc.CountTasks(ctx, 5, nil)
	require.NoError(t, err)
	assert.Equal(t, 15, total)

	completed, err := svc.CountTasks(ctx, 5, &done)
	require.NoError(t, err)
	assert.Equal(t, 4, completed)

	mockStorage.AssertExpectations(t)
}

func TestTaskService_SetStatus(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		taskID      int64
		setupMock   func(*MockTaskStorage)
		expectFound bool
		expectError bool
	}{
		{
			name:   "success - row matched",
			taskID: 3,
			setupMock: func(m *MockTaskStorage) {
				m.On("SetCompleted", mock.Anything, int64(1), int64(3), true).Return(true, nil)
			},
			expectFound: true,
		},
		{
			name:   "not found - false without error",
			taskID: 3,
			setupMock: func(m *MockTaskStorage) {
				m.On("SetCompleted", mock.Anything, int64(1), int64(3), true).Return(false, nil)
			},
		},
		{
			name:        "error - invalid task id",
			taskID:      0,
			setupMock:   func(m *MockTaskStorage) {},
			expectError: true,
		},
		{
			name:   "error - storage failure",
			taskID: 3,
			setupMock: func(m *MockTaskStorage) {
				m.On("SetCompleted", mock.Anything, int64(1), int64(3), true).Return(false, errors.New("constraint"))
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockStorage := new(MockTaskStorage)
			tt.setupMock(mockStorage)

			svc := service.NewTaskService(mockStorage, 0)
			found, err := svc.SetStatus(ctx, 1, tt.taskID, true)

			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expectFound, found)
			mockStorage.AssertExpectations(t)
		})
	}
}

func TestTaskService_DeleteTask(t *testing.T) {
	ctx := context.Background()

	t.Run("success - deleted", func(t *testing.T) {
		mockStorage := new(MockTaskStorage)
		mockStorage.On("Delete", mock.Anything, int64(1), int64(9)).Return(true, nil)

		svc := service.NewTaskService(mockStorage, 0)
		found, err := svc.DeleteTask(ctx, 1, 9)

		require.NoError(t, err)
		assert.True(t, found)
		mockStorage.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		mockStorage := new(MockTaskStorage)
		mockStorage.On("Delete", mock.Anything, int64(1), int64(9)).Return(false, nil)

		svc := service.NewTaskService(mockStorage, 0)
		found, err := svc.DeleteTask(ctx, 1, 9)

		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("storage error keeps its type", func(t *testing.T) {
		mockStorage := new(MockTaskStorage)
		storageErr := &repository.StorageError{Op: "delete", Err: errors.New("locked")}
		mockStorage.On("Delete", mock.Anything, int64(1), int64(9)).Return(false, storageErr)

		svc := service.NewTaskService(mockStorage, 0)
		_, err := svc.DeleteTask(ctx, 1, 9)

		var got *repository.StorageError
		require.ErrorAs(t, err, &got)
		assert.Equal(t, "delete", got.Op)
	})
}

func TestNewValidationError_CarriesDetails(t *testing.T) {
	svc := service.NewTaskService(new(MockTaskStorage), 500)

	_, err := svc.AddTask(context.Background(), 42, "   ")
	busErr, ok := service.AsValidationError(err)
	require.True(t, ok)

	assert.Equal(t, service.CodeValidation, busErr.Code)
	assert.Equal(t, "invalid description: must not be empty", busErr.Message)
	assert.Equal(t, map[string]any{
		"field":  "description",
		"reason": "must not be empty",
	}, busErr.Details)
}
