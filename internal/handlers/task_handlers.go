package handlers

import (
	"fmt"
	"math"
	"strings"
	"taskBot/internal/command"
	"taskBot/internal/logger"
	"time"

	"go.uber.org/zap"
)

const DefaultPageSize = 10

type TaskHandler struct {
	service  Service
	pageSize int
	prefix   string
}

func NewTaskHandler(service Service, pageSize int, prefix string) *TaskHandler {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &TaskHandler{
		service:  service,
		pageSize: pageSize,
		prefix:   prefix,
	}
}

// Commands maps every command name to its handler.
func (h *TaskHandler) Commands() map[string]command.HandlerFunc {
	return map[string]command.HandlerFunc{
		"add":    h.Add,
		"list":   h.List,
		"done":   h.Done,
		"undone": h.Undone,
		"delete": h.Delete,
		"help":   h.Help,
		"stats":  h.Stats,
	}
}

func (h *TaskHandler) Add(c *command.Context) {
	description := c.Args
	if strings.TrimSpace(description) == "" {
		logger.Warn("Handler: Empty description", logger.Operation("add_task", c.OwnerID, "invalid")...)
		c.Reply(msgEmptyDescription)
		return
	}

	id, err := h.service.AddTask(c.Context(), c.OwnerID, description)
	if err != nil {
		handleServiceError(c, "add_task", err)
		return
	}

	c.Reply(fmt.Sprintf("✅ Task #%d added: %s", id, description))
}

func (h *TaskHandler) List(c *command.Context) {
	start := time.Now()

	page, ok := parsePage(c.Args)
	if !ok {
		logger.Warn("Handler: Invalid page", append(logger.Operation("get_tasks", c.OwnerID, "invalid"),
			zap.String("page", c.Args))...)
		c.Reply(msgInvalidPage)
		return
	}

	if page > math.MaxInt/h.pageSize+1 {
		total, err := h.service.CountTasks(c.Context(), c.OwnerID, nil)
		if err != nil {
			handleServiceError(c, "count_tasks", err)
			return
		}
		c.Reply(formatOutOfRange(page, total))
		return
	}

	offset := (page - 1) * h.pageSize
	tasks, err := h.service.GetTasks(c.Context(), c.OwnerID, h.pageSize, offset)
	if err != nil {
		handleServiceError(c, "get_tasks", err)
		return
	}
	total, err := h.service.CountTasks(c.Context(), c.OwnerID, nil)
	if err != nil {
		handleServiceError(c, "count_tasks", err)
		return
	}

	if len(tasks) == 0 {
		if page == 1 {
			c.Reply(msgNoTasks)
		} else {
			c.Reply(formatOutOfRange(page, total))
		}
		return
	}

	c.Reply(formatTaskList(tasks, page, totalPages(total, h.pageSize), total, h.prefix))

	logger.Info("Handler: Tasks listed",
		zap.String("request_id", c.RequestID),
		zap.Int64("owner_id", c.OwnerID),
		zap.Int("page", page),
		zap.Duration("ms", time.Since(start)))
}

func (h *TaskHandler) Done(c *command.Context) {
	h.setStatus(c, true)
}

func (h *TaskHandler) Undone(c *command.Context) {
	h.setStatus(c, false)
}

func (h *TaskHandler) setStatus(c *command.Context, completed bool) {
	taskID, ok := parseTaskID(c.Args)
	if !ok {
		logger.Warn("Handler: Invalid task id", append(logger.Operation("set_status", c.OwnerID, "invalid"),
			zap.String("task_id", c.Args))...)
		c.Reply(msgInvalidTaskID)
		return
	}

	found, err := h.service.SetStatus(c.Context(), c.OwnerID, taskID, completed)
	if err != nil {
		handleServiceError(c, "set_status", err)
		return
	}
	if !found {
		c.Reply(fmt.Sprintf("❌ Task #%d not found or you don't have permission to change it.", taskID))
		return
	}

	c.Reply(formatStatusChanged(taskID, completed))
}

func (h *TaskHandler) Delete(c *command.Context) {
	taskID, ok := parseTaskID(c.Args)
	if !ok {
		logger.Warn("Handler: Invalid task id", append(logger.Operation("delete_task", c.OwnerID, "invalid"),
			zap.String("task_id", c.Args))...)
		c.Reply(msgInvalidTaskID)
		return
	}

	found, err := h.service.DeleteTask(c.Context(), c.OwnerID, taskID)
	if err != nil {
		handleServiceError(c, "delete_task", err)
		return
	}
	if !found {
		c.Reply(fmt.Sprintf("❌ Task #%d not found or you don't have permission to delete it.", taskID))
		return
	}

	c.Reply(fmt.Sprintf("🗑️ Task #%d deleted!", taskID))
}

// Help never touches the service.
func (h *TaskHandler) Help(c *command.Context) {
	c.ReplyEmbed(helpEmbed(h.prefix))
}

func (h *TaskHandler) Stats(c *command.Context) {
	total, err := h.service.CountTasks(c.Context(), c.OwnerID, nil)
	if err != nil {
		handleServiceError(c, "count_tasks", err)
		return
	}

	done := true
	completed, err := h.service.CountTasks(c.Context(), c.OwnerID, &done)
	if err != nil {
		handleServiceError(c, "count_tasks", err)
		return
	}

	c.Reply(fmt.Sprintf("📊 Tasks: %d total, %d done, %d pending.", total, completed, total-completed))
}
