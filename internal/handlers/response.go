package handlers

import (
	"fmt"
	"strings"
	"taskBot/internal/command"
	"taskBot/internal/models/task"
)

const (
	msgEmptyDescription = "❌ Task description cannot be empty."
	msgInvalidTaskID    = "❌ Task ID must be a positive integer."
	msgInvalidPage      = "❌ Page number must be a positive integer."
	msgNoTasks          = "📋 You have no tasks!"
)

type commandHelp struct {
	usage       string
	description string
}

var commandsHelp = []commandHelp{
	{"add <description>", "Add a new task"},
	{"list [page]", "Show your tasks, optionally a specific page"},
	{"done <id>", "Mark a task as done"},
	{"undone <id>", "Mark a task as not done"},
	{"delete <id>", "Delete a task"},
	{"stats", "Show how many tasks you have done"},
	{"help", "Show this help"},
}

func helpEmbed(prefix string) *command.Embed {
	embed := &command.Embed{
		Title:       "📚 Task Manager Bot commands",
		Description: "Available commands for managing your tasks:",
		Footer:      "See the project documentation for more details.",
	}
	for _, h := range commandsHelp {
		embed.Fields = append(embed.Fields, command.EmbedField{
			Name:  prefix + h.usage,
			Value: h.description,
		})
	}
	return embed
}

func totalPages(total, pageSize int) int {
	return (total + pageSize - 1) / pageSize
}

func formatTaskList(tasks []*task.Task, page, pages, total int, prefix string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📋 Tasks (page %d/%d, total %d):", page, pages, total)
	for _, t := range tasks {
		fmt.Fprintf(&b, "\n#%d: %s (%s)", t.ID, t.Description, t.StatusGlyph())
	}
	if page < pages {
		fmt.Fprintf(&b, "\n\nUse `%slist %d` to see the next page.", prefix, page+1)
	}
	return b.String()
}

func formatOutOfRange(page, total int) string {
	return fmt.Sprintf("❌ Page %d does not exist. You have %d tasks in total.", page, total)
}

func formatStatusChanged(taskID int64, completed bool) string {
	if completed {
		return fmt.Sprintf("✅ Task #%d marked as done!", taskID)
	}
	return fmt.Sprintf("✅ Task #%d marked as not done!", taskID)
}
