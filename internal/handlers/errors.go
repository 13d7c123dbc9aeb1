package handlers

import (
	"strings"
	"taskBot/internal/command"
	"taskBot/internal/logger"
	"taskBot/internal/repository"
	"taskBot/internal/service"
	"unicode"

	"go.uber.org/zap"
)

// handleServiceError maps a service failure onto one of the reply
// categories. Error text only reaches the user for validation failures.
func handleServiceError(c *command.Context, op string, err error) {
	fields := append(logger.Operation(op, c.OwnerID, "error"),
		zap.String("request_id", c.RequestID))

	if busErr, ok := service.AsValidationError(err); ok {
		logger.Warn("Handler: Validation error", append(fields, zap.String("error_code", busErr.Code))...)
		c.Reply("❌ " + sentence(busErr.Message))
		return
	}

	if repository.IsStorageError(err) {
		logger.Error("Handler: Storage error", err, fields...)
		c.Reply(command.MsgSomethingWentWrong)
		return
	}

	logger.Error("Handler: Unexpected error", err, append(fields, zap.Stack("stack"))...)
	c.Reply(command.MsgUnexpectedError)
}

func sentence(msg string) string {
	if msg == "" {
		return msg
	}
	runes := []rune(msg)
	runes[0] = unicode.ToUpper(runes[0])
	out := string(runes)
	if !strings.HasSuffix(out, ".") {
		out += "."
	}
	return out
}
