package middleware

import (
	"fmt"
	"math"
	"strconv"
	"taskBot/internal/command"
	"taskBot/internal/cooldown"
	"taskBot/internal/logger"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestID tags every invocation so its log lines can be correlated.
func RequestID(next command.HandlerFunc) command.HandlerFunc {
	return func(c *command.Context) {
		if c.RequestID == "" {
			c.RequestID = uuid.New().String()
		}
		next(c)
	}
}

func Logging(next command.HandlerFunc) command.HandlerFunc {
	return func(c *command.Context) {
		start := time.Now()

		logger.Info("Dispatch: Command in",
			zap.String("request_id", c.RequestID),
			zap.String("command", c.Command),
			zap.Int64("owner_id", c.OwnerID))

		next(c)

		logger.Info("Dispatch: Command out",
			zap.String("request_id", c.RequestID),
			zap.String("command", c.Command),
			zap.Int64("owner_id", c.OwnerID),
			zap.Duration("ms", time.Since(start)))
	}
}

// Recover turns a panicking handler into the generic unexpected reply.
func Recover(next command.HandlerFunc) command.HandlerFunc {
	return func(c *command.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("Dispatch: Handler panicked", fmt.Errorf("panic: %v", rec),
					zap.String("request_id", c.RequestID),
					zap.String("command", c.Command),
					zap.Int64("owner_id", c.OwnerID),
					zap.Stack("stack"))
				c.Reply(command.MsgUnexpectedError)
			}
		}()
		next(c)
	}
}

// Cooldown accepts one invocation per user per window. A limiter failure
// lets the invocation through.
func Cooldown(limiter cooldown.Limiter) command.Middleware {
	return func(next command.HandlerFunc) command.HandlerFunc {
		return func(c *command.Context) {
			key := strconv.FormatInt(c.OwnerID, 10)

			allowed, retryAfter, err := limiter.Allow(c.Context(), key)
			if err != nil {
				logger.Warn("Dispatch: Cooldown check failed, allowing",
					zap.String("request_id", c.RequestID),
					zap.Int64("owner_id", c.OwnerID),
					zap.Error(err))
				next(c)
				return
			}

			if !allowed {
				logger.Info("Dispatch: Cooldown active",
					zap.String("request_id", c.RequestID),
					zap.String("command", c.Command),
					zap.Int64("owner_id", c.OwnerID),
					zap.Duration("retry_after", retryAfter))
				c.Reply(fmt.Sprintf("⏱️ Slow down! Try again in %d seconds.", waitSeconds(retryAfter)))
				return
			}

			next(c)
		}
	}
}

func waitSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
