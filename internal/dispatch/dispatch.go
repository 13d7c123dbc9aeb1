package dispatch

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"taskBot/internal/command"
	"taskBot/internal/logger"
	"unicode"

	"go.uber.org/zap"
)

const DefaultPrefix = "!"

// Invocation is a raw inbound chat message as a gateway sees it.
type Invocation struct {
	SenderID  string
	ChannelID string
	Content   string
	Replier   command.Replier
}

type Dispatcher struct {
	prefix      string
	middlewares []command.Middleware
	mtx         sync.RWMutex
	handlers    map[string]command.HandlerFunc
}

// New builds a dispatcher. Middlewares wrap every registered handler,
// the first one outermost.
func New(prefix string, middlewares ...command.Middleware) *Dispatcher {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Dispatcher{
		prefix:      prefix,
		middlewares: middlewares,
		handlers:    make(map[string]command.HandlerFunc),
	}
}

func (d *Dispatcher) Handle(name string, h command.HandlerFunc) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	d.handlers[strings.ToLower(name)] = command.Chain(h, d.middlewares...)
}

func (d *Dispatcher) Commands() []string {
	d.mtx.RLock()
	defer d.mtx.RUnlock()
	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	return names
}

// IsCommand reports whether content would be dispatched at all.
func (d *Dispatcher) IsCommand(content string) bool {
	_, _, ok := ParseMessage(d.prefix, content)
	return ok
}

// Dispatch runs the matching handler on the caller's goroutine. It returns
// false when the message is not a command or the sender is unusable.
func (d *Dispatcher) Dispatch(ctx context.Context, inv Invocation) bool {
	name, args, ok := ParseMessage(d.prefix, inv.Content)
	if !ok {
		return false
	}

	ownerID, err := ParseSenderID(inv.SenderID)
	if err != nil {
		logger.Warn("Dispatch: Invalid sender id",
			zap.String("sender_id", inv.SenderID),
			zap.String("command", name),
			zap.Error(err))
		return false
	}

	d.mtx.RLock()
	h, found := d.handlers[name]
	d.mtx.RUnlock()
	if !found {
		h = command.Chain(d.unknown, d.middlewares...)
	}

	h(command.NewContext(ctx, ownerID, name, args, inv.Replier))
	return true
}

func (d *Dispatcher) unknown(c *command.Context) {
	logger.Info("Dispatch: Unknown command",
		zap.String("request_id", c.RequestID),
		zap.String("command", c.Command),
		zap.Int64("owner_id", c.OwnerID))
	c.Reply(fmt.Sprintf("❓ Unknown command `%s%s`. Use `%shelp` to see available commands.", d.prefix, c.Command, d.prefix))
}

// ParseMessage splits "<prefix><name> <args>" into a lower-cased name and
// trimmed arguments.
func ParseMessage(prefix, content string) (name, args string, ok bool) {
	content = strings.TrimSpace(content)
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", "", false
	}

	rest := content[len(prefix):]
	i := strings.IndexFunc(rest, unicode.IsSpace)
	switch {
	case rest == "" || i == 0:
		return "", "", false
	case i < 0:
		name = rest
	default:
		name, args = rest[:i], rest[i:]
	}
	return strings.ToLower(name), strings.TrimSpace(args), true
}

func ParseSenderID(senderID string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(senderID), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse sender id: %w", err)
	}
	if id <= 0 {
		return 0, fmt.Errorf("sender id must be positive, got %d", id)
	}
	return id, nil
}
