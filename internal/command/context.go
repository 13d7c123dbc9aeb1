package command

import (
	"context"
	"strings"
	"taskBot/internal/logger"

	"go.uber.org/zap"
)

// Generic replies shared by the dispatcher and the handlers.
const (
	MsgSomethingWentWrong = "❌ Something went wrong, please try again later."
	MsgUnexpectedError    = "❌ An unexpected error occurred."
)

type EmbedField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      string       `json:"footer,omitempty"`
}

// Text renders the embed for gateways that only carry plain text.
func (e *Embed) Text() string {
	var b strings.Builder
	b.WriteString(e.Title)
	if e.Description != "" {
		b.WriteString("\n")
		b.WriteString(e.Description)
	}
	for _, f := range e.Fields {
		b.WriteString("\n")
		b.WriteString(f.Name)
		b.WriteString(" - ")
		b.WriteString(f.Value)
	}
	if e.Footer != "" {
		b.WriteString("\n\n")
		b.WriteString(e.Footer)
	}
	return b.String()
}

type Reply struct {
	Text  string `json:"text,omitempty"`
	Embed *Embed `json:"embed,omitempty"`
}

// Replier delivers replies back to the channel an invocation came from.
type Replier interface {
	Send(ctx context.Context, reply Reply) error
}

type ReplierFunc func(ctx context.Context, reply Reply) error

func (f ReplierFunc) Send(ctx context.Context, reply Reply) error {
	return f(ctx, reply)
}

// Context is what every handler sees of an invocation, whatever gateway
// delivered it.
type Context struct {
	ctx       context.Context
	OwnerID   int64
	Command   string
	Args      string
	RequestID string
	replier   Replier
}

func NewContext(ctx context.Context, ownerID int64, name, args string, replier Replier) *Context {
	return &Context{
		ctx:     ctx,
		OwnerID: ownerID,
		Command: name,
		Args:    args,
		replier: replier,
	}
}

func (c *Context) Context() context.Context {
	return c.ctx
}

func (c *Context) Reply(text string) {
	c.send(Reply{Text: text})
}

func (c *Context) ReplyEmbed(embed *Embed) {
	c.send(Reply{Text: embed.Text(), Embed: embed})
}

func (c *Context) send(reply Reply) {
	if err := c.replier.Send(c.ctx, reply); err != nil {
		logger.Error("Command: Failed to send reply", err,
			zap.String("request_id", c.RequestID),
			zap.String("command", c.Command),
			zap.Int64("owner_id", c.OwnerID))
	}
}

type HandlerFunc func(c *Context)

type Middleware func(next HandlerFunc) HandlerFunc

// Chain wraps h so that the first middleware runs first.
func Chain(h HandlerFunc, middlewares ...Middleware) HandlerFunc {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
