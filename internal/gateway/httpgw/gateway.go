package httpgw

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"taskBot/internal/command"
	"taskBot/internal/dispatch"
	"taskBot/internal/logger"
	"taskBot/internal/middleware"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const maxBodyBytes = 64 << 10

type Dispatcher interface {
	Dispatch(ctx context.Context, inv dispatch.Invocation) bool
	IsCommand(content string) bool
}

type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type Options struct {
	AllowedOrigins []string
	RateLimitRPM   int
}

// Gateway is the webhook a chat bridge posts inbound messages to. Each
// request is one invocation and collects its replies.
type Gateway struct {
	dispatcher Dispatcher
	health     HealthChecker
}

func New(dispatcher Dispatcher, health HealthChecker) *Gateway {
	return &Gateway{dispatcher: dispatcher, health: health}
}

func (g *Gateway) Router(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.HTTPRequestID)
	r.Use(middleware.HTTPLogging)
	r.Use(chimw.Recoverer)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}
	if opts.RateLimitRPM > 0 {
		r.Use(middleware.RateLimit(opts.RateLimitRPM))
	}

	r.Post("/messages", g.PostMessage)
	r.Get("/health", g.HealthCheck)

	return otelhttp.NewHandler(r, "taskbot.gateway")
}

// bufferReplier collects replies for the HTTP response body.
type bufferReplier struct {
	mtx     sync.Mutex
	replies []command.Reply
}

func (b *bufferReplier) Send(_ context.Context, reply command.Reply) error {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.replies = append(b.replies, reply)
	return nil
}

func (b *bufferReplier) all() []command.Reply {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	out := make([]command.Reply, len(b.replies))
	copy(out, b.replies)
	return out
}

func (g *Gateway) PostMessage(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := middleware.GetRequestID(r.Context())

	if !checkContentType(r, "application/json") {
		logger.Warn("HTTP: Wrong content type",
			zap.String("request_id", requestID),
			zap.String("received", r.Header.Get("Content-Type")))
		responseWithError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}

	var req MessageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		logger.Warn("HTTP: Failed to decode body", zap.String("request_id", requestID), zap.Error(err))
		responseWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := dispatch.ParseSenderID(req.SenderID); err != nil {
		logger.Warn("HTTP: Invalid sender id",
			zap.String("request_id", requestID),
			zap.String("sender_id", req.SenderID))
		responseWithError(w, http.StatusBadRequest, "sender_id must be a positive integer")
		return
	}

	if !g.dispatcher.IsCommand(req.Content) {
		responseWithError(w, http.StatusUnprocessableEntity, "message is not a command")
		return
	}

	replier := &bufferReplier{}
	g.dispatcher.Dispatch(r.Context(), dispatch.Invocation{
		SenderID:  req.SenderID,
		ChannelID: req.ChannelID,
		Content:   req.Content,
		Replier:   replier,
	})

	replies := replier.all()
	logger.Info("HTTP: Message dispatched",
		zap.String("request_id", requestID),
		zap.String("channel_id", req.ChannelID),
		zap.Int("replies", len(replies)),
		zap.Duration("ms", time.Since(start)))

	writeJSON(w, http.StatusOK, MessageResponse{Replies: replies, RequestID: requestID})
}

func (g *Gateway) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := g.health.HealthCheck(ctx); err != nil {
		logger.Error("HTTP: Health check failed", err)
		responseWithJSON(w, http.StatusServiceUnavailable, toPayload("status", "unavailable"))
		return
	}
	responseWithJSON(w, http.StatusOK, toPayload("status", "ok"))
}
