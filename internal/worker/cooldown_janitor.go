package worker

import (
	"context"
	"taskBot/internal/logger"
	"time"

	"go.uber.org/zap"
)

const DefaultJanitorInterval = time.Minute

// Pruner drops expired entries and reports how many it removed.
type Pruner interface {
	Prune() int
}

// CooldownJanitor sweeps an in-process cooldown table on a fixed interval so
// idle users don't keep entries alive between bursts of traffic.
type CooldownJanitor struct {
	pruner   Pruner
	interval time.Duration
}

func NewCooldownJanitor(pruner Pruner, interval time.Duration) *CooldownJanitor {
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	return &CooldownJanitor{
		pruner:   pruner,
		interval: interval,
	}
}

func (w *CooldownJanitor) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Check()
		case <-ctx.Done():
			logger.Info("Worker: Cooldown janitor stopping")
			return
		}
	}
}

func (w *CooldownJanitor) Check() int {
	start := time.Now()
	removed := w.pruner.Prune()
	if removed > 0 {
		logger.Info("Worker: Expired cooldowns pruned",
			zap.Int("removed", removed),
			zap.Duration("ms", time.Since(start)))
	}
	return removed
}
