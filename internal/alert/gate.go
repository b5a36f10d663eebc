package alert

import (
	"time"

	"tradewatch/internal/config"
	"tradewatch/internal/logger"
	"tradewatch/internal/models"
)

// Sender delivers a rendered alert to the notification channels.
type Sender interface {
	Send(a Alert) error
}

// Gate sits between the evaluators and the channels. Each submitted
// alert passes quiet hours, then the rate limiter, then batching.
// Critical alerts skip quiet hours and batching but still count against
// the rate limiter.
type Gate struct {
	cfg     config.AlertsConfig
	sender  Sender
	limiter *RateLimiter
	quiet   *QuietHours
	batch   *Batcher
	now     func() time.Time
}

// NewGate wires the gate from config. The clock is injectable for
// tests; pass nil for wall time.
func NewGate(cfg config.AlertsConfig, sender Sender, now func() time.Time) (*Gate, error) {
	quiet, err := NewQuietHours(cfg.QuietEnabled, cfg.QuietStart, cfg.QuietEnd)
	if err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &Gate{
		cfg:     cfg,
		sender:  sender,
		limiter: NewRateLimiter(cfg.MaxPerMinute, cfg.MaxPerHour),
		quiet:   quiet,
		batch:   NewBatcher(cfg.BatchWindow, cfg.MaxBatchSize),
		now:     now,
	}, nil
}

// Submit runs one alert through the gate.
func (g *Gate) Submit(a Alert) Result {
	now := g.now()
	critical := a.Priority == models.PriorityCritical

	if !critical && g.quiet.Suppressed(now) {
		logger.Debug("Quiet hours suppressed alert: %s", a.Title)
		return Result{Dropped: true, Reason: "quiet_hours"}
	}

	if g.cfg.RateLimitEnabled && !g.limiter.Allow(now) {
		logger.Warn("Rate limit dropped alert: %s", a.Title)
		return Result{Dropped: true, Reason: "rate_limited"}
	}

	// Summaries are already aggregates; folding one into a digest would
	// reduce it to a title line.
	if g.cfg.BatchEnabled && !critical && a.Type != models.AlertSummary {
		g.batch.Add(a, now)
		if g.batch.Full(a.Type) {
			g.flushType(a.Type)
		}
		return Result{Queued: true, Reason: "batched"}
	}

	if err := g.sender.Send(a); err != nil {
		logger.Error("Failed to send alert %q: %v", a.Title, err)
		return Result{Dropped: true, Reason: "send_failed"}
	}
	if g.cfg.RateLimitEnabled {
		g.limiter.Record(now)
	}
	return Result{Sent: true}
}

// Tick flushes every bucket whose window has elapsed. The watch loop
// calls it once per cycle.
func (g *Gate) Tick() {
	for _, t := range g.batch.Due(g.now()) {
		g.flushType(t)
	}
}

// Flush drains all buckets regardless of their windows, used on
// shutdown.
func (g *Gate) Flush() {
	for _, t := range g.batch.Types() {
		g.flushType(t)
	}
}

// flushType sends one bucket's queued alerts. A lone alert goes out
// unchanged; two or more collapse into a digest. On failure the bucket
// is kept so the send is retried on the next flush.
func (g *Gate) flushType(t models.AlertType) {
	queued := g.batch.PendingType(t)
	if len(queued) == 0 {
		return
	}
	now := g.now()
	out := queued[0]
	if len(queued) > 1 {
		out = g.batch.Digest(t, now)
	}
	if err := g.sender.Send(out); err != nil {
		logger.Error("Failed to flush %d queued %s alerts: %v", len(queued), t, err)
		return
	}
	logger.Info("Flushed %d queued %s alerts", len(queued), t)
	g.batch.ClearType(t)
	if g.cfg.RateLimitEnabled {
		g.limiter.Record(now)
	}
}

// Pending returns how many alerts are waiting in the batch.
func (g *Gate) Pending() int {
	return g.batch.Len()
}
