package alert

import (
	"fmt"
	"strings"
	"time"

	"tradewatch/internal/models"
)

// bucket accumulates queued alerts of one type. The window starts at
// the first queued alert and is independent of other buckets.
type bucket struct {
	alerts    []Alert
	startedAt time.Time
}

// Batcher accumulates non-critical alerts per alert type. Each type has
// its own flush window and size cap; a lone queued alert is released
// unchanged while two or more collapse into a digest.
type Batcher struct {
	window  time.Duration
	maxSize int

	buckets map[models.AlertType]*bucket
	order   []models.AlertType
}

// NewBatcher creates a batcher with the given flush window and per-type
// size cap.
func NewBatcher(window time.Duration, maxSize int) *Batcher {
	return &Batcher{
		window:  window,
		maxSize: maxSize,
		buckets: make(map[models.AlertType]*bucket),
	}
}

// Add queues an alert into its type's bucket.
func (b *Batcher) Add(a Alert, now time.Time) {
	bk, ok := b.buckets[a.Type]
	if !ok {
		bk = &bucket{startedAt: now}
		b.buckets[a.Type] = bk
		b.order = append(b.order, a.Type)
	}
	bk.alerts = append(bk.alerts, a)
}

// Len returns the total number of queued alerts across all buckets.
func (b *Batcher) Len() int {
	n := 0
	for _, bk := range b.buckets {
		n += len(bk.alerts)
	}
	return n
}

// Full reports whether the type's bucket reached the size cap.
func (b *Batcher) Full(t models.AlertType) bool {
	bk, ok := b.buckets[t]
	return ok && len(bk.alerts) >= b.maxSize
}

// Due returns the types whose window has elapsed, in queue order.
func (b *Batcher) Due(now time.Time) []models.AlertType {
	var out []models.AlertType
	for _, t := range b.order {
		if now.Sub(b.buckets[t].startedAt) >= b.window {
			out = append(out, t)
		}
	}
	return out
}

// Types returns every type with a non-empty bucket, in queue order.
func (b *Batcher) Types() []models.AlertType {
	return append([]models.AlertType(nil), b.order...)
}

// PendingType returns the queued alerts for the type without clearing
// them. The caller clears after a successful send, so a failed send
// keeps the bucket for the next attempt.
func (b *Batcher) PendingType(t models.AlertType) []Alert {
	bk, ok := b.buckets[t]
	if !ok {
		return nil
	}
	return bk.alerts
}

// ClearType empties the type's bucket.
func (b *Batcher) ClearType(t models.AlertType) {
	delete(b.buckets, t)
	for i, o := range b.order {
		if o == t {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// typeDisplay names the digest for an alert type.
func typeDisplay(t models.AlertType) string {
	switch t {
	case models.AlertTrade:
		return "Trades"
	case models.AlertOrder:
		return "Orders"
	case models.AlertPriceLevel:
		return "Price Levels"
	case models.AlertRisk:
		return "Risk Alerts"
	default:
		return "Alerts"
	}
}

// Digest renders the type's queued alerts into one summary alert,
// listing at most maxSize of them before collapsing the rest into a
// count. Priority is the highest among the queued alerts and the type
// is preserved so downstream formatting stays accurate.
func (b *Batcher) Digest(t models.AlertType, now time.Time) Alert {
	alerts := b.PendingType(t)

	priority := models.PriorityNormal
	for _, a := range alerts {
		if a.Priority == models.PriorityImportant {
			priority = models.PriorityImportant
		}
	}

	var sb strings.Builder
	for i, a := range alerts {
		if i == b.maxSize {
			fmt.Fprintf(&sb, "+%d more\n", len(alerts)-b.maxSize)
			break
		}
		fmt.Fprintf(&sb, "- %s\n", a.Title)
	}

	return Alert{
		Type:     t,
		Priority: priority,
		Title:    fmt.Sprintf("%s digest (%d)", typeDisplay(t), len(alerts)),
		Body:     strings.TrimRight(sb.String(), "\n"),
		At:       now,
	}
}
