// Package alert implements the delivery gate in front of the
// notification channels: one-shot suppression state, sliding-window
// rate limiting, quiet hours, and batching.
package alert

import (
	"time"

	"tradewatch/internal/models"
)

// Alert is a fully rendered notification ready for delivery.
type Alert struct {
	Type     models.AlertType
	Priority models.Priority
	Title    string
	Body     string
	At       time.Time
}

// Result reports what the gate decided to do with a submitted alert.
type Result struct {
	Sent    bool
	Queued  bool
	Dropped bool
	Reason  string
}
