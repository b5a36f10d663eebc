// Package notify delivers alerts to the configured channels.
package notify

import (
	"errors"
	"fmt"

	"tradewatch/internal/alert"
	"tradewatch/internal/logger"
)

// Channel is a single delivery target.
type Channel interface {
	Name() string
	Send(a alert.Alert) error
}

// Manager fans an alert out to every channel. Delivery succeeds when at
// least one channel accepts it; per-channel failures are logged and
// only an all-channels failure is returned, so one broken webhook does
// not stall the alert gate.
type Manager struct {
	channels []Channel
}

// NewManager creates a manager over the given channels.
func NewManager(channels ...Channel) *Manager {
	return &Manager{channels: channels}
}

// Send implements alert.Sender.
func (m *Manager) Send(a alert.Alert) error {
	if len(m.channels) == 0 {
		return errors.New("no notification channels configured")
	}

	delivered := 0
	var errs []error
	for _, ch := range m.channels {
		if err := ch.Send(a); err != nil {
			logger.Error("Channel %s failed: %v", ch.Name(), err)
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
			continue
		}
		delivered++
	}
	if delivered == 0 {
		return errors.Join(errs...)
	}
	return nil
}
