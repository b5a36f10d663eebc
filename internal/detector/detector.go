// Package detector diffs successive terminal snapshots to surface
// position and order lifecycle changes.
package detector

import (
	"time"

	"tradewatch/internal/logger"
	"tradewatch/internal/models"
)

// Detector tracks the last seen open positions and pending orders by
// ticket and reports what changed between snapshots. It is not safe
// for concurrent use; the watch loop is its single caller.
type Detector struct {
	positions map[int64]models.Position
	orders    map[int64]models.Order
	primed    bool
}

// New creates an unprimed detector.
func New() *Detector {
	return &Detector{
		positions: make(map[int64]models.Position),
		orders:    make(map[int64]models.Order),
	}
}

// Prime seeds the detector with the current snapshot without emitting
// events. Positions and orders already present at startup are treated
// as known, not as newly opened.
func (d *Detector) Prime(positions []models.Position, orders []models.Order) {
	d.positions = make(map[int64]models.Position, len(positions))
	for _, p := range positions {
		d.positions[p.Ticket] = p
	}
	d.orders = make(map[int64]models.Order, len(orders))
	for _, o := range orders {
		d.orders[o.Ticket] = o
	}
	d.primed = true
	logger.Debug("Detector primed with %d positions, %d orders", len(positions), len(orders))
}

// Detect compares the snapshot against the tracked state and returns
// the lifecycle events since the previous call. Closed positions and
// removed orders are reported from the last tracked copy, since the
// terminal no longer returns them. The first call on an unprimed
// detector only seeds state.
func (d *Detector) Detect(positions []models.Position, orders []models.Order, now time.Time) ([]models.PositionEvent, []models.OrderEvent) {
	if !d.primed {
		d.Prime(positions, orders)
		return nil, nil
	}

	var posEvents []models.PositionEvent
	var ordEvents []models.OrderEvent

	seen := make(map[int64]bool, len(positions))
	for _, p := range positions {
		seen[p.Ticket] = true
		if _, ok := d.positions[p.Ticket]; !ok {
			posEvents = append(posEvents, models.PositionEvent{
				Kind:     models.PositionOpened,
				Position: p,
				At:       now,
			})
		}
		// Keep the tracked copy fresh so a close reports the last
		// observed price and profit.
		d.positions[p.Ticket] = p
	}
	for ticket, p := range d.positions {
		if seen[ticket] {
			continue
		}
		delete(d.positions, ticket)
		posEvents = append(posEvents, models.PositionEvent{
			Kind:     models.PositionClosed,
			Position: p,
			At:       now,
		})
	}

	seenOrders := make(map[int64]bool, len(orders))
	for _, o := range orders {
		seenOrders[o.Ticket] = true
		if _, ok := d.orders[o.Ticket]; !ok {
			ordEvents = append(ordEvents, models.OrderEvent{
				Kind:  models.OrderPlaced,
				Order: o,
				At:    now,
			})
		}
		d.orders[o.Ticket] = o
	}
	for ticket, o := range d.orders {
		if seenOrders[ticket] {
			continue
		}
		delete(d.orders, ticket)
		ordEvents = append(ordEvents, models.OrderEvent{
			Kind:   models.OrderRemoved,
			Order:  o,
			Reason: removalReason(o, now),
			At:     now,
		})
	}

	return posEvents, ordEvents
}

// TrackedPositions returns a copy of the currently tracked positions.
func (d *Detector) TrackedPositions() []models.Position {
	out := make([]models.Position, 0, len(d.positions))
	for _, p := range d.positions {
		out = append(out, p)
	}
	return out
}

// removalReason distinguishes an order that hit its expiration from
// one that disappeared for reasons the snapshot cannot reveal (filled
// or cancelled look identical from here).
func removalReason(o models.Order, now time.Time) models.OrderRemovedReason {
	if !o.Expiration.IsZero() && !now.Before(o.Expiration) {
		return models.OrderRemovedExpired
	}
	return models.OrderRemovedUnknown
}
