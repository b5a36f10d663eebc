package models

import (
	"strconv"
	"time"
)

// Priority ranks an alert for quiet-hours suppression. Only critical
// alerts are delivered during quiet hours.
type Priority string

const (
	PriorityCritical  Priority = "critical"
	PriorityImportant Priority = "important"
	PriorityNormal    Priority = "normal"
)

// AlertType buckets alerts for batching and digest display.
type AlertType string

const (
	AlertTrade      AlertType = "trade"
	AlertOrder      AlertType = "order"
	AlertPriceLevel AlertType = "price_level"
	AlertRisk       AlertType = "risk"
	AlertSummary    AlertType = "summary"
)

// LevelAlert is a price level that fired on the current tick.
type LevelAlert struct {
	Symbol       string
	LevelID      string
	TargetPrice  float64
	CurrentPrice float64
	Direction    LevelDirection
	Recurring    bool
	Group        string
	Description  string
	At           time.Time
}

// Key returns the one-shot suppression key for the level.
func (a LevelAlert) Key() string {
	return "level:" + a.Symbol + ":" + a.LevelID
}

// GroupAlert fires when enough members of a level group have triggered.
type GroupAlert struct {
	Symbol        string
	Group         string
	RequiredCount int
	FiredLevelIDs []string
	CurrentPrice  float64
	At            time.Time
}

// Key returns the one-shot suppression key for the group. Group keys are
// independent of their member level keys.
func (a GroupAlert) Key() string {
	return "group:" + a.Symbol + ":" + a.Group
}

// ProximityAlert fires when the market approaches a pending order's
// trigger price.
type ProximityAlert struct {
	Order        Order
	CurrentPrice float64
	DistancePct  float64
	At           time.Time
}

// Key returns the one-shot suppression key for the pending order.
func (a ProximityAlert) Key() string {
	return "pending:" + strconv.FormatInt(a.Order.Ticket, 10)
}

// RiskCheck identifies which risk evaluator produced an alert.
type RiskCheck string

const (
	RiskMarginLevel  RiskCheck = "margin_level"
	RiskPositionSize RiskCheck = "position_size"
	RiskDailyLoss    RiskCheck = "daily_loss"
	RiskDrawdown     RiskCheck = "drawdown"
)

// RiskAlert is a threshold breach from one of the risk checks. Key is the
// check-specific suppression key; distinct severities or magnitudes of the
// same check produce distinct keys so escalation keeps alerting.
type RiskAlert struct {
	Check    RiskCheck
	Priority Priority
	Key      string
	Message  string
	At       time.Time
}

// PositionEventKind tags a detected position change.
type PositionEventKind string

const (
	PositionOpened PositionEventKind = "opened"
	PositionClosed PositionEventKind = "closed"
)

// PositionEvent is a detected position change. For closed events the
// position carries the last known shadow fields; the live snapshot no
// longer contains the ticket.
type PositionEvent struct {
	Kind     PositionEventKind
	Position Position
	At       time.Time
}

// OrderEventKind tags a detected pending-order change.
type OrderEventKind string

const (
	OrderPlaced  OrderEventKind = "placed"
	OrderRemoved OrderEventKind = "removed"
)

// OrderRemovedReason explains why an order left the snapshot. Snapshot
// diffing cannot distinguish execution from cancellation; expiry is the
// only reason that can be inferred, from the order's own expiration.
type OrderRemovedReason string

const (
	OrderRemovedUnknown OrderRemovedReason = "unknown"
	OrderRemovedExpired OrderRemovedReason = "expired"
)

// OrderEvent is a detected pending-order change. Reason is set only for
// removed events.
type OrderEvent struct {
	Kind   OrderEventKind
	Order  Order
	Reason OrderRemovedReason
	At     time.Time
}
