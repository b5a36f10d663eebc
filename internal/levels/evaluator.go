package levels

import (
	"math"
	"time"

	"tradewatch/internal/alert"
	"tradewatch/internal/logger"
	"tradewatch/internal/models"
)

// bothEpsilon is the touch tolerance for levels that trigger on either
// side of the target price.
const bothEpsilon = 0.0001

// defaultGroupRequired is how many members of a level group must have
// fired before the group alert goes out, unless the group says
// otherwise.
const defaultGroupRequired = 2

// Evaluator checks ticks against configured levels. One-shot levels and
// groups are suppressed through the state store after they fire;
// recurring levels fire on every evaluation while the condition holds.
type Evaluator struct {
	state alert.StateStore
}

// NewEvaluator creates an evaluator backed by the given state store.
func NewEvaluator(state alert.StateStore) *Evaluator {
	return &Evaluator{state: state}
}

// crossed reports whether the price satisfies the level's trigger
// condition.
func crossed(l models.PriceLevel, price float64) bool {
	switch l.Direction {
	case models.LevelAbove:
		return price >= l.Price
	case models.LevelBelow:
		return price <= l.Price
	case models.LevelBoth:
		return math.Abs(price-l.Price) < bothEpsilon
	default:
		return false
	}
}

// fired checks the suppression key, preferring a duplicate alert over a
// lost one when the store misbehaves.
func (e *Evaluator) fired(key string) bool {
	has, err := e.state.Has(key)
	if err != nil {
		logger.Warn("State lookup for %s failed: %v", key, err)
		return false
	}
	return has
}

func (e *Evaluator) mark(key string, at time.Time) {
	if err := e.state.Mark(key, at); err != nil {
		logger.Warn("Failed to mark %s: %v", key, err)
	}
}

// Evaluate returns the individual levels that fire for the symbol at
// the given price. Expired levels are skipped. Non-recurring levels are
// marked so they fire at most once.
func (e *Evaluator) Evaluate(symbol string, price float64, lvls []models.PriceLevel, now time.Time) []models.LevelAlert {
	var out []models.LevelAlert
	for _, l := range lvls {
		if l.Expired(now) || !crossed(l, price) {
			continue
		}

		a := models.LevelAlert{
			Symbol:       symbol,
			LevelID:      l.ID,
			TargetPrice:  l.Price,
			CurrentPrice: price,
			Direction:    l.Direction,
			Recurring:    l.Recurring,
			Group:        l.Group,
			Description:  l.Description,
			At:           now,
		}

		if l.Recurring {
			out = append(out, a)
			continue
		}
		if e.fired(a.Key()) {
			continue
		}
		e.mark(a.Key(), now)
		out = append(out, a)
	}
	return out
}

// EvaluateGroups returns group alerts for groups whose fired-member
// count reached the group threshold. A group fires once; member levels
// keep their own independent suppression.
func (e *Evaluator) EvaluateGroups(symbol string, price float64, lvls []models.PriceLevel, now time.Time) []models.GroupAlert {
	type groupState struct {
		required int
		fired    []string
	}
	groups := make(map[string]*groupState)

	for _, l := range lvls {
		if l.Group == "" || l.Expired(now) {
			continue
		}
		g, ok := groups[l.Group]
		if !ok {
			g = &groupState{required: defaultGroupRequired}
			groups[l.Group] = g
		}
		if l.GroupRequiredCount > 0 {
			g.required = l.GroupRequiredCount
		}
		if crossed(l, price) {
			g.fired = append(g.fired, l.ID)
		}
	}

	var out []models.GroupAlert
	for name, g := range groups {
		if len(g.fired) < g.required {
			continue
		}
		a := models.GroupAlert{
			Symbol:        symbol,
			Group:         name,
			RequiredCount: g.required,
			FiredLevelIDs: g.fired,
			CurrentPrice:  price,
			At:            now,
		}
		if e.fired(a.Key()) {
			continue
		}
		e.mark(a.Key(), now)
		out = append(out, a)
	}
	return out
}

// SeedTriggered marks every non-recurring level and group whose
// condition already holds, without producing alerts. Run once at
// startup so levels crossed before the watcher came up stay quiet.
func (e *Evaluator) SeedTriggered(symbol string, price float64, lvls []models.PriceLevel, now time.Time) {
	seeded := 0
	for _, l := range lvls {
		if l.Recurring || l.Expired(now) || !crossed(l, price) {
			continue
		}
		a := models.LevelAlert{Symbol: symbol, LevelID: l.ID}
		if !e.fired(a.Key()) {
			e.mark(a.Key(), now)
			seeded++
		}
	}
	// EvaluateGroups marks as a side effect, which is all seeding needs.
	seeded += len(e.EvaluateGroups(symbol, price, lvls, now))
	if seeded > 0 {
		logger.Info("Seeded %d already-crossed levels for %s", seeded, symbol)
	}
}

// PendingProximity returns one-shot alerts for pending orders whose
// trigger price is within proximityPct percent of the current price.
func (e *Evaluator) PendingProximity(orders []models.Order, proximityPct float64, now time.Time) []models.ProximityAlert {
	var out []models.ProximityAlert
	for _, o := range orders {
		if o.Price <= 0 || o.CurrentPrice <= 0 {
			continue
		}
		distPct := math.Abs(o.CurrentPrice-o.Price) / o.Price * 100
		if distPct > proximityPct {
			continue
		}
		a := models.ProximityAlert{
			Order:        o,
			CurrentPrice: o.CurrentPrice,
			DistancePct:  distPct,
			At:           now,
		}
		if e.fired(a.Key()) {
			continue
		}
		e.mark(a.Key(), now)
		out = append(out, a)
	}
	return out
}
