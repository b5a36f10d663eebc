package levels

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradewatch/internal/alert"
	"tradewatch/internal/models"
)

func newEval(t *testing.T) *Evaluator {
	t.Helper()
	return NewEvaluator(alert.NewMemoryStore())
}

func TestEvaluateOneShot(t *testing.T) {
	e := newEval(t)
	now := time.Now()
	lvls := []models.PriceLevel{
		{ID: "r1", Price: 1.1000, Direction: models.LevelAbove},
	}

	alerts := e.Evaluate("EURUSD", 1.1005, lvls, now)
	require.Len(t, alerts, 1)
	assert.Equal(t, "r1", alerts[0].LevelID)
	assert.Equal(t, 1.1005, alerts[0].CurrentPrice)

	// Still crossed, but already fired.
	alerts = e.Evaluate("EURUSD", 1.1010, lvls, now)
	assert.Empty(t, alerts)
}

func TestEvaluateDirections(t *testing.T) {
	e := newEval(t)
	now := time.Now()

	tests := []struct {
		name  string
		level models.PriceLevel
		price float64
		fires bool
	}{
		{"above hit", models.PriceLevel{ID: "a", Price: 1.10, Direction: models.LevelAbove}, 1.10, true},
		{"above miss", models.PriceLevel{ID: "b", Price: 1.10, Direction: models.LevelAbove}, 1.0999, false},
		{"below hit", models.PriceLevel{ID: "c", Price: 1.10, Direction: models.LevelBelow}, 1.0999, true},
		{"below miss", models.PriceLevel{ID: "d", Price: 1.10, Direction: models.LevelBelow}, 1.1001, false},
		{"both within tolerance", models.PriceLevel{ID: "e", Price: 1.10, Direction: models.LevelBoth}, 1.10005, true},
		{"both outside tolerance", models.PriceLevel{ID: "f", Price: 1.10, Direction: models.LevelBoth}, 1.1002, false},
		// 0.0002 - 0.0001 is exactly the tolerance in float64, and the
		// tolerance is exclusive.
		{"both at exact tolerance", models.PriceLevel{ID: "g", Price: 0.0001, Direction: models.LevelBoth}, 0.0002, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alerts := e.Evaluate("EURUSD", tt.price, []models.PriceLevel{tt.level}, now)
			if tt.fires {
				assert.Len(t, alerts, 1)
			} else {
				assert.Empty(t, alerts)
			}
		})
	}
}

func TestEvaluateRecurringFiresEveryTime(t *testing.T) {
	e := newEval(t)
	now := time.Now()
	lvls := []models.PriceLevel{
		{ID: "pivot", Price: 1.1000, Direction: models.LevelAbove, Recurring: true},
	}

	for i := 0; i < 3; i++ {
		alerts := e.Evaluate("EURUSD", 1.1001, lvls, now)
		assert.Len(t, alerts, 1)
	}
}

func TestEvaluateSkipsExpired(t *testing.T) {
	e := newEval(t)
	now := time.Now()
	expired := now.Add(-time.Hour)
	lvls := []models.PriceLevel{
		{ID: "old", Price: 1.1000, Direction: models.LevelAbove, Expiration: &expired},
	}

	assert.Empty(t, e.Evaluate("EURUSD", 1.2, lvls, now))
}

func TestEvaluateGroupsThreshold(t *testing.T) {
	e := newEval(t)
	now := time.Now()
	lvls := []models.PriceLevel{
		{ID: "g1", Price: 1.10, Direction: models.LevelAbove, Group: "breakout"},
		{ID: "g2", Price: 1.11, Direction: models.LevelAbove, Group: "breakout"},
		{ID: "g3", Price: 1.12, Direction: models.LevelAbove, Group: "breakout", GroupRequiredCount: 3},
	}

	// Two of three crossed, required is three.
	assert.Empty(t, e.EvaluateGroups("EURUSD", 1.115, lvls, now))

	groups := e.EvaluateGroups("EURUSD", 1.125, lvls, now)
	require.Len(t, groups, 1)
	assert.Equal(t, "breakout", groups[0].Group)
	assert.Equal(t, 3, groups[0].RequiredCount)
	assert.Len(t, groups[0].FiredLevelIDs, 3)

	// Group alerts are one-shot.
	assert.Empty(t, e.EvaluateGroups("EURUSD", 1.13, lvls, now))
}

func TestEvaluateGroupsDefaultRequired(t *testing.T) {
	e := newEval(t)
	now := time.Now()
	lvls := []models.PriceLevel{
		{ID: "g1", Price: 1.10, Direction: models.LevelAbove, Group: "zone"},
		{ID: "g2", Price: 1.11, Direction: models.LevelAbove, Group: "zone"},
	}

	assert.Empty(t, e.EvaluateGroups("EURUSD", 1.105, lvls, now))
	assert.Len(t, e.EvaluateGroups("EURUSD", 1.112, lvls, now), 1)
}

func TestSeedTriggeredSilencesCrossedLevels(t *testing.T) {
	e := newEval(t)
	now := time.Now()
	lvls := []models.PriceLevel{
		{ID: "crossed", Price: 1.10, Direction: models.LevelAbove},
		{ID: "pending", Price: 1.20, Direction: models.LevelAbove},
		{ID: "recurring", Price: 1.10, Direction: models.LevelAbove, Recurring: true},
	}

	e.SeedTriggered("EURUSD", 1.15, lvls, now)

	alerts := e.Evaluate("EURUSD", 1.15, lvls, now)
	require.Len(t, alerts, 1)
	assert.Equal(t, "recurring", alerts[0].LevelID)

	// The unseeded level still fires when reached.
	alerts = e.Evaluate("EURUSD", 1.21, lvls, now)
	ids := make([]string, 0, len(alerts))
	for _, a := range alerts {
		ids = append(ids, a.LevelID)
	}
	assert.Contains(t, ids, "pending")
}

func TestPendingProximity(t *testing.T) {
	e := newEval(t)
	now := time.Now()
	orders := []models.Order{
		{Ticket: 1, Symbol: "EURUSD", Kind: models.OrderBuyLimit, Price: 1.1000, CurrentPrice: 1.1005},
		{Ticket: 2, Symbol: "EURUSD", Kind: models.OrderSellStop, Price: 1.1000, CurrentPrice: 1.1500},
	}

	alerts := e.PendingProximity(orders, 1.0, now)
	require.Len(t, alerts, 1)
	assert.Equal(t, int64(1), alerts[0].Order.Ticket)
	assert.InDelta(t, 0.045, alerts[0].DistancePct, 0.01)

	// One-shot per ticket.
	assert.Empty(t, e.PendingProximity(orders, 1.0, now))
}
