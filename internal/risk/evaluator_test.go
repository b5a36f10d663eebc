package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradewatch/internal/alert"
	"tradewatch/internal/config"
	"tradewatch/internal/models"
)

func riskConfig() config.RiskConfig {
	return config.RiskConfig{
		Enabled:              true,
		MarginLevelWarning:   150,
		MarginLevelCritical:  100,
		MaxPositionSizePct:   20,
		DailyLossLimitPct:    5,
		DailyLossLimitAmount: 0,
		DrawdownLimitPct:     10,
	}
}

func account(balance, equity, marginLevel float64) models.AccountInfo {
	return models.AccountInfo{
		Balance:     balance,
		Equity:      equity,
		Margin:      100,
		MarginLevel: marginLevel,
		Leverage:    100,
	}
}

var noon = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func TestMarginLevelWarning(t *testing.T) {
	e := NewEvaluator(riskConfig(), alert.NewMemoryStore())

	alerts := e.Evaluate(account(10000, 10000, 140.4), nil, nil, noon)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.RiskMarginLevel, alerts[0].Check)
	assert.Equal(t, models.PriorityImportant, alerts[0].Priority)
	assert.Equal(t, "margin:warning:140", alerts[0].Key)

	// Same rounded level stays quiet.
	assert.Empty(t, e.Evaluate(account(10000, 10000, 140.2), nil, nil, noon))

	// Deterioration to a new rounded level alerts again.
	alerts = e.Evaluate(account(10000, 10000, 120), nil, nil, noon)
	require.Len(t, alerts, 1)
	assert.Equal(t, "margin:warning:120", alerts[0].Key)
}

func TestMarginLevelCritical(t *testing.T) {
	e := NewEvaluator(riskConfig(), alert.NewMemoryStore())

	alerts := e.Evaluate(account(10000, 10000, 95), nil, nil, noon)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.PriorityCritical, alerts[0].Priority)
	assert.Equal(t, "margin:critical:95", alerts[0].Key)
}

func TestMarginLevelSkippedWithoutMarginUse(t *testing.T) {
	e := NewEvaluator(riskConfig(), alert.NewMemoryStore())
	acct := account(10000, 10000, 0)
	acct.Margin = 0
	assert.Empty(t, e.Evaluate(acct, nil, nil, noon))
}

func TestPositionSizeLimit(t *testing.T) {
	e := NewEvaluator(riskConfig(), alert.NewMemoryStore())
	specs := map[string]models.SymbolSpec{
		"EURUSD": {Symbol: "EURUSD", ContractSize: 100000, Point: 0.00001, Digits: 5},
	}
	positions := []models.Position{
		// 5 lots at 1.10 with 1:100 leverage is 5500 of a 10000 account.
		{Ticket: 77, Symbol: "EURUSD", Side: models.SideBuy, Volume: 5, OpenPrice: 1.10},
		{Ticket: 78, Symbol: "EURUSD", Side: models.SideBuy, Volume: 0.1, OpenPrice: 1.10},
	}

	alerts := e.Evaluate(account(10000, 10000, 500), positions, specs, noon)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.RiskPositionSize, alerts[0].Check)
	assert.Equal(t, "possize:77", alerts[0].Key)

	// Per-ticket one-shot.
	assert.Empty(t, e.Evaluate(account(10000, 10000, 500), positions, specs, noon))
}

func TestPositionSizeMeasuredAgainstBalance(t *testing.T) {
	e := NewEvaluator(riskConfig(), alert.NewMemoryStore())
	specs := map[string]models.SymbolSpec{
		"EURUSD": {Symbol: "EURUSD", ContractSize: 100000, Point: 0.00001, Digits: 5},
	}
	positions := []models.Position{
		{Ticket: 91, Symbol: "EURUSD", Side: models.SideBuy, Volume: 5, OpenPrice: 1.10},
	}

	// Exposure 5500 is over 20% of the 10000 balance even though a
	// swollen equity would put it under the limit.
	alerts := e.Evaluate(account(10000, 50000, 500), positions, specs, noon)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.RiskPositionSize, alerts[0].Check)
	assert.Contains(t, alerts[0].Message, "of balance")
}

func TestDailyLossPercent(t *testing.T) {
	e := NewEvaluator(riskConfig(), alert.NewMemoryStore())

	// First pass sets the day baseline from balance.
	assert.Empty(t, e.Evaluate(account(10000, 10000, 500), nil, nil, noon))

	alerts := e.Evaluate(account(10000, 9400, 500), nil, nil, noon.Add(time.Hour))
	require.Len(t, alerts, 1)
	assert.Equal(t, models.RiskDailyLoss, alerts[0].Check)
	assert.Equal(t, "dailyloss:percent:2025-03-10", alerts[0].Key)

	// Fired once for the day.
	assert.Empty(t, e.Evaluate(account(10000, 9300, 500), nil, nil, noon.Add(2*time.Hour)))
}

func TestDailyLossResetsAtDayBoundary(t *testing.T) {
	cfg := riskConfig()
	cfg.DrawdownLimitPct = 50 // keep the drawdown check out of the way
	e := NewEvaluator(cfg, alert.NewMemoryStore())

	assert.Empty(t, e.Evaluate(account(10000, 10000, 500), nil, nil, noon))
	require.Len(t, e.Evaluate(account(10000, 9400, 500), nil, nil, noon.Add(time.Hour)), 1)

	// Next day: baseline re-seeds from current balance, and the date in
	// the key re-arms the check.
	nextDay := noon.Add(24 * time.Hour)
	assert.Empty(t, e.Evaluate(account(9400, 9400, 500), nil, nil, nextDay))

	alerts := e.Evaluate(account(9400, 8800, 500), nil, nil, nextDay.Add(time.Hour))
	require.Len(t, alerts, 1)
	assert.Equal(t, "dailyloss:percent:2025-03-11", alerts[0].Key)
}

func TestDailyLossAmountTakesPrecedence(t *testing.T) {
	cfg := riskConfig()
	cfg.DailyLossLimitAmount = 300
	e := NewEvaluator(cfg, alert.NewMemoryStore())

	assert.Empty(t, e.Evaluate(account(10000, 10000, 500), nil, nil, noon))

	// Both limits breached; only the amount alert goes out.
	alerts := e.Evaluate(account(10000, 9200, 500), nil, nil, noon.Add(time.Hour))
	require.Len(t, alerts, 1)
	assert.Equal(t, "dailyloss:amount:2025-03-10", alerts[0].Key)
}

func TestDrawdownFromPeak(t *testing.T) {
	e := NewEvaluator(riskConfig(), alert.NewMemoryStore())

	assert.Empty(t, e.Evaluate(account(10000, 12000, 500), nil, nil, noon))

	// 12000 -> 10700 is 10.8%.
	alerts := e.Evaluate(account(10000, 10700, 500), nil, nil, noon.Add(time.Hour))
	require.Len(t, alerts, 1)
	assert.Equal(t, models.RiskDrawdown, alerts[0].Check)
	assert.Equal(t, "drawdown:11", alerts[0].Key)

	// Each further whole percent alerts again.
	alerts = e.Evaluate(account(10000, 10500, 500), nil, nil, noon.Add(2*time.Hour))
	require.Len(t, alerts, 1)
	assert.Equal(t, "drawdown:13", alerts[0].Key)
}

func TestDisabledEvaluatorStaysQuiet(t *testing.T) {
	cfg := riskConfig()
	cfg.Enabled = false
	e := NewEvaluator(cfg, alert.NewMemoryStore())
	assert.Empty(t, e.Evaluate(account(10000, 5000, 50), nil, nil, noon))
}

func TestRestoreBaseline(t *testing.T) {
	e := NewEvaluator(riskConfig(), alert.NewMemoryStore())
	e.RestoreBaseline("2025-03-10", 10000, 12000)

	// Restored baseline is used instead of the first-seen balance.
	alerts := e.Evaluate(account(9400, 9400, 500), nil, nil, noon)
	require.NotEmpty(t, alerts)

	date, balance, peak := e.Baseline()
	assert.Equal(t, "2025-03-10", date)
	assert.Equal(t, 10000.0, balance)
	assert.Equal(t, 12000.0, peak)
}
