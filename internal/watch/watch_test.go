package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradewatch/internal/alert"
	"tradewatch/internal/config"
	"tradewatch/internal/models"
)

// fakeSource serves canned snapshots and can be flipped into failure.
type fakeSource struct {
	positions []models.Position
	orders    []models.Order
	acct      models.AccountInfo
	ticks     map[string]models.Tick
	bars      map[string][]models.Bar
	deals     []models.Deal
	specs     map[string]models.SymbolSpec
	err       error
}

func (f *fakeSource) Positions(context.Context) ([]models.Position, error) {
	return f.positions, f.err
}

func (f *fakeSource) Orders(context.Context) ([]models.Order, error) {
	return f.orders, f.err
}

func (f *fakeSource) AccountInfo(context.Context) (models.AccountInfo, error) {
	return f.acct, f.err
}

func (f *fakeSource) Tick(_ context.Context, symbol string) (models.Tick, error) {
	t, ok := f.ticks[symbol]
	if !ok {
		return models.Tick{}, errors.New("no tick")
	}
	return t, f.err
}

func (f *fakeSource) Bars(_ context.Context, symbol, _ string, _ int) ([]models.Bar, error) {
	return f.bars[symbol], f.err
}

func (f *fakeSource) Deals(context.Context, time.Time, time.Time) ([]models.Deal, error) {
	return f.deals, f.err
}

func (f *fakeSource) SymbolSpec(_ context.Context, symbol string) (models.SymbolSpec, error) {
	s, ok := f.specs[symbol]
	if !ok {
		return models.SymbolSpec{}, errors.New("no spec")
	}
	return s, f.err
}

// captureSender collects everything the gate sends.
type captureSender struct {
	sent []alert.Alert
}

func (c *captureSender) Send(a alert.Alert) error {
	c.sent = append(c.sent, a)
	return nil
}

func (c *captureSender) titles() []string {
	out := make([]string, 0, len(c.sent))
	for _, a := range c.sent {
		out = append(out, a.Title)
	}
	return out
}

func watchConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Monitor.PollInterval = time.Second
	cfg.Monitor.TradeAlerts = true
	cfg.Monitor.OrderAlerts = true
	cfg.Monitor.PriceAlerts = true
	cfg.Monitor.PendingProximity = true
	cfg.Monitor.PendingProximityPct = 1.0
	cfg.Alerts.RateLimitEnabled = true
	cfg.Alerts.MaxPerMinute = 100
	cfg.Alerts.MaxPerHour = 1000
	cfg.Alerts.BatchWindow = 30 * time.Second
	cfg.Alerts.MaxBatchSize = 10
	cfg.Alerts.QuietStart = "22:00"
	cfg.Alerts.QuietEnd = "08:00"
	cfg.Risk.Enabled = true
	cfg.Risk.CheckInterval = 30 * time.Second
	cfg.Risk.MarginLevelWarning = 150
	cfg.Risk.MarginLevelCritical = 100
	cfg.Risk.MaxPositionSizePct = 20
	cfg.Risk.DailyLossLimitPct = 5
	cfg.Risk.DrawdownLimitPct = 10
	cfg.Levels.File = filepath.Join(t.TempDir(), "levels.yaml")
	cfg.Profit.Interval = time.Minute
	cfg.Summary.Hour = 23
	return cfg
}

type harness struct {
	svc    *Service
	source *fakeSource
	sender *captureSender
	clock  *time.Time
}

func newHarness(t *testing.T, cfg *config.Config) *harness {
	t.Helper()
	source := &fakeSource{
		acct:  models.AccountInfo{Balance: 10000, Equity: 10000, MarginLevel: 500, Leverage: 100},
		ticks: map[string]models.Tick{},
		specs: map[string]models.SymbolSpec{},
	}
	sender := &captureSender{}
	clock := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return clock }

	gate, err := alert.NewGate(cfg.Alerts, sender, now)
	require.NoError(t, err)
	svc := New(cfg, source, gate, alert.NewMemoryStore(), nil, now)
	return &harness{svc: svc, source: source, sender: sender, clock: &clock}
}

func (h *harness) advance(d time.Duration) {
	*h.clock = h.clock.Add(d)
}

func TestCycleEmitsTradeEvents(t *testing.T) {
	h := newHarness(t, watchConfig(t))
	ctx := context.Background()

	h.source.positions = []models.Position{
		{Ticket: 1, Symbol: "EURUSD", Side: models.SideBuy, Volume: 0.1, OpenPrice: 1.1, CurrentPrice: 1.1, Profit: 0},
	}
	require.NoError(t, h.svc.Prime(ctx))

	// Open ticket 2 and close ticket 1.
	h.source.positions = []models.Position{
		{Ticket: 2, Symbol: "GBPUSD", Side: models.SideSell, Volume: 0.2, OpenPrice: 1.25, CurrentPrice: 1.25},
	}
	h.advance(5 * time.Second)
	h.svc.Cycle(ctx)

	titles := h.sender.titles()
	assert.Contains(t, titles, "Opened GBPUSD SELL")
	found := false
	for _, title := range titles {
		if strings.HasPrefix(title, "Closed EURUSD BUY") {
			found = true
		}
	}
	assert.True(t, found, "expected a close alert, got %v", titles)
}

func TestCycleSkipsOnFetchError(t *testing.T) {
	h := newHarness(t, watchConfig(t))
	ctx := context.Background()

	h.source.positions = []models.Position{
		{Ticket: 1, Symbol: "EURUSD", Side: models.SideBuy, Volume: 0.1, OpenPrice: 1.1, CurrentPrice: 1.1},
	}
	require.NoError(t, h.svc.Prime(ctx))

	// A dead bridge must not read as "all positions closed".
	h.source.err = errors.New("connection refused")
	h.advance(5 * time.Second)
	h.svc.Cycle(ctx)
	assert.Empty(t, h.sender.sent)

	h.source.err = nil
	h.advance(5 * time.Second)
	h.svc.Cycle(ctx)
	for _, a := range h.sender.sent {
		assert.NotEqual(t, models.AlertTrade, a.Type, "no trade events should have fired: %v", a.Title)
	}
}

func TestConsecutiveFailureAndRecoveryAlerts(t *testing.T) {
	h := newHarness(t, watchConfig(t))
	ctx := context.Background()
	require.NoError(t, h.svc.Prime(ctx))

	h.source.err = errors.New("connection refused")
	for i := 0; i < failureThreshold; i++ {
		h.advance(5 * time.Second)
		h.svc.Cycle(ctx)
	}
	require.Len(t, h.sender.sent, 1)
	assert.Equal(t, "Terminal polling failing", h.sender.sent[0].Title)
	assert.Equal(t, models.PriorityCritical, h.sender.sent[0].Priority)

	// Further failures stay quiet.
	h.advance(5 * time.Second)
	h.svc.Cycle(ctx)
	assert.Len(t, h.sender.sent, 1)

	h.source.err = nil
	h.advance(5 * time.Second)
	h.svc.Cycle(ctx)
	require.Len(t, h.sender.sent, 2)
	assert.Equal(t, "Terminal polling recovered", h.sender.sent[1].Title)
}

func TestLevelAlertsFromTicks(t *testing.T) {
	cfg := watchConfig(t)
	body := `
levels:
  EURUSD:
    - id: r1
      price: 1.1000
      type: above
`
	require.NoError(t, os.WriteFile(cfg.Levels.File, []byte(body), 0o644))

	h := newHarness(t, cfg)
	ctx := context.Background()
	h.source.ticks["EURUSD"] = models.Tick{Symbol: "EURUSD", Bid: 1.0899, Ask: 1.0901}
	require.NoError(t, h.svc.Prime(ctx))

	// Below the level: nothing.
	h.advance(5 * time.Second)
	h.svc.Cycle(ctx)
	assert.Empty(t, h.sender.sent)

	h.source.ticks["EURUSD"] = models.Tick{Symbol: "EURUSD", Bid: 1.1009, Ask: 1.1011}
	h.advance(5 * time.Second)
	h.svc.Cycle(ctx)
	require.Len(t, h.sender.sent, 1)
	assert.Equal(t, "Price level hit: EURUSD r1", h.sender.sent[0].Title)

	// One-shot.
	h.advance(5 * time.Second)
	h.svc.Cycle(ctx)
	assert.Len(t, h.sender.sent, 1)
}

func TestPrimeSeedsAlreadyCrossedLevels(t *testing.T) {
	cfg := watchConfig(t)
	body := `
levels:
  EURUSD:
    - id: r1
      price: 1.1000
      type: above
`
	require.NoError(t, os.WriteFile(cfg.Levels.File, []byte(body), 0o644))

	h := newHarness(t, cfg)
	ctx := context.Background()
	// Already above the level when the watcher starts.
	h.source.ticks["EURUSD"] = models.Tick{Symbol: "EURUSD", Bid: 1.1099, Ask: 1.1101}
	require.NoError(t, h.svc.Prime(ctx))

	h.advance(5 * time.Second)
	h.svc.Cycle(ctx)
	assert.Empty(t, h.sender.sent)
}

func TestRiskCheckRunsOnItsOwnInterval(t *testing.T) {
	h := newHarness(t, watchConfig(t))
	ctx := context.Background()
	require.NoError(t, h.svc.Prime(ctx))

	h.source.acct.MarginLevel = 120
	h.source.acct.Margin = 500

	// First cycle runs the risk check immediately.
	h.advance(5 * time.Second)
	h.svc.Cycle(ctx)
	require.Len(t, h.sender.sent, 1)
	assert.Contains(t, h.sender.sent[0].Title, "margin_level")

	// Within the interval nothing new is evaluated even as the level
	// keeps moving.
	h.source.acct.MarginLevel = 110
	h.advance(5 * time.Second)
	h.svc.Cycle(ctx)
	assert.Len(t, h.sender.sent, 1)

	h.advance(30 * time.Second)
	h.svc.Cycle(ctx)
	assert.Len(t, h.sender.sent, 2)
}

func TestProfitSuggestionOneShot(t *testing.T) {
	cfg := watchConfig(t)
	cfg.Profit.Enabled = true
	cfg.Profit.MinProfit = 10
	cfg.Profit.PctThreshold = 5
	h := newHarness(t, cfg)
	ctx := context.Background()

	h.source.positions = []models.Position{
		{Ticket: 9, Symbol: "XAUUSD", Side: models.SideBuy, Volume: 0.5, OpenPrice: 2000, CurrentPrice: 2010, Profit: 500},
	}
	require.NoError(t, h.svc.Prime(ctx))

	h.advance(5 * time.Second)
	h.svc.Cycle(ctx)
	require.Len(t, h.sender.sent, 1)
	assert.Contains(t, h.sender.sent[0].Title, "taking profit")

	h.advance(2 * time.Minute)
	h.svc.Cycle(ctx)
	assert.Len(t, h.sender.sent, 1)
}

func TestDailySummaryOncePerDay(t *testing.T) {
	cfg := watchConfig(t)
	cfg.Summary.Enabled = true
	cfg.Summary.Hour = 13
	h := newHarness(t, cfg)
	ctx := context.Background()

	h.source.deals = []models.Deal{
		{Ticket: 1, Symbol: "EURUSD", Profit: 50},
		{Ticket: 2, Symbol: "GBPUSD", Profit: -20},
	}
	require.NoError(t, h.svc.Prime(ctx))

	// Noon: before the slot.
	h.svc.Cycle(ctx)
	assert.Empty(t, h.sender.sent)

	h.advance(90 * time.Minute) // 13:30
	h.svc.Cycle(ctx)
	require.Len(t, h.sender.sent, 1)
	assert.Equal(t, "Daily summary 2025-03-10", h.sender.sent[0].Title)
	assert.Contains(t, h.sender.sent[0].Body, "Deals: 2 (1 wins, 1 losses)")
	assert.Contains(t, h.sender.sent[0].Body, "Net P/L: 30.00")

	// Same day, later cycle: no repeat.
	h.advance(time.Hour)
	h.svc.Cycle(ctx)
	assert.Len(t, h.sender.sent, 1)
}

func TestPrimeSkipsSummarySlotAlreadyPassed(t *testing.T) {
	cfg := watchConfig(t)
	cfg.Summary.Enabled = true
	cfg.Summary.Hour = 9 // watcher starts at noon
	h := newHarness(t, cfg)
	ctx := context.Background()
	require.NoError(t, h.svc.Prime(ctx))

	h.svc.Cycle(ctx)
	assert.Empty(t, h.sender.sent)
}

func TestPendingProximityAlert(t *testing.T) {
	h := newHarness(t, watchConfig(t))
	ctx := context.Background()

	require.NoError(t, h.svc.Prime(ctx))
	h.source.orders = []models.Order{
		{Ticket: 5, Symbol: "EURUSD", Kind: models.OrderBuyLimit, Volume: 0.1, Price: 1.1000, CurrentPrice: 1.1008},
	}

	h.advance(5 * time.Second)
	h.svc.Cycle(ctx)

	var proximity, placed bool
	for _, a := range h.sender.sent {
		if a.Title == "Price nearing pending EURUSD BUY LIMIT" {
			proximity = true
		}
		if a.Title == "Placed EURUSD BUY LIMIT" {
			placed = true
		}
	}
	assert.True(t, placed)
	assert.True(t, proximity)
}
