// Package watch runs the polling loop that ties the terminal source,
// the evaluators, and the alert gate together.
package watch

import (
	"context"
	"fmt"
	"time"

	"tradewatch/internal/alert"
	"tradewatch/internal/config"
	"tradewatch/internal/detector"
	"tradewatch/internal/levels"
	"tradewatch/internal/logger"
	"tradewatch/internal/models"
	"tradewatch/internal/risk"
	"tradewatch/internal/storage"
	"tradewatch/internal/terminal"
	"tradewatch/internal/volatility"
)

// failureThreshold is how many consecutive failed polls it takes before
// the watcher raises an error alert.
const failureThreshold = 3

// volTimeframe is the bar timeframe used for volatility measurement.
const volTimeframe = "1h"

// RecordingSender forwards alerts to the channels and appends delivered
// ones to history. Recording failures are logged, never propagated: a
// full disk must not silence alerts.
type RecordingSender struct {
	Inner alert.Sender
	Store *storage.Store
}

func (r *RecordingSender) Send(a alert.Alert) error {
	if err := r.Inner.Send(a); err != nil {
		return err
	}
	if r.Store != nil {
		if err := r.Store.RecordAlert(a); err != nil {
			logger.Warn("Failed to record alert history: %v", err)
		}
	}
	return nil
}

// Service is the polling orchestrator.
type Service struct {
	cfg      *config.Config
	source   terminal.Source
	det      *detector.Detector
	lvlStore *levels.Store
	eval     *levels.Evaluator
	riskEval *risk.Evaluator
	vol      *volatility.Analyzer
	gate     *alert.Gate
	state    alert.StateStore
	history  *storage.Store
	now      func() time.Time

	levels    map[string][]models.PriceLevel
	specs     map[string]models.SymbolSpec
	suggested map[string]float64

	failures        int
	failureNotified bool

	lastRisk        time.Time
	lastProfit      time.Time
	lastVol         time.Time
	lastRefresh     time.Time
	lastSummaryDate string
}

// New wires a service. The history store may be nil, which disables
// alert history and baseline persistence. The clock is injectable for
// tests; pass nil for wall time.
func New(cfg *config.Config, source terminal.Source, gate *alert.Gate, state alert.StateStore, history *storage.Store, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		cfg:       cfg,
		source:    source,
		det:       detector.New(),
		lvlStore:  levels.NewStore(cfg.Levels.File),
		eval:      levels.NewEvaluator(state),
		riskEval:  risk.NewEvaluator(cfg.Risk, state),
		vol:       volatility.NewAnalyzer(cfg.Volatility, state, now),
		gate:      gate,
		state:     state,
		history:   history,
		now:       now,
		levels:    map[string][]models.PriceLevel{},
		specs:     map[string]models.SymbolSpec{},
		suggested: map[string]float64{},
	}
}

// Prime loads levels, restores the risk baseline, seeds the detector
// from the current snapshot, and silences levels that are already
// crossed. Call once before Run.
func (s *Service) Prime(ctx context.Context) error {
	lvls, err := s.lvlStore.Load()
	if err != nil {
		return fmt.Errorf("failed to load levels: %w", err)
	}
	s.levels = lvls

	if s.history != nil {
		date, balance, peak, ok, err := s.history.LoadBaseline()
		if err != nil {
			logger.Warn("Failed to load risk baseline: %v", err)
		} else if ok {
			s.riskEval.RestoreBaseline(date, balance, peak)
			logger.Info("Restored risk baseline from %s", date)
		}
	}

	positions, err := s.source.Positions(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch positions: %w", err)
	}
	orders, err := s.source.Orders(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch orders: %w", err)
	}
	s.det.Prime(positions, orders)

	now := s.now()
	for symbol, symbolLevels := range s.levels {
		tick, err := s.source.Tick(ctx, symbol)
		if err != nil {
			logger.Warn("No tick for %s at startup, skipping level seeding: %v", symbol, err)
			continue
		}
		s.eval.SeedTriggered(symbol, tick.Mid(), symbolLevels, now)
	}

	// Do not emit a summary for a slot that already passed today.
	if s.cfg.Summary.Enabled && !now.Before(s.summaryTarget(now)) {
		s.lastSummaryDate = now.Format("2006-01-02")
	}

	logger.Info("Watcher primed: %d positions, %d orders, %d level symbols",
		len(positions), len(orders), len(s.levels))
	return nil
}

// Run polls until the context is cancelled. Pending batched alerts are
// flushed on the way out.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Monitor.PollInterval)
	defer ticker.Stop()

	s.Cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			s.gate.Flush()
			return
		case <-ticker.C:
			s.Cycle(ctx)
		}
	}
}

// Cycle runs one poll pass. A failed snapshot fetch skips the whole
// pass: without fresh data, a missing position cannot be told apart
// from a dead bridge, so nothing is inferred from absence.
func (s *Service) Cycle(ctx context.Context) {
	now := s.now()

	positions, err := s.source.Positions(ctx)
	if err != nil {
		s.recordFailure(fmt.Errorf("positions: %w", err), now)
		return
	}
	orders, err := s.source.Orders(ctx)
	if err != nil {
		s.recordFailure(fmt.Errorf("orders: %w", err), now)
		return
	}
	acct, err := s.source.AccountInfo(ctx)
	if err != nil {
		s.recordFailure(fmt.Errorf("account: %w", err), now)
		return
	}
	s.recordRecovery(now)

	posEvents, ordEvents := s.det.Detect(positions, orders, now)
	if s.cfg.Monitor.TradeAlerts {
		for _, e := range posEvents {
			s.gate.Submit(positionAlert(e))
		}
	}
	if s.cfg.Monitor.OrderAlerts {
		for _, e := range ordEvents {
			s.gate.Submit(orderAlert(e))
		}
	}
	if s.cfg.Monitor.PendingProximity {
		for _, a := range s.eval.PendingProximity(orders, s.cfg.Monitor.PendingProximityPct, now) {
			s.gate.Submit(proximityAlert(a))
		}
	}
	if s.cfg.Monitor.PriceAlerts {
		s.checkLevels(ctx, now)
	}

	if s.cfg.Risk.Enabled && now.Sub(s.lastRisk) >= s.cfg.Risk.CheckInterval {
		s.lastRisk = now
		s.checkRisk(ctx, acct, positions, now)
	}
	if s.cfg.Profit.Enabled && now.Sub(s.lastProfit) >= s.cfg.Profit.Interval {
		s.lastProfit = now
		s.checkProfit(positions, acct, now)
	}
	if s.cfg.Volatility.Enabled && now.Sub(s.lastVol) >= s.cfg.Volatility.Interval {
		s.lastVol = now
		s.checkVolatility(ctx, acct, positions)
	}
	if s.cfg.Levels.AutoDetect && now.Sub(s.lastRefresh) >= s.cfg.Levels.RefreshInterval {
		s.lastRefresh = now
		s.refreshLevels(ctx)
	}
	s.maybeSummarize(ctx, acct, len(positions), now)

	s.gate.Tick()
	s.persistBaseline()
}

func (s *Service) recordFailure(err error, now time.Time) {
	s.failures++
	logger.Warn("Poll failed (%d consecutive): %v", s.failures, err)
	if s.failures == failureThreshold && !s.failureNotified {
		s.failureNotified = true
		s.gate.Submit(alert.Alert{
			Type:     models.AlertRisk,
			Priority: models.PriorityCritical,
			Title:    "Terminal polling failing",
			Body:     fmt.Sprintf("%d consecutive polls failed, last error: %v", s.failures, err),
			At:       now,
		})
	}
}

func (s *Service) recordRecovery(now time.Time) {
	if s.failureNotified {
		s.gate.Submit(alert.Alert{
			Type:     models.AlertRisk,
			Priority: models.PriorityImportant,
			Title:    "Terminal polling recovered",
			Body:     fmt.Sprintf("Polling resumed after %d failed attempts", s.failures),
			At:       now,
		})
	}
	s.failures = 0
	s.failureNotified = false
}

func (s *Service) checkLevels(ctx context.Context, now time.Time) {
	for symbol, symbolLevels := range s.levels {
		tick, err := s.source.Tick(ctx, symbol)
		if err != nil {
			logger.Warn("No tick for %s, skipping levels: %v", symbol, err)
			continue
		}
		price := tick.Mid()
		for _, a := range s.eval.Evaluate(symbol, price, symbolLevels, now) {
			s.gate.Submit(levelAlert(a))
		}
		for _, a := range s.eval.EvaluateGroups(symbol, price, symbolLevels, now) {
			s.gate.Submit(groupAlert(a))
		}
	}
}

// symbolSpec fetches and caches the instrument constants.
func (s *Service) symbolSpec(ctx context.Context, symbol string) (models.SymbolSpec, bool) {
	if spec, ok := s.specs[symbol]; ok {
		return spec, true
	}
	spec, err := s.source.SymbolSpec(ctx, symbol)
	if err != nil {
		logger.Warn("No symbol spec for %s: %v", symbol, err)
		return models.SymbolSpec{}, false
	}
	s.specs[symbol] = spec
	return spec, true
}

func (s *Service) checkRisk(ctx context.Context, acct models.AccountInfo, positions []models.Position, now time.Time) {
	for _, p := range positions {
		s.symbolSpec(ctx, p.Symbol)
	}
	for _, a := range s.riskEval.Evaluate(acct, positions, s.specs, now) {
		s.gate.Submit(riskAlert(a))
	}
}

func (s *Service) checkProfit(positions []models.Position, acct models.AccountInfo, now time.Time) {
	for _, sug := range profitSuggestions(s.cfg.Profit, positions, acct.Balance, now) {
		has, err := s.state.Has(sug.Key())
		if err != nil {
			logger.Warn("State lookup for %s failed: %v", sug.Key(), err)
		}
		if has {
			continue
		}
		if err := s.state.Mark(sug.Key(), now); err != nil {
			logger.Warn("Failed to mark %s: %v", sug.Key(), err)
		}
		s.gate.Submit(profitAlert(sug))
	}
}

func (s *Service) checkVolatility(ctx context.Context, acct models.AccountInfo, positions []models.Position) {
	symbols := map[string]bool{}
	for _, p := range positions {
		symbols[p.Symbol] = true
	}

	for symbol := range symbols {
		spec, ok := s.symbolSpec(ctx, symbol)
		if !ok {
			continue
		}
		tick, err := s.source.Tick(ctx, symbol)
		if err != nil {
			logger.Warn("No tick for %s, skipping volatility: %v", symbol, err)
			continue
		}

		var bars []models.Bar
		if s.vol.NeedsBars(symbol) {
			bars, err = s.source.Bars(ctx, symbol, volTimeframe, s.cfg.Volatility.Periods*3)
			if err != nil {
				logger.Warn("No bars for %s, skipping volatility: %v", symbol, err)
				continue
			}
		}
		m, err := s.vol.Measure(symbol, bars, tick.Mid())
		if err != nil {
			logger.Warn("Volatility measurement failed for %s: %v", symbol, err)
			continue
		}
		s.suggested[symbol] = s.vol.SuggestVolume(acct.Equity, spec, m)
	}

	for _, a := range s.vol.CheckPositions(positions, s.suggested) {
		s.gate.Submit(sizingAlert(a))
	}
}

func (s *Service) refreshLevels(ctx context.Context) {
	for _, symbol := range s.cfg.Monitor.Symbols {
		bars, err := s.source.Bars(ctx, symbol, s.cfg.Levels.Timeframe, s.cfg.Levels.BarCount)
		if err != nil {
			logger.Warn("No bars for %s, skipping level refresh: %v", symbol, err)
			continue
		}
		detected := levels.DetectLevels(symbol, bars)
		if err := s.lvlStore.ReplaceDynamic(symbol, detected); err != nil {
			logger.Error("Failed to persist auto levels for %s: %v", symbol, err)
			continue
		}
		logger.Info("Refreshed %d auto levels for %s", len(detected), symbol)
	}

	lvls, err := s.lvlStore.Load()
	if err != nil {
		logger.Error("Failed to reload levels: %v", err)
		return
	}
	s.levels = lvls
}

// summaryTarget is today's summary slot for the given time.
func (s *Service) summaryTarget(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(),
		s.cfg.Summary.Hour, s.cfg.Summary.Minute, 0, 0, now.Location())
}

func (s *Service) maybeSummarize(ctx context.Context, acct models.AccountInfo, openPositions int, now time.Time) {
	if !s.cfg.Summary.Enabled {
		return
	}
	date := now.Format("2006-01-02")
	if date == s.lastSummaryDate || now.Before(s.summaryTarget(now)) {
		return
	}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	deals, err := s.source.Deals(ctx, dayStart, now)
	if err != nil {
		logger.Warn("No deal history, skipping daily summary: %v", err)
		return
	}
	s.lastSummaryDate = date
	s.gate.Submit(buildSummary(deals, acct, openPositions, now))
}

func (s *Service) persistBaseline() {
	if s.history == nil {
		return
	}
	date, balance, peak := s.riskEval.Baseline()
	if date == "" {
		return
	}
	if err := s.history.SaveBaseline(date, balance, peak); err != nil {
		logger.Warn("Failed to persist risk baseline: %v", err)
	}
}
