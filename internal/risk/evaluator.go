// Package risk evaluates account snapshots against configured
// exposure thresholds.
package risk

import (
	"fmt"
	"math"
	"time"

	"tradewatch/internal/alert"
	"tradewatch/internal/config"
	"tradewatch/internal/logger"
	"tradewatch/internal/models"
)

// Evaluator runs the margin, position-size, daily-loss and drawdown
// checks. One-shot keys route through the state store; daily-loss keys
// embed the calendar date so the check re-arms at the day boundary.
type Evaluator struct {
	cfg   config.RiskConfig
	state alert.StateStore

	baselineDate    string
	baselineBalance float64
	peakEquity      float64
}

// NewEvaluator creates a risk evaluator.
func NewEvaluator(cfg config.RiskConfig, state alert.StateStore) *Evaluator {
	return &Evaluator{cfg: cfg, state: state}
}

// Baseline returns the current day-start date and balance, for
// persistence across restarts.
func (e *Evaluator) Baseline() (date string, balance float64, peak float64) {
	return e.baselineDate, e.baselineBalance, e.peakEquity
}

// RestoreBaseline seeds the day-start balance and equity peak, normally
// from storage after a restart. A stale date is ignored so the next
// Evaluate starts a fresh day.
func (e *Evaluator) RestoreBaseline(date string, balance, peak float64) {
	e.baselineDate = date
	e.baselineBalance = balance
	e.peakEquity = peak
}

// Evaluate runs all enabled checks against the snapshot and returns the
// alerts that fired. Specs supply contract sizes for exposure math;
// positions whose symbol has no spec are skipped by the size check.
func (e *Evaluator) Evaluate(acct models.AccountInfo, positions []models.Position, specs map[string]models.SymbolSpec, now time.Time) []models.RiskAlert {
	if !e.cfg.Enabled {
		return nil
	}

	date := now.Format("2006-01-02")
	if date != e.baselineDate {
		e.baselineDate = date
		e.baselineBalance = acct.Balance
		logger.Info("Daily loss baseline reset: %s balance %.2f", date, acct.Balance)
	}
	if acct.Equity > e.peakEquity {
		e.peakEquity = acct.Equity
	}

	var out []models.RiskAlert
	out = append(out, e.checkMarginLevel(acct, now)...)
	out = append(out, e.checkPositionSizes(acct, positions, specs, now)...)
	out = append(out, e.checkDailyLoss(acct, date, now)...)
	out = append(out, e.checkDrawdown(acct, now)...)
	return out
}

func (e *Evaluator) emit(a models.RiskAlert) []models.RiskAlert {
	has, err := e.state.Has(a.Key)
	if err != nil {
		logger.Warn("State lookup for %s failed: %v", a.Key, err)
	}
	if has {
		return nil
	}
	if err := e.state.Mark(a.Key, a.At); err != nil {
		logger.Warn("Failed to mark %s: %v", a.Key, err)
	}
	return []models.RiskAlert{a}
}

// checkMarginLevel alerts when the margin level drops under the warning
// or critical threshold. The rounded level is part of the key, so a
// further deterioration produces a fresh alert.
func (e *Evaluator) checkMarginLevel(acct models.AccountInfo, now time.Time) []models.RiskAlert {
	if acct.Margin <= 0 || acct.MarginLevel <= 0 {
		return nil
	}

	rounded := int(math.Round(acct.MarginLevel))
	switch {
	case acct.MarginLevel <= e.cfg.MarginLevelCritical:
		return e.emit(models.RiskAlert{
			Check:    models.RiskMarginLevel,
			Priority: models.PriorityCritical,
			Key:      fmt.Sprintf("margin:critical:%d", rounded),
			Message:  fmt.Sprintf("Margin level %.1f%% at or below critical threshold %.0f%%", acct.MarginLevel, e.cfg.MarginLevelCritical),
			At:       now,
		})
	case acct.MarginLevel <= e.cfg.MarginLevelWarning:
		return e.emit(models.RiskAlert{
			Check:    models.RiskMarginLevel,
			Priority: models.PriorityImportant,
			Key:      fmt.Sprintf("margin:warning:%d", rounded),
			Message:  fmt.Sprintf("Margin level %.1f%% below warning threshold %.0f%%", acct.MarginLevel, e.cfg.MarginLevelWarning),
			At:       now,
		})
	}
	return nil
}

// checkPositionSizes alerts once per ticket whose margin-adjusted
// notional exposure exceeds the configured share of the account
// balance.
func (e *Evaluator) checkPositionSizes(acct models.AccountInfo, positions []models.Position, specs map[string]models.SymbolSpec, now time.Time) []models.RiskAlert {
	if acct.Balance <= 0 {
		return nil
	}
	limit := acct.Balance * e.cfg.MaxPositionSizePct / 100

	var out []models.RiskAlert
	for _, p := range positions {
		spec, ok := specs[p.Symbol]
		if !ok || spec.ContractSize <= 0 {
			continue
		}
		leverage := acct.Leverage
		if leverage <= 0 {
			leverage = 1
		}
		exposure := p.Volume * spec.ContractSize * p.OpenPrice / float64(leverage)
		if exposure <= limit {
			continue
		}
		out = append(out, e.emit(models.RiskAlert{
			Check:    models.RiskPositionSize,
			Priority: models.PriorityImportant,
			Key:      fmt.Sprintf("possize:%d", p.Ticket),
			Message: fmt.Sprintf("Position #%d %s %s %.2f lots uses %.1f%% of balance (limit %.0f%%)",
				p.Ticket, p.Symbol, p.Side, p.Volume, exposure/acct.Balance*100, e.cfg.MaxPositionSizePct),
			At: now,
		})...)
	}
	return out
}

// checkDailyLoss compares equity against the day-start balance. The
// absolute limit takes precedence: when both limits are breached in the
// same pass only the amount alert goes out.
func (e *Evaluator) checkDailyLoss(acct models.AccountInfo, date string, now time.Time) []models.RiskAlert {
	if e.baselineBalance <= 0 {
		return nil
	}
	loss := e.baselineBalance - acct.Equity
	if loss <= 0 {
		return nil
	}

	if e.cfg.DailyLossLimitAmount > 0 && loss >= e.cfg.DailyLossLimitAmount {
		return e.emit(models.RiskAlert{
			Check:    models.RiskDailyLoss,
			Priority: models.PriorityCritical,
			Key:      fmt.Sprintf("dailyloss:amount:%s", date),
			Message:  fmt.Sprintf("Daily loss %.2f exceeds limit %.2f", loss, e.cfg.DailyLossLimitAmount),
			At:       now,
		})
	}

	lossPct := loss / e.baselineBalance * 100
	if e.cfg.DailyLossLimitPct > 0 && lossPct >= e.cfg.DailyLossLimitPct {
		return e.emit(models.RiskAlert{
			Check:    models.RiskDailyLoss,
			Priority: models.PriorityCritical,
			Key:      fmt.Sprintf("dailyloss:percent:%s", date),
			Message:  fmt.Sprintf("Daily loss %.1f%% of day-start balance exceeds limit %.1f%%", lossPct, e.cfg.DailyLossLimitPct),
			At:       now,
		})
	}
	return nil
}

// checkDrawdown measures equity against the session peak. The rounded
// percentage keys the alert, so each further whole percent of drawdown
// alerts again.
func (e *Evaluator) checkDrawdown(acct models.AccountInfo, now time.Time) []models.RiskAlert {
	if e.peakEquity <= 0 {
		return nil
	}
	ddPct := (e.peakEquity - acct.Equity) / e.peakEquity * 100
	if ddPct < e.cfg.DrawdownLimitPct {
		return nil
	}
	return e.emit(models.RiskAlert{
		Check:    models.RiskDrawdown,
		Priority: models.PriorityCritical,
		Key:      fmt.Sprintf("drawdown:%d", int(math.Round(ddPct))),
		Message:  fmt.Sprintf("Drawdown %.1f%% from equity peak %.2f exceeds limit %.1f%%", ddPct, e.peakEquity, e.cfg.DrawdownLimitPct),
		At:       now,
	})
}
