// Package volatility classifies market volatility from ATR and derives
// position-size suggestions.
package volatility

import (
	"fmt"
	"math"
	"time"

	talib "github.com/markcheno/go-talib"

	"tradewatch/internal/alert"
	"tradewatch/internal/config"
	"tradewatch/internal/logger"
	"tradewatch/internal/models"
)

// Level buckets the measured volatility.
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelVeryHigh Level = "very_high"
)

// cacheTTL is how long a measurement stays valid before bars are
// fetched again.
const cacheTTL = 5 * time.Minute

// Ratio bounds beyond which an open position is flagged against the
// suggested volume.
const (
	oversizedRatio  = 1.3
	undersizedRatio = 0.7
)

// Measurement is a volatility reading for one symbol.
type Measurement struct {
	Symbol string
	ATR    float64
	ATRPct float64
	Level  Level
	At     time.Time
}

// SizingAlert flags a position whose volume strays too far from the
// volatility-adjusted suggestion.
type SizingAlert struct {
	Ticket    int64
	Symbol    string
	Actual    float64
	Suggested float64
	Ratio     float64
	Oversized bool
	At        time.Time
}

// Key returns the one-shot suppression key for the sizing alert.
func (a SizingAlert) Key() string {
	side := "under"
	if a.Oversized {
		side = "over"
	}
	return fmt.Sprintf("volsize:%d:%s", a.Ticket, side)
}

// Analyzer measures volatility per symbol with a short-lived cache.
type Analyzer struct {
	cfg   config.VolatilityConfig
	state alert.StateStore
	now   func() time.Time
	cache map[string]Measurement
}

// NewAnalyzer creates an analyzer. The clock is injectable for tests;
// pass nil for wall time.
func NewAnalyzer(cfg config.VolatilityConfig, state alert.StateStore, now func() time.Time) *Analyzer {
	if now == nil {
		now = time.Now
	}
	return &Analyzer{
		cfg:   cfg,
		state: state,
		now:   now,
		cache: make(map[string]Measurement),
	}
}

// NeedsBars reports whether the cached measurement for the symbol has
// expired, so the caller can skip the bar fetch when it has not.
func (a *Analyzer) NeedsBars(symbol string) bool {
	m, ok := a.cache[symbol]
	return !ok || a.now().Sub(m.At) >= cacheTTL
}

// Measure computes the ATR reading for the symbol from the given bars
// at the given price, refreshing the cache.
func (a *Analyzer) Measure(symbol string, bars []models.Bar, price float64) (Measurement, error) {
	if !a.NeedsBars(symbol) {
		return a.cache[symbol], nil
	}
	if len(bars) <= a.cfg.Periods {
		return Measurement{}, fmt.Errorf("need more than %d bars for %s, got %d", a.cfg.Periods, symbol, len(bars))
	}
	if price <= 0 {
		return Measurement{}, fmt.Errorf("invalid price %f for %s", price, symbol)
	}

	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	closes := make([]float64, len(bars))
	for i, b := range bars {
		highs[i] = b.High
		lows[i] = b.Low
		closes[i] = b.Close
	}

	atr := talib.Atr(highs, lows, closes, a.cfg.Periods)
	m := Measurement{
		Symbol: symbol,
		ATR:    atr[len(atr)-1],
		At:     a.now(),
	}
	m.ATRPct = m.ATR / price * 100
	m.Level = classify(m.ATRPct)

	a.cache[symbol] = m
	logger.Debug("Volatility %s: ATR %.5f (%.2f%%, %s)", symbol, m.ATR, m.ATRPct, m.Level)
	return m, nil
}

// classify buckets the ATR as a percentage of price.
func classify(atrPct float64) Level {
	switch {
	case atrPct < 0.5:
		return LevelLow
	case atrPct < 1.5:
		return LevelMedium
	case atrPct < 3.0:
		return LevelHigh
	default:
		return LevelVeryHigh
	}
}

// adjustment scales the base position size for the volatility level.
// Calmer markets allow a larger size, turbulent ones shrink it.
func adjustment(l Level) float64 {
	switch l {
	case LevelLow:
		return 1.2
	case LevelMedium:
		return 1.0
	case LevelHigh:
		return 0.7
	default:
		return 0.5
	}
}

// SuggestVolume derives a lot size from the configured risk per trade
// and stop distance, scaled by the volatility level and snapped to the
// instrument's volume constraints. Returns 0 when the spec cannot
// support the math.
func (a *Analyzer) SuggestVolume(equity float64, spec models.SymbolSpec, m Measurement) float64 {
	pipValuePerLot := spec.PipValue() * spec.ContractSize
	if equity <= 0 || pipValuePerLot <= 0 || a.cfg.StopLossPips <= 0 {
		return 0
	}

	riskAmount := equity * a.cfg.RiskPerTradePct / 100
	volume := riskAmount / (a.cfg.StopLossPips * pipValuePerLot)
	volume *= adjustment(m.Level)

	if spec.VolumeStep > 0 {
		volume = math.Floor(volume/spec.VolumeStep) * spec.VolumeStep
	}
	if spec.VolumeMin > 0 && volume < spec.VolumeMin {
		volume = spec.VolumeMin
	}
	if spec.VolumeMax > 0 && volume > spec.VolumeMax {
		volume = spec.VolumeMax
	}
	return volume
}

// CheckPositions flags open positions whose actual volume is out of
// proportion with the symbol's suggested volume. One alert per ticket
// and direction.
func (a *Analyzer) CheckPositions(positions []models.Position, suggested map[string]float64) []SizingAlert {
	now := a.now()
	var out []SizingAlert
	for _, p := range positions {
		want, ok := suggested[p.Symbol]
		if !ok || want <= 0 {
			continue
		}
		ratio := p.Volume / want
		if ratio <= oversizedRatio && ratio >= undersizedRatio {
			continue
		}

		sa := SizingAlert{
			Ticket:    p.Ticket,
			Symbol:    p.Symbol,
			Actual:    p.Volume,
			Suggested: want,
			Ratio:     ratio,
			Oversized: ratio > oversizedRatio,
			At:        now,
		}
		has, err := a.state.Has(sa.Key())
		if err != nil {
			logger.Warn("State lookup for %s failed: %v", sa.Key(), err)
		}
		if has {
			continue
		}
		if err := a.state.Mark(sa.Key(), now); err != nil {
			logger.Warn("Failed to mark %s: %v", sa.Key(), err)
		}
		out = append(out, sa)
	}
	return out
}
