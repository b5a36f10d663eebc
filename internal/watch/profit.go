package watch

import (
	"fmt"
	"time"

	"tradewatch/internal/alert"
	"tradewatch/internal/config"
	"tradewatch/internal/models"
)

// profitSuggestion is a take-profit prompt for one position.
type profitSuggestion struct {
	Position  models.Position
	ProfitPct float64
	At        time.Time
}

// Key returns the one-shot suppression key for the suggestion.
func (s profitSuggestion) Key() string {
	return fmt.Sprintf("profit:%d", s.Position.Ticket)
}

// profitSuggestions returns positions worth banking some profit on. A
// position qualifies once its profit clears the floor and either moves
// the account by the percentage threshold or doubles the floor.
func profitSuggestions(cfg config.ProfitConfig, positions []models.Position, balance float64, now time.Time) []profitSuggestion {
	if balance <= 0 {
		return nil
	}
	var out []profitSuggestion
	for _, p := range positions {
		if p.Profit < cfg.MinProfit {
			continue
		}
		pct := p.Profit / balance * 100
		if pct < cfg.PctThreshold && p.Profit < 2*cfg.MinProfit {
			continue
		}
		out = append(out, profitSuggestion{Position: p, ProfitPct: pct, At: now})
	}
	return out
}

func profitAlert(s profitSuggestion) alert.Alert {
	p := s.Position
	return alert.Alert{
		Type:     models.AlertTrade,
		Priority: models.PriorityNormal,
		Title:    fmt.Sprintf("Consider taking profit: %s #%d", p.Symbol, p.Ticket),
		Body: fmt.Sprintf("%s %s %.2f lots up %.2f (%.2f%% of balance). Closing half locks in %.2f.",
			p.Symbol, p.Side, p.Volume, p.Profit, s.ProfitPct, p.Profit/2),
		At: s.At,
	}
}
