package watch

import (
	"fmt"
	"strings"
	"time"

	"tradewatch/internal/alert"
	"tradewatch/internal/models"
)

// buildSummary renders the daily trading recap from the day's booked
// deals and the current account state.
func buildSummary(deals []models.Deal, acct models.AccountInfo, openPositions int, now time.Time) alert.Alert {
	var wins, losses int
	var net float64
	for _, d := range deals {
		net += d.Profit
		switch {
		case d.Profit > 0:
			wins++
		case d.Profit < 0:
			losses++
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Deals: %d (%d wins, %d losses)\n", len(deals), wins, losses)
	if wins+losses > 0 {
		fmt.Fprintf(&sb, "Win rate: %.0f%%\n", float64(wins)/float64(wins+losses)*100)
	}
	fmt.Fprintf(&sb, "Net P/L: %.2f\n", net)
	fmt.Fprintf(&sb, "Balance: %.2f, equity: %.2f\n", acct.Balance, acct.Equity)
	fmt.Fprintf(&sb, "Open positions: %d", openPositions)

	return alert.Alert{
		Type:     models.AlertSummary,
		Priority: models.PriorityNormal,
		Title:    fmt.Sprintf("Daily summary %s", now.Format("2006-01-02")),
		Body:     sb.String(),
		At:       now,
	}
}
