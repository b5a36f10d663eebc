package watch

import (
	"fmt"
	"strings"

	"tradewatch/internal/alert"
	"tradewatch/internal/models"
	"tradewatch/internal/volatility"
)

func positionAlert(e models.PositionEvent) alert.Alert {
	p := e.Position
	switch e.Kind {
	case models.PositionOpened:
		return alert.Alert{
			Type:     models.AlertTrade,
			Priority: models.PriorityNormal,
			Title:    fmt.Sprintf("Opened %s %s", p.Symbol, p.Side),
			Body:     fmt.Sprintf("#%d %s %s %.2f lots @ %.5f", p.Ticket, p.Symbol, p.Side, p.Volume, p.OpenPrice),
			At:       e.At,
		}
	default:
		priority := models.PriorityNormal
		outcome := "profit"
		if p.Profit < 0 {
			priority = models.PriorityImportant
			outcome = "loss"
		}
		return alert.Alert{
			Type:     models.AlertTrade,
			Priority: priority,
			Title:    fmt.Sprintf("Closed %s %s at %s %.2f", p.Symbol, p.Side, outcome, p.Profit),
			Body: fmt.Sprintf("#%d %s %s %.2f lots, open %.5f last %.5f, P/L %.2f",
				p.Ticket, p.Symbol, p.Side, p.Volume, p.OpenPrice, p.CurrentPrice, p.Profit),
			At: e.At,
		}
	}
}

func orderAlert(e models.OrderEvent) alert.Alert {
	o := e.Order
	if e.Kind == models.OrderPlaced {
		return alert.Alert{
			Type:     models.AlertOrder,
			Priority: models.PriorityNormal,
			Title:    fmt.Sprintf("Placed %s %s", o.Symbol, o.Kind),
			Body:     fmt.Sprintf("#%d %s %s %.2f lots @ %.5f", o.Ticket, o.Symbol, o.Kind, o.Volume, o.Price),
			At:       e.At,
		}
	}
	return alert.Alert{
		Type:     models.AlertOrder,
		Priority: models.PriorityNormal,
		Title:    fmt.Sprintf("Removed %s %s (%s)", o.Symbol, o.Kind, e.Reason),
		Body:     fmt.Sprintf("#%d %s %s %.2f lots @ %.5f no longer pending", o.Ticket, o.Symbol, o.Kind, o.Volume, o.Price),
		At:       e.At,
	}
}

func levelAlert(a models.LevelAlert) alert.Alert {
	body := fmt.Sprintf("%s reached %.5f (level %s at %.5f)", a.Symbol, a.CurrentPrice, a.LevelID, a.TargetPrice)
	if a.Description != "" {
		body += "\n" + a.Description
	}
	return alert.Alert{
		Type:     models.AlertPriceLevel,
		Priority: models.PriorityImportant,
		Title:    fmt.Sprintf("Price level hit: %s %s", a.Symbol, a.LevelID),
		Body:     body,
		At:       a.At,
	}
}

func groupAlert(a models.GroupAlert) alert.Alert {
	return alert.Alert{
		Type:     models.AlertPriceLevel,
		Priority: models.PriorityImportant,
		Title:    fmt.Sprintf("Level group triggered: %s %s", a.Symbol, a.Group),
		Body: fmt.Sprintf("%d of group %q fired at %.5f: %s",
			len(a.FiredLevelIDs), a.Group, a.CurrentPrice, strings.Join(a.FiredLevelIDs, ", ")),
		At: a.At,
	}
}

func proximityAlert(a models.ProximityAlert) alert.Alert {
	o := a.Order
	return alert.Alert{
		Type:     models.AlertOrder,
		Priority: models.PriorityNormal,
		Title:    fmt.Sprintf("Price nearing pending %s %s", o.Symbol, o.Kind),
		Body: fmt.Sprintf("#%d trigger %.5f, market %.5f (%.2f%% away)",
			o.Ticket, o.Price, a.CurrentPrice, a.DistancePct),
		At: a.At,
	}
}

func riskAlert(a models.RiskAlert) alert.Alert {
	return alert.Alert{
		Type:     models.AlertRisk,
		Priority: a.Priority,
		Title:    fmt.Sprintf("Risk: %s", a.Check),
		Body:     a.Message,
		At:       a.At,
	}
}

func sizingAlert(a volatility.SizingAlert) alert.Alert {
	direction := "undersized"
	priority := models.PriorityNormal
	if a.Oversized {
		direction = "oversized"
		priority = models.PriorityImportant
	}
	return alert.Alert{
		Type:     models.AlertRisk,
		Priority: priority,
		Title:    fmt.Sprintf("Position %s: %s #%d", direction, a.Symbol, a.Ticket),
		Body: fmt.Sprintf("%.2f lots vs suggested %.2f (%.1fx) for current volatility",
			a.Actual, a.Suggested, a.Ratio),
		At: a.At,
	}
}
