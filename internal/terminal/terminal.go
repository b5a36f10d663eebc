// Package terminal reads trading state from the local terminal bridge.
package terminal

import (
	"context"
	"errors"
	"time"

	"tradewatch/internal/models"
)

// ErrNotConnected is returned when the bridge is up but has no session
// with the trading terminal.
var ErrNotConnected = errors.New("terminal not connected")

// Source provides read-only snapshots of the trading account. The watch
// loop depends on this interface so tests can feed canned snapshots.
type Source interface {
	Positions(ctx context.Context) ([]models.Position, error)
	Orders(ctx context.Context) ([]models.Order, error)
	Tick(ctx context.Context, symbol string) (models.Tick, error)
	AccountInfo(ctx context.Context) (models.AccountInfo, error)
	Bars(ctx context.Context, symbol, timeframe string, count int) ([]models.Bar, error)
	Deals(ctx context.Context, from, to time.Time) ([]models.Deal, error)
	SymbolSpec(ctx context.Context, symbol string) (models.SymbolSpec, error)
}
