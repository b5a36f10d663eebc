// Package models defines the core domain entities: snapshots, price levels,
// detector events, and alert payloads.
package models

import (
	"errors"
	"time"
)

// Side is the direction of an open position.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderKind identifies a pending order type as reported by the terminal.
type OrderKind string

const (
	OrderBuyLimit      OrderKind = "BUY LIMIT"
	OrderSellLimit     OrderKind = "SELL LIMIT"
	OrderBuyStop       OrderKind = "BUY STOP"
	OrderSellStop      OrderKind = "SELL STOP"
	OrderBuyStopLimit  OrderKind = "BUY STOP LIMIT"
	OrderSellStopLimit OrderKind = "SELL STOP LIMIT"
)

// Position is an open position as reported by the terminal snapshot.
type Position struct {
	Ticket       int64     `json:"ticket"`
	Symbol       string    `json:"symbol"`
	Side         Side      `json:"side"`
	Volume       float64   `json:"volume"`
	OpenPrice    float64   `json:"open_price"`
	CurrentPrice float64   `json:"current_price"`
	Profit       float64   `json:"profit"`
	OpenTime     time.Time `json:"open_time"`
}

// Validate checks position field constraints.
func (p *Position) Validate() error {
	if p.Ticket == 0 {
		return errors.New("position ticket must not be zero")
	}
	if p.Symbol == "" {
		return errors.New("position symbol must not be empty")
	}
	if p.Side != SideBuy && p.Side != SideSell {
		return errors.New("position side must be BUY or SELL")
	}
	if p.Volume <= 0 {
		return errors.New("position volume must be positive")
	}
	if p.OpenPrice <= 0 {
		return errors.New("position open price must be positive")
	}
	return nil
}

// Order is a pending order as reported by the terminal snapshot.
// A zero Expiration means the order does not expire.
type Order struct {
	Ticket       int64     `json:"ticket"`
	Symbol       string    `json:"symbol"`
	Kind         OrderKind `json:"kind"`
	Volume       float64   `json:"volume"`
	Price        float64   `json:"price"`
	CurrentPrice float64   `json:"current_price"`
	SetupTime    time.Time `json:"setup_time"`
	Expiration   time.Time `json:"expiration,omitempty"`
}

// Validate checks order field constraints.
func (o *Order) Validate() error {
	if o.Ticket == 0 {
		return errors.New("order ticket must not be zero")
	}
	if o.Symbol == "" {
		return errors.New("order symbol must not be empty")
	}
	if o.Volume <= 0 {
		return errors.New("order volume must be positive")
	}
	if o.Price <= 0 {
		return errors.New("order price must be positive")
	}
	return nil
}

// Tick is the latest quote for a symbol.
type Tick struct {
	Symbol string    `json:"symbol"`
	Bid    float64   `json:"bid"`
	Ask    float64   `json:"ask"`
	Time   time.Time `json:"time"`
}

// Mid returns the bid/ask midpoint.
func (t Tick) Mid() float64 {
	return (t.Bid + t.Ask) / 2
}

// AccountInfo is an account metrics snapshot.
type AccountInfo struct {
	Balance     float64 `json:"balance"`
	Equity      float64 `json:"equity"`
	Margin      float64 `json:"margin"`
	MarginFree  float64 `json:"margin_free"`
	MarginLevel float64 `json:"margin_level"`
	Leverage    int64   `json:"leverage"`
}

// Bar is a single OHLC bar.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Deal is a closed/booked deal from account history.
type Deal struct {
	Ticket int64     `json:"ticket"`
	Symbol string    `json:"symbol"`
	Volume float64   `json:"volume"`
	Profit float64   `json:"profit"`
	Time   time.Time `json:"time"`
}

// SymbolSpec carries the per-instrument constants needed for sizing
// and margin approximation.
type SymbolSpec struct {
	Symbol       string  `json:"symbol"`
	Point        float64 `json:"point"`
	Digits       int     `json:"digits"`
	ContractSize float64 `json:"contract_size"`
	VolumeStep   float64 `json:"volume_step"`
	VolumeMin    float64 `json:"volume_min"`
	VolumeMax    float64 `json:"volume_max"`
}

// PipValue returns the value of one pip for the instrument. Five- and
// three-digit quotes treat a pip as ten points.
func (s SymbolSpec) PipValue() float64 {
	if s.Digits == 5 || s.Digits == 3 {
		return s.Point * 10
	}
	return s.Point
}
