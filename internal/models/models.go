// Package models provides domain models for the trading gateway.
package models

import (
	"time"
)

// Side represents the side of an order.
type Side string

const (
	SideBuy   Side = "buy"
	SideSell  Side = "sell"
	SideShort Side = "short"
)

// OrderType represents the type of an order.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
	OrderTypeStop   OrderType = "stop"
)

// AssetType represents the asset class of an instrument.
type AssetType string

const (
	AssetEquity AssetType = "equity"
	AssetOption AssetType = "option"
	AssetFuture AssetType = "future"
	AssetCrypto AssetType = "crypto"
)

// OrderStatus represents the lifecycle status of an order.
type OrderStatus string

const (
	StatusPending         OrderStatus = "pending"
	StatusFilled          OrderStatus = "filled"
	StatusPartiallyFilled OrderStatus = "partially_filled"
	StatusCancelled       OrderStatus = "cancelled"
	StatusRejected        OrderStatus = "rejected"
)

// ValidSides lists the recognized order sides.
var ValidSides = []Side{SideBuy, SideSell, SideShort}

// ValidOrderTypes lists the recognized order types.
var ValidOrderTypes = []OrderType{OrderTypeMarket, OrderTypeLimit, OrderTypeStop}

// ValidAssetTypes lists the recognized asset classes.
var ValidAssetTypes = []AssetType{AssetEquity, AssetOption, AssetFuture, AssetCrypto}

// Quote represents a market quote for a symbol.
type Quote struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Bid       float64   `json:"bid,omitempty"`
	Ask       float64   `json:"ask,omitempty"`
	Volume    int64     `json:"volume,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Position represents a holding in a single symbol.
type Position struct {
	Symbol        string    `json:"symbol"`
	Qty           float64   `json:"qty"`
	AvgCost       float64   `json:"avg_cost"`
	CurrentPrice  float64   `json:"current_price"`
	MarketValue   float64   `json:"market_value"`
	UnrealizedPnL float64   `json:"unrealized_pnl"`
	AssetType     AssetType `json:"asset_type"`
}

// Account represents account balances and portfolio value.
type Account struct {
	AccountID      string  `json:"account_id"`
	CashBalance    float64 `json:"cash_balance"`
	BuyingPower    float64 `json:"buying_power"`
	PortfolioValue float64 `json:"portfolio_value"`
	PositionsValue float64 `json:"positions_value"`
}
