// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/jcgs2503/vestbridge/internal/models"
)

// Fill records a confirmed order execution.
type Fill struct {
	ID        string
	AgentID   string
	EventID   string
	OrderID   string
	Symbol    string
	Side      models.Side
	Qty       float64
	Price     float64
	Notional  float64
	Timestamp time.Time
}

// FillFilter represents filters for querying fills.
type FillFilter struct {
	AgentID   string
	Symbol    string
	StartDate time.Time
	EndDate   time.Time
	Limit     int
}

// DailyCounter is the persisted per-agent, per-UTC-day accumulator of
// executed order notional. It only ever grows within a day.
type DailyCounter struct {
	AgentID  string
	Day      string // UTC day, formatted 2006-01-02
	Notional float64
	Trades   int
}

// DataStore defines the interface for gateway state persistence.
type DataStore interface {
	// Positions
	SavePosition(ctx context.Context, agentID string, pos models.Position) error
	DeletePosition(ctx context.Context, agentID, symbol string) error
	GetPositions(ctx context.Context, agentID string) ([]models.Position, error)

	// Fills
	LogFill(ctx context.Context, fill *Fill) error
	GetFills(ctx context.Context, filter FillFilter) ([]Fill, error)

	// Daily notional counters
	AddDailyNotional(ctx context.Context, agentID, day string, notional float64) error
	GetDailyCounter(ctx context.Context, agentID, day string) (*DailyCounter, error)

	// Lifecycle
	Close() error
}
