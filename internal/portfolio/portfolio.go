// Package portfolio maintains the gateway's own view of per-agent holdings
// and daily trading activity. It is the shared mutable state the mandate
// engine reads, so every decision and its corresponding reservation are
// applied as one atomic unit per agent.
package portfolio

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jcgs2503/vestbridge/internal/mandate"
	"github.com/jcgs2503/vestbridge/internal/models"
	"github.com/jcgs2503/vestbridge/internal/store"
)

const dayFormat = "2006-01-02"

// Store owns the per-agent state. Agents are independent: evaluations for
// different agents proceed in parallel, while evaluations for the same
// agent are serialized by that agent's lock.
type Store struct {
	mu      sync.Mutex
	agents  map[string]*AgentState
	persist store.DataStore // nil for memory-only operation
}

// NewStore creates a portfolio store. persist may be nil.
func NewStore(persist store.DataStore) *Store {
	return &Store{
		agents:  make(map[string]*AgentState),
		persist: persist,
	}
}

// Agent returns the state for an agent, creating and loading it from the
// persistence layer on first access.
func (s *Store) Agent(ctx context.Context, agentID string) (*AgentState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a, ok := s.agents[agentID]; ok {
		return a, nil
	}

	a := &AgentState{
		agentID:      agentID,
		persist:      s.persist,
		positions:    make(map[string]models.Position),
		reservations: make(map[string]*Reservation),
		day:          time.Now().UTC().Format(dayFormat),
	}

	if s.persist != nil {
		positions, err := s.persist.GetPositions(ctx, agentID)
		if err != nil {
			return nil, err
		}
		for _, pos := range positions {
			a.positions[strings.ToUpper(pos.Symbol)] = pos
		}
		counter, err := s.persist.GetDailyCounter(ctx, agentID, a.day)
		if err != nil {
			return nil, err
		}
		a.dailyNotional = counter.Notional
		a.dailyTrades = counter.Trades
	}

	s.agents[agentID] = a
	return a, nil
}

// Reservation holds an allowed order's notional against the caps until the
// broker confirms or rejects it.
type Reservation struct {
	ID       string
	Symbol   string
	Side     models.Side
	Qty      float64
	Notional float64
}

// MarketView carries the market inputs a snapshot needs: the agent's cash
// balance, last known prices, the evaluation clock, and the price of the
// order's symbol.
type MarketView struct {
	Cash   float64
	Prices map[string]float64
	Now    time.Time
	Price  float64
}

// AgentState is the mutable per-agent portfolio and counter state.
type AgentState struct {
	agentID string
	persist store.DataStore

	mu            sync.Mutex
	positions     map[string]models.Position // key: upper symbol
	reservations  map[string]*Reservation
	day           string // UTC day of the counters
	dailyNotional float64
	dailyTrades   int
}

// EvaluateAndReserve builds a snapshot of the agent's state, runs the given
// evaluation against it, and — if allowed — reserves the order's notional,
// all under the agent's lock. Two concurrent orders from the same agent can
// therefore never both pass a cap their combination violates.
func (a *AgentState) EvaluateAndReserve(
	order models.OrderRequest,
	view MarketView,
	eval func(mandate.Snapshot) mandate.Decision,
) (mandate.Decision, *Reservation) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.rollDay(view.Now)
	snap := a.snapshot(view)
	decision := eval(snap)
	if !decision.Allowed {
		return decision, nil
	}

	res := &Reservation{
		ID:       uuid.NewString(),
		Symbol:   strings.ToUpper(order.Symbol),
		Side:     order.Side,
		Qty:      order.Qty,
		Notional: order.Notional(view.Price),
	}
	a.reservations[res.ID] = res
	return decision, res
}

// snapshot assembles the engine's view: committed positions with pending
// reservations folded in, and counters that include reserved amounts so
// subsequent concurrent evaluations see in-flight orders. Caller holds the
// lock.
func (a *AgentState) snapshot(view MarketView) mandate.Snapshot {
	values := make(map[string]float64, len(a.positions))
	assetTypes := make(map[string]models.AssetType, len(a.positions))
	for symbol, pos := range a.positions {
		price := view.Prices[symbol]
		if price <= 0 {
			price = pos.AvgCost
		}
		values[symbol] = pos.Qty * price
		assetTypes[symbol] = pos.AssetType
	}
	for _, res := range a.reservations {
		signed := res.Notional
		if res.Side != models.SideBuy {
			signed = -signed
		}
		values[res.Symbol] += signed
	}

	var positions []models.Position
	var total float64
	for symbol, value := range values {
		if value == 0 {
			continue
		}
		pos := a.positions[symbol]
		positions = append(positions, models.Position{
			Symbol:      symbol,
			Qty:         pos.Qty,
			AvgCost:     pos.AvgCost,
			MarketValue: value,
			AssetType:   assetTypes[symbol],
		})
		total += value
	}

	reservedNotional := 0.0
	reservedTrades := 0
	for _, res := range a.reservations {
		reservedNotional += res.Notional
		reservedTrades++
	}

	return mandate.Snapshot{
		Positions:       positions,
		PortfolioValue:  view.Cash + total,
		DailyNotional:   a.dailyNotional + reservedNotional,
		DailyTradeCount: a.dailyTrades + reservedTrades,
		CurrentTime:     view.Now,
		CurrentPrice:    view.Price,
	}
}

// Commit converts a reservation into a confirmed fill: the position is
// updated, the daily counter incremented, and both persisted. The counter
// is never decremented within a day.
func (a *AgentState) Commit(ctx context.Context, res *Reservation, fill store.Fill) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.reservations, res.ID)
	a.rollDay(fill.Timestamp)
	a.dailyNotional += fill.Notional
	a.dailyTrades++

	symbol := strings.ToUpper(fill.Symbol)
	closed := a.applyFill(symbol, fill)

	if a.persist == nil {
		return nil
	}
	if fill.ID == "" {
		fill.ID = uuid.NewString()
	}
	if err := a.persist.LogFill(ctx, &fill); err != nil {
		return err
	}
	if err := a.persist.AddDailyNotional(ctx, a.agentID, a.day, fill.Notional); err != nil {
		return err
	}
	if closed {
		return a.persist.DeletePosition(ctx, a.agentID, symbol)
	}
	return a.persist.SavePosition(ctx, a.agentID, a.positions[symbol])
}

// applyFill updates or creates a position. Returns true when the position
// closed. Caller holds the lock.
func (a *AgentState) applyFill(symbol string, fill store.Fill) bool {
	pos, exists := a.positions[symbol]
	if !exists {
		pos = models.Position{Symbol: symbol, AssetType: models.AssetEquity}
	}

	if fill.Side == models.SideBuy {
		totalCost := pos.AvgCost*pos.Qty + fill.Price*fill.Qty
		pos.Qty += fill.Qty
		if pos.Qty > 0 {
			pos.AvgCost = totalCost / pos.Qty
		}
	} else {
		pos.Qty -= fill.Qty
		if pos.Qty == 0 {
			delete(a.positions, symbol)
			return true
		}
		// Position flipped to short
		if pos.Qty < 0 {
			pos.AvgCost = fill.Price
		}
	}

	pos.CurrentPrice = fill.Price
	pos.MarketValue = fill.Price * pos.Qty
	a.positions[symbol] = pos
	return false
}

// Release drops a reservation after a rejected or failed broker call. The
// daily counter is untouched: only confirmed executions count.
func (a *AgentState) Release(res *Reservation) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.reservations, res.ID)
}

// Positions returns a copy of the agent's committed positions with market
// values refreshed from the given prices.
func (a *AgentState) Positions(prices map[string]float64) []models.Position {
	a.mu.Lock()
	defer a.mu.Unlock()

	positions := make([]models.Position, 0, len(a.positions))
	for symbol, pos := range a.positions {
		price := prices[symbol]
		if price <= 0 {
			price = pos.AvgCost
		}
		pos.CurrentPrice = price
		pos.MarketValue = pos.Qty * price
		pos.UnrealizedPnL = (price - pos.AvgCost) * pos.Qty
		positions = append(positions, pos)
	}
	return positions
}

// DailyStats returns today's confirmed notional and trade count.
func (a *AgentState) DailyStats(now time.Time) (float64, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rollDay(now)
	return a.dailyNotional, a.dailyTrades
}

// SetDailyStats sets daily counters (for testing or state recovery).
func (a *AgentState) SetDailyStats(day string, notional float64, trades int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.day = day
	a.dailyNotional = notional
	a.dailyTrades = trades
}

// rollDay resets the counters at the UTC day boundary. Caller holds the
// lock.
func (a *AgentState) rollDay(t time.Time) {
	day := t.UTC().Format(dayFormat)
	if day != a.day {
		a.day = day
		a.dailyNotional = 0
		a.dailyTrades = 0
	}
}
