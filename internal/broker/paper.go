package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jcgs2503/vestbridge/internal/errors"
	"github.com/jcgs2503/vestbridge/internal/models"
)

// DefaultCash is the starting cash balance for a fresh paper account.
const DefaultCash = 100_000.0

// paperPosition is the persisted form of a paper holding.
type paperPosition struct {
	Qty     float64 `json:"qty"`
	AvgCost float64 `json:"avg_cost"`
}

// pendingOrder is a limit order waiting for a favorable price.
type pendingOrder struct {
	Symbol     string    `json:"symbol"`
	Qty        float64   `json:"qty"`
	Side       string    `json:"side"`
	LimitPrice float64   `json:"limit_price"`
	Timestamp  time.Time `json:"timestamp"`
}

// paperState is the broker state persisted to disk between runs.
type paperState struct {
	Cash          float64                  `json:"cash"`
	Positions     map[string]paperPosition `json:"positions"`
	PendingOrders map[string]pendingOrder  `json:"pending_orders"`
	Prices        map[string]float64       `json:"prices"`
}

func newPaperState() paperState {
	return paperState{
		Cash:          DefaultCash,
		Positions:     make(map[string]paperPosition),
		PendingOrders: make(map[string]pendingOrder),
		Prices:        make(map[string]float64),
	}
}

// PaperBroker simulates an execution venue: it maintains positions and a
// cash balance, fills market orders at a random-walk price, parks
// unfavorable limit orders as pending, and persists everything to a state
// file so balances survive between runs.
type PaperBroker struct {
	statePath string
	rng       *rand.Rand

	mu    sync.Mutex
	state paperState
}

// PaperConfig holds configuration for the paper broker.
type PaperConfig struct {
	// DataDir is where state.json lives. Empty disables persistence.
	DataDir string
	// Seed fixes the price walk for reproducible runs. Zero seeds from
	// the clock.
	Seed int64
}

// NewPaperBroker creates a paper broker, loading prior state if present.
func NewPaperBroker(cfg PaperConfig) (*PaperBroker, error) {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	p := &PaperBroker{
		rng:   rand.New(rand.NewSource(seed)),
		state: newPaperState(),
	}
	if cfg.DataDir != "" {
		p.statePath = filepath.Join(cfg.DataDir, "state.json")
		if err := p.loadState(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Name identifies the adapter.
func (p *PaperBroker) Name() string {
	return "paper"
}

func (p *PaperBroker) loadState() error {
	data, err := os.ReadFile(p.statePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.NewStorageError("read", p.statePath, err)
	}
	state := newPaperState()
	if err := json.Unmarshal(data, &state); err != nil {
		return errors.NewStorageError("parse", p.statePath, err)
	}
	if state.Positions == nil {
		state.Positions = make(map[string]paperPosition)
	}
	if state.PendingOrders == nil {
		state.PendingOrders = make(map[string]pendingOrder)
	}
	if state.Prices == nil {
		state.Prices = make(map[string]float64)
	}
	p.state = state
	return nil
}

// saveState writes the state file. Caller holds the lock.
func (p *PaperBroker) saveState() error {
	if p.statePath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(p.statePath), 0o755); err != nil {
		return errors.NewStorageError("mkdir", filepath.Dir(p.statePath), err)
	}
	data, err := json.MarshalIndent(p.state, "", "  ")
	if err != nil {
		return errors.NewStorageError("marshal", p.statePath, err)
	}
	if err := os.WriteFile(p.statePath, data, 0o644); err != nil {
		return errors.NewStorageError("write", p.statePath, err)
	}
	return nil
}

// simulatedPrice returns the current price for a symbol: a fresh symbol
// gets a starting price in [20, 500), a known one takes a small random
// walk from its last price. Caller holds the lock.
func (p *PaperBroker) simulatedPrice(symbol string) float64 {
	last, ok := p.state.Prices[symbol]
	if !ok {
		price := round2(20.0 + p.rng.Float64()*480.0)
		p.state.Prices[symbol] = price
		return price
	}
	change := last * (p.rng.Float64()*0.04 - 0.02)
	price := round2(math.Max(0.01, last+change))
	p.state.Prices[symbol] = price
	return price
}

// GetQuote returns a simulated quote with a 0.1% spread around the price.
func (p *PaperBroker) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	symbol = strings.ToUpper(symbol)
	price := p.simulatedPrice(symbol)
	spread := price * 0.001
	quote := &models.Quote{
		Symbol:    symbol,
		Price:     price,
		Bid:       round2(price - spread),
		Ask:       round2(price + spread),
		Volume:    100_000 + p.rng.Int63n(9_900_000),
		Timestamp: time.Now().UTC(),
	}
	if err := p.saveState(); err != nil {
		return nil, err
	}
	return quote, nil
}

// GetPositions returns the simulated positions with current prices.
func (p *PaperBroker) GetPositions(ctx context.Context) ([]models.Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	positions := make([]models.Position, 0, len(p.state.Positions))
	for symbol, pos := range p.state.Positions {
		if pos.Qty <= 0 {
			continue
		}
		price := p.simulatedPrice(symbol)
		marketValue := pos.Qty * price
		positions = append(positions, models.Position{
			Symbol:        symbol,
			Qty:           pos.Qty,
			AvgCost:       pos.AvgCost,
			CurrentPrice:  price,
			MarketValue:   round2(marketValue),
			UnrealizedPnL: round2(marketValue - pos.Qty*pos.AvgCost),
			AssetType:     models.AssetEquity,
		})
	}
	return positions, nil
}

// GetAccount returns simulated account balances.
func (p *PaperBroker) GetAccount(ctx context.Context) (*models.Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	positionsValue := 0.0
	for symbol, pos := range p.state.Positions {
		if pos.Qty > 0 {
			positionsValue += pos.Qty * p.simulatedPrice(symbol)
		}
	}
	return &models.Account{
		AccountID:      "paper",
		CashBalance:    round2(p.state.Cash),
		BuyingPower:    round2(p.state.Cash),
		PortfolioValue: round2(p.state.Cash + positionsValue),
		PositionsValue: round2(positionsValue),
	}, nil
}

// PlaceOrder simulates order execution. Market orders fill at the current
// simulated price; limit orders fill at the limit price when favorable and
// go pending otherwise. Rejections (insufficient funds or shares) are
// results, not errors.
func (p *PaperBroker) PlaceOrder(ctx context.Context, order models.OrderRequest) (*models.OrderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	symbol := strings.ToUpper(order.Symbol)
	price := p.simulatedPrice(symbol)
	orderID := fmt.Sprintf("paper_%s", uuid.NewString()[:8])
	now := time.Now().UTC()

	result := &models.OrderResult{
		OrderID:   orderID,
		Symbol:    symbol,
		Qty:       order.Qty,
		Side:      order.Side,
		OrderType: order.OrderType,
		Timestamp: now,
	}

	fillPrice := price
	if order.OrderType == models.OrderTypeLimit {
		if order.LimitPrice <= 0 {
			result.Status = models.StatusRejected
			result.Message = "limit orders require a limit price"
			return result, nil
		}
		unfavorable := (order.Side == models.SideBuy && order.LimitPrice < price) ||
			(order.Side != models.SideBuy && order.LimitPrice > price)
		if unfavorable {
			p.state.PendingOrders[orderID] = pendingOrder{
				Symbol:     symbol,
				Qty:        order.Qty,
				Side:       string(order.Side),
				LimitPrice: order.LimitPrice,
				Timestamp:  now,
			}
			if err := p.saveState(); err != nil {
				return nil, err
			}
			result.Status = models.StatusPending
			result.Message = fmt.Sprintf("limit order pending (limit %.2f, market %.2f)", order.LimitPrice, price)
			return result, nil
		}
		fillPrice = order.LimitPrice
	}

	totalCost := fillPrice * order.Qty

	switch order.Side {
	case models.SideBuy:
		if totalCost > p.state.Cash {
			result.Status = models.StatusRejected
			result.Message = fmt.Sprintf("insufficient funds: need $%.2f, have $%.2f", totalCost, p.state.Cash)
			return result, nil
		}
		p.state.Cash -= totalCost
		existing, ok := p.state.Positions[symbol]
		if ok {
			newQty := existing.Qty + order.Qty
			newCost := (existing.Qty*existing.AvgCost + totalCost) / newQty
			p.state.Positions[symbol] = paperPosition{Qty: newQty, AvgCost: round4(newCost)}
		} else {
			p.state.Positions[symbol] = paperPosition{Qty: order.Qty, AvgCost: fillPrice}
		}

	default: // sell or short
		existing, ok := p.state.Positions[symbol]
		if !ok || existing.Qty < order.Qty {
			result.Status = models.StatusRejected
			result.Message = fmt.Sprintf("insufficient shares: need %g, have %g", order.Qty, existing.Qty)
			return result, nil
		}
		p.state.Cash += totalCost
		existing.Qty -= order.Qty
		if existing.Qty == 0 {
			delete(p.state.Positions, symbol)
		} else {
			p.state.Positions[symbol] = existing
		}
	}

	if err := p.saveState(); err != nil {
		return nil, err
	}
	result.Status = models.StatusFilled
	result.FilledPrice = fillPrice
	result.FilledQty = order.Qty
	result.Message = fmt.Sprintf("filled %g %s @ $%.2f", order.Qty, symbol, fillPrice)
	return result, nil
}

// CancelOrder cancels a pending limit order. Filled orders cannot be
// cancelled.
func (p *PaperBroker) CancelOrder(ctx context.Context, orderID string) (*models.CancelResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.state.PendingOrders[orderID]; ok {
		delete(p.state.PendingOrders, orderID)
		if err := p.saveState(); err != nil {
			return nil, err
		}
		return &models.CancelResult{
			OrderID: orderID,
			Status:  models.StatusCancelled,
			Message: "order cancelled",
		}, nil
	}
	return &models.CancelResult{
		OrderID: orderID,
		Status:  models.StatusRejected,
		Message: fmt.Sprintf("order %s not found or already filled", orderID),
	}, nil
}

// SetPrice pins the simulated price for a symbol.
func (p *PaperBroker) SetPrice(symbol string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Prices[strings.ToUpper(symbol)] = price
}

// Reset restores the broker to a fresh account with the given cash.
func (p *PaperBroker) Reset(cash float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cash <= 0 {
		cash = DefaultCash
	}
	p.state = newPaperState()
	p.state.Cash = cash
	return p.saveState()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// Ensure PaperBroker implements Broker interface
var _ Broker = (*PaperBroker)(nil)
