package mandate

import (
	"fmt"
	"strings"
	"time"

	"github.com/jcgs2503/vestbridge/internal/models"
)

// Snapshot carries the state an evaluation reads. It is built under the
// owning agent's lock and is not shared with other evaluations.
type Snapshot struct {
	Positions       []models.Position
	PortfolioValue  float64
	DailyNotional   float64
	DailyTradeCount int
	CurrentTime     time.Time
	CurrentPrice    float64
}

// Decision is the outcome of evaluating a proposed order against a mandate.
// A denial is a normal outcome, not an error.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Check   string `json:"check,omitempty"`  // name of the first failing check
	Reason  string `json:"reason,omitempty"` // empty on allow
}

func deny(check, format string, args ...interface{}) Decision {
	return Decision{Allowed: false, Check: check, Reason: fmt.Sprintf(format, args...)}
}

// Engine evaluates proposed orders against the active mandate. IsMarketOpen
// is injected so trading-hours enforcement does not couple the engine to a
// particular market calendar.
type Engine struct {
	holder       *Holder
	isMarketOpen func(time.Time) bool
}

// NewEngine creates an enforcement engine bound to a mandate holder.
func NewEngine(holder *Holder, isMarketOpen func(time.Time) bool) *Engine {
	return &Engine{
		holder:       holder,
		isMarketOpen: isMarketOpen,
	}
}

// Active returns the mandate the engine is currently enforcing.
func (e *Engine) Active() *Mandate {
	return e.holder.Active()
}

// Evaluate runs the mandate checks against a proposed order in a fixed,
// deterministic order. The first failing check wins and short-circuits the
// rest. The caller must apply the corresponding state reservation under the
// same per-agent critical section that produced the snapshot.
func (e *Engine) Evaluate(order models.OrderRequest, snap Snapshot) Decision {
	p := e.holder.Active().Permissions
	symbol := strings.ToUpper(order.Symbol)
	notional := order.Notional(snap.CurrentPrice)

	// Check 1: asset type
	if len(p.AllowedAssetTypes) > 0 && !containsFold(p.AllowedAssetTypes, string(order.AssetType)) {
		return deny("asset_type", "asset type not permitted: %s (allowed: %s)",
			order.AssetType, strings.Join(p.AllowedAssetTypes, ", "))
	}

	// Check 2: order side
	if len(p.AllowedSides) > 0 && !containsFold(p.AllowedSides, string(order.Side)) {
		return deny("side", "side not permitted: %s (allowed: %s)",
			order.Side, strings.Join(p.AllowedSides, ", "))
	}

	// Check 3: order type
	if len(p.AllowedOrderTypes) > 0 && !containsFold(p.AllowedOrderTypes, string(order.OrderType)) {
		return deny("order_type", "order type not permitted: %s (allowed: %s)",
			order.OrderType, strings.Join(p.AllowedOrderTypes, ", "))
	}

	// Check 4: blocked symbols, before the allowlist so a blocked symbol is
	// denied even when it also appears in allowed_symbols
	if containsFold(p.BlockedSymbols, symbol) {
		return deny("symbol_blocklist", "symbol blocked: %s", symbol)
	}

	// Check 5: allowed symbols; empty allowlist permits all symbols
	if len(p.AllowedSymbols) > 0 && !containsFold(p.AllowedSymbols, symbol) {
		return deny("symbol_allowlist", "symbol not permitted: %s", symbol)
	}

	// Check 6: trading hours
	if p.TradingHoursOnly && !e.isMarketOpen(snap.CurrentTime) {
		return deny("trading_hours", "outside trading hours (market hours: 09:30-16:00 ET, weekdays)")
	}

	// Check 7: limit orders required
	if p.RequireLimitOrders && order.OrderType != models.OrderTypeLimit {
		return deny("require_limit_orders", "only limit orders permitted, got %s", order.OrderType)
	}

	// Check 8: max order size
	if p.MaxOrderSizeUSD != nil && notional > *p.MaxOrderSizeUSD {
		return deny("order_size", "exceeds max order size: $%.2f > $%.2f",
			notional, *p.MaxOrderSizeUSD)
	}

	// Check 9: per-order portfolio percentage
	if p.MaxPortfolioPctPerOrder != nil {
		if snap.PortfolioValue <= 0 {
			return deny("portfolio_percent", "cannot evaluate portfolio percent: portfolio value is zero")
		}
		orderPct := notional / snap.PortfolioValue * 100
		if orderPct > *p.MaxPortfolioPctPerOrder {
			return deny("portfolio_percent", "order is %.1f%% of portfolio, max %.1f%%",
				orderPct, *p.MaxPortfolioPctPerOrder)
		}
	}

	// Check 10: daily trade count
	if p.MaxDailyTrades != nil && snap.DailyTradeCount >= *p.MaxDailyTrades {
		return deny("daily_trade_count", "exceeds daily trade limit: %d trades already placed, max %d",
			snap.DailyTradeCount, *p.MaxDailyTrades)
	}

	// Check 11: daily notional cap
	if p.MaxDailyNotionalUSD != nil && snap.DailyNotional+notional > *p.MaxDailyNotionalUSD {
		return deny("daily_notional", "exceeds daily notional cap: $%.2f + $%.2f > $%.2f",
			snap.DailyNotional, notional, *p.MaxDailyNotionalUSD)
	}

	// Check 12: concentration
	if p.MaxConcentrationPct != nil {
		d := e.checkConcentration(symbol, order.Side, notional, snap, *p.MaxConcentrationPct)
		if !d.Allowed {
			return d
		}
	}

	return Decision{Allowed: true}
}

// checkConcentration projects the post-order weight of a symbol in the
// portfolio. Order notional is signed by side: buys add to the position,
// sells reduce it.
func (e *Engine) checkConcentration(symbol string, side models.Side, notional float64, snap Snapshot, maxPct float64) Decision {
	signed := notional
	if side != models.SideBuy {
		signed = -notional
	}

	var existing float64
	for _, pos := range snap.Positions {
		if strings.EqualFold(pos.Symbol, symbol) {
			existing = pos.MarketValue
			break
		}
	}

	projectedValue := existing + signed
	if projectedValue < 0 {
		projectedValue = 0
	}
	projectedTotal := snap.PortfolioValue + signed
	if projectedTotal <= 0 {
		return deny("concentration", "cannot evaluate concentration: portfolio value is zero")
	}

	pct := projectedValue / projectedTotal * 100
	if pct > maxPct {
		return deny("concentration", "exceeds concentration limit: %s would be %.1f%% of portfolio, max %.1f%%",
			symbol, pct, maxPct)
	}
	return Decision{Allowed: true}
}
