// Package mandate provides the declarative trading-permission model and the
// enforcement engine that evaluates agent actions against it.
package mandate

import (
	"strings"
	"time"

	"github.com/jcgs2503/vestbridge/internal/errors"
	"github.com/jcgs2503/vestbridge/internal/models"
)

// Permissions holds the declarative limits of a mandate. A nil limit means
// the corresponding check is unrestricted.
type Permissions struct {
	MaxOrderSizeUSD         *float64 `mapstructure:"max_order_size_usd" json:"max_order_size_usd,omitempty"`
	MaxDailyNotionalUSD     *float64 `mapstructure:"max_daily_notional_usd" json:"max_daily_notional_usd,omitempty"`
	MaxDailyTrades          *int     `mapstructure:"max_daily_trades" json:"max_daily_trades,omitempty"`
	AllowedSymbols          []string `mapstructure:"allowed_symbols" json:"allowed_symbols,omitempty"`
	BlockedSymbols          []string `mapstructure:"blocked_symbols" json:"blocked_symbols,omitempty"`
	AllowedSides            []string `mapstructure:"allowed_sides" json:"allowed_sides,omitempty"`
	AllowedOrderTypes       []string `mapstructure:"allowed_order_types" json:"allowed_order_types,omitempty"`
	AllowedAssetTypes       []string `mapstructure:"allowed_asset_types" json:"allowed_asset_types,omitempty"`
	MaxConcentrationPct     *float64 `mapstructure:"max_concentration_pct" json:"max_concentration_pct,omitempty"`
	MaxPortfolioPctPerOrder *float64 `mapstructure:"max_portfolio_pct_per_order" json:"max_portfolio_pct_per_order,omitempty"`
	TradingHoursOnly        bool     `mapstructure:"trading_hours_only" json:"trading_hours_only"`
	RequireLimitOrders      bool     `mapstructure:"require_limit_orders" json:"require_limit_orders"`
}

// Mandate is an immutable policy snapshot bound to an agent session.
// Reload constructs a new Mandate and swaps the active reference; fields
// are never mutated while evaluations may be reading them.
type Mandate struct {
	MandateID   string      `mapstructure:"mandate_id" json:"mandate_id"`
	Version     int         `mapstructure:"version" json:"version"`
	AgentID     string      `mapstructure:"agent_id" json:"agent_id,omitempty"`
	Permissions Permissions `mapstructure:"permissions" json:"permissions"`
	CreatedAt   time.Time   `mapstructure:"created_at" json:"created_at"`
	Description string      `mapstructure:"description" json:"description,omitempty"`
}

// Validate checks the mandate for malformed limits. Symbols present in both
// the allow and block lists are reported as overlaps, not errors: the block
// list always wins at evaluation time.
func (m *Mandate) Validate() ([]string, error) {
	p := m.Permissions

	if p.MaxOrderSizeUSD != nil && *p.MaxOrderSizeUSD < 0 {
		return nil, errors.NewValidationError("max_order_size_usd", *p.MaxOrderSizeUSD, "must be non-negative")
	}
	if p.MaxDailyNotionalUSD != nil && *p.MaxDailyNotionalUSD < 0 {
		return nil, errors.NewValidationError("max_daily_notional_usd", *p.MaxDailyNotionalUSD, "must be non-negative")
	}
	if p.MaxDailyTrades != nil && *p.MaxDailyTrades < 0 {
		return nil, errors.NewValidationError("max_daily_trades", *p.MaxDailyTrades, "must be non-negative")
	}
	if p.MaxConcentrationPct != nil && (*p.MaxConcentrationPct < 0 || *p.MaxConcentrationPct > 100) {
		return nil, errors.NewValidationError("max_concentration_pct", *p.MaxConcentrationPct, "must be between 0 and 100")
	}
	if p.MaxPortfolioPctPerOrder != nil && (*p.MaxPortfolioPctPerOrder < 0 || *p.MaxPortfolioPctPerOrder > 100) {
		return nil, errors.NewValidationError("max_portfolio_pct_per_order", *p.MaxPortfolioPctPerOrder, "must be between 0 and 100")
	}

	for _, s := range p.AllowedSides {
		if !validSide(s) {
			return nil, errors.NewValidationError("allowed_sides", s, "unknown order side")
		}
	}
	for _, t := range p.AllowedOrderTypes {
		if !validOrderType(t) {
			return nil, errors.NewValidationError("allowed_order_types", t, "unknown order type")
		}
	}
	for _, a := range p.AllowedAssetTypes {
		if !validAssetType(a) {
			return nil, errors.NewValidationError("allowed_asset_types", a, "unknown asset type")
		}
	}

	var overlaps []string
	blocked := make(map[string]bool, len(p.BlockedSymbols))
	for _, s := range p.BlockedSymbols {
		blocked[strings.ToUpper(s)] = true
	}
	for _, s := range p.AllowedSymbols {
		if blocked[strings.ToUpper(s)] {
			overlaps = append(overlaps, strings.ToUpper(s))
		}
	}

	return overlaps, nil
}

func validSide(s string) bool {
	for _, v := range models.ValidSides {
		if strings.EqualFold(s, string(v)) {
			return true
		}
	}
	return false
}

func validOrderType(s string) bool {
	for _, v := range models.ValidOrderTypes {
		if strings.EqualFold(s, string(v)) {
			return true
		}
	}
	return false
}

func validAssetType(s string) bool {
	for _, v := range models.ValidAssetTypes {
		if strings.EqualFold(s, string(v)) {
			return true
		}
	}
	return false
}

// containsFold reports whether set contains v, case-insensitively.
func containsFold(set []string, v string) bool {
	for _, s := range set {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
