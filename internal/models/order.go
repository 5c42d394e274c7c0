package models

import "time"

// OrderRequest represents a proposed order before mandate evaluation.
type OrderRequest struct {
	Symbol     string    `json:"symbol"`
	Qty        float64   `json:"qty"`
	Side       Side      `json:"side"`
	OrderType  OrderType `json:"order_type"`
	LimitPrice float64   `json:"limit_price,omitempty"`
	AssetType  AssetType `json:"asset_type"`
}

// Notional returns the USD value of the order at the given market price.
// Limit orders are valued at their limit price.
func (o OrderRequest) Notional(marketPrice float64) float64 {
	price := marketPrice
	if o.OrderType == OrderTypeLimit && o.LimitPrice > 0 {
		price = o.LimitPrice
	}
	return price * o.Qty
}

// OrderResult represents the outcome of an order submitted to a broker.
type OrderResult struct {
	OrderID     string      `json:"order_id"`
	Symbol      string      `json:"symbol"`
	Qty         float64     `json:"qty"`
	Side        Side        `json:"side"`
	OrderType   OrderType   `json:"order_type"`
	Status      OrderStatus `json:"status"`
	FilledPrice float64     `json:"filled_price,omitempty"`
	FilledQty   float64     `json:"filled_qty,omitempty"`
	Message     string      `json:"message,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}

// CancelResult represents the outcome of an order cancellation.
type CancelResult struct {
	OrderID string      `json:"order_id"`
	Status  OrderStatus `json:"status"`
	Message string      `json:"message,omitempty"`
}

// ActionType identifies the kind of action an agent is requesting.
type ActionType string

const (
	ActionPlaceOrder   ActionType = "place_order"
	ActionCancelOrder  ActionType = "cancel_order"
	ActionGetQuote     ActionType = "get_quote"
	ActionGetPositions ActionType = "get_positions"
	ActionGetAccount   ActionType = "get_account"
)

// ActionRequest is a unified agent action submitted to the dispatcher.
// It is treated as immutable once submitted for evaluation.
type ActionRequest struct {
	AgentID   string       `json:"agent_id"`
	Action    ActionType   `json:"action"`
	Order     OrderRequest `json:"order,omitempty"`
	OrderID   string       `json:"order_id,omitempty"` // for cancel_order
	Symbol    string       `json:"symbol,omitempty"`   // for get_quote
	Timestamp time.Time    `json:"timestamp"`
}
