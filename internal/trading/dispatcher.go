// Package trading contains the action pipeline: the dispatcher receives a
// unified agent action, runs mandate enforcement, records the outcome in
// the audit log, and forwards allowed actions to the broker adapter.
package trading

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jcgs2503/vestbridge/internal/audit"
	"github.com/jcgs2503/vestbridge/internal/broker"
	"github.com/jcgs2503/vestbridge/internal/errors"
	"github.com/jcgs2503/vestbridge/internal/logging"
	"github.com/jcgs2503/vestbridge/internal/mandate"
	"github.com/jcgs2503/vestbridge/internal/models"
	"github.com/jcgs2503/vestbridge/internal/portfolio"
	"github.com/jcgs2503/vestbridge/internal/resilience"
	"github.com/jcgs2503/vestbridge/internal/store"
	"github.com/jcgs2503/vestbridge/pkg/utils"
)

// Response is the outcome of a dispatched action. Decision and Entry are
// always set for order actions; the remaining fields depend on the action
// type.
type Response struct {
	Decision  mandate.Decision     `json:"decision"`
	Entry     *audit.Entry         `json:"audit_entry,omitempty"`
	Order     *models.OrderResult  `json:"order,omitempty"`
	Cancel    *models.CancelResult `json:"cancel,omitempty"`
	Quote     *models.Quote        `json:"quote,omitempty"`
	Positions []models.Position    `json:"positions,omitempty"`
	Account   *models.Account      `json:"account,omitempty"`
}

// Config wires a dispatcher.
type Config struct {
	Engine      *mandate.Engine
	AuditLog    *audit.Log
	Broker      broker.Broker
	Portfolio   *portfolio.Store
	MandateHash string
	Logger      zerolog.Logger

	// BrokerTimeout bounds each broker call. Zero means 10s.
	BrokerTimeout time.Duration
	// Retry tunes audit append retries on storage failure.
	Retry utils.RetryConfig
}

// Dispatcher orchestrates evaluate, audit, forward. The sequencing is
// fixed: the decision entry is committed to the audit log before any
// broker call, and a broker failure after an allow produces a follow-up
// entry, never a retraction.
type Dispatcher struct {
	engine      *mandate.Engine
	auditLog    *audit.Log
	broker      broker.Broker
	portfolio   *portfolio.Store
	breaker     *resilience.CircuitBreaker
	mandateHash string
	logger      zerolog.Logger
	timeout     time.Duration
	retry       utils.RetryConfig
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(cfg Config) *Dispatcher {
	timeout := cfg.BrokerTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	retry := cfg.Retry
	if retry.MaxAttempts == 0 {
		retry = utils.DefaultRetryConfig()
	}
	return &Dispatcher{
		engine:      cfg.Engine,
		auditLog:    cfg.AuditLog,
		broker:      cfg.Broker,
		portfolio:   cfg.Portfolio,
		breaker:     resilience.NewCircuitBreaker(cfg.Broker.Name(), resilience.DefaultCircuitBreakerConfig()),
		mandateHash: cfg.MandateHash,
		logger:      cfg.Logger,
		timeout:     timeout,
		retry:       retry,
	}
}

// Handle dispatches one agent action.
func (d *Dispatcher) Handle(ctx context.Context, req models.ActionRequest) (*Response, error) {
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now().UTC()
	}

	switch req.Action {
	case models.ActionPlaceOrder:
		return d.placeOrder(ctx, req)
	case models.ActionCancelOrder:
		return d.cancelOrder(ctx, req)
	case models.ActionGetQuote:
		return d.getQuote(ctx, req)
	case models.ActionGetPositions:
		return d.getPositions(ctx, req)
	case models.ActionGetAccount:
		return d.getAccount(ctx, req)
	default:
		return nil, errors.NewValidationError("action", string(req.Action), "unknown action type")
	}
}

// placeOrder runs the full pipeline: per-agent atomic evaluate-and-reserve,
// unconditional audit append, then the broker call for allowed orders.
func (d *Dispatcher) placeOrder(ctx context.Context, req models.ActionRequest) (*Response, error) {
	order := req.Order
	order.Symbol = strings.ToUpper(order.Symbol)
	if order.AssetType == "" {
		order.AssetType = models.AssetEquity
	}

	agent, err := d.portfolio.Agent(ctx, req.AgentID)
	if err != nil {
		return nil, err
	}

	quote, err := d.brokerQuote(ctx, order.Symbol)
	if err != nil {
		return nil, err
	}
	account, err := d.brokerAccount(ctx)
	if err != nil {
		return nil, err
	}

	view := portfolio.MarketView{
		Cash:   account.CashBalance,
		Prices: map[string]float64{order.Symbol: quote.Price},
		Now:    req.Timestamp,
		Price:  quote.Price,
	}
	decision, reservation := agent.EvaluateAndReserve(order, view, func(snap mandate.Snapshot) mandate.Decision {
		return d.engine.Evaluate(order, snap)
	})

	logging.LogDecision(d.logger, req.AgentID, order.Symbol, string(req.Action), decision.Allowed, decision.Reason)

	entry, err := d.appendDecision(ctx, req, order, decision)
	if err != nil {
		if reservation != nil {
			agent.Release(reservation)
		}
		return nil, err
	}

	resp := &Response{Decision: decision, Entry: entry}
	if !decision.Allowed {
		return resp, nil
	}

	result, brokerErr := d.submit(ctx, order)
	if brokerErr != nil {
		agent.Release(reservation)
		if _, err := d.appendFollowUp(req, order, &audit.Result{
			Status: string(models.StatusRejected),
			Error:  brokerErr.Error(),
		}); err != nil {
			d.logger.Error().Err(err).Msg("Failed to record broker failure")
		}
		return resp, errors.NewBrokerError(d.broker.Name(), "place_order", "order submission failed", brokerErr)
	}

	resp.Order = result
	logging.LogOrder(d.logger, result.OrderID, order.Symbol, string(order.Side), string(result.Status))

	if result.Status == models.StatusFilled || result.Status == models.StatusPartiallyFilled {
		fill := fillFromResult(req.AgentID, entry.EventID, order, result)
		if err := agent.Commit(ctx, reservation, fill); err != nil {
			d.logger.Error().Err(err).Str("order_id", result.OrderID).Msg("Failed to persist fill")
		}
	} else {
		agent.Release(reservation)
	}

	if _, err := d.appendFollowUp(req, order, resultFields(result)); err != nil {
		d.logger.Error().Err(err).Msg("Failed to record execution result")
	}
	return resp, nil
}

func (d *Dispatcher) cancelOrder(ctx context.Context, req models.ActionRequest) (*Response, error) {
	result, err := resilience.Do(ctx, d.breaker, func() (*models.CancelResult, error) {
		cctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		return d.broker.CancelOrder(cctx, req.OrderID)
	})
	if err != nil {
		return nil, errors.NewBrokerError(d.broker.Name(), "cancel_order", "cancellation failed", err)
	}

	entry, err := d.append(audit.Entry{
		AgentID: req.AgentID,
		Action:  string(models.ActionCancelOrder),
		Params:  audit.Params{OrderID: req.OrderID},
		Result: &audit.Result{
			Status:  string(result.Status),
			OrderID: result.OrderID,
			Message: result.Message,
		},
	})
	if err != nil {
		return nil, err
	}
	return &Response{Decision: mandate.Decision{Allowed: true}, Entry: entry, Cancel: result}, nil
}

func (d *Dispatcher) getQuote(ctx context.Context, req models.ActionRequest) (*Response, error) {
	symbol := strings.ToUpper(req.Symbol)
	quote, err := d.brokerQuote(ctx, symbol)
	if err != nil {
		return nil, err
	}
	entry, err := d.append(audit.Entry{
		AgentID: req.AgentID,
		Action:  string(models.ActionGetQuote),
		Params:  audit.Params{Symbol: symbol},
		Result:  &audit.Result{Message: fmt.Sprintf("%s @ $%.2f", quote.Symbol, quote.Price)},
	})
	if err != nil {
		return nil, err
	}
	return &Response{Decision: mandate.Decision{Allowed: true}, Entry: entry, Quote: quote}, nil
}

func (d *Dispatcher) getPositions(ctx context.Context, req models.ActionRequest) (*Response, error) {
	positions, err := resilience.Do(ctx, d.breaker, func() ([]models.Position, error) {
		cctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		return d.broker.GetPositions(cctx)
	})
	if err != nil {
		return nil, errors.NewBrokerError(d.broker.Name(), "get_positions", "position fetch failed", err)
	}
	entry, err := d.append(audit.Entry{
		AgentID: req.AgentID,
		Action:  string(models.ActionGetPositions),
		Result:  &audit.Result{Message: fmt.Sprintf("%d positions", len(positions))},
	})
	if err != nil {
		return nil, err
	}
	return &Response{Decision: mandate.Decision{Allowed: true}, Entry: entry, Positions: positions}, nil
}

func (d *Dispatcher) getAccount(ctx context.Context, req models.ActionRequest) (*Response, error) {
	account, err := d.brokerAccount(ctx)
	if err != nil {
		return nil, err
	}
	entry, err := d.append(audit.Entry{
		AgentID: req.AgentID,
		Action:  string(models.ActionGetAccount),
		Result:  &audit.Result{Message: fmt.Sprintf("portfolio $%.2f, cash $%.2f", account.PortfolioValue, account.CashBalance)},
	})
	if err != nil {
		return nil, err
	}
	return &Response{Decision: mandate.Decision{Allowed: true}, Entry: entry, Account: account}, nil
}

// appendDecision writes the decision entry. A storage failure here is
// fail-closed: the action is treated as not yet decided and the caller
// gets the error before any broker involvement.
func (d *Dispatcher) appendDecision(ctx context.Context, req models.ActionRequest, order models.OrderRequest, decision mandate.Decision) (*audit.Entry, error) {
	check := audit.CheckPass
	if !decision.Allowed {
		check = audit.CheckFail
	}
	entry := audit.Entry{
		AgentID:       req.AgentID,
		Action:        string(models.ActionPlaceOrder),
		Params:        orderParams(order),
		MandateID:     d.engine.Active().MandateID,
		MandateHash:   d.mandateHash,
		MandateCheck:  check,
		MandateReason: decision.Reason,
	}
	return utils.RetryWithResult(ctx, d.retry, func() (*audit.Entry, error) {
		return d.auditLog.Append(entry)
	})
}

// appendFollowUp records a broker outcome after the decision entry. The
// original decision stands; this entry only adds the execution result.
func (d *Dispatcher) appendFollowUp(req models.ActionRequest, order models.OrderRequest, result *audit.Result) (*audit.Entry, error) {
	return d.auditLog.Append(audit.Entry{
		AgentID:      req.AgentID,
		Action:       string(models.ActionPlaceOrder),
		Params:       orderParams(order),
		MandateID:    d.engine.Active().MandateID,
		MandateHash:  d.mandateHash,
		MandateCheck: audit.CheckPass,
		Result:       result,
	})
}

func (d *Dispatcher) append(entry audit.Entry) (*audit.Entry, error) {
	return utils.RetryWithResult(context.Background(), d.retry, func() (*audit.Entry, error) {
		return d.auditLog.Append(entry)
	})
}

// submit forwards an allowed order to the broker, bounded by the call
// timeout and the circuit breaker.
func (d *Dispatcher) submit(ctx context.Context, order models.OrderRequest) (*models.OrderResult, error) {
	return resilience.Do(ctx, d.breaker, func() (*models.OrderResult, error) {
		cctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		return d.broker.PlaceOrder(cctx, order)
	})
}

func (d *Dispatcher) brokerQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	quote, err := resilience.Do(ctx, d.breaker, func() (*models.Quote, error) {
		cctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		return d.broker.GetQuote(cctx, symbol)
	})
	if err != nil {
		return nil, errors.NewBrokerError(d.broker.Name(), "get_quote", "quote fetch failed", err)
	}
	return quote, nil
}

func (d *Dispatcher) brokerAccount(ctx context.Context) (*models.Account, error) {
	account, err := resilience.Do(ctx, d.breaker, func() (*models.Account, error) {
		cctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		return d.broker.GetAccount(cctx)
	})
	if err != nil {
		return nil, errors.NewBrokerError(d.broker.Name(), "get_account", "account fetch failed", err)
	}
	return account, nil
}

// BreakerStats exposes broker circuit health for status output.
func (d *Dispatcher) BreakerStats() resilience.CircuitBreakerStats {
	return d.breaker.Stats()
}

func orderParams(order models.OrderRequest) audit.Params {
	return audit.Params{
		Symbol:     order.Symbol,
		Qty:        order.Qty,
		Side:       string(order.Side),
		OrderType:  string(order.OrderType),
		LimitPrice: order.LimitPrice,
		AssetType:  string(order.AssetType),
	}
}

func resultFields(result *models.OrderResult) *audit.Result {
	return &audit.Result{
		Status:      string(result.Status),
		OrderID:     result.OrderID,
		FilledPrice: result.FilledPrice,
		FilledQty:   result.FilledQty,
		Message:     result.Message,
	}
}

func fillFromResult(agentID, eventID string, order models.OrderRequest, result *models.OrderResult) store.Fill {
	return store.Fill{
		AgentID:   agentID,
		EventID:   eventID,
		OrderID:   result.OrderID,
		Symbol:    order.Symbol,
		Side:      order.Side,
		Qty:       result.FilledQty,
		Price:     result.FilledPrice,
		Notional:  result.FilledPrice * result.FilledQty,
		Timestamp: result.Timestamp,
	}
}
