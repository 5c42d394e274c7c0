package broker

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/jcgs2503/vestbridge/internal/models"
)

func newTestBroker(t *testing.T) *PaperBroker {
	t.Helper()
	p, err := NewPaperBroker(PaperConfig{Seed: 42})
	if err != nil {
		t.Fatalf("NewPaperBroker: %v", err)
	}
	return p
}

// limitBuy fills at exactly the limit price whenever the limit is above the
// simulated market price, which makes assertions deterministic despite the
// random walk.
func limitBuy(symbol string, qty, limit float64) models.OrderRequest {
	return models.OrderRequest{
		Symbol:     symbol,
		Qty:        qty,
		Side:       models.SideBuy,
		OrderType:  models.OrderTypeLimit,
		LimitPrice: limit,
		AssetType:  models.AssetEquity,
	}
}

func limitSell(symbol string, qty, limit float64) models.OrderRequest {
	o := limitBuy(symbol, qty, limit)
	o.Side = models.SideSell
	return o
}

func TestGetQuote_SpreadAroundPrice(t *testing.T) {
	p := newTestBroker(t)
	p.SetPrice("AAPL", 200)

	quote, err := p.GetQuote(context.Background(), "aapl")
	if err != nil {
		t.Fatalf("GetQuote: %v", err)
	}
	if quote.Symbol != "AAPL" {
		t.Errorf("symbol = %q, want uppercased", quote.Symbol)
	}
	// One walk step from 200 stays within ±2%.
	if quote.Price < 196 || quote.Price > 204 {
		t.Errorf("price = %v, want within 2%% of 200", quote.Price)
	}
	if quote.Bid >= quote.Price || quote.Ask <= quote.Price {
		t.Errorf("spread inverted: bid=%v price=%v ask=%v", quote.Bid, quote.Price, quote.Ask)
	}
}

func TestPlaceOrder_BuyFillsAndDebitsCash(t *testing.T) {
	p := newTestBroker(t)
	ctx := context.Background()
	p.SetPrice("AAPL", 150)

	result, err := p.PlaceOrder(ctx, limitBuy("AAPL", 10, 160))
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if result.Status != models.StatusFilled {
		t.Fatalf("status = %q (%s)", result.Status, result.Message)
	}
	if result.FilledPrice != 160 || result.FilledQty != 10 {
		t.Errorf("fill = %v @ %v, want 10 @ 160", result.FilledQty, result.FilledPrice)
	}
	if !strings.HasPrefix(result.OrderID, "paper_") {
		t.Errorf("order ID = %q", result.OrderID)
	}

	account, err := p.GetAccount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if account.CashBalance != DefaultCash-1600 {
		t.Errorf("cash = %v, want %v", account.CashBalance, DefaultCash-1600)
	}

	positions, err := p.GetPositions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(positions) != 1 || positions[0].Qty != 10 || positions[0].AvgCost != 160 {
		t.Errorf("positions = %+v", positions)
	}
}

func TestPlaceOrder_BuyAveragesCostAcrossFills(t *testing.T) {
	p := newTestBroker(t)
	ctx := context.Background()
	p.SetPrice("AAPL", 90)

	if _, err := p.PlaceOrder(ctx, limitBuy("AAPL", 10, 100)); err != nil {
		t.Fatal(err)
	}
	p.SetPrice("AAPL", 190)
	if _, err := p.PlaceOrder(ctx, limitBuy("AAPL", 10, 200)); err != nil {
		t.Fatal(err)
	}

	positions, _ := p.GetPositions(ctx)
	if positions[0].Qty != 20 || positions[0].AvgCost != 150 {
		t.Errorf("position = %+v, want 20 @ 150", positions[0])
	}
}

func TestPlaceOrder_SellCreditsAndCloses(t *testing.T) {
	p := newTestBroker(t)
	ctx := context.Background()
	p.SetPrice("AAPL", 110)

	if _, err := p.PlaceOrder(ctx, limitBuy("AAPL", 10, 120)); err != nil {
		t.Fatal(err)
	}
	p.SetPrice("AAPL", 150)
	result, err := p.PlaceOrder(ctx, limitSell("AAPL", 10, 130))
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != models.StatusFilled || result.FilledPrice != 130 {
		t.Fatalf("sell = %+v", result)
	}

	positions, _ := p.GetPositions(ctx)
	if len(positions) != 0 {
		t.Errorf("position should be closed: %+v", positions)
	}

	account, _ := p.GetAccount(ctx)
	want := DefaultCash - 1200 + 1300
	if math.Abs(account.CashBalance-float64(want)) > 0.01 {
		t.Errorf("cash = %v, want %v", account.CashBalance, want)
	}
}

func TestPlaceOrder_InsufficientFundsRejectedNotError(t *testing.T) {
	p := newTestBroker(t)
	p.SetPrice("AAPL", 150)

	result, err := p.PlaceOrder(context.Background(), limitBuy("AAPL", 10_000, 160))
	if err != nil {
		t.Fatalf("rejection must be a result, not an error: %v", err)
	}
	if result.Status != models.StatusRejected {
		t.Fatalf("status = %q", result.Status)
	}
	if !strings.Contains(result.Message, "insufficient funds") {
		t.Errorf("message = %q", result.Message)
	}

	account, _ := p.GetAccount(context.Background())
	if account.CashBalance != DefaultCash {
		t.Errorf("rejected order modified cash: %v", account.CashBalance)
	}
}

func TestPlaceOrder_InsufficientSharesRejected(t *testing.T) {
	p := newTestBroker(t)
	p.SetPrice("AAPL", 150)

	result, err := p.PlaceOrder(context.Background(), limitSell("AAPL", 5, 140))
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != models.StatusRejected {
		t.Fatalf("status = %q", result.Status)
	}
	if !strings.Contains(result.Message, "insufficient shares") {
		t.Errorf("message = %q", result.Message)
	}
}

func TestPlaceOrder_LimitWithoutPriceRejected(t *testing.T) {
	p := newTestBroker(t)

	order := limitBuy("AAPL", 10, 0)
	result, err := p.PlaceOrder(context.Background(), order)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != models.StatusRejected {
		t.Fatalf("status = %q", result.Status)
	}
}

func TestPlaceOrder_UnfavorableLimitGoesPendingAndCancels(t *testing.T) {
	p := newTestBroker(t)
	ctx := context.Background()
	p.SetPrice("AAPL", 200)

	// A buy limit far below market cannot fill.
	result, err := p.PlaceOrder(ctx, limitBuy("AAPL", 10, 100))
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != models.StatusPending {
		t.Fatalf("status = %q (%s)", result.Status, result.Message)
	}

	account, _ := p.GetAccount(ctx)
	if account.CashBalance != DefaultCash {
		t.Errorf("pending order reserved cash: %v", account.CashBalance)
	}

	cancel, err := p.CancelOrder(ctx, result.OrderID)
	if err != nil {
		t.Fatal(err)
	}
	if cancel.Status != models.StatusCancelled {
		t.Fatalf("cancel = %+v", cancel)
	}

	// A second cancel finds nothing.
	cancel, err = p.CancelOrder(ctx, result.OrderID)
	if err != nil {
		t.Fatal(err)
	}
	if cancel.Status != models.StatusRejected {
		t.Errorf("repeat cancel = %+v", cancel)
	}
}

func TestCancelOrder_UnknownOrderRejected(t *testing.T) {
	p := newTestBroker(t)

	cancel, err := p.CancelOrder(context.Background(), "paper_missing")
	if err != nil {
		t.Fatal(err)
	}
	if cancel.Status != models.StatusRejected {
		t.Errorf("cancel = %+v", cancel)
	}
}

func TestStatePersistence_SurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	p1, err := NewPaperBroker(PaperConfig{DataDir: dir, Seed: 7})
	if err != nil {
		t.Fatal(err)
	}
	p1.SetPrice("AAPL", 150)
	result, err := p1.PlaceOrder(ctx, limitBuy("AAPL", 10, 160))
	if err != nil || result.Status != models.StatusFilled {
		t.Fatalf("fill failed: %+v %v", result, err)
	}

	p2, err := NewPaperBroker(PaperConfig{DataDir: dir, Seed: 7})
	if err != nil {
		t.Fatal(err)
	}
	account, err := p2.GetAccount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if account.CashBalance != DefaultCash-1600 {
		t.Errorf("cash after restart = %v, want %v", account.CashBalance, DefaultCash-1600)
	}
	positions, _ := p2.GetPositions(ctx)
	if len(positions) != 1 || positions[0].Qty != 10 {
		t.Errorf("positions after restart = %+v", positions)
	}
}

func TestReset_RestoresFreshAccount(t *testing.T) {
	p := newTestBroker(t)
	ctx := context.Background()
	p.SetPrice("AAPL", 150)

	if _, err := p.PlaceOrder(ctx, limitBuy("AAPL", 10, 160)); err != nil {
		t.Fatal(err)
	}
	if err := p.Reset(50_000); err != nil {
		t.Fatal(err)
	}

	account, _ := p.GetAccount(ctx)
	if account.CashBalance != 50_000 {
		t.Errorf("cash = %v, want 50000", account.CashBalance)
	}
	positions, _ := p.GetPositions(ctx)
	if len(positions) != 0 {
		t.Errorf("positions survived reset: %+v", positions)
	}
}

func TestRegistry_PaperRegistered(t *testing.T) {
	b, err := New("paper", t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if b.Name() != "paper" {
		t.Errorf("name = %q", b.Name())
	}

	if _, err := New("alpaca", ""); err == nil {
		t.Error("unknown broker must error")
	}

	names := Names()
	found := false
	for _, n := range names {
		if n == "paper" {
			found = true
		}
	}
	if !found {
		t.Errorf("Names() = %v", names)
	}
}
