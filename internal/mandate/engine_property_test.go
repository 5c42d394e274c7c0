package mandate

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property: an order whose notional exceeds max_order_size_usd is always
// denied, and every denial carries a non-empty machine-readable reason.
func TestProperty_OversizedOrdersAlwaysDenied(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("notional above cap is denied with a reason", prop.ForAll(
		func(qty float64, price float64, cap float64) bool {
			e := testEngine(Permissions{MaxOrderSizeUSD: f64(cap)}, true)
			d := e.Evaluate(marketBuy("AAPL", qty), Snapshot{
				PortfolioValue: 1e9,
				CurrentPrice:   price,
			})
			notional := qty * price
			if notional > cap {
				return !d.Allowed && d.Reason != "" && d.Check == "order_size"
			}
			return d.Allowed
		},
		gen.Float64Range(1, 1000),
		gen.Float64Range(1, 1000),
		gen.Float64Range(100, 100000),
	))

	properties.TestingRun(t)
}

// Property: the daily notional check never admits an order that would push
// the running total above the cap, for any prior total.
func TestProperty_DailyCapNeverExceeded(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("allowed orders keep the daily total under the cap", prop.ForAll(
		func(prior float64, qty float64, cap float64) bool {
			e := testEngine(Permissions{MaxDailyNotionalUSD: f64(cap)}, true)
			price := 10.0
			d := e.Evaluate(marketBuy("AAPL", qty), Snapshot{
				PortfolioValue: 1e9,
				DailyNotional:  prior,
				CurrentPrice:   price,
			})
			if d.Allowed {
				return prior+qty*price <= cap
			}
			return true
		},
		gen.Float64Range(0, 50000),
		gen.Float64Range(1, 5000),
		gen.Float64Range(1000, 60000),
	))

	properties.TestingRun(t)
}
