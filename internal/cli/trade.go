package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jcgs2503/vestbridge/internal/models"
	"github.com/jcgs2503/vestbridge/internal/trading"
)

// addTradingCommands adds order placement and account commands.
func addTradingCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newTradeCmd(app))
	rootCmd.AddCommand(newCancelCmd(app))
	rootCmd.AddCommand(newQuoteCmd(app))
	rootCmd.AddCommand(newPositionsCmd(app))
	rootCmd.AddCommand(newAccountCmd(app))
}

func newTradeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trade",
		Short: "Place orders through mandate enforcement",
	}
	cmd.AddCommand(newOrderCmd(app, models.SideBuy))
	cmd.AddCommand(newOrderCmd(app, models.SideSell))
	return cmd
}

func newOrderCmd(app *App, side models.Side) *cobra.Command {
	var limitPrice float64
	var orderType string
	var assetType string

	cmd := &cobra.Command{
		Use:   fmt.Sprintf("%s <symbol> <qty>", side),
		Short: fmt.Sprintf("Place a %s order", side),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.ParseFloat(args[1], 64)
			if err != nil || qty <= 0 {
				return fmt.Errorf("invalid quantity %q", args[1])
			}

			if err := app.initPipeline(cmd); err != nil {
				return err
			}
			defer app.Close()

			ot := models.OrderType(strings.ToLower(orderType))
			if limitPrice > 0 && orderType == string(models.OrderTypeMarket) {
				ot = models.OrderTypeLimit
			}

			resp, err := app.Dispatcher.Handle(cmd.Context(), models.ActionRequest{
				AgentID: app.Agent.AgentID,
				Action:  models.ActionPlaceOrder,
				Order: models.OrderRequest{
					Symbol:     strings.ToUpper(args[0]),
					Qty:        qty,
					Side:       side,
					OrderType:  ot,
					LimitPrice: limitPrice,
					AssetType:  models.AssetType(strings.ToLower(assetType)),
				},
				Timestamp: time.Now().UTC(),
			})
			if err != nil {
				return err
			}

			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(resp)
			}
			return renderOrderResponse(output, resp)
		},
	}

	cmd.Flags().Float64Var(&limitPrice, "limit", 0, "limit price (implies a limit order)")
	cmd.Flags().StringVar(&orderType, "type", string(models.OrderTypeMarket), "order type (market, limit, stop)")
	cmd.Flags().StringVar(&assetType, "asset", string(models.AssetEquity), "asset type (equity, option, future, crypto)")
	return cmd
}

func renderOrderResponse(output *Output, resp *trading.Response) error {
	if !resp.Decision.Allowed {
		output.Error("BLOCKED by mandate: %s", resp.Decision.Reason)
		output.Dim("  check: %s  event: %s", resp.Decision.Check, resp.Entry.EventID)
		return nil
	}
	if resp.Order == nil {
		output.Success("Allowed")
		return nil
	}

	switch resp.Order.Status {
	case models.StatusFilled, models.StatusPartiallyFilled:
		output.Success("%s", resp.Order.Message)
	case models.StatusPending:
		output.Warning("%s", resp.Order.Message)
	default:
		output.Error("%s", resp.Order.Message)
	}
	output.Dim("  order: %s  event: %s", resp.Order.OrderID, resp.Entry.EventID)
	return nil
}

func newCancelCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <order_id>",
		Short: "Cancel a pending order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.initPipeline(cmd); err != nil {
				return err
			}
			defer app.Close()

			resp, err := app.Dispatcher.Handle(cmd.Context(), models.ActionRequest{
				AgentID: app.Agent.AgentID,
				Action:  models.ActionCancelOrder,
				OrderID: args[0],
			})
			if err != nil {
				return err
			}

			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(resp)
			}
			if resp.Cancel.Status == models.StatusCancelled {
				output.Success("%s", resp.Cancel.Message)
			} else {
				output.Error("%s", resp.Cancel.Message)
			}
			return nil
		},
	}
}

func newQuoteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "quote <symbol>",
		Short: "Get a quote for a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.initPipeline(cmd); err != nil {
				return err
			}
			defer app.Close()

			resp, err := app.Dispatcher.Handle(cmd.Context(), models.ActionRequest{
				AgentID: app.Agent.AgentID,
				Action:  models.ActionGetQuote,
				Symbol:  args[0],
			})
			if err != nil {
				return err
			}

			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(resp.Quote)
			}
			q := resp.Quote
			output.Bold("%s", q.Symbol)
			output.Printf("  Price:  %s\n", FormatUSD(q.Price))
			output.Printf("  Bid:    %s\n", FormatUSD(q.Bid))
			output.Printf("  Ask:    %s\n", FormatUSD(q.Ask))
			output.Printf("  Volume: %d\n", q.Volume)
			return nil
		},
	}
}

func newPositionsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "positions",
		Short: "Show current positions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.initPipeline(cmd); err != nil {
				return err
			}
			defer app.Close()

			resp, err := app.Dispatcher.Handle(cmd.Context(), models.ActionRequest{
				AgentID: app.Agent.AgentID,
				Action:  models.ActionGetPositions,
			})
			if err != nil {
				return err
			}

			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(resp.Positions)
			}
			if len(resp.Positions) == 0 {
				output.Println("No open positions.")
				return nil
			}

			table := NewTable(output, "SYMBOL", "QTY", "AVG COST", "PRICE", "VALUE", "P&L")
			for _, p := range resp.Positions {
				pnl := FormatUSD(p.UnrealizedPnL)
				table.AddRow(
					p.Symbol,
					strconv.FormatFloat(p.Qty, 'f', -1, 64),
					FormatUSD(p.AvgCost),
					FormatUSD(p.CurrentPrice),
					FormatUSD(p.MarketValue),
					output.ColoredString(output.PnLColor(p.UnrealizedPnL), pnl),
				)
			}
			table.Render()
			return nil
		},
	}
}

func newAccountCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "account",
		Short: "Show account balances",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.initPipeline(cmd); err != nil {
				return err
			}
			defer app.Close()

			resp, err := app.Dispatcher.Handle(cmd.Context(), models.ActionRequest{
				AgentID: app.Agent.AgentID,
				Action:  models.ActionGetAccount,
			})
			if err != nil {
				return err
			}

			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(resp.Account)
			}
			a := resp.Account
			output.Bold("Account %s", a.AccountID)
			output.Printf("  Cash:            %s\n", FormatUSD(a.CashBalance))
			output.Printf("  Buying power:    %s\n", FormatUSD(a.BuyingPower))
			output.Printf("  Positions value: %s\n", FormatUSD(a.PositionsValue))
			output.Printf("  Portfolio value: %s\n", FormatUSD(a.PortfolioValue))
			return nil
		},
	}
}
