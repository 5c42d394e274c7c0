package cli

import (
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jcgs2503/vestbridge/internal/mandate"
)

// addMandateCommands adds the mandate management command group.
func addMandateCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "mandate",
		Short: "Mandate management commands",
	}
	cmd.AddCommand(newMandateShowCmd(app))
	cmd.AddCommand(newMandateCheckCmd(app))
	cmd.AddCommand(newMandateSignCmd(app))
	cmd.AddCommand(newMandateVerifyCmd(app))
	rootCmd.AddCommand(cmd)
}

// resolveMandatePath picks the explicit --mandate path or the named file
// under the mandates directory.
func resolveMandatePath(app *App, path, name string) string {
	if path != "" {
		return path
	}
	if name == "" {
		name = "default"
	}
	p := filepath.Join(app.Config.MandatesDir(), name+".yaml")
	if !fileExists(p) {
		if alt := filepath.Join(app.Config.MandatesDir(), name+".yml"); fileExists(alt) {
			return alt
		}
	}
	return p
}

func newMandateShowCmd(app *App) *cobra.Command {
	var path, name string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the active mandate",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			mandatePath := resolveMandatePath(app, path, name)

			m, err := mandate.Load(mandatePath, app.Logger)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(m)
			}

			hash, _ := mandate.FileHash(mandatePath)
			output.Bold("Mandate %s (v%d)", m.MandateID, m.Version)
			if m.Description != "" {
				output.Printf("  %s\n", m.Description)
			}
			output.Dim("  file: %s", mandatePath)
			output.Dim("  hash: %s", hash)
			output.Println()

			p := m.Permissions
			if p.MaxOrderSizeUSD != nil {
				output.Printf("  Max order size:     %s\n", FormatUSD(*p.MaxOrderSizeUSD))
			}
			if p.MaxDailyNotionalUSD != nil {
				output.Printf("  Max daily notional: %s\n", FormatUSD(*p.MaxDailyNotionalUSD))
			}
			if p.MaxDailyTrades != nil {
				output.Printf("  Max daily trades:   %d\n", *p.MaxDailyTrades)
			}
			if p.MaxConcentrationPct != nil {
				output.Printf("  Max concentration:  %.1f%%\n", *p.MaxConcentrationPct)
			}
			if p.MaxPortfolioPctPerOrder != nil {
				output.Printf("  Max order %% of pf:  %.1f%%\n", *p.MaxPortfolioPctPerOrder)
			}
			if len(p.AllowedSymbols) > 0 {
				output.Printf("  Allowed symbols:    %v\n", p.AllowedSymbols)
			}
			if len(p.BlockedSymbols) > 0 {
				output.Printf("  Blocked symbols:    %v\n", p.BlockedSymbols)
			}
			if len(p.AllowedSides) > 0 {
				output.Printf("  Allowed sides:      %v\n", p.AllowedSides)
			}
			if len(p.AllowedOrderTypes) > 0 {
				output.Printf("  Allowed types:      %v\n", p.AllowedOrderTypes)
			}
			if len(p.AllowedAssetTypes) > 0 {
				output.Printf("  Allowed assets:     %v\n", p.AllowedAssetTypes)
			}
			output.Printf("  Trading hours only: %v\n", p.TradingHoursOnly)
			output.Printf("  Require limits:     %v\n", p.RequireLimitOrders)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "mandate", "", "path to a mandate YAML file")
	cmd.Flags().StringVar(&name, "name", "", "mandate name in the mandates directory")
	return cmd
}

func newMandateCheckCmd(app *App) *cobra.Command {
	var path, name string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a mandate file",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			mandatePath := resolveMandatePath(app, path, name)

			m, err := mandate.Load(mandatePath, app.Logger)
			if err != nil {
				output.Error("Mandate invalid: %v", err)
				return err
			}
			overlaps, err := m.Validate()
			if err != nil {
				output.Error("Mandate invalid: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"valid":      true,
					"mandate_id": m.MandateID,
					"overlaps":   overlaps,
				})
			}
			output.Success("Mandate %s is valid.", m.MandateID)
			for _, s := range overlaps {
				output.Warning("  %s is in both allowed and blocked lists; block wins", s)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "mandate", "", "path to a mandate YAML file")
	cmd.Flags().StringVar(&name, "name", "", "mandate name in the mandates directory")
	return cmd
}

func newMandateSignCmd(app *App) *cobra.Command {
	var path, name string

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a mandate with the owner key",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			mandatePath := resolveMandatePath(app, path, name)

			priv, err := mandate.LoadOwnerKey(app.Config.OwnerKeyPath())
			if err != nil {
				return err
			}
			if err := mandate.Sign(mandatePath, priv, time.Now().UTC().Format(time.RFC3339)); err != nil {
				return err
			}
			output.Success("Mandate signed: %s", mandatePath)
			output.Dim("  file is now read-only; edit requires re-signing")
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "mandate", "", "path to a mandate YAML file")
	cmd.Flags().StringVar(&name, "name", "", "mandate name in the mandates directory")
	return cmd
}

func newMandateVerifyCmd(app *App) *cobra.Command {
	var path, name string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a mandate's owner signature",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			mandatePath := resolveMandatePath(app, path, name)

			pub, err := mandate.LoadOwnerPublicKey(app.Config.OwnerKeyPath() + ".pub")
			if err != nil {
				return err
			}
			if err := mandate.VerifySignature(mandatePath, pub); err != nil {
				output.Error("Signature verification failed: %v", err)
				return err
			}
			output.Success("Signature valid: %s", mandatePath)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "mandate", "", "path to a mandate YAML file")
	cmd.Flags().StringVar(&name, "name", "", "mandate name in the mandates directory")
	return cmd
}
