package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jcgs2503/vestbridge/internal/audit"
	"github.com/jcgs2503/vestbridge/internal/errors"
)

// addAuditCommands adds the audit trail command group.
func addAuditCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Audit trail commands",
	}
	cmd.AddCommand(newAuditVerifyCmd(app))
	cmd.AddCommand(newAuditShowCmd(app))
	cmd.AddCommand(newAuditExportCmd(app))
	rootCmd.AddCommand(cmd)
}

// newAuditVerifyCmd verifies the hash chain offline. A broken chain exits
// non-zero with the index and timestamp of the first bad entry.
func newAuditVerifyCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Verify audit log hash chain integrity",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			path := app.Config.AuditPath()

			if !fileExists(path) {
				output.Println("No audit log found.")
				return nil
			}

			result, err := audit.Verify(path)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				if err := output.JSON(result); err != nil {
					return err
				}
			} else if result.Valid {
				output.Success("Audit log verified: %d entries, chain intact.", result.EntriesChecked)
			} else {
				output.Error("VERIFICATION FAILED at entry %d", result.FirstBrokenIndex)
				output.Printf("  event:     %s\n", result.BrokenEventID)
				output.Printf("  timestamp: %s\n", result.BrokenTimestamp.Format(time.RFC3339))
				output.Printf("  error:     %s\n", result.Message)
			}

			if !result.Valid {
				return errors.NewChainIntegrityError(result.FirstBrokenIndex, result.BrokenEventID, result.Message)
			}
			return nil
		},
	}
}

func newAuditShowCmd(app *App) *cobra.Command {
	var lastN int

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print recent audit entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			path := app.Config.AuditPath()
			if !fileExists(path) {
				output.Println("No audit log found.")
				return nil
			}

			log, err := audit.Open(path)
			if err != nil {
				return err
			}
			defer log.Close()

			entries, err := log.ReadEntries(lastN)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(entries)
			}

			for _, e := range entries {
				check := ""
				if e.MandateCheck != "" {
					check = fmt.Sprintf(" [%s]", e.MandateCheck)
					if e.MandateCheck == audit.CheckFail {
						check = output.Red(check)
					} else {
						check = output.Green(check)
					}
				}
				output.Printf("  %s  %-8s  %-14s%s\n",
					e.Timestamp.Format("2006-01-02 15:04:05"), e.AgentID, e.Action, check)
				if e.MandateReason != "" {
					output.Dim("    reason: %s", e.MandateReason)
				}
				if e.Result != nil && e.Result.Message != "" {
					output.Dim("    result: %s", e.Result.Message)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&lastN, "last", 20, "number of entries to show")
	return cmd
}

func newAuditExportCmd(app *App) *cobra.Command {
	var format string
	var outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the audit log to JSON or CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			path := app.Config.AuditPath()
			if !fileExists(path) {
				output.Println("No audit log found.")
				return nil
			}

			log, err := audit.Open(path)
			if err != nil {
				return err
			}
			defer log.Close()

			entries, err := log.ReadEntries(0)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			switch format {
			case "json":
				for _, e := range entries {
					data, err := json.Marshal(e)
					if err != nil {
						return err
					}
					fmt.Fprintln(w, string(data))
				}
			case "csv":
				cw := csv.NewWriter(w)
				header := []string{"event_id", "timestamp", "agent_id", "action", "symbol", "qty",
					"side", "mandate_check", "mandate_reason", "prev_hash", "entry_hash"}
				if err := cw.Write(header); err != nil {
					return err
				}
				for _, e := range entries {
					row := []string{
						e.EventID, e.Timestamp.Format(time.RFC3339), e.AgentID, e.Action,
						e.Params.Symbol, strconv.FormatFloat(e.Params.Qty, 'f', -1, 64),
						e.Params.Side, e.MandateCheck, e.MandateReason, e.PrevHash, e.EntryHash,
					}
					if err := cw.Write(row); err != nil {
						return err
					}
				}
				cw.Flush()
				if err := cw.Error(); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown export format %q (json, csv)", format)
			}

			if outPath != "" {
				output.Success("Exported %d entries to %s", len(entries), outPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "export format (json, csv)")
	cmd.Flags().StringVar(&outPath, "output", "", "output file (default: stdout)")
	return cmd
}
