package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jcgs2503/vestbridge/internal/agents"
	"github.com/jcgs2503/vestbridge/internal/audit"
	"github.com/jcgs2503/vestbridge/internal/broker"
	"github.com/jcgs2503/vestbridge/internal/config"
	"github.com/jcgs2503/vestbridge/internal/logging"
	"github.com/jcgs2503/vestbridge/internal/mandate"
	"github.com/jcgs2503/vestbridge/internal/portfolio"
	"github.com/jcgs2503/vestbridge/internal/store"
	"github.com/jcgs2503/vestbridge/internal/trading"
	"github.com/jcgs2503/vestbridge/pkg/utils"
)

// Version information
const (
	Version = "0.1.0"
)

// App holds the application dependencies. The trading pipeline is wired
// lazily so read-only commands (audit verify, mandate validate) work
// without touching broker or database state.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	Broker      broker.Broker
	Store       store.DataStore
	Audit       *audit.Log
	Holder      *mandate.Holder
	Engine      *mandate.Engine
	Portfolio   *portfolio.Store
	Dispatcher  *trading.Dispatcher
	Agent       *agents.Metadata
	MandatePath string
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "vest",
		Short: "VestBridge - mandate-enforced trading gateway for agents",
		Long: `VestBridge is a trading gateway that sits between autonomous agents and
broker accounts. Every action an agent requests is checked against a
signed mandate, recorded in a hash-chained audit log, and only then
forwarded to the configured broker.

Use 'vest init' to set up keys, a default mandate, and a default agent.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("dir", "", "data directory (default: ~/.vest)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().String("agent", "", "agent ID (default: first registered agent)")

	rootCmd.AddCommand(newInitCmd(app))
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	addTradingCommands(rootCmd, app)
	addAuditCommands(rootCmd, app)
	addMandateCommands(rootCmd, app)
	addAgentCommands(rootCmd, app)

	return rootCmd
}

// initPipeline wires the full dispatch pipeline: broker, state store,
// mandate engine, audit log. Idempotent; commands call it on demand.
func (a *App) initPipeline(cmd *cobra.Command) error {
	if a.Dispatcher != nil {
		return nil
	}

	agentID, _ := cmd.Flags().GetString("agent")
	var meta *agents.Metadata
	var err error
	if agentID != "" {
		meta, err = agents.Load(agentID, a.Config.AgentsDir())
	} else if a.Config.DefaultAgent != "" {
		meta, err = agents.Load(a.Config.DefaultAgent, a.Config.AgentsDir())
	} else {
		meta, err = agents.GetOrCreateDefault(a.Config.AgentsDir())
	}
	if err != nil {
		return err
	}
	a.Agent = meta

	b, err := broker.New(a.Config.Broker, a.Config.PaperDir())
	if err != nil {
		return err
	}
	a.Broker = b

	dataStore, err := store.NewSQLiteStore(a.Config.DBPath())
	if err != nil {
		return err
	}
	a.Store = dataStore
	a.Portfolio = portfolio.NewStore(dataStore)

	a.MandatePath, err = a.ensureMandate(meta.Mandate)
	if err != nil {
		return err
	}
	m, err := mandate.Load(a.MandatePath, a.Logger)
	if err != nil {
		return err
	}
	mandateHash, err := mandate.FileHash(a.MandatePath)
	if err != nil {
		return err
	}

	a.Holder = mandate.NewHolder(m)
	a.Engine = mandate.NewEngine(a.Holder, utils.IsMarketOpen)

	auditLog, err := audit.Open(a.Config.AuditPath())
	if err != nil {
		return err
	}
	a.Audit = auditLog

	a.Dispatcher = trading.NewDispatcher(trading.Config{
		Engine:      a.Engine,
		AuditLog:    auditLog,
		Broker:      b,
		Portfolio:   a.Portfolio,
		MandateHash: mandateHash,
		Logger:      logging.WithAgent(a.Logger, meta.AgentID),
	})

	a.Logger.Debug().
		Str("agent_id", meta.AgentID).
		Str("broker", b.Name()).
		Str("mandate", m.MandateID).
		Msg("Pipeline initialized")
	return nil
}

// Close releases pipeline resources.
func (a *App) Close() {
	if a.Audit != nil {
		a.Audit.Close()
	}
	if a.Store != nil {
		a.Store.Close()
	}
}

// ensureMandate resolves the named mandate file, writing the default
// template on first run.
func (a *App) ensureMandate(name string) (string, error) {
	if name == "" {
		name = "default"
	}
	path := filepath.Join(a.Config.MandatesDir(), name+".yaml")
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if alt := filepath.Join(a.Config.MandatesDir(), name+".yml"); fileExists(alt) {
		return alt, nil
	}
	if name != "default" {
		return "", fmt.Errorf("mandate %q not found in %s", name, a.Config.MandatesDir())
	}
	if err := os.WriteFile(path, []byte(defaultMandateYAML), 0o644); err != nil {
		return "", err
	}
	a.Logger.Info().Str("path", path).Msg("Created default mandate")
	return path, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

const defaultMandateYAML = `# Default agent trading mandate
description: Default paper trading mandate
version: 1
permissions:
  max_order_size_usd: 10000
  max_daily_notional_usd: 50000
  max_daily_trades: 20
  max_concentration_pct: 25
  allowed_sides: [buy, sell]
  allowed_order_types: [market, limit]
  allowed_asset_types: [equity]
  trading_hours_only: false
`

func newInitCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Set up the data directory, owner keys, default mandate and agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			if err := app.Config.EnsureDirs(); err != nil {
				return err
			}
			output.Success("Data directory: %s", app.Config.BaseDir)

			privPath := app.Config.OwnerKeyPath()
			pubPath := privPath + ".pub"
			if fileExists(privPath) {
				output.Dim("Owner keypair already exists: %s", privPath)
			} else {
				pub, err := mandate.GenerateOwnerKey(privPath, pubPath)
				if err != nil {
					return err
				}
				output.Success("Owner keypair generated: %s", privPath)
				output.Dim("  fingerprint %s", mandate.OwnerFingerprint(pub))
			}

			mandatePath, err := app.ensureMandate("default")
			if err != nil {
				return err
			}
			output.Success("Mandate: %s", mandatePath)

			meta, err := agents.GetOrCreateDefault(app.Config.AgentsDir())
			if err != nil {
				return err
			}
			output.Success("Agent: %s (%s)", meta.AgentID, meta.Name)

			output.Println()
			output.Info("Ready. Try: vest trade buy AAPL 10")
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"version": Version})
			} else {
				output.Printf("vest v%s\n", Version)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			output.Bold("Configuration")
			output.Printf("  Base dir:   %s\n", app.Config.BaseDir)
			output.Printf("  Broker:     %s\n", app.Config.Broker)
			output.Printf("  Audit log:  %s\n", app.Config.AuditPath())
			output.Printf("  Mandates:   %s\n", app.Config.MandatesDir())
			output.Printf("  Log level:  %s\n", app.Config.Logging.Level)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show data directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": app.Config.BaseDir})
			} else {
				output.Println(app.Config.BaseDir)
			}
		},
	})

	return cmd
}
