package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/jcgs2503/vestbridge/internal/agents"
)

// addAgentCommands adds the agent identity command group.
func addAgentCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Agent identity commands",
	}
	cmd.AddCommand(newAgentCreateCmd(app))
	cmd.AddCommand(newAgentListCmd(app))
	rootCmd.AddCommand(cmd)
}

func newAgentCreateCmd(app *App) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a new agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			meta, err := agents.Create(name, app.Config.AgentsDir())
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(meta)
			}
			output.Success("Agent created: %s (%s)", meta.AgentID, meta.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "default", "agent name")
	return cmd
}

func newAgentListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			list, err := agents.List(app.Config.AgentsDir())
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(list)
			}
			if len(list) == 0 {
				output.Println("No agents registered. Run 'vest init' or 'vest agent create'.")
				return nil
			}

			table := NewTable(output, "AGENT ID", "NAME", "MANDATE", "CREATED")
			for _, a := range list {
				table.AddRow(a.AgentID, a.Name, a.Mandate, a.CreatedAt.Format(time.DateOnly))
			}
			table.Render()
			return nil
		},
	}
}
