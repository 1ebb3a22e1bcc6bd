package main

import (
	"os"

	"github.com/spf13/cobra"

	"crewmon/internal/commands"
	"crewmon/internal/output"
)

var jsonFlag bool

var rootCmd = &cobra.Command{
	Use:   "crewmon",
	Short: "Live monitor for multi-agent crew runs",
	Long:  "Follow a crew run over its websocket: transcript, task progress, active agent, and replies to the crew's questions",
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Output in JSON format")
	commands.AddGlobalFlags(rootCmd)

	rootCmd.AddCommand(commands.WatchCmd)
	rootCmd.AddCommand(commands.TasksCmd)
	rootCmd.AddCommand(commands.CrewTypesCmd)
	rootCmd.AddCommand(commands.PushConfigCmd)
	rootCmd.AddCommand(commands.MCPCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)

	// 默认行为：直接进入 watch
	rootCmd.Run = func(cmd *cobra.Command, args []string) {
		commands.RunWatch("", false)
	}
}

func main() {
	// Propagate --json flag before execution
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		output.JSONMode = jsonFlag
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
