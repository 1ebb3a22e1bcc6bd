package commands

import (
	"github.com/spf13/cobra"
)

// Flags shared by every command that talks to the crew service. They win
// over the config file and CREWMON_* variables.
var (
	configFlag string
	serverFlag string
	wsURLFlag  string
	crewFlag   string
)

// AddGlobalFlags registers the connection flags on root.
func AddGlobalFlags(root *cobra.Command) {
	pf := root.PersistentFlags()
	pf.StringVar(&configFlag, "config", "", "Config file (default ./crewmon.yaml or ~/.crewmon/config.yaml)")
	pf.StringVarP(&serverFlag, "server", "s", "", "Crew service base URL")
	pf.StringVar(&wsURLFlag, "ws-url", "", "Crew websocket URL (default derived from --server)")
	pf.StringVarP(&crewFlag, "crew", "c", "", "Crew type")
}

// WatchCmd represents the watch command
var WatchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Watch a crew run live",
	Long:    "Connect to the crew service and follow the transcript, task progress and active agent",
	Run: func(cmd *cobra.Command, args []string) {
		prompt, _ := cmd.Flags().GetString("prompt")
		plain, _ := cmd.Flags().GetBool("plain")
		RunWatch(prompt, plain)
	},
}

// TasksCmd represents the tasks command
var TasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Show the crew's tasks and agents",
	Long:  "Fetch the crew configuration and list its tasks and agents, falling back to the built-in pipeline",
	Run: func(cmd *cobra.Command, args []string) {
		RunTasks()
	},
}

// CrewTypesCmd represents the crew-types command
var CrewTypesCmd = &cobra.Command{
	Use:   "crew-types",
	Short: "List crew types offered by the service",
	Run: func(cmd *cobra.Command, args []string) {
		RunCrewTypes()
	},
}

// PushConfigCmd represents the push-config command
var PushConfigCmd = &cobra.Command{
	Use:   "push-config",
	Short: "Push the agent and task configuration to the crew",
	Long:  "Load the crew configuration, apply enable/disable changes and send it as set_custom_config",
	Run: func(cmd *cobra.Command, args []string) {
		disableTasks, _ := cmd.Flags().GetStringSlice("disable-task")
		disableAgents, _ := cmd.Flags().GetStringSlice("disable-agent")
		RunPushConfig(disableTasks, disableAgents)
	},
}

// MCPCmd represents the mcp command
var MCPCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the live crew as MCP tools over stdio",
	Long:  "Connect to the crew service and expose progress, transcript and input as MCP tools",
	Run: func(cmd *cobra.Command, args []string) {
		RunMCP()
	},
}

// ConfigCmd represents the config parent command
var ConfigCmd = &cobra.Command{
	Use:     "config",
	Aliases: []string{"cfg"},
	Short:   "Manage crewmon configuration",
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Run: func(cmd *cobra.Command, args []string) {
		RunConfigPath()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  "Show the configuration after the config file, environment and flags are applied",
	Run: func(cmd *cobra.Command, args []string) {
		RunConfigShow()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")
		RunConfigInit(force)
	},
}

// VersionCmd represents the version command
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		RunVersion()
	},
}

func init() {
	WatchCmd.Flags().StringP("prompt", "p", "", "Start an analysis with this prompt once connected")
	WatchCmd.Flags().Bool("plain", false, "Print plain lines instead of the interactive view")

	PushConfigCmd.Flags().StringSlice("disable-task", nil, "Task ids to disable (ideation, tiktok, market, tech, refinement, ...)")
	PushConfigCmd.Flags().StringSlice("disable-agent", nil, "Agent roles to disable")

	configInitCmd.Flags().BoolP("force", "f", false, "Overwrite an existing config file")

	ConfigCmd.AddCommand(configPathCmd)
	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configInitCmd)
}
