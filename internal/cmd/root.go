package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/urbanisierung/copilot-swarm/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "swarm",
	Short: "Pipeline-driven coding agent orchestrator",
	Long: `Swarm runs a configurable phase pipeline against a repository using
conversational coding agent sessions: specification, task decomposition,
design, concurrent implementation streams, cross-model review, and
verification. Progress is checkpointed after every step so an interrupted
run resumes where it stopped.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/swarm/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/swarm")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("SWARM")
	// Replace dots with underscores for nested keys in env vars
	// e.g., SWARM_SESSION_TIMEOUT_MINUTES for session.timeout_minutes
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
