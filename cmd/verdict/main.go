package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"verdict/internal/config"
	"verdict/internal/logging"
)

// Version is set via ldflags at release time.
var Version = "dev"

var (
	// Global flags
	verbose    bool
	apiKey     string
	configPath string
	mockMode   bool

	// Logger
	logger *zap.Logger

	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "verdict",
	Short: "verdict - intent verification gate for blockchain actions",
	Long: `verdict stands between a natural-language intent and its execution.

It interprets what the user asked for, asks clarifying questions until the
intent is unambiguous, explains the consequences in plain English, and only
after explicit confirmation emits a structured execution payload. Execution
is simulated; nothing is signed or broadcast.

Run "verdict verify" to start a verification session.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = loadConfig()
		if err != nil {
			return err
		}

		// Category file logging under .verdict/logs (no-op unless
		// debug_mode is set in the config file)
		ws, err := os.Getwd()
		if err != nil {
			ws = "."
		}
		if err := logging.Initialize(ws); err != nil {
			logger.Warn("file logging unavailable", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// versionCmd prints the build version
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the verdict version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("verdict %s\n", Version)
	},
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	c, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if apiKey != "" {
		c.LLM.APIKey = apiKey
	}
	if mockMode {
		c.LLM.MockMode = true
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Anthropic API key (or set ANTHROPIC_API_KEY env)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default: .verdict/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&mockMode, "mock", false, "Use the offline simulator instead of the live model")

	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(examplesCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
