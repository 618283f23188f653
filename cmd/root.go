package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rkapoor/rb/internal/api"
	"github.com/rkapoor/rb/internal/output"
	"github.com/rkapoor/rb/internal/review"
	"github.com/rkapoor/rb/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	provider  *review.Provider
	dataStore store.Store

	verbose bool
	dryRun  bool

	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "rb",
	Short: "ReviewBoard workflow from the command line",
	Long: `rb drives a ReviewBoard server's review workflow: list review
requests, post diffs from your working copy, draft inline comments,
publish reviews, ship and close requests.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		reportError(err)
		os.Exit(1)
	}
}

// reportError maps the failure kinds to user-visible messages: classified
// failures are warnings with a short actionable message, anything else is
// an error shown raw.
func reportError(err error) {
	if ui == nil {
		ui = output.New()
	}
	var serverErr *api.ServerError
	var connErr *api.ConnectivityError
	switch {
	case errors.Is(err, api.ErrInvalidCredentials):
		ui.Warning("Invalid credentials. Check username/password with 'rb config test'.")
	case errors.Is(err, api.ErrInvalidConfiguration):
		ui.Warning("ReviewBoard is not configured. Run 'rb config init' and set url, username and password.")
	case errors.As(err, &serverErr):
		ui.Warning("%v", serverErr)
	case errors.As(err, &connErr):
		ui.Warning("Unable to connect to the server: %v", connErr)
	default:
		ui.Error("%v", err)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/rb/config.yaml)")

	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "rb")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("RB")
	viper.AutomaticEnv()

	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "rb")

	viper.SetDefault("url", "")
	viper.SetDefault("username", "")
	viper.SetDefault("password", "")
	viper.SetDefault("use_rbtools", false)
	viper.SetDefault("db_path", filepath.Join(defaultConfigDir, "rb.db"))
	viper.SetDefault("list.max_results", 25)

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun
}

// currentConfig assembles connection settings from viper.
func currentConfig() review.Config {
	return review.Config{
		URL:      viper.GetString("url"),
		Username: viper.GetString("username"),
		Password: viper.GetString("password"),
		UseRBT:   viper.GetBool("use_rbtools"),
	}
}

// getProvider returns the shared provider, building it on first call.
// Configuration is validated here, before any network call.
func getProvider() (*review.Provider, error) {
	if provider != nil {
		return provider, nil
	}
	p, err := review.NewProvider(currentConfig())
	if err != nil {
		return nil, err
	}
	provider = p
	return provider, nil
}

// resetProvider drops the cached provider so the next call uses fresh
// credentials. Called after configuration changes.
func resetProvider() {
	provider = nil
}

// getStore returns the shared draft store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(rootCmd.Context()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(os.Stdout, "rb %s (commit %s, built %s)\n", buildVersion, buildCommit, buildDate)
	},
}
