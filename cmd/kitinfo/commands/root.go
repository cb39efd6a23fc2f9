package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kitinfo/kitinfo/pkg/config"
)

// options holds the flags shared by every command.
type options struct {
	configPath string
	verbose    bool
	noJournal  bool

	version string
}

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	opts := &options{version: version}

	rootCmd := &cobra.Command{
		Use:   "kitinfo",
		Short: "kitinfo - interactive Typekit kit manager",
		Long: `kitinfo manages the Typekit kits of an API token interactively.

From the main menu you can browse existing kits and view, update or delete
them, or create a new kit. Every session is recorded in a local journal,
see "kitinfo history".

The API token is read from --token, $KITINFO_API_TOKEN or the api.token key
of the configuration file.`,
		Example: `  # Start a session
  KITINFO_API_TOKEN=... kitinfo

  # Show kits as YAML, without colors
  kitinfo --output yaml --no-color

  # List recent sessions
  kitinfo history`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, opts)
		},
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&opts.noJournal, "no-journal", false, "do not record the session in the journal")

	rootCmd.Flags().String("api-url", "", "Typekit API base URL")
	rootCmd.Flags().String("token", "", "Typekit API token")
	rootCmd.Flags().Bool("no-color", false, "disable colored output")
	rootCmd.Flags().StringP("output", "o", "json", "kit display format (json, yaml)")

	rootCmd.AddCommand(newHistoryCommand(opts))

	return rootCmd
}

// flagKeys maps command line flags to the configuration keys they override.
var flagKeys = map[string]string{
	"api-url":  "api.base_url",
	"token":    "api.token",
	"no-color": "session.no_color",
	"output":   "session.output_format",
}

// loadConfig reads and validates the configuration for cmd. Commands that
// never reach the API pass needToken false.
func loadConfig(cmd *cobra.Command, opts *options, needToken bool) (*config.Config, error) {
	loader := config.NewLoader()
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := loader.BindFlag(key, f); err != nil {
				return nil, err
			}
		}
	}

	cfg, err := loader.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	if opts.verbose {
		cfg.Telemetry.LogLevel = "debug"
	}
	if opts.noJournal {
		cfg.Journal.Enabled = false
	}

	if err := cfg.Validate(); err != nil {
		if needToken || !errors.Is(err, config.ErrMissingToken) {
			return nil, err
		}
	}
	return cfg, nil
}
