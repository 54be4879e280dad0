package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tc39/proposal-richer-keys/internal/config"
	"github.com/tc39/proposal-richer-keys/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "ckey",
	Short: "Composite key and composite symbol interning",
	Long: `ckey exercises a composite key store: tuples of identity values and
scalars are interned into canonical tokens and released again once their
identity values are garbage collected.`,
	SilenceUsage:      true,
	PersistentPreRunE: prepareCommand,
}

// activeConfig is the configuration resolved for the running command.
var activeConfig = config.Default()

func init() {
	rootCmd.Version = version.Current().Version

	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(stressCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(versionCmd)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "path to ckey.toml (default: search upwards from the working directory)")
	flags.String("color", "auto", "colorize output (auto|on|off)")
	flags.Bool("timings", false, "show timing information")
	flags.String("trace", "", "trace output file (\"-\" for stderr)")
	flags.String("trace-level", "off", "trace level (off|error|op|detail|debug)")
	flags.String("trace-mode", "stream", "trace storage (stream|ring|both)")
	flags.Int("trace-ring-size", 4096, "events kept by the ring tracer")
	flags.String("trace-scopes", "", "comma-separated scopes to keep (driver,store,worker,branch; default all)")
	flags.Duration("trace-heartbeat", 0, "heartbeat interval (0 disables)")
}

// main executes the root command and exits with status 1 on error.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	activeTracing.close(os.Stderr)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// prepareCommand loads configuration, applies the color mode and starts
// tracing before any subcommand runs.
func prepareCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	activeConfig = cfg

	colorMode, err := flagOrConfig(cmd, "color", cfg.Output.Color)
	if err != nil {
		return err
	}
	if err := applyColorMode(colorMode); err != nil {
		return err
	}

	session, err := setupTracing(cmd, cfg.Trace)
	if err != nil {
		return err
	}
	activeTracing = session
	return nil
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to get config flag: %w", err)
	}
	if path != "" {
		return config.Load(path)
	}
	cfg, _, err := config.Discover(".")
	return cfg, err
}

// flagOrConfig returns the flag value when the user set it explicitly and
// fallback otherwise.
func flagOrConfig(cmd *cobra.Command, name, fallback string) (string, error) {
	flag := cmd.Flags().Lookup(name)
	if flag == nil {
		return "", fmt.Errorf("unknown flag %q", name)
	}
	if flag.Changed {
		return flag.Value.String(), nil
	}
	return fallback, nil
}

func applyColorMode(mode string) error {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "auto":
		color.NoColor = !isTerminal(os.Stdout)
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	default:
		return fmt.Errorf("invalid --color value %q (expected auto|on|off)", mode)
	}
	return nil
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
