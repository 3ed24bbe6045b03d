// Package ctl implements homedockctl, the administration command line:
// key generation, migrations and admin account bootstrap.
package ctl

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/homedock/internal/logging"
	"github.com/dmitrijs2005/homedock/internal/server/config"
	"github.com/spf13/cobra"
)

// loadConfig is a test seam for config.LoadConfig.
var loadConfig = config.LoadConfig

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "homedockctl",
	Short: "Administration tool for the homedock server.",
	Long: `Administration tool for the homedock server.

Database and key settings are read exactly like the server reads them:
defaults, the JSON file given with -c, .env and HOMEDOCK_* variables, and
the server flags (-driver, -d, -k, ...).
`,
	SilenceUsage: true,
	// server flags are consumed by the config loader
	FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		cancel()
		os.Exit(1)
	}
}

func newLogger() logging.Logger {
	l, err := logging.New("text", "warn", os.Stderr)
	if err != nil {
		return logging.Discard()
	}
	return l
}
