/*
main.go - Application entry point

PURPOSE:
  Command-line interface of the funding engine. The serve command runs the
  HTTP API; quote and pricing work offline against the pricing config.

COMMANDS:
  fundingd serve      Run the HTTP server
  fundingd quote      Price one shift and print it as JSON
  fundingd pricing    Print the effective pricing as YAML

CONFIGURATION:
  Defaults < config file (--config or ./fundingd.yaml) < FUNDING_* env
  < command-line flags. See config/config.go for the keys.

EXAMPLES:
  # Run with an in-memory ledger
  FUNDING_DATABASE_PATH=":memory:" fundingd serve

  # Quote an overnight shift at 1:2
  fundingd quote --start 2025-03-03T22:00 --end 2025-03-04T07:00 --ratio 1:2

SEE ALSO:
  - config/config.go: Configuration keys and defaults
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/carelink/funding-engine/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	v       = viper.New()
	rootCmd = &cobra.Command{
		Use:   "fundingd",
		Short: "NDIS funding rate calculation and budget ledger",
		Long: `fundingd prices support shifts against NDIS rates, totals service
agreements and keeps a ledger of each client's remaining funding.`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./fundingd.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (console, json)")
	rootCmd.PersistentFlags().String("timezone", "Australia/Sydney", "time zone for timestamps without an offset")
	rootCmd.PersistentFlags().String("pricing", "", "pricing file (YAML or JSON)")

	_ = v.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = v.BindPFlag("timezone", rootCmd.PersistentFlags().Lookup("timezone"))
	_ = v.BindPFlag("pricing.file", rootCmd.PersistentFlags().Lookup("pricing"))

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(quoteCmd())
	rootCmd.AddCommand(pricingCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	config.SetDefaults(v)
	return config.ReadInConfig(v, cfgFile)
}
