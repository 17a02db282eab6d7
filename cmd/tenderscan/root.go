package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for tenderscan.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenderscan",
		Short: "Crawler for tender listings on rostender.info",
		Long: `tenderscan walks the tender listing pages of rostender.info, opens the
detail page of every tender and collects its name, price, deadline,
application security and industries.

Results are exported as CSV, JSON or Markdown, kept in a local history
database and can be served over a small JSON API.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .tenderscan in current or home directory)")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
