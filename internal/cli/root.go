// Package cli defines the vending-kiosk-service command tree.
package cli

import "github.com/spf13/cobra"

// NewRootCommand creates the root command for the kiosk service CLI.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vending-kiosk-service",
		Short: "Order fulfillment service for the card-scan vending kiosk",
		Long: `vending-kiosk-service runs the kiosk backend: the checkout and
payment-verification HTTP API, the card-scan subscriber, and the dispense
publisher that drives the vending hardware.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewServeCommand())
	cmd.AddCommand(NewSeedCommand())

	return cmd
}
