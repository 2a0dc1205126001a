// Package main boots the vending kiosk fulfillment service CLI.
package main

import (
	"os"

	"github.com/fairyhunter13/vending-kiosk-service/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
