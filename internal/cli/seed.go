package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fairyhunter13/vending-kiosk-service/internal/model"
	"github.com/fairyhunter13/vending-kiosk-service/internal/store"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	File string
	DB   string
}

// seedFixtures is the YAML document layout accepted by seed.
type seedFixtures struct {
	Products []struct {
		ID         string `yaml:"id"`
		Name       string `yaml:"name"`
		PriceCents int64  `yaml:"price_cents"`
		Stock      int64  `yaml:"stock"`
	} `yaml:"products"`
	Users []struct {
		Name   string `yaml:"name"`
		Email  string `yaml:"email"`
		CardID string `yaml:"card_id"`
	} `yaml:"users"`
}

// NewSeedCommand creates the seed command.
func NewSeedCommand() *cobra.Command {
	opts := &SeedOptions{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load catalog and user fixtures into the store",
		Long: `Load products and registered users from a YAML fixtures file into the
SQLite store. Intended for development and kiosk provisioning.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "fixtures.yaml", "fixtures file to load")
	cmd.Flags().StringVar(&opts.DB, "db", "kiosk.db", "path to the SQLite database")

	return cmd
}

func runSeed(cmd *cobra.Command, opts *SeedOptions) error {
	raw, err := os.ReadFile(opts.File)
	if err != nil {
		return fmt.Errorf("read fixtures: %w", err)
	}
	var fixtures seedFixtures
	if err := yaml.Unmarshal(raw, &fixtures); err != nil {
		return fmt.Errorf("parse fixtures: %w", err)
	}

	st, err := store.Open(opts.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	for _, p := range fixtures.Products {
		if _, err := st.CreateProduct(ctx, model.Product{
			ID:         p.ID,
			Name:       p.Name,
			PriceCents: p.PriceCents,
			Stock:      p.Stock,
		}); err != nil {
			return fmt.Errorf("seed product %q: %w", p.Name, err)
		}
	}
	for _, u := range fixtures.Users {
		if _, err := st.CreateUser(ctx, model.User{
			Name:   u.Name,
			Email:  u.Email,
			CardID: u.CardID,
		}); err != nil {
			return fmt.Errorf("seed user %q: %w", u.Name, err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "seeded %d products and %d users into %s\n",
		len(fixtures.Products), len(fixtures.Users), opts.DB)
	return nil
}
