package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"gymaccess/internal/database"
	"gymaccess/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

// SeedFile holds the membership view rows and the provider directory.
type SeedFile struct {
	Members   []models.Member      `yaml:"members"`
	Providers []models.GymProvider `yaml:"providers"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		seedPath = flag.String("seed", "configs/seed.yaml", "path to seed.yaml")
		dbPath   = flag.String("db", "./data/gym_access.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*seedPath)
	if err != nil {
		return fmt.Errorf("read seed: %w", err)
	}
	var seed SeedFile
	if err = yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse seed: %w", err)
	}
	if len(seed.Members) == 0 && len(seed.Providers) == 0 {
		return errors.New("nothing to seed")
	}

	for i, m := range seed.Members {
		if m.ID == "" || m.Name == "" {
			return fmt.Errorf("member #%d: member_no and name are required", i+1)
		}
		if _, err := models.ParsePeriodKind(m.AccessType); err != nil {
			return fmt.Errorf("member %s: %w", m.ID, err)
		}
		if m.AccessLimit <= 0 {
			return fmt.Errorf("member %s: access_limit must be positive", m.ID)
		}
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if len(seed.Members) > 0 {
		if err := db.ReplaceMembers(ctx, seed.Members); err != nil {
			return err
		}
	}
	if len(seed.Providers) > 0 {
		if err := db.ReplaceProviders(ctx, seed.Providers); err != nil {
			return err
		}
	}

	logger.Info().
		Int("members", len(seed.Members)).
		Int("providers", len(seed.Providers)).
		Str("db", *dbPath).
		Msg("seed complete")
	return nil
}
