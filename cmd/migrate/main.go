package main

import (
	"errors"
	"flag"
	"os"

	migrate "github.com/golang-migrate/migrate/v4"

	"github.com/noah-isme/toko-pos/internal/config"
	"github.com/noah-isme/toko-pos/internal/db"
	"github.com/noah-isme/toko-pos/internal/obs"
)

func main() {
	down := flag.Bool("down", false, "roll back the most recent migration")
	steps := flag.Int("steps", 0, "apply n migrations (negative rolls back)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "migrate").Logger()

	m, err := db.NewMigrate(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("init migrate")
	}
	defer m.Close()

	switch {
	case *steps != 0:
		err = m.Steps(*steps)
	case *down:
		err = m.Steps(-1)
	default:
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error().Err(err).Msg("migration failed")
		os.Exit(1)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		logger.Error().Err(err).Msg("read migration version")
		os.Exit(1)
	}
	logger.Info().Uint("version", version).Bool("dirty", dirty).Msg("migrations complete")
}
