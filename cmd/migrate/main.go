package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"artmarket-wallet/config"
	pgStorage "artmarket-wallet/internal/adapter/storage/postgres"
	"artmarket-wallet/pkg/logger"
)

func main() {
	cmd := flag.String("cmd", "up", "migration command: up|up-by-one|up-to|down|down-to|redo|reset|status|version")
	target := flag.String("version", "", "target version for -cmd=up-to and -cmd=down-to")
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty).With().Str("component", "migrate").Str("cmd", *cmd).Logger()

	if cfg.Database.Driver != "postgres" {
		fmt.Fprintf(os.Stderr, "database.driver %q has no schema to migrate\n", cfg.Database.Driver)
		os.Exit(1)
	}

	var args []string
	switch *cmd {
	case "up-to", "down-to":
		if *target == "" {
			fmt.Fprintf(os.Stderr, "missing -version for -cmd=%s\n", *cmd)
			os.Exit(1)
		}
		args = append(args, *target)
	case "up", "up-by-one", "down", "redo", "reset", "status", "version":
	default:
		fmt.Fprintln(os.Stderr, "unknown -cmd value:", *cmd)
		os.Exit(1)
	}

	log.Info().Str("host", cfg.Database.Host).Str("dbname", cfg.Database.DBName).Msg("migrate ready")

	if err := pgStorage.Migrate(context.Background(), cfg.Database.DSN(), *cmd, args...); err != nil {
		log.Error().Err(err).Msg("migration failed")
		os.Exit(1)
	}
	log.Info().Msg("migration finished")
}
