// Command migrate applies (or tears down) the matching engine's
// Postgres schema: riskstore's user_positions table and the ledger's
// trade/snapshot tables. Both stores already migrate themselves on
// Open, so this tool mostly drives that path from the command line the
// way an operator would before a deploy.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/tradsys/clob/internal/config"
	"github.com/tradsys/clob/internal/ledger"
	"github.com/tradsys/clob/internal/riskstore"
)

const (
	appName    = "clob migrate"
	appVersion = "v1.0.0"
)

func main() {
	configPath := flag.String("config", "", "directory containing config.yaml")
	version := flag.Bool("version", false, "show version information")
	up := flag.Bool("up", false, "create/verify the user_positions, trades and snapshots tables")
	down := flag.Bool("down", false, "drop the user_positions, trades and snapshots tables")
	flag.Parse()

	if *version {
		fmt.Printf("%s %s\n", appName, appVersion)
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	logger, err := config.InitLogger(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	dsn := postgresDSN(cfg)

	switch {
	case *up:
		if err := migrateUp(dsn, logger); err != nil {
			log.Fatalf("migration up failed: %v", err)
		}
		fmt.Println("schema is up to date")

	case *down:
		if err := migrateDown(dsn); err != nil {
			log.Fatalf("migration down failed: %v", err)
		}
		fmt.Println("schema tables dropped")

	default:
		fmt.Println("usage: migrate [-up|-down] [-config path]")
		flag.PrintDefaults()
		os.Exit(1)
	}
}

func postgresDSN(cfg *config.Config) string {
	return "host=" + cfg.Database.Host +
		" port=" + strconv.Itoa(cfg.Database.Port) +
		" user=" + cfg.Database.User +
		" password=" + cfg.Database.Password +
		" dbname=" + cfg.Database.Name +
		" sslmode=" + cfg.Database.SSLMode
}

// migrateUp opens both stores, which create their tables via
// CREATE TABLE IF NOT EXISTS / AutoMigrate as a side effect of Open.
func migrateUp(dsn string, logger *zap.Logger) error {
	store, err := riskstore.Open(dsn, logger)
	if err != nil {
		return fmt.Errorf("riskstore schema: %w", err)
	}
	store.Close()

	if _, err := ledger.NewGormLedger(dsn); err != nil {
		return fmt.Errorf("ledger schema: %w", err)
	}
	return nil
}

func migrateDown(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	for _, table := range []string{"user_positions", "trade_records", "snapshot_records"} {
		if _, err := db.Exec("DROP TABLE IF EXISTS " + table + " CASCADE"); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	return nil
}
