// migrate-to-postgres copies saved quest sessions from SQLite to PostgreSQL.
//
// Usage:
//
//	go run ./cmd/migrate-to-postgres \
//	    -sqlite data/questkeeper.db \
//	    -pg-host localhost \
//	    -pg-port 5432 \
//	    -pg-user questkeeper \
//	    -pg-password questkeeper \
//	    -pg-database questkeeper
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"

	"github.com/lawnchairsociety/questkeeper/internal/store"
)

func main() {
	// Parse command-line flags
	sqlitePath := flag.String("sqlite", "data/questkeeper.db", "Path to SQLite database")
	pgHost := flag.String("pg-host", "localhost", "PostgreSQL host")
	pgPort := flag.Int("pg-port", 5432, "PostgreSQL port")
	pgUser := flag.String("pg-user", "questkeeper", "PostgreSQL user")
	pgPassword := flag.String("pg-password", "questkeeper", "PostgreSQL password")
	pgDatabase := flag.String("pg-database", "questkeeper", "PostgreSQL database name")
	pgSSLMode := flag.String("pg-sslmode", "disable", "PostgreSQL SSL mode")
	dryRun := flag.Bool("dry-run", false, "Show what would be migrated without making changes")
	verify := flag.Bool("verify", true, "Check each saved frame's digest before copying")
	noOverwrite := flag.Bool("no-overwrite", false, "Keep slots that already exist in PostgreSQL")
	flag.Parse()

	log.Println("SQLite to PostgreSQL Migration Tool")
	log.Println("====================================")

	if _, err := os.Stat(*sqlitePath); err != nil {
		log.Fatalf("SQLite database not found: %v", err)
	}

	// Open SQLite database
	log.Printf("Opening SQLite database: %s", *sqlitePath)
	src, err := store.OpenSQLite(*sqlitePath)
	if err != nil {
		log.Fatalf("Failed to open SQLite database: %v", err)
	}
	defer src.Close()

	pgCfg := store.DefaultPostgresConfig()
	pgCfg.Host = *pgHost
	pgCfg.Port = *pgPort
	pgCfg.User = *pgUser
	pgCfg.Password = *pgPassword
	pgCfg.Database = *pgDatabase
	pgCfg.SSLMode = *pgSSLMode

	// Opening runs the schema migration on PostgreSQL.
	var dst *store.SQLStore
	if !*dryRun {
		log.Printf("Opening PostgreSQL database: %s@%s:%d/%s", *pgUser, *pgHost, *pgPort, *pgDatabase)
		dst, err = store.OpenPostgres(pgCfg)
		if err != nil {
			log.Fatalf("Failed to open PostgreSQL database: %v", err)
		}
		defer dst.Close()
		log.Printf("Writing to %s (overwrite: %v)", dst.Dialect().DriverName(), !*noOverwrite)
	} else {
		log.Println("DRY RUN MODE - No changes will be made")
	}

	res, err := migrateSlots(context.Background(), src, dst, migrateOptions{verify: *verify, overwrite: !*noOverwrite})
	if err != nil {
		log.Fatalf("Failed to migrate quest_state: %v", err)
	}

	log.Println("====================================")
	log.Printf("Migration complete! Rows migrated: %d, skipped as corrupt: %d, kept existing: %d",
		res.migrated, res.corrupt, res.existing)
	if *dryRun {
		log.Println("(DRY RUN - No actual changes were made)")
	}
}

type migrateOptions struct {
	verify    bool // Skip rows whose frame digest does not check out
	overwrite bool // Replace slots already present in dst
}

type migrateResult struct {
	migrated int64
	corrupt  int64
	existing int64
}

// migrateSlots copies every quest_state row from src to dst, keeping each
// row's update time. Frames are copied as stored. A nil dst only counts rows.
func migrateSlots(ctx context.Context, src, dst *store.SQLStore, opts migrateOptions) (migrateResult, error) {
	var res migrateResult
	entries, err := src.Entries(ctx)
	if err != nil {
		return res, err
	}

	var codec *store.CodecStore
	if opts.verify {
		codec, err = store.NewCodecStore(store.NewMemoryStore(), false)
		if err != nil {
			return res, err
		}
		defer codec.Close()
	}

	for _, e := range entries {
		if codec != nil {
			if _, err := codec.Decode(e.Data); err != nil {
				if errors.Is(err, store.ErrCorrupt) {
					log.Printf("  Skipping %s: %v", e.Key, err)
					res.corrupt++
					continue
				}
				return res, err
			}
		}
		if dst != nil {
			if opts.overwrite {
				if err := dst.Put(ctx, e); err != nil {
					return res, err
				}
			} else {
				inserted, err := dst.Insert(ctx, e)
				if err != nil {
					return res, err
				}
				if !inserted {
					log.Printf("  Keeping existing %s", e.Key)
					res.existing++
					continue
				}
			}
		}
		log.Printf("  %s (%d bytes, updated %s)", e.Key, len(e.Data), e.UpdatedAt.Format("2006-01-02 15:04:05"))
		res.migrated++
	}
	return res, nil
}
