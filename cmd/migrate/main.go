package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"recruitgate.org/internal/config"
	"recruitgate.org/internal/migrate"
	"recruitgate.org/internal/tokenstore"
)

func main() {
	log.SetFlags(0)
	cfg, err := config.LoadMigrate()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	var (
		driver = flag.String("driver", cfg.Driver, "token store driver: postgres or sqlite")
		dsn    = flag.String("dsn", cfg.DSN, "database DSN")
		table  = flag.String("table", cfg.Table, "migration bookkeeping table")
	)
	flag.Parse()

	if len(flag.Args()) == 0 {
		log.Fatal("usage: migrate [up|down|status]")
	}

	dialect, err := tokenstore.ParseDialect(*driver)
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	backend, err := tokenstore.Open(dialect, *dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer backend.Close()

	mgr, err := backend.Migrator(migrate.WithTable(*table))
	if err != nil {
		log.Fatalf("migrations: %v", err)
	}

	switch flag.Arg(0) {
	case "up":
		var applied []string
		applied, err = mgr.Up(ctx)
		for _, name := range applied {
			fmt.Println("applied", name)
		}
	case "down":
		var name string
		name, err = mgr.Down(ctx)
		if err == nil {
			fmt.Println("rolled back", name)
		}
	case "status":
		var history []string
		history, err = mgr.Status(ctx)
		for _, item := range history {
			fmt.Println(item)
		}
	default:
		log.Fatalf("unknown command %q", flag.Arg(0))
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", flag.Arg(0), err)
	}
}
