// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command migrate applies the embedded schema against a PostgreSQL database.
// Applied scripts are recorded in schema_migrations and never re-run.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/opentrusty/obralog/internal/config"
	"github.com/opentrusty/obralog/internal/store/postgres"
)

func main() {
	flags := pflag.NewFlagSet("migrate", pflag.ExitOnError)
	dsn := flags.String("dsn", "", "PostgreSQL connection URL (defaults to the configured database)")
	configPath := flags.StringP("config", "c", "", "path to a YAML configuration file")
	dryRun := flags.Bool("dry-run", false, "list pending migrations without applying them")
	_ = flags.Parse(os.Args[1:])

	connStr := *dsn
	if connStr == "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			fatalf("Failed to load configuration: %v", err)
		}
		connStr = cfg.Database.DSN()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := postgres.Open(ctx, connStr)
	if err != nil {
		fatalf("Failed to connect: %v", err)
	}
	defer db.Close()
	fmt.Println("Connected to database")

	if *dryRun {
		pending, err := db.Pending(ctx)
		if err != nil {
			fatalf("Failed to list pending migrations: %v", err)
		}
		for _, name := range pending {
			fmt.Println(name)
		}
		fmt.Printf("%d pending migration(s)\n", len(pending))
		return
	}

	applied, err := db.Migrate(ctx)
	if err != nil {
		fatalf("Migration failed: %v", err)
	}
	for _, name := range applied {
		fmt.Printf("Applied %s\n", name)
	}
	fmt.Printf("Applied %d migration(s)\n", len(applied))
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
