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

// Command clean-db empties every obralog table. It is meant for local and
// test databases and refuses to run without --yes.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/pflag"
)

// tables in reverse dependency order.
var tables = []string{
	"site_log_details",
	"site_log_headers",
	"grants",
	"roles",
	"modules",
	"identities",
}

// rosterTables are maintained by the external roster and kept unless asked.
var rosterTables = []string{
	"equipment",
	"sites",
	"employees",
}

func main() {
	flags := pflag.NewFlagSet("clean-db", pflag.ExitOnError)
	dsn := flags.String("dsn", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL")
	withRoster := flags.Bool("roster", false, "also empty the roster tables")
	yes := flags.Bool("yes", false, "confirm that all data may be deleted")
	_ = flags.Parse(os.Args[1:])

	if *dsn == "" {
		fmt.Fprintln(os.Stderr, "--dsn or DATABASE_URL is required")
		os.Exit(2)
	}
	if !*yes {
		fmt.Fprintln(os.Stderr, "refusing to delete data without --yes")
		os.Exit(2)
	}

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, *dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close(ctx)

	targets := tables
	if *withRoster {
		targets = append(targets, rosterTables...)
	}

	fmt.Println("Cleaning database...")
	failed := false
	for _, table := range targets {
		if _, err := conn.Exec(ctx, "TRUNCATE TABLE "+pgx.Identifier{table}.Sanitize()+" RESTART IDENTITY CASCADE"); err != nil {
			fmt.Printf("Warning: failed to truncate %s: %v\n", table, err)
			failed = true
			continue
		}
		fmt.Printf("Cleared %s\n", table)
	}
	if failed {
		os.Exit(1)
	}
}
