package main

import (
	"os"

	_ "github.com/joho/godotenv/autoload"                // loads .env automatically if present
	_ "github.com/lib/pq"                                // postgres driver
	_ "github.com/mattn/go-sqlite3"                      // local fallback driver (sqlite file)
	_ "github.com/tursodatabase/libsql-client-go/libsql" // libSQL (Turso) driver
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
