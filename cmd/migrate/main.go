package main

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"
	"log"

	_ "github.com/jackc/pgx/v5/stdlib" // driver pgx para database/sql (goose lo requiere)
	"github.com/pressly/goose/v3"

	"github.com/Lelo88/inventario-api-golang/internal/config"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Aplica las migraciones pendientes contra DATABASE_URL.
// Las migraciones viajan embebidas en el binario: no dependen del cwd.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	migrations, err := fs.Sub(embeddedMigrations, "migrations")
	if err != nil {
		log.Fatal(err)
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations)
	if err != nil {
		log.Fatal(err)
	}

	results, err := provider.Up(context.Background())
	if err != nil {
		log.Fatal(err)
	}

	for _, result := range results {
		log.Printf("applied %s", result.Source.Path)
	}
	if len(results) == 0 {
		log.Printf("database is up to date")
	}
}
