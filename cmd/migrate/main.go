package main

import (
	"context"
	"database/sql"
	"log"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-gallery/internal/config"
	"ms-gallery/internal/models"
)

// Recreates the schema and seeds a demo album. Destructive: meant for local
// development only.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	sqldb, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to open Postgres connection: %v", err)
	}
	defer sqldb.Close()

	if err := sqldb.Ping(); err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}

	bunDB := bun.NewDB(sqldb, pgdialect.New())
	ctx := context.Background()

	tables := []interface{}{
		(*models.Order)(nil),
		(*models.Photo)(nil),
		(*models.Album)(nil),
	}

	for _, model := range tables {
		if _, err := bunDB.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
			log.Fatalf("Failed to drop table: %v", err)
		}
	}

	// Create in dependency order
	for i := len(tables) - 1; i >= 0; i-- {
		if _, err := bunDB.NewCreateTable().Model(tables[i]).Exec(ctx); err != nil {
			log.Fatalf("Failed to create table: %v", err)
		}
	}
	log.Println("Schema created")

	album := models.Album{
		AlbumID:           "album-demo",
		EventID:           "event-demo",
		ShareToken:        "demo-token",
		UnitPrice:         25.0,
		DiscountThreshold: 10,
		DiscountRate:      0.2,
	}
	if _, err := bunDB.NewInsert().Model(&album).Exec(ctx); err != nil {
		log.Fatalf("Failed to seed album: %v", err)
	}

	photos := []models.Photo{
		{PhotoID: "photo-001", AlbumID: album.AlbumID},
		{PhotoID: "photo-002", AlbumID: album.AlbumID},
		{PhotoID: "photo-003", AlbumID: album.AlbumID, Price: 40.0},
		{PhotoID: "photo-004", AlbumID: album.AlbumID},
		{PhotoID: "photo-005", AlbumID: album.AlbumID},
	}
	if _, err := bunDB.NewInsert().Model(&photos).Exec(ctx); err != nil {
		log.Fatalf("Failed to seed photos: %v", err)
	}

	log.Println("Seeded demo album with 5 photos")
}
