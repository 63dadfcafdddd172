package db_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-gallery/internal/gallery/db"
	"ms-gallery/internal/models"
)

func setupTestDB(t *testing.T) (*db.DB, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	for _, model := range []interface{}{(*models.Album)(nil), (*models.Photo)(nil)} {
		if _, err := bunDB.NewCreateTable().Model(model).Exec(ctx); err != nil {
			t.Fatalf("Failed to create table: %v", err)
		}
	}

	return &db.DB{Bun: bunDB}, bunDB
}

func seedAlbum(t *testing.T, bunDB *bun.DB) {
	ctx := context.Background()

	album := models.Album{
		AlbumID:           "album123",
		EventID:           "event456",
		ShareToken:        "tok-abc",
		UnitPrice:         25.0,
		DiscountThreshold: 10,
		DiscountRate:      0.2,
	}
	_, err := bunDB.NewInsert().Model(&album).Exec(ctx)
	require.NoError(t, err)

	photos := []models.Photo{
		{PhotoID: "photo1", AlbumID: "album123"},
		{PhotoID: "photo2", AlbumID: "album123", Price: 40.0},
		{PhotoID: "photo3", AlbumID: "album123"},
	}
	_, err = bunDB.NewInsert().Model(&photos).Exec(ctx)
	require.NoError(t, err)
}

func TestGetAlbum(t *testing.T) {
	galleryDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	seedAlbum(t, bunDB)

	album, err := galleryDB.GetAlbum("album123")
	assert.NoError(t, err)
	assert.Equal(t, "event456", album.EventID)
	assert.Equal(t, 25.0, album.UnitPrice)
	assert.Equal(t, 10, album.DiscountThreshold)

	_, err = galleryDB.GetAlbum("missing")
	assert.Error(t, err)
}

func TestGetPhotosPreservesSelectionOrder(t *testing.T) {
	galleryDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	seedAlbum(t, bunDB)

	photos, err := galleryDB.GetPhotos("album123", []string{"photo3", "photo1"})
	assert.NoError(t, err)
	require.Len(t, photos, 2)
	assert.Equal(t, "photo3", photos[0].PhotoID)
	assert.Equal(t, "photo1", photos[1].PhotoID)
}

func TestGetPhotosUnknownIDFails(t *testing.T) {
	galleryDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	seedAlbum(t, bunDB)

	_, err := galleryDB.GetPhotos("album123", []string{"photo1", "ghost"})
	assert.ErrorIs(t, err, db.ErrPhotoNotFound)
}

func TestGetPhotosCarriesPriceOverride(t *testing.T) {
	galleryDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	seedAlbum(t, bunDB)

	photos, err := galleryDB.GetPhotos("album123", []string{"photo1", "photo2"})
	assert.NoError(t, err)
	require.Len(t, photos, 2)
	assert.Equal(t, 0.0, photos[0].Price)
	assert.Equal(t, 40.0, photos[1].Price)
}
