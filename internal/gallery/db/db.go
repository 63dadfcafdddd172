package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"ms-gallery/internal/models"
)

// ErrPhotoNotFound means the selection referenced a photo id the album does
// not contain.
var ErrPhotoNotFound = errors.New("photo not found in album")

type DB struct {
	Bun *bun.DB
}

func (d *DB) GetAlbum(id string) (*models.Album, error) {
	var album models.Album
	err := d.Bun.NewSelect().
		Model(&album).
		Where("album_id = ?", id).
		Limit(1).
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return &album, nil
}

// GetPhotos resolves a selection against the album's catalog. Every
// requested photo id must exist in the album; the result preserves the
// order of photoIDs.
func (d *DB) GetPhotos(albumID string, photoIDs []string) ([]models.Photo, error) {
	if len(photoIDs) == 0 {
		return []models.Photo{}, nil
	}

	var photos []models.Photo
	err := d.Bun.NewSelect().
		Model(&photos).
		Where("album_id = ?", albumID).
		Where("photo_id IN (?)", bun.In(photoIDs)).
		Scan(context.Background())
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.Photo, len(photos))
	for _, p := range photos {
		byID[p.PhotoID] = p
	}

	ordered := make([]models.Photo, 0, len(photoIDs))
	for _, id := range photoIDs {
		photo, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrPhotoNotFound, id)
		}
		ordered = append(ordered, photo)
	}
	return ordered, nil
}
