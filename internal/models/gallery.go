package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Album is read-only to the checkout engine. The studio configures the
// pricing policy per album.
type Album struct {
	bun.BaseModel `bun:"table:albums"`

	AlbumID           string    `bun:"album_id,pk" json:"album_id"`
	EventID           string    `bun:"event_id" json:"event_id"`
	ShareToken        string    `bun:"share_token" json:"share_token"`
	UnitPrice         float64   `bun:"unit_price" json:"unit_price"`
	DiscountThreshold int       `bun:"discount_threshold" json:"discount_threshold"`
	DiscountRate      float64   `bun:"discount_rate" json:"discount_rate"`
	CreatedAt         time.Time `bun:"created_at" json:"created_at"`
}

type Photo struct {
	bun.BaseModel `bun:"table:photos"`

	PhotoID string `bun:"photo_id,pk" json:"photo_id"`
	AlbumID string `bun:"album_id" json:"album_id"`
	// Price overrides the album unit price when non-zero.
	Price float64 `bun:"price,nullzero" json:"price,omitempty"`
}
