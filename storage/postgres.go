package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/Ruscigno/astroscraper/models"
)

const archiveSchema = `
CREATE TABLE IF NOT EXISTS listings (
	id          TEXT PRIMARY KEY,
	ad_number   TEXT NOT NULL,
	ad_type     TEXT NOT NULL,
	status      TEXT NOT NULL,
	has_photo   BOOLEAN NOT NULL,
	description TEXT NOT NULL,
	price       NUMERIC,
	price_text  TEXT NOT NULL,
	date        TIMESTAMPTZ,
	date_text   TEXT NOT NULL,
	location    TEXT NOT NULL,
	is_featured BOOLEAN NOT NULL,
	listing_url TEXT,
	page_number INTEGER NOT NULL,
	scraped_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// ListingArchive writes scraped records to Postgres for long-term history.
// Optional; enabled when a DATABASE_URL is configured.
type ListingArchive struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewListingArchive connects and ensures the schema exists.
func NewListingArchive(databaseURL string, logger *zap.Logger) (*ListingArchive, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to archive db: %w", err)
	}
	if _, err := db.Exec(archiveSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating archive schema: %w", err)
	}
	return &ListingArchive{db: db, logger: logger}, nil
}

// Close releases the connection pool.
func (a *ListingArchive) Close() error {
	return a.db.Close()
}

// SaveListings upserts a batch of records keyed by the session-stable ID,
// so re-running a scrape refreshes rather than duplicates.
func (a *ListingArchive) SaveListings(ctx context.Context, listings []models.ListingRecord) error {
	if len(listings) == 0 {
		return nil
	}

	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning archive tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamedContext(ctx, `
		INSERT INTO listings (
			id, ad_number, ad_type, status, has_photo, description,
			price, price_text, date, date_text, location, is_featured,
			listing_url, page_number
		) VALUES (
			:id, :ad_number, :ad_type, :status, :has_photo, :description,
			:price, :price_text, :date, :date_text, :location, :is_featured,
			:listing_url, :page_number
		)
		ON CONFLICT (id) DO UPDATE SET
			status      = EXCLUDED.status,
			has_photo   = EXCLUDED.has_photo,
			description = EXCLUDED.description,
			price       = EXCLUDED.price,
			price_text  = EXCLUDED.price_text,
			date        = EXCLUDED.date,
			date_text   = EXCLUDED.date_text,
			location    = EXCLUDED.location,
			is_featured = EXCLUDED.is_featured,
			listing_url = EXCLUDED.listing_url,
			page_number = EXCLUDED.page_number,
			scraped_at  = now()`)
	if err != nil {
		return fmt.Errorf("preparing archive upsert: %w", err)
	}
	defer stmt.Close()

	for _, l := range listings {
		if _, err := stmt.ExecContext(ctx, l); err != nil {
			return fmt.Errorf("archiving listing %s: %w", l.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing archive tx: %w", err)
	}
	a.logger.Info("archived listings", zap.Int("count", len(listings)))
	return nil
}
