package models

import (
	"fmt"
	"time"
)

// ListingRecord is one classified ad parsed from a listings page. Records are
// immutable once parsed; a refresh replaces the whole set rather than mutating
// entries in place.
type ListingRecord struct {
	ID          string     `json:"id" db:"id"`
	AdNumber    string     `json:"ad_number" db:"ad_number"`
	AdType      string     `json:"ad_type" db:"ad_type"`
	Status      string     `json:"status" db:"status"`
	HasPhoto    bool       `json:"has_photo" db:"has_photo"`
	Description string     `json:"description" db:"description"`
	Price       *float64   `json:"price" db:"price"`
	PriceText   string     `json:"price_text" db:"price_text"`
	Date        *time.Time `json:"date" db:"date"`
	DateText    string     `json:"date_text" db:"date_text"`
	Location    string     `json:"location" db:"location"`
	IsFeatured  bool       `json:"is_featured" db:"is_featured"`
	ListingURL  string     `json:"listing_url" db:"listing_url"`
	PageNumber  int        `json:"page_number" db:"page_number"`
}

// RecordID derives the session-stable listing ID from the page it was scraped
// from and the site-assigned ad number.
func RecordID(pageNumber int, adNumber string) string {
	return fmt.Sprintf("%d_%s", pageNumber, adNumber)
}

// PageResult is the outcome of fetching and parsing a single page.
type PageResult struct {
	PageNumber int
	Listings   []ListingRecord
	Err        error
}

// Progress is emitted once per page (sequential) or per batch (concurrent),
// and a final time with Completed set.
type Progress struct {
	CurrentPage   int    `json:"current_page"`
	TotalListings int    `json:"total_listings"`
	Status        string `json:"status"`
	Error         bool   `json:"error,omitempty"`
	Completed     bool   `json:"completed,omitempty"`
}

// Batch carries the newly accumulated records after a page or batch completes.
type Batch struct {
	NewListings   []ListingRecord `json:"new_listings"`
	TotalListings int             `json:"total_listings"`
	CurrentPage   int             `json:"current_page"`
	Status        string          `json:"status"`
}

// ScrapeJob is a queued request for a full refresh of the listing set.
type ScrapeJob struct {
	ID          string `json:"id"`
	MaxPages    int    `json:"max_pages"`
	Concurrency int    `json:"concurrency"`
	Parallel    bool   `json:"parallel"`
}
