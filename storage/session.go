// Package storage persists session state (confirmed proxy, listing
// snapshot) and exports listing views.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/Ruscigno/astroscraper/models"
)

// SessionTTL is the freshness window for persisted session state. Stale
// rows are ignored and removed on read.
const SessionTTL = 30 * time.Minute

const sessionSchema = `
CREATE TABLE IF NOT EXISTS working_proxy (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	idx        INTEGER NOT NULL,
	proxy_url  TEXT NOT NULL,
	latency_ms INTEGER NOT NULL,
	saved_at   INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS listing_snapshot (
	id       INTEGER PRIMARY KEY CHECK (id = 1),
	data     TEXT NOT NULL,
	saved_at INTEGER NOT NULL
);`

// SessionStore keeps the confirmed proxy selection and the last fetched
// listing snapshot in a local sqlite database, so a restart inside the
// freshness window skips probing and fetching.
type SessionStore struct {
	db     *sqlx.DB
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// OpenSession opens (creating if needed) the session database at path.
func OpenSession(path string, logger *zap.Logger) (*SessionStore, error) {
	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening session db: %w", err)
	}
	if _, err := db.Exec(sessionSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating session schema: %w", err)
	}
	return &SessionStore{db: db, ttl: SessionTTL, logger: logger, now: time.Now}, nil
}

// Close releases the database handle.
func (s *SessionStore) Close() error {
	return s.db.Close()
}

// SaveProxy persists the confirmed selection, superseding any previous one.
func (s *SessionStore) SaveProxy(ctx context.Context, sel models.ProxySelection) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO working_proxy (id, idx, proxy_url, latency_ms, saved_at)
		 VALUES (1, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   idx = excluded.idx,
		   proxy_url = excluded.proxy_url,
		   latency_ms = excluded.latency_ms,
		   saved_at = excluded.saved_at`,
		sel.Index, sel.Proxy, sel.Latency.Milliseconds(), s.now().Unix())
	if err != nil {
		return fmt.Errorf("saving working proxy: %w", err)
	}
	s.logger.Debug("saved working proxy", zap.Int("index", sel.Index))
	return nil
}

// LoadProxy returns the persisted selection if it is still inside the
// freshness window, or nil. An expired row is deleted.
func (s *SessionStore) LoadProxy(ctx context.Context) (*models.ProxySelection, error) {
	var row struct {
		Idx       int    `db:"idx"`
		ProxyURL  string `db:"proxy_url"`
		LatencyMS int64  `db:"latency_ms"`
		SavedAt   int64  `db:"saved_at"`
	}
	err := s.db.GetContext(ctx, &row,
		`SELECT idx, proxy_url, latency_ms, saved_at FROM working_proxy WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // nothing saved yet
	}
	if err != nil {
		return nil, fmt.Errorf("loading working proxy: %w", err)
	}

	savedAt := time.Unix(row.SavedAt, 0)
	if s.now().Sub(savedAt) >= s.ttl {
		s.db.ExecContext(ctx, `DELETE FROM working_proxy WHERE id = 1`)
		s.logger.Debug("discarded expired working proxy")
		return nil, nil
	}

	return &models.ProxySelection{
		Index:       row.Idx,
		Proxy:       row.ProxyURL,
		Latency:     time.Duration(row.LatencyMS) * time.Millisecond,
		ConfirmedAt: savedAt,
	}, nil
}

// ClearProxy drops the persisted selection.
func (s *SessionStore) ClearProxy(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM working_proxy WHERE id = 1`)
	return err
}

// SaveListings persists the full record set as the session snapshot.
func (s *SessionStore) SaveListings(ctx context.Context, listings []models.ListingRecord) error {
	data, err := json.Marshal(listings)
	if err != nil {
		return fmt.Errorf("encoding listing snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO listing_snapshot (id, data, saved_at)
		 VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   data = excluded.data,
		   saved_at = excluded.saved_at`,
		string(data), s.now().Unix())
	if err != nil {
		return fmt.Errorf("saving listing snapshot: %w", err)
	}
	s.logger.Debug("saved listing snapshot", zap.Int("count", len(listings)))
	return nil
}

// LoadListings returns the snapshot if still fresh, or nil.
func (s *SessionStore) LoadListings(ctx context.Context) ([]models.ListingRecord, error) {
	var row struct {
		Data    string `db:"data"`
		SavedAt int64  `db:"saved_at"`
	}
	err := s.db.GetContext(ctx, &row,
		`SELECT data, saved_at FROM listing_snapshot WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading listing snapshot: %w", err)
	}
	if s.now().Sub(time.Unix(row.SavedAt, 0)) >= s.ttl {
		s.db.ExecContext(ctx, `DELETE FROM listing_snapshot WHERE id = 1`)
		return nil, nil
	}

	var listings []models.ListingRecord
	if err := json.Unmarshal([]byte(row.Data), &listings); err != nil {
		return nil, fmt.Errorf("decoding listing snapshot: %w", err)
	}
	return listings, nil
}
