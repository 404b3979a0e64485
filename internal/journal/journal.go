// Package journal persists spread lifecycle events to SQLite for
// analysis and audit. The engine's in-memory ledger stays
// authoritative; the journal is an append-only record.
package journal

import (
	"database/sql"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"spread-systemv1/internal/model"
)

// Journal writes leg fills and position transitions to SQLite.
type Journal struct {
	mu sync.Mutex
	db *sql.DB
}

// New opens (or creates) a SQLite journal database.
func New(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_sync=NORMAL")
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS leg_fills (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id    TEXT NOT NULL,
		spread_key  TEXT NOT NULL,
		underlying  TEXT NOT NULL,
		opt_right   TEXT NOT NULL,
		strike      INTEGER NOT NULL,
		expiry      TEXT NOT NULL,
		direction   TEXT NOT NULL,
		status      TEXT NOT NULL,
		fill_price  INTEGER NOT NULL,
		qty         INTEGER NOT NULL,
		filled_at   DATETIME NOT NULL,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS spread_events (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		spread_key  TEXT NOT NULL,
		kind        TEXT NOT NULL,
		state       TEXT NOT NULL,
		reason      TEXT,
		short_fill  INTEGER NOT NULL,
		long_fill   INTEGER NOT NULL,
		net         INTEGER NOT NULL,
		width       INTEGER NOT NULL,
		qty         INTEGER NOT NULL,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_leg_fills_key ON leg_fills(spread_key);
	CREATE INDEX IF NOT EXISTS idx_spread_events_key ON spread_events(spread_key);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[journal] opened spread journal at %s", dbPath)
	return &Journal{db: db}, nil
}

// DB exposes the handle for health probes.
func (j *Journal) DB() *sql.DB { return j.db }

// RecordLegFill persists one terminal leg event.
func (j *Journal) RecordLegFill(ev model.OrderEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(
		`INSERT INTO leg_fills (order_id, spread_key, underlying, opt_right, strike, expiry, direction, status, fill_price, qty, filled_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.OrderID,
		ev.Tag,
		ev.Leg.Underlying,
		string(ev.Leg.Right),
		ev.Leg.Strike,
		ev.Leg.Expiry.Format("2006-01-02"),
		ev.Direction,
		ev.Status,
		ev.FillPrice,
		ev.Qty,
		ev.TS.Format(time.RFC3339),
	)
	return err
}

// RecordSpread persists one position state transition.
func (j *Journal) RecordSpread(s model.OpenSpread, reason string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(
		`INSERT INTO spread_events (spread_key, kind, state, reason, short_fill, long_fill, net, width, qty)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.Key,
		string(s.Kind),
		string(s.State),
		reason,
		s.ShortFill,
		s.LongFill,
		s.Net,
		s.Width,
		s.Qty,
	)
	return err
}

// SpreadRecord represents a row from the spread_events table.
type SpreadRecord struct {
	ID     int64  `json:"id"`
	Key    string `json:"spread_key"`
	Kind   string `json:"kind"`
	State  string `json:"state"`
	Reason string `json:"reason"`
	Net    int64  `json:"net"`
	Qty    int64  `json:"qty"`
}

// GetSpreadEvents returns the last N transitions, newest first.
func (j *Journal) GetSpreadEvents(limit int) ([]SpreadRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(
		`SELECT id, spread_key, kind, state, reason, net, qty
		 FROM spread_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []SpreadRecord
	for rows.Next() {
		var r SpreadRecord
		if err := rows.Scan(&r.ID, &r.Key, &r.Kind, &r.State, &r.Reason, &r.Net, &r.Qty); err != nil {
			continue
		}
		events = append(events, r)
	}
	return events, nil
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
