// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	_ "github.com/mattn/go-sqlite3"

	"clamm-options/internal/engine"
	"clamm-options/internal/models"
)

// SQLiteStore persists engine state and the event journal using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Options table for minted option records
	CREATE TABLE IF NOT EXISTS options (
		id INTEGER PRIMARY KEY,
		tick_lower INTEGER NOT NULL,
		tick_upper INTEGER NOT NULL,
		expiry DATETIME NOT NULL,
		is_call INTEGER NOT NULL,
		owner TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Legs table, one row per leg per option, position preserved
	CREATE TABLE IF NOT EXISTS legs (
		option_id INTEGER NOT NULL,
		leg_index INTEGER NOT NULL,
		handler TEXT NOT NULL,
		market TEXT NOT NULL,
		tick_lower INTEGER NOT NULL,
		tick_upper INTEGER NOT NULL,
		liquidity TEXT NOT NULL,
		PRIMARY KEY (option_id, leg_index),
		FOREIGN KEY (option_id) REFERENCES options(id)
	);

	-- Delegations table
	CREATE TABLE IF NOT EXISTS delegates (
		owner TEXT NOT NULL,
		delegate TEXT NOT NULL,
		PRIMARY KEY (owner, delegate)
	);

	-- Volatility ids per time-to-live (seconds)
	CREATE TABLE IF NOT EXISTS volatilities (
		ttl_seconds INTEGER PRIMARY KEY,
		vol_id INTEGER NOT NULL
	);

	-- Approved collateral markets
	CREATE TABLE IF NOT EXISTS markets (
		market TEXT PRIMARY KEY
	);

	-- Approved settlers
	CREATE TABLE IF NOT EXISTS settlers (
		settler TEXT PRIMARY KEY
	);

	-- Singleton settings row
	CREATE TABLE IF NOT EXISTS settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		next_id INTEGER NOT NULL,
		fee_recipient TEXT NOT NULL DEFAULT '',
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Append-only event journal
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		at DATETIME NOT NULL,
		option_id INTEGER,
		caller TEXT,
		premium TEXT,
		fee TEXT,
		notional TEXT,
		profit TEXT,
		collateral TEXT,
		new_option_id INTEGER,
		recipient TEXT,
		field TEXT,
		value TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Create indexes for performance
	CREATE INDEX IF NOT EXISTS idx_options_owner ON options(owner);
	CREATE INDEX IF NOT EXISTS idx_options_expiry ON options(expiry);
	CREATE INDEX IF NOT EXISTS idx_legs_market ON legs(market);
	CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);
	CREATE INDEX IF NOT EXISTS idx_events_option ON events(option_id);
	CREATE INDEX IF NOT EXISTS idx_events_at ON events(at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// State Methods
// ============================================================================

// SaveState replaces the persisted engine state with a snapshot. The
// event journal is untouched.
func (s *SQLiteStore) SaveState(ctx context.Context, st engine.State) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"legs", "options", "delegates", "volatilities", "markets", "settlers"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	optStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO options (id, tick_lower, tick_upper, expiry, is_call, owner)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer optStmt.Close()

	legStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO legs (option_id, leg_index, handler, market, tick_lower, tick_upper, liquidity)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer legStmt.Close()

	for _, opt := range st.Options {
		owner := st.Owners[opt.ID]
		isCall := 0
		if opt.IsCall {
			isCall = 1
		}
		if _, err := optStmt.ExecContext(ctx, uint64(opt.ID), opt.TickLower, opt.TickUpper, opt.Expiry.UTC(), isCall, owner); err != nil {
			return fmt.Errorf("failed to insert option: %w", err)
		}
		for i, leg := range opt.Legs {
			if _, err := legStmt.ExecContext(ctx, uint64(opt.ID), i, leg.Handler, leg.Market, leg.TickLower, leg.TickUpper, leg.Liquidity.Dec()); err != nil {
				return fmt.Errorf("failed to insert leg: %w", err)
			}
		}
	}

	for owner, delegates := range st.Delegates {
		for _, delegate := range delegates {
			if _, err := tx.ExecContext(ctx, `INSERT INTO delegates (owner, delegate) VALUES (?, ?)`, owner, delegate); err != nil {
				return fmt.Errorf("failed to insert delegate: %w", err)
			}
		}
	}
	for ttl, vid := range st.TTLVols {
		if _, err := tx.ExecContext(ctx, `INSERT INTO volatilities (ttl_seconds, vol_id) VALUES (?, ?)`, int64(ttl/time.Second), vid); err != nil {
			return fmt.Errorf("failed to insert volatility: %w", err)
		}
	}
	for _, mkt := range st.ApprovedMarkets {
		if _, err := tx.ExecContext(ctx, `INSERT INTO markets (market) VALUES (?)`, mkt); err != nil {
			return fmt.Errorf("failed to insert market: %w", err)
		}
	}
	for _, settler := range st.ApprovedSettlers {
		if _, err := tx.ExecContext(ctx, `INSERT INTO settlers (settler) VALUES (?)`, settler); err != nil {
			return fmt.Errorf("failed to insert settler: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO settings (id, next_id, fee_recipient, updated_at)
		VALUES (1, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET next_id = excluded.next_id,
			fee_recipient = excluded.fee_recipient, updated_at = CURRENT_TIMESTAMP
	`, st.NextID, st.FeeRecipient); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LoadState reads the persisted engine state. An empty database loads
// as a fresh state with NextID 1.
func (s *SQLiteStore) LoadState(ctx context.Context) (engine.State, error) {
	st := engine.State{
		NextID:    1,
		Owners:    make(map[models.OptionID]string),
		Delegates: make(map[string][]string),
		TTLVols:   make(map[time.Duration]uint64),
	}

	err := s.db.QueryRowContext(ctx, `SELECT next_id, fee_recipient FROM settings WHERE id = 1`).
		Scan(&st.NextID, &st.FeeRecipient)
	switch {
	case err == nil:
		st.Initialized = true
	case err == sql.ErrNoRows:
		// Fresh database: defaults stand.
	default:
		return st, fmt.Errorf("failed to load settings: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tick_lower, tick_upper, expiry, is_call, owner
		FROM options ORDER BY id ASC
	`)
	if err != nil {
		return st, fmt.Errorf("failed to query options: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id     uint64
			opt    models.Option
			isCall int
			owner  string
		)
		if err := rows.Scan(&id, &opt.TickLower, &opt.TickUpper, &opt.Expiry, &isCall, &owner); err != nil {
			return st, fmt.Errorf("failed to scan option: %w", err)
		}
		opt.ID = models.OptionID(id)
		opt.IsCall = isCall != 0
		st.Options = append(st.Options, opt)
		st.Owners[opt.ID] = owner
	}
	if err := rows.Err(); err != nil {
		return st, fmt.Errorf("error iterating options: %w", err)
	}

	byID := make(map[models.OptionID]*models.Option, len(st.Options))
	for i := range st.Options {
		byID[st.Options[i].ID] = &st.Options[i]
	}

	legRows, err := s.db.QueryContext(ctx, `
		SELECT option_id, handler, market, tick_lower, tick_upper, liquidity
		FROM legs ORDER BY option_id ASC, leg_index ASC
	`)
	if err != nil {
		return st, fmt.Errorf("failed to query legs: %w", err)
	}
	defer legRows.Close()

	for legRows.Next() {
		var (
			optionID uint64
			leg      models.Leg
			liqDec   string
		)
		if err := legRows.Scan(&optionID, &leg.Handler, &leg.Market, &leg.TickLower, &leg.TickUpper, &liqDec); err != nil {
			return st, fmt.Errorf("failed to scan leg: %w", err)
		}
		liq, err := uint256.FromDecimal(liqDec)
		if err != nil {
			return st, fmt.Errorf("invalid liquidity %q: %w", liqDec, err)
		}
		leg.Liquidity = liq
		if opt, ok := byID[models.OptionID(optionID)]; ok {
			opt.Legs = append(opt.Legs, leg)
		}
	}
	if err := legRows.Err(); err != nil {
		return st, fmt.Errorf("error iterating legs: %w", err)
	}

	delRows, err := s.db.QueryContext(ctx, `SELECT owner, delegate FROM delegates`)
	if err != nil {
		return st, fmt.Errorf("failed to query delegates: %w", err)
	}
	defer delRows.Close()
	for delRows.Next() {
		var owner, delegate string
		if err := delRows.Scan(&owner, &delegate); err != nil {
			return st, fmt.Errorf("failed to scan delegate: %w", err)
		}
		st.Delegates[owner] = append(st.Delegates[owner], delegate)
	}
	if err := delRows.Err(); err != nil {
		return st, fmt.Errorf("error iterating delegates: %w", err)
	}

	volRows, err := s.db.QueryContext(ctx, `SELECT ttl_seconds, vol_id FROM volatilities`)
	if err != nil {
		return st, fmt.Errorf("failed to query volatilities: %w", err)
	}
	defer volRows.Close()
	for volRows.Next() {
		var seconds int64
		var vid uint64
		if err := volRows.Scan(&seconds, &vid); err != nil {
			return st, fmt.Errorf("failed to scan volatility: %w", err)
		}
		st.TTLVols[time.Duration(seconds)*time.Second] = vid
	}
	if err := volRows.Err(); err != nil {
		return st, fmt.Errorf("error iterating volatilities: %w", err)
	}

	mktRows, err := s.db.QueryContext(ctx, `SELECT market FROM markets`)
	if err != nil {
		return st, fmt.Errorf("failed to query markets: %w", err)
	}
	defer mktRows.Close()
	for mktRows.Next() {
		var mkt string
		if err := mktRows.Scan(&mkt); err != nil {
			return st, fmt.Errorf("failed to scan market: %w", err)
		}
		st.ApprovedMarkets = append(st.ApprovedMarkets, mkt)
	}
	if err := mktRows.Err(); err != nil {
		return st, fmt.Errorf("error iterating markets: %w", err)
	}

	setRows, err := s.db.QueryContext(ctx, `SELECT settler FROM settlers`)
	if err != nil {
		return st, fmt.Errorf("failed to query settlers: %w", err)
	}
	defer setRows.Close()
	for setRows.Next() {
		var settler string
		if err := setRows.Scan(&settler); err != nil {
			return st, fmt.Errorf("failed to scan settler: %w", err)
		}
		st.ApprovedSettlers = append(st.ApprovedSettlers, settler)
	}
	if err := setRows.Err(); err != nil {
		return st, fmt.Errorf("error iterating settlers: %w", err)
	}

	return st, nil
}

// ============================================================================
// Event Journal Methods
// ============================================================================

// AppendEvent appends one event to the journal.
func (s *SQLiteStore) AppendEvent(ctx context.Context, ev models.Event) error {
	dec := func(v *uint256.Int) interface{} {
		if v == nil {
			return nil
		}
		return v.Dec()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (kind, at, option_id, caller, premium, fee, notional,
			profit, collateral, new_option_id, recipient, field, value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, string(ev.Kind), ev.At.UTC(), uint64(ev.OptionID), ev.Caller,
		dec(ev.Premium), dec(ev.Fee), dec(ev.Notional),
		dec(ev.Profit), dec(ev.Collateral),
		uint64(ev.NewOptionID), ev.Recipient, ev.Field, ev.Value)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// Events returns the most recent journal entries, newest first. An
// empty kind matches every kind; limit <= 0 means no limit.
func (s *SQLiteStore) Events(ctx context.Context, kind models.EventKind, limit int) ([]models.Event, error) {
	query := `
		SELECT kind, at, option_id, caller, premium, fee, notional,
			profit, collateral, new_option_id, recipient, field, value
		FROM events
	`
	var args []interface{}
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var (
			ev                    models.Event
			kindStr               string
			optionID, newOptionID uint64
			prem, fee, notional   sql.NullString
			profit, collateral    sql.NullString
		)
		if err := rows.Scan(&kindStr, &ev.At, &optionID, &ev.Caller, &prem, &fee, &notional,
			&profit, &collateral, &newOptionID, &ev.Recipient, &ev.Field, &ev.Value); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Kind = models.EventKind(kindStr)
		ev.OptionID = models.OptionID(optionID)
		ev.NewOptionID = models.OptionID(newOptionID)
		if ev.Premium, err = parseDec(prem); err != nil {
			return nil, err
		}
		if ev.Fee, err = parseDec(fee); err != nil {
			return nil, err
		}
		if ev.Notional, err = parseDec(notional); err != nil {
			return nil, err
		}
		if ev.Profit, err = parseDec(profit); err != nil {
			return nil, err
		}
		if ev.Collateral, err = parseDec(collateral); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}

func parseDec(v sql.NullString) (*uint256.Int, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	out, err := uint256.FromDecimal(v.String)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", v.String, err)
	}
	return out, nil
}
