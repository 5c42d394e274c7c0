// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jcgs2503/vestbridge/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Gateway view of per-agent holdings, updated on confirmed fills
	CREATE TABLE IF NOT EXISTS positions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		agent_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		qty REAL NOT NULL,
		avg_cost REAL NOT NULL,
		asset_type TEXT NOT NULL DEFAULT 'equity',
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(agent_id, symbol)
	);

	-- Confirmed executions
	CREATE TABLE IF NOT EXISTS fills (
		id TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL,
		event_id TEXT,
		order_id TEXT,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		qty REAL NOT NULL,
		price REAL NOT NULL,
		notional REAL NOT NULL,
		timestamp DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Per-agent, per-UTC-day executed notional accumulator
	CREATE TABLE IF NOT EXISTS daily_notional (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		agent_id TEXT NOT NULL,
		day TEXT NOT NULL,
		notional REAL NOT NULL DEFAULT 0,
		trades INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(agent_id, day)
	);

	CREATE INDEX IF NOT EXISTS idx_fills_agent_time ON fills(agent_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_positions_agent ON positions(agent_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SavePosition inserts or updates an agent's position in a symbol.
func (s *SQLiteStore) SavePosition(ctx context.Context, agentID string, pos models.Position) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO positions (agent_id, symbol, qty, avg_cost, asset_type, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(agent_id, symbol) DO UPDATE SET
			qty = excluded.qty,
			avg_cost = excluded.avg_cost,
			asset_type = excluded.asset_type,
			updated_at = CURRENT_TIMESTAMP`,
		agentID, pos.Symbol, pos.Qty, pos.AvgCost, string(pos.AssetType))
	if err != nil {
		return fmt.Errorf("saving position %s/%s: %w", agentID, pos.Symbol, err)
	}
	return nil
}

// DeletePosition removes a closed position.
func (s *SQLiteStore) DeletePosition(ctx context.Context, agentID, symbol string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM positions WHERE agent_id = ? AND symbol = ?`, agentID, symbol)
	if err != nil {
		return fmt.Errorf("deleting position %s/%s: %w", agentID, symbol, err)
	}
	return nil
}

// GetPositions returns all open positions for an agent.
func (s *SQLiteStore) GetPositions(ctx context.Context, agentID string) ([]models.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, qty, avg_cost, asset_type
		FROM positions WHERE agent_id = ? ORDER BY symbol`, agentID)
	if err != nil {
		return nil, fmt.Errorf("querying positions for %s: %w", agentID, err)
	}
	defer rows.Close()

	var positions []models.Position
	for rows.Next() {
		var pos models.Position
		var assetType string
		if err := rows.Scan(&pos.Symbol, &pos.Qty, &pos.AvgCost, &assetType); err != nil {
			return nil, fmt.Errorf("scanning position: %w", err)
		}
		pos.AssetType = models.AssetType(assetType)
		positions = append(positions, pos)
	}
	return positions, rows.Err()
}

// LogFill records a confirmed execution.
func (s *SQLiteStore) LogFill(ctx context.Context, fill *Fill) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fills (id, agent_id, event_id, order_id, symbol, side, qty, price, notional, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fill.ID, fill.AgentID, fill.EventID, fill.OrderID, fill.Symbol,
		string(fill.Side), fill.Qty, fill.Price, fill.Notional, fill.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("logging fill %s: %w", fill.ID, err)
	}
	return nil
}

// GetFills returns fills matching the filter, most recent first.
func (s *SQLiteStore) GetFills(ctx context.Context, filter FillFilter) ([]Fill, error) {
	query := `SELECT id, agent_id, event_id, order_id, symbol, side, qty, price, notional, timestamp
		FROM fills WHERE 1=1`
	var args []interface{}

	if filter.AgentID != "" {
		query += " AND agent_id = ?"
		args = append(args, filter.AgentID)
	}
	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}
	if !filter.StartDate.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, filter.StartDate.UTC())
	}
	if !filter.EndDate.IsZero() {
		query += " AND timestamp <= ?"
		args = append(args, filter.EndDate.UTC())
	}
	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying fills: %w", err)
	}
	defer rows.Close()

	var fills []Fill
	for rows.Next() {
		var f Fill
		var side string
		if err := rows.Scan(&f.ID, &f.AgentID, &f.EventID, &f.OrderID, &f.Symbol,
			&side, &f.Qty, &f.Price, &f.Notional, &f.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning fill: %w", err)
		}
		f.Side = models.Side(side)
		fills = append(fills, f)
	}
	return fills, rows.Err()
}

// AddDailyNotional accumulates executed notional into the per-day counter.
// The counter only grows within a day.
func (s *SQLiteStore) AddDailyNotional(ctx context.Context, agentID, day string, notional float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_notional (agent_id, day, notional, trades, updated_at)
		VALUES (?, ?, ?, 1, CURRENT_TIMESTAMP)
		ON CONFLICT(agent_id, day) DO UPDATE SET
			notional = notional + excluded.notional,
			trades = trades + 1,
			updated_at = CURRENT_TIMESTAMP`,
		agentID, day, notional)
	if err != nil {
		return fmt.Errorf("updating daily notional %s/%s: %w", agentID, day, err)
	}
	return nil
}

// GetDailyCounter returns the accumulated counter for an agent and day.
// A missing row is returned as a zero counter, not an error.
func (s *SQLiteStore) GetDailyCounter(ctx context.Context, agentID, day string) (*DailyCounter, error) {
	counter := &DailyCounter{AgentID: agentID, Day: day}
	err := s.db.QueryRowContext(ctx, `
		SELECT notional, trades FROM daily_notional WHERE agent_id = ? AND day = ?`,
		agentID, day).Scan(&counter.Notional, &counter.Trades)
	if err == sql.ErrNoRows {
		return counter, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying daily counter %s/%s: %w", agentID, day, err)
	}
	return counter, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ensure SQLiteStore implements DataStore
var _ DataStore = (*SQLiteStore)(nil)
