package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"mtfBreakoutBot/internal/domain"
	"mtfBreakoutBot/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements ports.TradeRepository using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/mtf_breakout.db"
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// WAL mode for better concurrency between the watchers and the dashboard
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "SQLite database ready", map[string]interface{}{"path": dbPath})

	return repo, nil
}

func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		entry_time TIMESTAMP NOT NULL,
		entry_price REAL NOT NULL,
		stop_price REAL NOT NULL,
		quantity REAL NOT NULL,
		trend_aligned INTEGER NOT NULL DEFAULT 0,
		exit_time TIMESTAMP DEFAULT NULL,
		exit_price REAL DEFAULT NULL,
		exit_reason TEXT DEFAULT NULL,
		mfe REAL DEFAULT NULL,
		mae REAL DEFAULT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_trades_symbol_entry_time ON trades (symbol, entry_time);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// CreateTrade saves a trade record and returns its assigned ID.
func (r *Repository) CreateTrade(ctx context.Context, trade *domain.Trade) (int64, error) {
	const query = `
	INSERT INTO trades (symbol, side, entry_time, entry_price, stop_price, quantity,
	                    trend_aligned, exit_time, exit_price, exit_reason, mfe, mae)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var exitTime sql.NullTime
	if !trade.ExitTime.IsZero() {
		exitTime = sql.NullTime{Time: trade.ExitTime, Valid: true}
	}
	var exitReason sql.NullString
	if trade.ExitReason != "" {
		exitReason = sql.NullString{String: string(trade.ExitReason), Valid: true}
	}

	result, err := r.db.ExecContext(ctx, query,
		trade.Symbol, string(trade.Side), trade.EntryTime, trade.EntryPrice, trade.StopPrice,
		trade.Quantity, trade.TrendAligned, exitTime, trade.ExitPrice, exitReason, trade.MFE, trade.MAE)
	if err != nil {
		return 0, fmt.Errorf("failed to insert trade for symbol %s: %w", trade.Symbol, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for trade %s: %w", trade.Symbol, err)
	}
	trade.ID = id
	r.logger.Debug(ctx, "Trade recorded", map[string]interface{}{"tradeID": id, "symbol": trade.Symbol})
	return id, nil
}

const selectColumns = `
	SELECT id, symbol, side, entry_time, entry_price, stop_price, quantity, trend_aligned,
	       exit_time, COALESCE(exit_price, 0), COALESCE(exit_reason, ''), COALESCE(mfe, 0), COALESCE(mae, 0)
	FROM trades`

// FindBySymbol retrieves the most recent trades for a symbol, up to limit.
func (r *Repository) FindBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.Trade, error) {
	query := selectColumns + ` WHERE symbol = ? ORDER BY entry_time DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades for symbol %s: %w", symbol, err)
	}
	defer rows.Close()
	return collectTrades(rows)
}

// FindAll retrieves all trades, ordered by entry time descending.
func (r *Repository) FindAll(ctx context.Context) ([]*domain.Trade, error) {
	query := selectColumns + ` ORDER BY entry_time DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query all trades: %w", err)
	}
	defer rows.Close()
	return collectTrades(rows)
}

func collectTrades(rows *sql.Rows) ([]*domain.Trade, error) {
	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade row: %w", err)
		}
		trades = append(trades, trade)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}
	return trades, nil
}

func scanTrade(rows *sql.Rows) (*domain.Trade, error) {
	var trade domain.Trade
	var side, exitReason string
	var exitTime sql.NullTime

	err := rows.Scan(
		&trade.ID, &trade.Symbol, &side, &trade.EntryTime, &trade.EntryPrice,
		&trade.StopPrice, &trade.Quantity, &trade.TrendAligned,
		&exitTime, &trade.ExitPrice, &exitReason, &trade.MFE, &trade.MAE,
	)
	if err != nil {
		return nil, err
	}
	trade.Side = domain.Side(side)
	trade.ExitReason = domain.ExitReason(exitReason)
	if exitTime.Valid {
		trade.ExitTime = exitTime.Time
	}
	return &trade, nil
}
