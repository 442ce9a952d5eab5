package internal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// CostLedger is an append-only record of what each transcription cost
type CostLedger interface {
	Log(ctx context.Context, chapterID int64, durationMinutes, cost float64) error
	TotalCost(ctx context.Context) (float64, error)
	ChapterCost(ctx context.Context, chapterID int64) (float64, error)
	// Entries lists rows oldest first, optionally for one chapter.
	Entries(ctx context.Context, chapterID *int64) ([]CostLogEntry, error)
	Close() error
}

// OpenLedger opens the Postgres ledger for a postgres DSN and the SQLite file otherwise
func OpenLedger(ctx context.Context, config *Config, logger zerolog.Logger) (CostLedger, error) {
	dsn := strings.TrimSpace(config.LedgerDSN)
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return OpenPostgresLedger(ctx, dsn, logger)
	}
	path := dsn
	if path == "" {
		path = config.LedgerPath()
	}
	return OpenSQLiteLedger(ctx, path)
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cost_log (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    chapter_id       INTEGER NOT NULL,
    duration_minutes REAL    NOT NULL,
    cost             REAL    NOT NULL,
    created_at       TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cost_log_chapter ON cost_log(chapter_id);
`

// SQLiteLedger keeps the ledger in a local SQLite database
type SQLiteLedger struct {
	db *sql.DB
}

// OpenSQLiteLedger opens or creates the ledger database at path
func OpenSQLiteLedger(ctx context.Context, path string) (*SQLiteLedger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting %s: %w", p, err)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating ledger schema: %w", err)
	}
	return &SQLiteLedger{db: db}, nil
}

func (l *SQLiteLedger) Log(ctx context.Context, chapterID int64, durationMinutes, cost float64) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO cost_log (chapter_id, duration_minutes, cost, created_at) VALUES (?, ?, ?, ?)`,
		chapterID, durationMinutes, cost, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("inserting cost entry: %w", err)
	}
	return nil
}

func (l *SQLiteLedger) TotalCost(ctx context.Context) (float64, error) {
	var total float64
	if err := l.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(cost), 0) FROM cost_log`).Scan(&total); err != nil {
		return 0, fmt.Errorf("summing costs: %w", err)
	}
	return total, nil
}

func (l *SQLiteLedger) ChapterCost(ctx context.Context, chapterID int64) (float64, error) {
	var total float64
	err := l.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(cost), 0) FROM cost_log WHERE chapter_id = ?`, chapterID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("summing chapter %d costs: %w", chapterID, err)
	}
	return total, nil
}

func (l *SQLiteLedger) Entries(ctx context.Context, chapterID *int64) ([]CostLogEntry, error) {
	query := `SELECT id, chapter_id, duration_minutes, cost, created_at FROM cost_log`
	var args []any
	if chapterID != nil {
		query += ` WHERE chapter_id = ?`
		args = append(args, *chapterID)
	}
	query += ` ORDER BY id`

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing cost entries: %w", err)
	}
	defer rows.Close()

	var entries []CostLogEntry
	for rows.Next() {
		var e CostLogEntry
		var created string
		if err := rows.Scan(&e.ID, &e.ChapterID, &e.DurationMinutes, &e.Cost, &created); err != nil {
			return nil, fmt.Errorf("scanning cost entry: %w", err)
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parsing created_at of cost entry %d: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS cost_log (
    id               BIGSERIAL PRIMARY KEY,
    chapter_id       BIGINT           NOT NULL,
    duration_minutes DOUBLE PRECISION NOT NULL,
    cost             DOUBLE PRECISION NOT NULL,
    created_at       TIMESTAMPTZ      NOT NULL DEFAULT now()
)`,
	`CREATE INDEX IF NOT EXISTS idx_cost_log_chapter ON cost_log(chapter_id)`,
}

// PostgresLedger keeps the ledger in a shared Postgres database
type PostgresLedger struct {
	pool *pgxpool.Pool
}

// OpenPostgresLedger connects to dsn and ensures the ledger table exists
func OpenPostgresLedger(ctx context.Context, dsn string, logger zerolog.Logger) (*PostgresLedger, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing ledger dsn: %w", err)
	}
	cfg.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to ledger database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging ledger database: %w", err)
	}
	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("creating ledger schema: %w", err)
		}
	}

	logger.Debug().Str("dsn", maskDSN(dsn)).Msg("cost ledger connected")
	return &PostgresLedger{pool: pool}, nil
}

func (l *PostgresLedger) Log(ctx context.Context, chapterID int64, durationMinutes, cost float64) error {
	_, err := l.pool.Exec(ctx,
		`INSERT INTO cost_log (chapter_id, duration_minutes, cost) VALUES ($1, $2, $3)`,
		chapterID, durationMinutes, cost)
	if err != nil {
		return fmt.Errorf("inserting cost entry: %w", err)
	}
	return nil
}

func (l *PostgresLedger) TotalCost(ctx context.Context) (float64, error) {
	var total float64
	if err := l.pool.QueryRow(ctx, `SELECT COALESCE(SUM(cost), 0) FROM cost_log`).Scan(&total); err != nil {
		return 0, fmt.Errorf("summing costs: %w", err)
	}
	return total, nil
}

func (l *PostgresLedger) ChapterCost(ctx context.Context, chapterID int64) (float64, error) {
	var total float64
	err := l.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(cost), 0) FROM cost_log WHERE chapter_id = $1`, chapterID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("summing chapter %d costs: %w", chapterID, err)
	}
	return total, nil
}

func (l *PostgresLedger) Entries(ctx context.Context, chapterID *int64) ([]CostLogEntry, error) {
	query := `SELECT id, chapter_id, duration_minutes, cost, created_at FROM cost_log`
	var args []any
	if chapterID != nil {
		query += ` WHERE chapter_id = $1`
		args = append(args, *chapterID)
	}
	query += ` ORDER BY id`

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing cost entries: %w", err)
	}
	defer rows.Close()

	var entries []CostLogEntry
	for rows.Next() {
		var e CostLogEntry
		if err := rows.Scan(&e.ID, &e.ChapterID, &e.DurationMinutes, &e.Cost, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning cost entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (l *PostgresLedger) Close() error {
	l.pool.Close()
	return nil
}

// maskDSN hides the password in a connection string for logging
func maskDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return dsn
	}
	creds := dsn[scheme+3 : at]
	if colon := strings.Index(creds, ":"); colon >= 0 {
		return dsn[:scheme+3] + creds[:colon] + ":****" + dsn[at:]
	}
	return dsn
}
