package recorder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"ATHScanner/internal/logger"
	"ATHScanner/internal/model"
)

// SQLStore keeps the history of scans and their matches in SQLite or
// PostgreSQL.
type SQLStore struct {
	db     *sqlx.DB
	driver string
	mu     sync.Mutex
	log    *logrus.Entry
}

// ScanSummary is one row of the scans table.
type ScanSummary struct {
	ScanID       string `db:"scan_id" json:"scan_id"`
	ScannedAt    int64  `db:"scanned_at" json:"scanned_at"`
	TotalScanned int    `db:"total_scanned" json:"total_scanned"`
	ATHCount     int    `db:"ath_count" json:"ath_count"`
	Source       string `db:"source" json:"source"`
	DurationMS   int64  `db:"duration_ms" json:"duration_ms"`
}

type matchRow struct {
	ScanID      string  `db:"scan_id"`
	Symbol      string  `db:"symbol"`
	Name        string  `db:"name"`
	Exchange    string  `db:"exchange"`
	Series      string  `db:"series"`
	Price       float64 `db:"price"`
	ATH         float64 `db:"ath"`
	EvaluatedAt int64   `db:"evaluated_at"`
}

// OpenSQLStore opens (or creates) the database and runs migrations.
// driver is "sqlite" or "postgres".
func OpenSQLStore(driver, dsn string) (*SQLStore, error) {
	switch driver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == "sqlite" {
		// WAL lets the API read while a scan is being written.
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
		db.SetMaxOpenConns(1)
	} else if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	s := &SQLStore{db: db, driver: driver, log: logger.GetLogger().WithComponent("recorder")}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s.log.Infof("%s scan history opened", driver)
	return s, nil
}

func (s *SQLStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scans (
			scan_id       TEXT PRIMARY KEY,
			scanned_at    BIGINT NOT NULL,
			total_scanned INTEGER NOT NULL,
			ath_count     INTEGER NOT NULL,
			source        TEXT,
			duration_ms   BIGINT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scans_at ON scans(scanned_at)`,

		`CREATE TABLE IF NOT EXISTS scan_matches (
			scan_id      TEXT NOT NULL REFERENCES scans(scan_id),
			symbol       TEXT NOT NULL,
			name         TEXT,
			exchange     TEXT,
			series       TEXT,
			price        DOUBLE PRECISION,
			ath          DOUBLE PRECISION,
			evaluated_at BIGINT,
			PRIMARY KEY (scan_id, symbol)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_symbol ON scan_matches(symbol)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

func (s *SQLStore) Publish(ctx context.Context, report *model.ScanReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	summary := ScanSummary{
		ScanID:       report.ScanID,
		ScannedAt:    report.ScanTimestamp.Unix(),
		TotalScanned: report.TotalScanned,
		ATHCount:     len(report.Matches),
		Source:       report.SourceLabel,
		DurationMS:   report.Duration.Milliseconds(),
	}
	if _, err := tx.NamedExecContext(ctx, `INSERT INTO scans
		(scan_id, scanned_at, total_scanned, ath_count, source, duration_ms)
		VALUES (:scan_id, :scanned_at, :total_scanned, :ath_count, :source, :duration_ms)`, summary); err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}

	for _, m := range report.Matches {
		row := matchRow{
			ScanID:      report.ScanID,
			Symbol:      m.InstrumentID,
			Name:        m.DisplayName,
			Exchange:    m.Exchange,
			Series:      m.Class,
			Price:       m.LatestPrice,
			ATH:         m.AllTimeHigh,
			EvaluatedAt: m.EvaluatedAt.Unix(),
		}
		if _, err := tx.NamedExecContext(ctx, `INSERT INTO scan_matches
			(scan_id, symbol, name, exchange, series, price, ath, evaluated_at)
			VALUES (:scan_id, :symbol, :name, :exchange, :series, :price, :ath, :evaluated_at)`, row); err != nil {
			return fmt.Errorf("insert match %s: %w", m.InstrumentID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLStore) UpdateProgress(_ model.ScanProgress) {}

// History returns the most recent scans, newest first.
func (s *SQLStore) History(ctx context.Context, limit int) ([]ScanSummary, error) {
	if limit <= 0 {
		limit = 30
	}
	var out []ScanSummary
	q := s.db.Rebind(`SELECT scan_id, scanned_at, total_scanned, ath_count, source, duration_ms
		FROM scans ORDER BY scanned_at DESC LIMIT ?`)
	if err := s.db.SelectContext(ctx, &out, q, limit); err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	return out, nil
}

// Matches returns the matches of one scan in canonical order.
func (s *SQLStore) Matches(ctx context.Context, scanID string) ([]model.MatchRecord, error) {
	var rows []matchRow
	q := s.db.Rebind(`SELECT scan_id, symbol, name, exchange, series, price, ath, evaluated_at
		FROM scan_matches WHERE scan_id = ? ORDER BY exchange, symbol`)
	if err := s.db.SelectContext(ctx, &rows, q, scanID); err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	out := make([]model.MatchRecord, len(rows))
	for i, r := range rows {
		out[i] = model.MatchRecord{
			InstrumentID: r.Symbol,
			DisplayName:  r.Name,
			Exchange:     r.Exchange,
			Class:        r.Series,
			LatestPrice:  r.Price,
			AllTimeHigh:  r.ATH,
			EvaluatedAt:  time.Unix(r.EvaluatedAt, 0),
		}
	}
	return out, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
