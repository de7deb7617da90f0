package recorder

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists run summaries to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so dashboards can read while a refresh run writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp  INTEGER NOT NULL,
			asset      TEXT NOT NULL,
			source     TEXT,
			points     INTEGER,
			first_day  INTEGER,
			last_day   INTEGER,
			r2         REAL,
			table_file TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_asset_ts ON runs(asset, timestamp)`,

		`CREATE TABLE IF NOT EXISTS run_fits (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id    INTEGER NOT NULL REFERENCES runs(id),
			quantile  REAL NOT NULL,
			intercept REAL NOT NULL,
			slope     REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_run_fits_run ON run_fits(run_id)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordRun inserts the run row and one row per fitted quantile.
func (r *SQLiteRecorder) RecordRun(rec *RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.Exec(`INSERT INTO runs
		(timestamp, asset, source, points, first_day, last_day, r2, table_file)
		VALUES (?,?,?,?,?,?,?,?)`,
		time.Now().Unix(), rec.Asset, rec.Source, rec.Points,
		rec.FirstDay, rec.LastDay, rec.R2, rec.TableFile,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("run id: %w", err)
	}

	for _, f := range rec.Fits {
		if _, err := r.db.Exec(`INSERT INTO run_fits (run_id, quantile, intercept, slope)
			VALUES (?,?,?,?)`,
			runID, f.Q, f.Intercept, f.Slope); err != nil {
			return fmt.Errorf("insert fit q=%g: %w", f.Q, err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}
