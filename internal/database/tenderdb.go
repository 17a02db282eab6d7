package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/tenderscan/internal/model"
)

// FileName is the database file created inside the data directory.
const FileName = "tenderscan.db"

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// TenderDB stores crawl runs and their records.
type TenderDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures TenderDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the database in dbDir.
// With CreateIfNotExists unset, a missing database is an error.
func Open(dbDir string, opts Options) (*TenderDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	mode := "rwc"
	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
		mode = "rw"
	} else if err := os.MkdirAll(dbDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?mode="+mode+"&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	tdb := &TenderDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := tdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return tdb, nil
}

// Path returns the database file path.
func (tdb *TenderDB) Path() string {
	return tdb.dbPath
}

// Close closes the database connection.
func (tdb *TenderDB) Close() error {
	return tdb.db.Close()
}

func (tdb *TenderDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		base_url TEXT NOT NULL,
		quota INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL DEFAULT '',
		pages_visited INTEGER NOT NULL DEFAULT 0,
		skipped_rows INTEGER NOT NULL DEFAULT 0,
		record_count INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- One row per record; position keeps crawl order inside a run.
	CREATE TABLE IF NOT EXISTS tenders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		position INTEGER NOT NULL,
		tender_id TEXT NOT NULL,
		link TEXT NOT NULL,
		name TEXT NOT NULL,
		price TEXT,
		end_date TEXT,
		securing_the_application TEXT,
		has_branches INTEGER NOT NULL DEFAULT 0,
		fingerprint TEXT NOT NULL,
		UNIQUE(run_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_tenders_tender_id ON tenders(tender_id);
	CREATE INDEX IF NOT EXISTS idx_tenders_fingerprint ON tenders(fingerprint);

	CREATE TABLE IF NOT EXISTS branches (
		tender_row INTEGER NOT NULL REFERENCES tenders(id),
		position INTEGER NOT NULL,
		link TEXT NOT NULL,
		name TEXT NOT NULL,
		PRIMARY KEY(tender_row, position)
	);

	CREATE INDEX IF NOT EXISTS idx_branches_name ON branches(name);
	`

	_, err := tdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRun stores a run with all of its records in one transaction.
// Saving a run ID twice is an error.
func (tdb *TenderDB) SaveRun(ctx context.Context, run *model.Run) (err error) {
	tx, err := tdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO runs (id, base_url, quota, started_at, finished_at, pages_visited, skipped_rows, record_count, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.BaseURL,
		run.Quota,
		formatTimestamp(run.StartedAt),
		formatTimestamp(run.FinishedAt),
		run.PagesVisited,
		run.SkippedRows,
		len(run.Records),
		run.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	tenderStmt, err := tx.PrepareContext(ctx, `
	INSERT INTO tenders (run_id, position, tender_id, link, name, price, end_date, securing_the_application, has_branches, fingerprint)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare tender insert: %w", err)
	}
	defer tenderStmt.Close()

	branchStmt, err := tx.PrepareContext(ctx, `
	INSERT INTO branches (tender_row, position, link, name) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare branch insert: %w", err)
	}
	defer branchStmt.Close()

	for i, rec := range run.Records {
		result, err := tenderStmt.ExecContext(ctx,
			run.ID,
			i,
			rec.ID,
			rec.Link,
			rec.Name,
			nullString(rec.Price),
			nullString(rec.EndDate),
			nullString(rec.SecuringTheApplication),
			rec.Branches != nil,
			model.Fingerprint(rec),
		)
		if err != nil {
			return fmt.Errorf("failed to insert tender %q: %w", rec.ID, err)
		}

		row, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read tender row id: %w", err)
		}

		for j, b := range rec.Branches {
			if _, err := branchStmt.ExecContext(ctx, row, j, b.Link, b.Name); err != nil {
				return fmt.Errorf("failed to insert branch of tender %q: %w", rec.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

const runColumns = `id, base_url, quota, started_at, finished_at, pages_visited, skipped_rows, record_count, error`

// ListRuns returns the most recent runs first, without their records.
// A limit of zero or less returns every run.
func (tdb *TenderDB) ListRuns(ctx context.Context, limit int) ([]*model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := tdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]*model.Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns a run with its records in crawl order.
func (tdb *TenderDB) GetRun(ctx context.Context, id string) (*model.Run, error) {
	row := tdb.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	records, err := tdb.loadRecords(ctx, id)
	if err != nil {
		return nil, err
	}
	run.Records = records
	return run, nil
}

// LatestRuns returns the n most recent runs with their records, newest first.
func (tdb *TenderDB) LatestRuns(ctx context.Context, n int) ([]*model.Run, error) {
	listed, err := tdb.ListRuns(ctx, n)
	if err != nil {
		return nil, err
	}

	runs := make([]*model.Run, 0, len(listed))
	for _, r := range listed {
		run, err := tdb.GetRun(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// CompareRuns diffs the records of two stored runs.
func (tdb *TenderDB) CompareRuns(ctx context.Context, olderID, newerID string) (*model.RunDiff, error) {
	older, err := tdb.GetRun(ctx, olderID)
	if err != nil {
		return nil, err
	}
	newer, err := tdb.GetRun(ctx, newerID)
	if err != nil {
		return nil, err
	}
	return model.DiffRuns(older, newer), nil
}

// TenderSighting is one appearance of a tender in a stored run.
type TenderSighting struct {
	RunID       string
	StartedAt   time.Time
	Fingerprint string
}

// TenderHistory lists the runs a tender appeared in, oldest first.
func (tdb *TenderDB) TenderHistory(ctx context.Context, tenderID string) ([]TenderSighting, error) {
	rows, err := tdb.db.QueryContext(ctx, `
	SELECT t.run_id, r.started_at, t.fingerprint
	FROM tenders t JOIN runs r ON r.id = t.run_id
	WHERE t.tender_id = ?
	ORDER BY r.started_at ASC, t.position ASC
	`, tenderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tender history: %w", err)
	}
	defer rows.Close()

	var sightings []TenderSighting
	for rows.Next() {
		var s TenderSighting
		var startedAt string
		if err := rows.Scan(&s.RunID, &startedAt, &s.Fingerprint); err != nil {
			return nil, fmt.Errorf("failed to scan tender sighting: %w", err)
		}
		s.StartedAt = parseTimestamp(startedAt)
		sightings = append(sightings, s)
	}
	return sightings, rows.Err()
}

func (tdb *TenderDB) loadRecords(ctx context.Context, runID string) ([]model.Record, error) {
	rows, err := tdb.db.QueryContext(ctx, `
	SELECT id, tender_id, link, name, price, end_date, securing_the_application, has_branches
	FROM tenders WHERE run_id = ? ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tenders: %w", err)
	}
	defer rows.Close()

	records := make([]model.Record, 0)
	rowIDs := make([]int64, 0)
	withBranches := make(map[int]bool)

	for rows.Next() {
		var rowID int64
		var rec model.Record
		var price, endDate, security sql.NullString
		var hasBranches bool

		if err := rows.Scan(&rowID, &rec.ID, &rec.Link, &rec.Name, &price, &endDate, &security, &hasBranches); err != nil {
			return nil, fmt.Errorf("failed to scan tender: %w", err)
		}
		rec.Price = stringPtr(price)
		rec.EndDate = stringPtr(endDate)
		rec.SecuringTheApplication = stringPtr(security)
		if hasBranches {
			withBranches[len(records)] = true
		}

		records = append(records, rec)
		rowIDs = append(rowIDs, rowID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i, rowID := range rowIDs {
		if !withBranches[i] {
			continue
		}
		branches, err := tdb.loadBranches(ctx, rowID)
		if err != nil {
			return nil, err
		}
		records[i].Branches = branches
	}
	return records, nil
}

func (tdb *TenderDB) loadBranches(ctx context.Context, tenderRow int64) ([]model.Branch, error) {
	rows, err := tdb.db.QueryContext(ctx, `
	SELECT link, name FROM branches WHERE tender_row = ? ORDER BY position
	`, tenderRow)
	if err != nil {
		return nil, fmt.Errorf("failed to query branches: %w", err)
	}
	defer rows.Close()

	branches := make([]model.Branch, 0)
	for rows.Next() {
		var b model.Branch
		if err := rows.Scan(&b.Link, &b.Name); err != nil {
			return nil, fmt.Errorf("failed to scan branch: %w", err)
		}
		branches = append(branches, b)
	}
	return branches, rows.Err()
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*model.Run, error) {
	var run model.Run
	var startedAt, finishedAt string

	err := row.Scan(
		&run.ID,
		&run.BaseURL,
		&run.Quota,
		&startedAt,
		&finishedAt,
		&run.PagesVisited,
		&run.SkippedRows,
		&run.RecordCount,
		&run.ErrorMessage,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.StartedAt = parseTimestamp(startedAt)
	run.FinishedAt = parseTimestamp(finishedAt)
	run.Records = make([]model.Record, 0)
	return &run, nil
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return model.StringPtr(ns.String)
}

// timestampLayout is fixed-width so that text ordering matches time ordering.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// formatTimestamp stores times in UTC. The zero time is stored as "".
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}

// timestampFormats contains the timestamp formats that may be stored.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp parses s with the known formats and returns the zero time
// when none matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
