package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"shrinkray/internal/identity"
)

// Outcome labels a ledger entry's result.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// ErrDuplicate is returned when a successful entry already exists for an identity.
var ErrDuplicate = errors.New("identity already recorded as converted")

// Entry is one write-once conversion record.
type Entry struct {
	ID          int64
	Identity    identity.ID
	OutputPath  string
	SourceBytes int64
	OutputBytes int64
	Ratio       float64
	Outcome     Outcome
	CompletedAt time.Time
}

// Aggregate summarizes ledger contents over a time window.
type Aggregate struct {
	Total      int
	Succeeded  int
	Failed     int
	BytesSaved int64
	MeanRatio  float64
}

// Ledger manages conversion history persistence backed by SQLite. Reads may
// run concurrently from worker callbacks; writes are funneled through a
// single mutex to keep the single-writer discipline explicit.
type Ledger struct {
	db      *sql.DB
	path    string
	writeMu sync.Mutex
}

// Open initializes or connects to the history database and applies migrations.
func Open(stateDir string) (*Ledger, error) {
	dbPath := filepath.Join(stateDir, "history.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	ledger := &Ledger{db: db, path: dbPath}
	if err := ledger.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return ledger, nil
}

// Close closes the underlying database connection.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Path returns the database file location.
func (l *Ledger) Path() string { return l.path }

// IsConverted reports whether a successful entry exists for the identity.
func (l *Ledger) IsConverted(ctx context.Context, id identity.ID) (bool, error) {
	row := l.db.QueryRowContext(
		ctx,
		`SELECT EXISTS(SELECT 1 FROM history_entries WHERE identity = ? AND outcome = ?)`,
		string(id),
		OutcomeSucceeded,
	)
	var exists int
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("query converted: %w", err)
	}
	return exists == 1, nil
}

// Record appends a new entry. A second successful entry for the same identity
// returns ErrDuplicate; existing rows are never modified.
func (l *Ledger) Record(ctx context.Context, entry Entry) error {
	if !entry.Identity.Valid() {
		return fmt.Errorf("record entry: invalid identity %q", entry.Identity)
	}
	if entry.CompletedAt.IsZero() {
		entry.CompletedAt = time.Now().UTC()
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	_, err := l.db.ExecContext(
		ctx,
		`INSERT INTO history_entries (
            identity, output_path, source_bytes, output_bytes, ratio, outcome, completed_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(entry.Identity),
		nullableString(entry.OutputPath),
		entry.SourceBytes,
		entry.OutputBytes,
		entry.Ratio,
		string(entry.Outcome),
		entry.CompletedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}

// Entries returns records completed within [since, until), newest first.
// Zero bounds are open.
func (l *Ledger) Entries(ctx context.Context, since, until time.Time) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM history_entries`
	var clauses []string
	var args []any
	if !since.IsZero() {
		clauses = append(clauses, "completed_at >= ?")
		args = append(args, since.UTC().Format(time.RFC3339Nano))
	}
	if !until.IsZero() {
		clauses = append(clauses, "completed_at < ?")
		args = append(args, until.UTC().Format(time.RFC3339Nano))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY completed_at DESC"

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Stats aggregates ledger contents over a time window. Zero bounds are open.
func (l *Ledger) Stats(ctx context.Context, since, until time.Time) (Aggregate, error) {
	entries, err := l.Entries(ctx, since, until)
	if err != nil {
		return Aggregate{}, err
	}

	agg := Aggregate{Total: len(entries)}
	var ratioSum float64
	for _, entry := range entries {
		switch entry.Outcome {
		case OutcomeSucceeded:
			agg.Succeeded++
			ratioSum += entry.Ratio
			if entry.SourceBytes > entry.OutputBytes {
				agg.BytesSaved += entry.SourceBytes - entry.OutputBytes
			}
		case OutcomeFailed:
			agg.Failed++
		}
	}
	if agg.Succeeded > 0 {
		agg.MeanRatio = ratioSum / float64(agg.Succeeded)
	}
	return agg, nil
}

// Prune deletes entries completed before the cutoff and returns the number
// removed. Successful entries lose their dedup effect once pruned.
func (l *Ledger) Prune(ctx context.Context, before time.Time) (int64, error) {
	if before.IsZero() {
		return 0, fmt.Errorf("prune cutoff is required")
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	result, err := l.db.ExecContext(ctx,
		"DELETE FROM history_entries WHERE completed_at < ?",
		before.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("prune entries: %w", err)
	}
	return result.RowsAffected()
}

const entryColumns = "id, identity, output_path, source_bytes, output_bytes, ratio, outcome, completed_at"

func scanEntry(scanner interface{ Scan(dest ...any) error }) (Entry, error) {
	var (
		id          int64
		identityStr string
		outputPath  sql.NullString
		sourceBytes int64
		outputBytes int64
		ratio       float64
		outcomeStr  string
		completedAt string
	)
	if err := scanner.Scan(&id, &identityStr, &outputPath, &sourceBytes, &outputBytes, &ratio, &outcomeStr, &completedAt); err != nil {
		return Entry{}, err
	}

	entry := Entry{
		ID:          id,
		Identity:    identity.ID(identityStr),
		OutputPath:  outputPath.String,
		SourceBytes: sourceBytes,
		OutputBytes: outputBytes,
		Ratio:       ratio,
		Outcome:     Outcome(outcomeStr),
	}
	if t, err := time.Parse(time.RFC3339Nano, completedAt); err == nil {
		entry.CompletedAt = t
	}
	return entry, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique")
}
