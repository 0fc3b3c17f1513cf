package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"enterprise_sim/internal/domain"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS log_entries (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	kind TEXT NOT NULL,
	message TEXT NOT NULL,
	details TEXT NOT NULL DEFAULT '',
	logged_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_log_entries_kind ON log_entries(kind, seq);

CREATE TABLE IF NOT EXISTS metric_samples (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	sample_time TEXT NOT NULL,
	cost INTEGER NOT NULL,
	efficiency REAL NOT NULL,
	recorded_at INTEGER NOT NULL
);
`

const defaultListLimit = 200

// SampleRecord is a persisted history sample with its wall-clock time.
type SampleRecord struct {
	Seq        int64                `json:"seq"`
	RecordedAt time.Time            `json:"recordedAt"`
	Sample     domain.HistorySample `json:"sample"`
}

// Store is the audit journal. It is written from the event stream and never
// read back into the live simulation.
type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set sqlite pragma %q: %w", stmt, err)
		}
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// AppendLogEntry stores an entry once; replays of the same id are ignored.
func (s *Store) AppendLogEntry(ctx context.Context, entry domain.LogEntry) error {
	loggedAt := entry.Timestamp
	if loggedAt.IsZero() {
		loggedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO log_entries(id, kind, message, details, logged_at)
		VALUES(?, ?, ?, ?, ?)`,
		entry.ID, string(entry.Kind), entry.Message, entry.Details, loggedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("append log entry: %w", err)
	}
	return nil
}

func (s *Store) AppendSample(ctx context.Context, sample domain.HistorySample, at time.Time) error {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO metric_samples(sample_time, cost, efficiency, recorded_at)
		VALUES(?, ?, ?, ?)`,
		sample.Time, sample.Cost, sample.Efficiency, at.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("append sample: %w", err)
	}
	return nil
}

// ListLogEntries returns journaled entries newest first. An empty kind
// matches every kind.
func (s *Store) ListLogEntries(ctx context.Context, kind domain.LogKind, limit int) ([]domain.LogEntry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, kind, message, details, logged_at
		FROM log_entries
		WHERE (? = '' OR kind = ?)
		ORDER BY seq DESC
		LIMIT ?`,
		string(kind), string(kind), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list log entries: %w", err)
	}
	defer rows.Close()

	result := make([]domain.LogEntry, 0, limit)
	for rows.Next() {
		var item domain.LogEntry
		var kindRaw string
		var loggedAt int64
		if err := rows.Scan(&item.ID, &kindRaw, &item.Message, &item.Details, &loggedAt); err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		item.Kind = domain.LogKind(kindRaw)
		item.Timestamp = time.UnixMilli(loggedAt).UTC()
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate log entries: %w", err)
	}
	return result, nil
}

// ListSamples returns journaled samples newest first.
func (s *Store) ListSamples(ctx context.Context, limit int) ([]SampleRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT seq, sample_time, cost, efficiency, recorded_at
		FROM metric_samples
		ORDER BY seq DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list samples: %w", err)
	}
	defer rows.Close()

	result := make([]SampleRecord, 0, limit)
	for rows.Next() {
		var item SampleRecord
		var recordedAt int64
		if err := rows.Scan(&item.Seq, &item.Sample.Time, &item.Sample.Cost, &item.Sample.Efficiency, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		item.RecordedAt = time.UnixMilli(recordedAt).UTC()
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate samples: %w", err)
	}
	return result, nil
}

// CountLogEntries counts journaled entries per kind.
func (s *Store) CountLogEntries(ctx context.Context) (map[domain.LogKind]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM log_entries GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("count log entries: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.LogKind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan log count: %w", err)
		}
		counts[domain.LogKind(kind)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate log counts: %w", err)
	}
	return counts, nil
}
