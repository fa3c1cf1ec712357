package ledger

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteLedger implements Ledger using modernc.org/sqlite.
type SQLiteLedger struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLite opens a SQLite ledger at the given path, configures WAL mode
// and runs the migration.
func NewSQLite(ctx context.Context, dsn string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: sqlite open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "ledger: sqlite exec %s", pragma)
		}
	}

	l := &SQLiteLedger{db: db}
	if err := l.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

// Timestamps are stored as RFC3339Nano text so hashing a record after a
// round trip through the store reproduces the original bytes exactly.
// Chain order is the insert order (seq), never the timestamp.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS audit_ledger (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL UNIQUE,
	timestamp   TEXT NOT NULL,
	action      TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id   TEXT NOT NULL,
	method      TEXT NOT NULL,
	details     TEXT NOT NULL,
	prev_hash   TEXT NOT NULL,
	hash        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_ledger_action ON audit_ledger(action);
CREATE INDEX IF NOT EXISTS idx_audit_ledger_entity ON audit_ledger(entity_type, entity_id);
CREATE INDEX IF NOT EXISTS idx_audit_ledger_timestamp ON audit_ledger(timestamp);
`

func (l *SQLiteLedger) migrate(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "ledger: sqlite migrate")
}

func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

// Append is serialized with a mutex so the chain head cannot fork under
// concurrent writers.
func (l *SQLiteLedger) Append(ctx context.Context, rec Record) (*Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prevHash, err := l.lastHash(ctx)
	if err != nil {
		return nil, err
	}

	rec.ID = uuid.New().String()
	rec.Timestamp = time.Now().UTC()
	rec.PrevHash = prevHash
	rec.Hash = computeHash(&rec)

	_, err = l.db.ExecContext(ctx,
		`INSERT INTO audit_ledger (id, timestamp, action, entity_type, entity_id, method, details, prev_hash, hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Timestamp.Format(time.RFC3339Nano), rec.Action, rec.EntityType, rec.EntityID,
		rec.Method, rec.Details, rec.PrevHash, rec.Hash,
	)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: sqlite insert")
	}
	return &rec, nil
}

func (l *SQLiteLedger) lastHash(ctx context.Context) (string, error) {
	var hash sql.NullString
	err := l.db.QueryRowContext(ctx,
		`SELECT hash FROM audit_ledger ORDER BY seq DESC LIMIT 1`,
	).Scan(&hash)
	if err == sql.ErrNoRows {
		return genesisHash, nil
	}
	if err != nil {
		return "", eris.Wrap(err, "ledger: sqlite last hash")
	}
	return hash.String, nil
}

func (l *SQLiteLedger) Query(ctx context.Context, filter Filter) ([]Record, error) {
	query := `SELECT id, timestamp, action, entity_type, entity_id, method, details, prev_hash, hash
		FROM audit_ledger WHERE 1=1`
	var args []any

	if filter.Action != "" {
		query += ` AND action = ?`
		args = append(args, filter.Action)
	}
	if filter.EntityType != "" {
		query += ` AND entity_type = ?`
		args = append(args, filter.EntityType)
	}
	if filter.EntityID != "" {
		query += ` AND entity_id = ?`
		args = append(args, filter.EntityID)
	}
	if filter.Method != "" {
		query += ` AND method = ?`
		args = append(args, filter.Method)
	}
	if !filter.Since.IsZero() {
		query += ` AND timestamp >= ?`
		args = append(args, filter.Since.UTC().Format(time.RFC3339Nano))
	}
	query += ` ORDER BY seq DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: sqlite query")
	}
	defer rows.Close()

	records, err := scanSQLiteRecords(rows)
	if err != nil {
		return nil, err
	}
	return records, eris.Wrap(rows.Err(), "ledger: sqlite iterate")
}

func (l *SQLiteLedger) VerifyChain(ctx context.Context) error {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, timestamp, action, entity_type, entity_id, method, details, prev_hash, hash
		 FROM audit_ledger ORDER BY seq ASC`,
	)
	if err != nil {
		return eris.Wrap(err, "ledger: sqlite verify query")
	}
	defer rows.Close()

	records, err := scanSQLiteRecords(rows)
	if err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return eris.Wrap(err, "ledger: sqlite verify iterate")
	}
	return verifyRecords(records)
}

func scanSQLiteRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var (
			rec Record
			ts  string
		)
		if err := rows.Scan(&rec.ID, &ts, &rec.Action, &rec.EntityType, &rec.EntityID,
			&rec.Method, &rec.Details, &rec.PrevHash, &rec.Hash); err != nil {
			return nil, eris.Wrap(err, "ledger: sqlite scan")
		}
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, eris.Wrapf(err, "ledger: sqlite parse timestamp %q", ts)
		}
		rec.Timestamp = parsed
		records = append(records, rec)
	}
	return records, nil
}
