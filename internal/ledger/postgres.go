package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the subset of pgxpool.Pool the ledger uses. Satisfied by
// pgxmock in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresLedger implements Ledger using pgx.
type PostgresLedger struct {
	pool    Pool
	closeFn func()
	mu      sync.Mutex
}

// Same storage convention as the SQLite backend: timestamps as
// RFC3339Nano text for byte-stable rehashing, chain order by seq.
const postgresMigration = `
CREATE TABLE IF NOT EXISTS audit_ledger (
	seq         BIGSERIAL PRIMARY KEY,
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
`

// NewPostgres creates a PostgresLedger with a connection pool and runs the
// migration.
func NewPostgres(ctx context.Context, connString string) (*PostgresLedger, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: postgres create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "ledger: postgres ping")
	}
	if _, err := pool.Exec(ctx, postgresMigration); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "ledger: postgres migrate")
	}
	return &PostgresLedger{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests.
func NewPostgresWithPool(pool Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

func (l *PostgresLedger) Close() error {
	if l.closeFn != nil {
		l.closeFn()
	}
	return nil
}

func (l *PostgresLedger) Append(ctx context.Context, rec Record) (*Record, error) {
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

	_, err = l.pool.Exec(ctx,
		`INSERT INTO audit_ledger (id, timestamp, action, entity_type, entity_id, method, details, prev_hash, hash)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.Timestamp.Format(time.RFC3339Nano), rec.Action, rec.EntityType, rec.EntityID,
		rec.Method, rec.Details, rec.PrevHash, rec.Hash,
	)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: postgres insert")
	}
	return &rec, nil
}

func (l *PostgresLedger) lastHash(ctx context.Context) (string, error) {
	var hash string
	err := l.pool.QueryRow(ctx,
		`SELECT hash FROM audit_ledger ORDER BY seq DESC LIMIT 1`,
	).Scan(&hash)
	if eris.Is(err, pgx.ErrNoRows) {
		return genesisHash, nil
	}
	if err != nil {
		return "", eris.Wrap(err, "ledger: postgres last hash")
	}
	return hash, nil
}

func (l *PostgresLedger) Query(ctx context.Context, filter Filter) ([]Record, error) {
	query := `SELECT id, timestamp, action, entity_type, entity_id, method, details, prev_hash, hash
		FROM audit_ledger WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Action != "" {
		query += ` AND action = ` + arg(filter.Action)
	}
	if filter.EntityType != "" {
		query += ` AND entity_type = ` + arg(filter.EntityType)
	}
	if filter.EntityID != "" {
		query += ` AND entity_id = ` + arg(filter.EntityID)
	}
	if filter.Method != "" {
		query += ` AND method = ` + arg(filter.Method)
	}
	if !filter.Since.IsZero() {
		query += ` AND timestamp >= ` + arg(filter.Since.UTC().Format(time.RFC3339Nano))
	}
	query += ` ORDER BY seq DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ` + arg(limit)

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: postgres query")
	}
	defer rows.Close()

	records, err := scanPostgresRecords(rows)
	if err != nil {
		return nil, err
	}
	return records, eris.Wrap(rows.Err(), "ledger: postgres iterate")
}

func (l *PostgresLedger) VerifyChain(ctx context.Context) error {
	rows, err := l.pool.Query(ctx,
		`SELECT id, timestamp, action, entity_type, entity_id, method, details, prev_hash, hash
		 FROM audit_ledger ORDER BY seq ASC`,
	)
	if err != nil {
		return eris.Wrap(err, "ledger: postgres verify query")
	}
	defer rows.Close()

	records, err := scanPostgresRecords(rows)
	if err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return eris.Wrap(err, "ledger: postgres verify iterate")
	}
	return verifyRecords(records)
}

func scanPostgresRecords(rows pgx.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var (
			rec Record
			ts  string
		)
		if err := rows.Scan(&rec.ID, &ts, &rec.Action, &rec.EntityType, &rec.EntityID,
			&rec.Method, &rec.Details, &rec.PrevHash, &rec.Hash); err != nil {
			return nil, eris.Wrap(err, "ledger: postgres scan")
		}
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, eris.Wrapf(err, "ledger: postgres parse timestamp %q", ts)
		}
		rec.Timestamp = parsed
		records = append(records, rec)
	}
	return records, nil
}
