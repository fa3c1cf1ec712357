package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendN(t *testing.T, l Ledger, n int) []Record {
	t.Helper()
	ctx := context.Background()
	var out []Record
	for i := 0; i < n; i++ {
		rec, err := l.Append(ctx, Record{
			Action:     ActionSubmissionScored,
			EntityType: "facility",
			EntityID:   "fac-001",
			Method:     "deterministic",
			Details:    `{"hygiene_score":75}`,
		})
		require.NoError(t, err)
		out = append(out, *rec)
	}
	return out
}

func TestMemoryLedger_ChainLinks(t *testing.T) {
	l := NewMemory()
	recs := appendN(t, l, 3)

	assert.Equal(t, genesisHash, recs[0].PrevHash)
	assert.Equal(t, recs[0].Hash, recs[1].PrevHash)
	assert.Equal(t, recs[1].Hash, recs[2].PrevHash)
	assert.NoError(t, l.VerifyChain(context.Background()))
}

func TestMemoryLedger_VerifyChain_DetectsTampering(t *testing.T) {
	l := NewMemory()
	appendN(t, l, 3)

	l.tamper(1, func(rec *Record) {
		rec.Details = `{"hygiene_score":100}`
	})

	err := l.VerifyChain(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hash mismatch at entry 2")
}

func TestMemoryLedger_VerifyChain_DetectsBrokenLink(t *testing.T) {
	l := NewMemory()
	appendN(t, l, 3)

	l.tamper(2, func(rec *Record) {
		rec.PrevHash = genesisHash
		rec.Hash = computeHash(rec)
	})

	err := l.VerifyChain(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chain broken at entry 3")
}

func TestMemoryLedger_QueryFilters(t *testing.T) {
	l := NewMemory()
	ctx := context.Background()

	_, err := l.Append(ctx, Record{Action: ActionSubmissionScored, EntityType: "facility", EntityID: "fac-001", Method: "provider", Details: "{}"})
	require.NoError(t, err)
	_, err = l.Append(ctx, Record{Action: ActionCycleAdjudicated, EntityType: "facility", EntityID: "fac-001", Method: "deterministic", Details: "{}"})
	require.NoError(t, err)
	_, err = l.Append(ctx, Record{Action: ActionSignalGenerated, EntityType: "village", EntityID: "rampur", Method: "deterministic", Details: "{}"})
	require.NoError(t, err)

	byAction, err := l.Query(ctx, Filter{Action: ActionCycleAdjudicated})
	require.NoError(t, err)
	require.Len(t, byAction, 1)
	assert.Equal(t, "fac-001", byAction[0].EntityID)

	byEntity, err := l.Query(ctx, Filter{EntityType: "village"})
	require.NoError(t, err)
	require.Len(t, byEntity, 1)
	assert.Equal(t, "rampur", byEntity[0].EntityID)

	byMethod, err := l.Query(ctx, Filter{Method: "deterministic"})
	require.NoError(t, err)
	assert.Len(t, byMethod, 2)

	limited, err := l.Query(ctx, Filter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, limited, 2)
	// Newest first.
	assert.Equal(t, ActionSignalGenerated, limited[0].Action)
}

func TestSQLiteLedger_AppendQueryVerify(t *testing.T) {
	ctx := context.Background()
	l, err := NewSQLite(ctx, filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer l.Close()

	recs := appendN(t, l, 5)
	assert.Equal(t, genesisHash, recs[0].PrevHash)

	got, err := l.Query(ctx, Filter{EntityID: "fac-001"})
	require.NoError(t, err)
	require.Len(t, got, 5)
	// Newest first: the last append comes back first.
	assert.Equal(t, recs[4].ID, got[0].ID)
	assert.Equal(t, recs[4].Hash, got[0].Hash)

	assert.NoError(t, l.VerifyChain(ctx))
}

func TestSQLiteLedger_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	l, err := NewSQLite(ctx, path)
	require.NoError(t, err)
	appendN(t, l, 3)
	require.NoError(t, l.Close())

	reopened, err := NewSQLite(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	recs := appendN(t, reopened, 2)
	assert.NotEqual(t, genesisHash, recs[0].PrevHash)
	assert.NoError(t, reopened.VerifyChain(ctx))

	all, err := reopened.Query(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestSQLiteLedger_QuerySince(t *testing.T) {
	ctx := context.Background()
	l, err := NewSQLite(ctx, filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer l.Close()

	appendN(t, l, 2)

	future, err := l.Query(ctx, Filter{Since: time.Now().UTC().Add(time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, future)

	past, err := l.Query(ctx, Filter{Since: time.Now().UTC().Add(-time.Hour)})
	require.NoError(t, err)
	assert.Len(t, past, 2)
}

func TestPostgresLedger_AppendFirstRecord(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	l := NewPostgresWithPool(mock)

	mock.ExpectQuery(`SELECT hash FROM audit_ledger ORDER BY seq DESC`).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO audit_ledger`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), ActionCreditMinted, "village", "rampur",
			"deterministic", `{"credits":1.21}`, genesisHash, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rec, err := l.Append(context.Background(), Record{
		Action:     ActionCreditMinted,
		EntityType: "village",
		EntityID:   "rampur",
		Method:     "deterministic",
		Details:    `{"credits":1.21}`,
	})

	require.NoError(t, err)
	assert.Equal(t, genesisHash, rec.PrevHash)
	assert.Equal(t, computeHash(rec), rec.Hash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLedger_AppendChainsToPrevious(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	l := NewPostgresWithPool(mock)

	mock.ExpectQuery(`SELECT hash FROM audit_ledger ORDER BY seq DESC`).
		WillReturnRows(pgxmock.NewRows([]string{"hash"}).AddRow("abc123"))
	mock.ExpectExec(`INSERT INTO audit_ledger`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), ActionCycleAdjudicated, "facility", "fac-007",
			"provider", "{}", "abc123", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rec, err := l.Append(context.Background(), Record{
		Action:     ActionCycleAdjudicated,
		EntityType: "facility",
		EntityID:   "fac-007",
		Method:     "provider",
		Details:    "{}",
	})

	require.NoError(t, err)
	assert.Equal(t, "abc123", rec.PrevHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLedger_Query(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	l := NewPostgresWithPool(mock)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, timestamp, action`).
		WithArgs(ActionSignalGenerated, 100).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "timestamp", "action", "entity_type", "entity_id", "method", "details", "prev_hash", "hash",
		}).AddRow("rec-1", now.Format(time.RFC3339Nano), ActionSignalGenerated, "village", "rampur",
			"deterministic", "{}", genesisHash, "deadbeef"))

	recs, err := l.Query(context.Background(), Filter{Action: ActionSignalGenerated})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "rec-1", recs[0].ID)
	assert.True(t, recs[0].Timestamp.Equal(now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestComputeHash_Deterministic(t *testing.T) {
	rec := Record{
		ID:         "fixed-id",
		Timestamp:  time.Date(2026, 2, 14, 9, 30, 0, 0, time.UTC),
		Action:     ActionSubmissionScored,
		EntityType: "facility",
		EntityID:   "fac-001",
		Method:     "deterministic",
		Details:    `{"hygiene_score":75}`,
		PrevHash:   genesisHash,
	}
	first := computeHash(&rec)
	second := computeHash(&rec)
	assert.Equal(t, first, second)
	assert.Len(t, first, 64)

	rec.Details = `{"hygiene_score":76}`
	assert.NotEqual(t, first, computeHash(&rec))
}

func TestMarshalDetails(t *testing.T) {
	out, err := MarshalDetails(map[string]int{"score": 88})
	require.NoError(t, err)
	assert.JSONEq(t, `{"score":88}`, out)
}
