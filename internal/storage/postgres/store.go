package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"approvalScope/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS exposure_snapshots (
	owner        TEXT        NOT NULL,
	contract     TEXT        NOT NULL,
	symbol       TEXT,
	decimals     SMALLINT    NOT NULL,
	spenders     TEXT[]      NOT NULL,
	allowance    NUMERIC(78) NOT NULL,
	balance      NUMERIC(78) NOT NULL,
	exposure     NUMERIC(78) NOT NULL,
	exposure_usd NUMERIC,
	run_id       UUID        NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (owner, contract)
)`

const upsertSnapshotSQL = `
INSERT INTO exposure_snapshots (
	owner, contract, symbol, decimals, spenders, allowance, balance, exposure, exposure_usd, run_id, updated_at
) VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8::numeric, $9::numeric, $10, now())
ON CONFLICT (owner, contract)
DO UPDATE SET
	symbol = EXCLUDED.symbol,
	decimals = EXCLUDED.decimals,
	spenders = EXCLUDED.spenders,
	allowance = EXCLUDED.allowance,
	balance = EXCLUDED.balance,
	exposure = EXCLUDED.exposure,
	exposure_usd = EXCLUDED.exposure_usd,
	run_id = EXCLUDED.run_id,
	updated_at = now()`

// pruneSnapshotsSQL drops the owner's rows that the current run did not write.
const pruneSnapshotsSQL = `DELETE FROM exposure_snapshots WHERE owner = $1 AND run_id <> $2`

// Store persists exposure reports to Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the snapshot table if needed.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate exposure_snapshots: %w", err)
	}
	return nil
}

type snapshotRow struct {
	owner       string
	contract    string
	symbol      *string
	decimals    int16
	spenders    []string
	allowance   string
	balance     string
	exposure    string
	exposureUSD *string
}

func snapshotRows(report model.ExposureReport) []snapshotRow {
	entries := report.Sorted()
	rows := make([]snapshotRow, 0, len(entries))
	for _, entry := range entries {
		spenders := make([]string, 0, len(entry.Spenders))
		for _, spender := range entry.Spenders {
			spenders = append(spenders, spender.Hex())
		}
		row := snapshotRow{
			owner:     report.Owner.Hex(),
			contract:  entry.Contract.Hex(),
			symbol:    entry.Token.Symbol,
			decimals:  int16(entry.Token.Decimals),
			spenders:  spenders,
			allowance: numeric(entry.Allowance),
			balance:   numeric(entry.Balance),
			exposure:  numeric(entry.Exposure),
		}
		if entry.ExposureUSD != nil {
			usd := entry.ExposureUSD.String()
			row.exposureUSD = &usd
		}
		rows = append(rows, row)
	}
	return rows
}

func numeric(value *big.Int) string {
	if value == nil {
		return "0"
	}
	return value.String()
}

// snapshotBatch upserts every row of report under runID and then prunes the
// owner's rows left over from earlier runs.
func snapshotBatch(report model.ExposureReport, runID uuid.UUID) *pgx.Batch {
	batch := &pgx.Batch{}
	for _, row := range snapshotRows(report) {
		batch.Queue(upsertSnapshotSQL,
			row.owner,
			row.contract,
			row.symbol,
			row.decimals,
			row.spenders,
			row.allowance,
			row.balance,
			row.exposure,
			row.exposureUSD,
			runID.String(),
		)
	}
	batch.Queue(pruneSnapshotsSQL, report.Owner.Hex(), runID.String())
	return batch
}

// SaveReport replaces the owner's snapshot with report in one transaction.
// All rows written by one call share the returned run id; contracts missing
// from report are deleted.
func (s *Store) SaveReport(ctx context.Context, report model.ExposureReport) (uuid.UUID, error) {
	runID := uuid.New()
	batch := snapshotBatch(report, runID)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return uuid.Nil, fmt.Errorf("write exposure snapshot: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return uuid.Nil, fmt.Errorf("write exposure snapshot: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("commit exposure snapshot: %w", err)
	}
	return runID, nil
}

// LastUpdated returns when a snapshot for owner was last written.
func (s *Store) LastUpdated(ctx context.Context, owner string) (time.Time, bool, error) {
	if owner == "" {
		return time.Time{}, false, fmt.Errorf("owner required")
	}
	var ts *time.Time
	row := s.pool.QueryRow(ctx, `SELECT max(updated_at) FROM exposure_snapshots WHERE owner=$1`, owner)
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	if ts == nil {
		return time.Time{}, false, nil
	}
	return *ts, true, nil
}
