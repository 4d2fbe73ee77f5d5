// Package record implements the recall record store on SQLite.
package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // sqlite driver

	"github.com/recallwatch/recallsearch/internal/domain"
	dombatch "github.com/recallwatch/recallsearch/internal/domain/batch"
	domrec "github.com/recallwatch/recallsearch/internal/domain/record"
)

// Criteria are the hard predicates pushed down to the store. Keyword and
// fuzzy matching stay in the ranker; the store only narrows the candidate
// set with indexable filters plus the snapshot watermark.
type Criteria struct {
	Category string
	Severity domrec.Severity
	DateFrom time.Time
	DateTo   time.Time
	AsOf     time.Time
}

// Repo is the SQLite-backed record repository.
type Repo struct {
	db *sqlx.DB
}

// Open connects to the SQLite database at path and initializes the schema.
// Use ":memory:" for an ephemeral store.
func Open(path string) (*Repo, error) {
	dsn := path
	if path != ":memory:" {
		// WAL lets ranking reads proceed concurrently with ingestion writes.
		dsn = fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	}
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to record store: %w", err)
	}

	repo := &Repo{db: db}
	if err := repo.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return repo, nil
}

func (r *Repo) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS recalls (
			recall_id     TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			brand         TEXT NOT NULL DEFAULT '',
			description   TEXT NOT NULL DEFAULT '',
			hazard        TEXT NOT NULL DEFAULT '',
			severity      TEXT NOT NULL DEFAULT '',
			category      TEXT NOT NULL DEFAULT '',
			recalled_at   INTEGER NOT NULL,
			last_modified INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_recalls_last_modified ON recalls(last_modified)`,
		`CREATE INDEX IF NOT EXISTS idx_recalls_category ON recalls(category)`,
		`CREATE INDEX IF NOT EXISTS idx_recalls_recalled_at ON recalls(recalled_at)`,
	}
	for _, stmt := range statements {
		if _, err := r.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec schema statement: %w", err)
		}
	}
	return nil
}

// upsertSQL is the single atomic conflict-resolving write: insert a
// first-seen recall_id or update the mutable fields of the existing row.
const upsertSQL = `INSERT INTO recalls
	(recall_id, name, brand, description, hazard, severity, category, recalled_at, last_modified)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(recall_id) DO UPDATE SET
		name = excluded.name,
		brand = excluded.brand,
		description = excluded.description,
		hazard = excluded.hazard,
		severity = excluded.severity,
		category = excluded.category,
		recalled_at = excluded.recalled_at,
		last_modified = excluded.last_modified`

// Upsert writes a record, advancing its watermark to modifiedAt.
// Returns true if the record was first seen. The write is one conflict-
// resolving statement; the existence read inside the same transaction only
// classifies the outcome for reporting.
func (r *Repo) Upsert(ctx context.Context, rec *domrec.Record, modifiedAt time.Time) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, storeErr("begin upsert", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	created, err := upsertInTx(ctx, tx, rec, modifiedAt)
	if err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, storeErr("commit upsert", err)
	}
	return created, nil
}

// BulkUpsert applies a batch of records in one transaction with per-record
// outcome reporting. A failing record does not abort the rest of the batch.
func (r *Repo) BulkUpsert(ctx context.Context, recs []domrec.Record, modifiedAt time.Time) ([]dombatch.Result, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, storeErr("begin bulk upsert", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	results := make([]dombatch.Result, len(recs))
	for i := range recs {
		created, err := upsertInTx(ctx, tx, &recs[i], modifiedAt)
		switch {
		case err != nil:
			results[i] = dombatch.NewError(recs[i].ID(), err)
		case created:
			results[i] = dombatch.NewInserted(recs[i].ID())
		default:
			results[i] = dombatch.NewUpdated(recs[i].ID())
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, storeErr("commit bulk upsert", err)
	}
	return results, nil
}

func upsertInTx(ctx context.Context, tx *sqlx.Tx, rec *domrec.Record, modifiedAt time.Time) (bool, error) {
	var exists bool
	if err := tx.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM recalls WHERE recall_id = ?)`, rec.ID()); err != nil {
		return false, storeErr("check existing", err)
	}

	if _, err := tx.ExecContext(ctx, upsertSQL,
		rec.ID(), rec.Name(), rec.Brand(), rec.Description(), rec.Hazard(),
		string(rec.Severity()), rec.Category(),
		rec.RecalledAt().UnixMilli(), modifiedAt.UnixMilli(),
	); err != nil {
		return false, storeErr("upsert record", err)
	}
	return !exists, nil
}

// GetByID returns the record with the given ID as of the snapshot timestamp.
func (r *Repo) GetByID(ctx context.Context, id string, asOf time.Time) (domrec.Record, error) {
	var row recallRow
	err := r.db.GetContext(ctx, &row,
		`SELECT * FROM recalls WHERE recall_id = ? AND last_modified <= ?`,
		id, asOf.UnixMilli())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domrec.Record{}, domain.ErrNotFound
		}
		return domrec.Record{}, storeErr("get record", err)
	}
	return row.toDomain(), nil
}

// Get returns the current record with the given ID, ignoring the watermark.
func (r *Repo) Get(ctx context.Context, id string) (domrec.Record, error) {
	var row recallRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM recalls WHERE recall_id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domrec.Record{}, domain.ErrNotFound
		}
		return domrec.Record{}, storeErr("get record", err)
	}
	return row.toDomain(), nil
}

// Candidates returns all records passing the hard predicates and the
// watermark filter, in no particular order.
func (r *Repo) Candidates(ctx context.Context, c Criteria) ([]domrec.Record, error) {
	var (
		conds = []string{"last_modified <= ?"}
		args  = []any{c.AsOf.UnixMilli()}
	)
	if c.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, c.Category)
	}
	if c.Severity != domrec.SeverityUnspecified {
		conds = append(conds, "severity = ?")
		args = append(args, string(c.Severity))
	}
	if !c.DateFrom.IsZero() {
		conds = append(conds, "recalled_at >= ?")
		args = append(args, c.DateFrom.UnixMilli())
	}
	if !c.DateTo.IsZero() {
		conds = append(conds, "recalled_at <= ?")
		args = append(args, c.DateTo.UnixMilli())
	}

	q := "SELECT * FROM recalls WHERE " + strings.Join(conds, " AND ")

	var rows []recallRow
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, storeErr("query candidates", err)
	}

	recs := make([]domrec.Record, len(rows))
	for i := range rows {
		recs[i] = rows[i].toDomain()
	}
	return recs, nil
}

// Count returns the number of stored records.
func (r *Repo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM recalls`); err != nil {
		return 0, storeErr("count records", err)
	}
	return n, nil
}

// Ping checks store availability.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping record store: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (r *Repo) Close() error {
	return r.db.Close()
}

// storeErr marks a storage failure as retryable for the serving path.
func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}
