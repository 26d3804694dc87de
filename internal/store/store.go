// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store archives completed pipeline Results in SQLite so runs can
// be listed, re-rendered, and searched by experiment after the fact.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/AliSaadatV/AcmGENTIC/pkg/types"
)

const (
	defaultDir = "output/index"
	dbFile     = "acmgentic.db"
	timeLayout = time.RFC3339Nano
)

// ErrNotFound is returned by Get for an unknown run ID.
var ErrNotFound = errors.New("run not found")

// Store manages the run archive database.
type Store struct {
	db  *sql.DB
	dir string
}

// NewStore opens or creates the archive at cfg.Dir/acmgentic.db and creates
// the schema if it does not exist.
func NewStore(cfg types.StoreConfig) (*Store, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = defaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, dir: dir}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return filepath.Join(s.dir, dbFile)
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			chrom TEXT NOT NULL,
			pos INTEGER NOT NULL,
			ref TEXT NOT NULL,
			alt TEXT NOT NULL,
			assembly TEXT NOT NULL,
			gene_symbol TEXT,
			decision TEXT NOT NULL,
			strength TEXT,
			candidates INTEGER,
			functional INTEGER,
			failures INTEGER,
			started_at TEXT,
			finished_at TEXT,
			result TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_variant ON runs(chrom, pos, ref, alt)`,
		`CREATE TABLE IF NOT EXISTS experiments (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			pmid TEXT NOT NULL,
			assay_type TEXT,
			system TEXT,
			effect_direction TEXT,
			evaluation TEXT,
			controls_validity TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_experiments_run_id ON experiments(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_experiments_pmid ON experiments(pmid)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Save archives res. Saving a run ID again replaces the earlier record.
func (s *Store) Save(ctx context.Context, res *types.Result) error {
	if res == nil || res.RunID == "" {
		return errors.New("saving run: missing run ID")
	}
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM experiments WHERE run_id = ?`, res.RunID); err != nil {
		return fmt.Errorf("deleting old experiments: %w", err)
	}

	v := res.Variant
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, chrom, pos, ref, alt, assembly, gene_symbol, decision, strength,
			candidates, functional, failures, started_at, finished_at, result)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			chrom=excluded.chrom, pos=excluded.pos, ref=excluded.ref, alt=excluded.alt,
			assembly=excluded.assembly, gene_symbol=excluded.gene_symbol,
			decision=excluded.decision, strength=excluded.strength,
			candidates=excluded.candidates, functional=excluded.functional, failures=excluded.failures,
			started_at=excluded.started_at, finished_at=excluded.finished_at, result=excluded.result`,
		res.RunID, v.Chrom, v.Pos, v.Ref, v.Alt, string(res.Assembly), v.GeneSymbol,
		string(res.Assessment.Decision), string(res.Assessment.Strength),
		len(res.CandidatePapers), len(res.FunctionalPapers), len(res.Failures),
		formatTime(res.StartedAt), formatTime(res.FinishedAt), string(data),
	)
	if err != nil {
		return fmt.Errorf("upserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO experiments (run_id, seq, pmid, assay_type, system, effect_direction, evaluation, controls_validity)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range res.Experiments {
		_, err := stmt.ExecContext(ctx,
			res.RunID, i, e.PMID, e.AssayType, e.System,
			string(e.EffectDirection), string(e.Evaluation), e.ControlsValidity,
		)
		if err != nil {
			return fmt.Errorf("inserting experiment %d of %s: %w", i, e.PMID, err)
		}
	}

	return tx.Commit()
}

// Get returns the archived Result for runID.
func (s *Store) Get(ctx context.Context, runID string) (*types.Result, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT result FROM runs WHERE id = ?`, runID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, fmt.Errorf("looking up run: %w", err)
	}

	var res types.Result
	if err := json.Unmarshal([]byte(data), &res); err != nil {
		return nil, fmt.Errorf("decoding run %s: %w", runID, err)
	}
	return &res, nil
}

// Delete removes a run and its experiments.
func (s *Store) Delete(ctx context.Context, runID string) error {
	r, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID)
	if err != nil {
		return fmt.Errorf("deleting run: %w", err)
	}
	if n, _ := r.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
