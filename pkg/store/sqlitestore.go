package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/decisiontrace/core/pkg/record"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the decision log in a SQLite file. The autoincrement
// position column preserves append order; the record chain itself still
// carries the integrity guarantee.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) a SQLite-backed store at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, storageErr("open", path, err)
	}
	s, err := NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, storageErr("migrate", path, err)
	}
	return s, nil
}

// NewSQLiteStore wraps an existing database handle and ensures the schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	query := `
    CREATE TABLE IF NOT EXISTS decision_records (
        position INTEGER PRIMARY KEY AUTOINCREMENT,
        decision_id TEXT NOT NULL UNIQUE,
        timestamp TEXT NOT NULL,
        model TEXT NOT NULL,
        config JSON NOT NULL,
        prompt TEXT NOT NULL,
        context_sources JSON NOT NULL,
        output TEXT NOT NULL,
        confidence REAL,
        risk_flags JSON NOT NULL,
        prev_hash TEXT NOT NULL,
        hash TEXT NOT NULL
    );`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

const recordColumns = `decision_id, timestamp, model, config, prompt, context_sources, output, confidence, risk_flags, prev_hash, hash`

func (s *SQLiteStore) Tail(ctx context.Context) (*record.DecisionRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM decision_records ORDER BY position DESC LIMIT 1`
	row := s.db.QueryRowContext(ctx, query)
	r, err := scanRecordRow(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, storageErr("tail", "sqlite", err)
	}
	return r, nil
}

func (s *SQLiteStore) Append(ctx context.Context, r *record.DecisionRecord) error {
	query := `INSERT INTO decision_records (` + recordColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	configJSON, err := json.Marshal(r.Config)
	if err != nil {
		return storageErr("encode", "sqlite", err)
	}
	sourcesJSON, _ := json.Marshal(r.ContextSources)
	flagsJSON, _ := json.Marshal(r.RiskFlags)

	var confidence sql.NullFloat64
	if r.Confidence != nil {
		confidence = sql.NullFloat64{Float64: *r.Confidence, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, query,
		r.DecisionID, r.Timestamp, r.Model, string(configJSON), r.Prompt,
		string(sourcesJSON), r.Output, confidence, string(flagsJSON), r.PrevHash, r.Hash,
	)
	if err != nil {
		return storageErr("insert", "sqlite", err)
	}
	return nil
}

func (s *SQLiteStore) Scan(ctx context.Context, fn func(pos int, r *record.DecisionRecord) (bool, error)) error {
	query := `SELECT ` + recordColumns + ` FROM decision_records ORDER BY position ASC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return storageErr("scan", "sqlite", err)
	}
	defer func() { _ = rows.Close() }()

	pos := 0
	for rows.Next() {
		r, err := scanRecordRow(rows.Scan)
		if err != nil {
			return storageErr("scan", "sqlite", err)
		}
		pos++
		cont, err := fn(pos, r)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return storageErr("scan", "sqlite", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func scanRecordRow(scan func(dest ...any) error) (*record.DecisionRecord, error) {
	var (
		decisionID  string
		timestamp   string
		model       string
		configJSON  string
		prompt      string
		sourcesJSON string
		output      string
		confidence  sql.NullFloat64
		flagsJSON   string
		prevHash    string
		hash        string
	)
	if err := scan(&decisionID, &timestamp, &model, &configJSON, &prompt,
		&sourcesJSON, &output, &confidence, &flagsJSON, &prevHash, &hash); err != nil {
		return nil, err
	}

	r := &record.DecisionRecord{
		DecisionID: decisionID,
		Timestamp:  timestamp,
		Model:      model,
		Prompt:     prompt,
		Output:     output,
		PrevHash:   prevHash,
		Hash:       hash,
	}
	if err := json.Unmarshal([]byte(configJSON), &r.Config); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(sourcesJSON), &r.ContextSources); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(flagsJSON), &r.RiskFlags); err != nil {
		return nil, err
	}
	if confidence.Valid {
		v := confidence.Float64
		r.Confidence = &v
	}
	return r, nil
}
