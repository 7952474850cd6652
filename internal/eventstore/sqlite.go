package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens the history database.
// Use ":memory:" for in-memory database, or a file path for persistent storage.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, ErrDatabaseOpenFailed.Wrap(err)
	}
	if dbPath == ":memory:" {
		// Every connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, ErrInitializeSchemaFailed.Wrap(err)
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS manifests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		pass_id TEXT NOT NULL UNIQUE,
		file_name TEXT NOT NULL,
		output_path TEXT NOT NULL,
		hash TEXT NOT NULL,
		entries INTEGER NOT NULL,
		complete INTEGER NOT NULL,
		members TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		payload BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_output_path ON manifests(output_path);
	CREATE INDEX IF NOT EXISTS idx_timestamp ON manifests(timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append adds a record to the store.
func (s *SQLiteStore) Append(ctx context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	members, err := json.Marshal(r.Members)
	if err != nil {
		return ErrAppendFailed.Wrap(err)
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	complete := 0
	if r.Complete {
		complete = 1
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO manifests (pass_id, file_name, output_path, hash, entries, complete, members, timestamp, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT(pass_id) DO NOTHING`,
		r.PassID, r.FileName, r.OutputPath, r.Hash, r.Entries, complete, string(members), r.Timestamp.UnixNano(), r.Payload,
	)
	if err != nil {
		return ErrAppendFailed.Wrap(err).WithContext("pass_id", r.PassID)
	}
	return nil
}

const selectColumns = "SELECT id, pass_id, file_name, output_path, hash, entries, complete, members, timestamp, payload FROM manifests"

// Get retrieves the record of one pass.
func (s *SQLiteStore) Get(ctx context.Context, passID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE pass_id = ?", passID)
	r, err := scanRecord(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound.WithContext("pass_id", passID)
	}
	if err != nil {
		return Record{}, ErrQueryFailed.Wrap(err)
	}
	return r, nil
}

// List retrieves records newest first. limit <= 0 returns every record.
func (s *SQLiteStore) List(ctx context.Context, outputPath string, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := selectColumns
	var args []any
	if outputPath != "" {
		query += " WHERE output_path = ?"
		args = append(args, outputPath)
	}
	query += " ORDER BY id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ErrQueryFailed.Wrap(err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, ErrQueryFailed.Wrap(err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, ErrQueryFailed.Wrap(err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var r Record
	var complete int
	var members string
	var ts int64
	if err := row.Scan(&r.ID, &r.PassID, &r.FileName, &r.OutputPath, &r.Hash, &r.Entries, &complete, &members, &ts, &r.Payload); err != nil {
		return Record{}, err
	}
	r.Complete = complete == 1
	r.Timestamp = time.Unix(0, ts)
	if err := json.Unmarshal([]byte(members), &r.Members); err != nil {
		return Record{}, err
	}
	return r, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
