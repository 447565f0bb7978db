package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps every table in one SQLite file.
type SQLiteStore struct {
	db *sqlx.DB

	putStmt    *sqlx.Stmt
	getStmt    *sqlx.Stmt
	deleteStmt *sqlx.Stmt
}

// NewSQLiteStore opens (or creates) the SQLite database at dbPath, applies
// schema migrations, and prepares common statements.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", dbPath)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.prepareStatements(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Close releases prepared statements and closes the DB.
func (s *SQLiteStore) Close() error {
	for _, stmt := range []*sqlx.Stmt{s.putStmt, s.getStmt, s.deleteStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sqlx.DB) error {
	// WAL lets the CLI read while another process writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS records (
            tbl TEXT NOT NULL,
            id TEXT NOT NULL,
            data TEXT NOT NULL,
            updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
            PRIMARY KEY (tbl, id)
        );`,
		`CREATE INDEX IF NOT EXISTS idx_records_updated ON records(tbl, updated_at);`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	if _, err := tx.Exec(`INSERT INTO meta(key,value) VALUES('schema_version',?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Prepared statements
// ---------------------------------------------------------------------------

func (s *SQLiteStore) prepareStatements() error {
	var err error
	if s.putStmt, err = s.db.Preparex(`INSERT INTO records(tbl,id,data,updated_at) VALUES(?,?,?,?)
        ON CONFLICT(tbl,id) DO UPDATE SET data=excluded.data, updated_at=excluded.updated_at`); err != nil {
		return err
	}
	if s.getStmt, err = s.db.Preparex(`SELECT data FROM records WHERE tbl=? AND id=?`); err != nil {
		return err
	}
	if s.deleteStmt, err = s.db.Preparex(`DELETE FROM records WHERE tbl=? AND id=?`); err != nil {
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// CRUD
// ---------------------------------------------------------------------------

// Get fetches a single document.
func (s *SQLiteStore) Get(ctx context.Context, table, id string) ([]byte, error) {
	var data string
	err := s.getStmt.GetContext(ctx, &data, table, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", table, id, err)
	}
	return []byte(data), nil
}

// GetAll returns matching documents ordered by ID.
func (s *SQLiteStore) GetAll(ctx context.Context, table string, filter Filter) ([][]byte, error) {
	var rows []string
	if err := s.db.SelectContext(ctx, &rows, `SELECT data FROM records WHERE tbl=? ORDER BY id`, table); err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	docs := make([][]byte, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, []byte(row))
	}
	return filterDocs(docs, filter)
}

// Put stores or replaces a document.
func (s *SQLiteStore) Put(ctx context.Context, table, id string, doc []byte) error {
	if err := checkKey(table, id); err != nil {
		return err
	}
	if _, err := s.putStmt.ExecContext(ctx, table, id, string(doc), time.Now().UTC()); err != nil {
		return fmt.Errorf("put %s/%s: %w", table, id, err)
	}
	return nil
}

// Patch merges fields into an existing document in one transaction.
func (s *SQLiteStore) Patch(ctx context.Context, table, id string, fields map[string]any) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var data string
	err = tx.GetContext(ctx, &data, `SELECT data FROM records WHERE tbl=? AND id=?`, table, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("patch %s/%s: %w", table, id, err)
	}
	merged, err := mergeFields([]byte(data), fields)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE records SET data=?, updated_at=? WHERE tbl=? AND id=?`,
		string(merged), time.Now().UTC(), table, id); err != nil {
		return fmt.Errorf("patch %s/%s: %w", table, id, err)
	}
	return tx.Commit()
}

// Delete removes a document.
func (s *SQLiteStore) Delete(ctx context.Context, table, id string) error {
	result, err := s.deleteStmt.ExecContext(ctx, table, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", table, id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
