package leads

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"

	"github.com/wolfman30/lead-crm/pkg/logging"
)

const (
	sqliteBackend = "sqlite"
	// sqliteTimeLayout is fixed width so text ordering matches time ordering.
	sqliteTimeLayout = "2006-01-02T15:04:05.000000Z"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS leads (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL,
		status TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '[]',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads (created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_leads_status ON leads (status)`,
}

// sqliteLowerFunc folds case with Go's Unicode rules. SQLite's built-in
// lower() only folds ASCII, which would make search disagree with
// matchesFilter for names like "ÉLISE".
const sqliteLowerFunc = "go_lower"

func init() {
	sqlite.MustRegisterDeterministicScalarFunction(sqliteLowerFunc, 1, func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		switch v := args[0].(type) {
		case string:
			return strings.ToLower(v), nil
		case []byte:
			return strings.ToLower(string(v)), nil
		case nil:
			return nil, nil
		default:
			return v, nil
		}
	})
}

const sqliteLeadColumns = `id, name, email, phone, source, status, notes, created_at, updated_at`

// SQLiteStore is the embedded relational backend. Notes are stored as a JSON
// array column on the lead row, so every mutation is a single-row write.
type SQLiteStore struct {
	db     *sql.DB
	logger *logging.Logger
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLiteStore opens the database at path (":memory:" for an ephemeral
// database), enables WAL mode and creates the schema.
func OpenSQLiteStore(path string, logger *logging.Logger) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, storageErr(sqliteBackend, "open", fmt.Errorf("create db directory: %w", err))
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, storageErr(sqliteBackend, "open", err)
	}
	// A single connection serializes writers and keeps ":memory:" databases
	// shared across calls.
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			db.Close()
			return nil, storageErr(sqliteBackend, "open", fmt.Errorf("set WAL mode: %w", err))
		}
	}
	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, storageErr(sqliteBackend, "migrate", err)
		}
	}
	return NewSQLiteStoreWithDB(db, logger), nil
}

// NewSQLiteStoreWithDB wraps an already-prepared database handle.
func NewSQLiteStoreWithDB(db *sql.DB, logger *logging.Logger) *SQLiteStore {
	if db == nil {
		panic("leads: sqlite db required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SQLiteStore{db: db, logger: logger.Component("lead_sqlite_store")}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteLead(row rowScanner) (*Lead, error) {
	var (
		lead                 Lead
		status, notes        string
		createdAt, updatedAt string
	)
	if err := row.Scan(&lead.ID, &lead.Name, &lead.Email, &lead.Phone, &lead.Source,
		&status, &notes, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	lead.Status = Status(status)

	lead.Notes = []Note{}
	if notes != "" {
		if err := json.Unmarshal([]byte(notes), &lead.Notes); err != nil {
			return nil, fmt.Errorf("decode notes for %s: %w", lead.ID, err)
		}
	}

	var err error
	if lead.CreatedAt, err = time.Parse(sqliteTimeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if lead.UpdatedAt, err = time.Parse(sqliteTimeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &lead, nil
}

func encodeNotes(notes []Note) (string, error) {
	if notes == nil {
		notes = []Note{}
	}
	data, err := json.Marshal(notes)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Create inserts a new row.
func (s *SQLiteStore) Create(ctx context.Context, in NewLead) (*Lead, error) {
	if err := checkNewLead(in); err != nil {
		return nil, err
	}
	lead := buildLead(in, timestamp())
	notes, err := encodeNotes(lead.Notes)
	if err != nil {
		return nil, storageErr(sqliteBackend, "create", err)
	}

	query := `INSERT INTO leads (` + sqliteLeadColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query,
		lead.ID, lead.Name, lead.Email, lead.Phone, lead.Source, string(lead.Status), notes,
		lead.CreatedAt.Format(sqliteTimeLayout), lead.UpdatedAt.Format(sqliteTimeLayout),
	); err != nil {
		return nil, storageErr(sqliteBackend, "create", err)
	}
	return lead, nil
}

// List runs the filter in SQL.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]*Lead, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Source != "" {
		where = append(where, "source = ?")
		args = append(args, filter.Source)
	}
	if strings.TrimSpace(filter.Search) != "" {
		var likes []string
		for _, col := range []string{"name", "email", "phone", "status"} {
			likes = append(likes, sqliteLowerFunc+"("+col+`) LIKE ? ESCAPE '\'`)
		}
		where = append(where, "("+strings.Join(likes, " OR ")+")")
		pattern := likePattern(filter.Search)
		args = append(args, pattern, pattern, pattern, pattern)
	}

	query := `SELECT ` + sqliteLeadColumns + ` FROM leads`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(sqliteBackend, "list", err)
	}
	defer rows.Close()

	out := []*Lead{}
	for rows.Next() {
		lead, err := scanSQLiteLead(rows)
		if err != nil {
			return nil, storageErr(sqliteBackend, "list", err)
		}
		out = append(out, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(sqliteBackend, "list", err)
	}
	return out, nil
}

// GetByID fetches one row.
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (*Lead, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteLeadColumns+` FROM leads WHERE id = ?`, id)
	lead, err := scanSQLiteLead(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, storageErr(sqliteBackend, "get", err)
	}
	return lead, nil
}

// Update reads, patches and rewrites the row inside one transaction.
func (s *SQLiteStore) Update(ctx context.Context, id string, patch LeadPatch) (*Lead, error) {
	if err := checkPatch(patch); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr(sqliteBackend, "update", err)
	}
	defer func() { _ = tx.Rollback() }()

	lead, err := scanSQLiteLead(tx.QueryRowContext(ctx, `SELECT `+sqliteLeadColumns+` FROM leads WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, storageErr(sqliteBackend, "update", err)
	}

	applyPatch(lead, patch, timestamp())
	notes, err := encodeNotes(lead.Notes)
	if err != nil {
		return nil, storageErr(sqliteBackend, "update", err)
	}

	query := `UPDATE leads SET name = ?, email = ?, phone = ?, source = ?, status = ?, notes = ?, updated_at = ? WHERE id = ?`
	if _, err := tx.ExecContext(ctx, query,
		lead.Name, lead.Email, lead.Phone, lead.Source, string(lead.Status), notes,
		lead.UpdatedAt.Format(sqliteTimeLayout), id,
	); err != nil {
		return nil, storageErr(sqliteBackend, "update", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, storageErr(sqliteBackend, "update", err)
	}
	return lead, nil
}

// AppendNote adds a note through the transactional update path.
func (s *SQLiteStore) AppendNote(ctx context.Context, id string, text string) (*Lead, error) {
	if err := checkNoteText(text); err != nil {
		return nil, err
	}
	return s.Update(ctx, id, LeadPatch{Note: &text})
}

// Delete removes a row.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM leads WHERE id = ?`, id)
	if err != nil {
		return storageErr(sqliteBackend, "delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr(sqliteBackend, "delete", err)
	}
	if n == 0 {
		return ErrLeadNotFound
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
