package leads

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/lead-crm/pkg/logging"
)

const postgresBackend = "postgres"

// pgxDB is the subset of pgxpool.Pool used by PostgresStore.
type pgxDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore persists leads in the leads table and their notes in
// lead_notes, ordered by insertion position.
type PostgresStore struct {
	db     pgxDB
	logger *logging.Logger
}

var (
	_ Store          = (*PostgresStore)(nil)
	_ SummaryQuerier = (*PostgresStore)(nil)
)

// NewPostgresStore creates a store backed by a pgx pool.
func NewPostgresStore(pool *pgxpool.Pool, logger *logging.Logger) *PostgresStore {
	if pool == nil {
		panic("leads: pgx pool required")
	}
	return NewPostgresStoreWithDB(pool, logger)
}

// NewPostgresStoreWithDB allows injecting a mock database for testing.
func NewPostgresStoreWithDB(db pgxDB, logger *logging.Logger) *PostgresStore {
	if logger == nil {
		logger = logging.Default()
	}
	return &PostgresStore{db: db, logger: logger.Component("lead_postgres_store")}
}

const pgLeadColumns = `id, name, email, phone, source, status, created_at, updated_at`

const pgInsertNote = `INSERT INTO lead_notes (id, lead_id, text, created_at) VALUES ($1, $2, $3, $4)`

func scanPGLead(row pgx.Row) (*Lead, error) {
	var (
		lead   Lead
		status string
	)
	if err := row.Scan(&lead.ID, &lead.Name, &lead.Email, &lead.Phone, &lead.Source,
		&status, &lead.CreatedAt, &lead.UpdatedAt); err != nil {
		return nil, err
	}
	lead.Status = Status(status)
	lead.CreatedAt = lead.CreatedAt.UTC()
	lead.UpdatedAt = lead.UpdatedAt.UTC()
	lead.Notes = []Note{}
	return &lead, nil
}

type pgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// loadNotes fills in notes for the given leads with one query.
func loadNotes(ctx context.Context, q pgQuerier, leads []*Lead) error {
	if len(leads) == 0 {
		return nil
	}
	byID := make(map[string]*Lead, len(leads))
	ids := make([]string, 0, len(leads))
	for _, lead := range leads {
		byID[lead.ID] = lead
		ids = append(ids, lead.ID)
	}

	rows, err := q.Query(ctx,
		`SELECT lead_id, id, text, created_at FROM lead_notes WHERE lead_id = ANY($1) ORDER BY position`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			leadID string
			note   Note
		)
		if err := rows.Scan(&leadID, &note.ID, &note.Text, &note.CreatedAt); err != nil {
			return err
		}
		note.CreatedAt = note.CreatedAt.UTC()
		if lead, ok := byID[leadID]; ok {
			lead.Notes = append(lead.Notes, note)
		}
	}
	return rows.Err()
}

// Create inserts the lead and its seed note in one transaction.
func (s *PostgresStore) Create(ctx context.Context, in NewLead) (*Lead, error) {
	if err := checkNewLead(in); err != nil {
		return nil, err
	}
	lead := buildLead(in, timestamp())

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, storageErr(postgresBackend, "create", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `INSERT INTO leads (` + pgLeadColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := tx.Exec(ctx, query,
		lead.ID, lead.Name, lead.Email, lead.Phone, lead.Source, string(lead.Status),
		lead.CreatedAt, lead.UpdatedAt,
	); err != nil {
		return nil, storageErr(postgresBackend, "create", err)
	}
	for _, note := range lead.Notes {
		if _, err := tx.Exec(ctx, pgInsertNote, note.ID, lead.ID, note.Text, note.CreatedAt); err != nil {
			return nil, storageErr(postgresBackend, "create", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, storageErr(postgresBackend, "create", err)
	}
	return lead, nil
}

// List filters in SQL and then loads notes for the matching leads.
func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]*Lead, error) {
	var (
		where []string
		args  []any
	)
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if filter.Status != "" {
		where = append(where, "status = "+next(string(filter.Status)))
	}
	if filter.Source != "" {
		where = append(where, "source = "+next(filter.Source))
	}
	if strings.TrimSpace(filter.Search) != "" {
		p := next(likePattern(filter.Search))
		where = append(where, `(LOWER(name) LIKE `+p+` OR LOWER(email) LIKE `+p+
			` OR LOWER(phone) LIKE `+p+` OR LOWER(status) LIKE `+p+`)`)
	}

	query := `SELECT ` + pgLeadColumns + ` FROM leads`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id COLLATE "C" DESC`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, storageErr(postgresBackend, "list", err)
	}
	out := []*Lead{}
	for rows.Next() {
		lead, err := scanPGLead(rows)
		if err != nil {
			rows.Close()
			return nil, storageErr(postgresBackend, "list", err)
		}
		out = append(out, lead)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, storageErr(postgresBackend, "list", err)
	}

	if err := loadNotes(ctx, s.db, out); err != nil {
		return nil, storageErr(postgresBackend, "list", err)
	}
	return out, nil
}

// GetByID fetches a lead with its notes.
func (s *PostgresStore) GetByID(ctx context.Context, id string) (*Lead, error) {
	lead, err := scanPGLead(s.db.QueryRow(ctx, `SELECT `+pgLeadColumns+` FROM leads WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, storageErr(postgresBackend, "get", err)
	}
	if err := loadNotes(ctx, s.db, []*Lead{lead}); err != nil {
		return nil, storageErr(postgresBackend, "get", err)
	}
	return lead, nil
}

// Update locks the row, applies the patch and writes the optional note in the
// same transaction.
func (s *PostgresStore) Update(ctx context.Context, id string, patch LeadPatch) (*Lead, error) {
	if err := checkPatch(patch); err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, storageErr(postgresBackend, "update", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	lead, err := scanPGLead(tx.QueryRow(ctx, `SELECT `+pgLeadColumns+` FROM leads WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, storageErr(postgresBackend, "update", err)
	}
	if err := loadNotes(ctx, tx, []*Lead{lead}); err != nil {
		return nil, storageErr(postgresBackend, "update", err)
	}

	before := len(lead.Notes)
	applyPatch(lead, patch, timestamp())

	query := `UPDATE leads SET name = $1, email = $2, phone = $3, source = $4, status = $5, updated_at = $6 WHERE id = $7`
	if _, err := tx.Exec(ctx, query,
		lead.Name, lead.Email, lead.Phone, lead.Source, string(lead.Status), lead.UpdatedAt, id,
	); err != nil {
		return nil, storageErr(postgresBackend, "update", err)
	}
	for _, note := range lead.Notes[before:] {
		if _, err := tx.Exec(ctx, pgInsertNote, note.ID, id, note.Text, note.CreatedAt); err != nil {
			return nil, storageErr(postgresBackend, "update", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, storageErr(postgresBackend, "update", err)
	}
	return lead, nil
}

// AppendNote adds a note and bumps updated_at atomically.
func (s *PostgresStore) AppendNote(ctx context.Context, id string, text string) (*Lead, error) {
	if err := checkNoteText(text); err != nil {
		return nil, err
	}
	return s.Update(ctx, id, LeadPatch{Note: &text})
}

// Delete removes the lead; notes go with it via ON DELETE CASCADE.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return storageErr(postgresBackend, "delete", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLeadNotFound
	}
	return nil
}

// Summarize computes pipeline counts with SQL aggregates.
func (s *PostgresStore) Summarize(ctx context.Context) (Summary, error) {
	var total, contacted, converted int64
	countQuery := `SELECT COUNT(*),
		COUNT(*) FILTER (WHERE status = 'contacted'),
		COUNT(*) FILTER (WHERE status = 'converted')
		FROM leads`
	if err := s.db.QueryRow(ctx, countQuery).Scan(&total, &contacted, &converted); err != nil {
		return Summary{}, storageErr(postgresBackend, "summary", err)
	}

	rows, err := s.db.Query(ctx, `SELECT source, COUNT(*) FROM leads GROUP BY source`)
	if err != nil {
		return Summary{}, storageErr(postgresBackend, "summary", err)
	}
	defer rows.Close()

	bySource := map[string]int{}
	for rows.Next() {
		var (
			source string
			count  int64
		)
		if err := rows.Scan(&source, &count); err != nil {
			return Summary{}, storageErr(postgresBackend, "summary", err)
		}
		bySource[source] = int(count)
	}
	if err := rows.Err(); err != nil {
		return Summary{}, storageErr(postgresBackend, "summary", err)
	}
	return newSummary(int(total), int(contacted), int(converted), bySource), nil
}

// Close is a no-op; the pool is owned by the caller.
func (s *PostgresStore) Close() error {
	return nil
}

// pgTimeout bounds the startup ping.
const pgTimeout = 5 * time.Second

// Ping verifies connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pgTimeout)
	defer cancel()
	var one int
	if err := s.db.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		return storageErr(postgresBackend, "ping", err)
	}
	return nil
}
