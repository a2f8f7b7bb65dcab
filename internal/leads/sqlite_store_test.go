package leads

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/lead-crm/pkg/logging"
)

var sqliteMockColumns = []string{"id", "name", "email", "phone", "source", "status", "notes", "created_at", "updated_at"}

func newMockSQLiteStore(t *testing.T) (*SQLiteStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLiteStoreWithDB(db, logging.New("error")), mock
}

func TestSQLiteStore_CreateDriverErrorIsStorageError(t *testing.T) {
	s, mock := newMockSQLiteStore(t)
	mock.ExpectExec(`INSERT INTO leads`).WillReturnError(errors.New("disk I/O error"))

	_, err := s.Create(context.Background(), NewLead{Name: "Ada", Email: "ada@example.com"})
	require.Error(t, err)
	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "sqlite", se.Backend)
	assert.Equal(t, "create", se.Op)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_ListQueryError(t *testing.T) {
	s, mock := newMockSQLiteStore(t)
	mock.ExpectQuery(`SELECT .* FROM leads WHERE status = \? ORDER BY created_at DESC, id DESC`).
		WithArgs("contacted").
		WillReturnError(sql.ErrConnDone)

	_, err := s.List(context.Background(), Filter{Status: StatusContacted})
	assert.True(t, IsStorage(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_ListSearchEscapesPattern(t *testing.T) {
	s, mock := newMockSQLiteStore(t)
	pattern := `%50\%%`
	mock.ExpectQuery(`SELECT .* FROM leads WHERE \(go_lower\(name\) LIKE`).
		WithArgs(pattern, pattern, pattern, pattern).
		WillReturnRows(sqlmock.NewRows(sqliteMockColumns))

	out, err := s.List(context.Background(), Filter{Search: " 50% "})
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_GetCorruptNotes(t *testing.T) {
	s, mock := newMockSQLiteStore(t)
	mock.ExpectQuery(`SELECT .* FROM leads WHERE id = \?`).
		WithArgs("lead-1").
		WillReturnRows(sqlmock.NewRows(sqliteMockColumns).AddRow(
			"lead-1", "Ada", "ada@example.com", "", "website", "new", "{bad",
			"2024-03-01T12:00:00.000000Z", "2024-03-01T12:00:00.000000Z",
		))

	_, err := s.GetByID(context.Background(), "lead-1")
	assert.True(t, IsStorage(err))
}

func TestSQLiteStore_UpdateMissingRollsBack(t *testing.T) {
	s, mock := newMockSQLiteStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM leads WHERE id = \?`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(sqliteMockColumns))
	mock.ExpectRollback()

	_, err := s.Update(context.Background(), "missing", LeadPatch{Status: statusPtr(StatusContacted)})
	assert.ErrorIs(t, err, ErrLeadNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_UpdateWriteFailureRollsBack(t *testing.T) {
	s, mock := newMockSQLiteStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM leads WHERE id = \?`).
		WithArgs("lead-1").
		WillReturnRows(sqlmock.NewRows(sqliteMockColumns).AddRow(
			"lead-1", "Ada", "ada@example.com", "", "website", "new", "[]",
			"2024-03-01T12:00:00.000000Z", "2024-03-01T12:00:00.000000Z",
		))
	mock.ExpectExec(`UPDATE leads SET`).WillReturnError(errors.New("database is locked"))
	mock.ExpectRollback()

	_, err := s.Update(context.Background(), "lead-1", LeadPatch{Status: statusPtr(StatusContacted), Note: strPtr("called")})
	assert.True(t, IsStorage(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_DeleteMissing(t *testing.T) {
	s, mock := newMockSQLiteStore(t)
	mock.ExpectExec(`DELETE FROM leads WHERE id = \?`).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, s.Delete(context.Background(), "missing"), ErrLeadNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_PersistsToDisk(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "crm.db")

	s, err := OpenSQLiteStore(path, logging.New("error"))
	require.NoError(t, err)
	lead, err := s.Create(ctx, NewLead{Name: "Ada", Email: "ada@example.com", Note: "seed"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := OpenSQLiteStore(path, logging.New("error"))
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.GetByID(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Name)
	require.Len(t, got.Notes, 1)
	assert.True(t, got.CreatedAt.Equal(lead.CreatedAt))
}
