package leads

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/lead-crm/pkg/logging"
)

func TestFileStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "leads.json")

	s, err := NewFileStore(path, logging.New("error"))
	require.NoError(t, err)
	lead, err := s.Create(ctx, NewLead{Name: "Ada", Email: "ada@example.com", Note: "hello"})
	require.NoError(t, err)
	_, err = s.Update(ctx, lead.ID, LeadPatch{Status: statusPtr(StatusConverted), Note: strPtr("signed")})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := NewFileStore(path, logging.New("error"))
	require.NoError(t, err)
	got, err := reopened.GetByID(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConverted, got.Status)
	require.Len(t, got.Notes, 2)
	assert.Equal(t, "signed", got.Notes[1].Text)
}

func TestFileStore_DocumentLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leads.json")
	s, err := NewFileStore(path, logging.New("error"))
	require.NoError(t, err)
	_, err = s.Create(context.Background(), NewLead{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string][]map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc["leads"], 1)
	assert.Equal(t, "new", doc["leads"][0]["status"])
	assert.Equal(t, []any{}, doc["leads"][0]["notes"])
	assert.Contains(t, doc["leads"][0], "createdAt")
}

func TestFileStore_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(filepath.Join(dir, "leads.json"), logging.New("error"))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := s.Create(context.Background(), NewLead{Name: "Ada", Email: "ada@example.com"})
		require.NoError(t, err)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "leads.json", entries[0].Name())
}

func TestFileStore_EmptyFileIsEmptyStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leads.json")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	s, err := NewFileStore(path, logging.New("error"))
	require.NoError(t, err)
	all, err := s.List(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestFileStore_CorruptFileIsStorageError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leads.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileStore(path, logging.New("error"))
	require.Error(t, err)
	assert.True(t, IsStorage(err))
}

func TestFileStore_FailedWriteKeepsState(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "leads.json")
	s, err := NewFileStore(path, logging.New("error"))
	require.NoError(t, err)
	lead, err := s.Create(ctx, NewLead{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)

	// A directory at the target path makes the rename fail.
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.Mkdir(path, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(path, "keep"), []byte("x"), 0o644))

	_, err = s.Update(ctx, lead.ID, LeadPatch{Status: statusPtr(StatusContacted), Note: strPtr("called")})
	require.Error(t, err)
	assert.True(t, IsStorage(err))

	got, err := s.GetByID(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusNew, got.Status)
	assert.Empty(t, got.Notes)

	_, err = s.Create(ctx, NewLead{Name: "Grace", Email: "grace@example.com"})
	assert.True(t, IsStorage(err))
	all, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
