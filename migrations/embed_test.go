package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(FS, ".")
	require.NoError(t, err)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}
	require.NotEmpty(t, ups)
	assert.Equal(t, ups, downs)
}

func TestLeadsSchemaMatchesStoreColumns(t *testing.T) {
	data, err := fs.ReadFile(FS, "0001_create_leads.up.sql")
	require.NoError(t, err)
	schema := string(data)

	for _, col := range []string{"id", "name", "email", "phone", "source", "status", "created_at", "updated_at", "position", "lead_id", "text"} {
		assert.Contains(t, schema, col)
	}
	assert.Contains(t, schema, "ON DELETE CASCADE")
}
