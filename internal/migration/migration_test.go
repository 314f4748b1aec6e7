package migration

import (
	"io/fs"
	"testing"

	"github.com/smallbiznis/schoolbill/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	require.NoError(t, err)

	names := map[string]bool{}
	for _, entry := range entries {
		names[entry.Name()] = true
	}
	assert.True(t, names["000001_init.up.sql"])
	assert.True(t, names["000001_init.down.sql"])
}

func TestRunCreatesTablesOnSQLite(t *testing.T) {
	conn := testutil.OpenSQLite(t)

	require.NoError(t, Run(conn))

	for _, table := range []string{
		"sessions", "course_plus", "packages", "document_counters",
		"invoices", "invoice_items", "receipts",
	} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
}
