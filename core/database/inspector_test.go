package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableColumns(t *testing.T) {
	db, err := Connect(Config{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)

	err = db.Exec("CREATE TABLE entitlement_attempts (id TEXT PRIMARY KEY, user_id TEXT NOT NULL, outcome TEXT)").Error
	require.NoError(t, err)

	columns, err := TableColumns(db, "entitlement_attempts")
	require.NoError(t, err)
	assert.Len(t, columns, 3)

	assert.Equal(t, "text", columns["id"].Type)
	assert.True(t, columns["id"].Primary)
	assert.False(t, columns["user_id"].Nullable)
	assert.True(t, columns["outcome"].Nullable)

	// PRAGMA table_info returns no rows for a missing table.
	columns, err = TableColumns(db, "non_existent")
	assert.NoError(t, err)
	assert.Empty(t, columns)
}

func TestTableColumns_InvalidName(t *testing.T) {
	db, err := Connect(Config{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)

	for _, name := range []string{"", "users'); DROP TABLE x; --", "a-b", "`x`"} {
		_, err := TableColumns(db, name)
		assert.Error(t, err, name)
	}
}
