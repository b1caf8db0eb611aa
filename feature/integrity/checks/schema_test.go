package checks

import (
	"errors"
	"testing"

	"entitlement-manager/core/database"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to open mock sql db: %v", err)
	}

	dialector := mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open gorm db: %v", err)
	}

	return gormDB, mock
}

func TestCheckSchema_NilDB(t *testing.T) {
	report, err := CheckSchema(nil, SchemaModels()...)
	assert.Error(t, err)
	assert.Nil(t, report)
	assert.Error(t, FixSchema(nil, SchemaModels()...))
}

func TestCheckSchema_NotATabler(t *testing.T) {
	db, _ := setupMockDB(t)
	_, err := CheckSchema(db, struct{ ID int }{})
	assert.ErrorContains(t, err, "does not implement TableName")
}

func TestCheckSchema_SQLiteMigrate(t *testing.T) {
	db, err := database.Connect(database.Config{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)

	report, err := CheckSchema(db, SchemaModels()...)
	require.NoError(t, err)
	assert.False(t, report.Matched)
	assert.Equal(t, "sqlite", report.Dialect)
	assert.True(t, report.Tables["entitlement_blobs"].Missing)
	assert.True(t, report.Tables["entitlement_attempts"].Missing)

	require.NoError(t, FixSchema(db, SchemaModels()...))

	report, err = CheckSchema(db, SchemaModels()...)
	require.NoError(t, err)
	assert.True(t, report.Matched, "%+v", report)
	assert.Equal(t, "ok", report.Tables["entitlement_blobs"].Status)
	assert.Equal(t, "ok", report.Tables["entitlement_attempts"].Status)
}

func TestCheckSchema_MySQLDrift(t *testing.T) {
	db, mock := setupMockDB(t)

	rows := sqlmock.NewRows([]string{"Field", "Type", "Null", "Key", "Default", "Extra"})
	rows.AddRow("blob_key", "varchar(255)", "NO", "PRI", nil, "")
	rows.AddRow("blob_value", "text", "YES", "", nil, "")
	mock.ExpectQuery("SHOW COLUMNS FROM `entitlement_blobs`").WillReturnRows(rows)
	mock.ExpectQuery("SHOW COLUMNS FROM `entitlement_attempts`").WillReturnError(errors.New("access denied"))

	report, err := CheckSchema(db, SchemaModels()...)
	require.NoError(t, err)
	assert.False(t, report.Matched)

	tbl := report.Tables["entitlement_blobs"]
	assert.Equal(t, "error", tbl.Status)
	assert.Contains(t, tbl.MissingColumns, "updated_at")
	require.Len(t, tbl.TypeMismatches, 1)
	assert.Equal(t, "blob_value: expected blob, got text", tbl.TypeMismatches[0])

	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "entitlement_attempts")
}

func TestGormTagParsing(t *testing.T) {
	tag := "column:purchase_token;type:varchar(255);index"
	assert.Equal(t, "purchase_token", parseGormColumn(tag))
	assert.Equal(t, "varchar(255)", parseGormType(tag))
	assert.Empty(t, parseGormType("column:created_at"))
}
