package integrity

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"entitlement-manager/core/database"
	"entitlement-manager/core/storage/mocks"
	"entitlement-manager/feature/integrity/checks"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestApp(t *testing.T, targets Targets) *fiber.App {
	app := fiber.New()
	NewHandler(NewService(targets, zap.NewNop())).RegisterRoutes(app)
	return app
}

func TestHandleBucketCheck(t *testing.T) {
	t.Run("Missing", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("BucketExists", mock.Anything, "entitlements").Return(false, nil)
		app := setupTestApp(t, Targets{Storage: client, Bucket: "entitlements"})

		resp, err := app.Test(httptest.NewRequest("GET", "/integrity/bucket", nil))
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)

		var report checks.BucketReport
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
		assert.False(t, report.Exists)
		client.AssertNotCalled(t, "MakeBucket", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Fix", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("BucketExists", mock.Anything, "entitlements").Return(false, nil)
		client.On("MakeBucket", mock.Anything, "entitlements", mock.Anything).Return(nil)
		app := setupTestApp(t, Targets{Storage: client, Bucket: "entitlements"})

		resp, err := app.Test(httptest.NewRequest("GET", "/integrity/bucket?fix=true", nil))
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)

		var report checks.BucketReport
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
		assert.True(t, report.Created)
	})

	t.Run("NotConfigured", func(t *testing.T) {
		app := setupTestApp(t, Targets{})
		resp, err := app.Test(httptest.NewRequest("GET", "/integrity/bucket", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNotImplemented, resp.StatusCode)
	})
}

func TestHandleSchemaCheck_Fix(t *testing.T) {
	db, err := database.Connect(database.Config{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)
	app := setupTestApp(t, Targets{DB: db})

	resp, err := app.Test(httptest.NewRequest("GET", "/integrity/schema", nil))
	require.NoError(t, err)
	var report checks.SchemaReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.False(t, report.Matched)

	resp, err = app.Test(httptest.NewRequest("GET", "/integrity/schema?fix=true", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.True(t, report.Matched)
}

func TestHandleSchemaCheck_Error(t *testing.T) {
	db, _ := setupMockDB(t)
	app := setupTestApp(t, Targets{DB: db})

	// Unexpected queries fail on sqlmock, which the check records as an inspection error.
	resp, err := app.Test(httptest.NewRequest("GET", "/integrity/schema", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var report checks.SchemaReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.False(t, report.Matched)
	assert.Len(t, report.Errors, 2)
}

func TestHandleCatalogCheck(t *testing.T) {
	app := setupTestApp(t, Targets{Catalog: testCatalog(t)})

	resp, err := app.Test(httptest.NewRequest("GET", "/integrity/catalog", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var report checks.CatalogReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Equal(t, 2, report.Products)
}

func TestHandleIntegrityCheck(t *testing.T) {
	app := setupTestApp(t, Targets{Catalog: testCatalog(t)})

	resp, err := app.Test(httptest.NewRequest("GET", "/integrity", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var body map[string]map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["catalog"]["status"])
	assert.Equal(t, "skipped", body["redis"]["status"])
}

func TestHandleRedisCheck_NotConfigured(t *testing.T) {
	app := setupTestApp(t, Targets{})
	resp, err := app.Test(httptest.NewRequest("GET", "/integrity/redis", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotImplemented, resp.StatusCode)
}
