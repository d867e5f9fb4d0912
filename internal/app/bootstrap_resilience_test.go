package app_test

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"webrag/internal/app"
	"webrag/internal/config"
	"webrag/internal/testutils"
)

func TestBootstrap_Resilience_DBDown(t *testing.T) {
	cfg := &config.Config{
		DBHost:                     "localhost",
		DBPort:                     54322, // Random port likely closed
		DBUser:                     "test",
		DBPass:                     "test",
		DBName:                     "test",
		BootstrapRetryAttempts:     1,
		BootstrapRetryDelaySeconds: 0,
	}

	start := time.Now()
	deps, err := app.Bootstrap(context.Background(), cfg)
	duration := time.Since(start)

	assert.Error(t, err)
	assert.Nil(t, deps)
	assert.Contains(t, err.Error(), "failed to ping db")
	assert.Less(t, duration, 2*time.Second)
}

func migrationPath() string {
	_, b, _, _ := runtime.Caller(0)
	return fmt.Sprintf("file://%s/../../migrations", filepath.Dir(b))
}

func TestBootstrap_Resilience_WeaviateDown(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	suite := testutils.NewIntegrationSuite(t, testutils.Postgres|testutils.NSQ)
	suite.Setup()
	defer suite.Teardown()

	cfg := suite.AppConfig()
	cfg.MigrationPath = migrationPath()
	cfg.VectorStore = config.VectorStoreWeaviate
	cfg.WeaviateHost = "localhost:54322" // Bad host
	cfg.WeaviateScheme = "http"
	cfg.BootstrapRetryAttempts = 2
	cfg.BootstrapRetryDelaySeconds = 1

	start := time.Now()
	deps, err := app.Bootstrap(context.Background(), cfg)
	duration := time.Since(start)

	assert.Error(t, err)
	assert.Nil(t, deps)
	assert.Contains(t, err.Error(), "weaviate schema error")
	assert.Greater(t, duration, 1*time.Second) // At least 1 delay
}
