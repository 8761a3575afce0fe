package migration

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGooseDialect(t *testing.T) {
	for driver, want := range map[string]string{
		"postgres": "postgres",
		"pg":       "postgres",
		"mysql":    "mysql",
		"sqlite":   "sqlite3",
		"sqlite3":  "sqlite3",
	} {
		got, err := gooseDialect(driver)
		require.NoError(t, err)
		assert.Equal(t, want, got, driver)
	}

	_, err := gooseDialect("oracle")
	assert.Error(t, err)
}

func TestIsNoMigrationErr(t *testing.T) {
	assert.False(t, isNoMigrationErr(nil))
	assert.True(t, isNoMigrationErr(fmt.Errorf("up: %w", goose.ErrNoNextVersion)))
	assert.True(t, isNoMigrationErr(errors.New("no migrations found")))
	assert.False(t, isNoMigrationErr(errors.New("syntax error at or near")))
}

func TestMigrationsAreEmbedded(t *testing.T) {
	files, err := fs.Glob(migrations, "sql/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	body, err := fs.ReadFile(migrations, files[0])
	require.NoError(t, err)
	assert.Contains(t, string(body), "-- +goose Up")
	assert.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS kardex_entries")
}
