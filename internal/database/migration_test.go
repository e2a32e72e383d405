package database

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/lib/pq"
)

func TestResolveMigrationPath(t *testing.T) {
	path := ResolveMigrationPath("")
	assert.True(t, filepath.IsAbs(path))
	assert.Equal(t, "migrations", filepath.Base(path))
}

func TestCreateMigrationFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "000001_create_conversation_logs.up.sql"), []byte("--"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "000001_create_conversation_logs.down.sql"), []byte("--"), 0o644))

	up, down, err := CreateMigrationFile(dir, "Add Session Index!")
	require.NoError(t, err)
	assert.Equal(t, "000002_add_session_index.up.sql", filepath.Base(up))
	assert.Equal(t, "000002_add_session_index.down.sql", filepath.Base(down))
	assert.FileExists(t, up)
	assert.FileExists(t, down)
}

func TestCreateMigrationFile_EmptyName(t *testing.T) {
	_, _, err := CreateMigrationFile(t.TempDir(), "!!!")
	assert.Error(t, err)
}

func TestLatestSourceVersion(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"000001_a.up.sql", "000001_a.down.sql",
		"000003_b.up.sql", "000003_b.down.sql",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644))
	}

	latest, err := latestSourceVersion("file://" + dir)
	require.NoError(t, err)
	assert.Equal(t, uint(3), latest)

	latest, err = latestSourceVersion("file://" + t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, uint(0), latest)
}

func TestMigrationManager(t *testing.T) {
	// 需要真实数据库
	if os.Getenv("TEST_DB_URL") == "" {
		t.Skip("Skipping migration test: TEST_DB_URL not set")
	}

	db, err := sql.Open("postgres", os.Getenv("TEST_DB_URL"))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Ping())

	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)

	manager, err := NewMigrationManager(db, "../../migrations", logger)
	require.NoError(t, err)
	defer manager.Close()

	require.NoError(t, manager.Up())

	status, err := manager.Status()
	require.NoError(t, err)
	assert.False(t, status.Dirty)
	assert.False(t, status.Pending)
	assert.Equal(t, status.Latest, status.Version)

	var exists bool
	err = db.QueryRow("SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'conversation_logs')").Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists)
}
