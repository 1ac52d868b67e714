package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSQLiteFilesystemWithDetector_AllowsLocalFS(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "tasks.db")
	err := validateSQLiteFilesystemWithDetector(dbPath, func(string) (string, error) {
		return "0xef53", nil
	})
	assert.NoError(t, err)
}

func TestValidateSQLiteFilesystemWithDetector_RejectsNetworkFS(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "tasks.db")
	err := validateSQLiteFilesystemWithDetector(dbPath, func(string) (string, error) {
		return "nfs", nil
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, "nfs")
	assert.ErrorContains(t, err, "SQLite requires a local filesystem")
	assert.ErrorContains(t, err, "serve.db_path")
}

func TestValidateSQLiteFilesystemWithDetector_UsesNearestExistingPath(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	dbPath := filepath.Join(root, "data", "db", "tasks.db")

	var inspected string
	err := validateSQLiteFilesystemWithDetector(dbPath, func(path string) (string, error) {
		inspected = path
		return "0xef53", nil
	})
	require.NoError(t, err)
	assert.Equal(t, root, inspected)
}

func TestIsNetworkFilesystem(t *testing.T) {
	t.Parallel()

	cases := []struct {
		fs   string
		want bool
	}{
		{"nfs", true},
		{"CIFS", true},
		{" smb2 ", true},
		{"0xef53", false},
		{"unknown", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, isNetworkFilesystem(tc.fs), tc.fs)
	}
}
