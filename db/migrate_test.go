package db

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var migrationFileRegexp = regexp.MustCompile(`^(\d{6})_[a-z0-9_]+\.(up|down)\.sql$`)

// Every migration version must ship an up and a down script, and names must
// follow the golang-migrate convention or the runner silently ignores them.
func TestMigrationFilesPaired(t *testing.T) {
	entries, err := os.ReadDir(filepath.Join("migrations", "bix"))
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	directions := make(map[string][]string)
	for _, e := range entries {
		parts := migrationFileRegexp.FindStringSubmatch(e.Name())
		require.Len(t, parts, 3, "unexpected migration file name %s", e.Name())
		directions[parts[1]] = append(directions[parts[1]], parts[2])
	}

	for version, dirs := range directions {
		assert.ElementsMatch(t, []string{"up", "down"}, dirs,
			"migration version %s must have exactly one up and one down script", version)
	}
}

func TestMigrationScriptsNonEmpty(t *testing.T) {
	dir := filepath.Join("migrations", "bix")
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	for _, e := range entries {
		contents, err := os.ReadFile(filepath.Join(dir, e.Name())) // #nosec G304 -- test reads its own migration dir
		require.NoError(t, err)
		assert.NotEmpty(t, strings.TrimSpace(string(contents)), "migration %s is empty", e.Name())
	}
}

func TestRunMigrationsBadSource(t *testing.T) {
	_, err := RunMigrations("postgres://localhost/bix", "file://does/not/exist")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize migrations")
}
