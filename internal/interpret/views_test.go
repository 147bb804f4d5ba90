package interpret

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultViewRegistryResolvesCanonicalAndAliases(t *testing.T) {
	t.Parallel()

	registry := DefaultViewRegistry()

	cases := []struct {
		phrase string
		want   string
	}{
		{"dashboard", "DASHBOARD"},
		{"home", "DASHBOARD"},
		{"Config", "CONFIGURATION"},
		{"settings!", "CONFIGURATION"},
		{"transactions", "TRANSACTIONS"},
		{"history", "TRANSACTIONS"},
		{"stats", "ANALYTICS"},
	}
	for _, tc := range cases {
		view, ok := registry.Resolve(tc.phrase)
		require.True(t, ok, "phrase %q should resolve", tc.phrase)
		assert.Equal(t, tc.want, view)
	}

	_, ok := registry.Resolve("basement")
	assert.False(t, ok)
	_, ok = registry.Resolve("")
	assert.False(t, ok)
}

func TestNewViewRegistryDropsAliasesToUnknownViews(t *testing.T) {
	t.Parallel()

	registry := NewViewRegistry(
		[]string{"LOBBY"},
		map[string]string{
			"entrance": "LOBBY",
			"vault":    "BASEMENT",
		},
	)

	view, ok := registry.Resolve("entrance")
	require.True(t, ok)
	assert.Equal(t, "LOBBY", view)

	_, ok = registry.Resolve("vault")
	assert.False(t, ok)
}

func TestLoadViewRegistryFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "views.yaml")
	contents := `
views:
  - lobby
  - vault
aliases:
  entrance: lobby
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	registry, err := LoadViewRegistry(path)
	require.NoError(t, err)

	view, ok := registry.Resolve("entrance")
	require.True(t, ok)
	assert.Equal(t, "LOBBY", view)

	view, ok = registry.Resolve("VAULT")
	require.True(t, ok)
	assert.Equal(t, "VAULT", view)
}

func TestLoadViewRegistryMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	registry, err := LoadViewRegistry(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	view, ok := registry.Resolve("dashboard")
	require.True(t, ok)
	assert.Equal(t, "DASHBOARD", view)
}

func TestLoadViewRegistryRejectsInvalidYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "views.yaml")
	require.NoError(t, os.WriteFile(path, []byte("views: [unclosed"), 0o600))

	_, err := LoadViewRegistry(path)
	require.Error(t, err)
}
