package app

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func resetSettingsStateForTest() {
	settingsOnce = sync.Once{}
	settings = Settings{}
	settingsErr = nil
	SetDBPathOverride("")
}

func TestGetDBPath_PrioritizesCLIOverride(t *testing.T) {
	resetSettingsStateForTest()
	t.Cleanup(resetSettingsStateForTest)

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(EnvDBPath, filepath.Join(home, "env", "kvsh.db"))

	overridePath := filepath.Join(home, "cli", "kvsh.db")
	SetDBPathOverride(overridePath)

	resolved, err := GetDBPath()
	require.NoError(t, err)
	require.Equal(t, overridePath, resolved)
	require.DirExists(t, filepath.Dir(overridePath))
}

func TestResolveDBPathDetailed_ReportsSourceForEnv(t *testing.T) {
	resetSettingsStateForTest()
	t.Cleanup(resetSettingsStateForTest)

	home := t.TempDir()
	t.Setenv("HOME", home)
	envPath := filepath.Join(home, "env", "kvsh.db")
	t.Setenv(EnvDBPath, envPath)

	resolved, source, err := ResolveDBPathDetailed()
	require.NoError(t, err)
	require.Equal(t, envPath, resolved)
	require.Equal(t, "env(KVSH_DB_PATH)", source)
}

func TestResolveDBPathDetailed_UsesConfigThenDefault(t *testing.T) {
	resetSettingsStateForTest()
	t.Cleanup(resetSettingsStateForTest)

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(EnvDBPath, "")
	t.Chdir(t.TempDir())

	resolved, source, err := ResolveDBPathDetailed()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".config", "kvsh", "kvsh.db"), resolved)
	require.Equal(t, "default(~/.config/kvsh/kvsh.db)", source)

	userConfigPath := filepath.Join(home, ".config", "kvsh", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(userConfigPath), 0o755))
	require.NoError(t, os.WriteFile(userConfigPath, []byte("db_path: ~/data/store.db\n"), 0o600))

	resolved, source, err = ResolveDBPathDetailed()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, "data", "store.db"), resolved)
	require.Equal(t, "config("+userConfigPath+")", source)
}

func TestEnsureDBDir_CreatesParentDirectories(t *testing.T) {
	base := t.TempDir()
	dbPath := filepath.Join(base, "nested", "deep", "kvsh.db")

	resolved, err := EnsureDBDir(dbPath)
	require.NoError(t, err)
	require.Equal(t, dbPath, resolved)
	require.DirExists(t, filepath.Dir(dbPath))
}

func TestEnsureDBDir_FailureKeepsPath(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))
	dbPath := filepath.Join(blocker, "kvsh.db")

	resolved, err := EnsureDBDir(dbPath)
	require.Error(t, err)
	require.Equal(t, dbPath, resolved)
}

func TestEnsureDBDir_LeavesMemoryPathsAlone(t *testing.T) {
	for _, p := range []string{":memory:", "file::memory:?cache=shared"} {
		resolved, err := EnsureDBDir(p)
		require.NoError(t, err)
		require.Equal(t, p, resolved)
	}
	require.True(t, IsMemoryPath(":memory:"))
	require.False(t, IsMemoryPath("/tmp/kvsh.db"))
}
