package browser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ainasago/FishBrowser-sub004/api/schemas"
)

func TestUserDataDirs(t *testing.T) {
	root := t.TempDir()
	dirs := NewUserDataDirs(root, zaptest.NewLogger(t))

	t.Run("resolve creates the directory", func(t *testing.T) {
		dir, err := dirs.Resolve("B1")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "B1"), dir)
		assert.DirExists(t, filepath.Join(dir, "Default"))

		again, err := dirs.Resolve("B1")
		require.NoError(t, err)
		assert.Equal(t, dir, again)
	})

	t.Run("release removes locks and marks a clean exit", func(t *testing.T) {
		dir, err := dirs.Resolve("B2")
		require.NoError(t, err)
		for _, name := range singletonFiles {
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
		}
		prefs := filepath.Join(dir, "Default", "Preferences")
		require.NoError(t, os.WriteFile(prefs, []byte(`{"profile":{"exit_type":"Crashed","exited_cleanly":false}}`), 0o644))

		require.NoError(t, dirs.Release("B2"))

		for _, name := range singletonFiles {
			assert.NoFileExists(t, filepath.Join(dir, name))
		}
		data, err := os.ReadFile(prefs)
		require.NoError(t, err)
		assert.Equal(t, `{"profile":{"exit_type":"Normal","exited_cleanly":true}}`, string(data))

		assert.NoError(t, dirs.Release("B2"), "release is idempotent")
	})

	t.Run("clear removes everything", func(t *testing.T) {
		dir, err := dirs.Resolve("B3")
		require.NoError(t, err)
		require.NoError(t, dirs.Clear("B3"))
		assert.NoDirExists(t, dir)
	})

	t.Run("unsafe ids are rejected", func(t *testing.T) {
		for _, id := range []string{"", "../etc", "a/b", `a\b`, ".hidden", "x..y"} {
			_, err := dirs.Resolve(id)
			assert.ErrorIs(t, err, schemas.ErrInvalidArgument, id)
		}
	})
}

func TestUserDataDirsDisabled(t *testing.T) {
	dirs := NewUserDataDirs("", zaptest.NewLogger(t))

	dir, err := dirs.Resolve("B1")
	require.NoError(t, err)
	assert.Empty(t, dir)
	assert.NoError(t, dirs.Release("B1"))
	assert.NoError(t, dirs.Clear("B1"))
}
