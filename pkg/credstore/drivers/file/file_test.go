package file_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aussiebroadwan/opsconsole/pkg/credstore/drivers/file"
	"github.com/stretchr/testify/require"
)

func TestBackend(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "credentials.json")
	b, err := file.New(path)
	require.NoError(t, err)
	ctx := t.Context()

	t.Run("missing file is empty", func(t *testing.T) {
		values, err := b.Get(ctx)
		require.NoError(t, err)
		require.Empty(t, values)
	})

	t.Run("put then get", func(t *testing.T) {
		require.NoError(t, b.Put(ctx, map[string]string{"access_token": "A1", "refresh_token": "R1"}))

		values, err := b.Get(ctx)
		require.NoError(t, err)
		require.Equal(t, "A1", values["access_token"])
		require.Equal(t, "R1", values["refresh_token"])

		info, err := os.Stat(path)
		require.NoError(t, err)
		require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	})

	t.Run("put replaces", func(t *testing.T) {
		require.NoError(t, b.Put(ctx, map[string]string{"access_token": "A2"}))

		values, err := b.Get(ctx)
		require.NoError(t, err)
		require.Equal(t, map[string]string{"access_token": "A2"}, values)

		entries, err := os.ReadDir(filepath.Dir(path))
		require.NoError(t, err)
		require.Len(t, entries, 1, "temp files must not be left behind")
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, b.Delete(ctx))
		require.NoError(t, b.Delete(ctx))

		values, err := b.Get(ctx)
		require.NoError(t, err)
		require.Empty(t, values)
	})
}

func TestBackendCorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))

	b, err := file.New(path)
	require.NoError(t, err)

	_, err = b.Get(t.Context())
	require.Error(t, err)
}

func TestPutTightensLooseFileMode(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	b, err := file.New(path)
	require.NoError(t, err)
	require.NoError(t, b.Put(t.Context(), map[string]string{"access_token": "A1"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	values, err := b.Get(t.Context())
	require.NoError(t, err)
	require.Equal(t, map[string]string{"access_token": "A1"}, values)
}
