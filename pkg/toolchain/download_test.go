package toolchain

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaneholloman/prek/pkg/store"
)

func tarGzArchive(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf []byte
	tmp := filepath.Join(t.TempDir(), "a.tar.gz")
	f, err := os.Create(tmp)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	for name, content := range entries {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: name, Mode: 0o755, Size: int64(len(content)), Typeflag: tar.TypeReg,
		}))
		_, err = tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
	buf, err = os.ReadFile(tmp)
	require.NoError(t, err)
	return buf
}

func TestFetchInstallsAtomically(t *testing.T) {
	archive := tarGzArchive(t, map[string]string{
		"toolchain-1.0/bin/run": "#!/bin/sh\necho ok\n",
		"toolchain-1.0/README":  "readme\n",
	})
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		_, _ = w.Write(archive)
	}))
	defer server.Close()

	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	d := NewDownloader(s)

	dir, err := d.Fetch(context.Background(), "tool", "1.0", server.URL+"/toolchain.tar.gz", true)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "bin", "run"))
	assert.Equal(t, s.PathFor(store.KindToolchain, store.ToolchainKey("tool", "1.0")), dir)

	// A second fetch reuses the install without touching the network.
	dir2, err := d.Fetch(context.Background(), "tool", "1.0", server.URL+"/toolchain.tar.gz", true)
	require.NoError(t, err)
	assert.Equal(t, dir, dir2)
	assert.Equal(t, 1, hits)

	// Scratch leftovers are cleaned up.
	entries, err := os.ReadDir(filepath.Join(s.Root(), "scratch"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFetchRejectsHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	d := NewDownloader(s)

	_, err = d.Fetch(context.Background(), "tool", "1.0", server.URL+"/missing.tar.gz", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
}

func TestExtractZip(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "a.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("dir/file.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	dest := t.TempDir()
	require.NoError(t, extract(zipPath, dest))
	data, err := os.ReadFile(filepath.Join(dest, "dir", "file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestSafeJoinRejectsEscapes(t *testing.T) {
	_, err := safeJoin("/dest", "../outside")
	assert.Error(t, err)

	path, err := safeJoin("/dest", "inner/ok.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/dest", "inner", "ok.txt"), path)
}

func TestDownloadURLBuilders(t *testing.T) {
	if url, ok := NodeDownloadURL("20.14.0"); ok {
		assert.Contains(t, url, "nodejs.org/dist/v20.14.0/")
	}
	if url, ok := GoDownloadURL("1.22.4"); ok {
		assert.Contains(t, url, "go.dev/dl/go1.22.4")
	}
	if url, ok := PythonDownloadURL("3.12.3"); ok {
		assert.Contains(t, url, "cpython-3.12.3")
	}
	if url, ok := RustDownloadURL("1.78.0"); ok {
		assert.Contains(t, url, "rust-1.78.0")
	}
}
