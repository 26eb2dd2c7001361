package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "site.conf")

	require.NoError(t, WriteFileAtomic(path, "server {}\n", 0o644))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "server {}\n", string(content))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	// Overwrite leaves no temp files behind.
	require.NoError(t, WriteFileAtomic(path, "server { listen 80; }\n", 0o644))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWritePrivateFilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, WritePrivateFile(path, "secret\n"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestSetConfigDataMerges(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, SetConfigData(dir, "yaml", map[string]interface{}{
		"domain": "odoo.example.com",
		"issuer": "certbot",
	}))
	require.NoError(t, SetConfigData(dir, "yaml", map[string]interface{}{
		"issuer":        "embedded",
		"ssl_expire_at": "2026-11-20T00:00:00Z",
	}))

	data, err := Unmarshal(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "odoo.example.com", data["domain"])
	assert.Equal(t, "embedded", data["issuer"])
	assert.Equal(t, "2026-11-20T00:00:00Z", data["ssl_expire_at"])
}

func TestMarshalRejectsUnknownExtension(t *testing.T) {
	err := Marshal(filepath.Join(t.TempDir(), "config.toml"), map[string]string{})
	assert.Error(t, err)
}

func TestIsExistOnDisk(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fullchain.pem"), []byte("x"), 0o644))

	assert.True(t, IsExistOnDisk(dir, "fullchain.pem"))
	assert.False(t, IsExistOnDisk(dir, "privkey.pem"))
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.conf")
	dst := filepath.Join(dir, "dst.conf")
	require.NoError(t, os.WriteFile(src, []byte("content"), 0o644))

	require.NoError(t, CopyFile(src, dst))
	content, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "content", string(content))

	assert.Error(t, CopyFile(dir, dst), "directories are not copyable")
}
