package certbot

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/izetmolla/odooproxy/dns"
)

func newTestInstaller(t *testing.T) *HookInstaller {
	t.Helper()
	return &HookInstaller{BaseDir: t.TempDir(), PropagationSeconds: 45}
}

func TestInstallHetznerHooks(t *testing.T) {
	installer := newTestInstaller(t)

	pair, err := installer.Install(dns.ProviderHetzner, "odoo.example.com", "secret-token")
	require.NoError(t, err)

	auth, err := os.ReadFile(pair.AuthPath)
	require.NoError(t, err)
	cleanup, err := os.ReadFile(pair.CleanupPath)
	require.NoError(t, err)
	token, err := os.ReadFile(pair.TokenPath)
	require.NoError(t, err)

	assert.Equal(t, "secret-token\n", string(token))
	// The secret lives only in the token file, the scripts read it at runtime.
	assert.NotContains(t, string(auth), "secret-token")
	assert.NotContains(t, string(cleanup), "secret-token")
	assert.Contains(t, string(auth), pair.TokenPath)
	assert.Contains(t, string(auth), "api.hetzner.cloud/v1")
	assert.Contains(t, string(auth), "sleep 45")
	assert.Contains(t, string(auth), "$CERTBOT_VALIDATION")
	assert.Contains(t, string(cleanup), "DELETE")
	assert.True(t, strings.HasPrefix(string(auth), "#!/bin/bash"))
}

func TestInstallCloudflareHooks(t *testing.T) {
	installer := newTestInstaller(t)

	pair, err := installer.Install(dns.ProviderCloudflare, "odoo.example.com", "cf-secret")
	require.NoError(t, err)

	auth, err := os.ReadFile(pair.AuthPath)
	require.NoError(t, err)
	assert.Contains(t, string(auth), "api.cloudflare.com/client/v4")
	assert.Contains(t, string(auth), "_acme-challenge.$fqdn")
	assert.NotContains(t, string(auth), "cf-secret")
}

func TestInstallFilePermissions(t *testing.T) {
	installer := newTestInstaller(t)

	pair, err := installer.Install(dns.ProviderHetzner, "odoo.example.com", "secret")
	require.NoError(t, err)

	tokenInfo, err := os.Stat(pair.TokenPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), tokenInfo.Mode().Perm())

	authInfo, err := os.Stat(pair.AuthPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), authInfo.Mode().Perm())

	cleanupInfo, err := os.Stat(pair.CleanupPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), cleanupInfo.Mode().Perm())
}

func TestInstallIsIdempotent(t *testing.T) {
	installer := newTestInstaller(t)

	first, err := installer.Install(dns.ProviderCloudflare, "odoo.example.com", "secret")
	require.NoError(t, err)
	firstAuth, err := os.ReadFile(first.AuthPath)
	require.NoError(t, err)

	second, err := installer.Install(dns.ProviderCloudflare, "odoo.example.com", "secret")
	require.NoError(t, err)
	secondAuth, err := os.ReadFile(second.AuthPath)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, string(firstAuth), string(secondAuth))
}

func TestInstallUnknownProvider(t *testing.T) {
	installer := newTestInstaller(t)
	_, err := installer.Install(dns.ProviderNone, "odoo.example.com", "secret")
	assert.Error(t, err)
}

func TestInstallSeparatesDomains(t *testing.T) {
	installer := newTestInstaller(t)

	a, err := installer.Install(dns.ProviderHetzner, "a.example.com", "secret")
	require.NoError(t, err)
	b, err := installer.Install(dns.ProviderHetzner, "b.example.com", "secret")
	require.NoError(t, err)

	assert.NotEqual(t, a.AuthPath, b.AuthPath)
	assert.NotEqual(t, a.TokenPath, b.TokenPath)
}
