package nginx

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/izetmolla/odooproxy/utils"
)

// fakeRunner records invocations and lets a test fail "nginx -t".
type fakeRunner struct {
	calls   [][]string
	testErr error
}

func (f *fakeRunner) run(ctx context.Context, name string, arg ...string) (string, string, error) {
	f.calls = append(f.calls, append([]string{name}, arg...))
	if name == "nginx" && len(arg) > 0 && arg[0] == "-t" && f.testErr != nil {
		return "", "nginx: configuration file test failed", f.testErr
	}
	return "", "", nil
}

func newTestManager(t *testing.T) (*Manager, *fakeRunner) {
	t.Helper()
	dir := t.TempDir()
	runner := &fakeRunner{}
	m := &Manager{
		SitesAvailable: filepath.Join(dir, "sites-available"),
		SitesEnabled:   filepath.Join(dir, "sites-enabled"),
		CertLiveDir:    filepath.Join(dir, "live"),
		ServiceControl: false,
		run:            runner.run,
	}
	require.NoError(t, utils.MakeDirs(m.SitesAvailable, m.SitesEnabled))
	return m, runner
}

func writeCertPair(t *testing.T, m *Manager, domain string) {
	t.Helper()
	dir := filepath.Join(m.CertLiveDir, domain)
	require.NoError(t, utils.MakeDirs(dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fullchain.pem"), []byte("cert"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "privkey.pem"), []byte("key"), 0o600))
}

func TestApplyACMEWritesAndValidates(t *testing.T) {
	m, runner := newTestManager(t)
	site := testSite()

	require.NoError(t, m.ApplyACME(context.Background(), site))

	content, err := os.ReadFile(m.SitePath(site.Domain))
	require.NoError(t, err)
	assert.Equal(t, RenderACME(site.Domain, site.Webroot), string(content))
	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{"nginx", "-t"}, runner.calls[0])
	assert.Equal(t, PhaseACME, m.CurrentPhase(site.Domain))
}

func TestApplyACMEIsIdempotent(t *testing.T) {
	m, runner := newTestManager(t)
	site := testSite()

	require.NoError(t, m.ApplyACME(context.Background(), site))
	require.NoError(t, m.ApplyACME(context.Background(), site))

	// Unchanged content skips the validate/reload cycle entirely.
	assert.Len(t, runner.calls, 1)
}

func TestApplyHTTPSRefusedWithoutCertificate(t *testing.T) {
	m, runner := newTestManager(t)
	site := testSite()
	require.NoError(t, m.ApplyACME(context.Background(), site))

	err := m.ApplyHTTPS(context.Background(), site)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCertificateMissing)

	// The ACME config is untouched.
	assert.Equal(t, PhaseACME, m.CurrentPhase(site.Domain))
	assert.Len(t, runner.calls, 1)
}

func TestApplyHTTPSWithCertificate(t *testing.T) {
	m, _ := newTestManager(t)
	site := testSite()
	require.NoError(t, m.ApplyACME(context.Background(), site))
	writeCertPair(t, m, site.Domain)

	require.NoError(t, m.ApplyHTTPS(context.Background(), site))
	assert.Equal(t, PhaseHTTPS, m.CurrentPhase(site.Domain))
}

func TestFailedValidationRestoresPreviousConfig(t *testing.T) {
	m, runner := newTestManager(t)
	site := testSite()
	require.NoError(t, m.ApplyACME(context.Background(), site))
	previous, err := os.ReadFile(m.SitePath(site.Domain))
	require.NoError(t, err)

	writeCertPair(t, m, site.Domain)
	runner.testErr = errors.New("exit status 1")

	err = m.ApplyHTTPS(context.Background(), site)
	require.Error(t, err)
	var confErr *ConfigError
	require.ErrorAs(t, err, &confErr)
	assert.Contains(t, confErr.Output, "test failed")

	// The previously valid config is back in place, no backup left behind.
	current, err := os.ReadFile(m.SitePath(site.Domain))
	require.NoError(t, err)
	assert.Equal(t, string(previous), string(current))
	assert.NoFileExists(t, m.SitePath(site.Domain)+".back")
}

func TestFailedValidationOnFirstInstallRemovesConfig(t *testing.T) {
	m, runner := newTestManager(t)
	runner.testErr = errors.New("exit status 1")
	site := testSite()

	require.Error(t, m.ApplyACME(context.Background(), site))
	assert.NoFileExists(t, m.SitePath(site.Domain))
	assert.Equal(t, PhaseNone, m.CurrentPhase(site.Domain))
}

func TestEnableSite(t *testing.T) {
	m, _ := newTestManager(t)

	// A distribution default site must not shadow the managed one.
	defaultSite := filepath.Join(m.SitesEnabled, "default")
	require.NoError(t, os.WriteFile(defaultSite, []byte("default"), 0o644))

	require.NoError(t, m.EnableSite("odoo.example.com"))

	link, err := os.Readlink(filepath.Join(m.SitesEnabled, "odoo.example.com"))
	require.NoError(t, err)
	assert.Equal(t, m.SitePath("odoo.example.com"), link)
	assert.NoFileExists(t, defaultSite)

	// Re-enabling replaces the link without error.
	require.NoError(t, m.EnableSite("odoo.example.com"))
}

func TestCurrentPhaseUnknownDomain(t *testing.T) {
	m, _ := newTestManager(t)
	assert.Equal(t, PhaseNone, m.CurrentPhase("missing.example.com"))
}
