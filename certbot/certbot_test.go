package certbot

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExec struct {
	calls [][]string
	err   error
}

func (f *fakeExec) run(ctx context.Context, name string, arg ...string) (string, string, error) {
	f.calls = append(f.calls, append([]string{name}, arg...))
	if f.err != nil {
		return "", "some certbot error", f.err
	}
	return "", "", nil
}

func newTestRunner() (*Runner, *fakeExec) {
	exec := &fakeExec{}
	return &Runner{Bin: "certbot", run: exec.run}, exec
}

func TestIssueHTTPArgs(t *testing.T) {
	r, exec := newTestRunner()

	err := r.IssueHTTP(context.Background(), "odoo.example.com", "admin@example.com", "/var/www/odoo.example.com")
	require.NoError(t, err)

	require.Len(t, exec.calls, 1)
	assert.Equal(t, []string{
		"certbot", "certonly",
		"--non-interactive", "--agree-tos", "--keep-until-expiring",
		"--webroot", "-w", "/var/www/odoo.example.com",
		"-d", "odoo.example.com",
		"-m", "admin@example.com",
	}, exec.calls[0])
}

func TestIssueDNSArgs(t *testing.T) {
	r, exec := newTestRunner()
	hooks := HookPair{
		AuthPath:    "/etc/letsencrypt/odooproxy/cloudflare-auth-example_com.sh",
		CleanupPath: "/etc/letsencrypt/odooproxy/cloudflare-cleanup-example_com.sh",
	}

	err := r.IssueDNS(context.Background(),
		[]string{"example.com", "*.example.com"}, "admin@example.com", hooks)
	require.NoError(t, err)

	require.Len(t, exec.calls, 1)
	args := exec.calls[0]
	assert.Contains(t, args, "--manual")
	assert.Contains(t, args, "--manual-auth-hook")
	assert.Contains(t, args, hooks.AuthPath)
	assert.Contains(t, args, hooks.CleanupPath)
	// Both the apex and the wildcard are requested.
	assert.Contains(t, args, "example.com")
	assert.Contains(t, args, "*.example.com")
}

func TestRunErrorCarriesDiagnostics(t *testing.T) {
	r, exec := newTestRunner()
	exec.err = errors.New("exit status 1")

	err := r.IssueHTTP(context.Background(), "odoo.example.com", "admin@example.com", "/var/www")
	require.Error(t, err)

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, "some certbot error", runErr.Stderr)
	assert.Contains(t, runErr.Error(), "certonly")
}

func TestRenewArgs(t *testing.T) {
	r, exec := newTestRunner()

	require.NoError(t, r.Renew(context.Background()))
	require.Len(t, exec.calls, 1)
	assert.Equal(t, []string{"certbot", "renew", "--non-interactive"}, exec.calls[0])
}
