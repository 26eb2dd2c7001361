// Package certbot drives the external certificate client and installs the
// persistent hook scripts its unattended renewal relies on.
package certbot

import (
	"context"
	"fmt"
	"strings"

	"github.com/izetmolla/odooproxy/utils"
)

const (
	// HookBaseDir is the fixed location for provider hook scripts and
	// credential files, stable across unattended renewal runs.
	HookBaseDir = "/etc/letsencrypt/odooproxy"

	deployHookDir  = "/etc/letsencrypt/renewal-hooks/deploy"
	deployHookName = "odooproxy-reload-nginx.sh"
)

type runner func(ctx context.Context, name string, arg ...string) (string, string, error)

// RunError is a failed certbot invocation with its captured diagnostics.
type RunError struct {
	Args   []string
	Stdout string
	Stderr string
	Err    error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("certbot %s failed: %v: %s",
		strings.Join(e.Args, " "), e.Err, strings.TrimSpace(e.Stderr))
}

func (e *RunError) Unwrap() error { return e.Err }

// Runner invokes the certbot binary non-interactively.
type Runner struct {
	Bin string
	run runner
}

func NewRunner() *Runner {
	return &Runner{Bin: "certbot", run: utils.ExecSudo}
}

// IssueHTTP obtains a certificate through the webroot HTTP-01 flow. The
// ACME-phase proxy config must already be serving the webroot token path.
func (r *Runner) IssueHTTP(ctx context.Context, domain, email, webroot string) error {
	return r.certonly(ctx,
		"--webroot", "-w", webroot,
		"-d", domain,
		"-m", email,
	)
}

// IssueDNS obtains a certificate through the manual DNS-01 flow, delegating
// record creation and deletion to the installed hook scripts.
func (r *Runner) IssueDNS(ctx context.Context, domains []string, email string, hooks HookPair) error {
	args := []string{
		"--manual",
		"--preferred-challenges", "dns",
		"--manual-auth-hook", hooks.AuthPath,
		"--manual-cleanup-hook", hooks.CleanupPath,
		"-m", email,
	}
	for _, d := range domains {
		args = append(args, "-d", d)
	}
	return r.certonly(ctx, args...)
}

func (r *Runner) certonly(ctx context.Context, extra ...string) error {
	args := append([]string{
		"certonly",
		"--non-interactive",
		"--agree-tos",
		"--keep-until-expiring",
	}, extra...)

	stdout, stderr, err := r.run(ctx, r.Bin, args...)
	if err != nil {
		return &RunError{Args: args, Stdout: stdout, Stderr: stderr, Err: err}
	}
	return nil
}

// Renew runs certbot's own renewal pass over every installed certificate.
// Certbot skips certificates that are not due, so re-running is cheap.
func (r *Runner) Renew(ctx context.Context) error {
	args := []string{"renew", "--non-interactive"}
	stdout, stderr, err := r.run(ctx, r.Bin, args...)
	if err != nil {
		return &RunError{Args: args, Stdout: stdout, Stderr: stderr, Err: err}
	}
	return nil
}

// EnsureAutoRenewal installs the deploy hook that reloads nginx after every
// renewal and makes sure the certbot timer is running. Re-running is safe.
func (r *Runner) EnsureAutoRenewal(ctx context.Context) error {
	const hook = `#!/bin/bash
set -euo pipefail
systemctl reload nginx
`
	if err := utils.MakeDirs(deployHookDir); err != nil {
		return err
	}
	if err := utils.WriteFileAtomic(deployHookDir+"/"+deployHookName, hook, 0o755); err != nil {
		return fmt.Errorf("write deploy hook: %w", err)
	}
	_, stderr, err := r.run(ctx, "systemctl", "enable", "--now", "certbot.timer")
	if err != nil {
		return fmt.Errorf("enable certbot.timer: %s: %w", stderr, err)
	}
	return nil
}
