package nginx

import (
	"context"
	"fmt"
	"os"

	"github.com/izetmolla/odooproxy/utils"
)

// ApplyACME installs the ACME-only phase config. Reapplying with the same
// inputs is a no-op.
func (m *Manager) ApplyACME(ctx context.Context, site Site) error {
	return m.install(ctx, site.Domain, RenderACME(site.Domain, site.Webroot))
}

// ApplyHTTPS installs the HTTPS phase config. The transition is refused
// unless the certificate file pair already exists for the domain, so an
// HTTPS config can never go live without a certificate behind it.
func (m *Manager) ApplyHTTPS(ctx context.Context, site Site) error {
	if !m.CertificateExists(site.Domain) {
		return fmt.Errorf("%s: %w", site.Domain, ErrCertificateMissing)
	}
	return m.install(ctx, site.Domain, RenderHTTPS(site, m.CertLiveDir))
}

// install writes the new config atomically, validates it with nginx's own
// check, and restores the previous config if validation fails. The prior
// config is never lost before the new one is confirmed valid.
func (m *Manager) install(ctx context.Context, domain, content string) error {
	path := m.SitePath(domain)

	if current, err := os.ReadFile(path); err == nil && string(current) == content {
		return nil
	}

	backup := path + ".back"
	hadPrevious := utils.IsExistOnDisk(path)
	if hadPrevious {
		if err := utils.CopyFile(path, backup); err != nil {
			return fmt.Errorf("backup previous config: %w", err)
		}
	}

	if err := utils.WriteTextFile(path, content); err != nil {
		return fmt.Errorf("write site config: %w", err)
	}

	if err := m.Test(ctx); err != nil {
		if hadPrevious {
			if restoreErr := os.Rename(backup, path); restoreErr != nil {
				return fmt.Errorf("restore previous config: %v (after %w)", restoreErr, err)
			}
		} else {
			_ = os.Remove(path)
		}
		return err
	}
	if hadPrevious {
		_ = os.Remove(backup)
	}

	if m.ServiceControl {
		return m.Reload(ctx)
	}
	return nil
}

// Test runs nginx's configuration check.
func (m *Manager) Test(ctx context.Context) error {
	stdout, stderr, err := m.run(ctx, "nginx", "-t")
	if err != nil {
		return &ConfigError{Output: stderr + stdout}
	}
	return nil
}

// Reload asks nginx to re-read its configuration without dropping
// connections.
func (m *Manager) Reload(ctx context.Context) error {
	_, stderr, err := m.run(ctx, "systemctl", "reload", "nginx")
	if err != nil {
		return fmt.Errorf("reload nginx: %s: %w", stderr, err)
	}
	return nil
}
