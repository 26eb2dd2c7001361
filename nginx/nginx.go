package nginx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/izetmolla/odooproxy/utils"
)

// Phase is the reverse-proxy configuration variant active for a domain.
type Phase string

const (
	// PhaseNone means no managed config exists for the domain yet.
	PhaseNone = Phase("none")
	// PhaseACME serves only the ACME validation path over plain HTTP.
	PhaseACME = Phase("acme")
	// PhaseHTTPS terminates TLS and proxies to the Odoo upstreams.
	PhaseHTTPS = Phase("https")
)

// ErrCertificateMissing blocks the HTTPS transition when no certificate
// file pair exists for the domain.
var ErrCertificateMissing = errors.New("certificate file pair not found")

// ConfigError means a rendered config failed nginx's own validation.
// The previously active config is left in place.
type ConfigError struct {
	Output string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("nginx rejected configuration: %s", strings.TrimSpace(e.Output))
}

type runner func(ctx context.Context, name string, arg ...string) (string, string, error)

// Site describes one managed domain and its upstream targets.
type Site struct {
	Domain          string
	Webroot         string
	BackendHost     string
	OdooPort        int
	LongpollingPort int
	// SingleUpstream routes every path to the Odoo port, for setups that
	// expose one combined backend (e.g. Docker publishing a single port).
	SingleUpstream bool
}

// Manager owns the per-domain site files under sites-available/sites-enabled.
// Transitions are triggered only by the provisioning flow; two concurrent
// runs against the same domain are not supported.
type Manager struct {
	SitesAvailable string
	SitesEnabled   string
	CertLiveDir    string
	// ServiceControl toggles reloading nginx after an install. Disabled in
	// tests and when the operator opted out of service management.
	ServiceControl bool

	run runner
}

func NewManager() *Manager {
	return &Manager{
		SitesAvailable: "/etc/nginx/sites-available",
		SitesEnabled:   "/etc/nginx/sites-enabled",
		CertLiveDir:    "/etc/letsencrypt/live",
		ServiceControl: true,
		run:            utils.ExecSudo,
	}
}

// SitePath is the sites-available file for a domain.
func (m *Manager) SitePath(domain string) string {
	return filepath.Join(m.SitesAvailable, domain)
}

// CurrentPhase inspects the on-disk site file.
func (m *Manager) CurrentPhase(domain string) Phase {
	data, err := os.ReadFile(m.SitePath(domain))
	if err != nil {
		return PhaseNone
	}
	content := string(data)
	if strings.Contains(content, "ssl_certificate") {
		return PhaseHTTPS
	}
	if strings.Contains(content, "acme-challenge") {
		return PhaseACME
	}
	return PhaseNone
}

// EnableSite links the domain's site file into sites-enabled and drops the
// distribution default site so it cannot shadow the server_name.
func (m *Manager) EnableSite(domain string) error {
	if err := utils.MakeDirs(m.SitesAvailable, m.SitesEnabled); err != nil {
		return err
	}
	enabled := filepath.Join(m.SitesEnabled, domain)
	if _, err := os.Lstat(enabled); err == nil {
		if err = os.Remove(enabled); err != nil {
			return err
		}
	}
	if err := os.Symlink(m.SitePath(domain), enabled); err != nil {
		return err
	}
	defaultSite := filepath.Join(m.SitesEnabled, "default")
	if utils.IsExistOnDisk(defaultSite) {
		_ = os.Remove(defaultSite)
	}
	return nil
}

// CertificateExists reports whether the fullchain/privkey pair for the
// domain is on disk.
func (m *Manager) CertificateExists(domain string) bool {
	live := filepath.Join(m.CertLiveDir, domain)
	return utils.IsExistOnDisk(live, "fullchain.pem") && utils.IsExistOnDisk(live, "privkey.pem")
}
