// Package system wraps the host-level collaborators: the Odoo config file,
// systemd and the firewall.
package system

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/izetmolla/odooproxy/utils"
)

// EnsureProxyMode idempotently enables proxy_mode in the Odoo config so
// Odoo trusts the X-Forwarded-* headers the proxy sets. Reports whether the
// file was changed.
func EnsureProxyMode(configPath string) (bool, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return false, err
	}
	content := string(data)
	if strings.Contains(content, "proxy_mode = True") {
		return false, nil
	}
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += "proxy_mode = True\n"

	info, err := os.Stat(configPath)
	if err != nil {
		return false, err
	}
	if err = utils.WriteFileAtomic(configPath, content, info.Mode().Perm()); err != nil {
		return false, err
	}
	return true, nil
}

// RestartService restarts a systemd unit.
func RestartService(ctx context.Context, serviceName string) error {
	_, stderr, err := utils.ExecSudo(ctx, "systemctl", "restart", serviceName)
	if err != nil {
		return fmt.Errorf("restart %s: %s: %w", serviceName, stderr, err)
	}
	return nil
}

// InstallNginxAndCertbot installs the proxy and certificate client packages
// and starts nginx.
func InstallNginxAndCertbot(ctx context.Context) error {
	steps := [][]string{
		{"apt", "update"},
		{"apt", "install", "-y", "nginx", "certbot", "python3-certbot-nginx", "curl", "jq"},
		{"systemctl", "enable", "--now", "nginx"},
	}
	for _, step := range steps {
		if _, stderr, err := utils.ExecSudo(ctx, step[0], step[1:]...); err != nil {
			return fmt.Errorf("%s: %s: %w", strings.Join(step, " "), stderr, err)
		}
	}
	return nil
}

// ConfigureUFW opens SSH and the nginx ports, optionally the direct Odoo
// ports, then enables the firewall.
func ConfigureUFW(ctx context.Context, allowOdoo bool, odooPort int, allowLongpolling bool, longpollingPort int) error {
	steps := [][]string{
		{"apt", "install", "-y", "ufw"},
		{"ufw", "allow", "22/tcp"},
		{"ufw", "allow", "Nginx Full"},
	}
	if allowOdoo {
		steps = append(steps, []string{"ufw", "allow", fmt.Sprintf("%d/tcp", odooPort)})
	}
	if allowLongpolling {
		steps = append(steps, []string{"ufw", "allow", fmt.Sprintf("%d/tcp", longpollingPort)})
	}
	steps = append(steps, []string{"ufw", "--force", "enable"})

	for _, step := range steps {
		if _, stderr, err := utils.ExecSudo(ctx, step[0], step[1:]...); err != nil {
			return fmt.Errorf("%s: %s: %w", strings.Join(step, " "), stderr, err)
		}
	}
	return nil
}
