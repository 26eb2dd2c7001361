// Package odooproxy provisions TLS for an Odoo instance: it sequences the
// reverse-proxy phases, drives the certificate client through the selected
// ACME challenge, manages provider DNS records and installs the hooks
// unattended renewal relies on.
package odooproxy

import (
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gorm.io/gorm/logger"

	"github.com/izetmolla/odooproxy/certbot"
	"github.com/izetmolla/odooproxy/dns"
	"github.com/izetmolla/odooproxy/nginx"
	"github.com/izetmolla/odooproxy/utils"
)

type Config struct {
	Org             string
	StateDir        string
	WebrootBase     string
	ConfigExtension string
	ACMEServer      string
	DNSPropagation  time.Duration
	Logger          logger.Interface

	// Credentials are captured from the environment when nil, so tests can
	// inject fakes without touching the process environment.
	Credentials *dns.Credentials

	Nginx   *nginx.Manager
	Certbot *certbot.Runner
	Hooks   *certbot.HookInstaller
}

// Provisioner runs provisioning and renewal against one host.
type Provisioner struct {
	*Config
}

func New(conf *Config) (*Provisioner, error) {
	config := conf
	if config == nil {
		config = &Config{}
	}
	if config.Logger == nil {
		config.Logger = logger.Default
	}
	if config.Org == "" {
		config.Org = "Odoo Proxy"
	}
	if config.StateDir == "" {
		config.StateDir = "/etc/odooproxy"
	}
	if config.WebrootBase == "" {
		config.WebrootBase = "/var/www"
	}
	if config.ConfigExtension == "" {
		config.ConfigExtension = "yaml"
	}
	if config.DNSPropagation <= 0 {
		config.DNSPropagation = dns.DefaultPropagation
	}
	if config.Credentials == nil {
		creds, err := env.ParseAs[dns.Credentials]()
		if err != nil {
			return nil, err
		}
		config.Credentials = &creds
	}
	if config.Nginx == nil {
		config.Nginx = nginx.NewManager()
	}
	if config.Certbot == nil {
		config.Certbot = certbot.NewRunner()
	}
	if config.Hooks == nil {
		config.Hooks = certbot.NewHookInstaller()
		config.Hooks.PropagationSeconds = int(config.DNSPropagation / time.Second)
	}

	if err := utils.MakeDirs(config.StateDir, filepath.Join(config.StateDir, "sites")); err != nil {
		return nil, err
	}
	return &Provisioner{Config: config}, nil
}

// sitePath is the state folder for one domain.
func (p *Provisioner) sitePath(domain string) string {
	return filepath.Join(p.StateDir, "sites", domain)
}

func (p *Provisioner) webroot(domain string) string {
	return filepath.Join(p.WebrootBase, domain)
}
