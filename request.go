package odooproxy

import (
	"fmt"
	"strings"

	"golang.org/x/net/idna"

	"github.com/izetmolla/odooproxy/dns"
	"github.com/izetmolla/odooproxy/ssl"
)

// IPMode selects which address families the bootstrap DNS records cover.
type IPMode string

const (
	IPv4 = IPMode("ipv4")
	IPv6 = IPMode("ipv6")
	Dual = IPMode("dual")
)

// IssuerType selects the certificate client driving issuance.
type IssuerType string

const (
	// IssuerCertbot shells out to the system certbot (default).
	IssuerCertbot = IssuerType("certbot")
	// IssuerEmbedded obtains the certificate in-process through the ACME
	// client library.
	IssuerEmbedded = IssuerType("embedded")
)

// ProvisioningRequest is the immutable input of one provisioning run. It is
// built once from resolved configuration (flags, prompts, detection) and
// never mutated afterwards.
type ProvisioningRequest struct {
	Domain   string
	Wildcard bool
	Email    string

	Challenge ssl.ChallengeType
	Provider  dns.ProviderType
	Issuer    IssuerType

	// Bootstrap address records.
	IPMode          IPMode
	SetupDNSRecords bool

	// Upstream target(s). With SingleUpstream set every path routes to the
	// HTTP port.
	BackendHost     string
	HTTPPort        int
	LongpollingPort int
	SingleUpstream  bool

	// Host collaborators.
	OdooConfigPath    string
	ServiceName       string
	InstallPackages   bool
	RestartService    bool
	ConfigureFirewall bool
	AllowDirectOdoo   bool
	AllowDirectLP     bool
}

// Normalize validates the request shape and fills defaults. Challenge and
// provider coherence is checked later by the strategy selector, before any
// side effect.
func (r *ProvisioningRequest) Normalize() error {
	if base, ok := strings.CutPrefix(r.Domain, "*."); ok {
		r.Domain = base
		r.Wildcard = true
	}
	if r.Domain == "" {
		return &ssl.ConfigError{Reason: "a domain is required"}
	}
	ascii, err := idna.Lookup.ToASCII(r.Domain)
	if err != nil {
		return &ssl.ConfigError{Reason: fmt.Sprintf("invalid domain %q", r.Domain), Err: err}
	}
	r.Domain = ascii

	if r.Email == "" {
		r.Email = "admin@" + r.Domain
	}
	if r.Challenge == "" {
		r.Challenge = ssl.HTTP
	}
	if r.Provider == "" {
		r.Provider = dns.ProviderNone
	}
	if r.Issuer == "" {
		r.Issuer = IssuerCertbot
	}
	if r.IPMode == "" {
		r.IPMode = IPv4
	}
	if r.BackendHost == "" {
		r.BackendHost = "127.0.0.1"
	}
	if r.HTTPPort <= 0 {
		return &ssl.ConfigError{Reason: "an Odoo HTTP port is required"}
	}
	if !r.SingleUpstream && r.LongpollingPort <= 0 {
		return &ssl.ConfigError{Reason: "a longpolling/gevent port is required unless single-upstream is set"}
	}
	return nil
}
