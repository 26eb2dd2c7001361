package odooproxy

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/izetmolla/odooproxy/dns"
	"github.com/izetmolla/odooproxy/ssl"
	"github.com/izetmolla/odooproxy/utils"
)

// DefaultRenewalDays is the remaining-validity threshold below which a
// renewal is attempted, matching certbot's own default.
const DefaultRenewalDays = 30

// RenewResult reports the outcome of one renewal pass for a domain.
type RenewResult struct {
	Domain  string
	Renewed bool
	Files   ssl.CertFiles
}

// Renew refreshes the certificate of an already provisioned domain using the
// issuer recorded during provisioning. Certificates not yet close to expiry
// are left alone.
func (p *Provisioner) Renew(ctx context.Context, domain string) (*RenewResult, error) {
	state, err := p.loadSiteState(domain)
	if err != nil {
		return nil, fmt.Errorf("domain %s was never provisioned here: %w", domain, err)
	}
	result := &RenewResult{Domain: domain}

	switch state.issuer {
	case IssuerCertbot:
		// The DNS hook scripts and the deploy hook installed during
		// provisioning make this a single non-interactive call; certbot
		// reloads nginx itself through the deploy hook.
		if err = p.Certbot.Renew(ctx); err != nil {
			return nil, err
		}
		result.Renewed = true
		return result, nil

	case IssuerEmbedded:
		sitePath := p.sitePath(domain)
		if !ssl.IsExpiringSoon(sitePath, p.ConfigExtension, DefaultRenewalDays) {
			p.Logger.Info(ctx, "certificate for %s is not due for renewal", domain)
			return result, nil
		}

		plan, err := ssl.SelectPlan(
			state.challenge, domain, state.wildcard,
			state.provider, *p.Credentials,
			p.webroot(domain), p.DNSPropagation,
		)
		if err != nil {
			return nil, err
		}
		cfg := &ssl.IssueConfig{
			AccountPath: p.StateDir,
			CertPath:    p.StateDir,
			Server:      p.ACMEServer,
			Email:       state.email,
			Days:        DefaultRenewalDays,
			Plan:        plan,
		}

		files, renewed, err := ssl.Renew(cfg)
		if err != nil {
			if plan.Solver != nil {
				if cleanupErr := plan.Solver.CleanupAll(ctx); cleanupErr != nil {
					p.Logger.Warn(ctx, "challenge record cleanup failed: %v", cleanupErr)
				}
			}
			return nil, err
		}
		result.Renewed = renewed
		result.Files = files
		if !renewed {
			return result, nil
		}

		if !files.NotAfter.IsZero() {
			if err = ssl.RecordExpiry(sitePath, p.ConfigExtension, files.NotAfter); err != nil {
				p.Logger.Warn(ctx, "could not record expiry: %v", err)
			}
		}
		if err = p.Nginx.Reload(ctx); err != nil {
			return result, err
		}
		return result, nil

	default:
		return nil, &ssl.ConfigError{Reason: fmt.Sprintf("unknown issuer %q recorded for %s", state.issuer, domain)}
	}
}

type siteState struct {
	issuer    IssuerType
	challenge ssl.ChallengeType
	provider  dns.ProviderType
	email     string
	wildcard  bool
}

func (p *Provisioner) loadSiteState(domain string) (*siteState, error) {
	data, err := utils.Unmarshal(
		filepath.Join(p.sitePath(domain), fmt.Sprintf("config.%s", p.ConfigExtension)))
	if err != nil {
		return nil, err
	}

	str := func(key string) string {
		v, _ := data[key].(string)
		return v
	}
	state := &siteState{
		issuer:    IssuerType(str("issuer")),
		challenge: ssl.ChallengeType(str("challenge")),
		provider:  dns.ProviderType(str("provider")),
		email:     str("email"),
	}
	if state.issuer == "" {
		state.issuer = IssuerCertbot
	}
	if state.challenge == "" {
		state.challenge = ssl.HTTP
	}
	if state.provider == "" {
		state.provider = dns.ProviderNone
	}
	if domains, ok := data["domains"].([]interface{}); ok {
		for _, d := range domains {
			if name, ok := d.(string); ok && strings.HasPrefix(name, "*.") {
				state.wildcard = true
			}
		}
	}
	return state, nil
}
