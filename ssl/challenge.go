package ssl

import (
	"fmt"
	"strings"
	"time"

	"github.com/izetmolla/odooproxy/dns"
)

// ChallengeType identifies the ACME challenge used to prove domain control.
type ChallengeType string

const (
	HTTP = ChallengeType("http")
	DNS  = ChallengeType("dns")
)

const (
	// LEDirectoryProduction URL to the Let's Encrypt production.
	LEDirectoryProduction = "https://acme-v02.api.letsencrypt.org/directory"
	// LEDirectoryStaging URL to the Let's Encrypt staging.
	LEDirectoryStaging = "https://acme-staging-v02.api.letsencrypt.org/directory"
)

// ErrWildcardHTTP rejects wildcard requests over HTTP-01, which cannot
// validate wildcard names.
var ErrWildcardHTTP = fmt.Errorf("wildcard certificates require the dns challenge")

// ConfigError is an invalid or missing input caught before any side effect.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid configuration: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ChallengePlan is the concrete validation plan one issuance attempt runs.
type ChallengePlan struct {
	Type    ChallengeType
	Domains []string
	Webroot string

	// Set only for DNS-01.
	Provider dns.Provider
	Solver   *dns.Solver
}

// SelectPlan maps (challenge mode, provider, wildcard) to a validation plan.
// All input validation happens here, before any filesystem or network side
// effect. For wildcard requests the domain set is expanded to cover the apex
// as well, since CAs require the base name to be validated too.
func SelectPlan(
	mode ChallengeType,
	domain string,
	wildcard bool,
	provider dns.ProviderType,
	creds dns.Credentials,
	webroot string,
	propagation time.Duration,
) (*ChallengePlan, error) {
	if base, ok := strings.CutPrefix(domain, "*."); ok {
		domain = base
		wildcard = true
	}

	domains := []string{domain}
	if wildcard {
		domains = append(domains, "*."+domain)
	}

	switch mode {
	case HTTP:
		if wildcard {
			return nil, ErrWildcardHTTP
		}
		return &ChallengePlan{Type: HTTP, Domains: domains, Webroot: webroot}, nil

	case DNS:
		if provider == dns.ProviderNone || provider == "" {
			return nil, &ConfigError{Reason: "dns challenge needs a dns provider"}
		}
		client, err := dns.New(provider, creds)
		if err != nil {
			return nil, &ConfigError{Reason: fmt.Sprintf("dns provider %s", provider), Err: err}
		}
		return &ChallengePlan{
			Type:     DNS,
			Domains:  domains,
			Webroot:  webroot,
			Provider: client,
			Solver:   dns.NewSolver(client, propagation),
		}, nil

	default:
		return nil, &ConfigError{Reason: fmt.Sprintf("unknown challenge type %q", mode)}
	}
}

// Wildcard reports whether the plan covers a wildcard name.
func (p *ChallengePlan) Wildcard() bool {
	for _, d := range p.Domains {
		if strings.HasPrefix(d, "*.") {
			return true
		}
	}
	return false
}

// PrimaryDomain is the name the certificate files are keyed by.
func (p *ChallengePlan) PrimaryDomain() string {
	return p.Domains[0]
}
