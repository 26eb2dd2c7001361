package odooproxy

import (
	"context"
	"fmt"

	"github.com/izetmolla/odooproxy/dns"
	"github.com/izetmolla/odooproxy/nginx"
	"github.com/izetmolla/odooproxy/ssl"
	"github.com/izetmolla/odooproxy/system"
	"github.com/izetmolla/odooproxy/utils"
)

// Step names the phase a provisioning run is in, so failures always report
// where the pipeline stopped.
type Step string

const (
	StepInit         = Step("init")
	StepPackages     = Step("packages")
	StepDNSBootstrap = Step("dns-bootstrap")
	StepACMEPhase    = Step("acme-phase")
	StepChallenge    = Step("challenge")
	StepCertificate  = Step("certificate")
	StepHTTPSPhase   = Step("https-phase")
	StepRenewalHooks = Step("renewal-hooks")
	StepFinalize     = Step("finalize")
)

// StepError wraps a failure with the step it happened in.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("provisioning failed at %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

func fail(step Step, err error) error {
	return &StepError{Step: step, Err: err}
}

// Result reports what a successful run produced.
type Result struct {
	Domain           string
	Domains          []string
	Phase            nginx.Phase
	CertificatePath  string
	PrivateKeyPath   string
	HooksInstalled   bool
	RenewalHookError error
	ProxyModeChanged bool
}

// Provision runs one complete issuance attempt: ACME phase config, challenge
// realization, certificate issuance, HTTPS phase config, renewal hooks and
// host finalization. Steps run strictly in order, each at most once. On
// issuance failure every DNS record created during the attempt is deleted
// and the proxy is left in the ACME phase, never claiming HTTPS without a
// certificate.
func (p *Provisioner) Provision(ctx context.Context, req *ProvisioningRequest) (*Result, error) {
	if err := req.Normalize(); err != nil {
		return nil, fail(StepInit, err)
	}

	webroot := p.webroot(req.Domain)
	plan, err := ssl.SelectPlan(
		req.Challenge, req.Domain, req.Wildcard,
		req.Provider, *p.Credentials,
		webroot, p.DNSPropagation,
	)
	if err != nil {
		return nil, fail(StepInit, err)
	}

	result := &Result{Domain: req.Domain, Domains: plan.Domains}

	if req.InstallPackages {
		p.Logger.Info(ctx, "installing nginx and certbot")
		if err = system.InstallNginxAndCertbot(ctx); err != nil {
			return nil, fail(StepPackages, err)
		}
	}

	if req.SetupDNSRecords {
		if req.Provider == dns.ProviderNone {
			p.Logger.Info(ctx, "no dns provider configured, point %s at this server manually before continuing", req.Domain)
		} else {
			p.Logger.Info(ctx, "configuring address records for %s", req.Domain)
			if err = p.bootstrapAddressRecords(ctx, plan, req); err != nil {
				return nil, fail(StepDNSBootstrap, err)
			}
		}
	}

	// Phase 1: an ACME-only config must answer on port 80 before the CA
	// validates anything. Reapplying it is free.
	if err = utils.MakeDirs(webroot); err != nil {
		return nil, fail(StepACMEPhase, err)
	}
	site := nginx.Site{
		Domain:          req.Domain,
		Webroot:         webroot,
		BackendHost:     req.BackendHost,
		OdooPort:        req.HTTPPort,
		LongpollingPort: req.LongpollingPort,
		SingleUpstream:  req.SingleUpstream,
	}
	if err = p.Nginx.EnableSite(req.Domain); err != nil {
		return nil, fail(StepACMEPhase, err)
	}
	if err = p.Nginx.ApplyACME(ctx, site); err != nil {
		return nil, fail(StepACMEPhase, err)
	}
	result.Phase = nginx.PhaseACME

	certFiles, err := p.issue(ctx, plan, req)
	if err != nil {
		// Roll back any challenge records this attempt created. The proxy
		// stays in the ACME phase.
		if plan.Solver != nil {
			if cleanupErr := plan.Solver.CleanupAll(ctx); cleanupErr != nil {
				p.Logger.Warn(ctx, "challenge record cleanup failed: %v", cleanupErr)
			}
		}
		return result, err
	}
	result.CertificatePath = certFiles.CertificatePath
	result.PrivateKeyPath = certFiles.PrivateKeyPath

	p.Logger.Info(ctx, "certificate issued for %v, activating https", plan.Domains)
	if err = p.Nginx.ApplyHTTPS(ctx, site); err != nil {
		return result, fail(StepHTTPSPhase, err)
	}
	result.Phase = nginx.PhaseHTTPS

	// Renewal wiring is best effort: the certificate is already issued and
	// serving, a hook failure must not undo that.
	if err = p.installRenewalHooks(ctx, plan, req, certFiles); err != nil {
		p.Logger.Warn(ctx, "renewal hook installation failed: %v", err)
		result.RenewalHookError = fail(StepRenewalHooks, err)
	} else {
		result.HooksInstalled = true
	}

	if err = p.finalize(ctx, req, result); err != nil {
		return result, fail(StepFinalize, err)
	}

	if err = p.saveSiteState(req, plan, certFiles); err != nil {
		p.Logger.Warn(ctx, "could not save site state: %v", err)
	}
	return result, nil
}

// issue runs the selected certificate client. For the external client in
// DNS mode the hook scripts are the challenge mechanism, so they are written
// before the client runs and stay installed for unattended renewal.
func (p *Provisioner) issue(ctx context.Context, plan *ssl.ChallengePlan, req *ProvisioningRequest) (ssl.CertFiles, error) {
	switch req.Issuer {
	case IssuerCertbot:
		if plan.Type == ssl.DNS {
			token, err := p.Credentials.TokenFor(req.Provider)
			if err != nil {
				return ssl.CertFiles{}, fail(StepChallenge, err)
			}
			hooks, err := p.Hooks.Install(req.Provider, req.Domain, token)
			if err != nil {
				return ssl.CertFiles{}, fail(StepChallenge, err)
			}
			if err = p.Certbot.IssueDNS(ctx, plan.Domains, req.Email, hooks); err != nil {
				return ssl.CertFiles{}, fail(StepCertificate, err)
			}
		} else {
			if err := p.Certbot.IssueHTTP(ctx, req.Domain, req.Email, plan.Webroot); err != nil {
				return ssl.CertFiles{}, fail(StepCertificate, err)
			}
		}
		live := p.Nginx.CertLiveDir
		return ssl.CertFiles{
			Domain:          req.Domain,
			CertificatePath: live + "/" + req.Domain + "/fullchain.pem",
			PrivateKeyPath:  live + "/" + req.Domain + "/privkey.pem",
		}, nil

	case IssuerEmbedded:
		cfg := p.issueConfig(plan, req)
		files, err := ssl.Issue(cfg)
		if err != nil {
			return ssl.CertFiles{}, fail(StepCertificate, err)
		}
		// Point the HTTPS config at the embedded storage layout.
		p.Nginx.CertLiveDir = ssl.NewCertificatesStorage(cfg).RootPath()
		return files, nil

	default:
		return ssl.CertFiles{}, fail(StepInit, &ssl.ConfigError{
			Reason: fmt.Sprintf("unknown issuer %q", req.Issuer),
		})
	}
}

func (p *Provisioner) issueConfig(plan *ssl.ChallengePlan, req *ProvisioningRequest) *ssl.IssueConfig {
	return &ssl.IssueConfig{
		AccountPath: p.StateDir,
		CertPath:    p.StateDir,
		Server:      p.ACMEServer,
		Email:       req.Email,
		Plan:        plan,
	}
}

func (p *Provisioner) installRenewalHooks(ctx context.Context, plan *ssl.ChallengePlan, req *ProvisioningRequest, files ssl.CertFiles) error {
	switch req.Issuer {
	case IssuerCertbot:
		// DNS hook scripts were written during the challenge step and are
		// persistent; what remains is the reload hook and the timer.
		return p.Certbot.EnsureAutoRenewal(ctx)
	case IssuerEmbedded:
		if files.NotAfter.IsZero() {
			return nil
		}
		return ssl.RecordExpiry(p.sitePath(req.Domain), p.ConfigExtension, files.NotAfter)
	}
	return nil
}

func (p *Provisioner) finalize(ctx context.Context, req *ProvisioningRequest, result *Result) error {
	if req.OdooConfigPath != "" {
		changed, err := system.EnsureProxyMode(req.OdooConfigPath)
		if err != nil {
			return fmt.Errorf("enable proxy_mode: %w", err)
		}
		result.ProxyModeChanged = changed
		if changed {
			p.Logger.Info(ctx, "enabled proxy_mode = True in %s", req.OdooConfigPath)
		}
	}
	if req.RestartService && req.ServiceName != "" {
		if err := system.RestartService(ctx, req.ServiceName); err != nil {
			return err
		}
	}
	if req.ConfigureFirewall {
		if err := system.ConfigureUFW(ctx,
			req.AllowDirectOdoo, req.HTTPPort,
			req.AllowDirectLP, req.LongpollingPort); err != nil {
			return err
		}
	}
	return nil
}

// bootstrapAddressRecords points the domain at this server before issuance.
func (p *Provisioner) bootstrapAddressRecords(ctx context.Context, plan *ssl.ChallengePlan, req *ProvisioningRequest) error {
	provider := plan.Provider
	if provider == nil {
		// HTTP challenge with a managed provider still needs a client.
		client, err := dns.New(req.Provider, *p.Credentials)
		if err != nil {
			return err
		}
		provider = client
	}

	if req.IPMode == IPv4 || req.IPMode == Dual {
		ipv4, err := utils.PublicIP(ctx, false)
		if err != nil {
			return fmt.Errorf("discover public IPv4: %w", err)
		}
		if ipv4 != "" {
			if err = provider.UpsertRecord(ctx, "A", req.Domain, ipv4); err != nil {
				return err
			}
		}
	}
	if req.IPMode == IPv6 || req.IPMode == Dual {
		ipv6, err := utils.PublicIP(ctx, true)
		if err != nil {
			return fmt.Errorf("discover public IPv6: %w", err)
		}
		if ipv6 != "" {
			if err = provider.UpsertRecord(ctx, "AAAA", req.Domain, ipv6); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Provisioner) saveSiteState(req *ProvisioningRequest, plan *ssl.ChallengePlan, files ssl.CertFiles) error {
	sitePath := p.sitePath(req.Domain)
	if err := utils.MakeDirs(sitePath); err != nil {
		return err
	}
	return utils.SetConfigData(sitePath, p.ConfigExtension, map[string]interface{}{
		"domain":    req.Domain,
		"domains":   plan.Domains,
		"email":     req.Email,
		"challenge": string(plan.Type),
		"provider":  string(req.Provider),
		"issuer":    string(req.Issuer),
		"cert_path": files.CertificatePath,
		"key_path":  files.PrivateKeyPath,
	})
}
