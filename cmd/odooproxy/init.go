package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/izetmolla/odooproxy"
	"github.com/izetmolla/odooproxy/detect"
	"github.com/izetmolla/odooproxy/dns"
	"github.com/izetmolla/odooproxy/nginx"
	"github.com/izetmolla/odooproxy/ssl"
)

type initOptions struct {
	domain   string
	email    string
	wildcard bool

	challenge string
	provider  string
	issuer    string

	ipMode    string
	setupDNS  bool
	skipDNS   bool
	singleUp  bool
	backend   string
	httpPort  int
	lpPort    int

	service          string
	config           string
	odooDeployConfig string

	installPackages bool
	restartService  bool
	configureUFW    bool
	allowOdoo       bool
	allowLP         bool
}

func initCmd(global *globalOptions) *cobra.Command {
	opts := &initOptions{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Provision nginx and a certificate for one domain",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, global, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.domain, "domain", "d", "", "domain to provision (prefix *. or use --wildcard for a wildcard certificate)")
	flags.StringVarP(&opts.email, "email", "m", "", "account email for the CA (default admin@<domain>)")
	flags.BoolVar(&opts.wildcard, "wildcard", false, "request a wildcard certificate (requires the dns challenge)")

	flags.StringVar(&opts.challenge, "tls-challenge", "http", "ACME challenge: http or dns")
	flags.StringVar(&opts.provider, "provider", "", "DNS provider: cloudflare or hetzner")
	flags.StringVar(&opts.issuer, "issuer", "certbot", "certificate client: certbot or embedded")

	flags.StringVar(&opts.ipMode, "ip-mode", "ipv4", "address records to bootstrap: ipv4, ipv6 or dual")
	flags.BoolVar(&opts.setupDNS, "setup-dns", false, "create/update the domain's A/AAAA records at the provider first")
	flags.BoolVar(&opts.skipDNS, "skip-dns", false, "never touch address records, even with a provider configured")

	flags.StringVar(&opts.backend, "backend-host", "127.0.0.1", "address Odoo listens on")
	flags.IntVar(&opts.httpPort, "http-port", 0, "Odoo HTTP port (default: detected from the Odoo config)")
	flags.IntVar(&opts.lpPort, "longpolling-port", 0, "Odoo longpolling/gevent port (default: detected)")
	flags.BoolVar(&opts.singleUp, "single-upstream", false, "route every path to the HTTP port (single published port)")

	flags.StringVarP(&opts.service, "service", "s", "", "Odoo systemd service to provision for")
	flags.StringVarP(&opts.config, "config", "c", "", "Odoo config file (overrides service detection)")
	flags.StringVar(&opts.odooDeployConfig, "odoo-deploy-config", "", "odoo-deploy profile config.yaml to resolve the Odoo config from")

	flags.BoolVar(&opts.installPackages, "install-packages", false, "apt-install nginx, certbot and the hook script dependencies first")
	flags.BoolVar(&opts.restartService, "restart-service", false, "restart the Odoo service after enabling proxy_mode")
	flags.BoolVar(&opts.configureUFW, "ufw", false, "configure the ufw firewall (SSH + Nginx Full)")
	flags.BoolVar(&opts.allowOdoo, "allow-direct-odoo", false, "with --ufw, also open the Odoo HTTP port")
	flags.BoolVar(&opts.allowLP, "allow-direct-longpolling", false, "with --ufw, also open the longpolling port")

	return cmd
}

func runInit(cmd *cobra.Command, global *globalOptions, opts *initOptions) error {
	req, err := buildRequest(opts)
	if err != nil {
		return err
	}

	p, err := global.provisioner()
	if err != nil {
		return err
	}

	result, err := p.Provision(cmd.Context(), req)
	if err != nil {
		return err
	}

	if result.Phase == nginx.PhaseHTTPS {
		fmt.Printf("Provisioned https://%s\n", result.Domain)
	} else {
		fmt.Printf("Provisioned %s (phase %s)\n", result.Domain, result.Phase)
	}
	fmt.Printf("  certificate: %s\n", result.CertificatePath)
	if result.RenewalHookError != nil {
		fmt.Printf("  warning: renewal hooks not installed: %v\n", result.RenewalHookError)
	}
	return nil
}

// buildRequest merges flags, Odoo detection and interactive answers into one
// immutable request.
func buildRequest(opts *initOptions) (*odooproxy.ProvisioningRequest, error) {
	runtime, err := resolveRuntime(opts)
	if err != nil {
		return nil, err
	}

	httpPort := opts.httpPort
	lpPort := opts.lpPort
	configPath := opts.config
	serviceName := opts.service
	if runtime != nil {
		if httpPort == 0 {
			httpPort = runtime.HTTPPort
		}
		if lpPort == 0 {
			lpPort = runtime.LongpollingPort
		}
		if configPath == "" {
			configPath = runtime.ConfigFile
		}
		if serviceName == "" {
			serviceName = runtime.ServiceName
		}
	}

	domain := opts.domain
	if domain == "" && interactive() {
		domain = prompt("Domain to provision: ")
	}

	provider := dns.ProviderType(opts.provider)
	if provider == "" {
		provider = dns.ProviderNone
	}

	return &odooproxy.ProvisioningRequest{
		Domain:   domain,
		Wildcard: opts.wildcard,
		Email:    opts.email,

		Challenge: ssl.ChallengeType(opts.challenge),
		Provider:  provider,
		Issuer:    odooproxy.IssuerType(opts.issuer),

		IPMode:          odooproxy.IPMode(opts.ipMode),
		SetupDNSRecords: opts.setupDNS && !opts.skipDNS,

		BackendHost:     opts.backend,
		HTTPPort:        httpPort,
		LongpollingPort: lpPort,
		SingleUpstream:  opts.singleUp,

		OdooConfigPath:    configPath,
		ServiceName:       serviceName,
		InstallPackages:   opts.installPackages,
		RestartService:    opts.restartService,
		ConfigureFirewall: opts.configureUFW,
		AllowDirectOdoo:   opts.allowOdoo,
		AllowDirectLP:     opts.allowLP,
	}, nil
}

// resolveRuntime locates the target Odoo instance from flags, falling back
// to an interactive service pick on a terminal. Returns nil when nothing can
// be resolved and ports were given explicitly.
func resolveRuntime(opts *initOptions) (*detect.OdooRuntime, error) {
	if opts.odooDeployConfig != "" {
		conf, err := detect.ResolveOdooDeployConfig(opts.odooDeployConfig)
		if err != nil {
			return nil, err
		}
		return detect.BuildRuntime("", conf)
	}
	if opts.service != "" || opts.config != "" {
		return detect.BuildRuntime(opts.service, opts.config)
	}
	if opts.httpPort > 0 {
		// Explicit ports, nothing to detect.
		return nil, nil
	}

	services := detect.FindServices()
	switch {
	case len(services) == 1:
		return detect.BuildRuntime(services[0], "")
	case len(services) > 1 && interactive():
		return detect.BuildRuntime(chooseService(services), "")
	case len(services) > 1:
		return nil, fmt.Errorf("multiple Odoo services found (%s), pick one with --service",
			strings.Join(services, ", "))
	default:
		return nil, fmt.Errorf("no Odoo service found, pass --service, --config or --http-port")
	}
}

func interactive() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())
}

func prompt(label string) string {
	fmt.Print(label)
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

func chooseService(services []string) string {
	fmt.Println("Multiple Odoo services found:")
	for i, s := range services {
		fmt.Printf("  %d) %s\n", i+1, s)
	}
	for {
		answer := prompt(fmt.Sprintf("Select service [1-%d]: ", len(services)))
		n, err := strconv.Atoi(answer)
		if err == nil && n >= 1 && n <= len(services) {
			return services[n-1]
		}
	}
}
