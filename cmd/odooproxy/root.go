package main

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/izetmolla/odooproxy"
)

type globalOptions struct {
	envFile     string
	stateDir    string
	webrootBase string
	acmeServer  string
	propagation time.Duration
}

func rootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "odooproxy",
		Short: "Provision nginx and Let's Encrypt TLS for an Odoo server",
		Long: `odooproxy puts a hardened nginx reverse proxy in front of an Odoo
instance and obtains a Let's Encrypt certificate for it, including
wildcard certificates through the Cloudflare or Hetzner DNS APIs.

Provider credentials are read from the environment (CLOUDFLARE_API_TOKEN,
HETZNER_DNS_API_TOKEN), optionally loaded from an env file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.envFile != "" {
				return godotenv.Load(opts.envFile)
			}
			// A missing default .env is fine.
			_ = godotenv.Load()
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.envFile, "env-file", "", "env file with provider API tokens")
	flags.StringVar(&opts.stateDir, "state-dir", "", "state directory (default /etc/odooproxy)")
	flags.StringVar(&opts.webrootBase, "webroot-base", "", "base directory for ACME webroots (default /var/www)")
	flags.StringVar(&opts.acmeServer, "acme-server", "", "ACME directory URL (default Let's Encrypt production)")
	flags.DurationVar(&opts.propagation, "dns-propagation", 0, "settle delay after creating DNS challenge records (default 60s)")

	cmd.AddCommand(initCmd(opts))
	cmd.AddCommand(renewCmd(opts))
	cmd.AddCommand(detectCmd())
	return cmd
}

func (o *globalOptions) provisioner() (*odooproxy.Provisioner, error) {
	return odooproxy.New(&odooproxy.Config{
		StateDir:       o.stateDir,
		WebrootBase:    o.webrootBase,
		ACMEServer:     o.acmeServer,
		DNSPropagation: o.propagation,
	})
}
