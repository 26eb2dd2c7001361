package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func renewCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "renew <domain>",
		Short: "Renew the certificate of a provisioned domain",
		Long: `Renews the certificate using whatever issuer the domain was provisioned
with. Certificates not close to expiry are left alone, so this is safe to
run from a timer.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := global.provisioner()
			if err != nil {
				return err
			}
			result, err := p.Renew(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if result.Renewed {
				fmt.Printf("Renewed certificate for %s\n", result.Domain)
			} else {
				fmt.Printf("Certificate for %s is not due for renewal\n", result.Domain)
			}
			return nil
		},
	}
}
