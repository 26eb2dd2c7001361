package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/izetmolla/odooproxy/detect"
)

func detectCmd() *cobra.Command {
	var service string
	var config string

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Show the Odoo instance and ports provisioning would target",
		RunE: func(cmd *cobra.Command, args []string) error {
			if service == "" && config == "" {
				services := detect.FindServices()
				if len(services) == 0 {
					return fmt.Errorf("no odoo*.service units found")
				}
				if len(services) > 1 {
					fmt.Println("Odoo services found:")
					for _, s := range services {
						fmt.Printf("  %s\n", s)
					}
					return nil
				}
				service = services[0]
			}

			runtime, err := detect.BuildRuntime(service, config)
			if err != nil {
				return err
			}
			if runtime.ServiceName != "" {
				fmt.Printf("service:      %s\n", runtime.ServiceName)
				fmt.Printf("unit file:    %s\n", runtime.ServiceFile)
			}
			fmt.Printf("config file:  %s\n", runtime.ConfigFile)
			fmt.Printf("http port:    %d\n", runtime.HTTPPort)
			fmt.Printf("longpolling:  %d\n", runtime.LongpollingPort)
			return nil
		},
	}

	cmd.Flags().StringVarP(&service, "service", "s", "", "Odoo systemd service to inspect")
	cmd.Flags().StringVarP(&config, "config", "c", "", "Odoo config file to inspect")
	return cmd
}
