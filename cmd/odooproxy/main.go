// Command odooproxy provisions HTTPS for an Odoo server: it detects the
// running instance, writes the staged nginx configs, obtains the Let's
// Encrypt certificate and wires up unattended renewal.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
