package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "storeadmin",
	Short: "Store admin API: authentication, sessions and permissions",
	Long: `Store admin API server and operator tools.

	storeadmin serve
	storeadmin migrate up
	storeadmin bootstrap-admin --email root@example.com --first-name Root --last-name Admin
`,
	SilenceUsage: true,
}
