package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "aegis-gateway",
	Short: "Aegis security gateway",
	Long:  `A request-time security gateway: rate limiting, access control, anomaly detection and audit logging in front of a web backend.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a YAML config file (AEGIS_* env vars override it)")
}
