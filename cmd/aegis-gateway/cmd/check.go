package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aegis-gateway/aegis/pkg/config"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and referenced files without serving",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		if _, err := newDetector(cfg); err != nil {
			return err
		}
		if _, err := newController(cfg); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "configuration ok\n")
		fmt.Fprintf(cmd.OutOrStdout(), "  port:         %s\n", cfg.Port)
		fmt.Fprintf(cmd.OutOrStdout(), "  upstream:     %s\n", cfg.UpstreamURL)
		fmt.Fprintf(cmd.OutOrStdout(), "  limit store:  %s\n", cfg.LimitStore)
		fmt.Fprintf(cmd.OutOrStdout(), "  audit store:  %s\n", cfg.AuditStore)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
