package cmd

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/jmehdipour/saas-gateway/internal/config"
	"github.com/spf13/cobra"
)

var secretsCmd = &cobra.Command{
	Use:   "secrets",
	Short: "Inspect third-party credentials",
}

var secretsVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that required secrets are set and well formed",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}

		report := cfg.VerifySecrets()

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}

		if !report.OK() {
			return errors.New("secrets: missing or invalid values")
		}
		return nil
	},
}

func init() {
	secretsCmd.AddCommand(secretsVerifyCmd)
}
