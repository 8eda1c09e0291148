package main

import (
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// configCmd prints the resolved configuration
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the resolved configuration",
	Long: `Prints the configuration after merging defaults, the user file,
the workspace file and DMKIT_* environment variables. Secrets are
redacted.`,
	RunE: printConfig,
}

func printConfig(cmd *cobra.Command, args []string) error {
	resolved := *cfg
	if resolved.S3.SecretKey != "" {
		resolved.S3.SecretKey = "***"
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(resolved)
}
