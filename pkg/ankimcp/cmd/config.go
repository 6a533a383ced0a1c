package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ankimcp/anki-mcp-server/pkg/ankimcp/config"
	"github.com/ankimcp/anki-mcp-server/pkg/ankimcp/output"
)

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage ankimcp configuration",
	}

	cmd.AddCommand(
		newConfigInitCommand(),
		newConfigViewCommand(),
	)

	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var (
		baseURL  string
		realm    string
		clientID string
		caFile   string
		insecure bool
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize an ankimcp config file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			path := rt.configPathValue()
			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("config already exists: %s", path)
				}
			}
			cfg := config.DefaultConfig()
			if baseURL != "" {
				cfg.Auth.BaseURL = baseURL
			}
			if realm != "" {
				cfg.Auth.Realm = realm
			}
			if clientID != "" {
				cfg.Auth.ClientID = clientID
			}
			cfg.Auth.CAFile = caFile
			cfg.Auth.InsecureSkipTLS = insecure
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(path, &cfg); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Initialized config at %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "auth-url", "", "Identity provider base URL")
	cmd.Flags().StringVar(&realm, "realm", "", "Identity provider realm")
	cmd.Flags().StringVar(&clientID, "client-id", "", "OAuth client ID")
	cmd.Flags().StringVar(&caFile, "ca-file", "", "Extra CA bundle for the identity provider")
	cmd.Flags().BoolVar(&insecure, "insecure-skip-tls-verify", false, "Skip TLS verification")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing config")

	return cmd
}

func newConfigViewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			return output.WriteObject(rt.Writer(), output.FormatYAML, rt.cfg)
		},
	}
}
