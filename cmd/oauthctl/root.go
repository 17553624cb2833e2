package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Seann-Moser/oauth2core/oauth/oserver"
)

var Version = "0.1.0"

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "oauthctl",
		Short: "oauthctl – build and inspect OAuth2 requests and responses",
		Long:  "oauthctl drives the client side of an OAuth2 negotiation from the shell: it builds authorization URIs and token request bodies, and parses redirects and token responses.",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to an oauth2core YAML config")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "oauthctl %s\n", Version)
		},
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective server configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadEffectiveConfig(configPath)
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	rootCmd.AddCommand(versionCmd, configCmd)
	rootCmd.AddCommand(newAuthorizeURICmd(), newTokenBodyCmd(), newParseCmd(), newParseTokenCmd())
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		if err != nil {
			_, _ = fmt.Fprintln(os.Stderr, err)
			if err := cmd.Usage(); err != nil {
				return err
			}
			os.Exit(2)
		}
		return nil
	})
	return rootCmd
}

func loadEffectiveConfig(path string) (*oserver.Config, error) {
	if path == "" {
		cfg := oserver.DefaultConfig()
		return &cfg, nil
	}
	cfg, err := oserver.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
