package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/opencontext/internal/config"
)

func initCmd() *cobra.Command {
	var model, apiKey, baseURL string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file and create the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.Path()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			cfg, err := config.LoadFile(path)
			if err != nil {
				return err
			}
			if model != "" {
				cfg.LLM.Model = model
			}
			if apiKey != "" {
				cfg.LLM.APIKey = apiKey
			}
			if baseURL != "" {
				cfg.LLM.BaseURL = baseURL
			}
			if err := config.Save(path, cfg); err != nil {
				return err
			}

			a, err := setupWith(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config:   %s\n", path)
			fmt.Fprintf(out, "Database: %s\n", cfg.DBPath)
			fmt.Fprintf(out, "Model:    %s\n", cfg.LLM.Model)
			if cfg.LLM.ResolveAPIKey() == "" {
				fmt.Fprintln(out, "No API key found; summaries are disabled until one is configured.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "Model, e.g. openai/gpt-4o-mini")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key stored in the config file")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "OpenAI-compatible endpoint")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config")
	return cmd
}
