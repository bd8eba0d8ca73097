package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/opencontext/internal/summarize"
)

func briefCmd() *cobra.Command {
	var top int
	var generate bool
	var update string

	cmd := &cobra.Command{
		Use:   "brief <workspace>",
		Short: "Print the project brief of a workspace, generating it when missing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.Close()

			ws, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			s, err := a.summarizer()
			if err != nil {
				return err
			}
			brief, source, err := s.Brief(cmd.Context(), ws, summarize.BriefOptions{
				Regenerate:    generate,
				UpdateSession: update,
				Top:           top,
			})
			if err != nil {
				return err
			}

			if jsonOut {
				return printJSON(cmd.OutOrStdout(), struct {
					Workspace string                `json:"workspace"`
					Path      string                `json:"path"`
					Source    summarize.BriefSource `json:"source"`
					Brief     string                `json:"brief"`
				}{ws, s.BriefPath(ws), source, brief})
			}
			fmt.Fprint(cmd.OutOrStdout(), brief)
			fmt.Fprintf(cmd.ErrOrStderr(), "(%s: %s)\n", source, s.BriefPath(ws))
			return nil
		},
	}

	cmd.Flags().IntVar(&top, "top", 0, "Sessions to extract (default from config)")
	cmd.Flags().BoolVar(&generate, "generate", false, "Regenerate even if a brief exists")
	cmd.Flags().StringVar(&update, "update", "", "Fold this session into the existing brief")
	return cmd
}
