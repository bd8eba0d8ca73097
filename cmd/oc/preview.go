package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Zuo-Peng/opencontext/internal/open"
	"github.com/Zuo-Peng/opencontext/internal/render"
)

func previewCmd() *cobra.Command {
	var turn, context, width int
	var query string

	cmd := &cobra.Command{
		Use:   "preview <session-id>",
		Short: "Preview a conversation with context around a turn",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.Close()

			out, _, err := render.RenderSession(a.db, args[0], render.Options{
				HitTurn: turn,
				Context: context,
				Query:   query,
				Width:   width,
				Plain:   !term.IsTerminal(int(os.Stdout.Fd())) && os.Getenv("FZF_PREVIEW_COLUMNS") == "",
			})
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().IntVar(&turn, "turn", 0, "Turn number to highlight")
	cmd.Flags().IntVar(&context, "context", 5, "Turns before/after the highlighted one (-1 = all)")
	cmd.Flags().StringVar(&query, "query", "", "Search query for keyword highlighting")
	cmd.Flags().IntVar(&width, "width", 0, "Wrap width (0 = no wrapping)")
	return cmd
}

func openCmd() *cobra.Command {
	var turn int

	cmd := &cobra.Command{
		Use:   "open <session-id>",
		Short: "Open the original JSONL file in $EDITOR at a turn",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.Close()

			return open.OpenSession(a.db, args[0], turn)
		},
	}

	cmd.Flags().IntVar(&turn, "turn", 0, "Turn number to jump to")
	return cmd
}
