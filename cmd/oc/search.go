package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Zuo-Peng/opencontext/internal/search"
	"github.com/Zuo-Peng/opencontext/internal/tui"
)

const (
	sColorReset   = "\033[0m"
	sColorBoldRed = "\033[1;31m"
	sColorBlue    = "\033[1;34m"
	sColorDim     = "\033[2m"
)

func colorizeSnippet(snippet string) string {
	snippet = strings.ReplaceAll(snippet, ">>>", sColorBoldRed)
	snippet = strings.ReplaceAll(snippet, "<<<", sColorReset)
	return snippet
}

func flatten(s string) string {
	s = strings.ReplaceAll(s, "\t", " ")
	return strings.ReplaceAll(s, "\n", " ")
}

// writeTSV prints one result per line for fzf: session id and turn number
// stay plain so they can be referenced as {1} and {2}.
func writeTSV(w io.Writer, results []search.Result, color bool) {
	for _, r := range results {
		snippet := flatten(r.Snippet)
		date := shortDate(r.Timestamp)
		project := orDash(r.Workspace)
		if color {
			snippet = colorizeSnippet(snippet)
			date = sColorDim + date + sColorReset
			project = sColorBlue + project + sColorReset
		} else {
			snippet = strings.NewReplacer(">>>", "", "<<<", "").Replace(snippet)
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\n",
			r.SessionID, r.TurnNumber, date, project, flatten(r.Title), snippet)
	}
}

func searchCmd() *cobra.Command {
	var workspace, since string
	var limit int
	var perSession, plain bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search across indexed turns",
		Long: `Search indexed turns using FTS5 (substring match for CJK queries).
Opens a TUI on a terminal; otherwise prints TSV for fzf integration:
  sessionId, turn, date, workspace, title, snippet

Recommended shell function (add to .zshrc):
  ocf() {
    oc search --plain "$*" | fzf \
      --ansi \
      --delimiter='\t' --with-nth=3.. \
      --preview 'oc preview {1} --turn {2} --context 2 --query {q}' \
      --preview-window=right:60%:wrap \
      --bind 'enter:execute(oc open {1} --turn {2})'
  }`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.Close()

			opts := search.Options{
				Workspace:  workspace,
				Since:      since,
				Limit:      limit,
				PerSession: perSession,
			}

			tty := term.IsTerminal(int(os.Stdout.Fd()))
			if tty && !plain && !jsonOut {
				return tui.Run(a.db, args[0], opts, cmd.OutOrStdout())
			}

			opts.Query = args[0]
			results, err := search.Search(a.db, opts)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), results)
			}
			if len(results) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "No results found.")
				return nil
			}
			writeTSV(cmd.OutOrStdout(), results, tty)
			return nil
		},
	}

	cmd.Flags().StringVar(&workspace, "workspace", "", "Filter by workspace path substring")
	cmd.Flags().StringVar(&since, "since", "", "Filter turns since date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 100, "Max results")
	cmd.Flags().BoolVar(&perSession, "per-session", false, "Keep only the best hit per session")
	cmd.Flags().BoolVar(&plain, "plain", false, "Print TSV even on a terminal")
	return cmd
}

func listCmd() *cobra.Command {
	var workspace, since string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Browse recent turns",
		Long:  `Opens a TUI panel showing the latest turns (newest first). Type to search; ctrl+r switches between recent and search mode.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.Close()

			opts := search.Options{
				Workspace: workspace,
				Since:     since,
				Limit:     limit,
			}
			if jsonOut || !term.IsTerminal(int(os.Stdout.Fd())) {
				results, err := search.Recent(a.db, opts)
				if err != nil {
					return err
				}
				if jsonOut {
					return printJSON(cmd.OutOrStdout(), results)
				}
				writeTSV(cmd.OutOrStdout(), results, false)
				return nil
			}
			return tui.RunList(a.db, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&workspace, "workspace", "", "Filter by workspace path substring")
	cmd.Flags().StringVar(&since, "since", "", "Filter turns since date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 200, "Max turns")
	return cmd
}
