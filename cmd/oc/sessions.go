package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/opencontext/internal/index"
)

func sessionsCmd() *cobra.Command {
	var workspace string
	var limit int

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List sessions by recent activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.Close()

			sessions, err := a.db.ListSessions(workspace, limit)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), sessions)
			}
			for _, s := range sessions {
				fmt.Fprintln(cmd.OutOrStdout(), sessionLine(s))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&workspace, "workspace", "", "Only sessions of this workspace")
	cmd.Flags().IntVar(&limit, "limit", 50, "Max sessions")
	return cmd
}

func sessionLine(s index.Session) string {
	title := s.Title
	if title == "" {
		title = "(untitled)"
	}
	return fmt.Sprintf("%s  %s  %3d turns  %s  %s",
		shortID(s.ID), shortDate(s.LastActivityAt), s.TotalTurns, title, s.Workspace)
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show a session with its turn titles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := a.db.GetSessionByPrefix(args[0])
			if err != nil {
				return fmt.Errorf("session %s: %w", args[0], err)
			}
			turns, err := a.db.GetTurns(s.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, struct {
					*index.Session
					Turns []index.Turn `json:"turns"`
				}{s, turns})
			}

			fmt.Fprintf(out, "Session:   %s\n", s.ID)
			fmt.Fprintf(out, "Workspace: %s\n", s.Workspace)
			fmt.Fprintf(out, "Active:    %s .. %s\n", s.StartedAt, s.LastActivityAt)
			if s.Title != "" {
				fmt.Fprintf(out, "Title:     %s\n", s.Title)
			}
			if s.Summary != "" {
				fmt.Fprintf(out, "\n%s\n", s.Summary)
			}
			fmt.Fprintln(out)
			for _, t := range turns {
				mark := " "
				if t.IsContinuation {
					mark = "+"
				}
				fmt.Fprintf(out, "%3d%s %s  %s\n", t.TurnNumber, mark, shortDate(t.Timestamp), t.Title)
				if t.Description != "" {
					fmt.Fprintf(out, "      %s\n", strings.ReplaceAll(t.Description, "\n", " "))
				}
			}
			return nil
		},
	}
}

func projectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List workspaces with session and turn counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.Close()

			projects, err := a.db.Projects()
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), projects)
			}
			for _, p := range projects {
				fmt.Fprintf(cmd.OutOrStdout(), "%-50s %4d sessions %5d turns  %s\n",
					p.Workspace, p.Sessions, p.Turns, shortDate(p.LastActivity))
			}
			return nil
		},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// shortDate keeps "YYYY-MM-DD HH:MM" of an RFC 3339 or SQLite timestamp.
func shortDate(ts string) string {
	ts = strings.Replace(ts, "T", " ", 1)
	if len(ts) > 16 {
		return ts[:16]
	}
	return ts
}
