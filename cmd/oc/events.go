package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/opencontext/internal/index"
	"github.com/Zuo-Peng/opencontext/internal/search"
)

func eventsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "events [query]",
		Short: "List events, or search them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.Close()

			var events []index.Event
			if len(args) == 1 {
				events, err = search.Events(a.db, args[0], limit)
			} else {
				events, err = a.db.ListEvents(limit)
			}
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), events)
			}
			for _, e := range events {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-8s %s  %s\n", shortID(e.ID), e.Status, shortDate(e.UpdatedAt), e.Title)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Max events")
	cmd.AddCommand(eventCreateCmd())
	return cmd
}

func eventCreateCmd() *cobra.Command {
	var eventID string
	var queue bool

	cmd := &cobra.Command{
		Use:   "create <session-id>...",
		Short: "Summarize sessions into an event",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := a.summarizer()
			if err != nil {
				return err
			}
			if queue {
				id, err := s.QueueEvent(args, eventID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued job %s\n", id)
				return nil
			}

			e, err := s.SummarizeEvent(cmd.Context(), args, eventID)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), e)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", e.ID, e.Title)
			return nil
		},
	}

	cmd.Flags().StringVar(&eventID, "id", "", "Refresh this event instead of creating one")
	cmd.Flags().BoolVar(&queue, "queue", false, "Queue the summary for 'oc process'")
	return cmd
}

func eventCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "event <event-id>",
		Short: "Show an event and its sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.Close()

			e, err := a.db.GetEvent(args[0])
			if err != nil {
				return fmt.Errorf("event %s: %w", args[0], err)
			}
			sessions, err := a.db.SessionsForEvent(e.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, struct {
					*index.Event
					Sessions []index.Session `json:"sessions"`
				}{e, sessions})
			}
			fmt.Fprintf(out, "Event:  %s\n", e.ID)
			fmt.Fprintf(out, "Title:  %s\n", e.Title)
			fmt.Fprintf(out, "Status: %s (%s)\n", e.Status, e.EventType)
			fmt.Fprintf(out, "Span:   %s .. %s\n", shortDate(e.StartTimestamp), shortDate(e.EndTimestamp))
			if e.Description != "" {
				fmt.Fprintf(out, "\n%s\n", strings.TrimSpace(e.Description))
			}
			fmt.Fprintln(out, "\nSessions:")
			for _, s := range sessions {
				fmt.Fprintf(out, "  %s\n", sessionLine(s))
			}
			return nil
		},
	}
}
