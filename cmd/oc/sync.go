package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/opencontext/internal/llm"
	"github.com/Zuo-Peng/opencontext/internal/logging"
	"github.com/Zuo-Peng/opencontext/internal/scan"
	"github.com/Zuo-Peng/opencontext/internal/summarize"
)

func syncCmd() *cobra.Command {
	var project string
	var noLLM, force bool
	var maxJobs int

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Import new and changed sessions, then summarize them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.Close()
			log := logging.For("sync")

			files, err := scan.Discover(a.cfg.ClaudeRoot, project)
			if err != nil {
				return fmt.Errorf("discover: %w", err)
			}
			log.Info().Str("root", a.cfg.ClaudeRoot).Int("files", len(files)).Msg("scanning")

			stats, err := a.importer().Sync(cmd.Context(), files, force)
			if err != nil {
				return err
			}
			log.Info().Msgf("import done: %s", stats)

			result := struct {
				Import  any                     `json:"import"`
				Process *summarize.ProcessStats `json:"process,omitempty"`
			}{Import: stats}

			if !noLLM {
				ps, err := processJobs(cmd, a, maxJobs)
				switch {
				case errors.Is(err, llm.ErrNoAPIKey):
					log.Warn().Msg("no API key configured, skipping summaries (see 'oc init')")
				case err != nil:
					return err
				default:
					result.Process = &ps
				}
			}

			if jsonOut {
				return printJSON(cmd.OutOrStdout(), result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported: %s\n", stats)
			if result.Process != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Summarized: %d jobs (%d failed)\n", result.Process.Processed, result.Process.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "Only sync projects whose path contains this")
	cmd.Flags().BoolVar(&noLLM, "no-llm", false, "Import only, leave jobs queued")
	cmd.Flags().BoolVar(&force, "force", false, "Re-parse every file")
	cmd.Flags().IntVar(&maxJobs, "max-jobs", -1, "Max jobs to process (default from config, 0 = all)")
	return cmd
}

func processJobs(cmd *cobra.Command, a *app, max int) (summarize.ProcessStats, error) {
	s, err := a.summarizer()
	if err != nil {
		return summarize.ProcessStats{}, err
	}
	if max < 0 {
		max = a.cfg.Summary.MaxJobs
	}
	return s.Process(cmd.Context(), max)
}

func processCmd() *cobra.Command {
	var max, workers int

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run queued summary jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.Close()
			if workers > 0 {
				a.cfg.Summary.Workers = workers
			}

			stats, err := processJobs(cmd, a, max)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), stats)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Processed %d jobs, %d failed\n", stats.Processed, stats.Failed)
			return nil
		},
	}

	cmd.Flags().IntVar(&max, "max", -1, "Max jobs to process (default from config, 0 = all)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent workers (default from config)")
	return cmd
}

func importCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "import <file.jsonl>",
		Short: "Import a single session transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.importer().ImportSession(args[0], force)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%d turns imported, %d skipped)\n",
				res.SessionID, res.Status, res.TurnsImported, res.TurnsSkipped)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Re-parse the whole file")
	return cmd
}

func discoverCmd() *cobra.Command {
	var project string

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List session transcripts under the Claude projects root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.Close()

			files, err := scan.Discover(a.cfg.ClaudeRoot, project)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), files)
			}
			for _, f := range files {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d\n", f.SessionID, f.Project, f.Size)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d sessions\n", len(files))
			return nil
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "Only projects whose path contains this")
	return cmd
}
