package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/opencontext/internal/index"
	"github.com/Zuo-Peng/opencontext/internal/llm"
	"github.com/Zuo-Peng/opencontext/internal/logging"
	"github.com/Zuo-Peng/opencontext/internal/watch"
)

func watchCmd() *cobra.Command {
	var noLLM bool
	var delay time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Import sessions as they are written",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.Close()
			log := logging.For("watch")

			w := watch.New(a.cfg.ClaudeRoot, a.importer(), delay, log)
			if !noLLM {
				s, err := a.summarizer()
				switch {
				case errors.Is(err, llm.ErrNoAPIKey):
					log.Warn().Msg("no API key configured, importing only")
				case err != nil:
					return err
				default:
					w.OnImport = func(path string, res index.ImportResult, err error) {
						if err != nil || res.TurnsImported == 0 {
							return
						}
						stats, err := s.Process(cmd.Context(), a.cfg.Summary.MaxJobs)
						if err != nil {
							log.Warn().Err(err).Msg("process failed")
							return
						}
						log.Info().Int("processed", stats.Processed).Int("failed", stats.Failed).Msg("summarized")
					}
				}
			}

			err = w.Run(cmd.Context())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&noLLM, "no-llm", false, "Import only, leave jobs queued")
	cmd.Flags().DurationVar(&delay, "delay", watch.DefaultDelay, "Quiet period before a changed file is imported")
	return cmd
}
