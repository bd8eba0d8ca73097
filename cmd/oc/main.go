package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/opencontext/internal/config"
	"github.com/Zuo-Peng/opencontext/internal/index"
	"github.com/Zuo-Peng/opencontext/internal/llm"
	"github.com/Zuo-Peng/opencontext/internal/logging"
	"github.com/Zuo-Peng/opencontext/internal/summarize"
)

var version = "dev"

// global flags
var (
	jsonOut bool
	verbose bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "oc",
		Short:         "OpenContext - index, summarize and search Claude Code sessions",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Print JSON instead of text")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(discoverCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(doctorCmd())
	rootCmd.AddCommand(sessionsCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(projectsCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(previewCmd())
	rootCmd.AddCommand(openCmd())
	rootCmd.AddCommand(processCmd())
	rootCmd.AddCommand(briefCmd())
	rootCmd.AddCommand(eventsCmd())
	rootCmd.AddCommand(eventCmd())
	rootCmd.AddCommand(watchCmd())
	return rootCmd
}

// app bundles what most commands need: config, logger and the store.
type app struct {
	cfg      *config.Config
	db       *index.DB
	logClose io.Closer
}

func setup() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return setupWith(cfg)
}

func setupWith(cfg *config.Config) (*app, error) {
	closer, err := logging.Setup(cfg.Log, verbose)
	if err != nil {
		return nil, err
	}
	db, err := index.OpenDB(cfg.DBPath)
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("open db: %w", err)
	}
	return &app{cfg: cfg, db: db, logClose: closer}, nil
}

func (a *app) Close() {
	a.db.Close()
	a.logClose.Close()
}

func (a *app) importer() *index.Importer {
	return index.NewImporter(a.db, a.cfg.Parse.Options(0), logging.For("import"))
}

// summarizer needs an API key for the configured model.
func (a *app) summarizer() (*summarize.Summarizer, error) {
	c, err := llm.NewOpenAI(a.cfg.LLM)
	if err != nil {
		return nil, err
	}
	client := llm.New(c, logging.For("llm"))
	return summarize.New(a.db, client, a.cfg.Summary, a.cfg.BriefsDir, logging.For("summarize")), nil
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
