package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/opencontext/internal/config"
	"github.com/Zuo-Peng/opencontext/internal/index"
	"github.com/Zuo-Peng/opencontext/internal/scan"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show database and job queue counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.db.Stats()
			if err != nil {
				return err
			}
			jobs, err := a.db.JobCounts()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, struct {
					index.Stats
					Jobs map[string]int `json:"jobs"`
				}{stats, jobs})
			}
			fmt.Fprintf(out, "Database:   %s (%.2f MB)\n", stats.DBPath, stats.DBSizeMB)
			fmt.Fprintf(out, "Sessions:   %d\n", stats.Sessions)
			fmt.Fprintf(out, "Turns:      %d (%d summarized)\n", stats.Turns, stats.Summarized)
			fmt.Fprintf(out, "Events:     %d\n", stats.Events)
			fmt.Fprintf(out, "Jobs:       %s\n", formatCounts(jobs))
			return nil
		},
	}
}

func formatCounts(m map[string]int) string {
	if len(m) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s := ""
	for i, k := range keys {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s=%d", k, m[k])
	}
	return s
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Self-check: verify root, DB, FTS5, model config and show stats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}

			fmt.Println("=== Root ===")
			checkDir("Claude", cfg.ClaudeRoot)

			fmt.Println("\n=== File Scan ===")
			files, err := scan.Discover(cfg.ClaudeRoot, "")
			if err != nil {
				fmt.Printf("  scan error: %v\n", err)
			} else {
				projects := map[string]bool{}
				for _, f := range files {
					projects[f.Project] = true
				}
				fmt.Printf("  Session files: %d in %d projects\n", len(files), len(projects))
			}

			fmt.Println("\n=== Model ===")
			fmt.Printf("  Model:    %s\n", cfg.LLM.Model)
			fmt.Printf("  Endpoint: %s\n", orDash(cfg.LLM.Endpoint()))
			if err := cfg.LLM.CheckAPIKey(); err != nil {
				fmt.Printf("  API key:  %v (summaries disabled)\n", err)
			} else {
				fmt.Println("  API key:  OK")
			}

			fmt.Println("\n=== Database ===")
			fmt.Printf("  Path: %s\n", cfg.DBPath)
			if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
				fmt.Println("  Status: NOT FOUND (run 'oc sync' first)")
				return nil
			}

			a, err := setupWith(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.db.Stats()
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			fmt.Printf("  Sessions: %d\n", stats.Sessions)
			fmt.Printf("  Turns:    %d\n", stats.Turns)

			fmt.Println("\n=== FTS5 ===")
			var ftsCount int
			err = a.db.Raw().QueryRow("SELECT COUNT(*) FROM turns_fts").Scan(&ftsCount)
			if err != nil {
				fmt.Printf("  FTS5 error: %v\n", err)
			} else {
				fmt.Printf("  FTS5 entries: %d\n", ftsCount)
				if ftsCount == stats.Turns {
					fmt.Println("  Status: OK (synced)")
				} else {
					fmt.Printf("  Status: MISMATCH (turns=%d, fts=%d)\n", stats.Turns, ftsCount)
				}
			}

			fmt.Printf("\n=== DB Size: %.1f MB ===\n", stats.DBSizeMB)
			return nil
		},
	}
}

func checkDir(name, path string) {
	if info, err := os.Stat(path); err != nil {
		fmt.Printf("  %s: %s (NOT FOUND)\n", name, path)
	} else if !info.IsDir() {
		fmt.Printf("  %s: %s (NOT A DIRECTORY)\n", name, path)
	} else {
		fmt.Printf("  %s: %s (OK)\n", name, path)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
