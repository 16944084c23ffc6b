package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"ragqa/internal/config"
	"ragqa/internal/domain"
	"ragqa/internal/httpapi"
	"ragqa/internal/loader"
	"ragqa/internal/tui"
)

var (
	docPaths   []string
	topK       int
	showPrompt bool
	forceInit  bool
)

// demoCorpus is the two-sentence corpus the walkthrough uses.
var demoCorpus = []string{
	"A Torre Eiffel tem 324 metros de altura.",
	"O Monte Everest é a montanha mais alta do mundo.",
}

const demoQuery = "Qual é a altura da Torre Eiffel?"

func init() {
	for _, c := range []*cobra.Command{askCmd, searchCmd, serveCmd} {
		c.Flags().StringArrayVarP(&docPaths, "docs", "d", nil, "files or globs to ingest first (repeatable)")
	}
	for _, c := range []*cobra.Command{askCmd, searchCmd, tuiCmd} {
		c.Flags().IntVarP(&topK, "top-k", "k", 0, "number of passages to retrieve (default retrieval.top_k)")
	}
	askCmd.Flags().BoolVar(&showPrompt, "show-prompt", false, "print the assembled prompt")
	demoCmd.Flags().BoolVar(&showPrompt, "show-prompt", false, "print the assembled prompt")
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
}

// withApp wires the pipeline, ingests --docs and runs fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app, summary string) error) error {
	a, err := buildApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()
	summary := ""
	if len(docPaths) > 0 {
		if summary, err = a.svc.IngestFiles(ctx, docPaths); err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}
	}
	return fn(ctx, a, summary)
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the indexed documents",
	Long: `Retrieve the passages closest to the question and generate an answer.

Examples:
  rag ask -d 'notes/*.md' "What is the rollout plan?"
  rag ask -k 1 -d corpus.jsonl --show-prompt "Qual é a altura da Torre Eiffel?"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app, _ string) error {
			ans, err := a.svc.Ask(ctx, args[0], topK)
			if err != nil {
				return err
			}
			printAnswer(cmd, ans)
			return nil
		})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Print the passages nearest to a query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app, _ string) error {
			res, err := a.svc.Query(ctx, args[0], topK)
			if err != nil {
				return err
			}
			printResults(cmd, res)
			return nil
		})
	},
}

var tuiCmd = &cobra.Command{
	Use:   "tui file [file...]",
	Short: "Ingest files and ask questions interactively",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		docPaths = args
		return withApp(cmd, func(_ context.Context, a *app, summary string) error {
			k := topK
			if k <= 0 {
				k = cfg.Retrieval.TopK
			}
			_, err := tea.NewProgram(tui.New(a.svc, summary, k), tea.WithAltScreen()).Run()
			return err
		})
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Serve the JSON API on server.addr:

  GET  /health     liveness and document count
  POST /documents  {"documents":[{"id","title","content"}]} or {"texts":[...]}
  POST /search     {"query","top_k"}
  POST /ask        {"query","top_k"}
  GET  /metrics    Prometheus metrics`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		cmd.SetContext(ctx)
		return withApp(cmd, func(ctx context.Context, a *app, _ string) error {
			return httpapi.New(a.svc, a.registry, logger).Run(ctx, cfg.Server.Addr)
		})
	},
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the Eiffel Tower / Everest walkthrough",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		docPaths = nil
		return withApp(cmd, func(ctx context.Context, a *app, _ string) error {
			if _, err := a.svc.IngestDocuments(ctx, loader.FromStrings(demoCorpus)); err != nil {
				return err
			}
			ans, err := a.svc.Ask(ctx, demoQuery, 1)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Question: %s\n", demoQuery)
			printAnswer(cmd, ans)
			return nil
		})
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:         "init [path]",
	Short:       "Write the default configuration",
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{"skipConfig": "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) == 1 {
			path = args[0]
		} else {
			p, err := config.DefaultUserConfigPath()
			if err != nil {
				return err
			}
			path = p
		}
		if _, err := os.Stat(path); err == nil && !forceInit {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.Save(path, config.Default()); err != nil {
			return err
		}
		abs, _ := filepath.Abs(path)
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", abs)
		return nil
	},
}

func printAnswer(cmd *cobra.Command, ans domain.Answer) {
	out := cmd.OutOrStdout()
	if showPrompt {
		fmt.Fprintf(out, "--- prompt ---\n%s\n--------------\n", ans.Prompt)
	}
	fmt.Fprintf(out, "Answer: %s\n", ans.Text)
	if len(ans.Sources) > 0 {
		fmt.Fprintln(out, "Sources:")
		printResults(cmd, ans.Sources)
	}
}

func printResults(cmd *cobra.Command, res []domain.SearchResult) {
	out := cmd.OutOrStdout()
	for i, r := range res {
		label := r.Chunk.Title
		if label == "" {
			label = r.Chunk.DocumentID
		}
		fmt.Fprintf(out, "%2d. [%s] distance=%.4f score=%.4f\n    %s\n", i+1, label, r.Distance, r.Score, r.Chunk.Text)
	}
}
