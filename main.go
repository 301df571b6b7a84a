package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github/itish2003/docqa/config"
	"github/itish2003/docqa/models"
)

func main() {
	var cfgPath string
	root := &cobra.Command{
		Use:           "docqa",
		Short:         "Question answering over uploaded documents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (env vars and .env take precedence)")

	root.AddCommand(serveCMD(&cfgPath), ingestCMD(&cfgPath), askCMD(&cfgPath), resetCMD(&cfgPath))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		log.Printf("FATAL: %v", err)
		stop()
		os.Exit(1)
	}
}

// withApp loads and validates the config, builds the App and runs fn with it.
func withApp(ctx context.Context, cfgPath string, fn func(*App) error) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}
	app, err := NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

func serveCMD(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and chat UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *cfgPath, func(app *App) error {
				return app.Serve(cmd.Context())
			})
		},
	}
}

func ingestCMD(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Index documents from disk",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *cfgPath, func(app *App) error {
				ids, err := app.ingestion.IngestPaths(cmd.Context(), args)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d chunks from %d files\n", len(ids), len(args))
				return nil
			})
		},
	}
}

func askCMD(cfgPath *string) *cobra.Command {
	var sessionID string
	ask := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the indexed documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *cfgPath, func(app *App) error {
				result, err := app.rag.Ask(cmd.Context(), models.AskRequest{
					Text:      strings.Join(args, " "),
					SessionID: sessionID,
				})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, result.Answer)
				for _, c := range result.Chunks {
					fmt.Fprintf(out, "  - %s (page %d)\n", c.Source, c.Page)
				}
				fmt.Fprintf(out, "session: %s\n", result.SessionID)
				return nil
			})
		},
	}
	ask.Flags().StringVarP(&sessionID, "session", "s", "", "continue an existing conversation")
	return ask
}

func resetCMD(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete every chunk from the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *cfgPath, func(app *App) error {
				if err := app.rag.ResetIndex(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Index reset")
				return nil
			})
		},
	}
}
