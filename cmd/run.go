package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/browser"
	"github.com/sells-group/prospector/internal/export"
	"github.com/sells-group/prospector/internal/extract"
	"github.com/sells-group/prospector/internal/generate"
	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/pipeline"
	"github.com/sells-group/prospector/internal/store"
	"github.com/sells-group/prospector/pkg/anthropic"
)

var (
	runTargetsPath string
	runSingleURL   string
	runNoDocs      bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scrape-generate pipeline over a batch of targets",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		targets, err := resolveTargets()
		if err != nil {
			return err
		}

		if cfg.Generation.APIKey == "" {
			return eris.New("generation.api_key is not set (PROSPECTOR_GENERATION_API_KEY)")
		}

		st, err := store.NewSQLite(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		pool := browser.NewPool(cfg.Browser)
		defer pool.Close()

		summary, err := export.NewXLSXSink(cfg.Export.XLSXPath, cfg.Export.ExcerptLen)
		if err != nil {
			return err
		}

		var documents pipeline.DocumentSink
		if !runNoDocs {
			documents = export.NewDocumentSink(cfg.Export.DocumentsDir)
		}

		generator := generate.New(anthropic.NewClient(cfg.Generation.APIKey), cfg.Generation)

		coord := pipeline.New(cfg, pool, extract.New(), generator, summary, documents, st)

		// Render the status feed while the run progresses.
		progressDone := make(chan struct{})
		go func() {
			defer close(progressDone)
			for ev := range coord.Events() {
				logEvent(ev)
			}
		}()

		run, err := coord.Run(ctx, targets)
		<-progressDone
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run.Summary())
	},
}

// resolveTargets builds the batch from --targets or --url.
func resolveTargets() ([]*model.Target, error) {
	switch {
	case runTargetsPath != "":
		return loadTargets(runTargetsPath)
	case runSingleURL != "":
		return []*model.Target{{URL: runSingleURL}}, nil
	default:
		return nil, eris.New("either --targets or --url is required")
	}
}

func logEvent(ev pipeline.StatusEvent) {
	fields := []zap.Field{
		zap.String("target_id", ev.TargetID),
		zap.String("url", ev.URL),
		zap.String("from", string(ev.From)),
		zap.String("to", string(ev.To)),
	}
	if ev.Kind != model.FailureNone {
		fields = append(fields, zap.String("kind", string(ev.Kind)), zap.String("error", ev.Err))
		zap.L().Warn("target transition", fields...)
		return
	}
	zap.L().Info("target transition", fields...)
}

func init() {
	runCmd.Flags().StringVar(&runTargetsPath, "targets", "", "path to targets YAML file")
	runCmd.Flags().StringVar(&runSingleURL, "url", "", "single target URL (alternative to --targets)")
	runCmd.Flags().BoolVar(&runNoDocs, "no-docs", false, "skip per-target document artifacts")
	rootCmd.AddCommand(runCmd)
}
