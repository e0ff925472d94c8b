package main

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/persistorai/assetmig/internal/models"
	"github.com/persistorai/assetmig/internal/service"
	"github.com/persistorai/assetmig/internal/version"
)

type migrateReport struct {
	Summary models.BatchSummary `json:"summary"`
	Results []models.FileResult `json:"results"`
}

func newMigrateCmd() *cobra.Command {
	var until, metricsFile, pkg string
	var dryRun bool
	var workers int

	cmd := &cobra.Command{
		Use:   "migrate [paths...]",
		Short: "Migrate assets to the versions expected by the catalog",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("workers") {
				cfg.Workers = workers
			}
			if cmd.Flags().Changed("dry-run") {
				cfg.DryRun = dryRun
			}
			if cmd.Flags().Changed("metrics-file") {
				cfg.MetricsFile = metricsFile
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ceiling, err := parseUntil(until)
			if err != nil {
				return err
			}

			eng, err := loadEngine(cfg.CatalogPath, logger)
			if err != nil {
				return err
			}

			files, err := service.CollectFiles(args, eng.serializers)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			jw, stopJournal, err := startJournal(ctx, cfg.JournalPath, len(files), logger)
			if err != nil {
				return err
			}

			svc := service.NewMigrationService(eng.migrator, jw, logger, service.MigrationOptions{
				Workers: cfg.Workers,
				DryRun:  cfg.DryRun,
				Package: pkg,
			})
			results, summary, runErr := svc.MigrateAll(ctx, files, cfg.Dependency, ceiling)
			stopJournal()

			if cfg.MetricsFile != "" {
				if err := prometheus.WriteToTextfile(cfg.MetricsFile, prometheus.DefaultGatherer); err != nil {
					logger.WithError(err).Warn("writing metrics file failed")
				}
			}

			output(migrateReport{Summary: summary, Results: results}, func() ([]string, [][]string) {
				return migrateRows(results)
			})
			if flagFmt == "table" {
				fmt.Println()
				fmt.Println(summaryLine(summary))
			}

			if runErr != nil {
				return runErr
			}
			if n := summary.Results[models.ResultFailed]; n > 0 {
				return fmt.Errorf("%d of %d assets failed to migrate", n, summary.Total)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&until, "until", "", "Stop once this version would be passed")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Run migrations without saving (env: ASSETMIG_DRY_RUN)")
	cmd.Flags().IntVar(&workers, "workers", 4, "Assets migrated at once (env: ASSETMIG_WORKERS)")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this .prom file (env: ASSETMIG_METRICS_FILE)")
	cmd.Flags().StringVar(&pkg, "package", "", "Package name passed to upgraders")

	return cmd
}

func parseUntil(text string) (*version.Version, error) {
	if text == "" {
		return nil, nil
	}
	v, err := version.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("invalid --until: %w", err)
	}
	return &v, nil
}

func migrateRows(results []models.FileResult) ([]string, [][]string) {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			r.Path,
			orDash(r.Type),
			orDash(r.From),
			orDash(r.To),
			strconv.Itoa(r.Steps),
			r.Result,
			orDash(r.Error),
		})
	}
	return []string{"PATH", "TYPE", "FROM", "TO", "STEPS", "RESULT", "ERROR"}, rows
}

func summaryLine(s models.BatchSummary) string {
	keys := make([]string, 0, len(s.Results))
	for k := range s.Results {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, s.Results[k]))
	}

	line := fmt.Sprintf("%d assets: %s (run %s)", s.Total, strings.Join(parts, " "), s.RunID)
	if s.DryRun {
		line += " [dry run]"
	}
	return line
}
