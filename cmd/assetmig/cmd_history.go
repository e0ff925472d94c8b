package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/persistorai/assetmig/internal/journal"
	"github.com/persistorai/assetmig/internal/models"
)

func newHistoryCmd() *cobra.Command {
	var path, runID, result string
	var limit, purgeDays int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded migrations from the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.JournalPath == "" {
				return errNoJournal
			}

			j, err := journal.Open(cmd.Context(), cfg.JournalPath, logger)
			if err != nil {
				return err
			}
			defer j.Close()

			if purgeDays > 0 {
				cutoff := time.Now().AddDate(0, 0, -purgeDays)
				n, err := j.PurgeBefore(cmd.Context(), cutoff)
				if err != nil {
					return err
				}
				output(map[string]int64{"purged": n}, func() ([]string, [][]string) {
					return []string{"PURGED"}, [][]string{{strconv.FormatInt(n, 10)}}
				})
				return nil
			}

			entries, err := j.Query(cmd.Context(), models.JournalQueryOpts{
				Path:   path,
				RunID:  runID,
				Result: result,
				Limit:  limit,
			})
			if err != nil {
				return err
			}

			output(entries, func() ([]string, [][]string) {
				return historyRows(entries)
			})
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Only entries for this asset path")
	cmd.Flags().StringVar(&runID, "run", "", "Only entries from this run")
	cmd.Flags().StringVar(&result, "result", "", "Only entries with this result")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum entries to list")
	cmd.Flags().IntVar(&purgeDays, "purge-days", 0, "Delete entries older than this many days instead of listing")

	return cmd
}

func historyRows(entries []models.JournalEntry) ([]string, [][]string) {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		versions := "-"
		if e.From != "" {
			versions = fmt.Sprintf("%s -> %s", e.From, e.To)
		}
		rows = append(rows, []string{
			e.CreatedAt.Local().Format(time.DateTime),
			e.Path,
			orDash(e.Type),
			e.Dependency,
			versions,
			e.Result,
			orDash(e.ErrorKind),
		})
	}
	return []string{"TIME", "PATH", "TYPE", "DEPENDENCY", "VERSIONS", "RESULT", "ERROR"}, rows
}
