package main

import (
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/persistorai/assetmig/internal/models"
	"github.com/persistorai/assetmig/internal/service"
)

type inspectResult struct {
	Path           string `json:"path"`
	Tag            string `json:"tag,omitempty"`
	ID             string `json:"id,omitempty"`
	IDValid        bool   `json:"id_valid"`
	Type           string `json:"type,omitempty"`
	Version        string `json:"version,omitempty"`
	Expected       string `json:"expected,omitempty"`
	Legacy         bool   `json:"legacy"`
	NeedsMigration bool   `json:"needs_migration"`
	Error          string `json:"error,omitempty"`
	ErrorKind      string `json:"error_kind,omitempty"`
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [paths...]",
		Short: "Show the serialized and expected versions of assets",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := loadEngine(cfg.CatalogPath, logger)
			if err != nil {
				return err
			}

			files, err := service.CollectFiles(args, eng.serializers)
			if err != nil {
				return err
			}

			results := make([]inspectResult, 0, len(files))
			for _, f := range files {
				res := inspectResult{Path: f.FilePath}
				in, err := eng.migrator.Inspect(f, cfg.Dependency)
				res.Tag = in.Tag
				res.ID = in.ID
				res.IDValid = validID(in.ID)
				res.Type = in.Type
				res.Legacy = in.Legacy
				if in.Tag != "" {
					res.Version = in.Version.String()
				}
				if in.Type != "" {
					res.Expected = in.Expected.String()
					res.NeedsMigration = in.NeedsMigration()
				}
				if err != nil {
					res.Error = err.Error()
					res.ErrorKind = models.ErrorKind(err)
				}
				results = append(results, res)
			}

			output(results, func() ([]string, [][]string) {
				return inspectRows(results)
			})
			return nil
		},
	}
}

// validID reports whether id is a UUID, the form new assets are written with.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func inspectRows(results []inspectResult) ([]string, [][]string) {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			r.Path,
			orDash(r.Tag),
			idColumn(r),
			orDash(r.Type),
			orDash(r.Version),
			orDash(r.Expected),
			strconv.FormatBool(r.NeedsMigration),
			orDash(r.Error),
		})
	}
	return []string{"PATH", "TAG", "ID", "TYPE", "VERSION", "EXPECTED", "MIGRATE", "ERROR"}, rows
}

func idColumn(r inspectResult) string {
	switch {
	case r.ID == "":
		return "-"
	case !r.IDValid:
		return r.ID + " (invalid)"
	default:
		return r.ID
	}
}
