package main

import (
	"strings"

	"github.com/spf13/cobra"
)

type upgraderListing struct {
	Type       string   `json:"type"`
	Dependency string   `json:"dependency"`
	Current    string   `json:"current"`
	Ranges     []string `json:"ranges"`
}

func newUpgradersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upgraders",
		Short: "List registered asset types and their upgrader ranges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := loadEngine(cfg.CatalogPath, logger)
			if err != nil {
				return err
			}

			var listings []upgraderListing
			for _, typeID := range eng.registry.Types() {
				for _, dep := range eng.registry.Dependencies(typeID) {
					l := upgraderListing{
						Type:       typeID,
						Dependency: dep,
						Current:    eng.registry.ExpectedVersion(typeID, dep).String(),
						Ranges:     []string{},
					}
					if c := eng.registry.Collection(typeID, dep); c != nil {
						for _, r := range c.Ranges() {
							l.Ranges = append(l.Ranges, r.String())
						}
					}
					listings = append(listings, l)
				}
			}

			output(listings, func() ([]string, [][]string) {
				rows := make([][]string, 0, len(listings))
				for _, l := range listings {
					rows = append(rows, []string{l.Type, l.Dependency, l.Current, orDash(strings.Join(l.Ranges, " "))})
				}
				return []string{"TYPE", "DEPENDENCY", "CURRENT", "RANGES"}, rows
			})
			return nil
		},
	}
}
