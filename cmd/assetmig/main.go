package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/persistorai/assetmig/internal/config"
)

var (
	cfg    *config.Config
	logger *logrus.Logger

	flagFmt        string
	flagCatalog    string
	flagJournal    string
	flagDependency string
	flagLogLevel   string
)

func versionString() string {
	return fmt.Sprintf("assetmig version %s", config.Version)
}

// configFile is ~/.assetmig/config.yaml. Its values apply only where neither
// a flag nor an environment variable is set.
type configFile struct {
	Catalog    string `yaml:"catalog"`
	Journal    string `yaml:"journal"`
	Dependency string `yaml:"dependency"`
	Format     string `yaml:"format"`
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "assetmig",
		Short:   "assetmig brings serialized assets up to their current versions",
		Version: versionString(),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd)
		},
		SilenceUsage: true,
	}
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&flagFmt, "format", "table", "Output format: json|table")
	rootCmd.PersistentFlags().StringVar(&flagCatalog, "catalog", "", "Catalog of asset types and upgraders (env: ASSETMIG_CATALOG)")
	rootCmd.PersistentFlags().StringVar(&flagJournal, "journal", "", "SQLite journal file (env: ASSETMIG_JOURNAL)")
	rootCmd.PersistentFlags().StringVar(&flagDependency, "dependency", "", "Dependency to migrate against (env: ASSETMIG_DEPENDENCY)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (env: ASSETMIG_LOG_LEVEL)")

	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newInspectCmd())
	rootCmd.AddCommand(newUpgradersCmd())
	rootCmd.AddCommand(newHistoryCmd())

	return rootCmd
}

func setup(cmd *cobra.Command) error {
	loaded, err := config.Load()
	if err != nil {
		return err
	}
	cfg = loaded

	resolveConfig(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}
	if flagFmt != "json" && flagFmt != "table" {
		return fmt.Errorf("--format must be json or table, got %q", flagFmt)
	}

	logger = cfg.NewLogger()
	return nil
}

// resolveConfig applies, in order of precedence, flags, then environment
// variables (already in c), then the config file.
func resolveConfig(cmd *cobra.Command, c *config.Config) {
	file := readConfigFile()

	if os.Getenv("ASSETMIG_CATALOG") == "" && file.Catalog != "" {
		c.CatalogPath = file.Catalog
	}
	if os.Getenv("ASSETMIG_JOURNAL") == "" && file.Journal != "" {
		c.JournalPath = file.Journal
	}
	if os.Getenv("ASSETMIG_DEPENDENCY") == "" && file.Dependency != "" {
		c.Dependency = file.Dependency
	}
	if !cmd.Flags().Changed("format") && file.Format != "" {
		flagFmt = file.Format
	}

	if flagCatalog != "" {
		c.CatalogPath = flagCatalog
	}
	if flagJournal != "" {
		c.JournalPath = flagJournal
	}
	if flagDependency != "" {
		c.Dependency = flagDependency
	}
	if flagLogLevel != "" {
		c.LogLevel = flagLogLevel
	}
}

func readConfigFile() configFile {
	var file configFile

	home, err := os.UserHomeDir()
	if err != nil {
		return file
	}
	data, err := os.ReadFile(filepath.Join(home, ".assetmig", "config.yaml"))
	if err != nil {
		return file
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return configFile{}
	}

	return file
}
