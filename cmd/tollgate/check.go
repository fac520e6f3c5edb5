package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/tollgate/pkg/cli"
	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/limits/plans"
)

var checkFlags struct {
	catalog string
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate configuration and plan catalog",
	Long: `Validate the configuration file and the plan catalog it references.

The configuration is loaded with TOLLGATE_* environment overrides applied,
exactly as "tollgate run" would load it. Every validation failure is
reported, not only the first.

Examples:
  # Check the default config file
  tollgate check

  # Check a config and an alternative catalog
  tollgate check --config prod.yaml --catalog plans.yaml`,
	RunE: checkConfig,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&checkFlags.catalog, "catalog", "", "plan catalog to check instead of the configured one")
}

func checkConfig(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", err.Error())
	}
	fmt.Fprintf(out, "✓ Configuration valid: %s\n", cfgFile)

	path := checkFlags.catalog
	if path == "" {
		path = cfg.Plans.CatalogPath
	}
	catalog, err := loadCatalog(path)
	if err != nil {
		return cli.NewConfigError("plans.catalog_path", err.Error())
	}

	if _, ok := catalog.Lookup(plans.Tier(cfg.Plans.FallbackTier)); !ok {
		return cli.NewConfigError("plans.fallback_tier",
			fmt.Sprintf("tier %q is not defined in the catalog", cfg.Plans.FallbackTier))
	}

	source := "built-in"
	if path != "" {
		source = path
	}
	fmt.Fprintf(out, "✓ Plan catalog valid: %s (%d tiers)\n", source, len(catalog.Definitions()))

	if verbose {
		return cli.NewFormatter(cli.FormatText).FormatTo(out, catalogTable(catalog.Definitions()))
	}
	return nil
}
