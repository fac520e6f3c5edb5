package main

import (
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/tollgate/pkg/cli"
	"mercator-hq/tollgate/pkg/limits/plans"
)

var plansFlags struct {
	catalog string
	format  string
}

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "Print the plan catalog",
	Long: `Print the features and quota limits of every plan tier.

Without --catalog the built-in catalog is printed.

Examples:
  # Built-in catalog as a table
  tollgate plans

  # Custom catalog as JSON
  tollgate plans --catalog plans.yaml --format json`,
	RunE: printPlans,
}

func init() {
	rootCmd.AddCommand(plansCmd)

	plansCmd.Flags().StringVar(&plansFlags.catalog, "catalog", "", "plan catalog YAML file")
	plansCmd.Flags().StringVar(&plansFlags.format, "format", "text", "output format: text, json, csv")
}

func printPlans(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(plansFlags.format)
	if err != nil {
		return err
	}
	catalog, err := loadCatalog(plansFlags.catalog)
	if err != nil {
		return cli.NewConfigError("catalog", err.Error())
	}

	var data any = catalogTable(catalog.Definitions())
	if format == cli.FormatJSON {
		data = catalog.Definitions()
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), data)
}

// catalogTable renders one row per tier: its limits, then its features.
type catalogTable []*plans.Definition

func (t catalogTable) Header() []string {
	header := []string{"TIER", "NAME"}
	for _, q := range plans.Quotas {
		header = append(header, string(q))
	}
	return append(header, "FEATURES")
}

func (t catalogTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, def := range t {
		row := []string{string(def.Tier), def.Name()}
		for _, q := range plans.Quotas {
			limit, ok := def.Limit(q)
			if !ok {
				row = append(row, "-")
				continue
			}
			row = append(row, limit.String())
		}

		var features []string
		for f, enabled := range def.Features {
			if enabled {
				features = append(features, string(f))
			}
		}
		sort.Strings(features)
		row = append(row, strings.Join(features, ","))
		rows = append(rows, row)
	}
	return rows
}
