package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/zine-studio/zine-landing/internal/experiment"
	"github.com/zine-studio/zine-landing/internal/store"
)

var experimentsCmd = &cobra.Command{
	Use:     "experiments",
	Aliases: []string{"list"},
	Short:   "List experiments",
	Long:    `List the built-in experiments with their arms, override knobs and traffic.`,
	RunE:    runExperiments,
}

func init() {
	rootCmd.AddCommand(experimentsCmd)
}

func runExperiments(cmd *cobra.Command, args []string) error {
	return withStore(func(s *store.SQLiteStore) error {
		return printExperiments(cmd.Context(), cmd, s)
	})
}

func printExperiments(ctx context.Context, cmd *cobra.Command, s *store.SQLiteStore) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tARMS\tDEFAULT\tQUERY\tENV\tEXPOSURES\tCONVERSIONS")

	for _, exp := range experiment.All() {
		exposures, err := s.ExposureCounts(ctx, exp.Name)
		if err != nil {
			return eris.Wrapf(err, "failed to count exposures for %s", exp.Name)
		}
		conversions, err := s.ConversionCounts(ctx, exp.Name)
		if err != nil {
			return eris.Wrapf(err, "failed to count conversions for %s", exp.Name)
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t?%s=\t%s\t%s\t%s\n",
			exp.Name,
			strings.Join(exp.Values, ","),
			exp.Default,
			exp.QueryParam,
			exp.EnvVar,
			formatNumber(sumCounts(exposures)),
			formatNumber(sumCounts(conversions)),
		)
	}

	return w.Flush()
}

func sumCounts(counts []store.ArmCount) int {
	total := 0
	for _, c := range counts {
		total += c.Count
	}
	return total
}
