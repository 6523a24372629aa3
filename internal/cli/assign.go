package cli

import (
	"fmt"
	"net/url"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/zine-studio/zine-landing/internal/experiment"
	"github.com/zine-studio/zine-landing/internal/persist"
)

var assignQuery string

var assignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Show how a new visitor would be assigned",
	Long: `Resolve every experiment for a visitor with no stored state, using the
VARIANT and PRICE environment overrides and an optional query string. Nothing
is stored or tracked.

Examples:
  zine-landing assign
  VARIANT=zen zine-landing assign
  zine-landing assign --query "variant=hybrid&price=40"`,
	Args: cobra.NoArgs,
	RunE: runAssign,
}

func init() {
	assignCmd.Flags().StringVarP(&assignQuery, "query", "q", "", "landing page query string")
	rootCmd.AddCommand(assignCmd)
}

func runAssign(cmd *cobra.Command, args []string) error {
	query, err := url.ParseQuery(assignQuery)
	if err != nil {
		return eris.Wrap(err, "invalid query string")
	}
	overrides, err := experiment.LoadOverrides()
	if err != nil {
		return eris.Wrap(err, "failed to read experiment overrides")
	}

	resolver := experiment.NewResolver(persist.Nop{}, experiment.UniformSampler)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "EXPERIMENT\tVALUE\tSOURCE")
	for _, exp := range experiment.All() {
		a := resolver.Resolve(exp, experiment.Forced(exp, query, overrides))
		fmt.Fprintf(w, "%s\t%s\t%s\n", exp.Name, a.Value, a.Source)
	}
	return w.Flush()
}
