package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/zine-studio/zine-landing/internal/experiment"
	"github.com/zine-studio/zine-landing/internal/stats"
	"github.com/zine-studio/zine-landing/internal/store"
)

var resultsCmd = &cobra.Command{
	Use:   "results [experiment]",
	Short: "Show detailed results for experiments",
	Long: `Show exposures, waitlist conversions, conversion rates and confidence
intervals per arm. Without an argument every experiment is shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runResults,
}

func init() {
	rootCmd.AddCommand(resultsCmd)
}

func runResults(cmd *cobra.Command, args []string) error {
	exps := experiment.All()
	if len(args) == 1 {
		exp, ok := experiment.Lookup(args[0])
		if !ok {
			return eris.Errorf("experiment '%s' not found", args[0])
		}
		exps = []experiment.Experiment{exp}
	}

	return withStore(func(s *store.SQLiteStore) error {
		for i, exp := range exps {
			if i > 0 {
				fmt.Fprintln(cmd.OutOrStdout())
			}
			result, err := analyze(cmd.Context(), s, exp)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), result)
		}
		return nil
	})
}

func analyze(ctx context.Context, s *store.SQLiteStore, exp experiment.Experiment) (*stats.Result, error) {
	exposures, err := s.ExposureCounts(ctx, exp.Name)
	if err != nil {
		return nil, eris.Wrap(err, "failed to get exposures")
	}
	conversions, err := s.ConversionCounts(ctx, exp.Name)
	if err != nil {
		return nil, eris.Wrap(err, "failed to get conversions")
	}
	return stats.Analyze(exp, exposures, conversions), nil
}

func printResult(w io.Writer, result *stats.Result) {
	fmt.Fprintf(w, "EXPERIMENT: %s\n", result.Experiment)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "ARM               EXPOSED  CONVERSIONS  RATE     95% CI")
	fmt.Fprintln(w, strings.Repeat("─", 60))

	for _, a := range result.Arms {
		indicator := ""
		if a.Index == result.Leading && len(result.Arms) > 1 && a.Conversions > 0 {
			indicator = " ← LEADING"
		}

		ciStr := fmt.Sprintf("[%.1f%%, %.1f%%]", a.CILower*100, a.CIUpper*100)
		if a.Exposures == 0 {
			ciStr = "N/A"
		}

		fmt.Fprintf(w, "%-16s  %-7d  %-11d  %-7s  %s%s\n",
			a.Value,
			a.Exposures,
			a.Conversions,
			formatPercent(a.Rate),
			ciStr,
			indicator,
		)
	}

	fmt.Fprintln(w)

	if len(result.Arms) > 1 {
		leading := result.LeadingArm().Value
		confPct := result.ConfidenceLevel * 100

		switch {
		case result.Confident:
			fmt.Fprintf(w, "Statistical significance: %.1f%% confident \"%s\" is the winner\n", confPct, leading)
		case confPct >= 90:
			fmt.Fprintf(w, "Statistical significance: %.1f%% confident \"%s\" beats control (not yet significant)\n", confPct, leading)
		default:
			fmt.Fprintln(w, "Statistical significance: Not enough data to determine a winner")
		}
	}
}
