package cli

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/zine-studio/zine-landing/internal/store"
)

var exportFormat string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the waitlist",
	Long: `Export waitlist signups in CSV or JSON format, oldest first.

Examples:
  zine-landing export --format csv > waitlist.csv
  zine-landing export --format json > waitlist.json`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "output format (csv or json)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportFormat != "csv" && exportFormat != "json" {
		return eris.New("invalid format: must be 'csv' or 'json'")
	}

	return withStore(func(s *store.SQLiteStore) error {
		entries, err := s.ListWaitlist(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "failed to list waitlist")
		}

		if exportFormat == "csv" {
			return exportCSV(cmd.OutOrStdout(), entries)
		}
		return exportJSON(cmd.OutOrStdout(), entries)
	})
}

func exportCSV(out io.Writer, entries []*store.WaitlistEntry) error {
	w := csv.NewWriter(out)

	// Write header
	if err := w.Write([]string{"position", "timestamp", "email", "style", "contact", "arms", "visitor_id"}); err != nil {
		return eris.Wrap(err, "failed to write header")
	}

	// Write rows
	for i, e := range entries {
		row := []string{
			strconv.Itoa(i + 1),
			strconv.FormatInt(e.CreatedAt.Unix(), 10),
			e.Email,
			e.Style,
			e.Contact,
			formatArms(e.Arms),
			e.VisitorID,
		}
		if err := w.Write(row); err != nil {
			return eris.Wrap(err, "failed to write row")
		}
	}

	w.Flush()
	return w.Error()
}

// formatArms renders arms as "experiment=value" pairs in name order.
func formatArms(arms map[string]string) string {
	names := make([]string, 0, len(arms))
	for name := range arms {
		names = append(names, name)
	}
	sort.Strings(names)
	pairs := make([]string, len(names))
	for i, name := range names {
		pairs[i] = name + "=" + arms[name]
	}
	return strings.Join(pairs, ";")
}

type jsonExport struct {
	Entries []jsonEntry `json:"entries"`
}

type jsonEntry struct {
	Position  int               `json:"position"`
	Timestamp int64             `json:"timestamp"`
	Email     string            `json:"email"`
	Style     string            `json:"style"`
	Contact   string            `json:"contact,omitempty"`
	Arms      map[string]string `json:"arms"`
	VisitorID string            `json:"visitor_id"`
}

func exportJSON(out io.Writer, entries []*store.WaitlistEntry) error {
	export := jsonExport{
		Entries: make([]jsonEntry, len(entries)),
	}

	for i, e := range entries {
		export.Entries[i] = jsonEntry{
			Position:  i + 1,
			Timestamp: e.CreatedAt.Unix(),
			Email:     e.Email,
			Style:     e.Style,
			Contact:   e.Contact,
			Arms:      e.Arms,
			VisitorID: e.VisitorID,
		}
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}
