package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/zine-studio/zine-landing/internal/config"
	"github.com/zine-studio/zine-landing/internal/stats"
	"github.com/zine-studio/zine-landing/internal/store"
	"github.com/zine-studio/zine-landing/internal/testutil"
)

func testCommand(out *bytes.Buffer) *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetOut(out)
	cmd.SetContext(context.Background())
	return cmd
}

func TestApplyAnswers(t *testing.T) {
	base := config.Defaults()

	out := applyAnswers(base, answers{
		Env:      "development",
		Port:     9090,
		Secure:   true,
		TrackURL: "https://collect.example/track",
		DBPath:   "/var/lib/zine.db",
	})

	if out.Server.Port != 9090 || !out.Server.SecureCookies {
		t.Errorf("expected port 9090 with secure cookies, got %+v", out.Server)
	}
	if out.Store.Path != "/var/lib/zine.db" {
		t.Errorf("expected db path to be applied, got %s", out.Store.Path)
	}
	if out.Telemetry.TrackURL != "https://collect.example/track" || out.Telemetry.TagURL != "" {
		t.Errorf("unexpected telemetry config: %+v", out.Telemetry)
	}
	if out.Log.Format != "console" || out.Log.Level != "debug" {
		t.Errorf("development should log at debug to the console, got %+v", out.Log)
	}
	if out.Engagement != base.Engagement {
		t.Error("unasked settings should keep their defaults")
	}
}

func TestApplyAnswers_EmptyKeepsDefaults(t *testing.T) {
	base := config.Defaults()
	out := applyAnswers(base, answers{})

	if out.Server.Port != base.Server.Port || out.Store.Path != base.Store.Path || out.App.Env != base.App.Env {
		t.Errorf("expected defaults, got %+v", out)
	}
}

func TestValidators(t *testing.T) {
	ports := map[string]bool{"8080": true, "1": true, "65535": true, "0": false, "65536": false, "http": false, "": false}
	for in, ok := range ports {
		if err := validatePort(in); (err == nil) != ok {
			t.Errorf("validatePort(%q) error = %v, want ok=%v", in, err, ok)
		}
	}

	urls := map[string]bool{"": true, "https://a.example/x": true, "http://localhost:9000": true, "ftp://a.example": false, "not a url": false, "https://": false}
	for in, ok := range urls {
		if err := validateOptionalURL(in); (err == nil) != ok {
			t.Errorf("validateOptionalURL(%q) error = %v, want ok=%v", in, err, ok)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	tests := map[int]string{0: "0", 999: "999", 1000: "1,000", 12345: "12,345", 1234567: "1,234,567"}
	for in, want := range tests {
		if got := formatNumber(in); got != want {
			t.Errorf("formatNumber(%d) = %s, want %s", in, got, want)
		}
	}
	if formatPercent(0) != "0%" || formatPercent(0.125) != "12.50%" {
		t.Errorf("unexpected percent formatting: %s, %s", formatPercent(0), formatPercent(0.125))
	}
}

func seedWaitlist(t *testing.T, s *store.SQLiteStore) {
	t.Helper()
	ctx := context.Background()
	for _, e := range []*store.WaitlistEntry{
		{Email: "a@zine.example", Style: "warm", Contact: "@a", Arms: map[string]string{"price_test": "40", "landing_design": "zen"}, VisitorID: "v1"},
		{Email: "b@zine.example", Style: "minimal", Arms: map[string]string{"price_test": "15"}, VisitorID: "v2"},
	} {
		if _, err := s.AddWaitlistEntry(ctx, e); err != nil {
			t.Fatalf("failed to add entry: %v", err)
		}
	}
}

func TestExportCSV(t *testing.T) {
	s := testutil.SetupTestStore(t)
	seedWaitlist(t, s)

	entries, err := s.ListWaitlist(context.Background())
	if err != nil {
		t.Fatalf("failed to list waitlist: %v", err)
	}

	var buf bytes.Buffer
	if err := exportCSV(&buf, entries); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %d lines", len(lines))
	}
	if lines[0] != "position,timestamp,email,style,contact,arms,visitor_id" {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if !strings.HasPrefix(lines[1], "1,") || !strings.Contains(lines[1], "landing_design=zen;price_test=40") {
		t.Errorf("unexpected first row: %s", lines[1])
	}
}

func TestExportJSON(t *testing.T) {
	s := testutil.SetupTestStore(t)
	seedWaitlist(t, s)

	entries, _ := s.ListWaitlist(context.Background())

	var buf bytes.Buffer
	if err := exportJSON(&buf, entries); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	var got jsonExport
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(got.Entries) != 2 || got.Entries[1].Position != 2 || got.Entries[1].Email != "b@zine.example" {
		t.Errorf("unexpected export: %+v", got.Entries)
	}
}

func TestPrintExperiments(t *testing.T) {
	s := testutil.SetupTestStore(t)
	seedWaitlist(t, s)

	var buf bytes.Buffer
	if err := printExperiments(context.Background(), testCommand(&buf), s); err != nil {
		t.Fatalf("print failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"landing_design", "zen,hybrid", "?variant=", "price_test", "15,40", "PRICE"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintResult(t *testing.T) {
	result := &stats.Result{
		Experiment: "price_test",
		Arms: []stats.ArmResult{
			{Index: 0, Value: "15", Exposures: 1000, Conversions: 50, Rate: 0.05, CILower: 0.038, CIUpper: 0.065},
			{Index: 1, Value: "40", Exposures: 1000, Conversions: 90, Rate: 0.09, CILower: 0.074, CIUpper: 0.109},
		},
		Confident:       true,
		ConfidenceLevel: 0.999,
		Leading:         1,
	}

	var buf bytes.Buffer
	printResult(&buf, result)
	out := buf.String()

	if !strings.Contains(out, "EXPERIMENT: price_test") {
		t.Error("missing header")
	}
	if !strings.Contains(out, "← LEADING") {
		t.Error("missing leading indicator")
	}
	if !strings.Contains(out, `confident "40" is the winner`) {
		t.Errorf("missing significance line:\n%s", out)
	}
}

func TestRunAssign_Query(t *testing.T) {
	t.Setenv("VARIANT", "")
	t.Setenv("PRICE", "")
	assignQuery = "variant=zen&price=40"
	t.Cleanup(func() { assignQuery = "" })

	var buf bytes.Buffer
	if err := runAssign(testCommand(&buf), nil); err != nil {
		t.Fatalf("assign failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"landing_design  zen", "price_test      40", "forced"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestBuildSinks(t *testing.T) {
	s := testutil.SetupTestStore(t)

	list, workers := buildSinks(config.TelemetryConfig{Record: true}, time.Second, s)
	if len(list) != 1 || list[0].Name() != "recorder" || len(workers) != 0 {
		t.Errorf("expected only the recorder, got %d sinks and %d workers", len(list), len(workers))
	}

	list, workers = buildSinks(config.TelemetryConfig{
		TrackURL: "http://collect.example/track",
		TagURL:   "http://tags.example/collect",
	}, time.Second, s)
	if len(list) != 2 || len(workers) != 2 {
		t.Fatalf("expected two HTTP sinks, got %d sinks and %d workers", len(list), len(workers))
	}
	for _, w := range workers {
		w.Close()
	}
}

func TestLoadConfig_DBFlagOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "zine.yaml")
	if err := os.WriteFile(path, []byte("store:\n  path: /from/file.db\nlog:\n  level: warn\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	configPath, dbPath = path, filepath.Join(dir, "flag.db")
	t.Cleanup(func() { configPath, dbPath, cfg = "", "", nil })

	if err := loadConfig(&cobra.Command{Use: "serve"}, nil); err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Store.Path != dbPath {
		t.Errorf("expected --db to win, got %s", cfg.Store.Path)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("expected file value for log level, got %s", cfg.Log.Level)
	}
}

func TestLoadConfig_InitNeedsNoFile(t *testing.T) {
	configPath = filepath.Join(t.TempDir(), "missing.yaml")
	t.Cleanup(func() { configPath, cfg = "", nil })

	if err := loadConfig(&cobra.Command{Use: "init"}, nil); err != nil {
		t.Fatalf("init should not need an existing config: %v", err)
	}
	if cfg.Server.Port != config.Defaults().Server.Port {
		t.Errorf("expected defaults, got %+v", cfg.Server)
	}
}
