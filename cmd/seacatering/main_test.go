package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestQuoteCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "protein full week",
			args: []string{"quote", "--plan", "protein", "--meals", "breakfast,lunch,dinner", "--days", "monday,tuesday,wednesday,thursday,friday"},
			want: "Rp 2.580.000 per month",
		},
		{
			name: "diet normalizes input",
			args: []string{"quote", "--plan", "diet", "--meals", "Dinner, lunch,lunch", "--days", "friday,monday,wednesday"},
			want: "Rp 774.000 per month",
		},
		{
			name: "no days",
			args: []string{"quote", "--plan", "royal", "--meals", "lunch"},
			want: "selection incomplete",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCLI(t, tt.args...)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(out, tt.want) {
				t.Fatalf("expected output to contain %q, got:\n%s", tt.want, out)
			}
		})
	}
}

func TestQuoteCommand_UnknownPlan(t *testing.T) {
	if _, err := runCLI(t, "quote", "--plan", "keto"); err == nil {
		t.Fatalf("expected error for unknown plan")
	}
}

func TestMigrateAndExportAgainstSQLite(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(dir, "data", "test.db"))
	t.Setenv("DATABASE_URL", "")

	out, err := runCLI(t, "--env-dir", dir, "migrate")
	if err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	if !strings.Contains(out, "applied 000001_initial_schema") {
		t.Fatalf("expected initial migration to be applied, got:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "data", "test.db")); err != nil {
		t.Fatalf("expected database file: %v", err)
	}

	out, err = runCLI(t, "--env-dir", dir, "migrate")
	if err != nil || !strings.Contains(out, "schema is up to date") {
		t.Fatalf("expected second migrate to be a no-op, got %v:\n%s", err, out)
	}

	out, err = runCLI(t, "--env-dir", dir, "metrics", "export", "--start", "2026-03-01", "--end", "2026-03-31")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if !strings.HasPrefix(out, "Metric,Value\n") {
		t.Fatalf("unexpected CSV output:\n%s", out)
	}
	if !strings.Contains(out, "Total Active Subscriptions,0") {
		t.Fatalf("expected empty totals, got:\n%s", out)
	}

	if _, err := runCLI(t, "--env-dir", dir, "metrics", "export", "--start", "2026-03-31", "--end", "2026-03-01"); err == nil {
		t.Fatalf("expected error for inverted window")
	}
}
