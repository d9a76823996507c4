package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/mizumoto/kumitate/internal/kumitate"
)

func TestLoadOptions(t *testing.T) {
	t.Parallel()

	writeConfig := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), ".kumitate.yaml")
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	t.Run("configured severities", func(t *testing.T) {
		t.Parallel()

		path := writeConfig(t, "checks:\n  nullability: warning\n  scope-cycle: none\n")
		opts, err := loadOptions(path)
		if err != nil {
			t.Fatalf("loadOptions() error = %v", err)
		}
		if opts.Nullability != kumitate.SettingWarning {
			t.Errorf("Nullability = %v, want warning", opts.Nullability)
		}
		if opts.ScopeCycle != kumitate.SettingNone {
			t.Errorf("ScopeCycle = %v, want none", opts.ScopeCycle)
		}
	})

	t.Run("empty file keeps defaults", func(t *testing.T) {
		t.Parallel()

		opts, err := loadOptions(writeConfig(t, ""))
		if err != nil {
			t.Fatalf("loadOptions() error = %v", err)
		}
		if opts != (kumitate.Options{}) {
			t.Errorf("loadOptions() = %+v, want defaults", opts)
		}
	})

	t.Run("unknown severity value", func(t *testing.T) {
		t.Parallel()

		if _, err := loadOptions(writeConfig(t, "checks:\n  nullability: fatal\n")); err == nil {
			t.Error("loadOptions() succeeded with an unknown severity")
		}
	})

	t.Run("missing explicit path", func(t *testing.T) {
		t.Parallel()

		if _, err := loadOptions(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Error("an explicitly given missing config must be an error")
		}
	})
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"DEBUG", slog.LevelDebug},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			if got := parseLogLevel(tt.input); got != tt.expected {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}
