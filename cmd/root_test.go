package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	appconfig "github.com/shouni/go-comic-kit/internal/config"
)

// runRoot はルートコマンドに settings を受け取るだけのサブコマンドを足して実行するのだ。
func runRoot(t *testing.T, args ...string) appconfig.Settings {
	t.Helper()
	var got appconfig.Settings
	root := newRootCmd()
	root.AddCommand(&cobra.Command{
		Use: "capture",
		RunE: func(*cobra.Command, []string) error {
			got = settings
			return nil
		},
	})
	root.SetArgs(append(args, "capture"))
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("実行に失敗したのだ: %v", err)
	}
	return got
}

func TestRootCommand(t *testing.T) {
	t.Setenv(appconfig.EnvAPIKey, "test-key")
	t.Setenv(appconfig.EnvConfigFile, "")

	t.Run("--config と --verbose は1度だけ定義されること", func(t *testing.T) {
		root := newRootCmd()
		if root.Use != appName {
			t.Errorf("Use = %q, want %q", root.Use, appName)
		}
		for _, name := range []string{"config", "verbose", "store", "output-dir", "log-level", "quiet"} {
			if root.PersistentFlags().Lookup(name) == nil {
				t.Errorf("フラグ --%s がないのだ", name)
			}
		}
		if root.PersistentPostRunE == nil {
			t.Error("PersistentPostRunE が設定されていないのだ")
		}
	})

	t.Run("--config の YAML を読み込むこと", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "comic.yaml")
		if err := os.WriteFile(path, []byte("output_dir: from-yaml\nserver_addr: \":9090\"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		s := runRoot(t, "--config", path, "--store", "")
		if s.Comic.OutputDir != "from-yaml" || s.Comic.ServerAddr != ":9090" {
			t.Errorf("設定が反映されていないのだ: %+v", s.Comic)
		}
		if s.Comic.StorePath != "" {
			t.Errorf("--store が反映されていないのだ: %q", s.Comic.StorePath)
		}
	})

	t.Run("--verbose でログレベルが debug になること", func(t *testing.T) {
		s := runRoot(t, "--config", "", "--verbose")
		if s.Logging.Level != "debug" {
			t.Errorf("Level = %q, want debug", s.Logging.Level)
		}
	})

	t.Run("--log-level は --verbose より優先されること", func(t *testing.T) {
		s := runRoot(t, "--config", "", "--verbose", "--log-level", "warn")
		if s.Logging.Level != "warn" {
			t.Errorf("Level = %q, want warn", s.Logging.Level)
		}
	})
}
