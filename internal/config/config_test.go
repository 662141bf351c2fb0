package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zalando/go-keyring"

	"github.com/shouni/go-comic-kit/pkg/config"
)

type fakeTokens struct {
	values map[string]string
	err    error
}

func (f *fakeTokens) Get(service, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	v, ok := f.values[service+"/"+key]
	if !ok {
		return "", keyring.ErrNotFound
	}
	return v, nil
}

func (f *fakeTokens) Set(service, key, value string) error {
	if f.values == nil {
		f.values = map[string]string{}
	}
	f.values[service+"/"+key] = value
	return nil
}

func (f *fakeTokens) Delete(service, key string) error {
	delete(f.values, service+"/"+key)
	return nil
}

// unsetEnv は終了時に元へ戻るよう登録してから環境変数を消すのだ。
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func cleanEnv(t *testing.T) string {
	t.Helper()
	unsetEnv(t, EnvConfigFile, EnvAPIKey, EnvTextModel, EnvImageModel, EnvEditModel, EnvStorePath,
		EnvOutputDir, EnvServerAddr, EnvPacingDelay, EnvRateInterval, EnvExportContrast,
		EnvLogLevel, EnvLogFormat, EnvLogFile)
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoad(t *testing.T) {
	t.Run("何も指定しなければデフォルトのままなのだ", func(t *testing.T) {
		envFile := cleanEnv(t)
		s, err := Load(LoadOptions{EnvFile: envFile, Tokens: &fakeTokens{}})
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		want := config.DefaultConfig()
		if s.Comic != want {
			t.Errorf("設定が期待と異なります: %+v", s.Comic)
		}
		if s.Logging.Level != "info" || s.Logging.Format != "console" {
			t.Errorf("ログ設定が期待と異なります: %+v", s.Logging)
		}
	})

	t.Run("YAMLより環境変数が優先されるのだ", func(t *testing.T) {
		envFile := cleanEnv(t)
		dir := t.TempDir()
		path := filepath.Join(dir, "comic.yaml")
		yml := "text_model: yaml-model\nimage_model: yaml-image\nstore_path: \"\"\npacing_delay: 2s\nlogging:\n  level: debug\n  format: json\n"
		if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
			t.Fatal(err)
		}
		t.Setenv(EnvTextModel, "env-model")

		s, err := Load(LoadOptions{ConfigFile: path, EnvFile: envFile, Tokens: &fakeTokens{}})
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if s.Comic.TextModel != "env-model" {
			t.Errorf("TextModel = %s", s.Comic.TextModel)
		}
		if s.Comic.ImageModel != "yaml-image" {
			t.Errorf("ImageModel = %s", s.Comic.ImageModel)
		}
		if s.Comic.StorePath != "" {
			t.Errorf("空の store_path でメモリストアになっていません: %q", s.Comic.StorePath)
		}
		if s.Comic.PacingDelay != 2*time.Second {
			t.Errorf("PacingDelay = %v", s.Comic.PacingDelay)
		}
		if s.Logging.Level != "debug" || s.Logging.Format != "json" {
			t.Errorf("ログ設定が期待と異なります: %+v", s.Logging)
		}
	})

	t.Run(".envの値を読むのだ", func(t *testing.T) {
		cleanEnv(t)
		envFile := filepath.Join(t.TempDir(), ".env")
		if err := os.WriteFile(envFile, []byte("IMAGE_GEMINI_MODEL=dotenv-image\nCOMIC_EXPORT_CONTRAST=130\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		s, err := Load(LoadOptions{EnvFile: envFile, Tokens: &fakeTokens{}})
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if s.Comic.ImageModel != "dotenv-image" || s.Comic.ExportContrast != 130 {
			t.Errorf("設定が期待と異なります: %+v", s.Comic)
		}
	})

	t.Run("APIキーがなければキーリングから読むのだ", func(t *testing.T) {
		envFile := cleanEnv(t)
		tokens := &fakeTokens{}
		if err := SaveAPIKey(tokens, "  from-keyring "); err != nil {
			t.Fatalf("SaveAPIKey: %v", err)
		}
		s, err := Load(LoadOptions{EnvFile: envFile, Tokens: tokens})
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if s.Comic.GeminiAPIKey != "from-keyring" {
			t.Errorf("GeminiAPIKey = %q", s.Comic.GeminiAPIKey)
		}
	})

	t.Run("キーリングの失敗は致命的ではないのだ", func(t *testing.T) {
		envFile := cleanEnv(t)
		s, err := Load(LoadOptions{EnvFile: envFile, Tokens: &fakeTokens{err: errors.New("locked")}})
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if s.Comic.GeminiAPIKey != "" {
			t.Errorf("GeminiAPIKey = %q", s.Comic.GeminiAPIKey)
		}
	})

	t.Run("不正な値はエラーになるのだ", func(t *testing.T) {
		envFile := cleanEnv(t)
		t.Setenv(EnvPacingDelay, "soon")
		if _, err := Load(LoadOptions{EnvFile: envFile, Tokens: &fakeTokens{}}); err == nil {
			t.Fatal("エラーを期待しました")
		}
	})
}

func TestSaveAPIKey(t *testing.T) {
	if err := SaveAPIKey(&fakeTokens{}, "   "); err == nil {
		t.Fatal("空のキーはエラーになるべきです")
	}
}
