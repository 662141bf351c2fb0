package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shouni/go-utils/envutil"
	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"

	"github.com/shouni/go-comic-kit/internal/logging"
	"github.com/shouni/go-comic-kit/pkg/config"
)

// 環境変数名なのだ
const (
	EnvConfigFile     = "COMIC_CONFIG"
	EnvAPIKey         = "GEMINI_API_KEY"
	EnvTextModel      = "GEMINI_MODEL"
	EnvImageModel     = "IMAGE_GEMINI_MODEL"
	EnvEditModel      = "EDIT_GEMINI_MODEL"
	EnvStorePath      = "COMIC_STORE_PATH"
	EnvOutputDir      = "COMIC_OUTPUT_DIR"
	EnvServerAddr     = "COMIC_SERVER_ADDR"
	EnvPacingDelay    = "COMIC_PACING_DELAY"
	EnvRateInterval   = "COMIC_RATE_INTERVAL"
	EnvExportContrast = "COMIC_EXPORT_CONTRAST"
	EnvLogLevel       = "COMIC_LOG_LEVEL"
	EnvLogFormat      = "COMIC_LOG_FORMAT"
	EnvLogFile        = "COMIC_LOG_FILE"
)

// キーリングのサービス名とキーなのだ
const (
	KeyringService = "go-comic-kit"
	KeyringAPIKey  = "gemini_api_key"
)

// TokenStore は API キーの保存先なのだ。テストではフェイクに差し替えるのだ。
type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// OSKeyring は OS のキーチェーンを使う TokenStore なのだ。
type OSKeyring struct{}

func (OSKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (OSKeyring) Set(service, key, value string) error    { return keyring.Set(service, key, value) }
func (OSKeyring) Delete(service, key string) error        { return keyring.Delete(service, key) }

// Settings は読み込んだ設定一式なのだ。
type Settings struct {
	Comic   config.Config
	Logging logging.Options
}

// LoadOptions は Load の入力なのだ。
type LoadOptions struct {
	ConfigFile string     // 空なら COMIC_CONFIG を見るのだ
	EnvFile    string     // 空なら .env なのだ。存在しなくてもエラーにしないのだ
	Tokens     TokenStore // nil なら OSKeyring なのだ
}

// fileConfig は YAML ファイルの形なのだ。未指定の項目はデフォルトのままなのだ。
type fileConfig struct {
	TextModel      string  `yaml:"text_model"`
	ImageModel     string  `yaml:"image_model"`
	EditModel      string  `yaml:"edit_model"`
	StorePath      *string `yaml:"store_path"`
	OutputDir      string  `yaml:"output_dir"`
	ServerAddr     string  `yaml:"server_addr"`
	PacingDelay    string  `yaml:"pacing_delay"`
	RateInterval   string  `yaml:"rate_interval"`
	HistoryLimit   int     `yaml:"history_limit"`
	ExportContrast int     `yaml:"export_contrast"`
	Logging        struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Source bool   `yaml:"source"`
		File   string `yaml:"file"`
	} `yaml:"logging"`
}

// Load はデフォルト、YAML、.env、環境変数の順に設定を重ねるのだ。
// API キーが環境変数にない場合はキーリングから読むのだ。
func Load(opts LoadOptions) (Settings, error) {
	s := Settings{
		Comic:   config.DefaultConfig(),
		Logging: logging.Options{Level: "info", Format: "console"},
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return s, fmt.Errorf(".env の読み込みに失敗したのだ: %w", err)
	}

	path := opts.ConfigFile
	if path == "" {
		path = envutil.GetEnv(EnvConfigFile, "")
	}
	if path != "" {
		if err := applyFile(&s, path); err != nil {
			return s, err
		}
	}

	if err := applyEnv(&s); err != nil {
		return s, err
	}

	if s.Comic.GeminiAPIKey == "" {
		tokens := opts.Tokens
		if tokens == nil {
			tokens = OSKeyring{}
		}
		key, err := tokens.Get(KeyringService, KeyringAPIKey)
		switch {
		case err == nil:
			s.Comic.GeminiAPIKey = key
		case errors.Is(err, keyring.ErrNotFound):
		default:
			slog.Warn("キーリングから API キーを読めなかったのだ", "error", err)
		}
	}
	return s, nil
}

// SaveAPIKey は API キーをキーリングに保存するのだ。
func SaveAPIKey(tokens TokenStore, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("API キーが空なのだ")
	}
	if tokens == nil {
		tokens = OSKeyring{}
	}
	if err := tokens.Set(KeyringService, KeyringAPIKey, key); err != nil {
		return fmt.Errorf("API キーの保存に失敗したのだ: %w", err)
	}
	return nil
}

func applyFile(s *Settings, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("設定ファイルの読み込みに失敗したのだ: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("設定ファイルの解析に失敗したのだ %s: %w", path, err)
	}

	c := &s.Comic
	setString(&c.TextModel, fc.TextModel)
	setString(&c.ImageModel, fc.ImageModel)
	setString(&c.EditModel, fc.EditModel)
	setString(&c.OutputDir, fc.OutputDir)
	setString(&c.ServerAddr, fc.ServerAddr)
	if fc.StorePath != nil {
		c.StorePath = *fc.StorePath
	}
	if fc.HistoryLimit > 0 {
		c.HistoryLimit = fc.HistoryLimit
	}
	if fc.ExportContrast > 0 {
		c.ExportContrast = fc.ExportContrast
	}
	if err := setDuration(&c.PacingDelay, fc.PacingDelay, "pacing_delay"); err != nil {
		return err
	}
	if err := setDuration(&c.RateInterval, fc.RateInterval, "rate_interval"); err != nil {
		return err
	}

	setString(&s.Logging.Level, fc.Logging.Level)
	setString(&s.Logging.Format, fc.Logging.Format)
	setString(&s.Logging.File, fc.Logging.File)
	s.Logging.AddSource = s.Logging.AddSource || fc.Logging.Source
	return nil
}

func applyEnv(s *Settings) error {
	c := &s.Comic
	c.GeminiAPIKey = envutil.GetEnv(EnvAPIKey, c.GeminiAPIKey)
	c.TextModel = envutil.GetEnv(EnvTextModel, c.TextModel)
	c.ImageModel = envutil.GetEnv(EnvImageModel, c.ImageModel)
	c.EditModel = envutil.GetEnv(EnvEditModel, c.EditModel)
	c.StorePath = envutil.GetEnv(EnvStorePath, c.StorePath)
	c.OutputDir = envutil.GetEnv(EnvOutputDir, c.OutputDir)
	c.ServerAddr = envutil.GetEnv(EnvServerAddr, c.ServerAddr)

	if err := setDuration(&c.PacingDelay, envutil.GetEnv(EnvPacingDelay, ""), EnvPacingDelay); err != nil {
		return err
	}
	if err := setDuration(&c.RateInterval, envutil.GetEnv(EnvRateInterval, ""), EnvRateInterval); err != nil {
		return err
	}
	if v := envutil.GetEnv(EnvExportContrast, ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("%s が不正なのだ: %q", EnvExportContrast, v)
		}
		c.ExportContrast = n
	}

	s.Logging.Level = envutil.GetEnv(EnvLogLevel, s.Logging.Level)
	s.Logging.Format = envutil.GetEnv(EnvLogFormat, s.Logging.Format)
	s.Logging.File = envutil.GetEnv(EnvLogFile, s.Logging.File)
	return nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v, name string) error {
	if v = strings.TrimSpace(v); v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return fmt.Errorf("%s が不正なのだ: %q", name, v)
	}
	*dst = d
	return nil
}
