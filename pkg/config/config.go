package config

import (
	"time"
)

// デフォルト値の定義
const (
	DefaultTextModel       = "gemini-2.5-flash"
	DefaultImageModel      = "imagen-4.0-generate-001"
	DefaultEditModel       = "gemini-2.5-flash-image-preview"
	DefaultImageMimeType   = "image/png"
	DefaultStripAspect     = "16:9"
	DefaultStoryAspect     = "4:3"
	DefaultPacingDelay     = 5 * time.Second
	DefaultDraftDebounce   = 1 * time.Second
	DefaultHistoryLimit    = 50
	DefaultRateInterval    = 0 * time.Second
	DefaultRequestTimeout  = 3 * time.Minute
	DefaultStoreQuotaBytes = 5 * 1024 * 1024
	DefaultStorePath       = "comic.db"
	DefaultOutputDir       = "output"
	DefaultServerAddr      = ":8080"
	DefaultFaceImageLimit  = 4 * 1024 * 1024
	DefaultExportContrast  = 100
)

// Config は go-comic-kit の各コンポーネントを動作させるための基本設定です。
type Config struct {
	// --- AI Model Settings ---
	TextModel     string
	ImageModel    string // Imagen（テキストから画像）
	EditModel     string // 画像 + 指示文による編集
	ImageMimeType string

	// --- Google AI (Gemini API) Settings ---
	GeminiAPIKey string

	// --- Generation Settings ---
	StripAspectRatio string
	StoryAspectRatio string
	PacingDelay      time.Duration // ストーリーモードのページ間待機
	RateInterval     time.Duration // 0 の場合はクライアント側の制限なし

	// --- Persistence Settings ---
	DraftDebounce   time.Duration
	HistoryLimit    int
	StorePath       string // 空の場合はメモリストア
	StoreQuotaBytes int

	// --- Character Settings ---
	FaceImageLimit int

	// --- Export Settings ---
	OutputDir      string
	ExportContrast int // パーセント

	// --- Server Settings ---
	ServerAddr string

	// --- Timeout ---
	RequestTimeout time.Duration
}

// DefaultConfig は推奨されるデフォルト設定を返すヘルパー関数です。
func DefaultConfig() Config {
	return Config{
		TextModel:        DefaultTextModel,
		ImageModel:       DefaultImageModel,
		EditModel:        DefaultEditModel,
		ImageMimeType:    DefaultImageMimeType,
		StripAspectRatio: DefaultStripAspect,
		StoryAspectRatio: DefaultStoryAspect,
		PacingDelay:      DefaultPacingDelay,
		RateInterval:     DefaultRateInterval,
		DraftDebounce:    DefaultDraftDebounce,
		HistoryLimit:     DefaultHistoryLimit,
		StorePath:        DefaultStorePath,
		StoreQuotaBytes:  DefaultStoreQuotaBytes,
		FaceImageLimit:   DefaultFaceImageLimit,
		OutputDir:        DefaultOutputDir,
		ExportContrast:   DefaultExportContrast,
		ServerAddr:       DefaultServerAddr,
		RequestTimeout:   DefaultRequestTimeout,
	}
}
