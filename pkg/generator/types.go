package generator

import (
	"github.com/shouni/go-comic-kit/pkg/domain"
)

const (
	// StoryPageCount はストーリーモードで生成するページ数です。
	StoryPageCount = 3
	// StripAspectRatio は4コマ漫画1枚のアスペクト比です。
	StripAspectRatio = "16:9"
	// StoryAspectRatio は絵本のページに近いアスペクト比です。
	StoryAspectRatio = "4:3"
)

// 既定のスタイル
const (
	DefaultArtStyle      = "Western Comics"
	DefaultLineThickness = "Medium"
	DefaultShading       = "Halftone Dots"
)

// 進捗ラベルと通知
const (
	LabelCreatingStrip = "Creating comic strip"
	LabelApplyingStyle = "Applying comic style"
	LabelStoryText     = "1/4: Generating story..."
	MsgStyleFallback   = "Could not apply comic style, showing original."
)

// StyleOptions はストリップに適用する漫画風スタイルの指定です。
type StyleOptions struct {
	ApplyStyle    bool
	ArtStyle      string
	LineThickness string
	Shading       string
}

// DefaultStyle は既定のスタイルを適用する設定を返します。
func DefaultStyle() StyleOptions {
	return StyleOptions{
		ApplyStyle:    true,
		ArtStyle:      DefaultArtStyle,
		LineThickness: DefaultLineThickness,
		Shading:       DefaultShading,
	}
}

// withDefaults は空の項目を既定値で埋めます。
func (s StyleOptions) withDefaults() StyleOptions {
	if s.ArtStyle == "" {
		s.ArtStyle = DefaultArtStyle
	}
	if s.LineThickness == "" {
		s.LineThickness = DefaultLineThickness
	}
	if s.Shading == "" {
		s.Shading = DefaultShading
	}
	return s
}

// StripRequest は4コマ漫画の生成要求です。
type StripRequest struct {
	Prompt      string
	Characters  []domain.Character
	Style       StyleOptions
	ScienceFact bool
}

// StoryRequest は3ページのストーリー漫画の生成要求です。
type StoryRequest struct {
	Prompt      string
	Characters  []domain.Character
	ScienceFact bool
}

// storyParts は物語生成の構造化出力です。
type storyParts struct {
	Page1 string `json:"page1"`
	Page2 string `json:"page2"`
	Page3 string `json:"page3"`
}
