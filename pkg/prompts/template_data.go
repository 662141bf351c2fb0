package prompts

import (
	_ "embed"
)

const (
	ModeStrip   = "strip"   // 4コマ漫画の画像生成
	ModeStyle   = "style"   // 漫画風スタイルの適用
	ModeStory   = "story"   // 3ページ分の物語
	ModePage    = "page"    // 物語1ページ分の画像生成
	ModeSuggest = "suggest" // プロンプトの提案
)

// TemplateData はプロンプトテンプレートに渡すデータ構造です。
type TemplateData struct {
	Prompt        string
	Characters    string // character.FormatForPrompt の結果
	ScienceFact   bool
	ArtStyle      string
	LineThickness string
	Shading       string
	PageText      string
}

var (
	//go:embed strip.md
	StripPrompt string
	//go:embed style.md
	StylePrompt string
	//go:embed story.md
	StoryPrompt string
	//go:embed page.md
	PagePrompt string
	//go:embed suggest.md
	SuggestPrompt string
)

// allTemplates はモードとテンプレート文字列を紐づけるマップです。
var allTemplates = map[string]string{
	ModeStrip:   StripPrompt,
	ModeStyle:   StylePrompt,
	ModeStory:   StoryPrompt,
	ModePage:    PagePrompt,
	ModeSuggest: SuggestPrompt,
}
