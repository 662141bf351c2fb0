// Package prompts は生成 AI に送るプロンプトをテンプレートから組み立てます。
package prompts

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"text/template"
)

// PromptBuilder は、AIプロンプトを構築する契約です。
type PromptBuilder interface {
	Build(mode string, data TemplateData) (string, error)
}

// TextPromptBuilder は埋め込みテンプレートを1つのテンプレート集合として保持します。
// 各モードは集合内の名前付きテンプレートです。
type TextPromptBuilder struct {
	set *template.Template
}

var funcs = template.FuncMap{
	"lower": strings.ToLower,
}

// NewTextPromptBuilder は埋め込みテンプレートを解析して TextPromptBuilder を初期化します。
func NewTextPromptBuilder() (*TextPromptBuilder, error) {
	set := template.New("prompts").Funcs(funcs).Option("missingkey=error")
	for _, mode := range slices.Sorted(maps.Keys(allTemplates)) {
		content := allTemplates[mode]
		if strings.TrimSpace(content) == "" {
			return nil, fmt.Errorf("プロンプトテンプレート '%s' (go:embed) の読み込みに失敗しました: 内容が空です", mode)
		}
		if _, err := set.New(mode).Parse(content); err != nil {
			return nil, fmt.Errorf("プロンプト '%s' の解析に失敗: %w", mode, err)
		}
	}
	return &TextPromptBuilder{set: set}, nil
}

var defaultBuilder = sync.OnceValues(NewTextPromptBuilder)

// Default はパッケージ全体で共有する TextPromptBuilder を返します。解析は初回の呼び出しで1度だけ行います。
func Default() (*TextPromptBuilder, error) {
	return defaultBuilder()
}

// Modes は利用できるモード名を昇順で返します。
func (b *TextPromptBuilder) Modes() []string {
	var modes []string
	for _, t := range b.set.Templates() {
		if _, ok := allTemplates[t.Name()]; ok {
			modes = append(modes, t.Name())
		}
	}
	slices.Sort(modes)
	return modes
}

// Build は mode のテンプレートを実行します。前後の空白は取り除きます。
func (b *TextPromptBuilder) Build(mode string, data TemplateData) (string, error) {
	if _, ok := allTemplates[mode]; !ok || b.set.Lookup(mode) == nil {
		return "", fmt.Errorf("不明なモードです: '%s'", mode)
	}

	var sb strings.Builder
	if err := b.set.ExecuteTemplate(&sb, mode, data); err != nil {
		return "", fmt.Errorf("プロンプトテンプレート '%s' の実行に失敗しました: %w", mode, err)
	}
	return strings.TrimSpace(sb.String()), nil
}
