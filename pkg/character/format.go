package character

import (
	"fmt"
	"strings"

	"github.com/shouni/go-comic-kit/pkg/domain"
)

const notSpecified = "not specified"

const promptHeader = "Please use the following characters in the comic. Ensure their appearance, especially facial features, remains consistent across all panels:\n"

const promptFooter = "\n\n---\n\n"

// FormatForPrompt はキャラクター一覧を生成プロンプトの先頭に置く文に変換します。
// 一覧が空の場合は空文字を返します。
func FormatForPrompt(chars []domain.Character) string {
	if len(chars) == 0 {
		return ""
	}

	lines := make([]string, len(chars))
	for i, c := range chars {
		lines[i] = fmt.Sprintf("- %s (%s): Appearance: %s. Personality: %s. Powers: %s.",
			c.Name,
			c.Type,
			orNotSpecified(c.VisualDescription()),
			orNotSpecified(c.Personality),
			orNotSpecified(c.Powers),
		)
	}
	return promptHeader + strings.Join(lines, "\n") + promptFooter
}

func orNotSpecified(s string) string {
	if s == "" {
		return notSpecified
	}
	return s
}
