package generator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shouni/go-comic-kit/pkg/domain"
	"github.com/shouni/go-comic-kit/pkg/events"
	"github.com/shouni/go-comic-kit/pkg/prompts"
)

// SuggestPrompt は物語のアイデアを1文で提案させ、セッションのプロンプトに設定します。
func (o *Orchestrator) SuggestPrompt(ctx context.Context) (string, error) {
	const op = domain.OpSuggestPrompt

	release, err := o.session.BeginGeneration()
	if err != nil {
		return "", err
	}
	defer release()
	defer o.sink.Emit(ctx, events.Idle(op))

	p, err := o.prompts.Build(prompts.ModeSuggest, prompts.TemplateData{})
	if err != nil {
		return "", o.fail(ctx, op, err)
	}
	text, err := o.backend.GenerateText(ctx, p)
	if err != nil {
		return "", o.fail(ctx, op, err)
	}

	suggestion := cleanSuggestion(text)
	if suggestion == "" {
		return "", o.fail(ctx, op, fmt.Errorf("提案が空でした"))
	}

	slog.InfoContext(ctx, "プロンプトを提案しました", "prompt", suggestion)
	o.session.SetPrompt(suggestion)
	return suggestion, nil
}

// cleanSuggestion は前後の空白と、先頭・末尾の引用符を1つずつ取り除きます。
func cleanSuggestion(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, `"`)
	s = strings.TrimSuffix(s, `"`)
	return s
}
