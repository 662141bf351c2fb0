package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	imagedom "github.com/shouni/gemini-image-kit/pkg/domain"

	"github.com/shouni/go-comic-kit/pkg/backend"
	"github.com/shouni/go-comic-kit/pkg/character"
	"github.com/shouni/go-comic-kit/pkg/domain"
	"github.com/shouni/go-comic-kit/pkg/events"
	"github.com/shouni/go-comic-kit/pkg/prompts"
)

var jsonBlockRegex = regexp.MustCompile("(?s)```(?:json)?\\s*(.*\\S)\\s*```")

// storyFields は物語の構造化出力で必須とするフィールドです。
var storyFields = []backend.FieldSpec{
	{Name: "page1", Description: "The story for the first page."},
	{Name: "page2", Description: "The story for the second page."},
	{Name: "page3", Description: "The story for the third page."},
}

// GenerateStory は物語を3つに分けて生成し、各ページの画像を順番に生成します。
// 途中で1ページでも失敗した場合は何も反映しません。
func (o *Orchestrator) GenerateStory(ctx context.Context, req StoryRequest) (*domain.Comic, error) {
	const op = domain.OpGenerateStory

	prompt, release, err := o.begin(ctx, op, req.Prompt)
	if err != nil {
		return nil, err
	}
	defer release()
	defer o.sink.Emit(ctx, events.Idle(op))

	o.progress(ctx, op, LabelStoryText)
	slog.InfoContext(ctx, "ストーリーの生成を開始します", "characters", len(req.Characters))

	parts, err := o.generateStoryText(ctx, prompt, req)
	if err != nil {
		return nil, o.fail(ctx, op, err)
	}

	images := make([]*imagedom.ImageResponse, 0, len(parts))
	for i, part := range parts {
		if err := o.sleep(ctx, o.pacing); err != nil {
			return nil, o.fail(ctx, op, fmt.Errorf("ページ %d の待機中に中断されました: %w", i+1, err))
		}
		o.progress(ctx, op, pageLabel(i))

		img, err := o.generatePage(ctx, part)
		if err != nil {
			return nil, o.fail(ctx, op, fmt.Errorf("ページ %d の生成に失敗しました: %w", i+1, err))
		}
		images = append(images, img)
	}

	comic, err := domain.NewComic(images, parts)
	if err != nil {
		return nil, o.fail(ctx, op, err)
	}
	if err := o.commit(ctx, comic, prompt); err != nil {
		return nil, o.fail(ctx, op, err)
	}
	return comic, nil
}

// pageLabel は i 番目（0 始まり）のページ生成中の進捗ラベルです。
func pageLabel(i int) string {
	return fmt.Sprintf("%d/%d: Generating page %d/%d...", i+2, StoryPageCount+1, i+1, StoryPageCount)
}

func (o *Orchestrator) generateStoryText(ctx context.Context, prompt string, req StoryRequest) ([]string, error) {
	storyPrompt, err := o.prompts.Build(prompts.ModeStory, prompts.TemplateData{
		Prompt:      prompt,
		Characters:  character.FormatForPrompt(req.Characters),
		ScienceFact: req.ScienceFact,
	})
	if err != nil {
		return nil, err
	}

	raw, err := o.backend.GenerateJSON(ctx, storyPrompt, storyFields)
	if err != nil {
		return nil, fmt.Errorf("物語の生成に失敗しました: %w", err)
	}
	return parseStoryParts(raw)
}

func (o *Orchestrator) generatePage(ctx context.Context, text string) (*imagedom.ImageResponse, error) {
	pagePrompt, err := o.prompts.Build(prompts.ModePage, prompts.TemplateData{PageText: text})
	if err != nil {
		return nil, err
	}
	img, err := o.backend.GenerateImage(ctx, imagedom.ImageGenerationRequest{
		Prompt:      pagePrompt,
		AspectRatio: o.storyAspect,
	})
	if err != nil {
		return nil, err
	}
	if img == nil || len(img.Data) == 0 {
		return nil, fmt.Errorf("画像の生成結果が空です")
	}
	return img, nil
}

// parseStoryParts は応答から JSON を取り出し、3ページ分の文章を返します。
// コードブロックや前後の文章で囲まれた JSON も受け付けます。
func parseStoryParts(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	var rawJSON string

	matches := jsonBlockRegex.FindStringSubmatch(raw)
	if len(matches) > 1 {
		rawJSON = matches[1]
	} else {
		firstBracket := strings.Index(raw, "{")
		lastBracket := strings.LastIndex(raw, "}")
		if firstBracket != -1 && lastBracket != -1 && lastBracket > firstBracket {
			rawJSON = raw[firstBracket : lastBracket+1]
		} else {
			rawJSON = raw
		}
	}

	var sp storyParts
	if err := json.Unmarshal([]byte(rawJSON), &sp); err != nil {
		return nil, fmt.Errorf("AIからの応答に含まれるJSONの解析に失敗しました (応答抜粋: %q): %w", truncateString(raw, 200), err)
	}

	parts := []string{sp.Page1, sp.Page2, sp.Page3}
	for i, p := range parts {
		if strings.TrimSpace(p) == "" {
			return nil, fmt.Errorf("物語の page%d が空です (応答抜粋: %q)", i+1, truncateString(raw, 200))
		}
	}
	return parts, nil
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
