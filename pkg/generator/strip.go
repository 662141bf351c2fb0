package generator

import (
	"context"
	"fmt"
	"log/slog"

	imagedom "github.com/shouni/gemini-image-kit/pkg/domain"

	"github.com/shouni/go-comic-kit/pkg/character"
	"github.com/shouni/go-comic-kit/pkg/domain"
	"github.com/shouni/go-comic-kit/pkg/events"
	"github.com/shouni/go-comic-kit/pkg/prompts"
)

// GenerateStrip は1枚の4コマ漫画を生成し、成功した場合のみセッションの漫画を置き換えます。
// 生成または編集の実行中は session.ErrBusy を返し、何も変更しません。
func (o *Orchestrator) GenerateStrip(ctx context.Context, req StripRequest) (*domain.Comic, error) {
	const op = domain.OpGenerateStrip

	prompt, release, err := o.begin(ctx, op, req.Prompt)
	if err != nil {
		return nil, err
	}
	defer release()
	defer o.sink.Emit(ctx, events.Idle(op))

	o.progress(ctx, op, LabelCreatingStrip)
	slog.InfoContext(ctx, "ストリップの生成を開始します", "characters", len(req.Characters), "apply_style", req.Style.ApplyStyle)

	img, err := o.generateStripImage(ctx, prompt, req)
	if err != nil {
		return nil, o.fail(ctx, op, err)
	}

	comic, err := domain.NewComic([]*imagedom.ImageResponse{img}, nil)
	if err != nil {
		return nil, o.fail(ctx, op, err)
	}
	if err := o.commit(ctx, comic, prompt); err != nil {
		return nil, o.fail(ctx, op, err)
	}
	return comic, nil
}

func (o *Orchestrator) generateStripImage(ctx context.Context, prompt string, req StripRequest) (*imagedom.ImageResponse, error) {
	fullPrompt, err := o.prompts.Build(prompts.ModeStrip, prompts.TemplateData{
		Prompt:      prompt,
		Characters:  character.FormatForPrompt(req.Characters),
		ScienceFact: req.ScienceFact,
	})
	if err != nil {
		return nil, err
	}

	img, err := o.backend.GenerateImage(ctx, imagedom.ImageGenerationRequest{
		Prompt:      fullPrompt,
		AspectRatio: o.stripAspect,
	})
	if err != nil {
		return nil, fmt.Errorf("ストリップ画像の生成に失敗しました: %w", err)
	}
	if img == nil || len(img.Data) == 0 {
		return nil, fmt.Errorf("ストリップ画像の生成結果が空です")
	}

	if !req.Style.ApplyStyle {
		return img, nil
	}
	return o.applyStyle(ctx, img, req.Style.withDefaults())
}

// applyStyle は画像に漫画風スタイルを適用します。
// 応答に画像が含まれない場合は元の画像を返し、通知だけを出します。
func (o *Orchestrator) applyStyle(ctx context.Context, img *imagedom.ImageResponse, style StyleOptions) (*imagedom.ImageResponse, error) {
	const op = domain.OpGenerateStrip
	o.progress(ctx, op, LabelApplyingStyle)

	instruction, err := o.prompts.Build(prompts.ModeStyle, prompts.TemplateData{
		ArtStyle:      style.ArtStyle,
		LineThickness: style.LineThickness,
		Shading:       style.Shading,
	})
	if err != nil {
		return nil, err
	}

	res, err := o.backend.EditImage(ctx, img, instruction)
	if err != nil {
		return nil, fmt.Errorf("スタイルの適用に失敗しました: %w", err)
	}
	if res == nil || res.Image == nil || len(res.Image.Data) == 0 {
		slog.WarnContext(ctx, "スタイル適用の応答に画像がないため、元の画像を使用します")
		o.sink.Emit(ctx, events.Notice(op, MsgStyleFallback))
		return img, nil
	}
	return res.Image, nil
}
