// Package editor は生成済み漫画の1ページを指示文やプリセットで修正します。
package editor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/shouni/go-comic-kit/pkg/backend"
	"github.com/shouni/go-comic-kit/pkg/domain"
	"github.com/shouni/go-comic-kit/pkg/events"
	"github.com/shouni/go-comic-kit/pkg/session"
)

// 進捗ラベルと通知
const (
	LabelApplyingEdit = "Applying your edit..."
	MsgEditApplied    = "Edit applied successfully!"
)

// Presets は雰囲気プリセットの名前と指示文の対応です。
var Presets = map[string]string{
	"day":   "Change the lighting to a bright, clear daytime scene.",
	"night": "Transform this scene to take place at night. Add stars, a moon, and adjust the lighting accordingly.",
	"rainy": "Change the weather to be rainy. Add rain streaks, puddles, and adjust the lighting to be overcast.",
	"sunny": "Make the scene look bright and sunny, as if it is golden hour. Add lens flare and warm tones.",
}

// PresetNames はプリセット名を辞書順で返します。
func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Pipeline は1ページ単位の編集を実行します。
type Pipeline struct {
	editor  backend.ImageEditor
	session *session.Session
	sink    events.Sink
}

// NewPipeline は Pipeline を初期化します。sink が nil の場合はイベントを捨てます。
func NewPipeline(ed backend.ImageEditor, sess *session.Session, sink events.Sink) (*Pipeline, error) {
	if ed == nil || sess == nil {
		return nil, fmt.Errorf("ImageEditor と Session は必須です")
	}
	if sink == nil {
		sink = events.Discard
	}
	return &Pipeline{editor: ed, session: sess, sink: sink}, nil
}

// Edit は pageIndex のページだけを instruction で編集した漫画をセッションに反映します。
// 呼び出しが終わった時点で、成否にかかわらずセッションの編集指示は消去されます。
func (p *Pipeline) Edit(ctx context.Context, pageIndex int, instruction string) (*domain.Comic, error) {
	return p.run(ctx, pageIndex, instruction, LabelApplyingEdit)
}

// EditCurrentPage はセッションの表示中ページを、セッションの編集指示で編集します。
func (p *Pipeline) EditCurrentPage(ctx context.Context) (*domain.Comic, error) {
	snap := p.session.Snapshot()
	return p.Edit(ctx, snap.CurrentPage, snap.EditPrompt)
}

// ApplyPreset は名前付きプリセットで編集します。
// 未知の名前の場合は何もせず、nil, nil を返します。
func (p *Pipeline) ApplyPreset(ctx context.Context, pageIndex int, name string) (*domain.Comic, error) {
	instruction, ok := Presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		slog.DebugContext(ctx, "未知のプリセットのため編集しません", "preset", name)
		return nil, nil
	}
	return p.run(ctx, pageIndex, instruction, fmt.Sprintf("Applying %s effect...", strings.ToLower(strings.TrimSpace(name))))
}

func (p *Pipeline) run(ctx context.Context, pageIndex int, instruction, label string) (*domain.Comic, error) {
	const op = domain.OpEdit

	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return nil, p.reject(ctx, domain.MsgMissingEdit)
	}
	comic := p.session.Comic()
	if comic.IsEmpty() {
		return nil, p.reject(ctx, domain.MsgMissingComic)
	}
	page, err := comic.Page(pageIndex)
	if err != nil {
		return nil, p.reject(ctx, fmt.Sprintf("Page %d does not exist.", pageIndex+1))
	}

	release, err := p.session.BeginEdit()
	if err != nil {
		return nil, err
	}
	defer release()
	defer p.session.SetEditPrompt("")
	defer p.sink.Emit(ctx, events.Idle(op))

	p.sink.Emit(ctx, events.Progress(op, label))
	slog.InfoContext(ctx, "ページを編集します", "page", pageIndex, "instruction", instruction)

	res, err := p.editor.EditImage(ctx, page.Image, instruction)
	if err == nil && (res == nil || res.Image == nil || len(res.Image.Data) == 0) {
		err = fmt.Errorf("編集の応答に画像が含まれていません")
	}
	if err != nil {
		return nil, p.fail(ctx, err)
	}

	// 編集中に別の漫画へ置き換わっていないことを確認する
	current := p.session.Comic()
	if current != comic {
		return nil, p.fail(ctx, fmt.Errorf("編集中に漫画が置き換えられました"))
	}
	next, err := comic.WithPage(pageIndex, res.Image)
	if err != nil {
		return nil, p.fail(ctx, err)
	}
	if err := p.session.ReplaceComic(next); err != nil {
		return nil, p.fail(ctx, err)
	}

	p.sink.Emit(ctx, events.Notice(op, MsgEditApplied))
	return next, nil
}

func (p *Pipeline) reject(ctx context.Context, msg string) error {
	verr := domain.NewValidationError(domain.OpEdit, msg)
	p.sink.Emit(ctx, events.Failure(domain.OpEdit, verr))
	return verr
}

func (p *Pipeline) fail(ctx context.Context, err error) error {
	opErr := domain.Classify(domain.OpEdit, err)
	slog.ErrorContext(ctx, "編集に失敗しました", "kind", opErr.Kind.String(), "error", err)
	p.sink.Emit(ctx, events.Failure(domain.OpEdit, opErr))
	return opErr
}
