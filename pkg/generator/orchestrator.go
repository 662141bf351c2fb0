// Package generator は漫画の生成（4コマのストリップと3ページのストーリー）を順序立てて実行し、
// すべて成功した場合にだけ結果をセッションへ反映します。
package generator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shouni/go-comic-kit/pkg/backend"
	"github.com/shouni/go-comic-kit/pkg/config"
	"github.com/shouni/go-comic-kit/pkg/domain"
	"github.com/shouni/go-comic-kit/pkg/events"
	"github.com/shouni/go-comic-kit/pkg/prompts"
	"github.com/shouni/go-comic-kit/pkg/session"
)

// Backend は生成に必要なバックエンドの機能です。
type Backend interface {
	backend.ImageGenerator
	backend.ImageEditor
	backend.StructuredTextGenerator
	backend.TextGenerator
}

// HistoryRecorder は生成に成功したプロンプトを記録します。
type HistoryRecorder interface {
	RecordSuccess(ctx context.Context, prompt string)
}

// SleepFunc は ctx が終了するまで最大 d 待機します。
type SleepFunc func(ctx context.Context, d time.Duration) error

// Orchestrator は生成処理を実行します。
type Orchestrator struct {
	backend     Backend
	session     *session.Session
	history     HistoryRecorder
	sink        events.Sink
	prompts     prompts.PromptBuilder
	pacing      time.Duration
	stripAspect string
	storyAspect string
	sleep       SleepFunc
}

// Option は Orchestrator の設定を変更します。
type Option func(*Orchestrator)

// WithSink はイベントの送り先を設定します。
func WithSink(s events.Sink) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.sink = s
		}
	}
}

// WithPacing はストーリーの各ページ生成前の待機時間を設定します。
func WithPacing(d time.Duration) Option {
	return func(o *Orchestrator) { o.pacing = d }
}

// WithSleep は待機処理を差し替えます。
func WithSleep(fn SleepFunc) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.sleep = fn
		}
	}
}

// WithAspectRatios はストリップとストーリーのアスペクト比を設定します。空の場合は既定値のままです。
func WithAspectRatios(strip, story string) Option {
	return func(o *Orchestrator) {
		if strip != "" {
			o.stripAspect = strip
		}
		if story != "" {
			o.storyAspect = story
		}
	}
}

// WithPromptBuilder はプロンプトの組み立てを差し替えます。
func WithPromptBuilder(pb prompts.PromptBuilder) Option {
	return func(o *Orchestrator) {
		if pb != nil {
			o.prompts = pb
		}
	}
}

// NewOrchestrator は Orchestrator を初期化します。
func NewOrchestrator(b Backend, sess *session.Session, hist HistoryRecorder, opts ...Option) (*Orchestrator, error) {
	if b == nil || sess == nil || hist == nil {
		return nil, fmt.Errorf("Backend、Session、HistoryRecorder は必須です")
	}
	o := &Orchestrator{
		backend:     b,
		session:     sess,
		history:     hist,
		sink:        events.Discard,
		pacing:      config.DefaultPacingDelay,
		stripAspect: StripAspectRatio,
		storyAspect: StoryAspectRatio,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.prompts == nil {
		pb, err := prompts.Default()
		if err != nil {
			return nil, fmt.Errorf("プロンプトビルダーの初期化に失敗しました: %w", err)
		}
		o.prompts = pb
	}
	return o, nil
}

// begin は入力を検証して生成の実行権を取得します。
func (o *Orchestrator) begin(ctx context.Context, op domain.Operation, prompt string) (string, func(), error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		verr := domain.NewValidationError(op, domain.MsgMissingPrompt)
		o.sink.Emit(ctx, events.Failure(op, verr))
		return "", nil, verr
	}
	release, err := o.session.BeginGeneration()
	if err != nil {
		return "", nil, err
	}
	return prompt, release, nil
}

// commit は完成した漫画をセッションに反映し、プロンプトを履歴に記録します。
func (o *Orchestrator) commit(ctx context.Context, comic *domain.Comic, prompt string) error {
	if err := o.session.CommitComic(comic); err != nil {
		return err
	}
	o.history.RecordSuccess(ctx, prompt)
	return nil
}

// fail はエラーを分類して通知します。セッションの漫画は変更しません。
func (o *Orchestrator) fail(ctx context.Context, op domain.Operation, err error) error {
	opErr := domain.Classify(op, err)
	slog.ErrorContext(ctx, "生成に失敗しました", "op", op, "kind", opErr.Kind.String(), "error", err)
	o.sink.Emit(ctx, events.Failure(op, opErr))
	return opErr
}

func (o *Orchestrator) progress(ctx context.Context, op domain.Operation, label string) {
	o.sink.Emit(ctx, events.Progress(op, label))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
