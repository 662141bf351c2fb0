// Package voice はナレーションの再生と音声入力を扱います。
// 実際の音声合成・音声認識は端末側の実装に委ね、利用できない場合はその旨を通知します。
package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/shouni/go-comic-kit/pkg/domain"
	"github.com/shouni/go-comic-kit/pkg/events"
)

// 通知メッセージ
const (
	MsgNarrationUnsupported   = "Sorry, your browser doesn't support narration."
	MsgRecognitionUnsupported = "Sorry, your browser doesn't support voice recognition."
)

// Synthesizer は文章を読み上げます。Speak は読み上げが終わるか ctx が終了するまで戻りません。
type Synthesizer interface {
	Speak(ctx context.Context, text string) error
}

// Recognizer は音声を1回聞き取り、文字起こしを返します。
type Recognizer interface {
	Listen(ctx context.Context) (string, error)
}

// Narrator は表示中ページのナレーションを再生・停止します。
type Narrator struct {
	synth Synthesizer
	sink  events.Sink

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewNarrator は Narrator を初期化します。synth が nil の場合、読み上げは利用できません。
func NewNarrator(synth Synthesizer, sink events.Sink) *Narrator {
	if sink == nil {
		sink = events.Discard
	}
	return &Narrator{synth: synth, sink: sink}
}

// Toggle は再生中なら停止し、停止中なら comic の page 番目のナレーションを再生します。
// 再生を始めた場合は true を返します。ナレーションがないページでは何もしません。
func (n *Narrator) Toggle(ctx context.Context, comic *domain.Comic, page int) (bool, error) {
	if n.synth == nil {
		cerr := domain.NewCapabilityError(domain.OpNarration, MsgNarrationUnsupported)
		n.sink.Emit(ctx, events.Notice(domain.OpNarration, cerr.Message))
		return false, cerr
	}
	if n.Narrating() {
		n.Stop()
		return false, nil
	}

	text, ok := comic.NarrationAt(page)
	if !ok || strings.TrimSpace(text) == "" {
		return false, nil
	}

	speakCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	n.mu.Lock()
	n.cancel, n.done = cancel, done
	n.mu.Unlock()

	go func() {
		defer close(done)
		defer n.finish(done)

		err := n.synth.Speak(speakCtx, text)
		if err != nil && speakCtx.Err() == nil {
			msg := err.Error()
			if msg == "" {
				msg = "Unknown error"
			}
			slog.WarnContext(ctx, "ナレーションに失敗しました", "error", err)
			n.sink.Emit(ctx, events.Notice(domain.OpNarration, fmt.Sprintf("Narration failed: %s", msg)))
		}
	}()
	return true, nil
}

func (n *Narrator) finish(done chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.done == done {
		n.cancel()
		n.cancel, n.done = nil, nil
	}
}

// Narrating は再生中かどうかを返します。
func (n *Narrator) Narrating() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.done != nil
}

// Stop は再生中のナレーションを止め、終了を待ちます。再生していない場合は何もしません。
func (n *Narrator) Stop() {
	n.mu.Lock()
	cancel, done := n.cancel, n.done
	n.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Wait は再生中のナレーションが終わるまで待ちます。
func (n *Narrator) Wait() {
	n.mu.Lock()
	done := n.done
	n.mu.Unlock()
	if done != nil {
		<-done
	}
}

// PromptTarget は音声入力の書き込み先です。
type PromptTarget interface {
	Prompt() string
	SetPrompt(p string)
}

// Dictation は音声入力をプロンプトに追記します。
type Dictation struct {
	rec    Recognizer
	target PromptTarget
	sink   events.Sink

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewDictation は Dictation を初期化します。rec が nil の場合、音声入力は利用できません。
func NewDictation(rec Recognizer, target PromptTarget, sink events.Sink) *Dictation {
	if sink == nil {
		sink = events.Discard
	}
	return &Dictation{rec: rec, target: target, sink: sink}
}

// Capture は1回分の音声を聞き取り、プロンプトの末尾に追記します。
// 聞き取り中に呼ばれた場合は聞き取りを止め、空文字を返します。
func (d *Dictation) Capture(ctx context.Context) (string, error) {
	if d.rec == nil {
		cerr := domain.NewCapabilityError(domain.OpDictation, MsgRecognitionUnsupported)
		d.sink.Emit(ctx, events.Failure(domain.OpDictation, cerr))
		return "", cerr
	}

	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
		d.mu.Unlock()
		return "", nil
	}
	listenCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.cancel = nil
		d.mu.Unlock()
		cancel()
	}()

	transcript, err := d.rec.Listen(listenCtx)
	if err != nil {
		if errors.Is(err, context.Canceled) && listenCtx.Err() != nil {
			return "", nil
		}
		opErr := &domain.OperationError{
			Kind:    domain.KindGenerationFailed,
			Op:      domain.OpDictation,
			Message: fmt.Sprintf("Voice input error: %s", err),
			Err:     err,
		}
		d.sink.Emit(ctx, events.Failure(domain.OpDictation, opErr))
		return "", opErr
	}

	next := AppendTranscript(d.target.Prompt(), transcript)
	d.target.SetPrompt(next)
	return next, nil
}

// Listening は聞き取り中かどうかを返します。
func (d *Dictation) Listening() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancel != nil
}

// Stop は聞き取りを中止します。
func (d *Dictation) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
}

// AppendTranscript は既存のプロンプトに空白を挟んで文字起こしを追記します。
func AppendTranscript(prev, transcript string) string {
	if prev == "" {
		return strings.TrimSpace(transcript)
	}
	return strings.TrimSpace(strings.TrimSpace(prev) + " " + transcript)
}
