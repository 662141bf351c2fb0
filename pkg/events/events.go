package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shouni/go-comic-kit/pkg/domain"
)

// Kind はイベントの種類です。
type Kind string

const (
	KindProgress Kind = "progress" // 処理中のラベル
	KindNotice   Kind = "notice"   // 致命的ではない通知
	KindError    Kind = "error"    // 操作の失敗
	KindIdle     Kind = "idle"     // 処理の終了
)

// Event は UI やログに流す観測用の情報です。状態の変更には使いません。
type Event struct {
	Kind      Kind             `json:"kind"`
	Op        domain.Operation `json:"op,omitempty"`
	Message   string           `json:"message,omitempty"`
	ErrorKind string           `json:"errorKind,omitempty"`
	Time      time.Time        `json:"time"`
}

// Sink はイベントの受け取り先です。
type Sink interface {
	Emit(ctx context.Context, ev Event)
}

// Progress は進捗イベントを生成します。
func Progress(op domain.Operation, label string) Event {
	return Event{Kind: KindProgress, Op: op, Message: label, Time: time.Now()}
}

// Notice は通知イベントを生成します。
func Notice(op domain.Operation, msg string) Event {
	return Event{Kind: KindNotice, Op: op, Message: msg, Time: time.Now()}
}

// Idle は処理終了のイベントを生成します。
func Idle(op domain.Operation) Event {
	return Event{Kind: KindIdle, Op: op, Time: time.Now()}
}

// Failure はエラーイベントを生成します。
func Failure(op domain.Operation, err *domain.OperationError) Event {
	ev := Event{Kind: KindError, Op: op, Time: time.Now()}
	if err != nil {
		ev.Message = err.Message
		ev.ErrorKind = err.Kind.String()
	}
	return ev
}

// Discard はすべてのイベントを捨てる Sink です。
var Discard Sink = discard{}

type discard struct{}

func (discard) Emit(context.Context, Event) {}

// Bus は複数の購読者にイベントを配信します。
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(Event)
}

// NewBus は空の Bus を返します。
func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(Event))}
}

// Subscribe は購読者を登録し、解除用の関数を返します。
func (b *Bus) Subscribe(fn func(Event)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Emit はイベントをログに残し、全購読者へ配信します。
func (b *Bus) Emit(ctx context.Context, ev Event) {
	logEvent(ctx, ev)

	b.mu.RLock()
	fns := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func logEvent(ctx context.Context, ev Event) {
	switch ev.Kind {
	case KindError:
		slog.WarnContext(ctx, "操作が失敗しました", "op", ev.Op, "kind", ev.ErrorKind, "message", ev.Message)
	case KindNotice:
		slog.InfoContext(ctx, "通知", "op", ev.Op, "message", ev.Message)
	case KindProgress:
		slog.DebugContext(ctx, "進捗", "op", ev.Op, "label", ev.Message)
	}
}

// Recorder は受け取ったイベントを保持する Sink です。
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(_ context.Context, ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events は記録済みイベントのコピーを返します。
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Messages は指定種類のイベントのメッセージを順に返します。
func (r *Recorder) Messages(kind Kind) []string {
	var out []string
	for _, ev := range r.Events() {
		if ev.Kind == kind {
			out = append(out, ev.Message)
		}
	}
	return out
}
