// Package persistence はドラフトとプロンプト履歴をストアと同期させます。
package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/shouni/go-comic-kit/pkg/config"
	"github.com/shouni/go-comic-kit/pkg/domain"
	"github.com/shouni/go-comic-kit/pkg/events"
	"github.com/shouni/go-comic-kit/pkg/history"
	"github.com/shouni/go-comic-kit/pkg/store"
)

// Manager はストアへの書き込みを一手に引き受けます。
type Manager struct {
	store     store.Store
	ledger    *history.Ledger
	sink      events.Sink
	scheduler Scheduler
	debounce  time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	timer   Timer
	armed   uint64 // 予約のたびに増やし、古い予約の発火を見分けます
	pending *DraftSnapshot
	closed  bool
}

// Option は Manager の設定を変更します。
type Option func(*Manager)

// WithSink は通知の送り先を設定します。
func WithSink(s events.Sink) Option {
	return func(m *Manager) { m.sink = s }
}

// WithScheduler はドラフト保存の遅延実行に使う Scheduler を設定します。
func WithScheduler(s Scheduler) Option {
	return func(m *Manager) { m.scheduler = s }
}

// WithDebounce はドラフト保存までの待ち時間を設定します。
func WithDebounce(d time.Duration) Option {
	return func(m *Manager) { m.debounce = d }
}

// WithHistoryLimit は履歴の上限件数を設定します。
func WithHistoryLimit(n int) Option {
	return func(m *Manager) { m.ledger = history.NewLedger(n) }
}

// NewManager は store を使う Manager を返します。
func NewManager(st store.Store, opts ...Option) (*Manager, error) {
	if st == nil {
		return nil, fmt.Errorf("store は必須です")
	}
	m := &Manager{
		store:     st,
		ledger:    history.NewLedger(config.DefaultHistoryLimit),
		sink:      events.Discard,
		scheduler: realScheduler{},
		debounce:  config.DefaultDraftDebounce,
		logger:    slog.Default().With("component", "persistence"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// --- History ---

// LoadHistory は保存済みの履歴を読み込みます。
// 旧形式は変換してすぐに書き戻し、解釈できない値は削除して空から始めます。
func (m *Manager) LoadHistory(ctx context.Context) (HistoryShape, error) {
	raw, ok, err := m.store.Get(ctx, KeyHistory)
	if err != nil {
		m.ledger.Clear()
		return ShapeMissing, &domain.OperationError{Kind: domain.KindStorage, Op: domain.OpHistory, Message: "Could not load history.", Err: err}
	}
	if !ok {
		m.ledger.Clear()
		return ShapeMissing, nil
	}

	entries, shape := decodeHistory(raw)
	switch shape {
	case ShapeCurrent:
		m.ledger.Replace(entries)
		if !slices.Equal(entries, m.ledger.Entries()) {
			m.logger.InfoContext(ctx, "重複や上限超過を含む履歴を整えて書き戻します", "stored", len(entries), "entries", m.ledger.Len())
			m.persistHistory(ctx)
		}
	case ShapeLegacy:
		m.ledger.Replace(entries)
		m.logger.InfoContext(ctx, "旧形式の履歴を変換しました", "entries", m.ledger.Len())
		m.persistHistory(ctx)
	default:
		m.ledger.Clear()
		m.logger.WarnContext(ctx, "解釈できない履歴を破棄します", "kind", domain.KindSchemaMigration)
		if err := m.store.Remove(ctx, KeyHistory); err != nil {
			m.logger.ErrorContext(ctx, "履歴の削除に失敗しました", "error", err)
		}
	}
	return shape, nil
}

// History は履歴を新しい順に返します。
func (m *Manager) History() []string {
	return m.ledger.Entries()
}

// RecordSuccess は生成に成功したプロンプトを履歴に記録します。
// ストアへの書き込みに失敗してもメモリ上の履歴は更新されたままです。
func (m *Manager) RecordSuccess(ctx context.Context, prompt string) {
	m.ledger.Add(prompt)
	m.persistHistory(ctx)
}

// ClearHistory は履歴を空にし、保存値も削除します。
func (m *Manager) ClearHistory(ctx context.Context) {
	m.ledger.Clear()
	if err := m.store.Remove(ctx, KeyHistory); err != nil {
		m.logger.ErrorContext(ctx, "履歴の削除に失敗しました", "error", err)
		m.sink.Emit(ctx, events.Notice(domain.OpHistory, MsgHistoryClearFail))
	}
}

func (m *Manager) persistHistory(ctx context.Context) {
	raw, err := encodeHistory(m.ledger.Entries())
	if err != nil {
		m.logger.ErrorContext(ctx, "履歴のエンコードに失敗しました", "error", err)
		return
	}
	if err := m.store.Set(ctx, KeyHistory, raw); err != nil {
		if errors.Is(err, store.ErrQuotaExceeded) {
			m.logger.WarnContext(ctx, "容量不足のため履歴を保存できませんでした", "error", err)
			m.sink.Emit(ctx, events.Notice(domain.OpHistory, MsgHistoryFull))
			return
		}
		m.logger.ErrorContext(ctx, "履歴の保存に失敗しました", "error", err)
	}
}

// --- Draft ---

// OnFieldsChanged は追跡対象の変更を受け取り、待ち時間の後にドラフトを保存します。
// 待ち時間中に次の変更が来た場合は予約をやり直し、最後の内容だけを保存します。
func (m *Manager) OnFieldsChanged(snap DraftSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	m.pending = &snap
	if m.timer != nil {
		m.timer.Stop()
	}
	m.armed++
	armed := m.armed
	m.timer = m.scheduler.AfterFunc(m.debounce, func() { m.fire(armed) })
}

// fire は armed 番目の予約が発火したときに呼ばれます。
// Stop が間に合わず、後の予約に置き換えられた発火は何もしません。
func (m *Manager) fire(armed uint64) {
	m.mu.Lock()
	if armed != m.armed {
		m.mu.Unlock()
		return
	}
	snap := m.takePendingLocked()
	m.mu.Unlock()
	if snap == nil {
		return
	}
	m.saveDraft(context.Background(), *snap)
}

func (m *Manager) takePending() *DraftSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.takePendingLocked()
}

func (m *Manager) takePendingLocked() *DraftSnapshot {
	snap := m.pending
	m.pending = nil
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	return snap
}

// Flush は予約中のドラフト保存があれば直ちに実行します。
func (m *Manager) Flush(ctx context.Context) {
	if snap := m.takePending(); snap != nil {
		m.saveDraft(ctx, *snap)
	}
}

// Pending は保存待ちの変更があるかどうかを返します。
func (m *Manager) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending != nil
}

// Close は予約を取り消し、以降の変更を受け付けません。
func (m *Manager) Close() {
	m.takePending()
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

func (m *Manager) saveDraft(ctx context.Context, snap DraftSnapshot) {
	if snap.IsEmpty() {
		if err := m.store.Remove(ctx, KeyDraft); err != nil {
			m.logger.ErrorContext(ctx, "ドラフトの削除に失敗しました", "error", err)
		}
		return
	}

	raw, err := encodeDraft(snap)
	if err != nil {
		m.logger.ErrorContext(ctx, "ドラフトの保存に失敗しました", "error", err)
		m.sink.Emit(ctx, events.Notice(domain.OpDraft, MsgDraftSaveFail))
		return
	}
	if err := m.store.Set(ctx, KeyDraft, raw); err != nil {
		if errors.Is(err, store.ErrQuotaExceeded) {
			m.logger.WarnContext(ctx, "容量不足のためドラフトを保存できませんでした", "bytes", len(raw))
			m.sink.Emit(ctx, events.Notice(domain.OpDraft, MsgDraftFull))
			return
		}
		m.logger.ErrorContext(ctx, "ドラフトの保存に失敗しました", "error", err)
		m.sink.Emit(ctx, events.Notice(domain.OpDraft, MsgDraftSaveFail))
		return
	}
	m.logger.DebugContext(ctx, "ドラフトを保存しました", "bytes", len(raw), "pages", len(snap.ComicImageURLs))
}

// HasDraft は読み込み可能なドラフトが保存されているかを返します。
func (m *Manager) HasDraft(ctx context.Context) (bool, error) {
	_, ok, err := m.store.Get(ctx, KeyDraft)
	if err != nil {
		return false, fmt.Errorf("ドラフトの確認に失敗しました: %w", err)
	}
	return ok, nil
}

// LoadDraft は保存されたドラフトを返します。
// 保存されていない場合は ErrDraftNotFound、読み取れない場合は ErrDraftCorrupt を返します。
func (m *Manager) LoadDraft(ctx context.Context) (DraftSnapshot, error) {
	raw, ok, err := m.store.Get(ctx, KeyDraft)
	if err != nil {
		return DraftSnapshot{}, fmt.Errorf("ドラフトの読み込みに失敗しました: %w", err)
	}
	if !ok {
		return DraftSnapshot{}, ErrDraftNotFound
	}
	snap, err := decodeDraft(raw)
	if err != nil {
		m.logger.WarnContext(ctx, "ドラフトを読み取れませんでした", "error", err)
		return DraftSnapshot{}, err
	}
	return snap, nil
}

// ClearDraft は予約中の保存を取り消し、保存済みのドラフトを削除します。
func (m *Manager) ClearDraft(ctx context.Context) error {
	m.takePending()
	if err := m.store.Remove(ctx, KeyDraft); err != nil {
		return fmt.Errorf("ドラフトの削除に失敗しました: %w", err)
	}
	return nil
}

// --- Settings ---

// Theme は保存済みのテーマを返します。未設定の場合は light です。
func (m *Manager) Theme(ctx context.Context) string {
	v, ok, err := m.store.Get(ctx, KeyTheme)
	if err != nil || !ok || (v != ThemeLight && v != ThemeDark) {
		return ThemeLight
	}
	return v
}

// SetTheme はテーマを保存します。
func (m *Manager) SetTheme(ctx context.Context, theme string) error {
	if theme != ThemeLight && theme != ThemeDark {
		return domain.NewValidationError(domain.OpDraft, fmt.Sprintf("unknown theme: %s", theme))
	}
	if err := m.store.Set(ctx, KeyTheme, theme); err != nil {
		m.sink.Emit(ctx, events.Notice(domain.OpDraft, MsgSettingsSaveFail))
		return fmt.Errorf("テーマの保存に失敗しました: %w", err)
	}
	return nil
}

// TutorialCompleted はチュートリアルを完了済みかどうかを返します。
func (m *Manager) TutorialCompleted(ctx context.Context) bool {
	v, ok, err := m.store.Get(ctx, KeyTutorialCompleted)
	return err == nil && ok && v == "true"
}

// MarkTutorialCompleted はチュートリアルを完了済みとして記録します。
func (m *Manager) MarkTutorialCompleted(ctx context.Context) error {
	if err := m.store.Set(ctx, KeyTutorialCompleted, "true"); err != nil {
		return fmt.Errorf("チュートリアル状態の保存に失敗しました: %w", err)
	}
	return nil
}
