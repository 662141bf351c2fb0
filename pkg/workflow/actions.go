package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/shouni/go-comic-kit/pkg/domain"
	"github.com/shouni/go-comic-kit/pkg/events"
	"github.com/shouni/go-comic-kit/pkg/generator"
	"github.com/shouni/go-comic-kit/pkg/persistence"
	"github.com/shouni/go-comic-kit/pkg/session"
)

// GenerateStrip は現在のプロンプトと登録済みキャラクターで4コマ漫画を生成します。
func (m *Manager) GenerateStrip(ctx context.Context, opts GenerateOptions) (*domain.Comic, error) {
	return m.orchestrator.GenerateStrip(ctx, generator.StripRequest{
		Prompt:      m.session.Prompt(),
		Characters:  m.characters.List(),
		Style:       opts.Style,
		ScienceFact: opts.ScienceFact,
	})
}

// GenerateStory は現在のプロンプトと登録済みキャラクターで3ページの物語を生成します。
func (m *Manager) GenerateStory(ctx context.Context, opts GenerateOptions) (*domain.Comic, error) {
	return m.orchestrator.GenerateStory(ctx, generator.StoryRequest{
		Prompt:      m.session.Prompt(),
		Characters:  m.characters.List(),
		ScienceFact: opts.ScienceFact,
	})
}

// SuggestPrompt はプロンプトの案を生成して現在のプロンプトにします。
func (m *Manager) SuggestPrompt(ctx context.Context) (string, error) {
	return m.orchestrator.SuggestPrompt(ctx)
}

// Edit は page 番目のページを instruction で編集します。
func (m *Manager) Edit(ctx context.Context, page int, instruction string) (*domain.Comic, error) {
	m.session.SetEditPrompt(instruction)
	return m.editor.Edit(ctx, page, instruction)
}

// ApplyPreset は page 番目のページに雰囲気プリセットを適用します。
func (m *Manager) ApplyPreset(ctx context.Context, page int, name string) (*domain.Comic, error) {
	return m.editor.ApplyPreset(ctx, page, name)
}

// AddCharacter はフォームの内容でキャラクターを登録します。
// 顔画像が指定されている場合は先に解析し、その説明を外見として使います。
func (m *Manager) AddCharacter(ctx context.Context, form domain.Character, faceDataURL string) (domain.Character, error) {
	if strings.TrimSpace(form.Name) == "" {
		return m.characters.Add(ctx, form)
	}
	if faceDataURL != "" {
		analyzed, err := m.faces.Analyze(ctx, form, faceDataURL)
		if err != nil {
			return domain.Character{}, err
		}
		form = analyzed
	}
	return m.characters.Add(ctx, form)
}

// History は新しい順のプロンプト履歴です。
func (m *Manager) History() []string {
	return m.persistence.History()
}

// LoadHistoryItem は履歴のプロンプトを読み込みます。現在の漫画は消えます。
func (m *Manager) LoadHistoryItem(ctx context.Context, index int) (string, error) {
	entries := m.persistence.History()
	if index < 0 || index >= len(entries) {
		verr := domain.NewValidationError(domain.OpHistory, fmt.Sprintf("history item %d does not exist", index+1))
		m.bus.Emit(ctx, events.Failure(domain.OpHistory, verr))
		return "", verr
	}
	if m.session.Busy() {
		return "", session.ErrBusy
	}
	prompt := entries[index]
	m.session.LoadPrompt(prompt)
	m.bus.Emit(ctx, events.Notice(domain.OpHistory, MsgPromptLoaded))
	return prompt, nil
}

// ClearHistory は履歴を消去します。
func (m *Manager) ClearHistory(ctx context.Context) {
	m.persistence.ClearHistory(ctx)
}

// ResumeDraft は保存済みのドラフトを読み込み、プロンプト、漫画、キャラクターを復元します。
// ドラフトがない場合は false を返します。
func (m *Manager) ResumeDraft(ctx context.Context) (bool, error) {
	if m.session.Busy() {
		return false, session.ErrBusy
	}
	snap, err := m.persistence.LoadDraft(ctx)
	if isNotFound(err) {
		m.bus.Emit(ctx, events.Notice(domain.OpDraft, persistence.MsgDraftNotFound))
		return false, nil
	}
	if err != nil {
		return false, m.draftLoadFailed(ctx, err)
	}
	comic, err := snap.Comic()
	if err != nil {
		return false, m.draftLoadFailed(ctx, err)
	}

	m.session.Restore(snap.Prompt, comic)
	m.characters.Replace(snap.Characters)
	m.bus.Emit(ctx, events.Notice(domain.OpDraft, persistence.MsgDraftLoaded))
	return true, nil
}

// DiscardDraft は作業中の内容をすべて消し、保存済みのドラフトも削除します。
func (m *Manager) DiscardDraft(ctx context.Context) error {
	if m.session.Busy() {
		return session.ErrBusy
	}
	m.session.Clear()
	m.characters.Clear()
	if err := m.persistence.ClearDraft(ctx); err != nil {
		opErr := &domain.OperationError{Kind: domain.KindStorage, Op: domain.OpDraft, Message: persistence.MsgDraftSaveFail, Err: err}
		m.bus.Emit(ctx, events.Failure(domain.OpDraft, opErr))
		return opErr
	}
	m.bus.Emit(ctx, events.Notice(domain.OpDraft, persistence.MsgDraftCleared))
	return nil
}

// ToggleNarration は表示中のページの読み上げを開始、または停止します。
func (m *Manager) ToggleNarration(ctx context.Context) (bool, error) {
	snap := m.session.Snapshot()
	return m.narrator.Toggle(ctx, snap.Comic, snap.CurrentPage)
}

// Dictate は音声入力を1回行い、プロンプトに追記します。
func (m *Manager) Dictate(ctx context.Context) (string, error) {
	return m.dictation.Capture(ctx)
}

// SetCurrentPage は表示中のページを変更します。
func (m *Manager) SetCurrentPage(page int) error {
	return m.session.SetCurrentPage(page)
}

// SetPrompt はプロンプトを変更します。
func (m *Manager) SetPrompt(p string) {
	m.session.SetPrompt(p)
}

func (m *Manager) draftLoadFailed(ctx context.Context, err error) error {
	opErr := &domain.OperationError{Kind: domain.KindSchemaMigration, Op: domain.OpDraft, Message: persistence.MsgDraftLoadFail, Err: err}
	m.bus.Emit(ctx, events.Failure(domain.OpDraft, opErr))
	return opErr
}
