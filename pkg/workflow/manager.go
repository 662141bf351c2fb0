// Package workflow は各コンポーネントを組み立て、状態の変更をドラフトの自動保存へ流します。
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shouni/go-comic-kit/pkg/backend"
	"github.com/shouni/go-comic-kit/pkg/backend/gemini"
	"github.com/shouni/go-comic-kit/pkg/character"
	"github.com/shouni/go-comic-kit/pkg/config"
	"github.com/shouni/go-comic-kit/pkg/domain"
	"github.com/shouni/go-comic-kit/pkg/editor"
	"github.com/shouni/go-comic-kit/pkg/events"
	"github.com/shouni/go-comic-kit/pkg/export"
	"github.com/shouni/go-comic-kit/pkg/generator"
	"github.com/shouni/go-comic-kit/pkg/persistence"
	"github.com/shouni/go-comic-kit/pkg/session"
	"github.com/shouni/go-comic-kit/pkg/store"
	"github.com/shouni/go-comic-kit/pkg/store/memstore"
	"github.com/shouni/go-comic-kit/pkg/store/sqlstore"
	"github.com/shouni/go-comic-kit/pkg/voice"
)

// MsgPromptLoaded は履歴からプロンプトを読み込んだときの通知です。
const MsgPromptLoaded = "Prompt loaded! You can generate the comic again."

// Manager はアプリケーション全体の状態と操作をまとめます。
type Manager struct {
	cfg   config.Config
	bus   *events.Bus
	store store.Store

	session      *session.Session
	characters   *character.Registry
	persistence  *persistence.Manager
	orchestrator *generator.Orchestrator
	editor       *editor.Pipeline
	faces        *character.FaceAnalyzer
	narrator     *voice.Narrator
	dictation    *voice.Dictation
	exporter     *export.Exporter
}

// New は設定を基に Manager を初期化します。
func New(ctx context.Context, args ManagerArgs) (*Manager, error) {
	cfg := args.Config
	bus := events.NewBus()
	if args.OnEvent != nil {
		bus.Subscribe(args.OnEvent)
	}

	be, err := initializeBackend(ctx, args.Backend, cfg)
	if err != nil {
		return nil, err
	}

	st, err := initializeStore(ctx, args.Store, cfg)
	if err != nil {
		return nil, err
	}

	pmOpts := []persistence.Option{
		persistence.WithSink(bus),
		persistence.WithDebounce(cfg.DraftDebounce),
		persistence.WithHistoryLimit(cfg.HistoryLimit),
	}
	if args.Scheduler != nil {
		pmOpts = append(pmOpts, persistence.WithScheduler(args.Scheduler))
	}
	pm, err := persistence.NewManager(st, pmOpts...)
	if err != nil {
		closeStore(st)
		return nil, fmt.Errorf("永続化マネージャーの初期化に失敗しました: %w", err)
	}

	sess := session.New()
	registry := character.NewRegistry(bus)

	genOpts := []generator.Option{
		generator.WithSink(bus),
		generator.WithPacing(cfg.PacingDelay),
		generator.WithAspectRatios(cfg.StripAspectRatio, cfg.StoryAspectRatio),
	}
	if args.Sleep != nil {
		genOpts = append(genOpts, generator.WithSleep(args.Sleep))
	}
	orch, err := generator.NewOrchestrator(be, sess, pm, genOpts...)
	if err != nil {
		closeStore(st)
		return nil, fmt.Errorf("生成エンジンの初期化に失敗しました: %w", err)
	}

	ed, err := editor.NewPipeline(be, sess, bus)
	if err != nil {
		closeStore(st)
		return nil, fmt.Errorf("編集パイプラインの初期化に失敗しました: %w", err)
	}

	faces, err := character.NewFaceAnalyzer(be, cfg.FaceImageLimit, bus)
	if err != nil {
		closeStore(st)
		return nil, fmt.Errorf("顔画像解析の初期化に失敗しました: %w", err)
	}

	m := &Manager{
		cfg:          cfg,
		bus:          bus,
		store:        st,
		session:      sess,
		characters:   registry,
		persistence:  pm,
		orchestrator: orch,
		editor:       ed,
		faces:        faces,
		narrator:     voice.NewNarrator(args.Synthesizer, bus),
		dictation:    voice.NewDictation(args.Recognizer, sess, bus),
		exporter:     export.NewExporter(cfg.ExportContrast, bus),
	}
	m.observe()

	if _, err := pm.LoadHistory(ctx); err != nil {
		slog.WarnContext(ctx, "履歴を読み込めませんでした", "error", err)
	}
	return m, nil
}

// initializeBackend は渡されたバックエンドを返すか、genai クライアントを新規作成します。
// API キーがない場合は、呼び出すたびに ErrNoAPIKey を返すバックエンドになります。
func initializeBackend(ctx context.Context, be backend.Backend, cfg config.Config) (backend.Backend, error) {
	if be != nil {
		return be, nil
	}
	if cfg.GeminiAPIKey == "" {
		slog.WarnContext(ctx, "API キーがないため、生成 AI を使う操作は失敗します")
		return offlineBackend{}, nil
	}
	client, err := gemini.NewClient(ctx, gemini.ConfigFrom(cfg))
	if err != nil {
		return nil, fmt.Errorf("AIクライアントの初期化に失敗しました: %w", err)
	}
	return client, nil
}

// initializeStore は StorePath が空ならメモリストア、そうでなければ SQLite ストアを開きます。
func initializeStore(ctx context.Context, st store.Store, cfg config.Config) (store.Store, error) {
	if st != nil {
		return st, nil
	}
	if cfg.StorePath == "" {
		return memstore.New(cfg.StoreQuotaBytes), nil
	}
	sq, err := sqlstore.Open(ctx, cfg.StorePath, cfg.StoreQuotaBytes)
	if err != nil {
		return nil, fmt.Errorf("ストアを開けませんでした: %w", err)
	}
	return sq, nil
}

func closeStore(st store.Store) {
	if c, ok := st.(store.Closer); ok {
		if err := c.Close(); err != nil {
			slog.Warn("ストアのクローズに失敗しました", "error", err)
		}
	}
}

// observe はプロンプト、漫画、キャラクターの変更をドラフト保存へ流します。
// 漫画や表示ページが変わったときは読み上げを止めます。
func (m *Manager) observe() {
	m.session.OnChange(func(ch session.Change) {
		if ch.Has(session.FieldComic) || ch.Has(session.FieldCurrentPage) {
			m.narrator.Stop()
		}
		if ch.Has(session.FieldPrompt) || ch.Has(session.FieldComic) {
			m.scheduleDraft(ch.Snapshot.Prompt, ch.Snapshot.Comic, m.characters.List())
		}
	})
	m.characters.OnChange(func(chars []domain.Character) {
		m.scheduleDraft(m.session.Prompt(), m.session.Comic(), chars)
	})
}

func (m *Manager) scheduleDraft(prompt string, comic *domain.Comic, chars []domain.Character) {
	m.persistence.OnFieldsChanged(persistence.NewDraftSnapshot(prompt, comic, chars))
}

// --- Accessors ---

func (m *Manager) Config() config.Config                 { return m.cfg }
func (m *Manager) Bus() *events.Bus                      { return m.bus }
func (m *Manager) Session() *session.Session             { return m.session }
func (m *Manager) Characters() *character.Registry       { return m.characters }
func (m *Manager) Persistence() *persistence.Manager     { return m.persistence }
func (m *Manager) Orchestrator() *generator.Orchestrator { return m.orchestrator }
func (m *Manager) Editor() *editor.Pipeline              { return m.editor }
func (m *Manager) Faces() *character.FaceAnalyzer        { return m.faces }
func (m *Manager) Narrator() *voice.Narrator             { return m.narrator }
func (m *Manager) Dictation() *voice.Dictation           { return m.dictation }
func (m *Manager) Exporter() *export.Exporter            { return m.exporter }

// Close は音声入力と読み上げを止め、予約中のドラフトを書き出してからストアを閉じます。
func (m *Manager) Close(ctx context.Context) error {
	m.dictation.Stop()
	m.narrator.Stop()
	m.persistence.Flush(ctx)
	m.persistence.Close()
	if c, ok := m.store.(store.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("ストアのクローズに失敗しました: %w", err)
		}
	}
	return nil
}

// isNotFound はドラフトが存在しないことを表すエラーかどうかを返します。
func isNotFound(err error) bool {
	return errors.Is(err, persistence.ErrDraftNotFound)
}
