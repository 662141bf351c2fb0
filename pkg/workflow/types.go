package workflow

import (
	"github.com/shouni/go-comic-kit/pkg/backend"
	"github.com/shouni/go-comic-kit/pkg/config"
	"github.com/shouni/go-comic-kit/pkg/events"
	"github.com/shouni/go-comic-kit/pkg/generator"
	"github.com/shouni/go-comic-kit/pkg/persistence"
	"github.com/shouni/go-comic-kit/pkg/store"
	"github.com/shouni/go-comic-kit/pkg/voice"
)

// ManagerArgs は Manager の初期化に必要な依存です。nil の項目は Config から作られます。
type ManagerArgs struct {
	Config config.Config

	// Backend が nil の場合は Config.GeminiAPIKey で genai クライアントを作ります。
	Backend backend.Backend
	// Store が nil の場合、Config.StorePath が空ならメモリ、そうでなければ sqlite を使います。
	Store store.Store

	Synthesizer voice.Synthesizer
	Recognizer  voice.Recognizer

	// OnEvent はすべてのイベントを受け取ります。
	OnEvent func(events.Event)

	// テスト用
	Scheduler persistence.Scheduler
	Sleep     generator.SleepFunc
}

// GenerateOptions は生成時の追加設定です。
type GenerateOptions struct {
	Style       generator.StyleOptions
	ScienceFact bool
}
