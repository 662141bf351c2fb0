package generator

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	imagedom "github.com/shouni/gemini-image-kit/pkg/domain"

	"github.com/shouni/go-comic-kit/pkg/backend"
	"github.com/shouni/go-comic-kit/pkg/domain"
	"github.com/shouni/go-comic-kit/pkg/events"
	"github.com/shouni/go-comic-kit/pkg/session"
)

type fakeBackend struct {
	mu          sync.Mutex
	imageReqs   []imagedom.ImageGenerationRequest
	imageFailAt int // 1 始まり。0 の場合は失敗しない
	imageErr    error
	started     chan struct{}
	block       chan struct{}

	editResult *backend.EditResult
	editErr    error
	editCalls  int

	jsonText string
	jsonErr  error
	text     string
	textErr  error
}

func (f *fakeBackend) GenerateImage(ctx context.Context, req imagedom.ImageGenerationRequest) (*imagedom.ImageResponse, error) {
	f.mu.Lock()
	f.imageReqs = append(f.imageReqs, req)
	n := len(f.imageReqs)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	if f.imageFailAt == n {
		return nil, f.imageErr
	}
	return &imagedom.ImageResponse{Data: []byte(fmt.Sprintf("img-%d", n)), MimeType: "image/png"}, nil
}

func (f *fakeBackend) EditImage(ctx context.Context, src *imagedom.ImageResponse, instruction string) (*backend.EditResult, error) {
	f.mu.Lock()
	f.editCalls++
	f.mu.Unlock()
	return f.editResult, f.editErr
}

func (f *fakeBackend) GenerateJSON(ctx context.Context, prompt string, fields []backend.FieldSpec) (string, error) {
	return f.jsonText, f.jsonErr
}

func (f *fakeBackend) GenerateText(ctx context.Context, prompt string) (string, error) {
	return f.text, f.textErr
}

type fakeHistory struct {
	mu      sync.Mutex
	prompts []string
}

func (h *fakeHistory) RecordSuccess(_ context.Context, prompt string) {
	h.mu.Lock()
	h.prompts = append(h.prompts, prompt)
	h.mu.Unlock()
}

type harness struct {
	orch   *Orchestrator
	be     *fakeBackend
	sess   *session.Session
	hist   *fakeHistory
	rec    *events.Recorder
	sleeps []time.Duration
}

func newHarness(t *testing.T, be *fakeBackend) *harness {
	t.Helper()
	h := &harness{be: be, sess: session.New(), hist: &fakeHistory{}, rec: &events.Recorder{}}
	orch, err := NewOrchestrator(be, h.sess, h.hist,
		WithSink(h.rec),
		WithSleep(func(ctx context.Context, d time.Duration) error {
			h.sleeps = append(h.sleeps, d)
			return ctx.Err()
		}),
	)
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	h.orch = orch
	return h
}

const storyJSON = `{"page1":"Kids find a sick river.","page2":"They build a filter.","page3":"The river sparkles again."}`

func TestGenerateStrip(t *testing.T) {
	ctx := context.Background()

	t.Run("スタイルなしで1ページの漫画が反映されること", func(t *testing.T) {
		h := newHarness(t, &fakeBackend{})
		comic, err := h.orch.GenerateStrip(ctx, StripRequest{Prompt: "  kids plant trees  "})
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if comic.PageCount() != 1 || comic.HasNarration() {
			t.Fatalf("ページ構成が期待と異なります: %+v", comic)
		}
		if h.sess.Comic() != comic {
			t.Error("セッションに反映されていません")
		}
		if !reflect.DeepEqual(h.hist.prompts, []string{"kids plant trees"}) {
			t.Errorf("履歴が期待と異なります: %v", h.hist.prompts)
		}
		if h.be.imageReqs[0].AspectRatio != "16:9" {
			t.Errorf("アスペクト比が期待と異なります: %s", h.be.imageReqs[0].AspectRatio)
		}
		if h.be.editCalls != 0 {
			t.Errorf("編集が呼ばれています")
		}
		if got := h.rec.Messages(events.KindProgress); !reflect.DeepEqual(got, []string{LabelCreatingStrip}) {
			t.Errorf("進捗ラベルが期待と異なります: %v", got)
		}
	})

	t.Run("スタイル適用後の画像が使われること", func(t *testing.T) {
		styled := &imagedom.ImageResponse{Data: []byte("styled"), MimeType: "image/png"}
		h := newHarness(t, &fakeBackend{editResult: &backend.EditResult{Image: styled}})
		comic, err := h.orch.GenerateStrip(ctx, StripRequest{Prompt: "p", Style: DefaultStyle()})
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if string(comic.Pages[0].Image.Data) != "styled" {
			t.Errorf("スタイル適用後の画像ではありません")
		}
		if got := h.rec.Messages(events.KindProgress); !reflect.DeepEqual(got, []string{LabelCreatingStrip, LabelApplyingStyle}) {
			t.Errorf("進捗ラベルが期待と異なります: %v", got)
		}
	})

	t.Run("スタイル応答に画像がなければ元の画像で成功すること", func(t *testing.T) {
		h := newHarness(t, &fakeBackend{editResult: &backend.EditResult{Text: "no image"}})
		comic, err := h.orch.GenerateStrip(ctx, StripRequest{Prompt: "p", Style: DefaultStyle()})
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if string(comic.Pages[0].Image.Data) != "img-1" {
			t.Errorf("元の画像ではありません: %s", comic.Pages[0].Image.Data)
		}
		if got := h.rec.Messages(events.KindNotice); !reflect.DeepEqual(got, []string{MsgStyleFallback}) {
			t.Errorf("通知が期待と異なります: %v", got)
		}
	})

	t.Run("スタイル適用のエラーは全体の失敗になること", func(t *testing.T) {
		h := newHarness(t, &fakeBackend{editErr: errors.New("boom")})
		if _, err := h.orch.GenerateStrip(ctx, StripRequest{Prompt: "p", Style: DefaultStyle()}); domain.UserMessage(err) != domain.MsgStripFailed {
			t.Fatalf("失敗メッセージが期待と異なります: %v", err)
		}
		if h.sess.Comic() != nil || len(h.hist.prompts) != 0 {
			t.Error("失敗したのに反映されています")
		}
	})

	t.Run("レート制限は専用のメッセージになること", func(t *testing.T) {
		h := newHarness(t, &fakeBackend{imageFailAt: 1, imageErr: errors.New("RESOURCE_EXHAUSTED: Quota exceeded")})
		_, err := h.orch.GenerateStrip(ctx, StripRequest{Prompt: "p"})
		var opErr *domain.OperationError
		if !errors.As(err, &opErr) || opErr.Kind != domain.KindRateLimited {
			t.Fatalf("RateLimited を期待しましたが %v でした", err)
		}
		if got := h.rec.Messages(events.KindError); len(got) != 1 || got[0] != domain.MsgRateLimited {
			t.Errorf("エラーイベントが期待と異なります: %v", got)
		}
	})

	t.Run("空のプロンプトは検証エラー", func(t *testing.T) {
		h := newHarness(t, &fakeBackend{})
		_, err := h.orch.GenerateStrip(ctx, StripRequest{Prompt: "   "})
		var opErr *domain.OperationError
		if !errors.As(err, &opErr) || opErr.Kind != domain.KindValidation {
			t.Fatalf("検証エラーを期待しましたが %v でした", err)
		}
		if len(h.be.imageReqs) != 0 {
			t.Error("バックエンドが呼ばれています")
		}
	})
}

func TestGenerateStory(t *testing.T) {
	ctx := context.Background()

	t.Run("3ページとナレーションが順番に反映されること", func(t *testing.T) {
		h := newHarness(t, &fakeBackend{jsonText: storyJSON})
		comic, err := h.orch.GenerateStory(ctx, StoryRequest{Prompt: "clean river"})
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if comic.PageCount() != 3 {
			t.Fatalf("ページ数が3ではありません: %d", comic.PageCount())
		}
		wantNarr := []string{"Kids find a sick river.", "They build a filter.", "The river sparkles again."}
		if !reflect.DeepEqual(comic.Narration, wantNarr) {
			t.Errorf("ナレーションが期待と異なります: %v", comic.Narration)
		}
		for i, p := range comic.Pages {
			if string(p.Image.Data) != fmt.Sprintf("img-%d", i+1) {
				t.Errorf("ページ %d の順序が期待と異なります", i)
			}
		}
		for _, req := range h.be.imageReqs {
			if req.AspectRatio != "4:3" {
				t.Errorf("アスペクト比が期待と異なります: %s", req.AspectRatio)
			}
		}
		if !reflect.DeepEqual(h.sleeps, []time.Duration{5 * time.Second, 5 * time.Second, 5 * time.Second}) {
			t.Errorf("待機が期待と異なります: %v", h.sleeps)
		}
		wantLabels := []string{
			"1/4: Generating story...",
			"2/4: Generating page 1/3...",
			"3/4: Generating page 2/3...",
			"4/4: Generating page 3/3...",
		}
		if got := h.rec.Messages(events.KindProgress); !reflect.DeepEqual(got, wantLabels) {
			t.Errorf("進捗ラベルが期待と異なります: %v", got)
		}
		if !reflect.DeepEqual(h.hist.prompts, []string{"clean river"}) {
			t.Errorf("履歴が期待と異なります: %v", h.hist.prompts)
		}
	})

	t.Run("2ページ目で失敗した場合は以前の漫画のままであること", func(t *testing.T) {
		h := newHarness(t, &fakeBackend{jsonText: storyJSON, imageFailAt: 2, imageErr: errors.New("internal")})
		before, _ := domain.NewComic([]*imagedom.ImageResponse{{Data: []byte("old"), MimeType: "image/png"}}, nil)
		_ = h.sess.CommitComic(before)

		_, err := h.orch.GenerateStory(ctx, StoryRequest{Prompt: "p"})
		if domain.UserMessage(err) != domain.MsgStoryFailed {
			t.Fatalf("失敗メッセージが期待と異なります: %v", err)
		}
		if h.sess.Comic() != before {
			t.Error("漫画が変更されています")
		}
		if len(h.be.imageReqs) != 2 {
			t.Errorf("3ページ目が呼ばれています: %d", len(h.be.imageReqs))
		}
		if len(h.hist.prompts) != 0 {
			t.Error("履歴に記録されています")
		}
	})

	t.Run("物語のJSONが不完全な場合は画像生成を行わないこと", func(t *testing.T) {
		h := newHarness(t, &fakeBackend{jsonText: `{"page1":"a","page2":"b"}`})
		if _, err := h.orch.GenerateStory(ctx, StoryRequest{Prompt: "p"}); err == nil {
			t.Fatal("エラーを期待しました")
		}
		if len(h.be.imageReqs) != 0 {
			t.Error("画像生成が呼ばれています")
		}
	})

	t.Run("待機中にキャンセルされた場合は何も反映しないこと", func(t *testing.T) {
		h := newHarness(t, &fakeBackend{jsonText: storyJSON})
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := h.orch.GenerateStory(cctx, StoryRequest{Prompt: "p"}); !errors.Is(err, context.Canceled) {
			t.Fatalf("context.Canceled を期待しましたが %v でした", err)
		}
		if h.sess.Comic() != nil {
			t.Error("反映されています")
		}
	})
}

func TestSingleFlight(t *testing.T) {
	ctx := context.Background()
	be := &fakeBackend{jsonText: storyJSON, started: make(chan struct{}, 1), block: make(chan struct{})}
	h := newHarness(t, be)

	done := make(chan error, 1)
	go func() {
		_, err := h.orch.GenerateStrip(ctx, StripRequest{Prompt: "first"})
		done <- err
	}()
	<-be.started

	if _, err := h.orch.GenerateStory(ctx, StoryRequest{Prompt: "second"}); !errors.Is(err, session.ErrBusy) {
		t.Errorf("ErrBusy を期待しましたが %v でした", err)
	}
	if _, err := h.orch.SuggestPrompt(ctx); !errors.Is(err, session.ErrBusy) {
		t.Errorf("提案も ErrBusy を期待しましたが %v でした", err)
	}
	if len(h.rec.Messages(events.KindError)) != 0 {
		t.Error("ErrBusy でエラーイベントが出ています")
	}

	close(be.block)
	if err := <-done; err != nil {
		t.Fatalf("最初の生成が失敗しました: %v", err)
	}
	if !reflect.DeepEqual(h.hist.prompts, []string{"first"}) {
		t.Errorf("履歴が期待と異なります: %v", h.hist.prompts)
	}
}

func TestSuggestPrompt(t *testing.T) {
	h := newHarness(t, &fakeBackend{text: "  \"Kids turn a landfill into a park.\"\n"})
	got, err := h.orch.SuggestPrompt(context.Background())
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if got != "Kids turn a landfill into a park." || h.sess.Prompt() != got {
		t.Errorf("提案が期待と異なります: %q / %q", got, h.sess.Prompt())
	}

	if evs := h.rec.Events(); len(evs) == 0 || evs[len(evs)-1].Kind != events.KindIdle {
		t.Errorf("最後のイベントが idle ではありません: %+v", evs)
	}

	t.Run("失敗しても最後に idle を通知すること", func(t *testing.T) {
		h := newHarness(t, &fakeBackend{textErr: errors.New("down")})
		if _, err := h.orch.SuggestPrompt(context.Background()); domain.UserMessage(err) != domain.MsgSuggestFailed {
			t.Errorf("失敗メッセージが期待と異なります: %v", err)
		}
		evs := h.rec.Events()
		if len(evs) < 2 || evs[len(evs)-2].Kind != events.KindError || evs[len(evs)-1].Kind != events.KindIdle {
			t.Errorf("エラーの後に idle が通知されていません: %+v", evs)
		}
		if evs[len(evs)-1].Op != domain.OpSuggestPrompt {
			t.Errorf("idle の操作が期待と異なります: %s", evs[len(evs)-1].Op)
		}
	})
}

func TestParseStoryParts(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "そのままのJSON", raw: storyJSON},
		{name: "コードブロック", raw: "```json\n" + storyJSON + "\n```"},
		{name: "前後に文章がある", raw: "Here is the story:\n" + storyJSON + "\nEnjoy!"},
		{name: "フィールド不足", raw: `{"page1":"a","page2":"b"}`, wantErr: true},
		{name: "JSONではない", raw: "no json here", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts, err := parseStoryParts(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr = %v", err, tt.wantErr)
			}
			if !tt.wantErr && len(parts) != 3 {
				t.Errorf("3要素ではありません: %v", parts)
			}
		})
	}
}
