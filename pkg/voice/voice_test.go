package voice

import (
	"context"
	"errors"
	"sync"
	"testing"

	imagedom "github.com/shouni/gemini-image-kit/pkg/domain"

	"github.com/shouni/go-comic-kit/pkg/domain"
	"github.com/shouni/go-comic-kit/pkg/events"
)

type blockingSynth struct {
	mu     sync.Mutex
	spoken []string
	start  chan struct{}
	err    error
}

func (s *blockingSynth) Speak(ctx context.Context, text string) error {
	s.mu.Lock()
	s.spoken = append(s.spoken, text)
	s.mu.Unlock()
	if s.start != nil {
		s.start <- struct{}{}
		<-ctx.Done()
		return ctx.Err()
	}
	return s.err
}

func storyComic(t *testing.T) *domain.Comic {
	t.Helper()
	img := func(b byte) *imagedom.ImageResponse { return &imagedom.ImageResponse{Data: []byte{b}, MimeType: "image/png"} }
	c, err := domain.NewComic([]*imagedom.ImageResponse{img(1), img(2)}, []string{"first", "second"})
	if err != nil {
		t.Fatalf("NewComic: %v", err)
	}
	return c
}

func TestNarrator(t *testing.T) {
	ctx := context.Background()

	t.Run("読み上げが使えない場合は通知して CapabilityUnavailable", func(t *testing.T) {
		rec := &events.Recorder{}
		n := NewNarrator(nil, rec)
		_, err := n.Toggle(ctx, storyComic(t), 0)
		var opErr *domain.OperationError
		if !errors.As(err, &opErr) || opErr.Kind != domain.KindCapabilityUnavailable {
			t.Fatalf("CapabilityUnavailable を期待しましたが %v でした", err)
		}
		if got := rec.Messages(events.KindNotice); len(got) != 1 || got[0] != MsgNarrationUnsupported {
			t.Errorf("通知が期待と異なります: %v", got)
		}
	})

	t.Run("表示中ページのナレーションを再生し、再度の呼び出しで止まること", func(t *testing.T) {
		s := &blockingSynth{start: make(chan struct{})}
		n := NewNarrator(s, nil)

		started, err := n.Toggle(ctx, storyComic(t), 1)
		if err != nil || !started {
			t.Fatalf("再生が始まりません: %v", err)
		}
		<-s.start
		if !n.Narrating() {
			t.Fatal("再生中になっていません")
		}

		started, _ = n.Toggle(ctx, storyComic(t), 1)
		if started || n.Narrating() {
			t.Error("停止していません")
		}
		if len(s.spoken) != 1 || s.spoken[0] != "second" {
			t.Errorf("読み上げ内容が期待と異なります: %v", s.spoken)
		}
	})

	t.Run("ナレーションがない漫画では何もしないこと", func(t *testing.T) {
		s := &blockingSynth{}
		n := NewNarrator(s, nil)
		c, _ := domain.NewComic([]*imagedom.ImageResponse{{Data: []byte{1}, MimeType: "image/png"}}, nil)
		if started, err := n.Toggle(ctx, c, 0); started || err != nil {
			t.Errorf("再生が始まっています: %v %v", started, err)
		}
		if started, _ := n.Toggle(ctx, nil, 0); started {
			t.Error("nil の漫画で再生が始まっています")
		}
	})

	t.Run("失敗は通知されること", func(t *testing.T) {
		rec := &events.Recorder{}
		n := NewNarrator(&blockingSynth{err: errors.New("audio-busy")}, rec)
		if _, err := n.Toggle(ctx, storyComic(t), 0); err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		n.Wait()
		if got := rec.Messages(events.KindNotice); len(got) != 1 || got[0] != "Narration failed: audio-busy" {
			t.Errorf("通知が期待と異なります: %v", got)
		}
		if n.Narrating() {
			t.Error("終了後も再生中のままです")
		}
	})
}

type fakeTarget struct{ prompt string }

func (f *fakeTarget) Prompt() string     { return f.prompt }
func (f *fakeTarget) SetPrompt(p string) { f.prompt = p }

type fakeRecognizer struct {
	transcript string
	err        error
	wait       bool
	started    chan struct{}
}

func (r *fakeRecognizer) Listen(ctx context.Context) (string, error) {
	if r.wait {
		r.started <- struct{}{}
		<-ctx.Done()
		return "", ctx.Err()
	}
	return r.transcript, r.err
}

func TestDictation(t *testing.T) {
	ctx := context.Background()

	t.Run("既存のプロンプトに空白を挟んで追記すること", func(t *testing.T) {
		target := &fakeTarget{prompt: "Kids fix the ocean  "}
		d := NewDictation(&fakeRecognizer{transcript: "with robots"}, target, nil)
		got, err := d.Capture(ctx)
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if got != "Kids fix the ocean with robots" || target.prompt != got {
			t.Errorf("追記結果が期待と異なります: %q", target.prompt)
		}
	})

	t.Run("音声入力が使えない場合はエラー", func(t *testing.T) {
		rec := &events.Recorder{}
		d := NewDictation(nil, &fakeTarget{}, rec)
		if _, err := d.Capture(ctx); domain.UserMessage(err) != MsgRecognitionUnsupported {
			t.Errorf("メッセージが期待と異なります: %v", err)
		}
		if got := rec.Messages(events.KindError); len(got) != 1 {
			t.Errorf("エラーイベントが期待と異なります: %v", got)
		}
	})

	t.Run("認識エラーはメッセージに含めること", func(t *testing.T) {
		target := &fakeTarget{prompt: "keep"}
		d := NewDictation(&fakeRecognizer{err: errors.New("no-speech")}, target, nil)
		if _, err := d.Capture(ctx); domain.UserMessage(err) != "Voice input error: no-speech" {
			t.Errorf("メッセージが期待と異なります: %v", err)
		}
		if target.prompt != "keep" {
			t.Error("プロンプトが変更されています")
		}
	})

	t.Run("聞き取り中の呼び出しで停止すること", func(t *testing.T) {
		r := &fakeRecognizer{wait: true, started: make(chan struct{})}
		d := NewDictation(r, &fakeTarget{prompt: "p"}, nil)

		done := make(chan error, 1)
		go func() {
			_, err := d.Capture(ctx)
			done <- err
		}()
		<-r.started
		if !d.Listening() {
			t.Fatal("聞き取り中になっていません")
		}
		if _, err := d.Capture(ctx); err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if err := <-done; err != nil {
			t.Errorf("停止時にエラーが返りました: %v", err)
		}
	})
}

func TestAppendTranscript(t *testing.T) {
	tests := []struct{ prev, transcript, want string }{
		{"", "hello", "hello"},
		{"a", "b", "a b"},
		{"  a  ", "b ", "a b"},
		{"", "  spaced  ", "spaced"},
	}
	for _, tt := range tests {
		if got := AppendTranscript(tt.prev, tt.transcript); got != tt.want {
			t.Errorf("AppendTranscript(%q, %q) = %q, want %q", tt.prev, tt.transcript, got, tt.want)
		}
	}
}
