package events

import (
	"context"
	"testing"

	"github.com/shouni/go-comic-kit/pkg/domain"
)

func TestBus(t *testing.T) {
	t.Run("購読者全員に配信され、解除後は届かないこと", func(t *testing.T) {
		bus := NewBus()
		var a, b []string
		unsubA := bus.Subscribe(func(ev Event) { a = append(a, ev.Message) })
		bus.Subscribe(func(ev Event) { b = append(b, ev.Message) })

		bus.Emit(context.Background(), Notice(domain.OpDraft, "first"))
		unsubA()
		bus.Emit(context.Background(), Notice(domain.OpDraft, "second"))

		if len(a) != 1 || a[0] != "first" {
			t.Errorf("購読者Aの受信内容が期待と異なります: %v", a)
		}
		if len(b) != 2 {
			t.Errorf("購読者Bは2件受信するはずです: %v", b)
		}
	})
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	r.Emit(context.Background(), Progress(domain.OpGenerateStory, "1/4: Generating story..."))
	r.Emit(context.Background(), Failure(domain.OpGenerateStory, domain.Classify(domain.OpGenerateStory, context.DeadlineExceeded)))

	if got := r.Messages(KindProgress); len(got) != 1 || got[0] != "1/4: Generating story..." {
		t.Errorf("進捗メッセージが期待と異なります: %v", got)
	}
	errs := r.Events()
	if errs[1].ErrorKind != "generation_failed" {
		t.Errorf("エラー種別が期待と異なります: %s", errs[1].ErrorKind)
	}
}
