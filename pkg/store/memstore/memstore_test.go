package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/shouni/go-comic-kit/pkg/store"
)

func TestStore(t *testing.T) {
	ctx := context.Background()

	t.Run("保存した値を取得・削除できること", func(t *testing.T) {
		s := New(0)
		if _, ok, _ := s.Get(ctx, "k"); ok {
			t.Fatal("空のストアに値があります")
		}
		if err := s.Set(ctx, "k", "v"); err != nil {
			t.Fatalf("Set失敗: %v", err)
		}
		if v, ok, err := s.Get(ctx, "k"); err != nil || !ok || v != "v" {
			t.Errorf("Get結果が期待と異なります: %q %v %v", v, ok, err)
		}
		if err := s.Remove(ctx, "k"); err != nil {
			t.Fatalf("Remove失敗: %v", err)
		}
		if _, ok, _ := s.Get(ctx, "k"); ok {
			t.Error("削除後も値が残っています")
		}
		if s.Used() != 0 {
			t.Errorf("使用量が0に戻っていません: %d", s.Used())
		}
	})

	t.Run("容量を超える書き込みはErrQuotaExceededになり既存値は残ること", func(t *testing.T) {
		s := New(10)
		if err := s.Set(ctx, "a", "1234"); err != nil {
			t.Fatalf("Set失敗: %v", err)
		}
		err := s.Set(ctx, "a", "1234567890")
		if !errors.Is(err, store.ErrQuotaExceeded) {
			t.Fatalf("ErrQuotaExceeded を期待しましたが %v でした", err)
		}
		if v, _, _ := s.Get(ctx, "a"); v != "1234" {
			t.Errorf("既存値が変わっています: %q", v)
		}
	})

	t.Run("同じキーの上書きは差分で計算されること", func(t *testing.T) {
		s := New(10)
		for i := 0; i < 5; i++ {
			if err := s.Set(ctx, "a", "123456789"); err != nil {
				t.Fatalf("%d回目のSet失敗: %v", i, err)
			}
		}
		if s.Used() != 10 {
			t.Errorf("使用量が期待と異なります: %d", s.Used())
		}
	})
}
