package export

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	imagedom "github.com/shouni/gemini-image-kit/pkg/domain"

	"github.com/shouni/go-comic-kit/pkg/domain"
	"github.com/shouni/go-comic-kit/pkg/events"
)

func solidPNG(t *testing.T, w, h int, c color.NRGBA) *imagedom.ImageResponse {
	t.Helper()
	m := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, m); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return &imagedom.ImageResponse{Data: buf.Bytes(), MimeType: "image/png"}
}

func decodePNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	m, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	return m
}

func TestApplyContrast(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 200, G: 128, B: 50, A: 255})

	t.Run("100%では変化しないこと", func(t *testing.T) {
		got := ApplyContrast(src, 100).NRGBAAt(0, 0)
		if got != (color.NRGBA{R: 200, G: 128, B: 50, A: 255}) {
			t.Errorf("色が変わっています: %+v", got)
		}
	})

	t.Run("200%では中間から離れること", func(t *testing.T) {
		got := ApplyContrast(src, 200).NRGBAAt(0, 0)
		if got.R != 255 || got.B != 0 || got.A != 255 {
			t.Errorf("色が期待と異なります: %+v", got)
		}
	})

	t.Run("0%では灰色になること", func(t *testing.T) {
		got := ApplyContrast(src, 0).NRGBAAt(0, 0)
		if got.R != 128 || got.G != 128 || got.B != 128 {
			t.Errorf("色が期待と異なります: %+v", got)
		}
	})
}

func TestStitch(t *testing.T) {
	red := color.NRGBA{R: 255, A: 255}
	blue := color.NRGBA{B: 255, A: 255}
	data, err := Stitch([]*imagedom.ImageResponse{solidPNG(t, 4, 2, red), solidPNG(t, 2, 3, blue)})
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	m := decodePNG(t, data)
	if b := m.Bounds(); b.Dx() != 4 || b.Dy() != 5 {
		t.Fatalf("大きさが期待と異なります: %v", b)
	}
	if c := color.NRGBAModel.Convert(m.At(0, 2)).(color.NRGBA); c != blue {
		t.Errorf("2枚目が左端に描かれていません: %+v", c)
	}
	if _, _, _, a := m.At(3, 4).RGBA(); a != 0 {
		t.Errorf("余白が透明ではありません")
	}
}

func comicOf(t *testing.T, images ...*imagedom.ImageResponse) *domain.Comic {
	t.Helper()
	c, err := domain.NewComic(images, nil)
	if err != nil {
		t.Fatalf("NewComic: %v", err)
	}
	return c
}

func TestExporter(t *testing.T) {
	ctx := context.Background()
	red := color.NRGBA{R: 255, A: 255}

	t.Run("1ページでは縦読み画像を作らないこと", func(t *testing.T) {
		e := NewExporter(100, nil)
		_, err := e.Webcomic(ctx, comicOf(t, solidPNG(t, 2, 2, red)))
		if !errors.Is(err, ErrNotEnoughPages) {
			t.Fatalf("ErrNotEnoughPages を期待しましたが %v でした", err)
		}
	})

	t.Run("縦読み画像の開始と完了を通知すること", func(t *testing.T) {
		rec := &events.Recorder{}
		e := NewExporter(100, rec)
		if _, err := e.Webcomic(ctx, comicOf(t, solidPNG(t, 2, 2, red), solidPNG(t, 2, 2, red))); err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		got := rec.Messages(events.KindNotice)
		if len(got) != 2 || got[0] != MsgWebcomicStarted || got[1] != MsgWebcomicDone {
			t.Errorf("通知が期待と異なります: %v", got)
		}
	})

	t.Run("壊れた画像はページ書き出しの失敗になること", func(t *testing.T) {
		rec := &events.Recorder{}
		e := NewExporter(100, rec)
		broken := &imagedom.ImageResponse{Data: []byte("not an image"), MimeType: "image/png"}
		if _, _, err := e.Page(ctx, comicOf(t, broken), 0); domain.UserMessage(err) != MsgPageFailed {
			t.Fatalf("メッセージが期待と異なります: %v", err)
		}
		if len(rec.Messages(events.KindError)) != 1 {
			t.Error("エラーイベントが出ていません")
		}
	})

	t.Run("ページのファイル名は1始まり", func(t *testing.T) {
		e := NewExporter(100, nil)
		_, name, err := e.Page(ctx, comicOf(t, solidPNG(t, 1, 1, red), solidPNG(t, 1, 1, red)), 1)
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if name != "Ecomatrix_Comic_Page_2.png" {
			t.Errorf("ファイル名が期待と異なります: %s", name)
		}
	})

	t.Run("PDFを書き出せること", func(t *testing.T) {
		e := NewExporter(120, nil)
		data, err := e.PDF(ctx, comicOf(t, solidPNG(t, 8, 6, red), solidPNG(t, 6, 8, red)), "Test")
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if !bytes.HasPrefix(data, []byte("%PDF-")) {
			t.Errorf("PDF ではありません")
		}
	})

	t.Run("Publishは全ファイルを書き出し、古いページ画像を消すこと", func(t *testing.T) {
		dir := t.TempDir()
		stale := filepath.Join(dir, "Ecomatrix_Comic_Page_9.png")
		if err := os.WriteFile(stale, []byte("old"), 0o644); err != nil {
			t.Fatal(err)
		}

		e := NewExporter(100, nil)
		res, err := e.Publish(ctx, comicOf(t, solidPNG(t, 2, 2, red), solidPNG(t, 2, 2, red)), dir, "Test")
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if len(res.PagePaths) != 2 || res.WebcomicPath == "" || res.PDFPath == "" {
			t.Fatalf("結果が期待と異なります: %+v", res)
		}
		for _, p := range append(res.PagePaths, res.WebcomicPath, res.PDFPath) {
			if st, err := os.Stat(p); err != nil || st.Size() == 0 {
				t.Errorf("ファイルが書き出されていません: %s (%v)", p, err)
			}
		}
		if _, err := os.Stat(stale); !os.IsNotExist(err) {
			t.Error("古いページ画像が残っています")
		}
	})
}
