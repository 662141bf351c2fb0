package export

import (
	"bytes"
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
	imagedom "github.com/shouni/gemini-image-kit/pkg/domain"
)

// PDFOptions は PDF 書き出しの設定です。
type PDFOptions struct {
	Title    string
	Contrast int
}

// WritePDF は1ページにつき1画像の PDF を w に書き出します。
// ページの大きさは画像のピクセル数をそのままポイントとして扱います。
func WritePDF(w io.Writer, images []*imagedom.ImageResponse, opt PDFOptions) error {
	if len(images) == 0 {
		return fmt.Errorf("書き出すページがありません")
	}
	contrast := opt.Contrast
	if contrast == 0 {
		contrast = 100
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{UnitStr: "pt"})
	if opt.Title != "" {
		pdf.SetTitle(opt.Title, true)
	}
	pdf.SetAuthor("go-comic-kit", false)

	for i, img := range images {
		m, err := decode(img)
		if err != nil {
			return fmt.Errorf("ページ %d: %w", i+1, err)
		}
		data, err := encodePNG(ApplyContrast(m, contrast))
		if err != nil {
			return fmt.Errorf("ページ %d: %w", i+1, err)
		}

		b := m.Bounds()
		wd, ht := float64(b.Dx()), float64(b.Dy())
		name := fmt.Sprintf("page-%d", i+1)
		opts := gofpdf.ImageOptions{ImageType: "PNG"}

		pdf.AddPageFormat("P", gofpdf.SizeType{Wd: wd, Ht: ht})
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
		pdf.ImageOptions(name, 0, 0, wd, ht, false, opts, 0, "")
		if err := pdf.Error(); err != nil {
			return fmt.Errorf("ページ %d の PDF 化に失敗しました: %w", i+1, err)
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
