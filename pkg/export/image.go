package export

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"

	imagedom "github.com/shouni/gemini-image-kit/pkg/domain"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// decode は PNG、JPEG、WEBP の画像を読み込みます。
func decode(img *imagedom.ImageResponse) (image.Image, error) {
	if img == nil || len(img.Data) == 0 {
		return nil, fmt.Errorf("画像が空です")
	}
	m, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return nil, fmt.Errorf("画像の読み込みに失敗しました (%s): %w", img.MimeType, err)
	}
	return m, nil
}

func encodePNG(m image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, m); err != nil {
		return nil, fmt.Errorf("PNG への変換に失敗しました: %w", err)
	}
	return buf.Bytes(), nil
}

// ApplyContrast はコントラストを percent パーセントに調整した画像を返します。100 で元と同じです。
// 各チャンネルを (v - 0.5) * percent/100 + 0.5 で変換し、0〜1 に収めます。
func ApplyContrast(src image.Image, percent int) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	if percent == 100 {
		return dst
	}
	if percent < 0 {
		percent = 0
	}

	var lut [256]uint8
	factor := float64(percent) / 100
	for i := range lut {
		v := (float64(i)/255-0.5)*factor + 0.5
		switch {
		case v < 0:
			v = 0
		case v > 1:
			v = 1
		}
		lut[i] = uint8(v*255 + 0.5)
	}

	for i := 0; i+3 < len(dst.Pix); i += 4 {
		dst.Pix[i] = lut[dst.Pix[i]]
		dst.Pix[i+1] = lut[dst.Pix[i+1]]
		dst.Pix[i+2] = lut[dst.Pix[i+2]]
	}
	return dst
}

// ProcessPage はページ画像にコントラストを適用し、PNG として返します。
func ProcessPage(img *imagedom.ImageResponse, contrast int) ([]byte, error) {
	m, err := decode(img)
	if err != nil {
		return nil, err
	}
	return encodePNG(ApplyContrast(m, contrast))
}

// Stitch は画像を上から順に縦へつなげます。幅は最大幅、高さは合計です。各画像は左端に揃えます。
func Stitch(images []*imagedom.ImageResponse) ([]byte, error) {
	decoded := make([]image.Image, 0, len(images))
	width, height := 0, 0
	for i, img := range images {
		m, err := decode(img)
		if err != nil {
			return nil, fmt.Errorf("ページ %d: %w", i+1, err)
		}
		b := m.Bounds()
		width = max(width, b.Dx())
		height += b.Dy()
		decoded = append(decoded, m)
	}

	canvas := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)

	y := 0
	for _, m := range decoded {
		b := m.Bounds()
		draw.Draw(canvas, image.Rect(0, y, b.Dx(), y+b.Dy()), m, b.Min, draw.Over)
		y += b.Dy()
	}
	return encodePNG(canvas)
}
