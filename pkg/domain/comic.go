package domain

import (
	"errors"
	"fmt"

	imagedom "github.com/shouni/gemini-image-kit/pkg/domain"
)

var (
	// ErrEmptyComic はページを持たない漫画を作ろうとした場合に返されます。
	ErrEmptyComic = errors.New("漫画には1ページ以上が必要です")
	// ErrNarrationMismatch はナレーションの数がページ数と一致しない場合に返されます。
	ErrNarrationMismatch = errors.New("ナレーションの数がページ数と一致しません")
	// ErrPageOutOfRange は存在しないページを指定した場合に返されます。
	ErrPageOutOfRange = errors.New("ページ番号が範囲外です")
)

// Page は物理的な1枚の画像を表します。Index は Comic 内の位置と一致します。
type Page struct {
	Index int
	Image *imagedom.ImageResponse
}

// Comic は生成済みの漫画です。生成後は WithPage による差し替え以外で変更しません。
type Comic struct {
	Pages     []Page
	Narration []string // ストーリーモードのみ。Pages と同じ長さ
}

// NewComic は画像とナレーションから Comic を組み立てます。
// narration が nil の場合はナレーションなしの漫画になります。
func NewComic(images []*imagedom.ImageResponse, narration []string) (*Comic, error) {
	if len(images) == 0 {
		return nil, ErrEmptyComic
	}
	if narration != nil && len(narration) != len(images) {
		return nil, fmt.Errorf("%w: pages=%d narration=%d", ErrNarrationMismatch, len(images), len(narration))
	}

	pages := make([]Page, len(images))
	for i, img := range images {
		if img == nil || len(img.Data) == 0 {
			return nil, fmt.Errorf("ページ %d の画像が空です", i+1)
		}
		pages[i] = Page{Index: i, Image: img}
	}

	var n []string
	if narration != nil {
		n = make([]string, len(narration))
		copy(n, narration)
	}
	return &Comic{Pages: pages, Narration: n}, nil
}

// PageCount はページ数を返します。nil の場合は 0 です。
func (c *Comic) PageCount() int {
	if c == nil {
		return 0
	}
	return len(c.Pages)
}

// IsEmpty はページを1枚も持たない場合に true を返します。
func (c *Comic) IsEmpty() bool {
	return c.PageCount() == 0
}

// HasNarration はナレーション付きかどうかを返します。
func (c *Comic) HasNarration() bool {
	return c != nil && len(c.Narration) > 0
}

// Page は指定位置のページを返します。
func (c *Comic) Page(i int) (Page, error) {
	if i < 0 || i >= c.PageCount() {
		return Page{}, fmt.Errorf("%w: %d", ErrPageOutOfRange, i)
	}
	return c.Pages[i], nil
}

// NarrationAt は指定ページのナレーションを返します。
func (c *Comic) NarrationAt(i int) (string, bool) {
	if !c.HasNarration() || i < 0 || i >= len(c.Narration) {
		return "", false
	}
	return c.Narration[i], true
}

// Images はページ順の画像一覧を返します。
func (c *Comic) Images() []*imagedom.ImageResponse {
	if c == nil {
		return nil
	}
	images := make([]*imagedom.ImageResponse, len(c.Pages))
	for i, p := range c.Pages {
		images[i] = p.Image
	}
	return images
}

// WithPage は i 番目のページだけを差し替えた新しい Comic を返します。
// 他のページの画像は共有され、受け取った Comic 自体は変更しません。
func (c *Comic) WithPage(i int, img *imagedom.ImageResponse) (*Comic, error) {
	if i < 0 || i >= c.PageCount() {
		return nil, fmt.Errorf("%w: %d", ErrPageOutOfRange, i)
	}
	if img == nil || len(img.Data) == 0 {
		return nil, fmt.Errorf("差し替える画像が空です")
	}

	pages := make([]Page, len(c.Pages))
	copy(pages, c.Pages)
	pages[i] = Page{Index: i, Image: img}

	var n []string
	if c.Narration != nil {
		n = make([]string, len(c.Narration))
		copy(n, c.Narration)
	}
	return &Comic{Pages: pages, Narration: n}, nil
}
