// Package backend は生成 AI バックエンドとの契約を定義します。
package backend

import (
	"context"

	imagedom "github.com/shouni/gemini-image-kit/pkg/domain"
)

// ImageGenerator はテキストから画像を1枚生成します。結果が空の場合はエラーを返します。
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req imagedom.ImageGenerationRequest) (*imagedom.ImageResponse, error)
}

// EditResult は画像編集の応答です。Image が nil の場合、応答に画像が含まれていませんでした。
type EditResult struct {
	Image *imagedom.ImageResponse
	Text  string
}

// ImageEditor は画像と指示文から新しい画像を生成します。
type ImageEditor interface {
	EditImage(ctx context.Context, src *imagedom.ImageResponse, instruction string) (*EditResult, error)
}

// FieldSpec は構造化出力で必須とする文字列フィールドです。
type FieldSpec struct {
	Name        string
	Description string
}

// StructuredTextGenerator は指定フィールドを持つ JSON オブジェクトを生成し、応答テキストをそのまま返します。
type StructuredTextGenerator interface {
	GenerateJSON(ctx context.Context, prompt string, fields []FieldSpec) (string, error)
}

// TextGenerator は自由形式のテキストを生成します。
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// ImageDescriber は画像の内容を指示に従って文章で説明します。
type ImageDescriber interface {
	DescribeImage(ctx context.Context, img *imagedom.ImageResponse, instruction string) (string, error)
}

// Backend はすべての機能を備えたバックエンドです。
type Backend interface {
	ImageGenerator
	ImageEditor
	StructuredTextGenerator
	TextGenerator
	ImageDescriber
}
