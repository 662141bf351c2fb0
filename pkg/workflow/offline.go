package workflow

import (
	"context"
	"errors"

	imagedom "github.com/shouni/gemini-image-kit/pkg/domain"

	"github.com/shouni/go-comic-kit/pkg/backend"
)

// ErrNoAPIKey は API キーなしで生成 AI を呼び出そうとした場合に返されます。
var ErrNoAPIKey = errors.New("GEMINI_API_KEY が設定されていません")

// offlineBackend は API キーがない場合に使います。履歴やドラフト、書き出しだけの操作はそのまま動きます。
type offlineBackend struct{}

var _ backend.Backend = offlineBackend{}

func (offlineBackend) GenerateImage(context.Context, imagedom.ImageGenerationRequest) (*imagedom.ImageResponse, error) {
	return nil, ErrNoAPIKey
}

func (offlineBackend) EditImage(context.Context, *imagedom.ImageResponse, string) (*backend.EditResult, error) {
	return nil, ErrNoAPIKey
}

func (offlineBackend) GenerateJSON(context.Context, string, []backend.FieldSpec) (string, error) {
	return "", ErrNoAPIKey
}

func (offlineBackend) GenerateText(context.Context, string) (string, error) {
	return "", ErrNoAPIKey
}

func (offlineBackend) DescribeImage(context.Context, *imagedom.ImageResponse, string) (string, error) {
	return "", ErrNoAPIKey
}
