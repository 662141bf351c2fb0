package character

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	imagedom "github.com/shouni/gemini-image-kit/pkg/domain"
	"golang.org/x/sync/singleflight"

	"github.com/shouni/go-comic-kit/pkg/backend"
	"github.com/shouni/go-comic-kit/pkg/config"
	"github.com/shouni/go-comic-kit/pkg/domain"
	"github.com/shouni/go-comic-kit/pkg/events"
)

const (
	defaultDescriptionTTL = 1 * time.Hour
	cacheCleanupInterval  = 10 * time.Minute
)

const faceAnalysisPrompt = "Analyze the person in this image and create a concise, visual description for a comic book character. Focus on key facial features, hair style and color, eye color, and any distinct characteristics like glasses or facial hair. Example: 'A character with sharp blue eyes, a strong jawline, short, wavy brown hair, and a confident smile.'"

// 通知メッセージ
const (
	MsgAnalyzing     = "Analyzing image to create character description..."
	MsgAnalyzed      = "AI description generated and added to Appearance!"
	MsgImageTooLarge = "Please upload an image smaller than 4MB."
	MsgImageType     = "Please upload a PNG, JPEG, or WEBP image."
)

// FaceAnalyzer は顔画像からキャラクターの外見の説明を生成します。
// 同じ画像の結果はキャッシュし、同時に来た同じ画像の要求は1回の呼び出しにまとめます。
type FaceAnalyzer struct {
	describer backend.ImageDescriber
	sink      events.Sink
	limit     int
	cache     *cache.Cache
	group     singleflight.Group
}

// NewFaceAnalyzer は FaceAnalyzer を初期化します。limit が 0 以下の場合は 4MB です。
func NewFaceAnalyzer(d backend.ImageDescriber, limit int, sink events.Sink) (*FaceAnalyzer, error) {
	if d == nil {
		return nil, fmt.Errorf("ImageDescriber は必須です")
	}
	if limit <= 0 {
		limit = config.DefaultFaceImageLimit
	}
	if sink == nil {
		sink = events.Discard
	}
	return &FaceAnalyzer{
		describer: d,
		sink:      sink,
		limit:     limit,
		cache:     cache.New(defaultDescriptionTTL, cacheCleanupInterval),
	}, nil
}

// Analyze は form に顔画像を設定して解析し、説明を反映した Character を返します。
// 失敗した場合は顔画像と説明を消去した form をエラーとともに返します。
func (fa *FaceAnalyzer) Analyze(ctx context.Context, form domain.Character, dataURL string) (domain.Character, error) {
	reject := func(msg string) (domain.Character, error) {
		verr := domain.NewValidationError(domain.OpAnalyzeFace, msg)
		fa.sink.Emit(ctx, events.Failure(domain.OpAnalyzeFace, verr))
		form.FaceImage, form.FaceDescription = "", ""
		return form, verr
	}

	img, err := domain.DecodeDataURL(dataURL)
	if err != nil || !domain.IsSupportedImageType(img.MimeType) {
		return reject(MsgImageType)
	}
	if len(img.Data) > fa.limit {
		return reject(MsgImageTooLarge)
	}

	form.SetFaceImage(dataURL)
	fa.sink.Emit(ctx, events.Progress(domain.OpAnalyzeFace, MsgAnalyzing))

	key := imageKey(img.Data)
	desc, err := fa.describe(ctx, key, img)
	if err != nil {
		opErr := domain.Classify(domain.OpAnalyzeFace, err)
		slog.WarnContext(ctx, "顔画像の解析に失敗しました", "error", err)
		fa.sink.Emit(ctx, events.Failure(domain.OpAnalyzeFace, opErr))
		form.FaceImage, form.FaceDescription = "", ""
		return form, opErr
	}

	form.SetFaceDescription(desc)
	fa.sink.Emit(ctx, events.Notice(domain.OpAnalyzeFace, MsgAnalyzed))
	return form, nil
}

func (fa *FaceAnalyzer) describe(ctx context.Context, key string, img *imagedom.ImageResponse) (string, error) {
	if v, ok := fa.cache.Get(key); ok {
		if s, ok := v.(string); ok {
			return s, nil
		}
	}

	// 共有中の解析は最初の呼び出し元のキャンセルで止めず、待っている他の呼び出し元に結果を渡します。
	sharedCtx := context.WithoutCancel(ctx)
	ch := fa.group.DoChan(key, func() (interface{}, error) {
		if v, ok := fa.cache.Get(key); ok {
			return v, nil
		}
		text, err := fa.describer.DescribeImage(sharedCtx, img, faceAnalysisPrompt)
		if err != nil {
			return nil, err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, fmt.Errorf("画像の説明が空でした")
		}
		fa.cache.Set(key, text, cache.DefaultExpiration)
		return text, nil
	})

	var val interface{}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		val = res.Val
	}

	desc, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("unexpected return type from singleflight: %T", val)
	}
	return desc, nil
}

func imageKey(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
