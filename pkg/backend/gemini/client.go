// Package gemini は Gemini API を使って backend の各インターフェースを実装します。
// 画像編集と自由形式のテキストは go-gemini-client を通し、Imagen と JSON スキーマ付きの生成だけ genai を直接呼びます。
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	imagedom "github.com/shouni/gemini-image-kit/pkg/domain"
	geminiclient "github.com/shouni/go-gemini-client/gemini"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/shouni/go-comic-kit/pkg/backend"
	"github.com/shouni/go-comic-kit/pkg/config"
)

const mimeTypeJSON = "application/json"

// modelsAPI は genai.Models のうち、このパッケージが使うメソッドです。
type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateImages(ctx context.Context, model string, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
}

// defaultTemperature は go-gemini-client に渡す生成温度です。
const defaultTemperature = float32(0.7)

// Config はクライアントの設定です。
type Config struct {
	APIKey        string
	Temperature   *float32
	TextModel     string
	ImageModel    string
	EditModel     string
	ImageMimeType string
	// RateInterval が 0 より大きい場合、各呼び出しの前にこの間隔で待機します。
	RateInterval time.Duration
}

// ConfigFrom はアプリケーション設定からクライアント設定を作ります。
func ConfigFrom(cfg config.Config) Config {
	return Config{
		APIKey:        cfg.GeminiAPIKey,
		TextModel:     cfg.TextModel,
		ImageModel:    cfg.ImageModel,
		EditModel:     cfg.EditModel,
		ImageMimeType: cfg.ImageMimeType,
		RateInterval:  cfg.RateInterval,
	}
}

// Client は backend.Backend の Gemini 実装です。
type Client struct {
	models  modelsAPI
	gen     geminiclient.Generator
	cfg     Config
	limiter *rate.Limiter
}

var _ backend.Backend = (*Client)(nil)

// NewClient は Gemini API バックエンドのクライアントを初期化します。
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API キーが設定されていません")
	}
	temperature := cfg.Temperature
	if temperature == nil {
		temperature = genai.Ptr(defaultTemperature)
	}
	aiClient, err := geminiclient.NewClient(ctx, geminiclient.Config{
		APIKey:      cfg.APIKey,
		Temperature: temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("AIクライアントの初期化に失敗しました: %w", err)
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai クライアントの初期化に失敗しました: %w", err)
	}
	return newClient(gc.Models, aiClient, cfg), nil
}

func newClient(models modelsAPI, gen geminiclient.Generator, cfg Config) *Client {
	if cfg.TextModel == "" {
		cfg.TextModel = config.DefaultTextModel
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = config.DefaultImageModel
	}
	if cfg.EditModel == "" {
		cfg.EditModel = config.DefaultEditModel
	}
	if cfg.ImageMimeType == "" {
		cfg.ImageMimeType = config.DefaultImageMimeType
	}
	c := &Client{models: models, gen: gen, cfg: cfg}
	if cfg.RateInterval > 0 {
		c.limiter = rate.NewLimiter(rate.Every(cfg.RateInterval), 1)
	}
	return c
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("リミッター待機中にエラーが発生しました: %w", err)
	}
	return nil
}

// GenerateImage はテキストから画像を1枚生成します。
func (c *Client) GenerateImage(ctx context.Context, req imagedom.ImageGenerationRequest) (*imagedom.ImageResponse, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	gcfg := &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		OutputMIMEType: c.cfg.ImageMimeType,
		AspectRatio:    req.AspectRatio,
		NegativePrompt: req.NegativePrompt,
	}
	if req.Seed != nil {
		gcfg.Seed = genai.Ptr(int32(*req.Seed))
	}

	slog.DebugContext(ctx, "画像生成リクエストを送信します", "model", c.cfg.ImageModel, "aspect_ratio", req.AspectRatio)
	resp, err := c.models.GenerateImages(ctx, c.cfg.ImageModel, req.Prompt, gcfg)
	if err != nil {
		return nil, fmt.Errorf("画像生成に失敗しました: %w", err)
	}
	img, err := firstGeneratedImage(resp, c.cfg.ImageMimeType)
	if err != nil {
		return nil, err
	}
	if req.Seed != nil {
		img.UsedSeed = *req.Seed
	}
	return img, nil
}

// EditImage は画像と指示文を送り、応答に含まれる最初の画像を返します。
func (c *Client) EditImage(ctx context.Context, src *imagedom.ImageResponse, instruction string) (*backend.EditResult, error) {
	if src == nil || len(src.Data) == 0 {
		return nil, fmt.Errorf("編集元の画像が空です")
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	parts := []*genai.Part{
		genai.NewPartFromBytes(src.Data, src.MimeType),
		genai.NewPartFromText(instruction),
	}
	slog.DebugContext(ctx, "画像編集リクエストを送信します", "model", c.cfg.EditModel)
	resp, err := c.gen.GenerateWithParts(ctx, c.cfg.EditModel, parts, geminiclient.GenerateOptions{})
	if err != nil {
		return nil, fmt.Errorf("画像編集に失敗しました: %w", err)
	}
	return &backend.EditResult{
		Image: responseImage(resp),
		Text:  resp.Text,
	}, nil
}

// GenerateJSON は fields をすべて必須の文字列とする JSON を生成させます。
func (c *Client) GenerateJSON(ctx context.Context, prompt string, fields []backend.FieldSpec) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	resp, err := c.models.GenerateContent(ctx, c.cfg.TextModel, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: mimeTypeJSON,
		ResponseSchema:   objectSchema(fields),
	})
	if err != nil {
		return "", fmt.Errorf("構造化テキストの生成に失敗しました: %w", err)
	}
	return resp.Text(), nil
}

// GenerateText は自由形式のテキストを生成します。
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	resp, err := c.gen.GenerateContent(ctx, c.cfg.TextModel, prompt)
	if err != nil {
		return "", fmt.Errorf("テキスト生成に失敗しました: %w", err)
	}
	return resp.Text, nil
}

// DescribeImage は画像と指示文を送り、説明文を返します。
func (c *Client) DescribeImage(ctx context.Context, img *imagedom.ImageResponse, instruction string) (string, error) {
	if img == nil || len(img.Data) == 0 {
		return "", fmt.Errorf("説明する画像が空です")
	}
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	parts := []*genai.Part{
		genai.NewPartFromBytes(img.Data, img.MimeType),
		genai.NewPartFromText(instruction),
	}
	resp, err := c.gen.GenerateWithParts(ctx, c.cfg.TextModel, parts, geminiclient.GenerateOptions{})
	if err != nil {
		return "", fmt.Errorf("画像の説明生成に失敗しました: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// objectSchema は fields を宣言順に持つオブジェクトのスキーマを作ります。
func objectSchema(fields []backend.FieldSpec) *genai.Schema {
	s := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(fields)),
	}
	for _, f := range fields {
		s.Properties[f.Name] = &genai.Schema{Type: genai.TypeString, Description: f.Description}
		s.Required = append(s.Required, f.Name)
		s.PropertyOrdering = append(s.PropertyOrdering, f.Name)
	}
	return s
}

func firstGeneratedImage(resp *genai.GenerateImagesResponse, fallbackMime string) (*imagedom.ImageResponse, error) {
	if resp == nil {
		return nil, fmt.Errorf("画像生成の応答が空です")
	}
	for _, gi := range resp.GeneratedImages {
		if gi == nil || gi.Image == nil || len(gi.Image.ImageBytes) == 0 {
			continue
		}
		mime := gi.Image.MIMEType
		if mime == "" {
			mime = fallbackMime
		}
		return &imagedom.ImageResponse{Data: gi.Image.ImageBytes, MimeType: mime}, nil
	}
	return nil, fmt.Errorf("画像生成の応答に画像が含まれていません")
}

// responseImage は go-gemini-client の応答から最初の画像を取り出します。
// MIME タイプは元の応答から引き、元の応答がない場合は内容から判定します。見つからない場合は nil です。
func responseImage(resp *geminiclient.Response) *imagedom.ImageResponse {
	if resp == nil {
		return nil
	}
	if img := firstInlineImage(resp.RawResponse); img != nil {
		return img
	}
	for _, data := range resp.Images {
		if len(data) == 0 {
			continue
		}
		mime := http.DetectContentType(data)
		if !strings.HasPrefix(mime, "image/") {
			continue
		}
		return &imagedom.ImageResponse{Data: data, MimeType: mime}
	}
	return nil
}

// firstInlineImage は応答の最初の候補から画像パートを探します。見つからない場合は nil です。
func firstInlineImage(resp *genai.GenerateContentResponse) *imagedom.ImageResponse {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil {
		return nil
	}
	for _, p := range cand.Content.Parts {
		if p == nil || p.InlineData == nil || len(p.InlineData.Data) == 0 {
			continue
		}
		if !strings.HasPrefix(p.InlineData.MIMEType, "image/") {
			continue
		}
		return &imagedom.ImageResponse{Data: p.InlineData.Data, MimeType: p.InlineData.MIMEType}
	}
	return nil
}
