package gemini

import (
	"context"
	"errors"
	"testing"

	imagedom "github.com/shouni/gemini-image-kit/pkg/domain"
	geminiclient "github.com/shouni/go-gemini-client/gemini"
	"google.golang.org/genai"

	"github.com/shouni/go-comic-kit/pkg/backend"
)

type fakeModels struct {
	contentResp *genai.GenerateContentResponse
	imagesResp  *genai.GenerateImagesResponse
	err         error

	gotModel   string
	gotPrompt  string
	gotImgCfg  *genai.GenerateImagesConfig
	gotContent []*genai.Content
	gotCfg     *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.gotModel, f.gotContent, f.gotCfg = model, contents, cfg
	return f.contentResp, f.err
}

func (f *fakeModels) GenerateImages(_ context.Context, model, prompt string, cfg *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error) {
	f.gotModel, f.gotPrompt, f.gotImgCfg = model, prompt, cfg
	return f.imagesResp, f.err
}

// fakeGenerator は go-gemini-client の Generator を置き換えます。
type fakeGenerator struct {
	resp *geminiclient.Response
	err  error

	gotModel  string
	gotPrompt string
	gotParts  []*genai.Part
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model, prompt string) (*geminiclient.Response, error) {
	f.gotModel, f.gotPrompt = model, prompt
	return f.resp, f.err
}

func (f *fakeGenerator) GenerateWithParts(_ context.Context, model string, parts []*genai.Part, _ geminiclient.GenerateOptions) (*geminiclient.Response, error) {
	f.gotModel, f.gotParts = model, parts
	return f.resp, f.err
}

func (f *fakeGenerator) IsVertexAI() bool { return false }

func textResponse(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: parts, Role: genai.RoleModel}}},
	}
}

func TestGenerateImage(t *testing.T) {
	ctx := context.Background()

	t.Run("1枚・指定のMIMEとアスペクト比で要求すること", func(t *testing.T) {
		fm := &fakeModels{imagesResp: &genai.GenerateImagesResponse{
			GeneratedImages: []*genai.GeneratedImage{{Image: &genai.Image{ImageBytes: []byte("png")}}},
		}}
		c := newClient(fm, &fakeGenerator{}, Config{ImageModel: "imagen-test"})

		img, err := c.GenerateImage(ctx, imagedom.ImageGenerationRequest{Prompt: "a cat", AspectRatio: "16:9"})
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if fm.gotModel != "imagen-test" || fm.gotPrompt != "a cat" {
			t.Errorf("リクエストが期待と異なります: %s %q", fm.gotModel, fm.gotPrompt)
		}
		if fm.gotImgCfg.NumberOfImages != 1 || fm.gotImgCfg.AspectRatio != "16:9" || fm.gotImgCfg.OutputMIMEType != "image/png" {
			t.Errorf("設定が期待と異なります: %+v", fm.gotImgCfg)
		}
		if string(img.Data) != "png" || img.MimeType != "image/png" {
			t.Errorf("画像が期待と異なります: %+v", img)
		}
	})

	t.Run("結果が空の場合はエラー", func(t *testing.T) {
		c := newClient(&fakeModels{imagesResp: &genai.GenerateImagesResponse{}}, &fakeGenerator{}, Config{})
		if _, err := c.GenerateImage(ctx, imagedom.ImageGenerationRequest{Prompt: "x"}); err == nil {
			t.Fatal("エラーを期待しました")
		}
	})

	t.Run("バックエンドのエラーを包んで返すこと", func(t *testing.T) {
		base := errors.New("429 Too Many Requests")
		c := newClient(&fakeModels{err: base}, &fakeGenerator{}, Config{})
		if _, err := c.GenerateImage(ctx, imagedom.ImageGenerationRequest{Prompt: "x"}); !errors.Is(err, base) {
			t.Fatalf("元のエラーが保持されていません: %v", err)
		}
	})
}

func TestEditImage(t *testing.T) {
	ctx := context.Background()
	src := &imagedom.ImageResponse{Data: []byte("src"), MimeType: "image/png"}

	t.Run("応答の画像パートを返すこと", func(t *testing.T) {
		raw := textResponse(
			genai.NewPartFromText("here you go"),
			genai.NewPartFromBytes([]byte("edited"), "image/webp"),
		)
		fg := &fakeGenerator{resp: &geminiclient.Response{Text: "here you go", Images: [][]byte{[]byte("edited")}, RawResponse: raw}}
		c := newClient(&fakeModels{}, fg, Config{EditModel: "edit-test"})

		res, err := c.EditImage(ctx, src, "make it night")
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if res.Image == nil || string(res.Image.Data) != "edited" || res.Image.MimeType != "image/webp" {
			t.Errorf("編集画像が期待と異なります: %+v", res.Image)
		}
		if res.Text != "here you go" {
			t.Errorf("テキストが期待と異なります: %q", res.Text)
		}
		if fg.gotModel != "edit-test" || len(fg.gotParts) != 2 {
			t.Fatalf("送信内容が期待と異なります: %s %+v", fg.gotModel, fg.gotParts)
		}
		if fg.gotParts[1].Text != "make it night" || fg.gotParts[0].InlineData == nil {
			t.Errorf("画像と指示文が送られていません")
		}
	})

	t.Run("元の応答がない場合は画像の内容から MIME を判定すること", func(t *testing.T) {
		png := []byte("\x89PNG\r\n\x1a\n0000")
		fg := &fakeGenerator{resp: &geminiclient.Response{Images: [][]byte{png}}}
		c := newClient(&fakeModels{}, fg, Config{})

		res, err := c.EditImage(ctx, src, "x")
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if res.Image == nil || res.Image.MimeType != "image/png" {
			t.Errorf("編集画像が期待と異なります: %+v", res.Image)
		}
	})

	t.Run("画像パートがない場合は Image が nil", func(t *testing.T) {
		fg := &fakeGenerator{resp: &geminiclient.Response{Text: "sorry", RawResponse: textResponse(genai.NewPartFromText("sorry"))}}
		c := newClient(&fakeModels{}, fg, Config{})
		res, err := c.EditImage(ctx, src, "x")
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if res.Image != nil {
			t.Errorf("Image が nil ではありません")
		}
	})

	t.Run("クライアントのエラーを包んで返すこと", func(t *testing.T) {
		base := errors.New("quota exceeded")
		c := newClient(&fakeModels{}, &fakeGenerator{err: base}, Config{})
		if _, err := c.EditImage(ctx, src, "x"); !errors.Is(err, base) {
			t.Fatalf("元のエラーが保持されていません: %v", err)
		}
	})
}

func TestGenerateText(t *testing.T) {
	fg := &fakeGenerator{resp: &geminiclient.Response{Text: `"A robot plants trees."`}}
	c := newClient(&fakeModels{}, fg, Config{TextModel: "text-test"})

	got, err := c.GenerateText(context.Background(), "suggest")
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if got != `"A robot plants trees."` {
		t.Errorf("応答テキストが期待と異なります: %s", got)
	}
	if fg.gotModel != "text-test" || fg.gotPrompt != "suggest" {
		t.Errorf("リクエストが期待と異なります: %s %q", fg.gotModel, fg.gotPrompt)
	}
}

func TestDescribeImage(t *testing.T) {
	fg := &fakeGenerator{resp: &geminiclient.Response{Text: "  round glasses \n"}}
	c := newClient(&fakeModels{}, fg, Config{})

	got, err := c.DescribeImage(context.Background(), &imagedom.ImageResponse{Data: []byte("face"), MimeType: "image/jpeg"}, "describe")
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if got != "round glasses" {
		t.Errorf("説明が期待と異なります: %q", got)
	}
	if len(fg.gotParts) != 2 || fg.gotParts[0].InlineData.MIMEType != "image/jpeg" {
		t.Errorf("送信内容が期待と異なります: %+v", fg.gotParts)
	}

	if _, err := c.DescribeImage(context.Background(), nil, "x"); err == nil {
		t.Error("空の画像でエラーになりません")
	}
}

func TestGenerateJSON(t *testing.T) {
	fm := &fakeModels{contentResp: textResponse(genai.NewPartFromText(`{"page1":"a"}`))}
	c := newClient(fm, &fakeGenerator{}, Config{})

	got, err := c.GenerateJSON(context.Background(), "story", []backend.FieldSpec{
		{Name: "page1", Description: "first"},
		{Name: "page2", Description: "second"},
	})
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if got != `{"page1":"a"}` {
		t.Errorf("応答テキストが期待と異なります: %s", got)
	}
	if fm.gotCfg.ResponseMIMEType != "application/json" {
		t.Errorf("MIME が期待と異なります: %s", fm.gotCfg.ResponseMIMEType)
	}
	s := fm.gotCfg.ResponseSchema
	if s.Type != genai.TypeObject || len(s.Required) != 2 || s.Properties["page2"].Description != "second" {
		t.Errorf("スキーマが期待と異なります: %+v", s)
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(context.Background(), Config{}); err == nil {
		t.Fatal("API キーなしでエラーになりません")
	}
}
