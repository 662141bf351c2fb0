package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	imagedom "github.com/shouni/gemini-image-kit/pkg/domain"
	"github.com/xeipuuv/gojsonschema"

	"github.com/shouni/go-comic-kit/pkg/domain"
)

var (
	// ErrDraftNotFound はドラフトが保存されていない場合に返されます。
	ErrDraftNotFound = errors.New("ドラフトが見つかりません")
	// ErrDraftCorrupt は保存されたドラフトを読み取れない場合に返されます。
	ErrDraftCorrupt = errors.New("ドラフトが破損しています")
)

// draftSchema は保存されたドラフトの JSON スキーマです。
const draftSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["prompt"],
  "properties": {
    "prompt": { "type": "string" },
    "comicImageUrls": {
      "type": ["array", "null"],
      "items": { "type": "string", "pattern": "^data:" }
    },
    "storyParts": {
      "type": ["array", "null"],
      "items": { "type": "string" }
    },
    "characters": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["id", "name"],
        "properties": {
          "id": { "type": ["string", "number"] },
          "name": { "type": "string" },
          "type": { "type": "string" },
          "appearance": { "type": "string" },
          "personality": { "type": "string" },
          "powers": { "type": "string" },
          "faceImage": { "type": "string" },
          "faceDescription": { "type": "string" }
        }
      }
    }
  }
}`

var draftSchemaLoader = gojsonschema.NewStringLoader(draftSchema)

// DraftSnapshot は作業中の内容をそのまま保存するためのスナップショットです。
type DraftSnapshot struct {
	Prompt         string             `json:"prompt"`
	ComicImageURLs []string           `json:"comicImageUrls"`
	StoryParts     []string           `json:"storyParts"`
	Characters     []domain.Character `json:"characters"`
}

// NewDraftSnapshot は現在の状態からスナップショットを作ります。
func NewDraftSnapshot(prompt string, comic *domain.Comic, chars []domain.Character) DraftSnapshot {
	snap := DraftSnapshot{
		Prompt:     prompt,
		Characters: domain.CloneCharacters(chars),
	}
	if !comic.IsEmpty() {
		snap.ComicImageURLs = make([]string, len(comic.Pages))
		for i, p := range comic.Pages {
			snap.ComicImageURLs[i] = domain.EncodeDataURL(p.Image)
		}
		if comic.HasNarration() {
			snap.StoryParts = make([]string, len(comic.Narration))
			copy(snap.StoryParts, comic.Narration)
		}
	}
	return snap
}

// IsEmpty は保存する価値のある内容がない場合に true を返します。
func (d DraftSnapshot) IsEmpty() bool {
	return strings.TrimSpace(d.Prompt) == "" && len(d.Characters) == 0 && len(d.ComicImageURLs) == 0
}

// Comic はスナップショットの画像から Comic を復元します。画像がない場合は nil を返します。
func (d DraftSnapshot) Comic() (*domain.Comic, error) {
	if len(d.ComicImageURLs) == 0 {
		return nil, nil
	}
	images := make([]*imagedom.ImageResponse, len(d.ComicImageURLs))
	for i, u := range d.ComicImageURLs {
		img, err := domain.DecodeDataURL(u)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", ErrDraftCorrupt, i+1, err)
		}
		images[i] = img
	}

	var narration []string
	if len(d.StoryParts) > 0 {
		narration = d.StoryParts
	}
	comic, err := domain.NewComic(images, narration)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDraftCorrupt, err)
	}
	return comic, nil
}

func encodeDraft(d DraftSnapshot) (string, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("ドラフトのエンコードに失敗しました: %w", err)
	}
	return string(b), nil
}

func decodeDraft(raw string) (DraftSnapshot, error) {
	result, err := gojsonschema.Validate(draftSchemaLoader, gojsonschema.NewStringLoader(raw))
	if err != nil {
		return DraftSnapshot{}, fmt.Errorf("%w: %v", ErrDraftCorrupt, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return DraftSnapshot{}, fmt.Errorf("%w: %s", ErrDraftCorrupt, strings.Join(msgs, "; "))
	}

	var d DraftSnapshot
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return DraftSnapshot{}, fmt.Errorf("%w: %v", ErrDraftCorrupt, err)
	}
	return d, nil
}
