package persistence

import (
	"bytes"
	"encoding/json"
)

// HistoryShape は保存済み履歴の形式です。
type HistoryShape int

const (
	ShapeMissing HistoryShape = iota // 保存されていない
	ShapeCurrent                     // 文字列の配列
	ShapeLegacy                      // {"prompt": "..."} の配列
	ShapeInvalid                     // どちらにも当てはまらない
)

func (s HistoryShape) String() string {
	switch s {
	case ShapeMissing:
		return "missing"
	case ShapeCurrent:
		return "current"
	case ShapeLegacy:
		return "legacy"
	default:
		return "invalid"
	}
}

type legacyEntry struct {
	Prompt *string `json:"prompt"`
}

// decodeHistory は保存値の形式を判定し、プロンプト一覧に変換します。
//
//	JSON として読めない            -> invalid
//	配列でない                     -> invalid
//	空配列                         -> current
//	すべて文字列                   -> current
//	すべて prompt 文字列を持つ object -> legacy
//	それ以外                       -> invalid
func decodeHistory(raw string) ([]string, HistoryShape) {
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, ShapeInvalid
	}
	if items == nil {
		return nil, ShapeInvalid
	}
	if len(items) == 0 {
		return []string{}, ShapeCurrent
	}

	switch firstByte(items[0]) {
	case '"':
		prompts := make([]string, 0, len(items))
		for _, item := range items {
			var s string
			if err := json.Unmarshal(item, &s); err != nil {
				return nil, ShapeInvalid
			}
			prompts = append(prompts, s)
		}
		return prompts, ShapeCurrent

	case '{':
		prompts := make([]string, 0, len(items))
		for _, item := range items {
			var e legacyEntry
			if firstByte(item) != '{' {
				return nil, ShapeInvalid
			}
			if err := json.Unmarshal(item, &e); err != nil || e.Prompt == nil {
				return nil, ShapeInvalid
			}
			prompts = append(prompts, *e.Prompt)
		}
		return prompts, ShapeLegacy
	}
	return nil, ShapeInvalid
}

func firstByte(b json.RawMessage) byte {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return 0
	}
	return b[0]
}

func encodeHistory(entries []string) (string, error) {
	if entries == nil {
		entries = []string{}
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
