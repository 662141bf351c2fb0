package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// CharacterType はキャラクターの役割です。
type CharacterType string

const (
	CharacterHero     CharacterType = "Hero"
	CharacterVillain  CharacterType = "Villain"
	CharacterSidekick CharacterType = "Sidekick"
)

// CharacterTypes は選択可能な役割を表示順に返します。
func CharacterTypes() []CharacterType {
	return []CharacterType{CharacterHero, CharacterVillain, CharacterSidekick}
}

// ParseCharacterType は文字列を CharacterType に変換します。大文字小文字は区別しません。
func ParseCharacterType(s string) (CharacterType, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return CharacterHero, nil
	}
	for _, t := range CharacterTypes() {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("不明なキャラクタータイプです: '%s'", s)
}

// CharacterID はキャラクターの識別子です。
// 旧形式のドラフトでは数値で保存されているため、数値からのデコードも受け付けます。
type CharacterID string

func (id *CharacterID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = CharacterID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("キャラクターIDのデコードに失敗しました: %w", err)
	}
	*id = CharacterID(n.String())
	return nil
}

// Character は漫画に登場するキャラクターの定義を保持します。
type Character struct {
	ID              CharacterID   `json:"id"`
	Name            string        `json:"name"`
	Type            CharacterType `json:"type"`
	Appearance      string        `json:"appearance"`
	Personality     string        `json:"personality"`
	Powers          string        `json:"powers"`
	FaceImage       string        `json:"faceImage,omitempty"`       // data URL
	FaceDescription string        `json:"faceDescription,omitempty"` // 顔画像から得た外見の説明
}

// String はキャラクターの情報を文字列で返します。
func (c Character) String() string {
	return fmt.Sprintf("%s (%s)", c.Name, c.Type)
}

// VisualDescription はプロンプトに使う外見を返します。顔の説明があればそちらを優先します。
func (c Character) VisualDescription() string {
	if strings.TrimSpace(c.FaceDescription) != "" {
		return c.FaceDescription
	}
	return c.Appearance
}

// SetFaceImage は顔画像を設定し、以前の画像から得た説明を破棄します。
func (c *Character) SetFaceImage(dataURL string) {
	c.FaceImage = dataURL
	c.FaceDescription = ""
}

// SetFaceDescription は顔の説明を設定し、外見の欄にも同じ内容を反映します。
func (c *Character) SetFaceDescription(desc string) {
	c.FaceDescription = desc
	c.Appearance = desc
}

// ClearFaceImage は顔画像と説明、それに由来する外見をまとめて消去します。
func (c *Character) ClearFaceImage() {
	c.FaceImage = ""
	c.FaceDescription = ""
	c.Appearance = ""
}

// CloneCharacters はスライスの防御的コピーを返します。
func CloneCharacters(src []Character) []Character {
	if src == nil {
		return nil
	}
	copied := make([]Character, len(src))
	copy(copied, src)
	return copied
}
