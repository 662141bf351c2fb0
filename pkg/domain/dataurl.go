package domain

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	imagedom "github.com/shouni/gemini-image-kit/pkg/domain"
)

// ErrInvalidDataURL は data URL として解釈できない文字列に対して返されます。
var ErrInvalidDataURL = errors.New("不正な data URL です")

const dataURLPrefix = "data:"

// SupportedImageTypes はアップロードを受け付ける画像形式です。
var SupportedImageTypes = []string{"image/png", "image/jpeg", "image/webp"}

// IsSupportedImageType は MIME タイプが受け付け可能な形式かどうかを返します。
func IsSupportedImageType(mimeType string) bool {
	for _, t := range SupportedImageTypes {
		if strings.EqualFold(t, mimeType) {
			return true
		}
	}
	return false
}

// EncodeDataURL は画像を base64 の data URL に変換します。
func EncodeDataURL(img *imagedom.ImageResponse) string {
	if img == nil {
		return ""
	}
	mimeType := img.MimeType
	if mimeType == "" {
		mimeType = "image/png"
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(img.Data))
}

// DecodeDataURL は base64 の data URL を画像に戻します。
func DecodeDataURL(s string) (*imagedom.ImageResponse, error) {
	if !strings.HasPrefix(s, dataURLPrefix) {
		return nil, ErrInvalidDataURL
	}
	header, payload, ok := strings.Cut(s[len(dataURLPrefix):], ",")
	if !ok {
		return nil, ErrInvalidDataURL
	}
	mimeType, ok := strings.CutSuffix(header, ";base64")
	if !ok || mimeType == "" {
		return nil, fmt.Errorf("%w: base64 以外のエンコーディングには対応していません", ErrInvalidDataURL)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	return &imagedom.ImageResponse{Data: data, MimeType: mimeType}, nil
}
