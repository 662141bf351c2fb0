// Package asset は書き出すファイルの名前と出力パスを決めます。
package asset

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/shouni/go-utils/urlpath"
)

const (
	// DefaultPageFileName はページ画像の共通のベースファイル名です。
	DefaultPageFileName = "Ecomatrix_Comic_Page.png"
	// DefaultWebcomicFileName は縦につなげた画像のファイル名です。
	DefaultWebcomicFileName = "Ecomatrix_Webcomic.png"
	// DefaultPDFFileName は PDF のファイル名です。
	DefaultPDFFileName = "Ecomatrix_Comic.pdf"
)

// PageFileRegex はページ画像 (Ecomatrix_Comic_Page_1.png 等) に一致します
var PageFileRegex = createIndexedRegex(DefaultPageFileName)

// ResolveOutputPath は、ベースとなるディレクトリパスとファイル名から、
// GCS/ローカルを考慮した最終的な出力パスを生成します。
func ResolveOutputPath(baseDir, fileName string) (string, error) {
	return urlpath.ResolveOutputPath(baseDir, fileName)
}

// GenerateIndexedPath は、指定されたベースパスの拡張子の前に連番を挿入し、
// 新しいパス文字列を生成します。index は1以上の整数である必要があります。
// 例: "path/to/image.png", 1 -> "path/to/image_1.png"
func GenerateIndexedPath(basePath string, index int) (string, error) {
	return urlpath.GenerateIndexedPath(basePath, index)
}

// PageFileName は0始まりのページ番号に対応するページ画像のファイル名を返します。
func PageFileName(page int) (string, error) {
	return GenerateIndexedPath(DefaultPageFileName, page+1)
}

// createIndexedRegex は、ファイル名に基づきインデックス付きファイル用の正規表現を生成します。
// 例: "panel.png" -> ^panel_\d+\.png$
func createIndexedRegex(fileName string) *regexp.Regexp {
	ext := filepath.Ext(fileName)
	baseName := strings.TrimSuffix(fileName, ext)

	pattern := fmt.Sprintf(`^%s_\d+%s$`, regexp.QuoteMeta(baseName), regexp.QuoteMeta(ext))
	return regexp.MustCompile(pattern)
}
