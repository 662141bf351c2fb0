// Package export は漫画を PNG、縦読み用の1枚画像、PDF として書き出します。
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/shouni/go-comic-kit/pkg/asset"
	"github.com/shouni/go-comic-kit/pkg/config"
	"github.com/shouni/go-comic-kit/pkg/domain"
	"github.com/shouni/go-comic-kit/pkg/events"
)

// 通知メッセージ
const (
	MsgPageFailed       = "Could not process image for download."
	MsgWebcomicStarted  = "Generating vertical webcomic image..."
	MsgWebcomicDone     = "Webcomic download started!"
	MsgWebcomicFailed   = "Could not generate the webcomic image. Please try again."
	MsgPDFFailed        = "Could not generate the PDF. Please try again."
	MsgNeedMultiplePage = "A webcomic needs more than one page."
)

// ErrNotEnoughPages は1ページしかない漫画を縦読み画像にしようとした場合に返されます。
var ErrNotEnoughPages = errors.New("縦読み画像には2ページ以上が必要です")

// Exporter は書き出しの結果をイベントとして通知します。
type Exporter struct {
	contrast int
	sink     events.Sink
}

// NewExporter は Exporter を初期化します。contrast が 0 以下の場合は 100 です。
func NewExporter(contrast int, sink events.Sink) *Exporter {
	if contrast <= 0 {
		contrast = config.DefaultExportContrast
	}
	if sink == nil {
		sink = events.Discard
	}
	return &Exporter{contrast: contrast, sink: sink}
}

// Contrast は適用するコントラスト（パーセント）です。
func (e *Exporter) Contrast() int { return e.contrast }

// Page は page 番目（0始まり）のページをコントラスト調整済みの PNG として返します。
func (e *Exporter) Page(ctx context.Context, comic *domain.Comic, page int) (data []byte, fileName string, err error) {
	p, err := comic.Page(page)
	if err != nil {
		return nil, "", e.reject(ctx, domain.MsgMissingComic)
	}
	data, err = ProcessPage(p.Image, e.contrast)
	if err != nil {
		return nil, "", e.fail(ctx, MsgPageFailed, err)
	}
	fileName, err = asset.PageFileName(page)
	if err != nil {
		return nil, "", e.fail(ctx, MsgPageFailed, err)
	}
	return data, fileName, nil
}

// Webcomic は全ページを縦につなげた PNG を返します。1ページ以下の場合は ErrNotEnoughPages です。
func (e *Exporter) Webcomic(ctx context.Context, comic *domain.Comic) ([]byte, error) {
	if comic.PageCount() <= 1 {
		return nil, &domain.OperationError{Kind: domain.KindValidation, Op: domain.OpExport, Message: MsgNeedMultiplePage, Err: ErrNotEnoughPages}
	}
	e.sink.Emit(ctx, events.Notice(domain.OpExport, MsgWebcomicStarted))
	data, err := Stitch(comic.Images())
	if err != nil {
		return nil, e.fail(ctx, MsgWebcomicFailed, err)
	}
	e.sink.Emit(ctx, events.Notice(domain.OpExport, MsgWebcomicDone))
	return data, nil
}

// PDF は全ページを1つの PDF にして返します。
func (e *Exporter) PDF(ctx context.Context, comic *domain.Comic, title string) ([]byte, error) {
	if comic.IsEmpty() {
		return nil, e.reject(ctx, domain.MsgMissingComic)
	}
	var buf bytes.Buffer
	if err := WritePDF(&buf, comic.Images(), PDFOptions{Title: title, Contrast: e.contrast}); err != nil {
		return nil, e.fail(ctx, MsgPDFFailed, err)
	}
	return buf.Bytes(), nil
}

// PublishResult は Publish が書き出したファイルのパスです。
type PublishResult struct {
	PagePaths    []string
	WebcomicPath string // 1ページの場合は空
	PDFPath      string
}

// Publish は dir に全ページの PNG、縦読み画像（2ページ以上の場合）、PDF を書き出します。
// 以前の書き出しで残ったページ画像は削除します。
func (e *Exporter) Publish(ctx context.Context, comic *domain.Comic, dir, title string) (PublishResult, error) {
	var result PublishResult
	if comic.IsEmpty() {
		return result, e.reject(ctx, domain.MsgMissingComic)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return result, e.fail(ctx, domain.MsgExportFailed, fmt.Errorf("出力ディレクトリの作成に失敗しました: %w", err))
	}
	if err := removeStalePages(dir); err != nil {
		return result, e.fail(ctx, domain.MsgExportFailed, err)
	}

	result.PagePaths = make([]string, comic.PageCount())
	eg, egCtx := errgroup.WithContext(ctx)
	for i := range comic.Pages {
		idx := i
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			data, name, err := e.Page(egCtx, comic, idx)
			if err != nil {
				return err
			}
			path, err := writeFile(dir, name, data)
			if err != nil {
				return err
			}
			result.PagePaths[idx] = path
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return result, e.fail(ctx, domain.MsgExportFailed, err)
	}

	if comic.PageCount() > 1 {
		data, err := e.Webcomic(ctx, comic)
		if err != nil {
			return result, err
		}
		if result.WebcomicPath, err = writeFile(dir, asset.DefaultWebcomicFileName, data); err != nil {
			return result, e.fail(ctx, domain.MsgExportFailed, err)
		}
	}

	data, err := e.PDF(ctx, comic, title)
	if err != nil {
		return result, err
	}
	if result.PDFPath, err = writeFile(dir, asset.DefaultPDFFileName, data); err != nil {
		return result, e.fail(ctx, domain.MsgExportFailed, err)
	}

	slog.InfoContext(ctx, "漫画を書き出しました", "dir", dir, "pages", len(result.PagePaths))
	return result, nil
}

func writeFile(dir, name string, data []byte) (string, error) {
	path, err := asset.ResolveOutputPath(dir, name)
	if err != nil {
		return "", fmt.Errorf("出力パスの解決に失敗しました: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("ファイルの書き込みに失敗しました %s: %w", path, err)
	}
	return path, nil
}

func removeStalePages(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("出力ディレクトリの読み込みに失敗しました: %w", err)
	}
	for _, ent := range entries {
		if ent.IsDir() || !asset.PageFileRegex.MatchString(ent.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, ent.Name())); err != nil {
			return fmt.Errorf("古いページ画像の削除に失敗しました: %w", err)
		}
	}
	return nil
}

func (e *Exporter) reject(ctx context.Context, msg string) error {
	verr := domain.NewValidationError(domain.OpExport, msg)
	e.sink.Emit(ctx, events.Failure(domain.OpExport, verr))
	return verr
}

func (e *Exporter) fail(ctx context.Context, msg string, err error) error {
	var opErr *domain.OperationError
	if errors.As(err, &opErr) {
		return opErr
	}
	opErr = &domain.OperationError{Kind: domain.KindGenerationFailed, Op: domain.OpExport, Message: msg, Err: err}
	slog.ErrorContext(ctx, "書き出しに失敗しました", "error", err)
	e.sink.Emit(ctx, events.Failure(domain.OpExport, opErr))
	return opErr
}
