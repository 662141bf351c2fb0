package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shouni/go-comic-kit/pkg/asset"
	"github.com/shouni/go-comic-kit/pkg/workflow"
)

var exportPage int

// exportCmd は漫画をファイルに書き出すのだ。
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "漫画を PNG、縦読み画像、PDF として書き出すのだ。",
}

var exportPNGCmd = &cobra.Command{
	Use:   "png",
	Short: "1ページを PNG で書き出すのだ。",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withManager(cmd, func(ctx context.Context, mgr *workflow.Manager) error {
			data, name, err := mgr.Exporter().Page(ctx, mgr.Session().Comic(), exportPage-1)
			if err != nil {
				return err
			}
			return writeOutput(cmd, mgr, name, data)
		})
	},
}

var exportWebcomicCmd = &cobra.Command{
	Use:   "webcomic",
	Short: "全ページを縦につなげた PNG を書き出すのだ。",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withManager(cmd, func(ctx context.Context, mgr *workflow.Manager) error {
			data, err := mgr.Exporter().Webcomic(ctx, mgr.Session().Comic())
			if err != nil {
				return err
			}
			return writeOutput(cmd, mgr, asset.DefaultWebcomicFileName, data)
		})
	},
}

var exportPDFCmd = &cobra.Command{
	Use:   "pdf",
	Short: "全ページを1つの PDF に書き出すのだ。",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withManager(cmd, func(ctx context.Context, mgr *workflow.Manager) error {
			snap := mgr.Session().Snapshot()
			data, err := mgr.Exporter().PDF(ctx, snap.Comic, snap.Prompt)
			if err != nil {
				return err
			}
			return writeOutput(cmd, mgr, asset.DefaultPDFFileName, data)
		})
	},
}

var exportAllCmd = &cobra.Command{
	Use:   "all",
	Short: "全ページの PNG、縦読み画像、PDF をまとめて書き出すのだ。",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withManager(cmd, func(ctx context.Context, mgr *workflow.Manager) error {
			snap := mgr.Session().Snapshot()
			res, err := mgr.Exporter().Publish(ctx, snap.Comic, mgr.Config().OutputDir, snap.Prompt)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, p := range res.PagePaths {
				fmt.Fprintln(out, p)
			}
			if res.WebcomicPath != "" {
				fmt.Fprintln(out, res.WebcomicPath)
			}
			fmt.Fprintln(out, res.PDFPath)
			return nil
		})
	},
}

// writeOutput は出力ディレクトリにファイルを書いてパスを表示するのだ。
func writeOutput(cmd *cobra.Command, mgr *workflow.Manager, name string, data []byte) error {
	dir := mgr.Config().OutputDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("出力ディレクトリを作れなかったのだ: %w", err)
	}
	path, err := asset.ResolveOutputPath(dir, name)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("書き出しに失敗したのだ: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func init() {
	exportPNGCmd.Flags().IntVar(&exportPage, "page", 1, "書き出すページ（1始まり）なのだ。")
	exportCmd.AddCommand(exportPNGCmd, exportWebcomicCmd, exportPDFCmd, exportAllCmd)
}
