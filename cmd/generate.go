package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shouni/go-comic-kit/pkg/domain"
	"github.com/shouni/go-comic-kit/pkg/generator"
	"github.com/shouni/go-comic-kit/pkg/workflow"
)

type generateFlags struct {
	Prompt        string
	NoStyle       bool
	ArtStyle      string
	LineThickness string
	Shading       string
	ScienceFact   bool
}

var genOpts generateFlags

// stripCmd は4コマ漫画を1枚生成するのだ。
var stripCmd = &cobra.Command{
	Use:     "strip [prompt]",
	Short:   "4コマ漫画を1枚生成するのだ。",
	Args:    cobra.MaximumNArgs(1),
	PreRunE: requireAPIKey,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(cmd, func(ctx context.Context, mgr *workflow.Manager) error {
			applyPrompt(mgr, args)
			comic, err := mgr.GenerateStrip(ctx, genOpts.options())
			if err != nil {
				return err
			}
			printComic(cmd, comic)
			return nil
		})
	},
}

// storyCmd は3ページの物語を生成するのだ。
var storyCmd = &cobra.Command{
	Use:     "story [prompt]",
	Short:   "ナレーション付きの3ページの物語を生成するのだ。",
	Args:    cobra.MaximumNArgs(1),
	PreRunE: requireAPIKey,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(cmd, func(ctx context.Context, mgr *workflow.Manager) error {
			applyPrompt(mgr, args)
			comic, err := mgr.GenerateStory(ctx, genOpts.options())
			if err != nil {
				return err
			}
			printComic(cmd, comic)
			return nil
		})
	},
}

// suggestCmd はプロンプトの案を出してもらうのだ。
var suggestCmd = &cobra.Command{
	Use:     "suggest",
	Short:   "物語のアイデアをプロンプトに入れるのだ。",
	Args:    cobra.NoArgs,
	PreRunE: requireAPIKey,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withManager(cmd, func(ctx context.Context, mgr *workflow.Manager) error {
			prompt, err := mgr.SuggestPrompt(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), prompt)
			return nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{stripCmd, storyCmd} {
		c.Flags().StringVarP(&genOpts.Prompt, "prompt", "p", "", "プロンプトなのだ。省略するとドラフトのプロンプトを使うのだ。")
		c.Flags().BoolVar(&genOpts.ScienceFact, "science-fact", false, "気候に関する豆知識を1つ入れるのだ。")
	}
	stripCmd.Flags().BoolVar(&genOpts.NoStyle, "no-style", false, "漫画風スタイルの仕上げをしないのだ。")
	stripCmd.Flags().StringVar(&genOpts.ArtStyle, "art-style", generator.DefaultArtStyle, "画風なのだ。")
	stripCmd.Flags().StringVar(&genOpts.LineThickness, "line", generator.DefaultLineThickness, "線の太さなのだ。")
	stripCmd.Flags().StringVar(&genOpts.Shading, "shading", generator.DefaultShading, "陰影の付け方なのだ。")
}

func (f generateFlags) options() workflow.GenerateOptions {
	return workflow.GenerateOptions{
		Style: generator.StyleOptions{
			ApplyStyle:    !f.NoStyle,
			ArtStyle:      f.ArtStyle,
			LineThickness: f.LineThickness,
			Shading:       f.Shading,
		},
		ScienceFact: f.ScienceFact,
	}
}

// applyPrompt は引数か --prompt があればプロンプトを置き換えるのだ。
func applyPrompt(mgr *workflow.Manager, args []string) {
	p := genOpts.Prompt
	if len(args) > 0 {
		p = args[0]
	}
	if strings.TrimSpace(p) != "" {
		mgr.SetPrompt(p)
	}
}

func printComic(cmd *cobra.Command, comic *domain.Comic) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d ページの漫画ができたのだ。`comic export` で書き出せるのだ。\n", comic.PageCount())
	for i, text := range comic.Narration {
		fmt.Fprintf(out, "  %d: %s\n", i+1, text)
	}
}
