package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shouni/go-comic-kit/pkg/workflow"
)

// historyCmd はプロンプト履歴を扱うのだ。
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "生成に成功したプロンプトの履歴を扱うのだ。",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "履歴を新しい順に表示するのだ。",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withManager(cmd, func(_ context.Context, mgr *workflow.Manager) error {
			out := cmd.OutOrStdout()
			entries := mgr.History()
			if len(entries) == 0 {
				fmt.Fprintln(out, "履歴はまだないのだ。")
				return nil
			}
			for i, p := range entries {
				fmt.Fprintf(out, "%3d  %s\n", i+1, p)
			}
			return nil
		})
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "履歴を消去するのだ。",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withManager(cmd, func(ctx context.Context, mgr *workflow.Manager) error {
			mgr.ClearHistory(ctx)
			return nil
		})
	},
}

var historyLoadCmd = &cobra.Command{
	Use:   "load <number>",
	Short: "履歴のプロンプトを読み込むのだ。今の漫画は消えるのだ。",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("番号を指定してほしいのだ: %q", args[0])
		}
		return withManager(cmd, func(ctx context.Context, mgr *workflow.Manager) error {
			_, err := mgr.LoadHistoryItem(ctx, n-1)
			return err
		})
	},
}

// draftCmd は自動保存されたドラフトを扱うのだ。
var draftCmd = &cobra.Command{
	Use:   "draft",
	Short: "自動保存されたドラフトを扱うのだ。",
}

var draftShowCmd = &cobra.Command{
	Use:   "show",
	Short: "ドラフトの内容を表示するのだ。",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withManager(cmd, func(_ context.Context, mgr *workflow.Manager) error {
			out := cmd.OutOrStdout()
			snap := mgr.Session().Snapshot()
			fmt.Fprintf(out, "prompt:     %s\n", snap.Prompt)
			fmt.Fprintf(out, "pages:      %d\n", snap.Comic.PageCount())
			for i, text := range snap.Comic.Narration {
				fmt.Fprintf(out, "  %d: %s\n", i+1, text)
			}
			chars := mgr.Characters().List()
			fmt.Fprintf(out, "characters: %d\n", len(chars))
			for _, c := range chars {
				fmt.Fprintf(out, "  %s  %s\n", c.ID, c)
			}
			return nil
		})
	},
}

var draftClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "ドラフトと作業中の内容を消去するのだ。",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withManager(cmd, func(ctx context.Context, mgr *workflow.Manager) error {
			return mgr.DiscardDraft(ctx)
		})
	},
}

// themeCmd はテーマを表示、または変更するのだ。
var themeCmd = &cobra.Command{
	Use:       "theme [light|dark]",
	Short:     "保存されているテーマを表示、または変更するのだ。",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"light", "dark"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(cmd, func(ctx context.Context, mgr *workflow.Manager) error {
			if len(args) == 1 {
				if err := mgr.Persistence().SetTheme(ctx, args[0]); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), mgr.Persistence().Theme(ctx))
			return nil
		})
	},
}

func init() {
	historyCmd.AddCommand(historyListCmd, historyClearCmd, historyLoadCmd)
	draftCmd.AddCommand(draftShowCmd, draftClearCmd)
}
