package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shouni/go-comic-kit/pkg/editor"
	"github.com/shouni/go-comic-kit/pkg/workflow"
)

var editOpts struct {
	Instruction string
	Preset      string
	Page        int
}

// editCmd は1ページだけを指示文かプリセットで手直しするのだ。
var editCmd = &cobra.Command{
	Use:     "edit",
	Short:   "1ページを指示文か雰囲気プリセットで編集するのだ。",
	Args:    cobra.NoArgs,
	PreRunE: requireAPIKey,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if (editOpts.Instruction == "") == (editOpts.Preset == "") {
			return fmt.Errorf("--instruction か --preset のどちらか一方を指定してほしいのだ")
		}
		page := editOpts.Page - 1
		return withManager(cmd, func(ctx context.Context, mgr *workflow.Manager) error {
			if editOpts.Preset != "" {
				comic, err := mgr.ApplyPreset(ctx, page, editOpts.Preset)
				if err != nil {
					return err
				}
				if comic == nil {
					return fmt.Errorf("不明なプリセットなのだ: %s（%s）", editOpts.Preset, strings.Join(editor.PresetNames(), ", "))
				}
				return nil
			}
			_, err := mgr.Edit(ctx, page, editOpts.Instruction)
			return err
		})
	},
}

func init() {
	editCmd.Flags().StringVarP(&editOpts.Instruction, "instruction", "i", "", "編集の指示文なのだ。")
	editCmd.Flags().StringVar(&editOpts.Preset, "preset", "", fmt.Sprintf("雰囲気プリセットなのだ（%s）。", strings.Join(editor.PresetNames(), "|")))
	editCmd.Flags().IntVar(&editOpts.Page, "page", 1, "編集するページ（1始まり）なのだ。")
}
