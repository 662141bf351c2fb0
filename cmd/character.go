package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"

	imagedom "github.com/shouni/gemini-image-kit/pkg/domain"
	"github.com/spf13/cobra"

	"github.com/shouni/go-comic-kit/pkg/domain"
	"github.com/shouni/go-comic-kit/pkg/workflow"
)

var charOpts struct {
	Name        string
	Type        string
	Appearance  string
	Personality string
	Powers      string
	Face        string
}

// characterCmd は登場キャラクターを扱うのだ。
var characterCmd = &cobra.Command{
	Use:     "character",
	Aliases: []string{"char"},
	Short:   "漫画に登場させるキャラクターを扱うのだ。",
}

var characterAddCmd = &cobra.Command{
	Use:   "add",
	Short: "キャラクターを登録するのだ。--face を付けると顔画像から外見を作るのだ。",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctype, err := domain.ParseCharacterType(charOpts.Type)
		if err != nil {
			return err
		}
		form := domain.Character{
			Name:        charOpts.Name,
			Type:        ctype,
			Appearance:  charOpts.Appearance,
			Personality: charOpts.Personality,
			Powers:      charOpts.Powers,
		}
		var face string
		if charOpts.Face != "" {
			if err := requireAPIKey(cmd, nil); err != nil {
				return err
			}
			if face, err = readFaceImage(charOpts.Face); err != nil {
				return err
			}
		}
		return withManager(cmd, func(ctx context.Context, mgr *workflow.Manager) error {
			added, err := mgr.AddCharacter(ctx, form, face)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", added.ID, added)
			return nil
		})
	},
}

var characterListCmd = &cobra.Command{
	Use:   "list",
	Short: "登録済みのキャラクターを表示するのだ。",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withManager(cmd, func(_ context.Context, mgr *workflow.Manager) error {
			out := cmd.OutOrStdout()
			for _, c := range mgr.Characters().List() {
				fmt.Fprintf(out, "%s  %s\n    appearance: %s\n", c.ID, c, c.VisualDescription())
			}
			return nil
		})
	},
}

var characterRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "キャラクターを削除するのだ。",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(cmd, func(_ context.Context, mgr *workflow.Manager) error {
			if !mgr.Characters().Remove(domain.CharacterID(args[0])) {
				return fmt.Errorf("キャラクターが見つからないのだ: %s", args[0])
			}
			return nil
		})
	},
}

var characterFaceCmd = &cobra.Command{
	Use:     "face <image>",
	Short:   "顔画像から外見の説明を作って表示するのだ。登録はしないのだ。",
	Args:    cobra.ExactArgs(1),
	PreRunE: requireAPIKey,
	RunE: func(cmd *cobra.Command, args []string) error {
		face, err := readFaceImage(args[0])
		if err != nil {
			return err
		}
		return withManager(cmd, func(ctx context.Context, mgr *workflow.Manager) error {
			c, err := mgr.Faces().Analyze(ctx, domain.Character{}, face)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), c.FaceDescription)
			return nil
		})
	},
}

// readFaceImage は画像ファイルを data URL にするのだ。
func readFaceImage(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("顔画像を読み込めなかったのだ: %w", err)
	}
	img := &imagedom.ImageResponse{Data: data, MimeType: http.DetectContentType(data)}
	return domain.EncodeDataURL(img), nil
}

func init() {
	f := characterAddCmd.Flags()
	f.StringVarP(&charOpts.Name, "name", "n", "", "名前なのだ（必須）。")
	f.StringVarP(&charOpts.Type, "type", "t", string(domain.CharacterHero), "役割（Hero|Villain|Sidekick）なのだ。")
	f.StringVar(&charOpts.Appearance, "appearance", "", "外見なのだ。")
	f.StringVar(&charOpts.Personality, "personality", "", "性格なのだ。")
	f.StringVar(&charOpts.Powers, "powers", "", "能力なのだ。")
	f.StringVar(&charOpts.Face, "face", "", "顔画像のファイル（PNG/JPEG/WEBP）なのだ。")

	characterCmd.AddCommand(characterAddCmd, characterListCmd, characterRemoveCmd, characterFaceCmd)
}
