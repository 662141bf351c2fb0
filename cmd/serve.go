package cmd

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	appconfig "github.com/shouni/go-comic-kit/internal/config"
	"github.com/shouni/go-comic-kit/internal/server"
	"github.com/shouni/go-comic-kit/pkg/workflow"
)

var serveAddr string

// serveCmd は HTTP API とイベントストリームを起動するのだ。
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "HTTP API と websocket のイベントストリームを起動するのだ。",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		addr := settings.Comic.ServerAddr
		if serveAddr != "" {
			addr = serveAddr
		}
		return withManager(cmd, func(ctx context.Context, mgr *workflow.Manager) error {
			return server.New(mgr).Run(ctx, addr)
		})
	},
}

// authCmd は API キーを扱うのだ。
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Gemini API キーを OS のキーリングに保存するのだ。",
}

var authSetKeyCmd = &cobra.Command{
	Use:   "set-key [key]",
	Short: "API キーを保存するのだ。省略すると標準入力から読むのだ。",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var key string
		if len(args) == 1 {
			key = args[0]
		} else {
			fmt.Fprint(cmd.ErrOrStderr(), "API key: ")
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("API キーを読み込めなかったのだ: %w", err)
			}
			key = strings.TrimSpace(line)
		}
		if err := appconfig.SaveAPIKey(nil, key); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "API キーを保存したのだ。")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "待ち受けアドレスなのだ（既定は :8080）。")
	authCmd.AddCommand(authSetKeyCmd)
}
