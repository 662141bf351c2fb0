package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	clibase "github.com/shouni/go-cli-base"
	"github.com/spf13/cobra"

	appconfig "github.com/shouni/go-comic-kit/internal/config"
	"github.com/shouni/go-comic-kit/internal/logging"
	"github.com/shouni/go-comic-kit/pkg/events"
	"github.com/shouni/go-comic-kit/pkg/workflow"
)

// appName はコマンド名なのだ。
const appName = "comic"

// globalFlags はすべてのコマンドで使えるフラグなのだ。
// --config と --verbose は clibase が定義するので、ここには置かないのだ。
type globalFlags struct {
	StorePath string
	OutputDir string
	LogLevel  string
	LogFormat string
	LogFile   string
	Quiet     bool
}

var (
	flags    globalFlags
	settings appconfig.Settings
	logClose io.Closer
)

// newRootCmd は clibase のルートコマンドにこのアプリの説明と後処理を載せるのだ。
func newRootCmd() *cobra.Command {
	root := clibase.NewRootCmd(appName, addAppFlags, preRunAppE)
	root.Short = "プロンプトから漫画を作って、編集して、書き出すのだ。"
	root.Long = `テキストのプロンプトから4コマ漫画や3ページの物語を生成するのだ。
作業中の内容はドラフトとして自動保存されるので、次のコマンドで続きから編集や書き出しができるのだよ。`
	root.SilenceUsage = true
	root.PersistentPostRunE = postRunAppE
	return root
}

// addAppFlags はグローバルフラグを定義するのだ。
func addAppFlags(rootCmd *cobra.Command) {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.StorePath, "store", "", "ドラフトと履歴を保存する SQLite ファイルなのだ。空ならメモリだけなのだ。")
	pf.StringVar(&flags.OutputDir, "output-dir", "", "書き出し先のディレクトリなのだ。")
	pf.StringVar(&flags.LogLevel, "log-level", "", "ログレベル（debug|info|warn|error）なのだ。")
	pf.StringVar(&flags.LogFormat, "log-format", "", "ログ形式（console|json）なのだ。")
	pf.StringVar(&flags.LogFile, "log-file", "", "ローテーション付きのログファイルなのだ。")
	pf.BoolVarP(&flags.Quiet, "quiet", "q", false, "進捗と通知を表示しないのだ。")
}

// preRunAppE は設定を読み込み、ロガーを初期化するのだ。
// 設定ファイルは clibase の --config（なければ COMIC_CONFIG）から読むのだ。
func preRunAppE(cmd *cobra.Command, _ []string) error {
	s, err := appconfig.Load(appconfig.LoadOptions{ConfigFile: clibase.Flags.ConfigFile})
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("store") {
		s.Comic.StorePath = flags.StorePath
	}
	if flags.OutputDir != "" {
		s.Comic.OutputDir = flags.OutputDir
	}
	switch {
	case flags.LogLevel != "":
		s.Logging.Level = flags.LogLevel
	case clibase.Flags.Verbose:
		s.Logging.Level = "debug"
	}
	if flags.LogFormat != "" {
		s.Logging.Format = flags.LogFormat
	}
	if flags.LogFile != "" {
		s.Logging.File = flags.LogFile
	}
	settings = s
	_, logClose = logging.Init(s.Logging)
	return nil
}

func postRunAppE(*cobra.Command, []string) error {
	if logClose != nil {
		return logClose.Close()
	}
	return nil
}

// requireAPIKey は生成 AI を使うコマンドの前に API キーを確認するのだ。
func requireAPIKey(*cobra.Command, []string) error {
	if settings.Comic.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY が設定されていないのだ。環境変数か `comic auth set-key` で設定してほしいのだ")
	}
	return nil
}

// withManager は Manager を作り、保存済みのドラフトを復元してから fn を実行するのだ。
// 終了時には予約中のドラフトを書き出すのだ。
func withManager(cmd *cobra.Command, fn func(ctx context.Context, mgr *workflow.Manager) error) error {
	ctx := cmd.Context()
	mgr, err := workflow.New(ctx, workflow.ManagerArgs{
		Config:  settings.Comic,
		OnEvent: eventPrinter(cmd.ErrOrStderr()),
	})
	if err != nil {
		return err
	}

	if ok, err := mgr.Persistence().HasDraft(ctx); err == nil && ok {
		if _, err := mgr.ResumeDraft(ctx); err != nil {
			slog.WarnContext(ctx, "ドラフトを復元できなかったのだ", "error", err)
		}
	}

	runErr := fn(ctx, mgr)
	if err := mgr.Close(context.WithoutCancel(ctx)); err != nil {
		slog.ErrorContext(ctx, "終了処理に失敗したのだ", "error", err)
	}
	return runErr
}

// eventPrinter は進捗と通知を人が読める形で出すのだ。
func eventPrinter(w io.Writer) func(events.Event) {
	return func(ev events.Event) {
		if flags.Quiet {
			return
		}
		switch ev.Kind {
		case events.KindProgress:
			fmt.Fprintf(w, "… %s\n", ev.Message)
		case events.KindNotice:
			fmt.Fprintf(w, "• %s\n", ev.Message)
		case events.KindError:
			fmt.Fprintf(w, "✗ %s\n", ev.Message)
		}
	}
}

// Execute はアプリケーションのメインエントリポイントなのだ。
// main.go から呼び出されて、cobra のコマンドライン解析を開始するのだよ。
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCmd()
	rootCmd.AddCommand(
		stripCmd,
		storyCmd,
		suggestCmd,
		editCmd,
		historyCmd,
		draftCmd,
		characterCmd,
		exportCmd,
		themeCmd,
		serveCmd,
		authCmd,
	)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "エラー:", err)
		}
		stop()
		os.Exit(1)
	}
}
