// Package server は Manager の操作を HTTP API とイベントストリームとして公開します。
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shouni/go-comic-kit/internal/logging"
	"github.com/shouni/go-comic-kit/pkg/domain"
	"github.com/shouni/go-comic-kit/pkg/session"
	"github.com/shouni/go-comic-kit/pkg/workflow"
)

const shutdownTimeout = 10 * time.Second

// Server は gin のルーターと Manager を保持します。
type Server struct {
	mgr    *workflow.Manager
	engine *gin.Engine
	logger *slog.Logger
}

// New はルートを登録した Server を返します。
func New(mgr *workflow.Manager) *Server {
	s := &Server{
		mgr:    mgr,
		engine: gin.New(),
		logger: logging.WithComponent("server"),
	}
	s.engine.Use(gin.Recovery(), s.requestLogger())
	s.routes()
	return s
}

// Handler は http.Handler としてのルーターを返します。
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() {
	r := s.engine
	r.GET("/ws/events", s.streamEvents)

	api := r.Group("/api")
	{
		api.GET("/state", s.getState)
		api.PUT("/prompt", s.putPrompt)
		api.POST("/suggest", s.postSuggest)
		api.POST("/strip", s.postStrip)
		api.POST("/story", s.postStory)
		api.PUT("/page", s.putPage)
		api.POST("/narration/toggle", s.postNarration)

		editGroup := api.Group("/edit")
		{
			editGroup.POST("", s.postEdit)
			editGroup.POST("/preset", s.postPreset)
			editGroup.GET("/presets", s.getPresets)
		}

		historyGroup := api.Group("/history")
		{
			historyGroup.GET("", s.getHistory)
			historyGroup.DELETE("", s.deleteHistory)
			historyGroup.POST("/:index/load", s.loadHistory)
		}

		draftGroup := api.Group("/draft")
		{
			draftGroup.GET("", s.getDraft)
			draftGroup.POST("/resume", s.resumeDraft)
			draftGroup.DELETE("", s.deleteDraft)
		}

		charGroup := api.Group("/characters")
		{
			charGroup.GET("", s.listCharacters)
			charGroup.POST("", s.addCharacter)
			charGroup.DELETE("/:id", s.removeCharacter)
		}

		api.GET("/theme", s.getTheme)
		api.PUT("/theme", s.putTheme)

		exportGroup := api.Group("/export")
		{
			exportGroup.GET("/page/:page", s.exportPage)
			exportGroup.GET("/webcomic", s.exportWebcomic)
			exportGroup.GET("/pdf", s.exportPDF)
		}
	}
}

// Run は addr で待ち受け、ctx が終了したら停止します。
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP サーバーを起動しました", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP サーバーが停止しました: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP サーバーの停止に失敗しました: %w", err)
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
		)
	}
}

// errorResponse は API のエラー応答です。
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeError はエラーの種類に応じたステータスコードで応答します。
func writeError(c *gin.Context, err error) {
	if errors.Is(err, session.ErrBusy) {
		c.JSON(http.StatusConflict, errorResponse{Error: "busy", Message: err.Error()})
		return
	}

	status := http.StatusInternalServerError
	kind := "internal"
	var opErr *domain.OperationError
	if errors.As(err, &opErr) {
		kind = opErr.Kind.String()
		switch opErr.Kind {
		case domain.KindValidation:
			status = http.StatusBadRequest
		case domain.KindRateLimited:
			status = http.StatusTooManyRequests
		case domain.KindCapabilityUnavailable:
			status = http.StatusNotImplemented
		case domain.KindStorageQuotaExceeded:
			status = http.StatusInsufficientStorage
		case domain.KindGenerationFailed, domain.KindEditFailed:
			status = http.StatusBadGateway
		}
	}
	c.JSON(status, errorResponse{Error: kind, Message: domain.UserMessage(err)})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: "bad_request", Message: err.Error()})
}

// detached はリクエストが切断されても生成を続けるための context を返します。
func detached(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}
