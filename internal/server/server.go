package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/tikubank/qbank-admin/internal/config"
	"github.com/tikubank/qbank-admin/internal/importer"
	"github.com/tikubank/qbank-admin/internal/objstore"
	"github.com/tikubank/qbank-admin/internal/store"
	"github.com/tikubank/qbank-admin/pkg/latexfix"
)

// DelimiterFixer 模型兜底修复端，未配置时为 nil
type DelimiterFixer interface {
	FixDelimiters(ctx context.Context, text string) (string, error)
}

// Server 管理后台 HTTP 服务
type Server struct {
	echo     *echo.Echo
	store    *store.Store
	fixer    *latexfix.Fixer
	llm      DelimiterFixer
	uploader objstore.Uploader
	importer *importer.Importer
	cfg      *config.Config
	logger   *zap.Logger
}

// New 组装路由和中间件
func New(cfg *config.Config, s *store.Store, fixer *latexfix.Fixer, llm DelimiterFixer, uploader objstore.Uploader, logger *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:     e,
		store:    s,
		fixer:    fixer,
		llm:      llm,
		uploader: uploader,
		importer: importer.New(fixer),
		cfg:      cfg,
		logger:   logger,
	}

	e.Use(middleware.Recover())
	e.Use(srv.requestLogger())

	api := e.Group("/api")
	api.POST("/login", srv.handleLogin)

	auth := api.Group("", srv.sessionMiddleware)
	auth.POST("/logout", srv.handleLogout)
	auth.GET("/me", srv.handleMe)

	auth.GET("/questions", srv.handleListQuestions)
	auth.POST("/questions", srv.handleCreateQuestion)
	auth.POST("/questions/import", srv.handleImport)
	auth.GET("/questions/export", srv.handleExport)
	auth.GET("/questions/:id", srv.handleGetQuestion)
	auth.PUT("/questions/:id", srv.handleUpdateQuestion)
	auth.DELETE("/questions/:id", srv.handleDeleteQuestion)
	auth.POST("/questions/:id/verify", srv.handleVerifyQuestion)
	auth.POST("/questions/:id/fix", srv.handleFixQuestion)
	auth.GET("/questions/:id/preview", srv.handleQuestionPreview)

	auth.POST("/latex/repair", srv.handleLatexRepair)
	auth.POST("/latex/validate", srv.handleLatexValidate)
	auth.POST("/latex/stats", srv.handleLatexStats)
	auth.POST("/preview", srv.handlePreview)

	auth.GET("/queues", srv.handleListTasks)
	auth.POST("/queues", srv.handleCreateTask)
	auth.GET("/queues/:id", srv.handleGetTask)

	return srv
}

// Start 启动监听直到 Shutdown
func (s *Server) Start() error {
	s.echo.Server.ReadTimeout = time.Duration(s.cfg.Server.ReadTimeout) * time.Second
	s.echo.Server.WriteTimeout = time.Duration(s.cfg.Server.WriteTimeout) * time.Second
	s.logger.Info("管理后台启动", zap.String("addr", s.cfg.Server.Addr))
	return s.echo.Start(s.cfg.Server.Addr)
}

// Shutdown 优雅停机
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler 暴露底层 handler，测试用
func (s *Server) Handler() http.Handler {
	return s.echo
}

// requestLogger 结构化记录每个请求
func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Info("请求",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency))
			return nil
		},
	})
}

// errorResponse 统一的错误响应体
type errorResponse struct {
	Error string `json:"error"`
}

func jsonError(c echo.Context, code int, msg string) error {
	return c.JSON(code, errorResponse{Error: msg})
}
