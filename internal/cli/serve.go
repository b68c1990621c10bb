package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tikubank/qbank-admin/internal/llmfix"
	"github.com/tikubank/qbank-admin/internal/objstore"
	"github.com/tikubank/qbank-admin/internal/server"
	"github.com/tikubank/qbank-admin/internal/store"
	"github.com/tikubank/qbank-admin/internal/worker"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动管理后台服务",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	fixer, err := newFixer(cfg)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	// 没配 API key 就不启用模型兜底和生成队列
	var llm *llmfix.Client
	if cfg.LLM.APIKey != "" {
		llm = llmfix.New(llmfix.Options{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     time.Duration(cfg.LLM.Timeout) * time.Second,
			MaxRetries:  cfg.LLM.MaxRetries,
		}, log)
	} else {
		log.Warn("未配置模型 API key，兜底修复和生成队列不可用")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 没配对象存储就落在内存里，导出链接只在进程生命周期内有效
	var uploader objstore.Uploader
	if cfg.ObjectStore.Endpoint != "" {
		uploader, err = objstore.NewMinio(ctx, objstore.Options{
			Endpoint:  cfg.ObjectStore.Endpoint,
			AccessKey: cfg.ObjectStore.AccessKey,
			SecretKey: cfg.ObjectStore.SecretKey,
			Bucket:    cfg.ObjectStore.Bucket,
			UseSSL:    cfg.ObjectStore.UseSSL,
			URLExpiry: time.Duration(cfg.ObjectStore.URLExpiry) * time.Second,
		})
		if err != nil {
			return err
		}
	} else {
		log.Warn("未配置对象存储，导出文件保存在内存")
		uploader = objstore.NewMem()
	}

	var llmFixer server.DelimiterFixer
	if llm != nil {
		llmFixer = llm
	}
	srv := server.New(cfg, st, fixer, llmFixer, uploader, log)

	workerDone := make(chan struct{})
	if llm != nil {
		w := worker.New(st, llm, fixer, log,
			cfg.Worker.Concurrency,
			time.Duration(cfg.Worker.PollInterval)*time.Second)
		go func() {
			defer close(workerDone)
			w.Run(ctx)
		}()
	} else {
		close(workerDone)
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Start()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	log.Info("收到退出信号，开始停机")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("停机失败", zap.Error(err))
	}
	<-workerDone
	return nil
}
