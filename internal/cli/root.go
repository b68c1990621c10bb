package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tikubank/qbank-admin/internal/config"
	"github.com/tikubank/qbank-admin/internal/logger"
	"github.com/tikubank/qbank-admin/pkg/latexfix"
)

var (
	configPath string
	debugMode  bool
)

// NewRootCmd 构建命令树
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "qbank-admin",
		Short: "题库管理后台",
		Long:  "题库管理后台：题目审核、LaTeX 定界符修复、导入导出和生成队列。",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "配置文件路径")
	root.PersistentFlags().BoolVar(&debugMode, "debug", false, "输出调试日志")

	root.AddCommand(newServeCmd())
	root.AddCommand(newFixCmd())
	root.AddCommand(newCheckCmd())
	return root
}

// Execute 运行入口
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig 加载配置，--debug 覆盖配置文件
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if debugMode {
		cfg.Debug = true
	}
	return cfg, logger.NewLogger(cfg.Debug), nil
}

// newFixer 按配置创建修复引擎，没配就用内置默认
func newFixer(cfg *config.Config) (*latexfix.Fixer, error) {
	if cfg.LatexFixConfig == "" {
		return latexfix.New(), nil
	}
	fixCfg, err := latexfix.LoadConfig(cfg.LatexFixConfig)
	if err != nil {
		return nil, fmt.Errorf("加载修复引擎配置失败: %w", err)
	}
	return latexfix.NewWithConfig(fixCfg), nil
}
