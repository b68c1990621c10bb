package latexfix

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config 修复引擎的启发式配置
//
// 句首词表和从句关键词表是针对英文解析语料调出来的经验值，
// 作为数据保留，不要写死在规则逻辑里。
type Config struct {
	// SentenceOpeners 句首连接词，整行比较规则遇到这些开头的行不做整行包裹
	SentenceOpeners []string `toml:"sentence_openers"`
	// ClauseKeywords 等式规则的从句关键词，遇到即截断，不吸收进公式
	ClauseKeywords []string `toml:"clause_keywords"`
	// MathEnvironments 按块整体包裹的数学环境白名单
	MathEnvironments []string `toml:"math_environments"`
	// TrigCommands 三角函数命令（不含反斜杠）
	TrigCommands []string `toml:"trig_commands"`
	// MaxMergePasses 相邻公式合并的最大迭代轮数
	MaxMergePasses int `toml:"max_merge_passes"`
}

// defaultMaxMergePasses 合并循环的迭代上限，保证在病态输入上也能终止
const defaultMaxMergePasses = 15

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		SentenceOpeners: []string{
			"Hence", "Therefore", "Since", "Thus", "Then", "Also", "According",
		},
		ClauseKeywords: []string{
			"where", "with", "when", "and", "exactly", "for",
		},
		MathEnvironments: []string{
			"align", "align*", "aligned", "equation", "equation*",
			"gather", "gather*", "cases", "split",
			"matrix", "pmatrix", "bmatrix", "vmatrix",
			"eqnarray", "eqnarray*", "multline", "multline*", "array",
		},
		TrigCommands: []string{
			"sin", "cos", "tan", "cot", "sec", "csc",
		},
		MaxMergePasses: defaultMaxMergePasses,
	}
}

// LoadConfig 从 TOML 文件加载配置，缺省字段用默认值补齐
func LoadConfig(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("latexfix config file not found: %s", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read latexfix config: %w", err)
	}

	cfg := &Config{}
	if err := toml.Unmarshal(content, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal latexfix config: %w", err)
	}

	applyDefaults(cfg)
	return cfg, nil
}

// applyDefaults 补齐缺省字段
func applyDefaults(cfg *Config) {
	def := DefaultConfig()
	if len(cfg.SentenceOpeners) == 0 {
		cfg.SentenceOpeners = def.SentenceOpeners
	}
	if len(cfg.ClauseKeywords) == 0 {
		cfg.ClauseKeywords = def.ClauseKeywords
	}
	if len(cfg.MathEnvironments) == 0 {
		cfg.MathEnvironments = def.MathEnvironments
	}
	if len(cfg.TrigCommands) == 0 {
		cfg.TrigCommands = def.TrigCommands
	}
	if cfg.MaxMergePasses <= 0 {
		cfg.MaxMergePasses = def.MaxMergePasses
	}
}
