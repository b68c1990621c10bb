// Package latexfix 实现确定性的 LaTeX 定界符修复引擎。
//
// 输入是带有部分或不一致数学标记的题干/解析文本，输出保证每段数学
// 表达式都被 $...$（行内）或 $$...$$（行间）正确包裹，已经正确的
// 片段原样保留。整条流水线是纯函数：无 I/O、无跨调用共享状态，
// 可以在不同文本上并发调用。
//
// 流水线：规范化 → 保护已有定界符 → 裸公式检测包裹（规则级联）→
// 还原 → 相邻公式合并（不动点循环）→ 收尾清理。
package latexfix

// document 单次修复调用的可变文本缓冲
type document struct {
	text        string
	spans       *spanTable
	cfg         *Config
	mergePasses int
}

func newDocument(text string, cfg *Config) *document {
	return &document{
		text:  text,
		spans: newSpanTable(),
		cfg:   cfg,
	}
}

// Fixer 定界符修复器，带一份启发式配置，可并发使用
type Fixer struct {
	cfg *Config
}

// New 用默认配置创建修复器
func New() *Fixer {
	return &Fixer{cfg: DefaultConfig()}
}

// NewWithConfig 用指定配置创建修复器
func NewWithConfig(cfg *Config) *Fixer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	applyDefaults(cfg)
	return &Fixer{cfg: cfg}
}

// Repair 修复文本中的数学定界符。确定性、全函数（永不失败）、幂等。
func (f *Fixer) Repair(text string) string {
	out, _ := f.repair(text)
	return out
}

// repair 返回修复结果和合并阶段实际执行的轮数（测试用）
func (f *Fixer) repair(text string) (string, int) {
	if text == "" {
		return text, 0
	}
	d := newDocument(text, f.cfg)
	d.normalize()
	d.protectExisting()
	d.applyRules()
	d.restoreSpans()
	d.merge()
	d.cleanup()
	return d.text, d.mergePasses
}

// defaultFixer 包级入口共用的默认修复器，无状态，可并发
var defaultFixer = New()

// Repair 用默认配置修复文本
func Repair(text string) string {
	return defaultFixer.Repair(text)
}
