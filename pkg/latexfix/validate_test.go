package latexfix

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		isValid bool
	}{
		{"配对的行内公式", `$x+y$`, true},
		{"配对的行间公式", `$$a=b$$`, true},
		{"落单的定界符", `$x+y`, false},
		{"转义的美元符号不计数", `价格 \$5`, true},
		{"未闭合的花括号", `\frac{1}{2`, false},
		{"多余的右花括号", `x}`, false},
		{"转义花括号不计数", `\{x\}`, true},
		{"空文本", ``, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(tt.input)
			assert.Equal(t, tt.isValid, result.IsValid)
			if tt.isValid {
				assert.Empty(t, result.Errors)
			} else {
				assert.NotEmpty(t, result.Errors)
			}
		})
	}
}

func TestValidateIsReadOnly(t *testing.T) {
	// 校验只上报数据，不影响修复结果
	input := `$unbalanced and \frac{1`
	before := Repair(input)
	_ = Validate(input)
	assert.Equal(t, before, Repair(input))
}

func TestStats(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected TextStats
	}{
		{
			name:     "混合文本",
			input:    "prose $x+y$ more $$\\sum_{i} a_i$$ and \\alpha",
			expected: TextStats{InlineMathCount: 1, DisplayMathCount: 1, CommandCount: 2},
		},
		{
			name:     "纯散文",
			input:    "no math at all",
			expected: TextStats{},
		},
		{
			name:     "只有命令没有定界符",
			input:    `\alpha \beta \gamma`,
			expected: TextStats{CommandCount: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Stats(tt.input))
		})
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.Contains(t, cfg.SentenceOpeners, "Hence")
	assert.Contains(t, cfg.ClauseKeywords, "where")
	assert.Contains(t, cfg.MathEnvironments, "aligned")
	assert.Equal(t, defaultMaxMergePasses, cfg.MaxMergePasses)

	// 部分配置补齐默认值
	partial := &Config{SentenceOpeners: []string{"Comment"}}
	f := NewWithConfig(partial)
	assert.Equal(t, []string{"Comment"}, f.cfg.SentenceOpeners)
	assert.Equal(t, defaultMaxMergePasses, f.cfg.MaxMergePasses)
}
