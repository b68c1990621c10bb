package latexfix

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func runMerge(t *testing.T, input string) string {
	t.Helper()
	d := newDocument(input, DefaultConfig())
	d.merge()
	return d.text
}

func TestMergeConnectives(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "等号连接",
			input:    `$x$ = $y$`,
			expected: `$x = y$`,
		},
		{
			name:     "加号连接",
			input:    `$a$+$b$`,
			expected: `$a+b$`,
		},
		{
			name:     "逗号连接",
			input:    `$x_{1}$, $x_{2}$`,
			expected: `$x_{1}, x_{2}$`,
		},
		{
			name:     "单个小写字母桥接（已知误合并风险，按原语义保留）",
			input:    `$5$ m $s^{-1}$`,
			expected: `$5 m s^{-1}$`,
		},
		{
			name:     "两侧都带命令时忽略一两个空白",
			input:    `$\alpha$ $\beta$`,
			expected: `$\alpha \beta$`,
		},
		{
			name:     "两侧不都带命令时空白不可跨越",
			input:    `$x$ $y$`,
			expected: `$x$ $y$`,
		},
		{
			name:     "三角函数命令与度数合并，单空格拼接",
			input:    `$\cos$ $45^{\circ}$`,
			expected: `$\cos 45^{\circ}$`,
		},
		{
			name:     "链式合并在一轮扫描内完成",
			input:    `$a$ + $b$ + $c$ + $d$`,
			expected: `$a + b + c + d$`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, runMerge(t, tt.input))
		})
	}
}

func TestMergeDisqualifiers(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "句号结尾的连接文本不合并",
			input:    `$x$. $y$`,
			expected: `$x$. $y$`,
		},
		{
			name:     "分号结尾的连接文本不合并",
			input:    `$x$; $y$`,
			expected: `$x$; $y$`,
		},
		{
			name:     "冒号加换行不合并",
			input:    "$x$:\n$y$",
			expected: "$x$:\n$y$",
		},
		{
			name:     "散文连接不合并",
			input:    `$x$ equals $y$`,
			expected: `$x$ equals $y$`,
		},
		{
			name:     "行间公式不参与合并",
			input:    `$$a$$ + $$b$$`,
			expected: `$$a$$ + $$b$$`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, runMerge(t, tt.input))
		})
	}
}

func TestMergeReachesFixedPoint(t *testing.T) {
	d := newDocument(`$a$ = $b$ = $c$`, DefaultConfig())
	d.merge()
	assert.Equal(t, `$a = b = c$`, d.text)
	assert.LessOrEqual(t, d.mergePasses, defaultMaxMergePasses)

	// 已经是不动点的输入只需一轮确认
	d2 := newDocument(`$a = b$ and prose`, DefaultConfig())
	d2.merge()
	assert.Equal(t, `$a = b$ and prose`, d2.text)
	assert.Equal(t, 1, d2.mergePasses)
}
