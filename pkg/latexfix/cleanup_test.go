package latexfix

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanupText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "空定界符对折叠成空格",
			input:    `before $ $ after`,
			expected: `before   after`,
		},
		{
			name:     "上标里二次包裹的度数符号修成外层包裹",
			input:    `$45^{$\circ$}$`,
			expected: `$45^{\circ}$`,
		},
		{
			name:     "完好的行间公式不动",
			input:    `$$a+b=c$$`,
			expected: `$$a+b=c$$`,
		},
		{
			name:     "完好的行内公式不动",
			input:    `$x+y$ prose $z$`,
			expected: `$x+y$ prose $z$`,
		},
		{
			name:     "落单的定界符去掉",
			input:    `stray $ dollar`,
			expected: `stray  dollar`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, cleanupText(tt.input))
		})
	}
}

func TestCleanupDoubleWrap(t *testing.T) {
	// 重复包裹的片段拆掉外层定界符
	st := newSpanTable()
	ph := st.protect(`$x+y$`)
	got := st.restore(cleanupTextWith(`$`+ph+`$`, st))
	assert.Equal(t, `$x+y$`, got)
}

// cleanupTextWith 复用外部 spanTable 的清理，测试占位符交互用
func cleanupTextWith(text string, st *spanTable) string {
	for {
		next := doubleWrapDisplayRe.ReplaceAllString(text, `$1`)
		next = doubleWrapInlineRe.ReplaceAllString(next, `$1`)
		next = emptyPairRe.ReplaceAllString(next, " ")
		if next == text {
			break
		}
		text = next
	}
	return text
}
