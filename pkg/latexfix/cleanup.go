package latexfix

import (
	"regexp"
	"strings"
)

var (
	// 已知产物：上标花括号里的度数符号被单独二次包裹，如 ^{$\circ$}
	degreeArtifactRe = regexp.MustCompile(`\^\{\s*\$\s*(\\circ)\s*\$\s*\}`)
	// 整个片段被再次包裹：$<占位符>$ / $$<占位符>$$
	doubleWrapInlineRe  = regexp.MustCompile(`\$(\x01[0-9]+\x02)\$`)
	doubleWrapDisplayRe = regexp.MustCompile(`\$\$(\x01[0-9]+\x02)\$\$`)
	// 空定界符对：$$ 或 $ $，内容只有空白
	emptyPairRe = regexp.MustCompile(`\$\s*\$`)
	// 残余的 $ 字符串
	dollarRunRe = regexp.MustCompile(`\${2,}`)
)

// cleanup 收尾清理：修掉规则交互造成的重复包裹、空定界符对和残余 $，
// 并保证输出的未转义 $ 个数为偶数
func (d *document) cleanup() {
	d.text = cleanupText(d.text)
}

func cleanupText(text string) string {
	text = degreeArtifactRe.ReplaceAllString(text, `^{$1}`)

	// 先把完好的公式藏起来，剩下的 $ 都是垃圾
	st := newSpanTable()
	text = protectWellFormed(text, st)

	for {
		next := doubleWrapDisplayRe.ReplaceAllString(text, `$1`)
		next = doubleWrapInlineRe.ReplaceAllString(next, `$1`)
		next = emptyPairRe.ReplaceAllString(next, " ")
		if next == text {
			break
		}
		text = next
	}
	text = dollarRunRe.ReplaceAllString(text, "$$")

	text = dropUnmatchedDollar(text)
	return st.restore(text)
}

// protectWellFormed 把内容非空的完整公式换成占位符。
// 内容只有一个占位符的不再保护，交给重复包裹规则拆掉外层。
func protectWellFormed(text string, st *spanTable) string {
	spans := findSpans(text)
	if len(spans) == 0 {
		return text
	}
	var b strings.Builder
	pos := 0
	for _, s := range spans {
		raw := text[s.start:s.end]
		content := s.content(text)
		b.WriteString(text[pos:s.start])
		if strings.TrimSpace(content) == "" || strings.Contains(content, "$") || placeholderRe.MatchString(content) {
			b.WriteString(raw)
		} else {
			b.WriteString(st.protect(raw))
		}
		pos = s.end
	}
	b.WriteString(text[pos:])
	return b.String()
}

// dropUnmatchedDollar 保护区外的未转义 $ 个数为奇数时，
// 去掉最右边那个，保证输出不携带落单的定界符
func dropUnmatchedDollar(text string) string {
	positions := unescapedDollarPositions(text)
	if len(positions)%2 == 0 {
		return text
	}
	last := positions[len(positions)-1]
	return text[:last] + text[last+1:]
}

// unescapedDollarPositions 未被反斜杠转义的 $ 的位置
func unescapedDollarPositions(text string) []int {
	var out []int
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\\':
			i++
		case '$':
			out = append(out, i)
		}
	}
	return out
}
