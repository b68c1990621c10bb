package latexfix

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
)

// 占位符用控制字符做边界，任何模式规则都不可能产出这两个字节，
// 因此占位符天然惰性，不会和文档内容冲突。
const (
	placeholderOpen  = "\x01"
	placeholderClose = "\x02"
)

// placeholderRe 匹配一个完整占位符
var placeholderRe = regexp.MustCompile(`\x01([0-9]+)\x02`)

// protectedSpan 一段被保护的原文，按保护顺序追加
type protectedSpan struct {
	id   int
	text string
}

// spanTable 有序的保护片段表，单次修复调用内有效
type spanTable struct {
	spans []protectedSpan
}

func newSpanTable() *spanTable {
	return &spanTable{}
}

// protect 登记一段原文，返回替换用的占位符
func (st *spanTable) protect(text string) string {
	id := len(st.spans)
	st.spans = append(st.spans, protectedSpan{id: id, text: text})
	return placeholderOpen + strconv.Itoa(id) + placeholderClose
}

// restore 把所有占位符替换回原文
//
// 从编号最大的开始还原，后保护的片段可能内嵌先前的占位符。
func (st *spanTable) restore(text string) string {
	for i := len(st.spans) - 1; i >= 0; i-- {
		ph := placeholderOpen + strconv.Itoa(st.spans[i].id) + placeholderClose
		text = strings.ReplaceAll(text, ph, st.spans[i].text)
	}
	return text
}

// flatten 展开文本里内嵌的占位符并剥掉它们的外层定界符
//
// 包裹规则吸收一个已保护片段时用，避免新包裹的公式里出现嵌套 $。
func (st *spanTable) flatten(text string) string {
	for strings.Contains(text, placeholderOpen) {
		replaced := placeholderRe.ReplaceAllStringFunc(text, func(ph string) string {
			id, err := strconv.Atoi(strings.Trim(ph, placeholderOpen+placeholderClose))
			if err != nil || id < 0 || id >= len(st.spans) {
				return ph
			}
			return stripDelimiters(st.spans[id].text)
		})
		if replaced == text {
			break
		}
		text = replaced
	}
	return text
}

// stripDelimiters 去掉片段首尾成对的 $ 或 $$ 定界符
func stripDelimiters(s string) string {
	if strings.HasPrefix(s, "$$") && strings.HasSuffix(s, "$$") && len(s) >= 5 {
		return strings.TrimSpace(s[2 : len(s)-2])
	}
	if strings.HasPrefix(s, "$") && strings.HasSuffix(s, "$") && len(s) >= 3 {
		return strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

var (
	// 保护顺序：行间公式优先于行内公式，行内公式内容不允许跨行。
	// 定界符不能是被转义的 \$，用 regexp2 的负向后顾排除。
	protectDisplayBracketRe = regexp.MustCompile(`\\\[[\s\S]*?\\\]`)
	protectDisplayDollarRe  = regexp2.MustCompile(`(?<!\\)\$\$[\s\S]+?(?<!\\)\$\$`, 0)
	protectInlineParenRe    = regexp.MustCompile(`\\\([^\n]*?\\\)`)
	protectInlineDollarRe   = regexp2.MustCompile(`(?<!\\)\$(?:\\.|[^$\n\\])+(?<!\\)\$`, 0)
)

// protectExisting 把已经正确定界的公式换成占位符，后续规则不可见
func (d *document) protectExisting() {
	d.text = protectDisplayBracketRe.ReplaceAllStringFunc(d.text, d.spans.protect)
	d.text = replaceAllFunc2(protectDisplayDollarRe, d.text, d.spans.protect)
	d.text = protectInlineParenRe.ReplaceAllStringFunc(d.text, d.spans.protect)
	d.text = replaceAllFunc2(protectInlineDollarRe, d.text, d.spans.protect)
}

// restoreSpans 在合并阶段之前把占位符还原成原文，
// 让合并器直接面对定界符层面的相邻关系。
func (d *document) restoreSpans() {
	d.text = d.spans.restore(d.text)
}

// replaceAllFunc2 regexp2 版的 ReplaceAllStringFunc
func replaceAllFunc2(re *regexp2.Regexp, text string, fn func(string) string) string {
	result, err := re.ReplaceFunc(text, func(m regexp2.Match) string {
		return fn(m.String())
	}, -1, -1)
	if err != nil {
		return text
	}
	return result
}
