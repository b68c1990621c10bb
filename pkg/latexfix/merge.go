package latexfix

import (
	"regexp"
	"strings"
)

// mathSpan 文本中一段带定界符的公式
type mathSpan struct {
	start   int // 含起始定界符
	end     int // 不含，指向结束定界符之后
	display bool
}

// content 去掉定界符后的公式内容
func (s mathSpan) content(text string) string {
	if s.display {
		return text[s.start+2 : s.end-2]
	}
	return text[s.start+1 : s.end-1]
}

var (
	// 可合并的连接文本：运算符或逗号，允许两侧空白
	connectiveOpRe = regexp.MustCompile(`^\s*[+\-=<>×·∙,]\s*$`)
	// 单个小写字母桥接（常见于把单位/变量写在公式外面的写法，
	// 在普通散文里有误合并风险，语义按原样保留）
	connectiveLetterRe = regexp.MustCompile(`^\s*[a-z]\s*$`)
	// 句末标点结尾的连接文本，绝不跨越
	sentenceEndRe = regexp.MustCompile(`[.!?;]\s*$`)
)

// merge 反复合并 "公式 连接文本 公式" 直到不动点或达到迭代上限
//
// 上限把潜在的无界不动点搜索压成最坏线性的扫描轮数，
// 保证任何输入都能终止。
func (d *document) merge() {
	d.mergePasses = 0
	for pass := 0; pass < d.cfg.MaxMergePasses; pass++ {
		d.mergePasses++
		next, changed := d.mergeOnce(d.text)
		d.text = next
		if !changed {
			break
		}
	}
}

// mergeOnce 从左到右扫一遍，把所有可合并的相邻公式合并掉
func (d *document) mergeOnce(text string) (string, bool) {
	spans := findSpans(text)
	if len(spans) < 2 {
		return text, false
	}

	var b strings.Builder
	changed := false
	// cur 是当前累积的行内公式内容，为空表示没有待合并的左邻
	cur := ""
	flushed := 0

	for i := 0; i < len(spans); i++ {
		s := spans[i]
		if s.display {
			// 行间公式不参与合并，落盘累积的左邻
			if cur != "" {
				b.WriteString("$" + cur + "$")
				cur = ""
			}
			b.WriteString(text[flushed:s.end])
			flushed = s.end
			continue
		}
		if cur == "" {
			b.WriteString(text[flushed:s.start])
			cur = s.content(text)
			flushed = s.end
			continue
		}
		conn := text[flushed:s.start]
		joined, ok := d.joinSpans(cur, conn, s.content(text))
		if ok {
			cur = joined
			flushed = s.end
			changed = true
			continue
		}
		// 不可合并：落盘左邻，右邻成为新的左邻
		b.WriteString("$" + cur + "$")
		b.WriteString(conn)
		cur = s.content(text)
		flushed = s.end
	}
	if cur != "" {
		b.WriteString("$" + cur + "$")
	}
	b.WriteString(text[flushed:])
	return b.String(), changed
}

// joinSpans 判断连接文本是否允许把左右两个行内公式并成一个
func (d *document) joinSpans(left, conn, right string) (string, bool) {
	// 句末标点后面永远是新句子
	if sentenceEndRe.MatchString(strings.TrimRight(conn, " \t\n")) {
		return "", false
	}
	// 冒号 + 换行意味着带标签的陈述到此为止
	trimmed := strings.TrimRight(conn, " \t\n")
	if strings.HasSuffix(trimmed, ":") && strings.Contains(conn[len(trimmed):], "\n") {
		return "", false
	}

	// 三角函数命令在左、度数表达式在右，用单个空格拼接
	if d.endsWithTrigCommand(left) && startsWithDegree(right) && strings.TrimSpace(conn) == "" {
		return left + " " + right, true
	}
	if connectiveOpRe.MatchString(conn) {
		return left + conn + right, true
	}
	if connectiveLetterRe.MatchString(conn) {
		return left + conn + right, true
	}
	// 两侧都明显是公式（各自带命令）时，1-2 个空白字符的间隔可以忽略
	if len(conn) >= 1 && len(conn) <= 2 && strings.TrimSpace(conn) == "" &&
		strings.Contains(left, `\`) && strings.Contains(right, `\`) {
		return left + conn + right, true
	}
	return "", false
}

// endsWithTrigCommand 公式内容以三角函数命令结尾
func (d *document) endsWithTrigCommand(content string) bool {
	content = strings.TrimSpace(content)
	for _, trig := range d.cfg.TrigCommands {
		if strings.HasSuffix(content, `\`+trig) {
			return true
		}
	}
	return false
}

var degreeStartRe = regexp.MustCompile(`^\d+(?:\.\d+)?\^\{\\circ\}`)

// startsWithDegree 公式内容以度数表达式开头
func startsWithDegree(content string) bool {
	return degreeStartRe.MatchString(strings.TrimSpace(content))
}

// findSpans 从左到右找出所有定界完整的公式，跳过转义的 \$
func findSpans(text string) []mathSpan {
	var spans []mathSpan
	i := 0
	for i < len(text) {
		if text[i] == '\\' && i+1 < len(text) {
			i += 2
			continue
		}
		if text[i] != '$' {
			i++
			continue
		}
		if i+1 < len(text) && text[i+1] == '$' {
			// 行间公式，找下一个未转义的 $$
			if end := findClosing(text, i+2, true); end > 0 {
				spans = append(spans, mathSpan{start: i, end: end, display: true})
				i = end
				continue
			}
			i += 2
			continue
		}
		// 行内公式，内容不能跨行
		if end := findClosing(text, i+1, false); end > 0 {
			spans = append(spans, mathSpan{start: i, end: end, display: false})
			i = end
			continue
		}
		i++
	}
	return spans
}

// findClosing 找到结束定界符，返回其后的位置；找不到返回 -1
func findClosing(text string, from int, display bool) int {
	for j := from; j < len(text); j++ {
		switch text[j] {
		case '\\':
			j++
		case '\n':
			if !display {
				return -1
			}
		case '$':
			if display {
				if j+1 < len(text) && text[j+1] == '$' {
					return j + 2
				}
				continue
			}
			if j == from {
				// 空公式对留给清理阶段
				return -1
			}
			return j + 1
		}
	}
	return -1
}
