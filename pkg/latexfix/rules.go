package latexfix

import (
	"regexp"
	"strings"

	"github.com/dlclark/regexp2"
)

// wrapRule 一条裸公式包裹规则
//
// 规则按从特殊到一般的顺序执行，每条规则包裹完立即保护，
// 后面的规则看不到前面规则的产物，不会重复包裹。
type wrapRule struct {
	name  string
	apply func(d *document)
}

// rules 返回有序的规则表
func (d *document) rules() []wrapRule {
	return []wrapRule{
		{name: "trig-degree", apply: (*document).ruleTrigDegree},
		{name: "compare-line", apply: (*document).ruleCompareLine},
		{name: "equation", apply: (*document).ruleEquation},
		{name: "residual-token", apply: (*document).ruleResidualTokens},
	}
}

// applyRules 依次执行裸公式检测规则
func (d *document) applyRules() {
	for _, r := range d.rules() {
		r.apply(d)
	}
}

// wrapInline 把一段裸公式包成行内公式并立即保护，
// 返回占位符。内嵌的占位符先展开并剥掉定界符。
func (d *document) wrapInline(m string) string {
	return d.spans.protect("$" + d.spans.flatten(m) + "$")
}

// ---- 规则 1：三角函数 + 度数 ----

// ruleTrigDegree 三角函数命令紧跟数字和 ^{\circ} 后缀时整体包裹，
// 先于通用命令规则执行，避免被拆成两段
func (d *document) ruleTrigDegree() {
	re := regexp.MustCompile(`\\(?:` + strings.Join(d.cfg.TrigCommands, "|") + `)\s*\d+(?:\.\d+)?\s*\^\{\\circ\}`)
	d.text = re.ReplaceAllStringFunc(d.text, d.wrapInline)
}

// ---- 规则 2：整行比较 ----

var (
	// 标记 token：反斜杠命令或上下标花括号
	markupTokenRe = regexp.MustCompile(`\\[a-zA-Z]+|[_^]\{`)
	// 比较/相等运算符
	comparisonRe = regexp.MustCompile(`=|<|>|≤|≥|≠|\\leq?\b|\\geq?\b|\\neq?\b`)
	// 首个纯字母单词
	leadingWordRe = regexp.MustCompile(`^[A-Za-z]+`)
	// 普通的首字母大写单词（数学标识符通常是单字母，不算）
	capitalizedWordRe = regexp.MustCompile(`^[A-Z][a-z]+$`)
)

// ruleCompareLine 整行至少有两个标记 token 且含比较运算符时，
// 整行包成一个行内公式。行首像普通句子开头的不包，
// 留给等式规则去包行内的数学部分。
func (d *document) ruleCompareLine() {
	lines := strings.Split(d.text, "\n")
	for i, line := range lines {
		core := strings.TrimSpace(line)
		if core == "" {
			continue
		}
		if len(markupTokenRe.FindAllString(core, -1)) < 2 {
			continue
		}
		if !comparisonRe.MatchString(core) {
			continue
		}
		if d.opensLikeSentence(core) {
			continue
		}
		head := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		lines[i] = head + d.wrapInline(core)
	}
	d.text = strings.Join(lines, "\n")
}

// opensLikeSentence 行首单词是否像普通句子的开头
func (d *document) opensLikeSentence(line string) bool {
	word := leadingWordRe.FindString(line)
	if word == "" {
		return false
	}
	for _, opener := range d.cfg.SentenceOpeners {
		if strings.EqualFold(word, opener) {
			return true
		}
	}
	return capitalizedWordRe.MatchString(word)
}

// ---- 规则 3：等式 ----

// equationRe 延迟构建：token（命令/标识符/占位符）+ 可选上下标 + "=" + 右侧，
// 在句末标点、换行或从句关键词前截断，从句不吸收进公式
func (d *document) equationRe() *regexp2.Regexp {
	token := `(?:\\[a-zA-Z]+(?:\{[^{}]*\})*|\x01\d+\x02|[A-Za-z][A-Za-z0-9]*)`
	scripts := `(?:[_^](?:\{[^{}]*\}|[A-Za-z0-9]))*`
	keywords := strings.Join(d.cfg.ClauseKeywords, "|")
	// 右侧在从句关键词、普通小写单词（两个字母以上且不带数学后缀）、
	// 句末标点或换行前截断
	stop := `(?=\s+(?:` + keywords + `)\b|\s+[a-z]{2,}\b(?![_^{\\(])|[.!?;](?:\s|$)|\n|$)`
	return regexp2.MustCompile(`(?<![A-Za-z0-9\\])`+token+scripts+`\s*=\s*[^\n]+?`+stop, 0)
}

var arithOpRe = regexp.MustCompile(`[+\-*/×·]`)

// ruleEquation 形如 "token = 右侧" 的片段包成行内公式。
// 匹配里必须带标记，或右侧带算术运算符，否则当普通文字等式放过
// （例如 "Hence x = 5."）。
func (d *document) ruleEquation() {
	d.text = replaceAllFunc2(d.equationRe(), d.text, func(m string) string {
		eq := strings.Index(m, "=")
		rhs := m[eq+1:]
		if !markupTokenRe.MatchString(m) && !arithOpRe.MatchString(rhs) {
			return m
		}
		return d.wrapInline(strings.TrimSpace(m))
	})
}

// ---- 规则 4：残余孤立标记 ----

var residualRes = []*regexp.Regexp{
	// 独立度数写法 NN^{\circ}
	regexp.MustCompile(`\b\d+(?:\.\d+)?\^\{\\circ\}`),
	// 裸命令，可带方括号参数、花括号参数和上下标
	regexp.MustCompile(`\\[a-zA-Z]+(?:\[[^\[\]]*\])?(?:\{[^{}]*\})*(?:[_^](?:\{[^{}]*\}|[A-Za-z0-9]))*`),
	// 带上下标的标识符
	regexp.MustCompile(`\b[A-Za-z][A-Za-z0-9]*(?:[_^](?:\{[^{}]*\}|[A-Za-z0-9]))+`),
}

// ruleResidualTokens 剩下的孤立标记逐个包成行内公式
func (d *document) ruleResidualTokens() {
	for _, re := range residualRes {
		d.text = re.ReplaceAllStringFunc(d.text, d.wrapInline)
	}
}
