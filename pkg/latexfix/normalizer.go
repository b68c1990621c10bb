package latexfix

import (
	"regexp"
	"strings"
)

var (
	// \[ ... \] → $$ ... $$
	normalizeDisplayRe = regexp.MustCompile(`\\\[([\s\S]*?)\\\]`)
	// \( ... \) → $ ... $，去掉紧贴标记的空白
	normalizeInlineRe = regexp.MustCompile(`\\\(\s*([\s\S]*?)\s*\\\)`)
)

// normalize 把历史写法的定界符统一成 $ / $$ 两种规范形式，
// 不改动其余内容。重复执行结果不变。
func (d *document) normalize() {
	d.text = normalizeDisplayRe.ReplaceAllString(d.text, `$$$$$1$$$$`)
	d.text = normalizeInlineRe.ReplaceAllString(d.text, `$$$1$$`)
	d.text = wrapEnvironments(d.text, d.cfg.MathEnvironments)
}

// wrapEnvironments 把白名单里的数学环境整块包进 $$...$$，
// 已经带定界符的不重复包裹
func wrapEnvironments(text string, envs []string) string {
	for _, env := range envs {
		q := regexp.QuoteMeta(env)
		re := regexp.MustCompile(`\\begin\{` + q + `\}[\s\S]*?\\end\{` + q + `\}`)

		for {
			loc := findUnwrappedEnv(re, text)
			if loc == nil {
				break
			}
			text = text[:loc[0]] + "$$" + text[loc[0]:loc[1]] + "$$" + text[loc[1]:]
		}
	}
	return text
}

// findUnwrappedEnv 返回第一个前后都没有 $ 定界符的环境块位置
func findUnwrappedEnv(re *regexp.Regexp, text string) []int {
	for _, loc := range re.FindAllStringIndex(text, -1) {
		if insideDisplay(text, loc[0]) {
			continue
		}
		if !delimitedBefore(text, loc[0]) && !delimitedAfter(text, loc[1]) {
			return loc
		}
	}
	return nil
}

// insideDisplay 位置之前的 $$ 个数为奇数，说明该位置落在行间公式内部，
// 嵌套环境（如 equation 里的 aligned）不再重复包裹
func insideDisplay(text string, pos int) bool {
	return strings.Count(text[:pos], "$$")%2 == 1
}

// delimitedBefore 块前面最近的非空白字符是否是 $
func delimitedBefore(text string, pos int) bool {
	before := strings.TrimRight(text[:pos], " \t\n")
	return strings.HasSuffix(before, "$")
}

// delimitedAfter 块后面最近的非空白字符是否是 $
func delimitedAfter(text string, pos int) bool {
	after := strings.TrimLeft(text[pos:], " \t\n")
	return strings.HasPrefix(after, "$")
}
