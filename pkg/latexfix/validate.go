package latexfix

import (
	"fmt"
	"regexp"
)

// ValidationResult 只读校验结果，失衡作为数据上报，不作为错误
type ValidationResult struct {
	IsValid bool     `json:"is_valid"`
	Errors  []string `json:"errors"`
}

// TextStats 公式密度指标，调用方据此决定要不要走后续处理
type TextStats struct {
	InlineMathCount  int `json:"inline_math_count"`
	DisplayMathCount int `json:"display_math_count"`
	CommandCount     int `json:"command_count"`
}

// Validate 检查未配对的 $ 定界符和花括号失衡。只读，不影响 Repair。
func Validate(text string) ValidationResult {
	var errs []string

	if n := len(unescapedDollarPositions(text)); n%2 != 0 {
		errs = append(errs, fmt.Sprintf("unmatched $ delimiter: %d unescaped markers", n))
	}

	depth := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				errs = append(errs, "unexpected closing brace")
				depth = 0
			}
		}
	}
	if depth > 0 {
		errs = append(errs, fmt.Sprintf("%d unclosed braces", depth))
	}

	return ValidationResult{IsValid: len(errs) == 0, Errors: errs}
}

var (
	statsDisplayRe = regexp.MustCompile(`\$\$[\s\S]+?\$\$`)
	statsInlineRe  = regexp.MustCompile(`\$[^$\n]+\$`)
	statsCommandRe = regexp.MustCompile(`\\[a-zA-Z]+`)
)

// Stats 统计行内/行间公式和命令的数量
func Stats(text string) TextStats {
	display := statsDisplayRe.FindAllString(text, -1)
	rest := statsDisplayRe.ReplaceAllString(text, "")
	return TextStats{
		InlineMathCount:  len(statsInlineRe.FindAllString(rest, -1)),
		DisplayMathCount: len(display),
		CommandCount:     len(statsCommandRe.FindAllString(text, -1)),
	}
}
