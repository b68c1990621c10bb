package importer

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
	"golang.org/x/text/width"

	"github.com/tikubank/qbank-admin/internal/store"
	"github.com/tikubank/qbank-admin/pkg/latexfix"
)

// Importer 把外部题目文件解析成待审核的题目草稿
type Importer struct {
	fixer *latexfix.Fixer
}

// New 创建导入器
func New(fixer *latexfix.Fixer) *Importer {
	return &Importer{fixer: fixer}
}

// 题干正文里的分节标记
const (
	sectionAnswer   = "## 答案"
	sectionAnalysis = "## 解析"
)

// ParseMarkdown 解析带 front matter 的 Markdown 题目文件。
// front matter 提供 subject/type/difficulty，正文按"## 答案"、"## 解析"分节，
// 多道题之间用单独一行 "---" 分隔（首个分隔符之前是 front matter）。
func (im *Importer) ParseMarkdown(data []byte) ([]*store.Question, error) {
	md := goldmark.New(goldmark.WithExtensions(meta.Meta))
	ctx := parser.NewContext()

	var sink bytes.Buffer
	if err := md.Convert(data, &sink, parser.WithContext(ctx)); err != nil {
		return nil, fmt.Errorf("解析 Markdown 失败: %w", err)
	}
	metadata := meta.Get(ctx)

	subject := metaString(metadata, "subject")
	qtype := metaString(metadata, "type")
	if qtype == "" {
		qtype = store.TypeSolution
	}
	difficulty := metaInt(metadata, "difficulty")

	body := stripFrontMatter(string(data))
	var out []*store.Question
	for _, block := range splitBlocks(body) {
		q := im.parseBlock(block, subject, qtype, difficulty)
		if q == nil {
			continue
		}
		out = append(out, q)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("文件中没有可导入的题目")
	}
	return out, nil
}

// parseBlock 解析一道题的正文分节
func (im *Importer) parseBlock(block, subject, qtype string, difficulty int) *store.Question {
	stem := block
	var answer, analysis string

	if i := strings.Index(stem, sectionAnalysis); i >= 0 {
		analysis = strings.TrimSpace(stem[i+len(sectionAnalysis):])
		stem = stem[:i]
	}
	if i := strings.Index(stem, sectionAnswer); i >= 0 {
		answer = strings.TrimSpace(stem[i+len(sectionAnswer):])
		stem = stem[:i]
	}
	stem = strings.TrimSpace(stem)
	if stem == "" {
		return nil
	}

	return im.draft(subject, qtype, difficulty, stem, nil, answer, analysis)
}

// ParseHTML 解析导出的 HTML 题目页。每道题是一个 .question 节点，
// 子节点 .stem/.option/.answer/.analysis 对应各字段。
func (im *Importer) ParseHTML(data []byte, subject string) ([]*store.Question, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("解析 HTML 失败: %w", err)
	}

	var out []*store.Question
	doc.Find(".question").Each(func(_ int, sel *goquery.Selection) {
		stem := strings.TrimSpace(sel.Find(".stem").Text())
		if stem == "" {
			return
		}
		var options []string
		sel.Find(".option").Each(func(_ int, opt *goquery.Selection) {
			if text := strings.TrimSpace(opt.Text()); text != "" {
				options = append(options, text)
			}
		})
		qtype := store.TypeSolution
		if len(options) > 0 {
			qtype = store.TypeChoice
		}
		answer := strings.TrimSpace(sel.Find(".answer").Text())
		analysis := strings.TrimSpace(sel.Find(".analysis").Text())
		out = append(out, im.draft(subject, qtype, 0, stem, options, answer, analysis))
	})
	if len(out) == 0 {
		return nil, fmt.Errorf("页面中没有可导入的题目")
	}
	return out, nil
}

// draft 归一化字段、跑定界符修复，组装待审核草稿
func (im *Importer) draft(subject, qtype string, difficulty int, stem string, options []string, answer, analysis string) *store.Question {
	now := time.Now()
	q := &store.Question{
		ID:         uuid.NewString(),
		Subject:    subject,
		Type:       qtype,
		Stem:       im.cleanField(stem),
		Answer:     im.cleanField(answer),
		Analysis:   im.cleanField(analysis),
		Difficulty: difficulty,
		Status:     store.StatusPending,
		Source:     "import",
		LatexFixed: true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, opt := range options {
		q.Options = append(q.Options, im.cleanField(opt))
	}
	return q
}

// cleanField 全角转半角后做定界符修复
func (im *Importer) cleanField(s string) string {
	if s == "" {
		return s
	}
	return im.fixer.Repair(normalizeWidth(s))
}

// normalizeWidth 把全角字母、数字和数学符号折叠成半角，汉字不受影响
func normalizeWidth(s string) string {
	return width.Fold.String(s)
}

// stripFrontMatter 去掉文件头部的 YAML front matter
func stripFrontMatter(s string) string {
	if !strings.HasPrefix(s, "---") {
		return s
	}
	rest := s[3:]
	if i := strings.Index(rest, "\n---"); i >= 0 {
		after := rest[i+4:]
		if j := strings.IndexByte(after, '\n'); j >= 0 {
			return after[j+1:]
		}
		return ""
	}
	return s
}

// splitBlocks 按单独成行的 "---" 把正文切成多道题
func splitBlocks(body string) []string {
	var blocks []string
	var cur []string
	for _, line := range strings.Split(body, "\n") {
		if strings.TrimSpace(line) == "---" {
			blocks = append(blocks, strings.Join(cur, "\n"))
			cur = cur[:0]
			continue
		}
		cur = append(cur, line)
	}
	blocks = append(blocks, strings.Join(cur, "\n"))
	return blocks
}

func metaString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func metaInt(m map[string]any, key string) int {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}
