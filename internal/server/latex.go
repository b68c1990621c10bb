package server

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	mathjax "github.com/litao91/goldmark-mathjax"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/tikubank/qbank-admin/internal/store"
	"github.com/tikubank/qbank-admin/pkg/latexfix"
)

type textRequest struct {
	Text string `json:"text"`
}

type repairResponse struct {
	Text    string `json:"text"`
	Changed bool   `json:"changed"`
}

// handleLatexRepair 对任意文本跑定界符修复，不落库
func (s *Server) handleLatexRepair(c echo.Context) error {
	var req textRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "请求体格式错误")
	}
	fixed := s.fixer.Repair(req.Text)
	return c.JSON(http.StatusOK, repairResponse{
		Text:    fixed,
		Changed: fixed != req.Text,
	})
}

// handleLatexValidate 只校验不修改
func (s *Server) handleLatexValidate(c echo.Context) error {
	var req textRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "请求体格式错误")
	}
	return c.JSON(http.StatusOK, latexfix.Validate(req.Text))
}

// handleLatexStats 统计公式和命令数量
func (s *Server) handleLatexStats(c echo.Context) error {
	var req textRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "请求体格式错误")
	}
	return c.JSON(http.StatusOK, latexfix.Stats(req.Text))
}

// previewMarkdown 带 MathJax 数学块的 Markdown 渲染器
var previewMarkdown = goldmark.New(
	goldmark.WithExtensions(mathjax.MathJax),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

type previewResponse struct {
	HTML string `json:"html"`
}

// handlePreview 把题目文本渲染成带数学块的 HTML，前端直接交给 MathJax
func (s *Server) handlePreview(c echo.Context) error {
	var req textRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "请求体格式错误")
	}

	html, err := renderMath(req.Text)
	if err != nil {
		return jsonError(c, http.StatusInternalServerError, "渲染失败")
	}
	return c.JSON(http.StatusOK, previewResponse{HTML: html})
}

type questionPreviewResponse struct {
	Stem     string   `json:"stem"`
	Options  []string `json:"options"`
	Answer   string   `json:"answer"`
	Analysis string   `json:"analysis"`
}

// handleQuestionPreview 渲染一道题的全部字段
func (s *Server) handleQuestionPreview(c echo.Context) error {
	q, err := s.store.GetQuestion(c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return jsonError(c, http.StatusNotFound, "题目不存在")
		}
		return jsonError(c, http.StatusInternalServerError, "查询题目失败")
	}

	var resp questionPreviewResponse
	if resp.Stem, err = renderMath(q.Stem); err != nil {
		return jsonError(c, http.StatusInternalServerError, "渲染失败")
	}
	if resp.Answer, err = renderMath(q.Answer); err != nil {
		return jsonError(c, http.StatusInternalServerError, "渲染失败")
	}
	if resp.Analysis, err = renderMath(q.Analysis); err != nil {
		return jsonError(c, http.StatusInternalServerError, "渲染失败")
	}
	for _, opt := range q.Options {
		html, err := renderMath(opt)
		if err != nil {
			return jsonError(c, http.StatusInternalServerError, "渲染失败")
		}
		resp.Options = append(resp.Options, html)
	}
	return c.JSON(http.StatusOK, resp)
}

// renderMath Markdown → HTML，数学块原样透传给前端渲染
func renderMath(text string) (string, error) {
	if text == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := previewMarkdown.Convert([]byte(text), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
