package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"go.uber.org/zap"

	"github.com/tikubank/qbank-admin/internal/export"
	"github.com/tikubank/qbank-admin/internal/store"
	"github.com/tikubank/qbank-admin/pkg/latexfix"
)

// questionFilter 把查询参数组合成扫描过滤器。
// keyword 用模糊匹配，题干和解析都算。
func questionFilter(subject, status, qtype, keyword string) func(*store.Question) bool {
	if subject == "" && status == "" && qtype == "" && keyword == "" {
		return nil
	}
	return func(q *store.Question) bool {
		if subject != "" && q.Subject != subject {
			return false
		}
		if status != "" && q.Status != status {
			return false
		}
		if qtype != "" && q.Type != qtype {
			return false
		}
		if keyword != "" {
			if !fuzzy.Match(keyword, q.Stem) && !fuzzy.Match(keyword, q.Analysis) {
				return false
			}
		}
		return true
	}
}

func pageParams(c echo.Context) (offset, limit int) {
	offset, _ = strconv.Atoi(c.QueryParam("offset"))
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	if offset < 0 {
		offset = 0
	}
	return offset, limit
}

// handleListQuestions 过滤分页列出题目
func (s *Server) handleListQuestions(c echo.Context) error {
	filter := questionFilter(
		c.QueryParam("subject"),
		c.QueryParam("status"),
		c.QueryParam("type"),
		c.QueryParam("keyword"),
	)
	offset, limit := pageParams(c)

	page, err := s.store.ScanQuestions(filter, offset, limit)
	if err != nil {
		return jsonError(c, http.StatusInternalServerError, "查询题目失败")
	}
	return c.JSON(http.StatusOK, page)
}

// handleCreateQuestion 手工录入一道题，默认跑一遍定界符修复
func (s *Server) handleCreateQuestion(c echo.Context) error {
	var q store.Question
	if err := c.Bind(&q); err != nil {
		return jsonError(c, http.StatusBadRequest, "请求体格式错误")
	}
	if strings.TrimSpace(q.Stem) == "" {
		return jsonError(c, http.StatusBadRequest, "题干不能为空")
	}

	q.ID = uuid.NewString()
	q.Status = store.StatusPending
	if q.Source == "" {
		q.Source = "manual"
	}
	s.repairQuestion(c.Request().Context(), &q, false)
	q.CreatedAt = time.Now()
	q.UpdatedAt = q.CreatedAt

	if err := s.store.PutQuestion(&q); err != nil {
		return jsonError(c, http.StatusInternalServerError, "保存题目失败")
	}
	return c.JSON(http.StatusCreated, q)
}

func (s *Server) handleGetQuestion(c echo.Context) error {
	q, err := s.store.GetQuestion(c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return jsonError(c, http.StatusNotFound, "题目不存在")
		}
		return jsonError(c, http.StatusInternalServerError, "查询题目失败")
	}
	return c.JSON(http.StatusOK, q)
}

// handleUpdateQuestion 整体覆盖一道题，保留创建时间
func (s *Server) handleUpdateQuestion(c echo.Context) error {
	old, err := s.store.GetQuestion(c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return jsonError(c, http.StatusNotFound, "题目不存在")
		}
		return jsonError(c, http.StatusInternalServerError, "查询题目失败")
	}

	var q store.Question
	if err := c.Bind(&q); err != nil {
		return jsonError(c, http.StatusBadRequest, "请求体格式错误")
	}
	q.ID = old.ID
	q.CreatedAt = old.CreatedAt
	q.UpdatedAt = time.Now()
	if q.Status == "" {
		q.Status = old.Status
	}
	if q.Source == "" {
		q.Source = old.Source
	}

	if err := s.store.PutQuestion(&q); err != nil {
		return jsonError(c, http.StatusInternalServerError, "保存题目失败")
	}
	return c.JSON(http.StatusOK, q)
}

func (s *Server) handleDeleteQuestion(c echo.Context) error {
	if err := s.store.DeleteQuestion(c.Param("id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return jsonError(c, http.StatusNotFound, "题目不存在")
		}
		return jsonError(c, http.StatusInternalServerError, "删除题目失败")
	}
	return c.NoContent(http.StatusNoContent)
}

type verifyRequest struct {
	Action string `json:"action"` // approve / reject
}

// handleVerifyQuestion 审核通过或驳回
func (s *Server) handleVerifyQuestion(c echo.Context) error {
	q, err := s.store.GetQuestion(c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return jsonError(c, http.StatusNotFound, "题目不存在")
		}
		return jsonError(c, http.StatusInternalServerError, "查询题目失败")
	}

	var req verifyRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "请求体格式错误")
	}
	switch req.Action {
	case "approve":
		q.Status = store.StatusApproved
	case "reject":
		q.Status = store.StatusRejected
	default:
		return jsonError(c, http.StatusBadRequest, "action 必须是 approve 或 reject")
	}
	q.UpdatedAt = time.Now()

	if err := s.store.PutQuestion(q); err != nil {
		return jsonError(c, http.StatusInternalServerError, "保存题目失败")
	}
	s.logger.Info("题目审核",
		zap.String("question_id", q.ID),
		zap.String("action", req.Action))
	return c.JSON(http.StatusOK, q)
}

// handleFixQuestion 对一道题重跑定界符修复。
// 带 llm=true 且规则引擎修不好时走模型兜底。
func (s *Server) handleFixQuestion(c echo.Context) error {
	q, err := s.store.GetQuestion(c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return jsonError(c, http.StatusNotFound, "题目不存在")
		}
		return jsonError(c, http.StatusInternalServerError, "查询题目失败")
	}

	useLLM := c.QueryParam("llm") == "true"
	s.repairQuestion(c.Request().Context(), q, useLLM)
	q.UpdatedAt = time.Now()

	if err := s.store.PutQuestion(q); err != nil {
		return jsonError(c, http.StatusInternalServerError, "保存题目失败")
	}
	return c.JSON(http.StatusOK, q)
}

// repairQuestion 修复一道题的全部文本字段
func (s *Server) repairQuestion(ctx context.Context, q *store.Question, useLLM bool) {
	q.Stem = s.repairField(ctx, q.Stem, useLLM)
	q.Answer = s.repairField(ctx, q.Answer, useLLM)
	q.Analysis = s.repairField(ctx, q.Analysis, useLLM)
	for i, opt := range q.Options {
		q.Options[i] = s.repairField(ctx, opt, useLLM)
	}
	q.LatexFixed = true
}

// repairField 规则修复；useLLM 时仍不配对则交给模型兜底
func (s *Server) repairField(ctx context.Context, text string, useLLM bool) string {
	if text == "" {
		return text
	}
	fixed := s.fixer.Repair(text)
	if !useLLM || s.llm == nil || latexfix.Validate(fixed).IsValid {
		return fixed
	}
	out, err := s.llm.FixDelimiters(ctx, fixed)
	if err != nil {
		s.logger.Warn("模型兜底修复失败", zap.Error(err))
		return fixed
	}
	return out
}

// handleImport 上传 Markdown 或 HTML 题目文件，解析后入库待审核
func (s *Server) handleImport(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "缺少上传文件")
	}
	f, err := fh.Open()
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "读取上传文件失败")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "读取上传文件失败")
	}

	var questions []*store.Question
	switch strings.ToLower(filepath.Ext(fh.Filename)) {
	case ".md", ".markdown":
		questions, err = s.importer.ParseMarkdown(data)
	case ".html", ".htm":
		questions, err = s.importer.ParseHTML(data, c.FormValue("subject"))
	default:
		return jsonError(c, http.StatusBadRequest, "只支持 Markdown 或 HTML 文件")
	}
	if err != nil {
		return jsonError(c, http.StatusBadRequest, err.Error())
	}

	for _, q := range questions {
		if err := s.store.PutQuestion(q); err != nil {
			return jsonError(c, http.StatusInternalServerError, "保存题目失败")
		}
	}
	s.logger.Info("题目导入",
		zap.String("file", fh.Filename),
		zap.Int("count", len(questions)))
	return c.JSON(http.StatusCreated, map[string]int{"imported": len(questions)})
}

type exportResponse struct {
	URL   string `json:"url"`
	Count int    `json:"count"`
}

// handleExport 按过滤条件导出 xlsx 并上传对象存储，返回下载链接
func (s *Server) handleExport(c echo.Context) error {
	filter := questionFilter(
		c.QueryParam("subject"),
		c.QueryParam("status"),
		c.QueryParam("type"),
		c.QueryParam("keyword"),
	)

	// 导出不分页，一次取全量
	page, err := s.store.ScanQuestions(filter, 0, 1<<20)
	if err != nil {
		return jsonError(c, http.StatusInternalServerError, "查询题目失败")
	}
	if len(page.Items) == 0 {
		return jsonError(c, http.StatusNotFound, "没有符合条件的题目")
	}

	data, err := export.Questions(page.Items)
	if err != nil {
		return jsonError(c, http.StatusInternalServerError, "生成导出文件失败")
	}

	name := fmt.Sprintf("questions-%s.xlsx", time.Now().Format("20060102-150405"))
	url, err := s.uploader.Upload(c.Request().Context(), name, data,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err != nil {
		return jsonError(c, http.StatusInternalServerError, "上传导出文件失败")
	}

	s.logger.Info("题目导出",
		zap.String("object", name),
		zap.Int("count", len(page.Items)))
	return c.JSON(http.StatusOK, exportResponse{URL: url, Count: len(page.Items)})
}
