package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/tikubank/qbank-admin/internal/store"
)

// handleListTasks 过滤分页列出生成任务
func (s *Server) handleListTasks(c echo.Context) error {
	status := c.QueryParam("status")
	var filter func(*store.QueueTask) bool
	if status != "" {
		filter = func(t *store.QueueTask) bool { return t.Status == status }
	}
	offset, limit := pageParams(c)

	page, err := s.store.ScanTasks(filter, offset, limit)
	if err != nil {
		return jsonError(c, http.StatusInternalServerError, "查询任务失败")
	}
	return c.JSON(http.StatusOK, page)
}

type createTaskRequest struct {
	Subject    string `json:"subject"`
	Topic      string `json:"topic"`
	Type       string `json:"type"`
	Difficulty int    `json:"difficulty"`
	Count      int    `json:"count"`
}

// handleCreateTask 往生成队列投一个任务
func (s *Server) handleCreateTask(c echo.Context) error {
	var req createTaskRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "请求体格式错误")
	}
	if strings.TrimSpace(req.Topic) == "" {
		return jsonError(c, http.StatusBadRequest, "知识点不能为空")
	}
	if req.Count <= 0 {
		req.Count = 1
	}
	if req.Type == "" {
		req.Type = store.TypeSolution
	}

	task := &store.QueueTask{
		ID:         uuid.NewString(),
		Subject:    req.Subject,
		Topic:      req.Topic,
		Type:       req.Type,
		Difficulty: req.Difficulty,
		Count:      req.Count,
		Status:     store.TaskWaiting,
		CreatedAt:  time.Now(),
	}
	if err := s.store.PutTask(task); err != nil {
		return jsonError(c, http.StatusInternalServerError, "保存任务失败")
	}

	s.logger.Info("生成任务入队",
		zap.String("task_id", task.ID),
		zap.String("topic", task.Topic),
		zap.Int("count", task.Count))
	return c.JSON(http.StatusCreated, task)
}

func (s *Server) handleGetTask(c echo.Context) error {
	task, err := s.store.GetTask(c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return jsonError(c, http.StatusNotFound, "任务不存在")
		}
		return jsonError(c, http.StatusInternalServerError, "查询任务失败")
	}
	return c.JSON(http.StatusOK, task)
}
