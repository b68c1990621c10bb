package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/tikubank/qbank-admin/internal/store"
)

const sessionCookie = "qbank_session"

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleLogin 校验用户名密码，签发会话 token
func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "请求体格式错误")
	}

	want, ok := s.cfg.Auth.Users[req.Username]
	if !ok || subtle.ConstantTimeCompare([]byte(want), []byte(req.Password)) != 1 {
		s.logger.Warn("登录失败", zap.String("username", req.Username))
		return jsonError(c, http.StatusUnauthorized, "用户名或密码错误")
	}

	sess := &store.Session{
		Token:     uuid.NewString(),
		Username:  req.Username,
		Role:      "admin",
		ExpiresAt: time.Now().Add(time.Duration(s.cfg.Auth.SessionTTL) * time.Second),
	}
	if err := s.store.PutSession(sess); err != nil {
		return jsonError(c, http.StatusInternalServerError, "会话保存失败")
	}

	c.SetCookie(&http.Cookie{
		Name:     sessionCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
	})
	return c.JSON(http.StatusOK, loginResponse{
		Token:     sess.Token,
		Username:  sess.Username,
		ExpiresAt: sess.ExpiresAt,
	})
}

// handleLogout 销毁当前会话
func (s *Server) handleLogout(c echo.Context) error {
	if token := extractToken(c); token != "" {
		_ = s.store.DeleteSession(token)
	}
	c.SetCookie(&http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	return c.NoContent(http.StatusNoContent)
}

// handleMe 返回当前会话信息
func (s *Server) handleMe(c echo.Context) error {
	sess, ok := c.Get("session").(*store.Session)
	if !ok {
		return jsonError(c, http.StatusUnauthorized, "未登录")
	}
	return c.JSON(http.StatusOK, sess)
}

// sessionMiddleware 校验会话。开了匿名访问时 GET 请求放行。
func (s *Server) sessionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := extractToken(c)
		if token != "" {
			if sess, err := s.store.GetSession(token); err == nil {
				c.Set("session", sess)
				return next(c)
			}
		}
		if s.cfg.Auth.AllowAnonymous && c.Request().Method == http.MethodGet {
			return next(c)
		}
		return jsonError(c, http.StatusUnauthorized, "未登录或会话已过期")
	}
}

// extractToken 从 Authorization 头或 cookie 取会话 token
func extractToken(c echo.Context) string {
	if h := c.Request().Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if cookie, err := c.Cookie(sessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}
