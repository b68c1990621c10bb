package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tikubank/qbank-admin/internal/config"
	"github.com/tikubank/qbank-admin/internal/objstore"
	"github.com/tikubank/qbank-admin/internal/store"
	"github.com/tikubank/qbank-admin/pkg/latexfix"
)

type testEnv struct {
	srv   *Server
	store *store.Store
	mem   *objstore.MemStore
	token string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "qbank.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	cfg := config.Default()
	cfg.Auth.Users = map[string]string{"admin": "secret"}

	mem := objstore.NewMem()
	srv := New(cfg, s, latexfix.New(), nil, mem, zap.NewNop())

	env := &testEnv{srv: srv, store: s, mem: mem}
	env.token = env.login(t, "admin", "secret")
	return env
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	rec := e.doRaw(t, http.MethodPost, "/api/login", "",
		jsonBody(t, map[string]string{"username": username, "password": password}), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Token
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r *bytes.Reader
	if body != nil {
		r = jsonBody(t, body)
	} else {
		r = bytes.NewReader(nil)
	}
	return e.doRaw(t, method, path, e.token, r, "application/json")
}

func (e *testEnv) doRaw(t *testing.T, method, path, token string, body *bytes.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func TestLoginFlow(t *testing.T) {
	env := newTestEnv(t)

	// 错误密码
	rec := env.doRaw(t, http.MethodPost, "/api/login", "",
		jsonBody(t, map[string]string{"username": "admin", "password": "wrong"}), "application/json")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// 无 token 访问受保护接口
	rec = env.doRaw(t, http.MethodGet, "/api/me", "", bytes.NewReader(nil), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// 正常会话
	rec = env.do(t, http.MethodGet, "/api/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sess store.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.Equal(t, "admin", sess.Username)

	// 登出后会话失效
	rec = env.do(t, http.MethodPost, "/api/logout", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAnonymousRead(t *testing.T) {
	env := newTestEnv(t)
	env.srv.cfg.Auth.AllowAnonymous = true

	rec := env.doRaw(t, http.MethodGet, "/api/questions", "", bytes.NewReader(nil), "")
	assert.Equal(t, http.StatusOK, rec.Code)

	// 写操作仍要登录
	rec = env.doRaw(t, http.MethodPost, "/api/questions", "",
		jsonBody(t, map[string]string{"stem": "x"}), "application/json")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestQuestionLifecycle(t *testing.T) {
	env := newTestEnv(t)

	// 创建时跑定界符修复
	rec := env.do(t, http.MethodPost, "/api/questions", map[string]any{
		"subject": "math",
		"type":    store.TypeSolution,
		"stem":    `已知 \( f(x) = x^{2} \)，求最小值。`,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var q store.Question
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &q))
	assert.Contains(t, q.Stem, `$f(x) = x^{2}$`)
	assert.Equal(t, store.StatusPending, q.Status)
	assert.True(t, q.LatexFixed)

	// 审核通过
	rec = env.do(t, http.MethodPost, "/api/questions/"+q.ID+"/verify", map[string]string{"action": "approve"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &q))
	assert.Equal(t, store.StatusApproved, q.Status)

	// 非法 action
	rec = env.do(t, http.MethodPost, "/api/questions/"+q.ID+"/verify", map[string]string{"action": "maybe"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// 更新保留创建时间
	created := q.CreatedAt
	rec = env.do(t, http.MethodPut, "/api/questions/"+q.ID, map[string]any{
		"subject": "math",
		"stem":    "改过的题干 $x = 1$。",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &q))
	assert.Equal(t, created.Unix(), q.CreatedAt.Unix())

	// 删除
	rec = env.do(t, http.MethodDelete, "/api/questions/"+q.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/questions/"+q.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListQuestionsFilter(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	for i := 0; i < 5; i++ {
		subject := "math"
		stem := fmt.Sprintf("数列求和第 %d 题", i)
		if i >= 3 {
			subject = "physics"
			stem = fmt.Sprintf("力学第 %d 题", i)
		}
		require.NoError(t, env.store.PutQuestion(&store.Question{
			ID: fmt.Sprintf("q-%d", i), Subject: subject, Stem: stem,
			Status: store.StatusPending, CreatedAt: now,
		}))
	}

	rec := env.do(t, http.MethodGet, "/api/questions?subject=physics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page store.Page[store.Question]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 2, page.Total)

	// 关键词模糊匹配题干
	rec = env.do(t, http.MethodGet, "/api/questions?keyword=数列", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 3, page.Total)
}

func TestFixQuestionEndpoint(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.PutQuestion(&store.Question{
		ID:     "q-fix",
		Stem:   `\sin 30^{\circ} 的值是 \frac{1}{2}。`,
		Status: store.StatusPending,
	}))

	rec := env.do(t, http.MethodPost, "/api/questions/q-fix/fix", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var q store.Question
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &q))
	assert.Contains(t, q.Stem, `$\sin 30^{\circ}$`)
	assert.Contains(t, q.Stem, `$\frac{1}{2}$`)
	assert.True(t, q.LatexFixed)
}

func TestLatexEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/latex/repair", map[string]string{
		"text": `所以 x_{1} = 2 \cdot 3`,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var rep repairResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.True(t, rep.Changed)
	assert.Contains(t, rep.Text, "$")

	rec = env.do(t, http.MethodPost, "/api/latex/validate", map[string]string{"text": `$x = 1 没配对`})
	require.Equal(t, http.StatusOK, rec.Code)
	var vr latexfix.ValidationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &vr))
	assert.False(t, vr.IsValid)

	rec = env.do(t, http.MethodPost, "/api/latex/stats", map[string]string{
		"text": `$x$ 与 $$y = \frac{1}{2}$$`,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var st latexfix.TextStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, 1, st.InlineMathCount)
	assert.Equal(t, 1, st.DisplayMathCount)
}

func TestPreview(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/preview", map[string]string{
		"text": "计算 $x^{2}$ 的导数。",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp previewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.HTML, "<p>")
}

func TestQuestionPreview(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.PutQuestion(&store.Question{
		ID:       "q-1",
		Stem:     "计算 $x^{2}$ 的导数。",
		Options:  []string{"A. $2x$", "B. $x$"},
		Answer:   "A",
		Analysis: "按幂函数求导法则。",
		Status:   store.StatusPending,
	}))

	rec := env.do(t, http.MethodGet, "/api/questions/q-1/preview", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp questionPreviewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Stem, "<p>")
	assert.Len(t, resp.Options, 2)
	assert.NotEmpty(t, resp.Analysis)

	rec = env.do(t, http.MethodGet, "/api/questions/nope/preview", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// fakeLLM 固定返回同一份修复结果
type fakeLLM struct {
	out   string
	calls int
}

func (f *fakeLLM) FixDelimiters(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.out, nil
}

func TestFixQuestionLLMFallback(t *testing.T) {
	env := newTestEnv(t)
	llm := &fakeLLM{out: `公式 $x^{2}$ 缺右括号已补。`}
	env.srv.llm = llm

	// 花括号失衡，规则引擎修不了
	require.NoError(t, env.store.PutQuestion(&store.Question{
		ID:     "q-llm",
		Stem:   `公式 $x^{2$ 缺右括号。`,
		Status: store.StatusPending,
	}))

	// 不带 llm=true 不碰模型
	rec := env.do(t, http.MethodPost, "/api/questions/q-llm/fix", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, llm.calls)

	rec = env.do(t, http.MethodPost, "/api/questions/q-llm/fix?llm=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var q store.Question
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &q))
	assert.Equal(t, llm.out, q.Stem)
	assert.Greater(t, llm.calls, 0)
}

func TestImportMarkdown(t *testing.T) {
	env := newTestEnv(t)

	src := `---
subject: math
type: solution
---
已知 \( a = 1 \)，求 a。

## 答案

1
`
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "questions.md")
	require.NoError(t, err)
	_, err = fw.Write([]byte(src))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	rec := env.doRaw(t, http.MethodPost, "/api/questions/import", env.token,
		bytes.NewReader(buf.Bytes()), mw.FormDataContentType())
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"imported":1`)

	page, err := env.store.ScanQuestions(nil, 0, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "import", page.Items[0].Source)
}

func TestExport(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.PutQuestion(&store.Question{
		ID: "q-1", Subject: "math", Stem: "计算 $1+1$。", Status: store.StatusApproved,
	}))

	rec := env.do(t, http.MethodGet, "/api/questions/export?status=approved", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp exportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.True(t, strings.HasPrefix(resp.URL, "mem://"))

	name := strings.TrimPrefix(resp.URL, "mem://")
	data, ok := env.mem.Get(name)
	assert.True(t, ok)
	assert.NotEmpty(t, data)

	// 没有匹配记录
	rec = env.do(t, http.MethodGet, "/api/questions/export?subject=chemistry", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQueueEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/queues", map[string]any{
		"subject": "math",
		"topic":   "二次函数",
		"count":   3,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var task store.QueueTask
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &task))
	assert.Equal(t, store.TaskWaiting, task.Status)
	assert.Equal(t, store.TypeSolution, task.Type)

	// 缺知识点
	rec = env.do(t, http.MethodPost, "/api/queues", map[string]any{"subject": "math"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/queues?status=waiting", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page store.Page[store.QueueTask]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Total)

	rec = env.do(t, http.MethodGet, "/api/queues/"+task.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/queues/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
