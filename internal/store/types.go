package store

import "time"

// 审核状态
const (
	StatusPending  = "pending"  // 待审核
	StatusApproved = "approved" // 已通过
	StatusRejected = "rejected" // 已驳回
)

// 题型
const (
	TypeChoice   = "choice"   // 选择题
	TypeFill     = "fill"     // 填空题
	TypeSolution = "solution" // 解答题
)

// Question 题库里的一道题
type Question struct {
	ID         string    `json:"id"`
	Subject    string    `json:"subject"`    // 学科
	Type       string    `json:"type"`       // 题型
	Stem       string    `json:"stem"`       // 题干
	Options    []string  `json:"options"`    // 选项（选择题）
	Answer     string    `json:"answer"`     // 答案
	Analysis   string    `json:"analysis"`   // 解析
	Difficulty int       `json:"difficulty"` // 难度 1-5
	Status     string    `json:"status"`     // 审核状态
	Source     string    `json:"source"`     // 来源（import/generate/manual）
	LatexFixed bool      `json:"latex_fixed"` // 是否跑过定界符修复
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// 生成任务状态
const (
	TaskWaiting = "waiting"
	TaskRunning = "running"
	TaskDone    = "done"
	TaskFailed  = "failed"
)

// QueueTask 题目生成流水线的一个任务
type QueueTask struct {
	ID         string    `json:"id"`
	Subject    string    `json:"subject"`
	Topic      string    `json:"topic"`      // 知识点
	Type       string    `json:"type"`       // 期望题型
	Difficulty int       `json:"difficulty"`
	Count      int       `json:"count"`      // 生成数量
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	Generated  int       `json:"generated"` // 实际生成数
	CreatedAt  time.Time `json:"created_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Session 登录会话
type Session struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Page 分页扫描结果
type Page[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}
