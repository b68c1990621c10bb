package llmfix

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/tikubank/qbank-admin/pkg/latexfix"
)

// ErrStillInvalid 模型返回的文本仍未通过校验
var ErrStillInvalid = errors.New("llm output still fails validation")

// Options 模型调用参数
type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Timeout     time.Duration
	MaxRetries  int
}

// Client 兜底修复器和题目生成器共用的模型客户端。
// 规则引擎无法修复的文本交给模型重写，输出仍要过一遍校验。
type Client struct {
	api    *openai.Client
	opts   Options
	logger *zap.Logger
}

// New 创建模型客户端
func New(opts Options, logger *zap.Logger) *Client {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.Model == "" {
		opts.Model = openai.GPT4oMini
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 2
	}
	return &Client{
		api:    openai.NewClientWithConfig(cfg),
		opts:   opts,
		logger: logger,
	}
}

const fixSystemPrompt = `你是数学排版助手。用户给出的文本里 LaTeX 定界符（$、$$）可能缺失、不配对或嵌套错误。
只修正定界符和花括号配对，不改动任何文字内容和公式本身。只输出修正后的全文，不要解释。`

// FixDelimiters 让模型兜底修复定界符，返回通过校验的文本。
// 模型输出若仍不配对则重试，重试耗尽返回 ErrStillInvalid。
func (c *Client) FixDelimiters(ctx context.Context, text string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		out, err := c.chat(ctx, fixSystemPrompt, text)
		if err != nil {
			lastErr = err
			c.logger.Warn("模型修复调用失败",
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			continue
		}
		out = strings.TrimSpace(out)
		if result := latexfix.Validate(out); result.IsValid {
			return out, nil
		}
		lastErr = ErrStillInvalid
		c.logger.Warn("模型修复输出未通过校验", zap.Int("attempt", attempt+1))
	}
	return "", lastErr
}

const generateSystemPrompt = `你是一名出题老师。按要求生成题目，数学内容一律用 LaTeX 书写，行内公式用 $...$，行间公式用 $$...$$。
输出 JSON 数组，每个元素形如 {"stem": "...", "options": ["A. ...", ...], "answer": "...", "analysis": "..."}，
非选择题 options 置空数组。只输出 JSON，不要多余文字。`

// GeneratedQuestion 模型生成的一道题
type GeneratedQuestion struct {
	Stem     string   `json:"stem"`
	Options  []string `json:"options"`
	Answer   string   `json:"answer"`
	Analysis string   `json:"analysis"`
}

// GenerateQuestions 按知识点生成一批题目
func (c *Client) GenerateQuestions(ctx context.Context, subject, topic, qtype string, difficulty, count int) ([]GeneratedQuestion, error) {
	prompt := fmt.Sprintf("学科：%s\n知识点：%s\n题型：%s\n难度：%d/5\n数量：%d",
		subject, topic, qtype, difficulty, count)

	var lastErr error
	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		out, err := c.chat(ctx, generateSystemPrompt, prompt)
		if err != nil {
			lastErr = err
			c.logger.Warn("题目生成调用失败",
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			continue
		}
		questions, err := parseGenerated(out)
		if err != nil {
			lastErr = err
			c.logger.Warn("题目生成输出解析失败",
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			continue
		}
		return questions, nil
	}
	return nil, lastErr
}

// chat 单轮对话，带超时
func (c *Client) chat(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.opts.Model,
		Temperature: c.opts.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("模型请求失败: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("模型返回空结果")
	}
	return resp.Choices[0].Message.Content, nil
}

// parseGenerated 解析模型输出的 JSON 数组，容忍代码块包裹
func parseGenerated(out string) ([]GeneratedQuestion, error) {
	out = strings.TrimSpace(out)
	out = strings.TrimPrefix(out, "```json")
	out = strings.TrimPrefix(out, "```")
	out = strings.TrimSuffix(out, "```")
	out = strings.TrimSpace(out)

	var questions []GeneratedQuestion
	if err := json.Unmarshal([]byte(out), &questions); err != nil {
		return nil, fmt.Errorf("生成结果不是合法 JSON: %w", err)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("生成结果为空")
	}
	return questions, nil
}
