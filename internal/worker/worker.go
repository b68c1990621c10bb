package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tikubank/qbank-admin/internal/llmfix"
	"github.com/tikubank/qbank-admin/internal/store"
	"github.com/tikubank/qbank-admin/pkg/latexfix"
)

// Generator 题目生成端的接口，测试时注入假实现
type Generator interface {
	GenerateQuestions(ctx context.Context, subject, topic, qtype string, difficulty, count int) ([]llmfix.GeneratedQuestion, error)
}

// Worker 消费生成队列：认领任务、调模型出题、
// 过定界符修复后落库为待审核题目
type Worker struct {
	store        *store.Store
	gen          Generator
	fixer        *latexfix.Fixer
	logger       *zap.Logger
	concurrency  int
	pollInterval time.Duration
}

// New 创建 worker
func New(s *store.Store, gen Generator, fixer *latexfix.Fixer, logger *zap.Logger, concurrency int, pollInterval time.Duration) *Worker {
	if concurrency <= 0 {
		concurrency = 1
	}
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &Worker{
		store:        s,
		gen:          gen,
		fixer:        fixer,
		logger:       logger,
		concurrency:  concurrency,
		pollInterval: pollInterval,
	}
}

// Run 轮询队列直到 ctx 取消，正在处理的任务等它做完
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("生成 worker 启动",
		zap.Int("concurrency", w.concurrency),
		zap.Duration("poll_interval", w.pollInterval))

	sem := make(chan struct{}, w.concurrency)
	var wg sync.WaitGroup

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			w.logger.Info("生成 worker 退出")
			return
		case <-ticker.C:
			w.drain(ctx, sem, &wg)
		}
	}
}

// drain 把当前所有等待中的任务派发出去，并发满了就等下一轮
func (w *Worker) drain(ctx context.Context, sem chan struct{}, wg *sync.WaitGroup) {
	for {
		select {
		case sem <- struct{}{}:
		default:
			return
		}

		task, err := w.store.ClaimTask()
		if err != nil {
			<-sem
			if !errors.Is(err, store.ErrNotFound) {
				w.logger.Error("认领任务失败", zap.Error(err))
			}
			return
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			w.process(ctx, task)
		}()
	}
}

// process 处理一个任务，结果状态写回队列
func (w *Worker) process(ctx context.Context, task *store.QueueTask) {
	log := w.logger.With(zap.String("task_id", task.ID), zap.String("topic", task.Topic))
	log.Info("开始生成题目", zap.Int("count", task.Count))

	generated, err := w.gen.GenerateQuestions(ctx, task.Subject, task.Topic, task.Type, task.Difficulty, task.Count)
	if err != nil {
		w.finish(task, 0, err)
		log.Error("任务失败", zap.Error(err))
		return
	}

	saved := 0
	now := time.Now()
	for _, g := range generated {
		q := &store.Question{
			ID:         uuid.NewString(),
			Subject:    task.Subject,
			Type:       task.Type,
			Stem:       w.fixer.Repair(g.Stem),
			Answer:     w.fixer.Repair(g.Answer),
			Analysis:   w.fixer.Repair(g.Analysis),
			Difficulty: task.Difficulty,
			Status:     store.StatusPending,
			Source:     "generate",
			LatexFixed: true,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		for _, opt := range g.Options {
			q.Options = append(q.Options, w.fixer.Repair(opt))
		}
		if err := w.store.PutQuestion(q); err != nil {
			log.Error("题目落库失败", zap.Error(err))
			continue
		}
		saved++
	}

	w.finish(task, saved, nil)
	log.Info("任务完成", zap.Int("generated", saved))
}

// finish 写回任务终态
func (w *Worker) finish(task *store.QueueTask, generated int, taskErr error) {
	task.Generated = generated
	task.FinishedAt = time.Now()
	if taskErr != nil {
		task.Status = store.TaskFailed
		task.Error = taskErr.Error()
	} else {
		task.Status = store.TaskDone
	}
	if err := w.store.PutTask(task); err != nil {
		w.logger.Error("任务状态写回失败", zap.String("task_id", task.ID), zap.Error(err))
	}
}
