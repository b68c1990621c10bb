package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// 预定义错误
var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("record not found")
	// ErrConflict 记录已存在
	ErrConflict = errors.New("record already exists")
)

var (
	bucketQuestions = []byte("questions")
	bucketQueues    = []byte("queues")
	bucketSessions  = []byte("sessions")
)

// Store 题库存储，bbolt 实现的键值扫描/过滤/分页语义
type Store struct {
	db *bolt.DB
}

// Open 打开（必要时创建）数据库文件
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("打开题库数据库失败: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketQuestions, bucketQueues, bucketSessions} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("初始化存储桶失败: %w", err)
	}

	return &Store{db: db}, nil
}

// Close 关闭数据库
func (s *Store) Close() error {
	return s.db.Close()
}

// put 序列化后写入指定桶
func (s *Store) put(bucket []byte, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("序列化记录失败: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), data)
	})
}

// get 从指定桶读出并反序列化
func (s *Store) get(bucket []byte, key string, v any) error {
	return s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucket).Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, v)
	})
}

// delete 从指定桶删除
func (s *Store) delete(bucket []byte, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucket).Get([]byte(key)) == nil {
			return ErrNotFound
		}
		return tx.Bucket(bucket).Delete([]byte(key))
	})
}

// scan 游标顺序扫描，filter 判真的记录进入分页窗口。
// 返回窗口内的记录和过滤后的总数。
func scan[T any](s *Store, bucket []byte, filter func(*T) bool, offset, limit int) (Page[T], error) {
	page := Page[T]{Offset: offset, Limit: limit, Items: []T{}}
	if limit <= 0 {
		limit = 20
		page.Limit = limit
	}

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec T
			if err := json.Unmarshal(v, &rec); err != nil {
				continue // 跳过损坏记录
			}
			if filter != nil && !filter(&rec) {
				continue
			}
			if page.Total >= offset && len(page.Items) < limit {
				page.Items = append(page.Items, rec)
			}
			page.Total++
		}
		return nil
	})
	return page, err
}

// ---- 题目 ----

// PutQuestion 写入或覆盖一道题
func (s *Store) PutQuestion(q *Question) error {
	return s.put(bucketQuestions, q.ID, q)
}

// GetQuestion 按 ID 取一道题
func (s *Store) GetQuestion(id string) (*Question, error) {
	var q Question
	if err := s.get(bucketQuestions, id, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// DeleteQuestion 删除一道题
func (s *Store) DeleteQuestion(id string) error {
	return s.delete(bucketQuestions, id)
}

// ScanQuestions 过滤分页扫描题目
func (s *Store) ScanQuestions(filter func(*Question) bool, offset, limit int) (Page[Question], error) {
	return scan[Question](s, bucketQuestions, filter, offset, limit)
}

// ---- 生成任务 ----

// PutTask 写入或覆盖一个生成任务
func (s *Store) PutTask(t *QueueTask) error {
	return s.put(bucketQueues, t.ID, t)
}

// GetTask 按 ID 取任务
func (s *Store) GetTask(id string) (*QueueTask, error) {
	var t QueueTask
	if err := s.get(bucketQueues, id, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ScanTasks 过滤分页扫描任务
func (s *Store) ScanTasks(filter func(*QueueTask) bool, offset, limit int) (Page[QueueTask], error) {
	return scan[QueueTask](s, bucketQueues, filter, offset, limit)
}

// ClaimTask 原子地把一个等待中的任务标记为运行中，没有任务返回 ErrNotFound
func (s *Store) ClaimTask() (*QueueTask, error) {
	var claimed *QueueTask
	err := s.db.Update(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketQueues).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var t QueueTask
			if err := json.Unmarshal(v, &t); err != nil {
				continue
			}
			if t.Status != TaskWaiting {
				continue
			}
			t.Status = TaskRunning
			data, err := json.Marshal(&t)
			if err != nil {
				return err
			}
			if err := tx.Bucket(bucketQueues).Put(k, data); err != nil {
				return err
			}
			claimed = &t
			return nil
		}
		return ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// ---- 会话 ----

// PutSession 写入会话
func (s *Store) PutSession(sess *Session) error {
	return s.put(bucketSessions, sess.Token, sess)
}

// GetSession 按 token 取会话，过期视同不存在并顺手清掉
func (s *Store) GetSession(token string) (*Session, error) {
	var sess Session
	if err := s.get(bucketSessions, token, &sess); err != nil {
		return nil, err
	}
	if time.Now().After(sess.ExpiresAt) {
		_ = s.delete(bucketSessions, token)
		return nil, ErrNotFound
	}
	return &sess, nil
}

// DeleteSession 删除会话
func (s *Store) DeleteSession(token string) error {
	return s.delete(bucketSessions, token)
}
