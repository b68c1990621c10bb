package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/tikubank/qbank-admin/internal/store"
)

// 导出表头，列顺序固定
var headers = []string{"ID", "学科", "题型", "题干", "选项", "答案", "解析", "难度", "状态", "来源"}

// Questions 把题目列表渲染成 xlsx 文件内容
func Questions(items []store.Question) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "题目"
	idx, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("创建工作表失败: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("删除默认工作表失败: %w", err)
	}

	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
	}

	for row, q := range items {
		values := []any{
			q.ID,
			q.Subject,
			typeName(q.Type),
			q.Stem,
			strings.Join(q.Options, "\n"),
			q.Answer,
			q.Analysis,
			q.Difficulty,
			statusName(q.Status),
			q.Source,
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, err
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("写出 xlsx 失败: %w", err)
	}
	return buf.Bytes(), nil
}

func typeName(t string) string {
	switch t {
	case store.TypeChoice:
		return "选择题"
	case store.TypeFill:
		return "填空题"
	case store.TypeSolution:
		return "解答题"
	}
	return t
}

func statusName(s string) string {
	switch s {
	case store.StatusPending:
		return "待审核"
	case store.StatusApproved:
		return "已通过"
	case store.StatusRejected:
		return "已驳回"
	}
	return s
}
