package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/tikubank/qbank-admin/internal/store"
)

func TestQuestions(t *testing.T) {
	data, err := Questions([]store.Question{
		{
			ID:      "q-1",
			Subject: "math",
			Type:    store.TypeChoice,
			Stem:    "下列正确的是？",
			Options: []string{"A. $1+1=3$", "B. $1+1=2$"},
			Answer:  "B",
			Status:  store.StatusApproved,
			Source:  "import",
		},
		{
			ID:      "q-2",
			Subject: "math",
			Type:    store.TypeSolution,
			Stem:    `求 $\int_{0}^{1} x \, dx$。`,
			Answer:  `$\frac{1}{2}$`,
			Status:  store.StatusPending,
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, data)

	// 写出的内容能被重新打开
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("题目")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, "q-1", rows[1][0])
	assert.Equal(t, "选择题", rows[1][2])
	assert.Equal(t, "已通过", rows[1][8])
	// 选项合并成一个单元格
	assert.Contains(t, rows[1][4], "A. $1+1=3$")
	assert.Contains(t, rows[1][4], "B. $1+1=2$")
	assert.Equal(t, "解答题", rows[2][2])
}

func TestQuestionsEmpty(t *testing.T) {
	data, err := Questions(nil)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}
