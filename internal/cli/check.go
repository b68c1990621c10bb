package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/tikubank/qbank-admin/pkg/latexfix"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <文件...>",
		Short: "校验文件的定界符配对并统计公式",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(args)
		},
	}
}

// runCheck 逐个文件校验，汇总成表格。有任何文件不通过则退出码非零。
func runCheck(paths []string) error {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"文件", "结果", "行内", "行间", "命令", "问题"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 6, WidthMax: 48, Align: text.AlignLeft},
	})

	failed := 0
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("读取 %s 失败: %w", path, err)
		}
		content := string(data)

		result := latexfix.Validate(content)
		stats := latexfix.Stats(content)

		verdict := "通过"
		problems := ""
		if !result.IsValid {
			failed++
			verdict = "不通过"
			problems = truncateCell(strings.Join(result.Errors, "；"), 48)
		}
		t.AppendRow(table.Row{
			path, verdict,
			stats.InlineMathCount, stats.DisplayMathCount, stats.CommandCount,
			problems,
		})
	}
	t.Render()

	if failed > 0 {
		return fmt.Errorf("%d 个文件未通过校验", failed)
	}
	return nil
}

// truncateCell 按显示宽度截断单元格，汉字按两格算
func truncateCell(s string, width int) string {
	return runewidth.Truncate(s, width, "…")
}
