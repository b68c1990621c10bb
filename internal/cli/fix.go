package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newFixCmd() *cobra.Command {
	var write bool

	cmd := &cobra.Command{
		Use:   "fix [文件...]",
		Short: "修复文件中的 LaTeX 定界符",
		Long:  "对文件逐个跑定界符修复。默认打印逐行差异，--write 直接改写原文件。不给文件时从标准输入读，结果写标准输出。",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			fixer, err := newFixer(cfg)
			if err != nil {
				return err
			}

			if len(args) == 0 {
				data, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("读取标准输入失败: %w", err)
				}
				fmt.Print(fixer.Repair(string(data)))
				return nil
			}

			for _, path := range args {
				if err := fixFile(fixer.Repair, path, write); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&write, "write", "w", false, "直接改写原文件")
	return cmd
}

// fixFile 修复单个文件，按 write 决定改写还是打印差异
func fixFile(repair func(string) string, path string, write bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("读取 %s 失败: %w", path, err)
	}
	before := string(data)
	after := repair(before)

	if after == before {
		pterm.Success.Printfln("%s 无需修复", path)
		return nil
	}

	if write {
		if err := os.WriteFile(path, []byte(after), 0o644); err != nil {
			return fmt.Errorf("写回 %s 失败: %w", path, err)
		}
		pterm.Success.Printfln("%s 已修复", path)
		return nil
	}

	pterm.DefaultSection.Println(path)
	printDiff(before, after)
	return nil
}

// printDiff 逐行对比，只打印有变化的行
func printDiff(before, after string) {
	oldLines := strings.Split(before, "\n")
	newLines := strings.Split(after, "\n")

	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)

	n := len(oldLines)
	if len(newLines) > n {
		n = len(newLines)
	}
	for i := 0; i < n; i++ {
		var o, w string
		if i < len(oldLines) {
			o = oldLines[i]
		}
		if i < len(newLines) {
			w = newLines[i]
		}
		if o == w {
			continue
		}
		if o != "" || i < len(oldLines) {
			red.Printf("- %s\n", o)
		}
		if w != "" || i < len(newLines) {
			green.Printf("+ %s\n", w)
		}
	}
}
