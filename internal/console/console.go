// Package console 终端输出：面板、提示和关系表
package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"

	"sql-flow-analyzer/internal/analyzer"
)

// Console 终端输出
type Console struct {
	out io.Writer

	panel   lipgloss.Style
	title   lipgloss.Style
	warn    lipgloss.Style
	errText lipgloss.Style
	success lipgloss.Style
}

// New 创建终端输出，样式按 w 的能力渲染
func New(w io.Writer) *Console {
	r := lipgloss.NewRenderer(w)
	return &Console{
		out: w,
		panel: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("12")).
			Padding(0, 1),
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		warn:    r.NewStyle().Foreground(lipgloss.Color("11")),
		errText: r.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		success: r.NewStyle().Foreground(lipgloss.Color("10")),
	}
}

// Panel 带边框的标题面板
func (c *Console) Panel(title, body string) {
	content := c.title.Render(title)
	if body != "" {
		content += "\n" + body
	}
	fmt.Fprintln(c.out, c.panel.Render(content))
}

// Success 成功面板
func (c *Console) Success(title, body string) {
	c.Panel(c.success.Render("✓ ")+title, body)
}

// Info 普通信息
func (c *Console) Info(format string, args ...interface{}) {
	fmt.Fprintf(c.out, format+"\n", args...)
}

// Warn 警告
func (c *Console) Warn(format string, args ...interface{}) {
	fmt.Fprintln(c.out, c.warn.Render("⚠ "+fmt.Sprintf(format, args...)))
}

// Error 错误
func (c *Console) Error(err error) {
	fmt.Fprintln(c.out, c.errText.Render("✗ 错误: "+err.Error()))
}

// RelationTable 以表格列出关系
func (c *Console) RelationTable(relations []analyzer.TableRelation) {
	t := table.NewWriter()
	t.SetOutputMirror(c.out)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"#", "来源", "操作", "目标", "列"})
	for i, rel := range relations {
		names := make([]string, len(rel.Columns))
		for j, col := range rel.Columns {
			names[j] = col.Name
		}
		t.AppendRow(table.Row{i + 1, rel.Source, rel.Operation, rel.Target, strings.Join(names, ", ")})
	}
	t.AppendFooter(table.Row{"", "", "", "合计", len(relations)})
	t.Render()
}

// Summary 每种操作的关系数
func Summary(relations []analyzer.TableRelation) string {
	counts := make(map[analyzer.Operation]int)
	for _, rel := range relations {
		counts[rel.Operation]++
	}
	var parts []string
	for _, op := range analyzer.Operations {
		if n := counts[op]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", op, n))
		}
	}
	return strings.Join(parts, " · ")
}
