package renderer

import (
	"fmt"
	"strings"

	"sql-flow-analyzer/internal/analyzer"
	"sql-flow-analyzer/internal/naming"
)

// MarkdownRenderer Markdown 血缘报告渲染器
type MarkdownRenderer struct {
	mermaid *MermaidRenderer
}

// NewMarkdownRenderer 创建渲染器
func NewMarkdownRenderer(classifier naming.Classifier) *MarkdownRenderer {
	return &MarkdownRenderer{mermaid: NewMermaidRenderer(classifier)}
}

// Render 渲染为 Markdown 格式
func (m *MarkdownRenderer) Render(relations []analyzer.TableRelation) string {
	var sb strings.Builder
	g := m.mermaid.BuildGraph(relations)

	sb.WriteString("# 数据血缘报告\n\n")
	fmt.Fprintf(&sb, "共 %d 张表，%d 条关系。\n\n", len(g.Nodes), len(relations))

	// 表清单
	sb.WriteString("## 表清单\n\n")
	sb.WriteString("| 表名 | 分类 | 上游 | 下游 |\n")
	sb.WriteString("|------|------|------|------|\n")
	for _, node := range g.Nodes {
		in, out := g.Degree(node.ID)
		fmt.Fprintf(&sb, "| %s | %s | %d | %d |\n", node.Name, node.Category, in, out)
	}
	sb.WriteString("\n")

	// 按操作类型输出关系
	sb.WriteString("## 关系\n\n")
	for _, op := range analyzer.Operations {
		m.renderOperation(&sb, relations, op)
	}

	sb.WriteString("## 流程图\n\n")
	sb.WriteString("```mermaid\n")
	sb.WriteString(m.mermaid.Render(g))
	sb.WriteString("```\n")

	return sb.String()
}

// renderOperation 渲染某一操作类型的关系
func (m *MarkdownRenderer) renderOperation(sb *strings.Builder, relations []analyzer.TableRelation, op analyzer.Operation) {
	var matched []analyzer.TableRelation
	for _, rel := range relations {
		if rel.Operation == op {
			matched = append(matched, rel)
		}
	}

	if len(matched) == 0 {
		return
	}

	fmt.Fprintf(sb, "### %s (%d)\n\n", op, len(matched))

	for _, rel := range matched {
		fmt.Fprintf(sb, "- `%s` → `%s`\n", rel.Source, rel.Target)

		// 输出列
		for _, col := range rel.Columns {
			switch {
			case col.Transformation != "":
				fmt.Fprintf(sb, "  - %s = `%s`\n", col.Name, col.Transformation)
			case col.SourceTable != "":
				fmt.Fprintf(sb, "  - %s (来自 %s)\n", col.Name, col.SourceTable)
			default:
				fmt.Fprintf(sb, "  - %s\n", col.Name)
			}
		}
	}

	sb.WriteString("\n")
}
