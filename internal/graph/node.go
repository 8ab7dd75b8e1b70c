package graph

import "sql-flow-analyzer/internal/naming"

// ColumnLabel 节点上展示的列
type ColumnLabel struct {
	Name           string `json:"name"`
	Transformation string `json:"transformation,omitempty"`
}

// Node 图节点，对应一张表或 CTE
type Node struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Category naming.Category `json:"category"`
	Columns  []ColumnLabel   `json:"columns,omitempty"`
}

// Regular 未经转换的列
func (n *Node) Regular() []ColumnLabel {
	var out []ColumnLabel
	for _, c := range n.Columns {
		if c.Transformation == "" {
			out = append(out, c)
		}
	}
	return out
}

// Transformed 带转换表达式的列
func (n *Node) Transformed() []ColumnLabel {
	var out []ColumnLabel
	for _, c := range n.Columns {
		if c.Transformation != "" {
			out = append(out, c)
		}
	}
	return out
}
