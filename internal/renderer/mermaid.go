package renderer

import (
	"fmt"
	"strings"

	"sql-flow-analyzer/internal/analyzer"
	"sql-flow-analyzer/internal/graph"
	"sql-flow-analyzer/internal/naming"
)

// 节点样式，顺序即输出顺序
var classDefs = []struct {
	name  string
	style string
}{
	{"source", "fill:#f5f5f5,stroke:#1f77b4,stroke-width:2px"},
	{"staging", "fill:#e3f2fd,stroke:#2196f3,stroke-width:2px"},
	{"transform", "fill:#f1f8e9,stroke:#4caf50,stroke-width:2px"},
	{"fact", "fill:#fff3e0,stroke:#ff9800,stroke-width:2px"},
	{"dimension", "fill:#f3e5f5,stroke:#9c27b0,stroke-width:2px"},
	{"mart", "fill:#fce4ec,stroke:#e91e63,stroke-width:2px"},
	{"metrics", "fill:#e8eaf6,stroke:#3f51b5,stroke-width:2px"},
	{"warehouse", "fill:#fbe9e7,stroke:#ff5722,stroke-width:2px"},
	{"audit", "fill:#efebe9,stroke:#795548,stroke-width:2px"},
	{"procedure", "fill:#e0f2f1,stroke:#009688,stroke-width:2px"},
	{"other", "fill:#fff,stroke:#333,stroke-width:1px"},
}

// EdgeStyle 边的线条样式
type EdgeStyle struct {
	Color string
	Width string
}

var edgeStyles = map[analyzer.Operation]EdgeStyle{
	analyzer.OpExtract:   {Color: "#1f77b4", Width: "2px"},
	analyzer.OpTransform: {Color: "#2ca02c", Width: "2px"},
	analyzer.OpLoad:      {Color: "#d62728", Width: "2px"},
	analyzer.OpMerge:     {Color: "#9467bd", Width: "2px"},
}

var defaultEdgeStyle = EdgeStyle{Color: "#7f7f7f", Width: "1px"}

// StyleFor 操作对应的线条样式
func StyleFor(op analyzer.Operation) EdgeStyle {
	if s, ok := edgeStyles[op]; ok {
		return s
	}
	return defaultEdgeStyle
}

// MermaidRenderer Mermaid 流程图渲染器
type MermaidRenderer struct {
	classifier naming.Classifier
}

// NewMermaidRenderer 创建渲染器
func NewMermaidRenderer(classifier naming.Classifier) *MermaidRenderer {
	return &MermaidRenderer{classifier: classifier}
}

// NodeID 表名转为节点ID，非 [A-Za-z0-9_] 字符替换为下划线
func NodeID(name string) string {
	var sb strings.Builder
	sb.Grow(len(name))
	for _, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

// BuildGraph 由关系构建图，节点按首次出现顺序
func (m *MermaidRenderer) BuildGraph(relations []analyzer.TableRelation) *graph.FlowGraph {
	g := graph.NewFlowGraph()
	for _, rel := range relations {
		m.addNode(g, rel.Source, nil)
		m.addNode(g, rel.Target, rel.Columns)
		g.AddEdge(&graph.Edge{
			Type: graph.EdgeType(rel.Operation),
			From: NodeID(rel.Source),
			To:   NodeID(rel.Target),
		})
	}
	return g
}

func (m *MermaidRenderer) addNode(g *graph.FlowGraph, name string, columns []analyzer.Column) {
	if g.GetNode(name) != nil {
		return
	}
	node := &graph.Node{
		ID:       NodeID(name),
		Name:     name,
		Category: m.classifier.Classify(name),
	}
	for _, c := range columns {
		node.Columns = append(node.Columns, graph.ColumnLabel{Name: c.Name, Transformation: c.Transformation})
	}
	g.AddNode(node)
}

// Render 渲染为 Mermaid 格式
func (m *MermaidRenderer) Render(g *graph.FlowGraph) string {
	var sb strings.Builder

	sb.WriteString("graph LR;\n")
	sb.WriteString("    %% Node Styles\n")
	for _, def := range classDefs {
		fmt.Fprintf(&sb, "    classDef %s %s;\n", def.name, def.style)
	}
	sb.WriteString("\n")

	// 节点
	for _, node := range g.Nodes {
		fmt.Fprintf(&sb, "    %s[\"%s\"]\n", node.ID, nodeLabel(node))
	}
	sb.WriteString("\n")

	// 边
	for _, edge := range g.Edges {
		fmt.Fprintf(&sb, "    %s -->|%s| %s\n", edge.From, edge.Type, edge.To)
	}
	if len(g.Edges) > 0 {
		sb.WriteString("\n")
	}
	for i, edge := range g.Edges {
		style := StyleFor(analyzer.Operation(edge.Type))
		fmt.Fprintf(&sb, "    linkStyle %d stroke:%s,stroke-width:%s;\n", i, style.Color, style.Width)
	}

	// 节点分类
	seen := make(map[string]bool)
	for _, node := range g.Nodes {
		if seen[node.ID] {
			continue
		}
		seen[node.ID] = true
		fmt.Fprintf(&sb, "    class %s %s;\n", node.ID, className(node.Category))
	}

	return sb.String()
}

// RenderRelations 构建并渲染
func (m *MermaidRenderer) RenderRelations(relations []analyzer.TableRelation) string {
	return m.Render(m.BuildGraph(relations))
}

func nodeLabel(node *graph.Node) string {
	var sb strings.Builder
	sb.WriteString(escapeLabel(node.Name))
	for _, c := range node.Regular() {
		sb.WriteString("<br/>• ")
		sb.WriteString(escapeLabel(c.Name))
	}
	if transformed := node.Transformed(); len(transformed) > 0 {
		if len(node.Regular()) > 0 {
			sb.WriteString("<br/>---")
		}
		for _, c := range transformed {
			fmt.Fprintf(&sb, "<br/>• %s (%s)", escapeLabel(c.Name), escapeLabel(c.Transformation))
		}
	}
	return sb.String()
}

var labelEscaper = strings.NewReplacer(`"`, "#quot;", "<", "#lt;", ">", "#gt;")

func escapeLabel(s string) string {
	return labelEscaper.Replace(s)
}

func className(c naming.Category) string {
	for _, def := range classDefs {
		if def.name == string(c) {
			return def.name
		}
	}
	return "other"
}
