package graph

import (
	"encoding/json"
	"fmt"
)

// FlowGraph 数据流图，节点和边保持加入顺序
type FlowGraph struct {
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`

	byName map[string]*Node
}

// NewFlowGraph 创建新图
func NewFlowGraph() *FlowGraph {
	return &FlowGraph{
		Nodes:  []*Node{},
		Edges:  []*Edge{},
		byName: make(map[string]*Node),
	}
}

// AddNode 添加节点，同名节点已存在时返回 false
func (g *FlowGraph) AddNode(node *Node) bool {
	if _, ok := g.byName[node.Name]; ok {
		return false
	}
	g.byName[node.Name] = node
	g.Nodes = append(g.Nodes, node)
	return true
}

// AddEdge 添加边
func (g *FlowGraph) AddEdge(edge *Edge) {
	if edge.ID == "" {
		edge.ID = fmt.Sprintf("e%d", len(g.Edges))
	}
	g.Edges = append(g.Edges, edge)
}

// GetNode 按表名获取节点
func (g *FlowGraph) GetNode(name string) *Node {
	return g.byName[name]
}

// Degree 节点的入度和出度
func (g *FlowGraph) Degree(id string) (in, out int) {
	for _, e := range g.Edges {
		if e.To == id {
			in++
		}
		if e.From == id {
			out++
		}
	}
	return in, out
}

// ToJSON 导出为JSON
func (g *FlowGraph) ToJSON() ([]byte, error) {
	return json.MarshalIndent(g, "", "  ")
}
