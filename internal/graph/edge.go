package graph

// EdgeType 边类型，取值为 ETL 操作
type EdgeType string

// Edge 图的边
type Edge struct {
	ID   string   `json:"id"`
	Type EdgeType `json:"type"`
	From string   `json:"from"` // 节点ID
	To   string   `json:"to"`   // 节点ID
}
