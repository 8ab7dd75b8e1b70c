package analyzer

import (
	"fmt"
	"strings"
)

// Operation ETL 操作类型
type Operation string

const (
	OpExtract   Operation = "EXTRACT"
	OpTransform Operation = "TRANSFORM"
	OpLoad      Operation = "LOAD"
	OpMerge     Operation = "MERGE"
	OpAudit     Operation = "AUDIT"
)

// Operations 全部操作类型，按图例顺序
var Operations = []Operation{OpExtract, OpTransform, OpLoad, OpMerge, OpAudit}

// Column 投影列，空字符串表示缺省
type Column struct {
	Name           string `json:"name"`
	SourceTable    string `json:"source_table,omitempty"`
	Transformation string `json:"transformation,omitempty"`
}

// String 列的文本形式，桥接推断按此做包含判断
func (c Column) String() string {
	return fmt.Sprintf("Column(name=%s, source_table=%s, transformation=%s)",
		c.Name, c.SourceTable, c.Transformation)
}

// TableRelation 表间有向关系
type TableRelation struct {
	Source     string    `json:"source"`
	Target     string    `json:"target"`
	Operation  Operation `json:"operation"`
	Columns    []Column  `json:"columns"`
	Conditions []string  `json:"conditions"`
}

type relationKey struct {
	source    string
	target    string
	operation Operation
}

func (r TableRelation) key() relationKey {
	return relationKey{source: r.Source, target: r.Target, operation: r.Operation}
}

// String 形如 a -[LOAD]-> b
func (r TableRelation) String() string {
	return fmt.Sprintf("%s -[%s]-> %s", r.Source, r.Operation, r.Target)
}

// Dedupe 按 (source, target, operation) 去重，保留首次出现
func Dedupe(relations []TableRelation) []TableRelation {
	seen := make(map[relationKey]struct{}, len(relations))
	out := make([]TableRelation, 0, len(relations))
	for _, rel := range relations {
		k := rel.key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, rel)
	}
	return out
}

func columnsText(columns []Column) string {
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = c.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
