package analyzer

import (
	"strings"

	"sql-flow-analyzer/internal/naming"
)

// Inferrer 基于已抽取关系推断隐含关系
type Inferrer struct {
	conventions naming.Conventions
}

// NewInferrer 创建推断器
func NewInferrer(c naming.Conventions) *Inferrer {
	return &Inferrer{conventions: c.WithDefaults()}
}

// Infer 依次执行五轮推断，结果按 基础、CTE、审计、暂存 的顺序拼接后去重
func (in *Inferrer) Infer(st *State) []TableRelation {
	base := Dedupe(st.Relations)

	chained := ChainCTEs(base, st.IsCTE)
	audited := PropagateAudit(base, in.conventions)
	staged := PropagateStaging(base, in.conventions)
	bridged := BridgeCTETargets(base, st.IsCTE)
	trailers := AuditTrailers(base, in.conventions)

	all := make([]TableRelation, 0, len(base)+len(chained)+len(audited)+len(staged)+len(bridged)+len(trailers))
	all = append(all, base...)
	all = append(all, chained...)
	all = append(all, bridged...)
	all = append(all, audited...)
	all = append(all, trailers...)
	all = append(all, staged...)
	return Dedupe(all)
}

// ChainCTEs 来源经 CTE 流向下游时，补出来源到下游的 TRANSFORM
func ChainCTEs(relations []TableRelation, isCTE func(string) bool) []TableRelation {
	var out []TableRelation
	for _, rel := range relations {
		if !isCTE(rel.Target) {
			continue
		}
		for _, other := range relations {
			if other.Source != rel.Target {
				continue
			}
			out = append(out, TableRelation{
				Source:     rel.Source,
				Target:     other.Target,
				Operation:  OpTransform,
				Columns:    other.Columns,
				Conditions: []string{},
			})
		}
	}
	return out
}

// PropagateAudit 审计表的来源的上游也指向该审计表
func PropagateAudit(relations []TableRelation, conv naming.Conventions) []TableRelation {
	var out []TableRelation
	for _, rel := range relations {
		if !conv.IsAudit(rel.Target) {
			continue
		}
		for _, other := range relations {
			if other.Target != rel.Source {
				continue
			}
			out = append(out, TableRelation{
				Source:     other.Source,
				Target:     rel.Target,
				Operation:  OpAudit,
				Columns:    rel.Columns,
				Conditions: []string{},
			})
		}
	}
	return out
}

// PropagateStaging 暂存表流向每个 LOAD 目标
func PropagateStaging(relations []TableRelation, conv naming.Conventions) []TableRelation {
	var loadTargets []string
	seen := make(map[string]struct{})
	for _, rel := range relations {
		if rel.Operation != OpLoad {
			continue
		}
		if _, ok := seen[rel.Target]; ok {
			continue
		}
		seen[rel.Target] = struct{}{}
		loadTargets = append(loadTargets, rel.Target)
	}

	var out []TableRelation
	for _, rel := range relations {
		if !conv.IsStaging(rel.Source) {
			continue
		}
		for _, target := range loadTargets {
			out = append(out, TableRelation{
				Source:     rel.Source,
				Target:     target,
				Operation:  OpTransform,
				Columns:    rel.Columns,
				Conditions: []string{},
			})
		}
	}
	return out
}

// BridgeCTETargets CTE 名出现在某 LOAD 关系的列中时，补出 CTE 到该目标的 TRANSFORM
func BridgeCTETargets(relations []TableRelation, isCTE func(string) bool) []TableRelation {
	var out []TableRelation
	for _, rel := range relations {
		if !isCTE(rel.Target) {
			continue
		}
		for _, other := range relations {
			if other.Operation != OpLoad || !strings.Contains(columnsText(other.Columns), rel.Target) {
				continue
			}
			out = append(out, TableRelation{
				Source:     rel.Target,
				Target:     other.Target,
				Operation:  OpTransform,
				Columns:    other.Columns,
				Conditions: []string{},
			})
		}
	}
	return out
}

// AuditTrailers 每个 LOAD/MERGE 目标都写入审计表
func AuditTrailers(relations []TableRelation, conv naming.Conventions) []TableRelation {
	auditTable := conv.WithDefaults().AuditTable
	var out []TableRelation
	for _, rel := range relations {
		if rel.Operation != OpLoad && rel.Operation != OpMerge {
			continue
		}
		out = append(out, TableRelation{
			Source:     rel.Target,
			Target:     auditTable,
			Operation:  OpAudit,
			Columns:    []Column{},
			Conditions: []string{},
		})
	}
	return out
}
