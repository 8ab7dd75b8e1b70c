package analyzer

import (
	"fmt"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"

	"sql-flow-analyzer/internal/naming"
)

// 相似度达到该值才视为疑似拼写错误
const nearMissThreshold = 0.8

// Warning 诊断信息
type Warning struct {
	Table      string  `json:"table"`
	Suggestion string  `json:"suggestion"`
	Similarity float64 `json:"similarity"`
}

func (w Warning) String() string {
	return fmt.Sprintf("表 %s 未声明，是否为 %s？(相似度 %.2f)", w.Table, w.Suggestion, w.Similarity)
}

// Diagnose 检查关系端点中疑似拼错的表名，不改变关系结果
func Diagnose(res *Result, conv naming.Conventions) []Warning {
	if res == nil || len(res.Tables) == 0 {
		return nil
	}
	conv = conv.WithDefaults()

	known := NewState()
	for _, t := range res.Tables {
		known.AddTable(t)
	}
	for _, c := range res.CTEs {
		known.RegisterCTE(c)
	}

	var warnings []Warning
	checked := make(map[string]struct{})
	check := func(name string) {
		if _, ok := checked[name]; ok {
			return
		}
		checked[name] = struct{}{}
		if known.HasTable(name) || known.IsCTE(name) || name == conv.AuditTable {
			return
		}

		best, bestScore := "", 0.0
		for _, table := range res.Tables {
			if score := nameSimilarity(name, table); score > bestScore {
				best, bestScore = table, score
			}
		}
		if bestScore >= nearMissThreshold && bestScore < 1.0 {
			warnings = append(warnings, Warning{Table: name, Suggestion: best, Similarity: bestScore})
		}
	}

	for _, rel := range res.Relations {
		check(rel.Source)
		check(rel.Target)
	}
	return warnings
}

// nameSimilarity 名称相似度，基于编辑距离
func nameSimilarity(name1, name2 string) float64 {
	n1 := strings.ToLower(name1)
	n2 := strings.ToLower(name2)

	if n1 == n2 {
		return 1.0
	}

	distance := levenshtein.DistanceForStrings([]rune(n1), []rune(n2), levenshtein.DefaultOptions)
	maxLen := len([]rune(n1))
	if l := len([]rune(n2)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 0.0
	}

	similarity := 1.0 - float64(distance)/float64(maxLen)
	if similarity < 0 {
		return 0.0
	}
	return similarity
}
