package analyzer

import "strings"

// 视为转换的表达式标记
var transformMarkers = []string{
	"SUM(", "COUNT(", "AVG(", "COALESCE(", "CASE", "DATE_TRUNC(",
	"CAST(", "UPPER(", "LOWER(", "TRIM(", "CONCAT(",
}

// ExtractColumns 解析首个 SELECT ... FROM 之间的投影列
func ExtractColumns(sql string) []Column {
	m := selectListRe.FindStringSubmatch(sql)
	if m == nil {
		return nil
	}

	var columns []Column
	for _, expr := range SplitProjections(m[1]) {
		if expr == "" {
			continue
		}
		columns = append(columns, parseProjection(expr))
	}
	return columns
}

// SplitProjections 按顶层逗号切分投影列表
func SplitProjections(list string) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(list); i++ {
		switch list[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(list[start:i]))
				start = i + 1
			}
		}
	}
	return append(parts, strings.TrimSpace(list[start:]))
}

func parseProjection(raw string) Column {
	var expr, name string
	upper := strings.ToUpper(raw)
	if start, end := aliasIndex(upper); start >= 0 {
		expr = strings.TrimSpace(upper[:start])
		name = strings.TrimSpace(upper[end:])
	} else {
		expr = raw
		name = raw[strings.LastIndex(raw, ".")+1:]
	}

	col := Column{Name: strings.TrimSpace(name)}
	if i := strings.Index(expr, "."); i >= 0 {
		col.SourceTable = strings.TrimSpace(expr[:i])
	}
	exprUpper := strings.ToUpper(expr)
	for _, marker := range transformMarkers {
		if strings.Contains(exprUpper, marker) {
			col.Transformation = expr
			break
		}
	}
	return col
}

// aliasIndex 返回最后一个顶层 " AS " 的起止位置
func aliasIndex(upper string) (int, int) {
	start, end := -1, -1
	depth := 0
	for i := 0; i < len(upper); i++ {
		switch c := upper[i]; {
		case c == '(':
			depth++
		case c == ')':
			depth--
		case depth == 0 && isBlank(c) && i+3 < len(upper) &&
			upper[i+1] == 'A' && upper[i+2] == 'S' && isBlank(upper[i+3]):
			start, end = i, i+3
		}
	}
	return start, end
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
