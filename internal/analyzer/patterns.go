package analyzer

import (
	"regexp"
	"strings"
)

// 表标识符：name 或 schema.name
const identPattern = `[a-zA-Z_][a-zA-Z0-9_]*(?:\.[a-zA-Z_][a-zA-Z0-9_]*)?`

// 语句分类用的关键字探测
var (
	procedureKeyRe = regexp.MustCompile(`(?i)\bCREATE\s+(?:OR\s+REPLACE\s+)?PROCEDURE\b`)
	createTableKey = regexp.MustCompile(`(?i)\bCREATE\s+TABLE\b`)
	withKeyRe      = regexp.MustCompile(`(?i)\bWITH\b`)
	mergeKeyRe     = regexp.MustCompile(`(?i)\bMERGE\b`)
	matViewKeyRe   = regexp.MustCompile(`(?i)\bCREATE\s+MATERIALIZED\s+VIEW\b`)
)

// 抽取用的模式
var (
	createTableRe = regexp.MustCompile(`(?i)CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?(` + identPattern + `)`)
	procedureRe   = regexp.MustCompile(`(?i)CREATE\s+(?:OR\s+REPLACE\s+)?PROCEDURE\s+(` + identPattern + `)`)
	bodyRe        = regexp.MustCompile(`(?is)\bBEGIN\b(.*?)(?:\bEXCEPTION\b|\bEND\s*;)`)
	procInsertRe  = regexp.MustCompile(`(?is)INSERT\s+INTO\s+(` + identPattern + `)\s*\((.*?)\)\s*SELECT\s*(.*?)(?:;|\s*ON\s+CONFLICT|\s*$)`)
	insertIntoRe  = regexp.MustCompile(`(?i)INSERT\s+INTO\s+(` + identPattern + `)`)
	mergeIntoRe   = regexp.MustCompile(`(?i)MERGE\s+INTO\s+(` + identPattern + `)`)
	usingRe       = regexp.MustCompile(`(?i)\bUSING\s*\(`)
	matViewRe     = regexp.MustCompile(`(?i)CREATE\s+MATERIALIZED\s+VIEW\s+(?:IF\s+NOT\s+EXISTS\s+)?(` + identPattern + `)`)
	fromRe        = regexp.MustCompile(`(?i)\bFROM\s+(` + identPattern + `)`)
	joinRe        = regexp.MustCompile(`(?i)\bJOIN\s+(` + identPattern + `)`)
	selectListRe  = regexp.MustCompile(`(?is)SELECT\s+(.*?)\s+FROM`)
)

// CTE 块头部：首个块与后续逗号分隔的块
var (
	cteFirstRe = regexp.MustCompile(`(?is)^\s*(?:RECURSIVE\s+)?([a-zA-Z_][a-zA-Z0-9_]*)\s*(?:\([^()]*\)\s*)?AS\s*(?:NOT\s+)?(?:MATERIALIZED\s*)?\(`)
	cteNextRe  = regexp.MustCompile(`(?is)^\s*,\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*(?:\([^()]*\)\s*)?AS\s*(?:NOT\s+)?(?:MATERIALIZED\s*)?\(`)
)

// SourceTables FROM 命中在前，JOIN 命中在后；不去重
func SourceTables(sql string) []string {
	var sources []string
	for _, m := range fromRe.FindAllStringSubmatch(sql, -1) {
		sources = append(sources, m[1])
	}
	for _, m := range joinRe.FindAllStringSubmatch(sql, -1) {
		sources = append(sources, m[1])
	}
	return sources
}

// cteBlock 一个 CTE 定义
type cteBlock struct {
	Name  string
	Query string
}

// findCTEBlocks 扫描 WITH 之后的 CTE 定义；已扫描块内部的 WITH 不再处理
func findCTEBlocks(sql string) []cteBlock {
	var blocks []cteBlock
	consumed := 0
	for _, loc := range withKeyRe.FindAllStringIndex(sql, -1) {
		if loc[0] < consumed {
			continue
		}
		offset := loc[1]
		head := cteFirstRe
		for {
			m := head.FindStringSubmatchIndex(sql[offset:])
			if m == nil {
				break
			}
			open := offset + m[1] - 1
			closing := matchParen(sql, open)
			if closing < 0 {
				break
			}
			blocks = append(blocks, cteBlock{
				Name:  sql[offset+m[2] : offset+m[3]],
				Query: strings.TrimSpace(sql[open+1 : closing]),
			})
			offset = closing + 1
			consumed = offset
			head = cteNextRe
		}
	}
	return blocks
}

// matchParen 返回与 open 处左括号匹配的右括号位置，跳过字符串字面量
func matchParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '\'':
			j := strings.IndexByte(s[i+1:], '\'')
			if j < 0 {
				return -1
			}
			i += j + 1
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// mergeSubquery USING ( ... ) 中的子查询
func mergeSubquery(sql string) (string, bool) {
	loc := usingRe.FindStringIndex(sql)
	if loc == nil {
		return "", false
	}
	open := loc[1] - 1
	closing := matchParen(sql, open)
	if closing < 0 {
		return "", false
	}
	return sql[open+1 : closing], true
}
