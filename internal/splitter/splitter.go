// Package splitter 将 SQL 文本切分为语句并给出粗粒度类型
package splitter

import "strings"

// StatementType 语句粗粒度类型
type StatementType string

const (
	TypeSelect   StatementType = "SELECT"
	TypeInsert   StatementType = "INSERT"
	TypeUpdate   StatementType = "UPDATE"
	TypeDelete   StatementType = "DELETE"
	TypeMerge    StatementType = "MERGE"
	TypeReplace  StatementType = "REPLACE"
	TypeUpsert   StatementType = "UPSERT"
	TypeCreate   StatementType = "CREATE"
	TypeAlter    StatementType = "ALTER"
	TypeDrop     StatementType = "DROP"
	TypeTruncate StatementType = "TRUNCATE"
	TypeUnknown  StatementType = "UNKNOWN"
)

var leadingTypes = map[string]StatementType{
	"SELECT":   TypeSelect,
	"INSERT":   TypeInsert,
	"UPDATE":   TypeUpdate,
	"DELETE":   TypeDelete,
	"MERGE":    TypeMerge,
	"REPLACE":  TypeReplace,
	"UPSERT":   TypeUpsert,
	"CREATE":   TypeCreate,
	"ALTER":    TypeAlter,
	"DROP":     TypeDrop,
	"TRUNCATE": TypeTruncate,
}

// WITH 之后允许出现的主语句
var cteTypes = map[string]StatementType{
	"SELECT": TypeSelect,
	"INSERT": TypeInsert,
	"UPDATE": TypeUpdate,
	"DELETE": TypeDelete,
	"MERGE":  TypeMerge,
}

// Statement 单条语句
type Statement struct {
	Text string        `json:"text"`
	Type StatementType `json:"type"`
}

// Splitter 语句切分器
type Splitter struct{}

// New 创建切分器
func New() *Splitter {
	return &Splitter{}
}

// Split 按顶层分号切分，保留语句末尾的分号
func (s *Splitter) Split(text string) []Statement {
	var out []Statement
	lx := &lexer{src: text}
	tracker := &blockTracker{}
	start := 0

	for {
		tok, ok := lx.next()
		if !ok {
			break
		}
		if tok.kind == tokPunct && tok.text == ";" && tracker.canSplit() {
			out = appendStatement(out, text[start:tok.end])
			start = tok.end
			tracker = &blockTracker{}
			continue
		}
		tracker.observe(tok, lx)
	}

	return appendStatement(out, text[start:])
}

func appendStatement(out []Statement, raw string) []Statement {
	text := strings.TrimSpace(raw)
	if text == "" || text == ";" {
		return out
	}
	return append(out, Statement{Text: text, Type: Classify(text)})
}

// blockTracker 跟踪括号和过程体块深度
type blockTracker struct {
	words      int
	routine    bool
	headerDone bool
	awaiting   bool
	paren      int
	block      int
	prev       string
}

// 过程头部 AS/IS 后直接出现这些关键字时，说明不是声明段
var bodyStarters = map[string]bool{
	"SET": true, "SELECT": true, "INSERT": true, "UPDATE": true, "DELETE": true,
	"MERGE": true, "WITH": true, "DECLARE": true, "IF": true, "EXEC": true,
	"EXECUTE": true, "RETURN": true, "TRUNCATE": true, "WHILE": true,
	"CREATE": true, "DROP": true, "BEGIN": true, "LANGUAGE": true,
}

// Oracle 声明段中变量名后常见的类型关键字
var declarationTypes = map[string]bool{
	"NUMBER": true, "INTEGER": true, "INT": true, "PLS_INTEGER": true, "BINARY_INTEGER": true,
	"VARCHAR": true, "VARCHAR2": true, "NVARCHAR2": true, "CHAR": true, "NCHAR": true,
	"DATE": true, "TIMESTAMP": true, "BOOLEAN": true, "CLOB": true, "BLOB": true, "RAW": true,
	"FLOAT": true, "DECIMAL": true, "NUMERIC": true, "REAL": true, "LONG": true,
	"CURSOR": true, "CONSTANT": true, "EXCEPTION": true, "TYPE": true, "SUBTYPE": true, "PRAGMA": true,
}

// declarationFollows AS/IS 之后是否为 Oracle 声明段：名称后跟类型，或 %TYPE 引用
func declarationFollows(lx *lexer) bool {
	toks := lx.peekUntil(16)
	if len(toks) < 2 || toks[0].kind != tokWord {
		return false
	}
	first := strings.ToUpper(toks[0].text)
	if bodyStarters[first] {
		return false
	}
	if first == "CURSOR" || first == "TYPE" || first == "SUBTYPE" || first == "PRAGMA" {
		return true
	}
	if toks[1].kind != tokWord {
		return false
	}
	if declarationTypes[strings.ToUpper(toks[1].text)] {
		return true
	}
	for _, tok := range toks[2:] {
		if tok.kind == tokPunct && tok.text == "%" {
			return true
		}
	}
	return false
}

func (b *blockTracker) canSplit() bool {
	return b.paren <= 0 && b.block <= 0 && !b.awaiting
}

func (b *blockTracker) observe(tok token, lx *lexer) {
	switch tok.kind {
	case tokPunct:
		switch tok.text {
		case "(":
			b.paren++
		case ")":
			b.paren--
		}
		return
	case tokQuoted:
		return
	}

	word := strings.ToUpper(tok.text)
	prev := b.prev
	b.prev = word
	b.words++

	if b.words == 1 {
		b.headerDone = word != "CREATE"
		return
	}

	if !b.headerDone {
		switch word {
		case "PROCEDURE", "FUNCTION", "TRIGGER":
			b.routine = true
		case "AS", "IS":
			if b.routine {
				b.headerDone = true
				b.awaiting = declarationFollows(lx)
			}
		case "BEGIN":
			b.headerDone = true
		case "TABLE", "VIEW", "INDEX", "SCHEMA", "SEQUENCE", "TYPE", "DATABASE":
			if !b.routine {
				b.headerDone = true
			}
		}
	}

	if !b.routine {
		return
	}

	switch word {
	case "BEGIN":
		switch lx.peekWord() {
		case "TRAN", "TRANSACTION", "WORK":
			return
		}
		b.block++
		b.awaiting = false
	case "CASE":
		if b.block > 0 && prev != "END" {
			b.block++
		}
	case "END":
		switch lx.peekWord() {
		case "IF", "LOOP", "WHILE", "REPEAT", "FOR":
			return
		}
		if b.block > 0 {
			b.block--
		}
	}
}

// Classify 根据首个关键字给出语句类型
func Classify(text string) StatementType {
	lx := &lexer{src: text}
	depth := 0
	sawWith := false

	for {
		tok, ok := lx.next()
		if !ok {
			break
		}
		switch tok.kind {
		case tokPunct:
			switch tok.text {
			case "(":
				depth++
			case ")":
				depth--
			}
			continue
		case tokQuoted:
			if !sawWith {
				return TypeUnknown
			}
			continue
		}

		word := strings.ToUpper(tok.text)
		if !sawWith {
			if word != "WITH" {
				if t, ok := leadingTypes[word]; ok {
					return t
				}
				return TypeUnknown
			}
			sawWith = true
			continue
		}
		if depth == 0 {
			if t, ok := cteTypes[word]; ok {
				return t
			}
		}
	}
	return TypeUnknown
}

// StripComments 用空格替换注释，字面量原样保留
func StripComments(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case c == '-' && i+1 < len(text) && text[i+1] == '-':
			end := lineCommentEnd(text, i)
			sb.WriteByte(' ')
			if end > i && text[end-1] == '\n' {
				sb.WriteByte('\n')
			}
			i = end
		case c == '/' && i+1 < len(text) && text[i+1] == '*':
			sb.WriteByte(' ')
			i = blockCommentEnd(text, i)
		case c == '\'' || c == '"' || c == '`':
			end := quotedEnd(text, i)
			sb.WriteString(text[i:end])
			i = end
		case c == '$':
			if end, ok := dollarQuotedEnd(text, i); ok {
				sb.WriteString(text[i:end])
				i = end
				continue
			}
			sb.WriteByte(c)
			i++
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String()
}
