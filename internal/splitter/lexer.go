package splitter

import "strings"

type tokenKind int

const (
	tokWord tokenKind = iota
	tokPunct
	tokQuoted
)

type token struct {
	kind  tokenKind
	text  string
	start int
	end   int
}

// lexer 逐个产出 token，跳过空白和注释
type lexer struct {
	src string
	pos int
}

func (l *lexer) next() (token, bool) {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case isSpace(c):
			l.pos++
		case c == '-' && l.at(l.pos+1) == '-':
			l.pos = lineCommentEnd(l.src, l.pos)
		case c == '/' && l.at(l.pos+1) == '*':
			l.pos = blockCommentEnd(l.src, l.pos)
		case c == '\'' || c == '"' || c == '`':
			start := l.pos
			l.pos = quotedEnd(l.src, l.pos)
			return token{kind: tokQuoted, text: l.src[start:l.pos], start: start, end: l.pos}, true
		case c == '$':
			start := l.pos
			if end, ok := dollarQuotedEnd(l.src, l.pos); ok {
				l.pos = end
				return token{kind: tokQuoted, text: l.src[start:l.pos], start: start, end: l.pos}, true
			}
			l.pos++
			return token{kind: tokPunct, text: "$", start: start, end: l.pos}, true
		case isIdentStart(c):
			start := l.pos
			for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
				l.pos++
			}
			return token{kind: tokWord, text: l.src[start:l.pos], start: start, end: l.pos}, true
		default:
			start := l.pos
			l.pos++
			return token{kind: tokPunct, text: l.src[start:l.pos], start: start, end: l.pos}, true
		}
	}
	return token{}, false
}

// peekWord 返回下一个 token 的大写形式（仅当它是单词）
func (l *lexer) peekWord() string {
	saved := l.pos
	defer func() { l.pos = saved }()
	tok, ok := l.next()
	if !ok || tok.kind != tokWord {
		return ""
	}
	return strings.ToUpper(tok.text)
}

// peekUntil 返回下一个分号之前的至多 n 个 token，不移动位置
func (l *lexer) peekUntil(n int) []token {
	saved := l.pos
	defer func() { l.pos = saved }()

	var out []token
	for len(out) < n {
		tok, ok := l.next()
		if !ok || (tok.kind == tokPunct && tok.text == ";") {
			break
		}
		out = append(out, tok)
	}
	return out
}

func (l *lexer) at(i int) byte {
	if i < len(l.src) {
		return l.src[i]
	}
	return 0
}

func lineCommentEnd(s string, i int) int {
	if idx := strings.IndexByte(s[i:], '\n'); idx >= 0 {
		return i + idx + 1
	}
	return len(s)
}

func blockCommentEnd(s string, i int) int {
	if idx := strings.Index(s[i+2:], "*/"); idx >= 0 {
		return i + 2 + idx + 2
	}
	return len(s)
}

// quotedEnd 引号字面量结束位置；'' 转义按两个相邻字面量处理
func quotedEnd(s string, i int) int {
	q := s[i]
	if idx := strings.IndexByte(s[i+1:], q); idx >= 0 {
		return i + 1 + idx + 1
	}
	return len(s)
}

// dollarQuotedEnd 处理 $tag$...$tag$
func dollarQuotedEnd(s string, i int) (int, bool) {
	j := i + 1
	for j < len(s) && (isIdentPart(s[j]) && s[j] < 0x80) {
		j++
	}
	if j >= len(s) || s[j] != '$' {
		return 0, false
	}
	// $1$ 之类不是合法标签
	if j > i+1 && s[i+1] >= '0' && s[i+1] <= '9' {
		return 0, false
	}
	tag := s[i : j+1]
	if idx := strings.Index(s[j+1:], tag); idx >= 0 {
		return j + 1 + idx + len(tag), true
	}
	return len(s), true
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
