package analyzer

import (
	"log/slog"
	"strings"

	"sql-flow-analyzer/internal/naming"
	"sql-flow-analyzer/internal/splitter"
)

// StatementSplitter 语句切分接口
type StatementSplitter interface {
	Split(sql string) []splitter.Statement
}

// Result 一次解析的结果
type Result struct {
	Relations []TableRelation `json:"relations"`
	Tables    []string        `json:"tables"`
	CTEs      []string        `json:"ctes"`
}

// Extractor 血缘抽取器
type Extractor struct {
	splitter    StatementSplitter
	conventions naming.Conventions
	logger      *slog.Logger
}

// Option 抽取器选项
type Option func(*Extractor)

// WithConventions 设置命名约定
func WithConventions(c naming.Conventions) Option {
	return func(e *Extractor) {
		e.conventions = c.WithDefaults()
	}
}

// WithLogger 设置日志
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithSplitter 替换语句切分器
func WithSplitter(s StatementSplitter) Option {
	return func(e *Extractor) {
		if s != nil {
			e.splitter = s
		}
	}
}

// NewExtractor 创建抽取器
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		splitter:    splitter.New(),
		conventions: naming.DefaultConventions(),
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Conventions 当前命名约定
func (e *Extractor) Conventions() naming.Conventions {
	return e.conventions
}

// ParseQueries 抽取去重后的表关系
func (e *Extractor) ParseQueries(sql string) []TableRelation {
	return e.Analyze(sql).Relations
}

// Analyze 抽取表关系并返回声明的表与 CTE
func (e *Extractor) Analyze(sql string) *Result {
	st := NewState()
	for _, stmt := range e.splitter.Split(sql) {
		e.processStatement(st, stmt)
	}

	relations := NewInferrer(e.conventions).Infer(st)
	e.logger.Debug("lineage extracted",
		slog.Int("base", len(st.Relations)),
		slog.Int("relations", len(relations)),
		slog.Int("ctes", len(st.CTENames())),
		slog.Int("tables", len(st.Tables())))

	if relations == nil {
		relations = []TableRelation{}
	}
	return &Result{
		Relations: relations,
		Tables:    st.Tables(),
		CTEs:      st.CTENames(),
	}
}

func (e *Extractor) processStatement(st *State, stmt splitter.Statement) {
	if stmt.Type == splitter.TypeUnknown {
		e.logger.Debug("skip statement", slog.String("head", head(stmt.Text)))
		return
	}

	sniff := splitter.StripComments(stmt.Text)
	switch {
	case procedureKeyRe.MatchString(sniff):
		e.processProcedure(st, stmt.Text)
	case createTableKey.MatchString(sniff):
		e.processCreateTable(st, stmt.Text)
	case withKeyRe.MatchString(sniff):
		e.processCTEs(st, stmt.Text)
	case stmt.Type == splitter.TypeInsert:
		e.processInsert(st, stmt.Text)
	case mergeKeyRe.MatchString(sniff):
		e.processMerge(st, stmt.Text)
	case matViewKeyRe.MatchString(sniff):
		e.processMaterializedView(st, stmt.Text)
	default:
		e.logger.Debug("no lineage pattern", slog.String("type", string(stmt.Type)), slog.String("head", head(stmt.Text)))
	}
}

func (e *Extractor) processCreateTable(st *State, sql string) {
	if m := createTableRe.FindStringSubmatch(sql); m != nil {
		st.AddTable(m[1])
	}
}

func (e *Extractor) processProcedure(st *State, sql string) {
	m := procedureRe.FindStringSubmatch(sql)
	if m == nil {
		return
	}
	body := bodyRe.FindStringSubmatch(sql)
	if body == nil {
		e.logger.Debug("procedure without body", slog.String("procedure", m[1]))
		return
	}

	e.processCTEs(st, body[1])

	for _, ins := range procInsertRe.FindAllStringSubmatch(body[1], -1) {
		target, selectBody := ins[1], ins[3]
		columns := ExtractColumns("SELECT " + selectBody)

		for _, source := range SourceTables(selectBody) {
			st.Add(TableRelation{
				Source:    source,
				Target:    target,
				Operation: e.insertOperation(st, source, target),
				Columns:   columns,
			})
		}

		for _, cte := range st.CTENames() {
			if !strings.Contains(selectBody, cte) {
				continue
			}
			op := OpLoad
			if e.conventions.IsAudit(target) {
				op = OpAudit
			}
			st.Add(TableRelation{Source: cte, Target: target, Operation: op, Columns: columns})
		}
	}
}

// processCTEs 登记 CTE 并记录其来源
func (e *Extractor) processCTEs(st *State, sql string) {
	for _, block := range findCTEBlocks(sql) {
		columns := ExtractColumns(block.Query)
		st.RegisterCTE(block.Name)

		for _, source := range SourceTables(block.Query) {
			op := OpExtract
			if st.IsCTE(source) {
				op = OpTransform
			}
			st.Add(TableRelation{Source: source, Target: block.Name, Operation: op, Columns: columns})
		}
	}
}

func (e *Extractor) processInsert(st *State, sql string) {
	m := insertIntoRe.FindStringSubmatch(sql)
	if m == nil {
		return
	}
	target := m[1]
	columns := ExtractColumns(sql)
	for _, source := range SourceTables(sql) {
		st.Add(TableRelation{
			Source:    source,
			Target:    target,
			Operation: e.insertOperation(st, source, target),
			Columns:   columns,
		})
	}
}

func (e *Extractor) processMerge(st *State, sql string) {
	m := mergeIntoRe.FindStringSubmatch(sql)
	if m == nil {
		return
	}
	subquery, ok := mergeSubquery(sql)
	if !ok {
		return
	}
	target := m[1]
	columns := ExtractColumns(subquery)
	for _, source := range SourceTables(subquery) {
		st.Add(TableRelation{Source: source, Target: target, Operation: OpMerge, Columns: columns})
	}
}

func (e *Extractor) processMaterializedView(st *State, sql string) {
	m := matViewRe.FindStringSubmatch(sql)
	if m == nil {
		return
	}
	view := m[1]
	columns := ExtractColumns(sql)
	for _, source := range SourceTables(sql) {
		st.Add(TableRelation{Source: source, Target: view, Operation: OpTransform, Columns: columns})
	}
}

// insertOperation 暂存表或 CTE 来源为 TRANSFORM，审计目标为 AUDIT，其余 LOAD
func (e *Extractor) insertOperation(st *State, source, target string) Operation {
	switch {
	case e.conventions.IsStaging(source) || st.IsCTE(source):
		return OpTransform
	case e.conventions.IsAudit(target):
		return OpAudit
	default:
		return OpLoad
	}
}

func head(sql string) string {
	sql = strings.Join(strings.Fields(sql), " ")
	if r := []rune(sql); len(r) > 60 {
		return string(r[:60]) + "..."
	}
	return sql
}
