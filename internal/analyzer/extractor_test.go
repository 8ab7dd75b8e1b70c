package analyzer

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sql-flow-analyzer/internal/naming"
	"sql-flow-analyzer/internal/testutil"
)

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	return NewExtractor(WithLogger(testutil.NewTestLogger(t)))
}

func TestParseQueriesScenarios(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		expected []TableRelation
	}{
		{
			name:     "create table only",
			sql:      "CREATE TABLE foo (id INT, name TEXT);",
			expected: []TableRelation{},
		},
		{
			name: "insert from staging",
			sql:  "INSERT INTO sales_summary SELECT SUM(amount) AS total FROM staging_sales;",
			expected: []TableRelation{
				{
					Source:     "staging_sales",
					Target:     "sales_summary",
					Operation:  OpTransform,
					Columns:    []Column{{Name: "TOTAL", Transformation: "SUM(AMOUNT)"}},
					Conditions: []string{},
				},
			},
		},
		{
			name: "bare cte",
			sql:  "WITH recent AS (SELECT id FROM orders) SELECT * FROM recent;",
			expected: []TableRelation{
				{
					Source:     "orders",
					Target:     "recent",
					Operation:  OpExtract,
					Columns:    []Column{{Name: "id"}},
					Conditions: []string{},
				},
			},
		},
		{
			name: "merge into dimension",
			sql: `MERGE INTO dim_customer t
USING (SELECT id, name FROM staging_customer) s
ON (t.id = s.id)
WHEN MATCHED THEN UPDATE SET name = s.name
WHEN NOT MATCHED THEN INSERT (id, name) VALUES (s.id, s.name);`,
			expected: []TableRelation{
				{
					Source:     "staging_customer",
					Target:     "dim_customer",
					Operation:  OpMerge,
					Columns:    []Column{{Name: "id"}, {Name: "name"}},
					Conditions: []string{},
				},
				{
					Source:     "dim_customer",
					Target:     "etl_audit",
					Operation:  OpAudit,
					Columns:    []Column{},
					Conditions: []string{},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newTestExtractor(t).ParseQueries(tt.sql)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseQueriesIdempotent(t *testing.T) {
	sql := `
CREATE TABLE orders (id INT);
CREATE OR REPLACE PROCEDURE load_orders()
BEGIN
    WITH cleaned AS (SELECT o.id, TRIM(o.name) AS name FROM staging_orders o)
    INSERT INTO orders (id, name)
    SELECT id, name FROM cleaned;
END;
INSERT INTO orders_audit SELECT id FROM orders;
`
	e := newTestExtractor(t)
	first := e.ParseQueries(sql)
	second := e.ParseQueries(sql)

	require.NotEmpty(t, first)
	assert.Equal(t, first, second)
}

func TestParseQueriesNoDuplicateKeys(t *testing.T) {
	sql := `
INSERT INTO fact_sales SELECT a FROM raw_sales;
INSERT INTO fact_sales SELECT b FROM raw_sales;
INSERT INTO fact_sales SELECT c FROM raw_sales JOIN raw_sales ON 1 = 1;
`
	got := newTestExtractor(t).ParseQueries(sql)

	seen := make(map[relationKey]bool)
	for _, rel := range got {
		assert.False(t, seen[rel.key()], "duplicate relation %s", rel)
		seen[rel.key()] = true
		assert.NotEmpty(t, rel.Source)
		assert.NotEmpty(t, rel.Target)
	}

	require.Len(t, got, 2)
	// 首次出现者保留
	assert.Equal(t, []Column{{Name: "a"}}, got[0].Columns)
	assert.Equal(t, TableRelation{
		Source:     "fact_sales",
		Target:     "etl_audit",
		Operation:  OpAudit,
		Columns:    []Column{},
		Conditions: []string{},
	}, got[1])
}

func TestProcedureExtraction(t *testing.T) {
	sql := `CREATE OR REPLACE PROCEDURE refresh_sales()
LANGUAGE plpgsql
AS $$
BEGIN
    WITH totals AS (
        SELECT s.day, SUM(s.amount) AS total
        FROM staging_sales s
        GROUP BY s.day
    ), ranked AS (
        SELECT day, total FROM totals
    )
    INSERT INTO fact_sales_by_day (day, total)
    SELECT day, total FROM ranked
    ON CONFLICT (day) DO UPDATE SET total = EXCLUDED.total;

    INSERT INTO sales_audit (day)
    SELECT day FROM fact_sales_by_day;
EXCEPTION
    WHEN OTHERS THEN RAISE;
END;
$$;`

	res := newTestExtractor(t).Analyze(sql)
	assert.Equal(t, []string{"totals", "ranked"}, res.CTEs)

	got := make(map[string]TableRelation)
	for _, rel := range res.Relations {
		got[rel.String()] = rel
	}

	expected := []string{
		"staging_sales -[EXTRACT]-> totals",
		"totals -[TRANSFORM]-> ranked",
		"ranked -[TRANSFORM]-> fact_sales_by_day",
		"ranked -[LOAD]-> fact_sales_by_day",
		"fact_sales_by_day -[AUDIT]-> sales_audit",
		// CTE 串联
		"staging_sales -[TRANSFORM]-> ranked",
		"totals -[TRANSFORM]-> fact_sales_by_day",
		// 审计传播
		"ranked -[AUDIT]-> sales_audit",
		// 审计尾部
		"fact_sales_by_day -[AUDIT]-> etl_audit",
		// 暂存传播
		"staging_sales -[TRANSFORM]-> fact_sales_by_day",
	}
	for _, key := range expected {
		assert.Contains(t, got, key)
	}
	assert.Len(t, res.Relations, len(expected))

	assert.Equal(t, []Column{
		{Name: "day", SourceTable: "s"},
		{Name: "TOTAL", SourceTable: "SUM(S", Transformation: "SUM(S.AMOUNT)"},
	}, got["staging_sales -[EXTRACT]-> totals"].Columns)
}

func TestProcedureCTEIntoAuditTarget(t *testing.T) {
	sql := `CREATE PROCEDURE audit_run()
BEGIN
    WITH c AS (SELECT id FROM orders)
    INSERT INTO run_audit (id) SELECT id FROM c;
END;`

	keys := make([]string, 0)
	for _, rel := range newTestExtractor(t).ParseQueries(sql) {
		keys = append(keys, rel.String())
	}
	assert.ElementsMatch(t, []string{
		"orders -[EXTRACT]-> c",
		"c -[TRANSFORM]-> run_audit",
		"c -[AUDIT]-> run_audit",
		"orders -[TRANSFORM]-> run_audit",
		"orders -[AUDIT]-> run_audit",
	}, keys)
}

func TestStatementsAfterBodilessProcedure(t *testing.T) {
	got := newTestExtractor(t).ParseQueries(`CREATE PROCEDURE log_it AS PRINT 'hello';
INSERT INTO fact_orders SELECT id FROM raw_orders;
INSERT INTO fact_items SELECT id FROM raw_items;`)

	keys := make([]string, len(got))
	for i, rel := range got {
		keys[i] = rel.String()
	}
	assert.Equal(t, []string{
		"raw_orders -[LOAD]-> fact_orders",
		"raw_items -[LOAD]-> fact_items",
		"fact_orders -[AUDIT]-> etl_audit",
		"fact_items -[AUDIT]-> etl_audit",
	}, keys)
}

func TestHeadTruncatesOnRuneBoundary(t *testing.T) {
	sql := "INSERT INTO 订单汇总 SELECT 金额 FROM " + strings.Repeat("销售明细", 20)
	got := head(sql)
	assert.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, 60, utf8.RuneCountInString(strings.TrimSuffix(got, "...")))

	assert.Equal(t, "SELECT 1", head("SELECT\n  1"))
}

func TestInsertOperationClassification(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		expected Operation
	}{
		{"staging source", "INSERT INTO orders SELECT id FROM Staging_Orders;", OpTransform},
		{"audit target", "INSERT INTO orders_audit SELECT id FROM orders;", OpAudit},
		{"plain load", "INSERT INTO orders SELECT id FROM raw_orders;", OpLoad},
		{"join source", "INSERT INTO orders SELECT a.id FROM raw_a a LEFT JOIN staging_b b ON a.id = b.id;", OpLoad},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newTestExtractor(t).ParseQueries(tt.sql)
			require.NotEmpty(t, got)
			assert.Equal(t, tt.expected, got[0].Operation)
		})
	}
}

func TestMaterializedView(t *testing.T) {
	sql := `CREATE MATERIALIZED VIEW IF NOT EXISTS mart.customer_value AS
SELECT c.id, COUNT(o.id) AS orders
FROM warehouse.customers c
JOIN warehouse.orders o ON o.customer_id = c.id
GROUP BY c.id;`

	got := newTestExtractor(t).ParseQueries(sql)
	require.Len(t, got, 2)
	assert.Equal(t, "warehouse.customers", got[0].Source)
	assert.Equal(t, "warehouse.orders", got[1].Source)
	for _, rel := range got {
		assert.Equal(t, "mart.customer_value", rel.Target)
		assert.Equal(t, OpTransform, rel.Operation)
	}
	assert.Equal(t, []Column{
		{Name: "id", SourceTable: "c"},
		{Name: "ORDERS", SourceTable: "COUNT(O", Transformation: "COUNT(O.ID)"},
	}, got[0].Columns)
}

func TestSkipsUnknownAndUnmatched(t *testing.T) {
	sql := `
CALL refresh_everything();
UPDATE orders SET x = 1;
-- INSERT INTO ghost SELECT 1 FROM nowhere;
DELETE FROM orders WHERE id = 1;
`
	assert.Empty(t, newTestExtractor(t).ParseQueries(sql))
}

func TestCustomConventions(t *testing.T) {
	e := NewExtractor(
		WithLogger(testutil.NewTestLogger(t)),
		WithConventions(naming.Conventions{StagingMarker: "ods_", AuditTable: "lineage_log"}),
	)

	got := e.ParseQueries(`
INSERT INTO orders SELECT id FROM ods_orders;
INSERT INTO customers SELECT id FROM raw_customers;
`)

	keys := make([]string, len(got))
	for i, rel := range got {
		keys[i] = rel.String()
	}
	assert.Equal(t, []string{
		"ods_orders -[TRANSFORM]-> orders",
		"raw_customers -[LOAD]-> customers",
		"customers -[AUDIT]-> lineage_log",
		"ods_orders -[TRANSFORM]-> customers",
	}, keys)
}

func TestAnalyzeRecordsTables(t *testing.T) {
	res := newTestExtractor(t).Analyze(`
CREATE TABLE IF NOT EXISTS staging.orders (id INT);
CREATE TABLE orders (id INT);
CREATE TABLE orders (id INT);
`)
	assert.Equal(t, []string{"staging.orders", "orders"}, res.Tables)
	assert.Empty(t, res.Relations)
}
