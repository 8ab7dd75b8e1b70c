package adapter

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sql-flow-analyzer/internal/analyzer"
)

func hasRelation(relations []analyzer.TableRelation, source, target string, op analyzer.Operation) bool {
	for _, rel := range relations {
		if rel.Source == source && rel.Target == target && rel.Operation == op {
			return true
		}
	}
	return false
}

func TestJoinDefinitions(t *testing.T) {
	tests := []struct {
		name     string
		defs     []Definition
		expected string
	}{
		{"empty", nil, ""},
		{"adds terminator", []Definition{{SQL: "CREATE TABLE a ()"}}, "CREATE TABLE a ();\n\n"},
		{"collapses terminators", []Definition{{SQL: "  SELECT 1;; \n"}}, "SELECT 1;\n\n"},
		{"skips blank", []Definition{{SQL: "  "}, {SQL: "SELECT 2"}}, "SELECT 2;\n\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, JoinDefinitions(tt.defs))
		})
	}
}

func TestOpenErrors(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, "oracle", "", "")
	assert.True(t, errors.Is(err, ErrUnsupportedType))

	_, err = Open(ctx, "mysql", "user:pass@tcp(localhost:3306)/etl", "")
	assert.True(t, errors.Is(err, ErrSchemaRequired))
}

func TestCleanMySQL(t *testing.T) {
	in := "CREATE DEFINER=`root`@`%` PROCEDURE `load_orders`()"
	assert.Equal(t, "CREATE PROCEDURE load_orders()", cleanMySQL(in))
}

func TestStripBrackets(t *testing.T) {
	in := "INSERT INTO [dbo].[orders] ([id]) SELECT [id] FROM [staging].[orders] WHERE code LIKE '[0-9]%'"
	assert.Equal(t, "INSERT INTO dbo.orders (id) SELECT id FROM staging.orders WHERE code LIKE '[0-9]%'", stripBrackets(in))
}

func TestMySQLFetchDefinitions(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM INFORMATION_SCHEMA.TABLES").
		WithArgs("etl").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow("orders").AddRow("staging_orders"))
	mock.ExpectQuery("FROM INFORMATION_SCHEMA.ROUTINES").
		WithArgs("etl").
		WillReturnRows(sqlmock.NewRows([]string{"ROUTINE_NAME"}).AddRow("load_orders"))
	mock.ExpectQuery(regexp.QuoteMeta("SHOW CREATE PROCEDURE `etl`.`load_orders`")).
		WillReturnRows(sqlmock.NewRows([]string{
			"Procedure", "sql_mode", "Create Procedure", "character_set_client", "collation_connection", "Database Collation",
		}).AddRow(
			"load_orders", "", "CREATE DEFINER=`root`@`%` PROCEDURE `load_orders`()\nBEGIN\n  INSERT INTO `orders` (id) SELECT id FROM `staging_orders`;\nEND",
			"utf8mb4", "utf8mb4_general_ci", "utf8mb4_general_ci",
		))

	defs, err := newMySQLAdapter(db, "etl").FetchDefinitions(context.Background())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	require.Len(t, defs, 3)
	assert.Equal(t, KindTable, defs[0].Kind)
	assert.Equal(t, "CREATE TABLE orders ()", defs[0].SQL)
	assert.Equal(t, KindProcedure, defs[2].Kind)
	assert.NotContains(t, defs[2].SQL, "DEFINER")
	assert.NotContains(t, defs[2].SQL, "`")

	res := analyzer.NewExtractor().Analyze(JoinDefinitions(defs))
	assert.Equal(t, []string{"orders", "staging_orders"}, res.Tables)
	assert.True(t, hasRelation(res.Relations, "staging_orders", "orders", analyzer.OpTransform))
}

func TestMySQLFetchDefinitionsError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM INFORMATION_SCHEMA.TABLES").WillReturnError(errors.New("access denied"))

	_, err = newMySQLAdapter(db, "etl").FetchDefinitions(context.Background())
	assert.ErrorContains(t, err, "failed to get tables")
	assert.ErrorContains(t, err, "access denied")
}

func TestSQLServerFetchDefinitions(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM INFORMATION_SCHEMA.TABLES").
		WithArgs("dbo").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_SCHEMA", "TABLE_NAME"}).
			AddRow("dbo", "orders").
			AddRow("dbo", "orders_audit"))
	mock.ExpectQuery("FROM sys.sql_modules").
		WithArgs("dbo").
		WillReturnRows(sqlmock.NewRows([]string{"name", "name", "definition"}).
			AddRow("dbo", "audit_orders", "CREATE PROCEDURE [dbo].[audit_orders]\nAS\nBEGIN\n  INSERT INTO [dbo].[orders_audit] ([id]) SELECT [id] FROM [dbo].[orders];\nEND").
			AddRow("dbo", "secret", nil))

	defs, err := newSQLServerAdapter(db, "dbo").FetchDefinitions(context.Background())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	require.Len(t, defs, 3)
	assert.Equal(t, "CREATE TABLE dbo.orders ()", defs[0].SQL)
	assert.Equal(t, "audit_orders", defs[2].Name)
	assert.NotContains(t, defs[2].SQL, "[")

	res := analyzer.NewExtractor().Analyze(JoinDefinitions(defs))
	assert.True(t, hasRelation(res.Relations, "dbo.orders", "dbo.orders_audit", analyzer.OpAudit))
}

func TestPostgresFetchDefinitions(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM information_schema.tables").
		WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("events"))
	mock.ExpectQuery("FROM pg_proc").
		WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"proname", "pg_get_functiondef"}))
	mock.ExpectQuery("FROM pg_matviews").
		WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"matviewname", "definition"}).
			AddRow("daily_events", " SELECT events.day,\n    count(*) AS total\n   FROM events\n  GROUP BY events.day;"))

	defs, err := newPostgresAdapter(db, "").FetchDefinitions(context.Background())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	require.Len(t, defs, 2)
	assert.Equal(t, "CREATE TABLE events ()", defs[0].SQL)
	assert.Equal(t, KindMaterializedView, defs[1].Kind)
	assert.Contains(t, defs[1].SQL, "CREATE MATERIALIZED VIEW daily_events AS")

	res := analyzer.NewExtractor().Analyze(JoinDefinitions(defs))
	assert.True(t, hasRelation(res.Relations, "events", "daily_events", analyzer.OpTransform))
}

func TestSQLiteFetchDefinitions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etl.db")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	for _, stmt := range []string{
		"CREATE TABLE orders (id INTEGER PRIMARY KEY, amount REAL)",
		"CREATE TABLE orders_audit (id INTEGER)",
		"CREATE INDEX idx_orders_amount ON orders (amount)",
		"CREATE VIEW big_orders AS SELECT id FROM orders WHERE amount > 100",
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())

	ctx := context.Background()
	a, err := Open(ctx, "sqlite", path, "")
	require.NoError(t, err)
	defer a.Close()

	defs, err := a.FetchDefinitions(ctx)
	require.NoError(t, err)

	var names []string
	for _, d := range defs {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"orders", "orders_audit", "big_orders"}, names)
	assert.Equal(t, KindView, defs[2].Kind)

	res := analyzer.NewExtractor().Analyze(JoinDefinitions(defs))
	assert.Equal(t, []string{"orders", "orders_audit"}, res.Tables)
}
