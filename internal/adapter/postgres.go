package adapter

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// DefaultPostgresSchema 未指定 schema 时使用
const DefaultPostgresSchema = "public"

// PostgresAdapter PostgreSQL 适配器
type PostgresAdapter struct {
	db     *sql.DB
	schema string
}

// NewPostgresAdapter 创建 PostgreSQL 适配器
func NewPostgresAdapter(ctx context.Context, connStr, schema string) (*PostgresAdapter, error) {
	db, err := openDB(ctx, "postgres", connStr)
	if err != nil {
		return nil, err
	}
	return newPostgresAdapter(db, schema), nil
}

func newPostgresAdapter(db *sql.DB, schema string) *PostgresAdapter {
	if schema == "" {
		schema = DefaultPostgresSchema
	}
	return &PostgresAdapter{db: db, schema: schema}
}

// FetchDefinitions 表、存储过程、物化视图
func (a *PostgresAdapter) FetchDefinitions(ctx context.Context) ([]Definition, error) {
	tables, err := a.getTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get tables: %w", err)
	}

	procs, err := a.getProcedures(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get procedures: %w", err)
	}

	views, err := a.getMaterializedViews(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get materialized views: %w", err)
	}

	defs := append(tables, procs...)
	return append(defs, views...), nil
}

// qualifier public 下的表不加前缀
func (a *PostgresAdapter) qualifier() string {
	if a.schema == DefaultPostgresSchema {
		return ""
	}
	return a.schema
}

func (a *PostgresAdapter) getTables(ctx context.Context) ([]Definition, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`
	names, err := queryNames(ctx, a.db, query, a.schema)
	if err != nil {
		return nil, err
	}

	defs := make([]Definition, 0, len(names))
	for _, name := range names {
		defs = append(defs, tableStub(a.qualifier(), name))
	}
	return defs, nil
}

func (a *PostgresAdapter) getProcedures(ctx context.Context) ([]Definition, error) {
	query := `
		SELECT p.proname, pg_get_functiondef(p.oid)
		FROM pg_proc p
		JOIN pg_namespace n ON n.oid = p.pronamespace
		WHERE n.nspname = $1 AND p.prokind = 'p'
		ORDER BY p.proname
	`
	pairs, err := queryPairs(ctx, a.db, query, a.schema)
	if err != nil {
		return nil, err
	}

	defs := make([]Definition, 0, len(pairs))
	for _, p := range pairs {
		defs = append(defs, Definition{
			Schema: a.schema,
			Name:   p[0],
			Kind:   KindProcedure,
			SQL:    p[1],
		})
	}
	return defs, nil
}

// getMaterializedViews pg_matviews 只保存查询部分，补上 CREATE 头
func (a *PostgresAdapter) getMaterializedViews(ctx context.Context) ([]Definition, error) {
	query := `
		SELECT matviewname, definition
		FROM pg_matviews
		WHERE schemaname = $1
		ORDER BY matviewname
	`
	pairs, err := queryPairs(ctx, a.db, query, a.schema)
	if err != nil {
		return nil, err
	}

	defs := make([]Definition, 0, len(pairs))
	for _, p := range pairs {
		name := p[0]
		if q := a.qualifier(); q != "" {
			name = q + "." + name
		}
		defs = append(defs, Definition{
			Schema: a.schema,
			Name:   p[0],
			Kind:   KindMaterializedView,
			SQL:    fmt.Sprintf("CREATE MATERIALIZED VIEW %s AS\n%s", name, p[1]),
		})
	}
	return defs, nil
}

// Close 关闭连接
func (a *PostgresAdapter) Close() error {
	return a.db.Close()
}
