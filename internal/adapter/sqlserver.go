package adapter

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/denisenkom/go-mssqldb"
)

// SQLServerAdapter SQL Server 适配器
type SQLServerAdapter struct {
	db     *sql.DB
	schema string
}

// NewSQLServerAdapter 创建 SQL Server 适配器，schema 为空时读取全部 schema
func NewSQLServerAdapter(ctx context.Context, connStr, schema string) (*SQLServerAdapter, error) {
	db, err := openDB(ctx, "sqlserver", connStr)
	if err != nil {
		return nil, err
	}
	return newSQLServerAdapter(db, schema), nil
}

func newSQLServerAdapter(db *sql.DB, schema string) *SQLServerAdapter {
	return &SQLServerAdapter{db: db, schema: schema}
}

// FetchDefinitions 先表后存储过程
func (a *SQLServerAdapter) FetchDefinitions(ctx context.Context) ([]Definition, error) {
	tables, err := a.getTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get tables: %w", err)
	}

	procs, err := a.getProcedures(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get procedures: %w", err)
	}

	return append(tables, procs...), nil
}

// getTables 获取所有基础表
func (a *SQLServerAdapter) getTables(ctx context.Context) ([]Definition, error) {
	query := `
		SELECT TABLE_SCHEMA, TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_TYPE = 'BASE TABLE'
	`
	var args []interface{}
	if a.schema != "" {
		query += " AND TABLE_SCHEMA = @p1"
		args = append(args, a.schema)
	}
	query += " ORDER BY TABLE_SCHEMA, TABLE_NAME"

	pairs, err := queryPairs(ctx, a.db, query, args...)
	if err != nil {
		return nil, err
	}

	defs := make([]Definition, 0, len(pairs))
	for _, p := range pairs {
		defs = append(defs, tableStub(p[0], p[1]))
	}
	return defs, nil
}

// getProcedures 从 sys.sql_modules 读取存储过程正文
func (a *SQLServerAdapter) getProcedures(ctx context.Context) ([]Definition, error) {
	query := `
		SELECT s.name, o.name, m.definition
		FROM sys.sql_modules m
		JOIN sys.objects o ON o.object_id = m.object_id
		JOIN sys.schemas s ON s.schema_id = o.schema_id
		WHERE o.type = 'P'
	`
	var args []interface{}
	if a.schema != "" {
		query += " AND s.name = @p1"
		args = append(args, a.schema)
	}
	query += " ORDER BY s.name, o.name"

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []Definition
	for rows.Next() {
		var schema, name string
		var body sql.NullString
		if err := rows.Scan(&schema, &name, &body); err != nil {
			return nil, err
		}
		// 加密的存储过程 definition 为 NULL
		if !body.Valid {
			continue
		}
		defs = append(defs, Definition{
			Schema: schema,
			Name:   name,
			Kind:   KindProcedure,
			SQL:    stripBrackets(body.String),
		})
	}
	return defs, rows.Err()
}

// Close 关闭连接
func (a *SQLServerAdapter) Close() error {
	return a.db.Close()
}
