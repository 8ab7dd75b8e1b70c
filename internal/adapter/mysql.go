package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLAdapter MySQL 适配器
type MySQLAdapter struct {
	db     *sql.DB
	schema string
}

// NewMySQLAdapter 创建 MySQL 适配器
func NewMySQLAdapter(ctx context.Context, connStr, schema string) (*MySQLAdapter, error) {
	db, err := openDB(ctx, "mysql", connStr)
	if err != nil {
		return nil, err
	}
	return newMySQLAdapter(db, schema), nil
}

func newMySQLAdapter(db *sql.DB, schema string) *MySQLAdapter {
	return &MySQLAdapter{db: db, schema: schema}
}

// FetchDefinitions 先表后存储过程
func (a *MySQLAdapter) FetchDefinitions(ctx context.Context) ([]Definition, error) {
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
func (a *MySQLAdapter) getTables(ctx context.Context) ([]Definition, error) {
	query := `
		SELECT TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME
	`
	names, err := queryNames(ctx, a.db, query, a.schema)
	if err != nil {
		return nil, err
	}

	defs := make([]Definition, 0, len(names))
	for _, name := range names {
		defs = append(defs, tableStub("", name))
	}
	return defs, nil
}

// getProcedures 逐个读取 SHOW CREATE PROCEDURE
func (a *MySQLAdapter) getProcedures(ctx context.Context) ([]Definition, error) {
	query := `
		SELECT ROUTINE_NAME
		FROM INFORMATION_SCHEMA.ROUTINES
		WHERE ROUTINE_SCHEMA = ? AND ROUTINE_TYPE = 'PROCEDURE'
		ORDER BY ROUTINE_NAME
	`
	names, err := queryNames(ctx, a.db, query, a.schema)
	if err != nil {
		return nil, err
	}

	var defs []Definition
	for _, name := range names {
		body, err := a.showCreateProcedure(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("procedure %s: %w", name, err)
		}
		if body == "" {
			continue
		}
		defs = append(defs, Definition{
			Schema: a.schema,
			Name:   name,
			Kind:   KindProcedure,
			SQL:    cleanMySQL(body),
		})
	}
	return defs, nil
}

func (a *MySQLAdapter) showCreateProcedure(ctx context.Context, name string) (string, error) {
	query := fmt.Sprintf("SHOW CREATE PROCEDURE `%s`.`%s`", a.schema, name)

	// Procedure, sql_mode, Create Procedure, character_set_client, collation_connection, Database Collation
	var procName, sqlMode, body, charset, collation, dbCollation sql.NullString
	err := a.db.QueryRowContext(ctx, query).Scan(&procName, &sqlMode, &body, &charset, &collation, &dbCollation)
	if err != nil {
		return "", err
	}
	return body.String, nil
}

var definerRe = regexp.MustCompile(`(?i)\s+DEFINER\s*=\s*\S+`)

// cleanMySQL 去掉反引号和 DEFINER 子句
func cleanMySQL(sql string) string {
	sql = strings.ReplaceAll(sql, "`", "")
	return definerRe.ReplaceAllString(sql, "")
}

// Close 关闭连接
func (a *MySQLAdapter) Close() error {
	return a.db.Close()
}
