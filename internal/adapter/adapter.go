package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrUnsupportedType 不支持的数据库类型
	ErrUnsupportedType = errors.New("unsupported database type")
	// ErrSchemaRequired 需要指定 schema
	ErrSchemaRequired = errors.New("schema is required")
)

// DBAdapter 数据库定义来源
type DBAdapter interface {
	// FetchDefinitions 获取表、存储过程和物化视图的定义
	FetchDefinitions(ctx context.Context) ([]Definition, error)

	// Close 关闭连接
	Close() error
}

// DefinitionKind 定义类型
type DefinitionKind string

const (
	KindTable            DefinitionKind = "table"
	KindView             DefinitionKind = "view"
	KindMaterializedView DefinitionKind = "materialized_view"
	KindProcedure        DefinitionKind = "procedure"
	KindTrigger          DefinitionKind = "trigger"
)

// Definition 一条对象定义
type Definition struct {
	Schema string
	Name   string
	Kind   DefinitionKind
	SQL    string
}

// Types 支持的数据库类型
var Types = []string{"sqlserver", "mysql", "postgres", "sqlite"}

// Open 按类型创建适配器并验证连接
func Open(ctx context.Context, dbType, connStr, schema string) (DBAdapter, error) {
	var (
		a   DBAdapter
		err error
	)

	switch strings.ToLower(dbType) {
	case "sqlserver", "mssql":
		a, err = NewSQLServerAdapter(ctx, connStr, schema)
	case "mysql":
		if schema == "" {
			return nil, fmt.Errorf("mysql: %w", ErrSchemaRequired)
		}
		a, err = NewMySQLAdapter(ctx, connStr, schema)
	case "postgres", "postgresql":
		a, err = NewPostgresAdapter(ctx, connStr, schema)
	case "sqlite", "sqlite3":
		a, err = NewSQLiteAdapter(ctx, connStr)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, dbType)
	}

	if err != nil {
		return nil, err
	}
	return a, nil
}

// JoinDefinitions 每条定义以单个分号结尾后拼接
func JoinDefinitions(defs []Definition) string {
	var sb strings.Builder
	for _, def := range defs {
		text := strings.TrimRight(strings.TrimSpace(def.SQL), "; \t\r\n")
		if text == "" {
			continue
		}
		sb.WriteString(text)
		sb.WriteString(";\n\n")
	}
	return sb.String()
}

// tableStub 只携带表名的建表语句
func tableStub(schema, name string) Definition {
	qualified := name
	if schema != "" {
		qualified = schema + "." + name
	}
	return Definition{
		Schema: schema,
		Name:   name,
		Kind:   KindTable,
		SQL:    fmt.Sprintf("CREATE TABLE %s ()", qualified),
	}
}

var bracketIdentRe = regexp.MustCompile(`\[([A-Za-z_][A-Za-z0-9_]*)\]`)

// stripBrackets 去掉 [name] 形式的引用
func stripBrackets(sql string) string {
	return bracketIdentRe.ReplaceAllString(sql, "$1")
}

// openDB 打开连接并 Ping
func openDB(ctx context.Context, driver, connStr string) (*sql.DB, error) {
	db, err := sql.Open(driver, connStr)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, nil
}

// queryPairs 执行返回两列字符串的查询
func queryPairs(ctx context.Context, db *sql.DB, query string, args ...interface{}) ([][2]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][2]string
	for rows.Next() {
		var a, b sql.NullString
		if err := rows.Scan(&a, &b); err != nil {
			return nil, err
		}
		out = append(out, [2]string{a.String, b.String})
	}
	return out, rows.Err()
}

// queryNames 执行返回单列字符串的查询
func queryNames(ctx context.Context, db *sql.DB, query string, args ...interface{}) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}
