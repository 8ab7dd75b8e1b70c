package adapter

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteAdapter SQLite 适配器，connStr 为数据库文件路径
type SQLiteAdapter struct {
	db *sql.DB
}

// NewSQLiteAdapter 创建 SQLite 适配器
func NewSQLiteAdapter(ctx context.Context, connStr string) (*SQLiteAdapter, error) {
	db, err := openDB(ctx, "sqlite", connStr)
	if err != nil {
		return nil, err
	}
	return &SQLiteAdapter{db: db}, nil
}

// FetchDefinitions 按创建顺序读取 sqlite_master
func (a *SQLiteAdapter) FetchDefinitions(ctx context.Context) ([]Definition, error) {
	query := `
		SELECT type, name, sql
		FROM sqlite_master
		WHERE sql IS NOT NULL AND name NOT LIKE 'sqlite_%'
		ORDER BY rowid
	`
	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read sqlite_master: %w", err)
	}
	defer rows.Close()

	var defs []Definition
	for rows.Next() {
		var typ, name, body string
		if err := rows.Scan(&typ, &name, &body); err != nil {
			return nil, err
		}

		var kind DefinitionKind
		switch typ {
		case "table":
			kind = KindTable
		case "view":
			kind = KindView
		case "trigger":
			kind = KindTrigger
		default:
			continue
		}
		defs = append(defs, Definition{Name: name, Kind: kind, SQL: body})
	}
	return defs, rows.Err()
}

// Close 关闭连接
func (a *SQLiteAdapter) Close() error {
	return a.db.Close()
}
