package main

import (
	"context"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"sql-flow-analyzer/internal/adapter"
	"sql-flow-analyzer/internal/config"
	"sql-flow-analyzer/internal/console"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		console.New(os.Stderr).Error(err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "sql-flow-analyzer",
		Short:         "SQL 数据血缘分析器",
		Long:          "从 SQL 脚本和数据库存储过程中提取表间数据流，生成 Mermaid 流程图",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "配置文件 (默认 ./sqlflow.yaml)")
	pf.String("output", config.DefaultOutput, "输出文件名")
	pf.String("output-dir", config.DefaultOutputDir, "输出目录")
	pf.StringSlice("formats", []string{"html"}, "输出格式 (html/markdown/json/mermaid)")
	pf.String("log-level", config.DefaultLogLevel, "日志级别 (debug/info/warn/error)")
	pf.Bool("print", false, "在终端打印关系表")

	rootCmd.AddCommand(newAnalyzeCmd(), newScanCmd())
	return rootCmd
}

func newAnalyzeCmd() *cobra.Command {
	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "分析 SQL 文件并生成数据流图",
		RunE:  runAnalyze,
	}

	analyzeCmd.Flags().String("sql-file", "", "SQL 文件路径")
	analyzeCmd.Flags().Bool("watch", false, "文件变更时重新分析")
	analyzeCmd.MarkFlagRequired("sql-file")

	return analyzeCmd
}

func newScanCmd() *cobra.Command {
	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "读取数据库中的存储过程并生成数据流图",
		RunE:  runScan,
	}

	scanCmd.Flags().String("type", "sqlserver", "数据库类型 ("+strings.Join(adapter.Types, "/")+")")
	scanCmd.Flags().String("conn", "", "连接字符串")
	scanCmd.Flags().String("schema", "", "数据库 schema (MySQL 必需)")
	scanCmd.MarkFlagRequired("conn")

	return scanCmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	p, err := newPipeline(cmd)
	if err != nil {
		return err
	}

	sqlFile, _ := cmd.Flags().GetString("sql-file")
	if err := p.analyzeFile(sqlFile); err != nil {
		return err
	}

	if watch, _ := cmd.Flags().GetBool("watch"); watch {
		return p.watch(cmd.Context(), sqlFile)
	}
	return nil
}

func runScan(cmd *cobra.Command, args []string) error {
	p, err := newPipeline(cmd)
	if err != nil {
		return err
	}

	dbType, _ := cmd.Flags().GetString("type")
	connStr, _ := cmd.Flags().GetString("conn")
	schema, _ := cmd.Flags().GetString("schema")

	p.console.Info("🔍 开始扫描数据库...")

	ctx := cmd.Context()
	dbAdapter, err := adapter.Open(ctx, dbType, connStr, schema)
	if err != nil {
		return err
	}
	defer dbAdapter.Close()

	p.console.Info("✓ 数据库连接成功")

	defs, err := dbAdapter.FetchDefinitions(ctx)
	if err != nil {
		return err
	}
	p.console.Info("✓ 读取 %d 个对象定义", len(defs))

	stem := schema
	if stem == "" {
		stem = "db"
	}
	return p.run(adapter.JoinDefinitions(defs), dbType+"_"+stem)
}
