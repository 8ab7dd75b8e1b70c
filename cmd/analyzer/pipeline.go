package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"sql-flow-analyzer/internal/analyzer"
	"sql-flow-analyzer/internal/config"
	"sql-flow-analyzer/internal/console"
	"sql-flow-analyzer/internal/renderer"
)

// pipeline 一次分析所需的配置和组件
type pipeline struct {
	cfg       *config.Config
	console   *console.Console
	logger    *slog.Logger
	extractor *analyzer.Extractor
	writer    *renderer.DiagramWriter
	formats   []renderer.Format
	print     bool
}

func newPipeline(cmd *cobra.Command) (*pipeline, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	formats, err := cfg.OutputFormats()
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger(cmd.ErrOrStderr())
	if cfg.FileUsed != "" {
		logger.Debug("loaded config", "file", cfg.FileUsed)
	}

	classifier := cfg.TableClassifier()
	printTable, _ := cmd.Flags().GetBool("print")

	return &pipeline{
		cfg:     cfg,
		console: console.New(cmd.OutOrStdout()),
		logger:  logger,
		extractor: analyzer.NewExtractor(
			analyzer.WithConventions(cfg.NamingConventions()),
			analyzer.WithLogger(logger),
		),
		writer: renderer.NewDiagramWriter(
			renderer.NewMermaidRenderer(classifier),
			renderer.NewHTMLRenderer(cfg.HTMLOptions()),
		),
		formats: formats,
		print:   printTable,
	}, nil
}

// analyzeFile 读取 SQL 文件并分析
func (p *pipeline) analyzeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("读取 SQL 文件失败: %w", err)
	}
	return p.run(string(data), path)
}

// run 提取关系并写出，input 决定输出文件名
func (p *pipeline) run(sql, input string) error {
	// 1. 提取血缘
	p.console.Panel("📊 提取数据血缘", input)
	res := p.extractor.Analyze(sql)

	if len(res.Relations) == 0 {
		p.console.Warn("未发现数据血缘关系，不生成输出")
		return nil
	}
	p.console.Info("✓ 发现 %d 条关系 (%s)", len(res.Relations), console.Summary(res.Relations))

	// 2. 诊断
	warnings := analyzer.Diagnose(res, p.extractor.Conventions())
	for _, w := range warnings {
		p.console.Warn("%s", w)
	}

	if p.print {
		p.console.RelationTable(res.Relations)
	}

	// 3. 输出
	outputPath := renderer.OutputPath(p.cfg.OutputDir, input, p.cfg.Output)
	written, err := p.writer.Write(res.Relations, warnings, outputPath, p.formats)
	if err != nil {
		return fmt.Errorf("生成输出文件失败: %w", err)
	}

	p.logger.Info("diagram written", "files", len(written))
	p.console.Success("分析完成！", strings.Join(written, "\n"))
	return nil
}
