package renderer

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"sql-flow-analyzer/internal/analyzer"
)

//go:embed templates/diagram.html
var diagramTemplate string

// DefaultMermaidSrc Mermaid 脚本地址
const DefaultMermaidSrc = "https://cdn.jsdelivr.net/npm/mermaid/dist/mermaid.min.js"

// LegendItem 图例项
type LegendItem struct {
	Operation   analyzer.Operation
	Color       string
	Description string
}

// Legend 固定图例
var Legend = []LegendItem{
	{Operation: analyzer.OpExtract, Color: "#1f77b4", Description: "Data extraction from source systems"},
	{Operation: analyzer.OpTransform, Color: "#2ca02c", Description: "Data transformation and cleaning"},
	{Operation: analyzer.OpLoad, Color: "#d62728", Description: "Loading data into target tables"},
	{Operation: analyzer.OpMerge, Color: "#9467bd", Description: "Slowly changing dimension updates"},
}

// HTMLOptions HTML 页面选项
type HTMLOptions struct {
	Title      string
	Theme      string
	MermaidSrc string
}

// DefaultHTMLOptions 默认页面选项
func DefaultHTMLOptions() HTMLOptions {
	return HTMLOptions{
		Title:      "ETL Data Flow",
		Theme:      "default",
		MermaidSrc: DefaultMermaidSrc,
	}
}

// HTMLRenderer 将 Mermaid 描述包装为独立页面
type HTMLRenderer struct {
	opts HTMLOptions
	tmpl *template.Template
}

// NewHTMLRenderer 创建渲染器
func NewHTMLRenderer(opts HTMLOptions) *HTMLRenderer {
	d := DefaultHTMLOptions()
	if opts.Title == "" {
		opts.Title = d.Title
	}
	if opts.Theme == "" {
		opts.Theme = d.Theme
	}
	if opts.MermaidSrc == "" {
		opts.MermaidSrc = d.MermaidSrc
	}
	return &HTMLRenderer{
		opts: opts,
		tmpl: template.Must(template.New("diagram").Parse(diagramTemplate)),
	}
}

// Render 生成 HTML 文档
func (h *HTMLRenderer) Render(diagram string) ([]byte, error) {
	var buf bytes.Buffer
	err := h.tmpl.Execute(&buf, struct {
		Title      string
		Theme      string
		MermaidSrc string
		Diagram    string
		Legend     []LegendItem
	}{
		Title:      h.opts.Title,
		Theme:      h.opts.Theme,
		MermaidSrc: h.opts.MermaidSrc,
		Diagram:    diagram,
		Legend:     Legend,
	})
	if err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), nil
}

// DiagramWriter 生成并写出流程图
type DiagramWriter struct {
	mermaid *MermaidRenderer
	html    *HTMLRenderer
}

// NewDiagramWriter 创建写出器
func NewDiagramWriter(m *MermaidRenderer, h *HTMLRenderer) *DiagramWriter {
	return &DiagramWriter{mermaid: m, html: h}
}

// GenerateDiagram 渲染关系并写入 <outputPath>.html，返回文件路径
func (d *DiagramWriter) GenerateDiagram(relations []analyzer.TableRelation, outputPath string) (string, error) {
	doc, err := d.html.Render(d.mermaid.RenderRelations(relations))
	if err != nil {
		return "", err
	}
	path := outputPath + ".html"
	if err := WriteFile(path, doc); err != nil {
		return "", err
	}
	return path, nil
}

// OutputPath 输出路径 <dir>/<输入文件名去扩展名>_<name>
func OutputPath(dir, inputFile, name string) string {
	base := filepath.Base(inputFile)
	stem := base[:len(base)-len(filepath.Ext(base))]
	return filepath.Join(dir, stem+"_"+name)
}

// WriteFile 写文件，必要时创建目录
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
