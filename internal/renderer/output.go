package renderer

import (
	"encoding/json"
	"fmt"
	"strings"

	"sql-flow-analyzer/internal/analyzer"
	"sql-flow-analyzer/internal/graph"
)

// Format 输出格式
type Format string

const (
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatMermaid  Format = "mermaid"
)

// ParseFormat 解析输出格式名
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "html":
		return FormatHTML, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	case "mermaid", "mmd":
		return FormatMermaid, nil
	default:
		return "", fmt.Errorf("unsupported format %q", s)
	}
}

// Extension 格式对应的文件扩展名
func (f Format) Extension() string {
	switch f {
	case FormatMarkdown:
		return ".md"
	case FormatJSON:
		return ".json"
	case FormatMermaid:
		return ".mmd"
	default:
		return ".html"
	}
}

// Document JSON 输出内容
type Document struct {
	Relations []analyzer.TableRelation `json:"relations"`
	Graph     *graph.FlowGraph         `json:"graph"`
	Warnings  []analyzer.Warning       `json:"warnings,omitempty"`
}

// Write 按格式写出全部文件，返回写出的路径
func (d *DiagramWriter) Write(relations []analyzer.TableRelation, warnings []analyzer.Warning, outputPath string, formats []Format) ([]string, error) {
	if len(formats) == 0 {
		formats = []Format{FormatHTML}
	}

	var written []string
	for _, f := range formats {
		if f == FormatHTML {
			path, err := d.GenerateDiagram(relations, outputPath)
			if err != nil {
				return written, err
			}
			written = append(written, path)
			continue
		}

		data, err := d.render(f, relations, warnings)
		if err != nil {
			return written, err
		}
		path := outputPath + f.Extension()
		if err := WriteFile(path, data); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func (d *DiagramWriter) render(f Format, relations []analyzer.TableRelation, warnings []analyzer.Warning) ([]byte, error) {
	switch f {
	case FormatMarkdown:
		md := &MarkdownRenderer{mermaid: d.mermaid}
		return []byte(md.Render(relations)), nil
	case FormatMermaid:
		return []byte(d.mermaid.RenderRelations(relations)), nil
	case FormatJSON:
		data, err := json.MarshalIndent(Document{
			Relations: relations,
			Graph:     d.mermaid.BuildGraph(relations),
			Warnings:  warnings,
		}, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode json: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported format %q", f)
	}
}
