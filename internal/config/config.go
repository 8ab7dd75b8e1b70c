// Package config 加载分层配置：默认值 → 配置文件 → 环境变量 → 命令行参数
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"sql-flow-analyzer/internal/naming"
	"sql-flow-analyzer/internal/renderer"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "SQLFLOW_"

// 默认值
const (
	DefaultOutput    = "etl_flow"
	DefaultOutputDir = "etl_flow_diag"
	DefaultLogLevel  = "warn"
	DefaultAddr      = ":8080"
)

// Config 全部配置
type Config struct {
	Output      string             `koanf:"output"`
	OutputDir   string             `koanf:"output_dir"`
	Formats     []string           `koanf:"formats"`
	LogLevel    string             `koanf:"log_level"`
	Conventions naming.Conventions `koanf:"conventions"`
	Classifier  ClassifierConfig   `koanf:"classifier"`
	Diagram     DiagramConfig      `koanf:"diagram"`
	Server      ServerConfig       `koanf:"server"`

	// FileUsed 实际加载的配置文件
	FileUsed string `koanf:"-"`
}

// ClassifierConfig 表分类规则
type ClassifierConfig struct {
	Rules    []naming.Rule   `koanf:"rules"`
	Fallback naming.Category `koanf:"fallback"`
}

// DiagramConfig HTML 页面配置
type DiagramConfig struct {
	Title      string `koanf:"title"`
	Theme      string `koanf:"theme"`
	MermaidSrc string `koanf:"mermaid_src"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Addr string `koanf:"addr"`
}

func defaults() map[string]interface{} {
	conv := naming.DefaultConventions()
	html := renderer.DefaultHTMLOptions()
	return map[string]interface{}{
		"output":                     DefaultOutput,
		"output_dir":                 DefaultOutputDir,
		"formats":                    []string{string(renderer.FormatHTML)},
		"log_level":                  DefaultLogLevel,
		"conventions.staging_marker": conv.StagingMarker,
		"conventions.audit_suffix":   conv.AuditSuffix,
		"conventions.audit_table":    conv.AuditTable,
		"classifier.fallback":        string(naming.CategoryTransform),
		"diagram.title":              html.Title,
		"diagram.theme":              html.Theme,
		"diagram.mermaid_src":        html.MermaidSrc,
		"server.addr":                DefaultAddr,
	}
}

// findConfigFile 显式路径优先，其次当前目录的 sqlflow.yaml / sqlflow.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"sqlflow.yaml", "sqlflow.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Load 加载配置，优先级：flags > env > 文件 > 默认值
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. 默认值
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. 配置文件
	used := findConfigFile(cfgFile)
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	// 3. 环境变量：SQLFLOW_DIAGRAM__TITLE -> diagram.title
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. 命令行参数，仅加载显式设置的
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			switch key {
			case "config", "sql_file", "watch", "print", "type", "conn", "schema":
				return "", nil
			case "addr":
				key = "server.addr"
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.FileUsed = used
	cfg.Formats = splitList(cfg.Formats)

	if _, err := cfg.OutputFormats(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// splitList 环境变量里的逗号分隔值展开为列表
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// OutputFormats 解析输出格式
func (c *Config) OutputFormats() ([]renderer.Format, error) {
	var formats []renderer.Format
	seen := make(map[renderer.Format]bool)
	for _, name := range c.Formats {
		f, err := renderer.ParseFormat(name)
		if err != nil {
			return nil, err
		}
		if seen[f] {
			continue
		}
		seen[f] = true
		formats = append(formats, f)
	}
	if len(formats) == 0 {
		formats = []renderer.Format{renderer.FormatHTML}
	}
	return formats, nil
}

// NamingConventions 命名约定
func (c *Config) NamingConventions() naming.Conventions {
	return c.Conventions.WithDefaults()
}

// TableClassifier 表分类器，未配置规则时使用默认规则
func (c *Config) TableClassifier() naming.Classifier {
	if len(c.Classifier.Rules) == 0 {
		return naming.NewClassifier(naming.DefaultRules, c.Classifier.Fallback)
	}
	return naming.NewClassifier(c.Classifier.Rules, c.Classifier.Fallback)
}

// HTMLOptions 页面选项
func (c *Config) HTMLOptions() renderer.HTMLOptions {
	return renderer.HTMLOptions{
		Title:      c.Diagram.Title,
		Theme:      c.Diagram.Theme,
		MermaidSrc: c.Diagram.MermaidSrc,
	}
}

// Logger 按配置级别创建日志
func (c *Config) Logger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(c.LogLevel)}))
}

// ParseLevel 解析日志级别，无法识别时为 warn
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
