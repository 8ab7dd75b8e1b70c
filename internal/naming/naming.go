package naming

import "strings"

// Category 表分类
type Category string

const (
	CategorySource    Category = "source"
	CategoryStaging   Category = "staging"
	CategoryTransform Category = "transform"
	CategoryFact      Category = "fact"
	CategoryDimension Category = "dimension"
	CategoryMart      Category = "mart"
	CategoryMetrics   Category = "metrics"
	CategoryWarehouse Category = "warehouse"
	CategoryAudit     Category = "audit"
	CategoryProcedure Category = "procedure"
)

// Rule 分类规则：表名包含 Marker 即归入 Category
type Rule struct {
	Marker   string   `koanf:"marker" json:"marker"`
	Category Category `koanf:"category" json:"category"`
}

// DefaultRules 默认规则，按顺序匹配
var DefaultRules = []Rule{
	{Marker: "source", Category: CategorySource},
	{Marker: "staging", Category: CategoryStaging},
	{Marker: "fact", Category: CategoryFact},
	{Marker: "dim_", Category: CategoryDimension},
	{Marker: "mart", Category: CategoryMart},
	{Marker: "metrics", Category: CategoryMetrics},
	{Marker: "warehouse", Category: CategoryWarehouse},
	{Marker: "audit", Category: CategoryAudit},
	{Marker: "procedure", Category: CategoryProcedure},
}

// Classifier 表名分类器
type Classifier struct {
	rules    []Rule
	fallback Category
}

// NewClassifier 创建分类器
func NewClassifier(rules []Rule, fallback Category) Classifier {
	normalized := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.Marker == "" {
			continue
		}
		normalized = append(normalized, Rule{Marker: strings.ToLower(r.Marker), Category: r.Category})
	}
	if fallback == "" {
		fallback = CategoryTransform
	}
	return Classifier{rules: normalized, fallback: fallback}
}

// DefaultClassifier 默认分类器
func DefaultClassifier() Classifier {
	return NewClassifier(DefaultRules, CategoryTransform)
}

// Classify 返回表名的分类，第一条命中的规则生效
func (c Classifier) Classify(name string) Category {
	lower := strings.ToLower(name)
	for _, r := range c.rules {
		if strings.Contains(lower, r.Marker) {
			return r.Category
		}
	}
	if c.fallback == "" {
		return CategoryTransform
	}
	return c.fallback
}

// Conventions 命名约定
type Conventions struct {
	StagingMarker string `koanf:"staging_marker" json:"staging_marker"`
	AuditSuffix   string `koanf:"audit_suffix" json:"audit_suffix"`
	AuditTable    string `koanf:"audit_table" json:"audit_table"`
}

// DefaultConventions 默认命名约定
func DefaultConventions() Conventions {
	return Conventions{
		StagingMarker: "staging",
		AuditSuffix:   "_audit",
		AuditTable:    "etl_audit",
	}
}

// IsStaging 是否为暂存表
func (c Conventions) IsStaging(name string) bool {
	return c.StagingMarker != "" && strings.Contains(strings.ToLower(name), strings.ToLower(c.StagingMarker))
}

// IsAudit 是否为审计表
func (c Conventions) IsAudit(name string) bool {
	return c.AuditSuffix != "" && strings.HasSuffix(strings.ToLower(name), strings.ToLower(c.AuditSuffix))
}

// WithDefaults 空字段回填默认值
func (c Conventions) WithDefaults() Conventions {
	d := DefaultConventions()
	if c.StagingMarker == "" {
		c.StagingMarker = d.StagingMarker
	}
	if c.AuditSuffix == "" {
		c.AuditSuffix = d.AuditSuffix
	}
	if c.AuditTable == "" {
		c.AuditTable = d.AuditTable
	}
	return c
}
