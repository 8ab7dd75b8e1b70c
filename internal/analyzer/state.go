package analyzer

// State 单次解析的累积状态
type State struct {
	Relations []TableRelation

	tables     map[string]struct{}
	tableOrder []string
	ctes       map[string]struct{}
	cteOrder   []string
}

// NewState 创建空状态
func NewState() *State {
	return &State{
		tables: make(map[string]struct{}),
		ctes:   make(map[string]struct{}),
	}
}

// Add 追加关系
func (s *State) Add(rel TableRelation) {
	if rel.Source == "" || rel.Target == "" {
		return
	}
	if rel.Conditions == nil {
		rel.Conditions = []string{}
	}
	s.Relations = append(s.Relations, rel)
}

// AddTable 记录 CREATE TABLE 的表名
func (s *State) AddTable(name string) {
	if _, ok := s.tables[name]; ok {
		return
	}
	s.tables[name] = struct{}{}
	s.tableOrder = append(s.tableOrder, name)
}

// Tables 已声明的表，按出现顺序
func (s *State) Tables() []string {
	return append([]string(nil), s.tableOrder...)
}

// HasTable 表是否已声明
func (s *State) HasTable(name string) bool {
	_, ok := s.tables[name]
	return ok
}

// RegisterCTE 登记 CTE；重复登记不改变顺序
func (s *State) RegisterCTE(name string) {
	if _, ok := s.ctes[name]; ok {
		return
	}
	s.ctes[name] = struct{}{}
	s.cteOrder = append(s.cteOrder, name)
}

// IsCTE 名称是否为已登记的 CTE
func (s *State) IsCTE(name string) bool {
	_, ok := s.ctes[name]
	return ok
}

// CTENames 已登记的 CTE，按登记顺序
func (s *State) CTENames() []string {
	return append([]string(nil), s.cteOrder...)
}
