package server

import (
	"time"

	"sql-flow-analyzer/internal/analyzer"
)

// Status 任务状态
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Done 任务已结束
func (s Status) Done() bool {
	return s == StatusCompleted || s == StatusFailed
}

// AnalyzeRequest 分析请求
type AnalyzeRequest struct {
	SQL  string `json:"sql"`  // SQL 文本
	Name string `json:"name"` // 图名称，可选
}

// Task 分析任务
type Task struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	Progress  int       `json:"progress"` // 0-100
	Message   string    `json:"message"`
	Result    *Result   `json:"result,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	sql string
}

// Result 分析结果
type Result struct {
	Relations []analyzer.TableRelation `json:"relations"`
	Mermaid   string                   `json:"mermaid"`
	Markdown  string                   `json:"markdown"`
	Warnings  []string                 `json:"warnings"`
	Stats     map[string]int           `json:"stats"`
}

// snapshot 在锁内复制任务，Result 写入后不再修改
func (s *Server) snapshot(id string) (Task, bool) {
	s.tasksMu.RLock()
	defer s.tasksMu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *task, true
}

// runTask 执行分析
func (s *Server) runTask(task *Task) {
	updateTask := func(status Status, progress int, message string) {
		s.tasksMu.Lock()
		task.Status = status
		task.Progress = progress
		task.Message = message
		task.UpdatedAt = time.Now()
		s.tasksMu.Unlock()
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("task panicked", "task_id", task.ID, "panic", r)
			updateTask(StatusFailed, 0, "分析失败")
		}
	}()

	updateTask(StatusRunning, 10, "正在解析 SQL...")

	s.tasksMu.RLock()
	sql := task.sql
	s.tasksMu.RUnlock()

	result := s.analyze(sql)

	updateTask(StatusRunning, 90, "生成输出...")

	s.tasksMu.Lock()
	task.Result = result
	task.sql = ""
	s.tasksMu.Unlock()

	s.logger.Debug("task completed", "task_id", task.ID, "relations", len(result.Relations))
	updateTask(StatusCompleted, 100, "分析完成！")
}

// analyze 提取、诊断并渲染
func (s *Server) analyze(sql string) *Result {
	res := s.extractor.Analyze(sql)
	g := s.mermaid.BuildGraph(res.Relations)

	warnings := []string{}
	for _, w := range analyzer.Diagnose(res, s.extractor.Conventions()) {
		warnings = append(warnings, w.String())
	}

	return &Result{
		Relations: res.Relations,
		Mermaid:   s.mermaid.Render(g),
		Markdown:  s.markdown.Render(res.Relations),
		Warnings:  warnings,
		Stats: map[string]int{
			"relations": len(res.Relations),
			"nodes":     len(g.Nodes),
			"edges":     len(g.Edges),
			"tables":    len(res.Tables),
			"ctes":      len(res.CTEs),
		},
	}
}
