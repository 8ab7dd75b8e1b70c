package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeRequest(w http.ResponseWriter, r *http.Request) (AnalyzeRequest, bool) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return req, false
	}
	if strings.TrimSpace(req.SQL) == "" {
		http.Error(w, "sql is required", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

// handleAnalyze 创建异步分析任务
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}

	now := time.Now()
	task := &Task{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Status:    StatusPending,
		Message:   "任务已创建，等待执行...",
		CreatedAt: now,
		UpdatedAt: now,
		sql:       req.SQL,
	}

	s.tasksMu.Lock()
	s.tasks[task.ID] = task
	s.tasksMu.Unlock()

	go s.runTask(task)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"task_id": task.ID,
		"status":  string(StatusPending),
	})
}

// handlePreview 同步分析
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.analyze(req.SQL))
}

// handleTaskStatus 查询任务状态
func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	task, ok := s.snapshot(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "Task not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleDiagram 返回已完成任务的 HTML 页面
func (s *Server) handleDiagram(w http.ResponseWriter, r *http.Request) {
	task, ok := s.snapshot(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "Task not found", http.StatusNotFound)
		return
	}
	if task.Status != StatusCompleted || task.Result == nil {
		http.Error(w, "Task not completed", http.StatusConflict)
		return
	}

	page, err := s.html.Render(task.Result.Mermaid)
	if err != nil {
		s.logger.Error("render diagram", "task_id", task.ID, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

// handleWebSocket 持续推送任务状态直到结束
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade error", "error", err)
		return
	}
	defer conn.Close()

	taskID := r.URL.Query().Get("task_id")
	if taskID == "" {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		task, exists := s.snapshot(taskID)
		if !exists {
			return
		}

		if err := conn.WriteJSON(task); err != nil {
			return
		}

		if task.Status.Done() {
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
