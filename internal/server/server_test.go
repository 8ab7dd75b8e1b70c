package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sql-flow-analyzer/internal/analyzer"
	"sql-flow-analyzer/internal/testutil"
)

const pipelineSQL = `
CREATE TABLE staging_orders (id INT, amount DECIMAL);
CREATE TABLE orders (id INT, amount DECIMAL);
INSERT INTO orders SELECT id, amount FROM staging_orders;
INSERT INTO orders_audit SELECT id FROM stagng_orders;
`

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := New(Config{
		Logger:       testutil.NewTestLogger(t),
		PushInterval: 10 * time.Millisecond,
	})
	ts := httptest.NewServer(s.Routes())
	t.Cleanup(ts.Close)
	return s, ts
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func getTask(t *testing.T, baseURL, id string) Task {
	t.Helper()
	resp, err := http.Get(baseURL + "/api/task/" + id)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var task Task
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&task))
	return task
}

func startTask(t *testing.T, baseURL string) string {
	t.Helper()
	resp := postJSON(t, baseURL+"/api/analyze", AnalyzeRequest{SQL: pipelineSQL, Name: "pipeline"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var created map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, "pending", created["status"])
	require.NotEmpty(t, created["task_id"])
	return created["task_id"]
}

func TestTaskLifecycle(t *testing.T) {
	_, ts := newTestServer(t)
	id := startTask(t, ts.URL)

	require.Eventually(t, func() bool {
		return getTask(t, ts.URL, id).Status == StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	task := getTask(t, ts.URL, id)
	assert.Equal(t, 100, task.Progress)
	assert.Equal(t, "pipeline", task.Name)
	require.NotNil(t, task.Result)
	assert.Contains(t, task.Result.Mermaid, "graph LR;")
	assert.Contains(t, task.Result.Markdown, "# 数据血缘报告")
	assert.Equal(t, len(task.Result.Relations), task.Result.Stats["relations"])
	assert.Equal(t, 2, task.Result.Stats["tables"])
	require.Len(t, task.Result.Warnings, 1)
	assert.Contains(t, task.Result.Warnings[0], "stagng_orders")

	resp, err := http.Get(ts.URL + "/api/diagram/" + id)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "staging_orders")
}

func TestWebSocketPushesUntilDone(t *testing.T) {
	_, ts := newTestServer(t)
	id := startTask(t, ts.URL)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws?task_id=" + id
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var last Task
	for !last.Status.Done() {
		require.NoError(t, conn.ReadJSON(&last))
		assert.Equal(t, id, last.ID)
	}
	assert.Equal(t, StatusCompleted, last.Status)
	require.NotNil(t, last.Result)

	// 任务结束后服务端关闭连接
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestPreview(t *testing.T) {
	_, ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/preview", AnalyzeRequest{
		SQL: "INSERT INTO sales_summary SELECT SUM(amount) AS total FROM staging_sales;",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.Len(t, result.Relations, 1)

	rel := result.Relations[0]
	assert.Equal(t, "staging_sales", rel.Source)
	assert.Equal(t, "sales_summary", rel.Target)
	assert.Equal(t, analyzer.OpTransform, rel.Operation)
	assert.Equal(t, 2, result.Stats["nodes"])
	assert.Equal(t, 1, result.Stats["edges"])
	assert.Empty(t, result.Warnings)
}

func TestErrorResponses(t *testing.T) {
	s, ts := newTestServer(t)

	s.tasksMu.Lock()
	s.tasks["waiting"] = &Task{ID: "waiting", Status: StatusRunning}
	s.tasksMu.Unlock()

	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		expected int
	}{
		{"unknown task", http.MethodGet, "/api/task/missing", "", http.StatusNotFound},
		{"unknown diagram", http.MethodGet, "/api/diagram/missing", "", http.StatusNotFound},
		{"unfinished diagram", http.MethodGet, "/api/diagram/waiting", "", http.StatusConflict},
		{"bad json", http.MethodPost, "/api/analyze", "{", http.StatusBadRequest},
		{"empty sql", http.MethodPost, "/api/preview", `{"sql": "  "}`, http.StatusBadRequest},
		{"wrong method", http.MethodGet, "/api/analyze", "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, ts.URL+tt.path, strings.NewReader(tt.body))
			require.NoError(t, err)

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.expected, resp.StatusCode)
		})
	}
}
