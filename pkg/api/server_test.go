package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dagbench/pkg/config"
	"dagbench/pkg/dataset"
	"dagbench/pkg/events"
	"dagbench/pkg/llm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const oneQuestionJSON = `{"questions":[{"text":"what is the total?","reasoning":"r"}]}`

const oneNodeDAGJSON = `{
  "question_id": "q-001",
  "description": "returns the total",
  "nodes": [{"node_id":"a","operation":"identity","function_name":"ret","layer":0,
    "inputs":{"x":"dataset.total"},"expected_output_type":"int",
    "code":"func ret(x int) int {\n  return x\n}"}],
  "edges": [],
  "final_answer_node": "a"
}`

func testServer(t *testing.T, client llm.Client) *Server {
	t.Helper()
	cfg := config.Defaults()
	cfg.ResultsDir = t.TempDir()
	cfg.NumQuestions = 1
	return NewServer(dataset.Bundle{"total": float64(7)}, &dataset.Metadata{}, cfg, client)
}

func TestHandleStartRun_ReturnsRunID(t *testing.T) {
	stub := llm.NewStubClient(
		llm.ScriptedResponse{Content: oneQuestionJSON},
		llm.ScriptedResponse{Content: oneNodeDAGJSON},
		llm.ScriptedResponse{Content: `{"is_valid": true, "issues": []}`},
	)
	s := testServer(t, stub)

	req := httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(`{"num_questions":1}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["run_id"])
}

func TestHandleStreamEvents_UnknownRunID(t *testing.T) {
	s := testServer(t, llm.NewStubClient())
	req := httptest.NewRequest(http.MethodGet, "/run/does-not-exist/events", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleStreamEvents_RepliesSSEFramesInOrder(t *testing.T) {
	s := testServer(t, llm.NewStubClient())
	stream := s.registry.Create("run-1")
	stream.Publish(events.Event{Type: events.TypeRunStarted})
	stream.Publish(events.Event{Type: events.TypeRunComplete})

	req := httptest.NewRequest(http.MethodGet, "/run/run-1/events", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	body := rec.Body.String()
	assert.Contains(t, body, "event: run_started")
	assert.Contains(t, body, "event: run_complete")
	assert.True(t, strings.Index(body, "run_started") < strings.Index(body, "run_complete"))
}

func TestHandleCancelRun_UnknownRunID(t *testing.T) {
	s := testServer(t, llm.NewStubClient())
	req := httptest.NewRequest(http.MethodPost, "/run/does-not-exist/cancel", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleCancelRun_KnownRunIDAccepted(t *testing.T) {
	s := testServer(t, llm.NewStubClient())
	cancelled := false
	s.mu.Lock()
	s.cancels["run-1"] = func() { cancelled = true }
	s.mu.Unlock()

	req := httptest.NewRequest(http.MethodPost, "/run/run-1/cancel", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, cancelled)
}

func TestHandleListFiles_EmptyResultsDir(t *testing.T) {
	s := testServer(t, llm.NewStubClient())
	req := httptest.NewRequest(http.MethodGet, "/files", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body["files"])
}

func TestHandleListFilesAndGetResult(t *testing.T) {
	s := testServer(t, llm.NewStubClient())
	require.NoError(t, os.WriteFile(filepath.Join(s.Config.ResultsDir, "eval_results_x.json"), []byte(`{"summary":{}}`), 0o644))

	req := httptest.NewRequest(http.MethodGet, "/files", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	var body map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["files"], "eval_results_x.json")

	req2 := httptest.NewRequest(http.MethodGet, "/results/eval_results_x.json", nil)
	rec2 := httptest.NewRecorder()
	s.Router().ServeHTTP(rec2, req2)
	require.Equal(t, http.StatusOK, rec2.Code)
	assert.Contains(t, rec2.Body.String(), "summary")
}

func TestHandleGetResult_PathTraversalSanitized(t *testing.T) {
	s := testServer(t, llm.NewStubClient())
	req := httptest.NewRequest(http.MethodGet, "/results/..%2F..%2Fetc%2Fpasswd", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartRegistrySweeper_DoesNotPanic(t *testing.T) {
	s := testServer(t, llm.NewStubClient())
	stop := make(chan struct{})
	s.StartRegistrySweeper(stop)
	time.Sleep(5 * time.Millisecond)
	close(stop)
}
