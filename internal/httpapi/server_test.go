package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fyrsmithlabs/mentord/internal/config"
	"github.com/fyrsmithlabs/mentord/internal/logging"
	"github.com/fyrsmithlabs/mentord/internal/memory"
	"github.com/fyrsmithlabs/mentord/internal/pipeline"
	"github.com/fyrsmithlabs/mentord/internal/stages"
)

func setupTestServer(t *testing.T) (*Server, *memory.InMemoryStore) {
	t.Helper()
	zl := zaptest.NewLogger(t)
	logger := logging.FromZap(zl)
	mem := memory.NewInMemoryStore()

	orch, err := pipeline.NewOrchestrator(pipeline.Deps{
		Parser:    stages.NewParser(zl),
		Router:    stages.NewRouter(zl),
		Solver:    stages.NewSolver(nil, mem, stages.SolverConfig{}, zl),
		Verifier:  stages.NewVerifier(zl),
		Explainer: stages.NewExplainer(zl),
		Memory:    mem,
		Runs:      pipeline.NewInMemoryRunStore(),
		Config:    config.NewDefaultConfig().Pipeline,
		Logger:    logger,
	})
	require.NoError(t, err)

	server, err := NewServer(orch, mem, logger, nil)
	require.NoError(t, err)
	return server, mem
}

func postJSON(t *testing.T, server *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)
	return rec
}

func getJSON(t *testing.T, server *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) pipeline.Result {
	t.Helper()
	var result pipeline.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	return result
}

func TestNewServer(t *testing.T) {
	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server, _ := setupTestServer(t)
		assert.Equal(t, "localhost", server.config.Host)
		assert.Equal(t, 8970, server.config.Port)
	})

	t.Run("returns error when runner is nil", func(t *testing.T) {
		_, err := NewServer(nil, nil, logging.NewNop(), nil)
		assert.ErrorContains(t, err, "runner cannot be nil")
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		server, _ := setupTestServer(t)
		_, err := NewServer(server.runner, nil, nil, nil)
		assert.ErrorContains(t, err, "logger is required")
	})
}

func TestHandleHealth(t *testing.T) {
	server, _ := setupTestServer(t)

	rec := getJSON(t, server, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestHandleStartRun(t *testing.T) {
	t.Run("solves a clean problem end to end", func(t *testing.T) {
		server, _ := setupTestServer(t)

		rec := postJSON(t, server, "/api/v1/runs", StartRunRequest{Input: "solve x^2 - 5x + 6 = 0"})
		require.Equal(t, http.StatusOK, rec.Code)

		result := decodeResult(t, rec)
		assert.Equal(t, pipeline.StateDone, result.State)
		require.NotNil(t, result.Candidate)
		assert.Equal(t, "x = 2, x = 3", result.Candidate.Answer)
		require.NotNil(t, result.Explanation)
		assert.NotEmpty(t, result.RecordID)
	})

	t.Run("returns the pause payload for unclear input", func(t *testing.T) {
		server, _ := setupTestServer(t)

		rec := postJSON(t, server, "/api/v1/runs", StartRunRequest{Input: "hello there friend"})
		require.Equal(t, http.StatusOK, rec.Code)

		result := decodeResult(t, rec)
		assert.Equal(t, pipeline.StatePaused, result.State)
		require.NotNil(t, result.Pause)
		assert.NotEmpty(t, result.Pause.Reason)
	})

	t.Run("rejects empty input", func(t *testing.T) {
		server, _ := setupTestServer(t)
		rec := postJSON(t, server, "/api/v1/runs", StartRunRequest{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects unknown source", func(t *testing.T) {
		server, _ := setupTestServer(t)
		rec := postJSON(t, server, "/api/v1/runs", StartRunRequest{Input: "solve x = 1", Source: "video"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleResumeAndStatus(t *testing.T) {
	server, _ := setupTestServer(t)

	rec := postJSON(t, server, "/api/v1/runs", StartRunRequest{Input: "hello there friend"})
	require.Equal(t, http.StatusOK, rec.Code)
	paused := decodeResult(t, rec)
	require.Equal(t, pipeline.StatePaused, paused.State)

	// Status of the paused run.
	rec = getJSON(t, server, "/api/v1/runs/"+paused.RunID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pipeline.StatePaused, decodeResult(t, rec).State)

	// Resume with a corrected statement completes the run.
	rec = postJSON(t, server, "/api/v1/runs/"+paused.RunID+"/resume",
		ResumeRequest{Field: pipeline.FieldProblemText, Value: "solve 2x + 1 = 7"})
	require.Equal(t, http.StatusOK, rec.Code)

	result := decodeResult(t, rec)
	assert.Equal(t, pipeline.StateDone, result.State)
	assert.Equal(t, "x = 3", result.Candidate.Answer)

	// Trace lists the full journey including the pause and resume.
	rec = getJSON(t, server, "/api/v1/runs/"+paused.RunID+"/trace")
	require.Equal(t, http.StatusOK, rec.Code)

	var trace TraceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trace))
	assert.Equal(t, paused.RunID, trace.RunID)
	assert.Contains(t, trace.Summary, "pause")
	assert.Contains(t, trace.Summary, "resume")
	assert.NotEmpty(t, trace.Events)

	// Resuming a finished run conflicts.
	rec = postJSON(t, server, "/api/v1/runs/"+paused.RunID+"/resume",
		ResumeRequest{Field: pipeline.FieldProblemText, Value: "solve x = 1"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleResumeErrors(t *testing.T) {
	server, _ := setupTestServer(t)

	rec := postJSON(t, server, "/api/v1/runs/missing/resume",
		ResumeRequest{Field: pipeline.FieldProblemText, Value: "solve x = 1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Unknown correction fields are rejected before the lookup.
	rec = postJSON(t, server, "/api/v1/runs/missing/resume",
		ResumeRequest{Field: "notes", Value: "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAbandon(t *testing.T) {
	server, _ := setupTestServer(t)

	rec := postJSON(t, server, "/api/v1/runs", StartRunRequest{Input: "hello there friend"})
	require.Equal(t, http.StatusOK, rec.Code)
	paused := decodeResult(t, rec)

	rec = postJSON(t, server, "/api/v1/runs/"+paused.RunID+"/abandon", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	result := decodeResult(t, rec)
	assert.Equal(t, pipeline.StateAbandoned, result.State)

	rec = postJSON(t, server, "/api/v1/runs/missing/abandon", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleFeedback(t *testing.T) {
	server, mem := setupTestServer(t)

	rec := postJSON(t, server, "/api/v1/runs", StartRunRequest{Input: "solve x^2 - 5x + 6 = 0"})
	require.Equal(t, http.StatusOK, rec.Code)
	result := decodeResult(t, rec)
	require.NotEmpty(t, result.RecordID)

	rec = postJSON(t, server, "/api/v1/records/"+result.RecordID+"/feedback",
		FeedbackRequest{Feedback: "correct", Comment: "nice"})
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := mem.Get(context.Background(), result.RecordID)
	require.NoError(t, err)
	assert.Equal(t, memory.FeedbackCorrect, stored.Feedback)
	assert.Equal(t, "nice", stored.FeedbackComment)

	rec = postJSON(t, server, "/api/v1/records/missing/feedback",
		FeedbackRequest{Feedback: "correct"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = postJSON(t, server, "/api/v1/records/"+result.RecordID+"/feedback",
		FeedbackRequest{Feedback: "amazing"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
