// Package api exposes the run lifecycle at the system boundary: start a
// run, stream its events over SSE, list and fetch persisted reports, and
// cancel an in-flight run. Routing is gin, matching the teacher's own
// cmd/tarsy server setup rather than the echo handlers seen elsewhere in
// the retrieved snapshot (echo never appears in the committed go.mod).
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"dagbench/pkg/config"
	"dagbench/pkg/dataset"
	"dagbench/pkg/events"
	"dagbench/pkg/llm"
	"dagbench/pkg/orchestrator"
	"dagbench/pkg/question"
)

// Server holds everything a run needs that is fixed for the process
// lifetime: the dataset under evaluation, its metadata, the RunConfig, the
// LLM client, and the run registry.
type Server struct {
	Bundle   dataset.Bundle
	Metadata *dataset.Metadata
	Config   *config.RunConfig
	Client   llm.Client

	registry *events.Registry

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewServer builds a Server. Call StartRegistrySweeper separately (Router
// does not start it) to reclaim closed run streams after their grace period.
func NewServer(bundle dataset.Bundle, meta *dataset.Metadata, cfg *config.RunConfig, client llm.Client) *Server {
	return &Server{
		Bundle:   bundle,
		Metadata: meta,
		Config:   cfg,
		Client:   client,
		registry: events.NewRegistry(cfg.EventQueueCapacity, cfg.RunRegistryGracePeriod),
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/run", s.handleStartRun)
	r.GET("/run/:run_id/events", s.handleStreamEvents)
	r.POST("/run/:run_id/cancel", s.handleCancelRun)
	r.GET("/files", s.handleListFiles)
	r.GET("/results/:filename", s.handleGetResult)

	return r
}

// StartRegistrySweeper runs the run registry's grace-period cleanup on a
// ticker until stop is closed.
func (s *Server) StartRegistrySweeper(stop <-chan struct{}) {
	go s.registry.RunSweeper(stop, s.Config.RunRegistryGracePeriod/2)
}

type startRunRequest struct {
	Difficulty   string `json:"difficulty"`
	NumQuestions int    `json:"num_questions"`
}

func (s *Server) handleStartRun(c *gin.Context) {
	var req startRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.NumQuestions <= 0 {
		req.NumQuestions = s.Config.NumQuestions
	}

	runID := uuid.NewString()
	stream := s.registry.Create(runID)

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancels[runID] = cancel
	s.mu.Unlock()

	run := &orchestrator.Run{
		ID:                  runID,
		Bundle:              s.Bundle,
		Metadata:            s.Metadata,
		NumQuestions:        req.NumQuestions,
		DifficultyFilter:    question.DifficultyLevel(req.Difficulty),
		MaxRounds:           s.Config.MaxBuildCriticRounds,
		MaxConcurrent:       s.Config.MaxConcurrentQuestions,
		LLMClient:           s.Client,
		Model:               s.Config.Model,
		QuestionTemperature: s.Config.QuestionTemperature,
		BuilderTemperature:  s.Config.BuilderTemperature,
		CriticTemperature:   s.Config.CriticTemperature,
		LLMRetryBackoff:     s.Config.LLMRetryBackoff,
		SandboxTimeout:      s.Config.SandboxTimeout,
		Stream:              stream,
	}

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.cancels, runID)
			s.mu.Unlock()
			s.registry.MarkClosed(runID, time.Now())
		}()

		result, err := orchestrator.Execute(ctx, run)
		if err != nil {
			slog.Error("run failed", "run_id", runID, "error", err)
			return
		}

		report := orchestrator.BuildReport(result, datasetName(s.Metadata), time.Now())
		if writeErr := writeReport(s.Config, runID, report); writeErr != nil {
			slog.Error("failed to persist run report", "run_id", runID, "error", writeErr)
		}
	}()

	c.JSON(http.StatusOK, gin.H{"run_id": runID})
}

func (s *Server) handleStreamEvents(c *gin.Context) {
	runID := c.Param("run_id")
	stream, ok := s.registry.Get(runID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown run_id"})
		return
	}

	setSSEHeaders(c.Writer)
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}

	clientGone := c.Request.Context().Done()
	for {
		select {
		case <-clientGone:
			return
		case evt, open := <-stream.Events():
			if !open {
				return
			}
			sseWrite(c.Writer, string(evt.Type), evt)
			flusher.Flush()
		}
	}
}

func (s *Server) handleCancelRun(c *gin.Context) {
	runID := c.Param("run_id")
	s.mu.Lock()
	cancel, ok := s.cancels[runID]
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run is not active"})
		return
	}
	cancel()
	c.JSON(http.StatusAccepted, gin.H{"run_id": runID, "status": "cancelling"})
}

func (s *Server) handleListFiles(c *gin.Context) {
	entries, err := os.ReadDir(s.Config.ResultsDir)
	if err != nil {
		if os.IsNotExist(err) {
			c.JSON(http.StatusOK, gin.H{"files": []string{}})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	c.JSON(http.StatusOK, gin.H{"files": names})
}

func (s *Server) handleGetResult(c *gin.Context) {
	filename := c.Param("filename")
	path := filepath.Join(s.Config.ResultsDir, filepath.Base(filename))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}

func datasetName(meta *dataset.Metadata) string {
	if meta != nil && meta.Domain != "" {
		return meta.Domain
	}
	return "unknown"
}

func writeReport(cfg *config.RunConfig, runID string, report *orchestrator.RunReport) error {
	if err := os.MkdirAll(cfg.ResultsDir, 0o755); err != nil {
		return fmt.Errorf("creating results dir: %w", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	path := config.ResultsFilePath(cfg, report.Summary.Timestamp.UTC().Format("20060102T150405.000000000Z"))
	return os.WriteFile(path, data, 0o644)
}
