package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"dagbench/pkg/config"
	"dagbench/pkg/dataset"
	"dagbench/pkg/events"
	"dagbench/pkg/llm"
	"dagbench/pkg/orchestrator"
	"dagbench/pkg/question"
)

func newRunCmd() *cobra.Command {
	var (
		datasetPath   string
		metadataPath  string
		outputPath    string
		configPath    string
		verbose       bool
		numQuestions  int
		difficulty    string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute the full evaluation pipeline and emit a report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(cmd.Context(), runOpts{
				datasetPath:  datasetPath,
				metadataPath: metadataPath,
				outputPath:   outputPath,
				configPath:   configPath,
				verbose:      verbose,
				numQuestions: numQuestions,
				difficulty:   difficulty,
			})
		},
	}

	cmd.Flags().StringVar(&datasetPath, "dataset", "", "path to the dataset bundle JSON file (required)")
	cmd.Flags().StringVar(&metadataPath, "metadata", "", "path to the metadata document JSON file")
	cmd.Flags().StringVar(&outputPath, "output", "", "path to write the RunReport JSON (required)")
	cmd.Flags().StringVar(&configPath, "config", "", "path to a RunConfig YAML file")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "enable debug-level logging")
	cmd.Flags().IntVar(&numQuestions, "num-questions", 0, "override the configured question count")
	cmd.Flags().StringVar(&difficulty, "difficulty", "all", "restrict to one difficulty band: all|easy|medium|hard")
	_ = cmd.MarkFlagRequired("dataset")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

type runOpts struct {
	datasetPath  string
	metadataPath string
	outputPath   string
	configPath   string
	verbose      bool
	numQuestions int
	difficulty   string
}

func runEval(ctx context.Context, opts runOpts) error {
	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := config.Load(ctx, opts.configPath)
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrValidationFailed, err)
	}

	bundle, err := dataset.LoadBundle(opts.datasetPath)
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrValidationFailed, err)
	}
	if bundle.Empty() {
		return orchestrator.ErrEmptyDataset
	}

	var meta *dataset.Metadata
	if opts.metadataPath != "" {
		meta, err = dataset.LoadMetadata(opts.metadataPath)
		if err != nil {
			slog.Warn("metadata document failed to load, continuing with empty schema", "error", err)
			meta = &dataset.Metadata{}
		}
	} else {
		meta = &dataset.Metadata{}
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("%w: OPENAI_API_KEY is not set", config.ErrValidationFailed)
	}
	client := llm.NewHTTPClient(cfg.LLMBaseURL, apiKey)

	numQuestions := opts.numQuestions
	if numQuestions <= 0 {
		numQuestions = cfg.NumQuestions
	}

	stream := events.NewStream("cli-run", cfg.EventQueueCapacity)
	go drainToLog(stream)

	run := &orchestrator.Run{
		ID:                  "cli-run",
		Bundle:              bundle,
		Metadata:            meta,
		NumQuestions:        numQuestions,
		DifficultyFilter:    question.DifficultyLevel(opts.difficulty),
		MaxRounds:           cfg.MaxBuildCriticRounds,
		MaxConcurrent:       cfg.MaxConcurrentQuestions,
		LLMClient:           client,
		Model:               cfg.Model,
		QuestionTemperature: cfg.QuestionTemperature,
		BuilderTemperature:  cfg.BuilderTemperature,
		CriticTemperature:   cfg.CriticTemperature,
		LLMRetryBackoff:     cfg.LLMRetryBackoff,
		SandboxTimeout:      cfg.SandboxTimeout,
		Stream:              stream,
	}

	result, err := orchestrator.Execute(ctx, run)
	if err != nil {
		return err
	}

	report := orchestrator.BuildReport(result, datasetNameFromMeta(meta), time.Now())

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	if err := os.WriteFile(opts.outputPath, data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	fmt.Printf("pass_rate=%.2f total=%d passed=%d failed=%d\n",
		report.Summary.PassRate, report.Summary.Total, report.Summary.Passed, report.Summary.Failed)
	return nil
}

func datasetNameFromMeta(meta *dataset.Metadata) string {
	if meta != nil && meta.Domain != "" {
		return meta.Domain
	}
	return "unknown"
}

func drainToLog(stream *events.Stream) {
	for evt := range stream.Events() {
		slog.Debug("event", "type", evt.Type, "payload", evt.Payload)
	}
}
