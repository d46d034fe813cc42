// Package question generates the ranked set of analytical questions a run
// evaluates, via a single low-temperature LLM call over the dataset's
// structural summary and metadata.
package question

import (
	"context"
	"fmt"
	"sort"
	"time"

	"dagbench/pkg/dataset"
	"dagbench/pkg/llm"
)

// DifficultyLevel buckets a Question's rank into one of three bands.
type DifficultyLevel string

// Recognized difficulty bands.
const (
	DifficultyEasy   DifficultyLevel = "easy"
	DifficultyMedium DifficultyLevel = "medium"
	DifficultyHard   DifficultyLevel = "hard"
)

// Question is one analytical question an LLM will be asked to answer by
// building and executing a DAG.
type Question struct {
	ID                string          `json:"id"`
	Text              string          `json:"text"`
	DifficultyRank    int             `json:"difficulty_rank"`
	DifficultyLevel   DifficultyLevel `json:"difficulty_level"`
	Reasoning         string          `json:"reasoning"`
	RelevantDataKeys  []string        `json:"relevant_data_keys"`
}

type generatedSet struct {
	Questions []rawQuestion `json:"questions"`
}

type rawQuestion struct {
	Text             string   `json:"text"`
	Reasoning        string   `json:"reasoning"`
	RelevantDataKeys []string `json:"relevant_data_keys"`
}

// Generator produces a run's question set.
type Generator struct {
	Client      llm.Client
	Model       string
	Temperature float64

	// Backoff is the retry schedule handed to llm.CallJSON; nil uses
	// llm.DefaultBackoff.
	Backoff []time.Duration
}

// NewGenerator builds a Generator bound to client.
func NewGenerator(client llm.Client, model string, temperature float64) *Generator {
	return &Generator{Client: client, Model: model, Temperature: temperature}
}

// Generate asks the LLM for numQuestions ranked questions about bundle,
// given metadata (metadata may be nil — an absent metadata document
// degrades the prompt's context, it is not fatal here). Returned questions
// are sorted ascending by DifficultyRank, with ranks contiguous 1..N and
// difficulty buckets assigned by thirds.
func (g *Generator) Generate(ctx context.Context, bundle dataset.Bundle, meta *dataset.Metadata, numQuestions int) ([]Question, error) {
	prompt := buildPrompt(bundle, meta, numQuestions)

	req := llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: prompt},
		},
		Model:       g.Model,
		Temperature: g.Temperature,
		JSONObject:  true,
	}

	parsed, err := llm.CallJSON[generatedSet](ctx, g.Client, req, g.Backoff)
	if err != nil {
		return nil, fmt.Errorf("generating questions: %w", err)
	}

	questions := make([]Question, 0, len(parsed.Questions))
	for i, rq := range parsed.Questions {
		questions = append(questions, Question{
			ID:               fmt.Sprintf("q-%03d", i+1),
			Text:             rq.Text,
			DifficultyRank:   i + 1,
			Reasoning:        rq.Reasoning,
			RelevantDataKeys: rq.RelevantDataKeys,
		})
	}

	sort.Slice(questions, func(i, j int) bool {
		return questions[i].DifficultyRank < questions[j].DifficultyRank
	})
	assignDifficultyLevels(questions)

	return questions, nil
}

// assignDifficultyLevels buckets ranks into easy (first third), medium
// (middle third), hard (top third) by rank order.
func assignDifficultyLevels(questions []Question) {
	n := len(questions)
	for i := range questions {
		switch {
		case i < n/3:
			questions[i].DifficultyLevel = DifficultyEasy
		case i < 2*n/3:
			questions[i].DifficultyLevel = DifficultyMedium
		default:
			questions[i].DifficultyLevel = DifficultyHard
		}
	}
}

const systemPrompt = `You generate analytical questions about a tabular dataset for an
automated benchmark. Prefer aggregate and statistical questions over
row-level lookups. Never ask for questions that would require extracting
or re-identifying personally identifiable information. Prefer questions
whose answer can be computed from the pre-aggregated keys already present
in the dataset summary over questions that would require re-deriving
aggregates from raw rows. Respond with a JSON object of the shape
{"questions": [{"text": ..., "reasoning": ..., "relevant_data_keys": [...]}]}
ordered from easiest to hardest.`

func buildPrompt(bundle dataset.Bundle, meta *dataset.Metadata, numQuestions int) string {
	summary := dataset.Summarize(bundle)
	var b struct {
		NumQuestions int                       `json:"num_questions"`
		Summary      dataset.StructuralSummary `json:"dataset_summary"`
		Metadata     *dataset.Metadata         `json:"metadata,omitempty"`
	}
	b.NumQuestions = numQuestions
	b.Summary = summary
	b.Metadata = meta
	return marshalOrEmpty(b)
}
