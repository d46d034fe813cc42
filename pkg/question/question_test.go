package question

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dagbench/pkg/dataset"
	"dagbench/pkg/llm"
)

const sixQuestionsJSON = `{"questions":[
  {"text":"q1","reasoning":"r1","relevant_data_keys":["total"]},
  {"text":"q2","reasoning":"r2","relevant_data_keys":["total"]},
  {"text":"q3","reasoning":"r3","relevant_data_keys":["total"]},
  {"text":"q4","reasoning":"r4","relevant_data_keys":["total"]},
  {"text":"q5","reasoning":"r5","relevant_data_keys":["total"]},
  {"text":"q6","reasoning":"r6","relevant_data_keys":["total"]}
]}`

func TestGenerate_AssignsSequentialIDsAndRanks(t *testing.T) {
	stub := llm.NewStubClient(llm.ScriptedResponse{Content: sixQuestionsJSON})
	gen := NewGenerator(stub, "gpt-4o-mini", 0.3)

	qs, err := gen.Generate(context.Background(), dataset.Bundle{"total": float64(1)}, &dataset.Metadata{}, 6)
	require.NoError(t, err)
	require.Len(t, qs, 6)
	for i, q := range qs {
		assert.Equal(t, i+1, q.DifficultyRank)
		assert.Equal(t, "q-00"+string(rune('1'+i)), q.ID)
	}
}

func TestGenerate_BucketsDifficultyByThirds(t *testing.T) {
	stub := llm.NewStubClient(llm.ScriptedResponse{Content: sixQuestionsJSON})
	gen := NewGenerator(stub, "gpt-4o-mini", 0.3)

	qs, err := gen.Generate(context.Background(), dataset.Bundle{"total": float64(1)}, &dataset.Metadata{}, 6)
	require.NoError(t, err)

	assert.Equal(t, DifficultyEasy, qs[0].DifficultyLevel)
	assert.Equal(t, DifficultyEasy, qs[1].DifficultyLevel)
	assert.Equal(t, DifficultyMedium, qs[2].DifficultyLevel)
	assert.Equal(t, DifficultyMedium, qs[3].DifficultyLevel)
	assert.Equal(t, DifficultyHard, qs[4].DifficultyLevel)
	assert.Equal(t, DifficultyHard, qs[5].DifficultyLevel)
}

func TestGenerate_PropagatesLLMFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	stub := llm.NewStubClient(
		llm.ScriptedResponse{Err: llm.ErrTransport},
		llm.ScriptedResponse{Err: llm.ErrTransport},
		llm.ScriptedResponse{Err: llm.ErrTransport},
	)
	gen := NewGenerator(stub, "gpt-4o-mini", 0.3)

	_, err := gen.Generate(ctx, dataset.Bundle{"total": float64(1)}, nil, 3)
	require.Error(t, err)
}

func TestGenerate_NilMetadataDoesNotPanic(t *testing.T) {
	stub := llm.NewStubClient(llm.ScriptedResponse{Content: `{"questions":[{"text":"q1","reasoning":"r1"}]}`})
	gen := NewGenerator(stub, "gpt-4o-mini", 0.3)

	qs, err := gen.Generate(context.Background(), dataset.Bundle{"total": float64(1)}, nil, 1)
	require.NoError(t, err)
	require.Len(t, qs, 1)
}
