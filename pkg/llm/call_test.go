package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type probeShape struct {
	Foo string `json:"foo"`
}

func TestCallJSON_Success(t *testing.T) {
	stub := NewStubClient(ScriptedResponse{Content: `{"foo":"bar"}`})
	out, err := CallJSON[probeShape](context.Background(), stub, Request{Model: "m"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "bar", out.Foo)
}

func TestCallJSON_MalformedJSONTreatedAsParseErrorAndRetried(t *testing.T) {
	stub := NewStubClient(
		ScriptedResponse{Content: "not json"},
		ScriptedResponse{Content: `{"foo":"recovered"}`},
	)
	out, err := CallJSON[probeShape](context.Background(), stub, Request{Model: "m"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "recovered", out.Foo)
	assert.Len(t, stub.Calls(), 2)
}

func TestCallJSON_ExhaustionReturnsCallError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	stub := NewStubClient(
		ScriptedResponse{Err: ErrTransport},
		ScriptedResponse{Err: ErrTransport},
		ScriptedResponse{Err: ErrTransport},
	)
	_, err := CallJSON[probeShape](ctx, stub, Request{Model: "m"}, nil)
	require.Error(t, err)
	var callErr *CallError
	require.ErrorAs(t, err, &callErr)
}
