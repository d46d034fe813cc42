package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStream_PreservesPublicationOrder(t *testing.T) {
	s := NewStream("run-1", 8)
	s.Publish(Event{Type: TypeRunStarted})
	s.Publish(Event{Type: TypeQuestionsGenerated})
	s.Publish(Event{Type: TypeRunComplete})

	var got []Type
	for evt := range s.Events() {
		got = append(got, evt.Type)
	}
	assert.Equal(t, []Type{TypeRunStarted, TypeQuestionsGenerated, TypeRunComplete}, got)
}

func TestStream_ClosesOnTerminalEvent(t *testing.T) {
	s := NewStream("run-1", 8)
	s.Publish(Event{Type: TypeRunComplete})

	_, ok := <-s.Events()
	require.True(t, ok)
	_, ok = <-s.Events()
	assert.False(t, ok)
}

func TestStream_DiscardsPublishesAfterClose(t *testing.T) {
	s := NewStream("run-1", 8)
	s.Publish(Event{Type: TypeError})
	assert.NotPanics(t, func() {
		s.Publish(Event{Type: TypeRunStarted})
	})

	var got []Type
	for evt := range s.Events() {
		got = append(got, evt.Type)
	}
	assert.Equal(t, []Type{TypeError}, got)
}

func TestStream_ConcurrentPublishNeverPanics(t *testing.T) {
	s := NewStream("run-1", 64)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s.Publish(Event{Type: TypeDAGBuilt})
		}(i)
	}
	wg.Wait()
	s.Publish(Event{Type: TypeRunComplete})

	count := 0
	for range s.Events() {
		count++
	}
	assert.Equal(t, 21, count)
}

func TestEvent_MarshalFrame(t *testing.T) {
	e := Event{Type: TypeRunStarted, Payload: map[string]any{"run_id": "r1"}}
	data, err := e.MarshalFrame()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"run_started"`)
	assert.Contains(t, string(data), `"run_id":"r1"`)
}
