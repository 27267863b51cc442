package bitmap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingView struct {
	calls  []string
	result *Handle
}

func (v *recordingView) OnDecodeBegin(RequestKey) { v.calls = append(v.calls, "begin") }
func (v *recordingView) OnDecodeCancel(RequestKey) { v.calls = append(v.calls, "cancel") }
func (v *recordingView) OnDecodeComplete(_ RequestKey, h *Handle) {
	v.calls = append(v.calls, "complete")
	v.result = h
}

func TestDeliver_Complete(t *testing.T) {
	l := newTestLoader(t, newFakeDecoder())
	task, err := l.Load(Request{Key: fakeSource{"a"}, Width: 100, Height: 100})
	require.NoError(t, err)

	v := &recordingView{}
	require.NoError(t, Deliver(t.Context(), task.Events(), v))
	assert.Equal(t, []string{"begin", "complete"}, v.calls)
	require.NotNil(t, v.result)
	v.result.Release()
}

func TestDeliver_Cancel(t *testing.T) {
	l := newTestLoader(t, newFakeDecoder())
	task, err := l.Load(Request{Key: fakeSource{"missing"}, Width: 100, Height: 100})
	require.NoError(t, err)

	v := &recordingView{}
	err = Deliver(t.Context(), task.Events(), v)
	assert.ErrorIs(t, err, ErrNoBounds)
	assert.Equal(t, []string{"begin", "cancel"}, v.calls)
}

func TestDeliver_ContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := Deliver(ctx, make(chan Event), &recordingView{})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = Await(ctx, make(chan Event))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAwait_ClosedWithoutTerminal(t *testing.T) {
	events := make(chan Event, 1)
	events <- Event{Kind: EventBegin}
	close(events)

	_, err := Await(t.Context(), events)
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestEventKind(t *testing.T) {
	assert.Equal(t, "begin", EventBegin.String())
	assert.Equal(t, "complete", EventComplete.String())
	assert.Equal(t, "cancel", EventCancel.String())
	assert.Equal(t, "EventKind(7)", EventKind(7).String())

	assert.False(t, Event{Kind: EventBegin}.Terminal())
	assert.True(t, Event{Kind: EventCancel}.Terminal())
}
