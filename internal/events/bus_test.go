package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ingestor/internal/interfaces"
)

func testBus() *Bus {
	return New(arbor.NewLogger())
}

func TestBus_EmitDeliversToAllSubscribers(t *testing.T) {
	b := testBus()
	var calls int32

	_, err := b.On(interfaces.EventJobListChange, func(ctx context.Context, e interfaces.Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	require.NoError(t, err)
	_, err = b.On(interfaces.EventJobListChange, func(ctx context.Context, e interfaces.Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	require.NoError(t, err)

	err = b.Emit(context.Background(), interfaces.Event{Type: interfaces.EventJobListChange})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	b := testBus()
	var calls int32

	unsub, err := b.On(interfaces.EventLibraryChange, func(ctx context.Context, e interfaces.Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	require.NoError(t, err)

	unsub()
	// Calling the token twice must be a harmless no-op.
	unsub()

	require.NoError(t, b.Emit(context.Background(), interfaces.Event{Type: interfaces.EventLibraryChange}))
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestBus_OnceFiresExactlyOnce(t *testing.T) {
	b := testBus()
	var calls int32

	_, err := b.Once(interfaces.EventJobProgress, func(ctx context.Context, e interfaces.Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, b.Emit(context.Background(), interfaces.Event{Type: interfaces.EventJobProgress}))
	require.NoError(t, b.Emit(context.Background(), interfaces.Event{Type: interfaces.EventJobProgress}))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestBus_HandlerErrorDoesNotStopFanout(t *testing.T) {
	b := testBus()
	var secondCalled bool

	_, err := b.On(interfaces.EventJobStatusChange, func(ctx context.Context, e interfaces.Event) error {
		return errors.New("boom")
	})
	require.NoError(t, err)
	_, err = b.On(interfaces.EventJobStatusChange, func(ctx context.Context, e interfaces.Event) error {
		secondCalled = true
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, b.Emit(context.Background(), interfaces.Event{Type: interfaces.EventJobStatusChange}))
	assert.True(t, secondCalled)
}

func TestBus_HandlerPanicDoesNotStopFanout(t *testing.T) {
	b := testBus()
	var secondCalled bool

	_, err := b.On(interfaces.EventJobStatusChange, func(ctx context.Context, e interfaces.Event) error {
		panic("boom")
	})
	require.NoError(t, err)
	_, err = b.On(interfaces.EventJobStatusChange, func(ctx context.Context, e interfaces.Event) error {
		secondCalled = true
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, b.Emit(context.Background(), interfaces.Event{Type: interfaces.EventJobStatusChange}))
	assert.True(t, secondCalled)
}

func TestBus_ListenerCap(t *testing.T) {
	b := testBus()
	for i := 0; i < maxListenersPerType; i++ {
		_, err := b.On(interfaces.EventJobProgress, func(ctx context.Context, e interfaces.Event) error { return nil })
		require.NoError(t, err)
	}
	_, err := b.On(interfaces.EventJobProgress, func(ctx context.Context, e interfaces.Event) error { return nil })
	assert.Error(t, err)
}

func TestBus_RemoveAllListeners(t *testing.T) {
	b := testBus()
	var calls int32
	_, err := b.On(interfaces.EventJobProgress, func(ctx context.Context, e interfaces.Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	require.NoError(t, err)

	b.RemoveAllListeners(interfaces.EventJobProgress)
	assert.Equal(t, 0, b.ListenerCount(interfaces.EventJobProgress))

	require.NoError(t, b.Emit(context.Background(), interfaces.Event{Type: interfaces.EventJobProgress}))
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestBus_CloseRejectsNewSubscriptions(t *testing.T) {
	b := testBus()
	require.NoError(t, b.Close())

	_, err := b.On(interfaces.EventJobListChange, func(ctx context.Context, e interfaces.Event) error { return nil })
	assert.Error(t, err)
}
