package telemetry_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/detent/internal/telemetry"
	"github.com/aretw0/detent/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_DeliversInOrder(t *testing.T) {
	hub := telemetry.NewHub()
	hub.Open("s1")
	defer hub.Close("s1")

	ch, cancel, err := hub.Subscribe("s1")
	require.NoError(t, err)
	defer cancel()

	for i := 0; i < 5; i++ {
		require.True(t, hub.Publish("s1", domain.PositionSample{Position: float64(i)}))
	}

	for i := 0; i < 5; i++ {
		select {
		case s := <-ch:
			assert.Equal(t, float64(i), s.Position)
		case <-time.After(time.Second):
			t.Fatalf("sample %d not delivered", i)
		}
	}
}

func TestHub_SlowSubscriberKeepsNewest(t *testing.T) {
	var drops atomic.Int64
	hub := telemetry.NewHub(
		telemetry.WithBufferSizes(64, 2),
		telemetry.WithDropHandler(func(string) { drops.Add(1) }),
	)
	stream := hub.Open("s1")

	ch, _, err := hub.Subscribe("s1")
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		hub.Publish("s1", domain.PositionSample{Position: float64(i)})
	}
	hub.Publish("s1", domain.PositionSample{Position: 99, Settled: true})
	hub.Close("s1")

	select {
	case <-stream.Done():
	case <-time.After(time.Second):
		t.Fatal("stream did not stop")
	}

	var got []domain.PositionSample
	for s := range ch {
		got = append(got, s)
	}
	require.NotEmpty(t, got)
	assert.LessOrEqual(t, len(got), 2)
	last := got[len(got)-1]
	assert.True(t, last.Settled, "the settled sample survives coalescing")
	assert.Equal(t, 99.0, last.Position)
	assert.Positive(t, drops.Load())
}

func TestHub_UnknownAndClosed(t *testing.T) {
	hub := telemetry.NewHub()

	_, _, err := hub.Subscribe("missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.False(t, hub.Publish("missing", domain.PositionSample{}))

	stream := hub.Open("s1")
	assert.Same(t, stream, hub.Open("s1"))
	hub.Close("s1")
	hub.Close("s1")

	assert.False(t, stream.Publish(domain.PositionSample{}))
	ch, cancel := stream.Subscribe()
	_, open := <-ch
	assert.False(t, open)
	cancel()
}
