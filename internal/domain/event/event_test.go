package event_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarforge/replicator/internal/domain/event"
)

func TestNew_AssignsUniqueID(t *testing.T) {
	a := event.New(event.KindTaskCompleted, 1, nil)
	b := event.New(event.KindTaskCompleted, 1, nil)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestPublish_DeliversToSubscribers(t *testing.T) {
	bus := event.NewBus()
	ch, cancel := bus.Subscribe()
	defer cancel()

	require.NoError(t, bus.Publish(event.New(event.KindTaskDispatched, 1, nil)))

	received := <-ch
	assert.Equal(t, event.KindTaskDispatched, received.Kind)

	pub, dropped := bus.Stats()
	assert.Equal(t, uint64(1), pub)
	assert.Equal(t, uint64(0), dropped)
}

func TestSubscribe_CancelStopsDelivery(t *testing.T) {
	bus := event.NewBus()
	ch, cancel := bus.Subscribe()
	cancel()

	require.NoError(t, bus.Publish(event.New(event.KindTaskCompleted, 1, nil)))

	_, ok := <-ch
	assert.False(t, ok, "channel must be closed after unsubscribe")
}

func TestHistory_TrimsToHalfOnOverflow(t *testing.T) {
	bus := event.NewBus()
	for i := 0; i < 1500; i++ {
		require.NoError(t, bus.Publish(event.New(event.KindMetricsTick, int64(i), nil)))
	}
	hist := bus.History()
	assert.LessOrEqual(t, len(hist), 1000)
	assert.Equal(t, int64(1499), hist[len(hist)-1].Tick, "the most recent event must survive a trim")
}

func TestPublish_DropsWithoutBlockingWhenSubscriberFull(t *testing.T) {
	bus := event.NewBus()
	_, cancel := bus.Subscribe() // never drained
	defer cancel()

	for i := 0; i < 10001; i++ {
		bus.Publish(event.New(event.KindMetricsTick, int64(i), nil))
	}

	_, dropped := bus.Stats()
	assert.Greater(t, dropped, uint64(0))
}

func TestPublish_ReturnsOverflowErrorPastTolerance(t *testing.T) {
	bus := event.NewBus()
	_, cancel := bus.Subscribe() // never drained, so every send past capacity drops
	defer cancel()

	var lastErr error
	for i := 0; i < 20000; i++ {
		if err := bus.Publish(event.New(event.KindMetricsTick, int64(i), nil)); err != nil {
			lastErr = err
			break
		}
	}
	require.Error(t, lastErr)
	var overflow event.ErrEventQueueOverflow
	assert.ErrorAs(t, lastErr, &overflow)
}
