package bus

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingObserver struct {
	delivered int
	lastErr   error
}

func (o *countingObserver) OnDelivered(_ string, _ Event, handlers int, err error, _ time.Duration) {
	o.delivered += handlers
	o.lastErr = err
}

func TestPublishSubscribe(t *testing.T) {
	b := New()
	var got []any
	_, err := b.Subscribe("spring.settled", func(e Event) error {
		got = append(got, e.Data)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, b.Publish(NewEvent("spring.settled", "test", 1)))
	require.NoError(t, b.Publish(NewEvent("spring.moving", "test", 2)))
	assert.Equal(t, []any{1}, got)
}

func TestDeliveryOrderFollowsSubscription(t *testing.T) {
	b := New()
	var order []int
	for i := range 8 {
		_, err := b.Subscribe("ev", func(Event) error {
			order = append(order, i)
			return nil
		})
		require.NoError(t, err)
	}
	require.NoError(t, b.Publish(NewEvent("ev", "test", nil)))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, order)
}

func TestHandlerErrorsAreJoined(t *testing.T) {
	b := New()
	errA, errB := errors.New("a"), errors.New("b")
	_, _ = b.Subscribe("ev", func(Event) error { return errA })
	_, _ = b.Subscribe("ev", func(Event) error { return nil })
	_, _ = b.Subscribe("ev", func(Event) error { return errB })

	err := b.Publish(NewEvent("ev", "test", nil))
	require.ErrorIs(t, err, errA)
	require.ErrorIs(t, err, errB)
}

func TestPublishAsync(t *testing.T) {
	b := New()
	fail := errors.New("fail")
	_, err := b.Subscribe("x", func(Event) error { return fail })
	require.NoError(t, err)

	select {
	case got := <-b.PublishAsync(NewEvent("x", "test", nil)):
		require.ErrorIs(t, got, fail)
	case <-time.After(time.Second):
		t.Fatal("async publish did not complete")
	}
}

func TestTopicsIsolation(t *testing.T) {
	b := New()
	count1, count2 := 0, 0
	_, _ = b.SubscribeTopic("t1", "ev", func(Event) error { count1++; return nil })
	_, _ = b.SubscribeTopic("t2", "ev", func(Event) error { count2++; return nil })
	require.NoError(t, b.PublishToTopic("t1", NewEvent("ev", "test", nil)))
	assert.Equal(t, 1, count1)
	assert.Equal(t, 0, count2)
}

func TestCancel(t *testing.T) {
	b := New()
	calls := 0
	sub, err := b.Subscribe("ev", func(Event) error { calls++; return nil })
	require.NoError(t, err)
	assert.True(t, sub.IsActive())
	assert.NotEmpty(t, sub.ID())

	require.NoError(t, b.Unsubscribe(sub))
	require.NoError(t, sub.Cancel())
	require.NoError(t, b.Unsubscribe(nil))
	assert.False(t, sub.IsActive())

	require.NoError(t, b.Publish(NewEvent("ev", "test", nil)))
	assert.Zero(t, calls)
	assert.Zero(t, b.Metrics().SubscribersActive)
}

func TestMetricsOnlyWithObserver(t *testing.T) {
	b := New()
	_, _ = b.Subscribe("e", func(Event) error { return nil })
	_ = b.Publish(NewEvent("e", "test", nil))
	assert.Zero(t, b.Metrics().Published)

	obs := &countingObserver{}
	b.AddObserver(obs)
	_ = b.Publish(NewEvent("e", "test", nil))
	m := b.Metrics()
	assert.EqualValues(t, 1, m.Published)
	assert.EqualValues(t, 1, m.DeliveredHandlers)
	assert.EqualValues(t, 1, m.SubscribersActive)
	assert.Equal(t, 1, obs.delivered)

	b.RemoveObserver(obs)
	_ = b.Publish(NewEvent("e", "test", nil))
	assert.Equal(t, 1, obs.delivered)
}

func TestNilHandlerRejected(t *testing.T) {
	_, err := New().Subscribe("e", nil)
	require.Error(t, err)
}
