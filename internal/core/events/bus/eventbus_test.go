package bus

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testObserver struct {
	publishCount   int
	deliveredCount int
	lastErr        error
}

func (o *testObserver) OnPublish(_ string, _ Event) {
	o.publishCount++
}

func (o *testObserver) OnDelivered(_ string, handlers int, err error, _ int64) {
	o.deliveredCount += handlers
	o.lastErr = err
}

func evt(typ string) Event {
	return NewEvent(typ, "test", time.Unix(0, 0), nil)
}

func TestBasicPublishSubscribe(t *testing.T) {
	b := New()
	var got Event
	sub, err := b.Subscribe(ImpactDetected, func(e Event) error {
		got = e
		return nil
	})
	require.NoError(t, err)
	_, err = uuid.Parse(sub.ID())
	assert.NoError(t, err, "subscription ids are uuids")

	require.NoError(t, b.Publish(NewEvent(ImpactDetected, "impact", time.Unix(10, 0), 123)))
	require.NotNil(t, got)
	assert.Equal(t, 123, got.Data())
	assert.Equal(t, "impact", got.Source())
	assert.Equal(t, time.Unix(10, 0), got.Timestamp())
}

func TestHandlersRunInSubscriptionOrder(t *testing.T) {
	b := New()
	var order []int
	for i := 0; i < 20; i++ {
		i := i
		_, err := b.Subscribe(ContactEngaged, func(Event) error {
			order = append(order, i)
			return nil
		})
		require.NoError(t, err)
	}
	require.NoError(t, b.Publish(evt(ContactEngaged)))

	want := make([]int, 20)
	for i := range want {
		want[i] = i
	}
	assert.Equal(t, want, order)
}

func TestHandlerErrorsAreJoined(t *testing.T) {
	b := New()
	errA := errors.New("a")
	errB := errors.New("b")
	calls := 0
	_, _ = b.Subscribe("x", func(Event) error { calls++; return errA })
	_, _ = b.Subscribe("x", func(Event) error { calls++; return nil })
	_, _ = b.Subscribe("x", func(Event) error { calls++; return errB })

	err := b.Publish(evt("x"))
	assert.Equal(t, 3, calls, "a failing handler does not stop delivery")
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)

	err = b.PublishBatch(evt("x"), evt("y"), evt("x"))
	assert.ErrorIs(t, err, errA)
	assert.Equal(t, 9, calls)
}

func TestCancelStopsDelivery(t *testing.T) {
	b := New()
	count := 0
	sub, err := b.Subscribe(ContactReleased, func(Event) error { count++; return nil })
	require.NoError(t, err)

	require.NoError(t, b.Publish(evt(ContactReleased)))
	require.NoError(t, b.Unsubscribe(sub))
	assert.False(t, sub.IsActive())
	require.NoError(t, sub.Cancel())
	require.NoError(t, b.Publish(evt(ContactReleased)))
	assert.Equal(t, 1, count)

	assert.NoError(t, b.Unsubscribe(nil))
}

func TestNilHandlerRejected(t *testing.T) {
	_, err := New().Subscribe("x", nil)
	assert.ErrorIs(t, err, ErrNilHandler)
}

func TestObserverMetricsOptional(t *testing.T) {
	b := New()
	_, _ = b.Subscribe("e", func(Event) error { return nil })
	_ = b.Publish(evt("e"))
	assert.Equal(t, Metrics{}, b.Metrics(), "no counters without observers")

	obs := &testObserver{}
	b.AddObserver(obs)
	b.AddObserver(obs)
	_ = b.Publish(evt("e"))

	m := b.Metrics()
	assert.Equal(t, uint64(1), m.Published)
	assert.Equal(t, uint64(1), m.DeliveredHandlers)
	assert.Equal(t, uint64(1), m.SubscribersActive)
	assert.Equal(t, 1, obs.publishCount, "duplicate observers are ignored")
	assert.Equal(t, 1, obs.deliveredCount)

	b.RemoveObserver(obs)
	_ = b.Publish(evt("e"))
	assert.Equal(t, 1, obs.publishCount)
}
