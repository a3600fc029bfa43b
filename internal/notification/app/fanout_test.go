package app

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/labhub-io/labhub/internal/notification/domain"
)

func marshalEnvelope(t *testing.T, env domain.Envelope) []byte {
	t.Helper()
	data, err := json.Marshal(env)
	require.NoError(t, err)
	return data
}

func TestFanoutReceiver_DeliversForeignEnvelopes(t *testing.T) {
	registry := NewRegistry(testLogger())
	ch := &fakeChannel{}
	registry.Register(42, "tab", ch)

	f := NewFanoutReceiver(NewMemoryBus(), registry, testLogger(), "instance-a")

	f.handle(marshalEnvelope(t, domain.Envelope{
		Origin:       "instance-b",
		ReceiverID:   42,
		Notification: testNotification(1),
	}))

	require.Equal(t, 1, ch.writeCount())
}

func TestFanoutReceiver_SkipsOwnEnvelopes(t *testing.T) {
	registry := NewRegistry(testLogger())
	ch := &fakeChannel{}
	registry.Register(42, "tab", ch)

	f := NewFanoutReceiver(NewMemoryBus(), registry, testLogger(), "instance-a")

	// The dispatcher already delivered this one directly.
	f.handle(marshalEnvelope(t, domain.Envelope{
		Origin:       "instance-a",
		ReceiverID:   42,
		Notification: testNotification(1),
	}))

	require.Equal(t, 0, ch.writeCount())
}

func TestFanoutReceiver_UnknownUserIsSilentNoop(t *testing.T) {
	registry := NewRegistry(testLogger())
	f := NewFanoutReceiver(NewMemoryBus(), registry, testLogger(), "instance-a")

	f.handle(marshalEnvelope(t, domain.Envelope{
		Origin:       "instance-b",
		ReceiverID:   999,
		Notification: testNotification(1),
	}))
	// Nothing to assert beyond "no panic": the user is connected elsewhere.
}

func TestFanoutReceiver_DiscardsGarbage(t *testing.T) {
	registry := NewRegistry(testLogger())
	f := NewFanoutReceiver(NewMemoryBus(), registry, testLogger(), "instance-a")

	f.handle([]byte("{not json"))
}

// Two instances sharing a memory bus: an envelope published by one is
// delivered by the other's receiver, and only by it.
func TestFanout_CrossInstanceDelivery(t *testing.T) {
	bus := NewMemoryBus()

	registryA := NewRegistry(testLogger())
	registryB := NewRegistry(testLogger())
	chB := &fakeChannel{}
	registryB.Register(42, "tab", chB)

	receiverA := NewFanoutReceiver(bus, registryA, testLogger(), "instance-a")
	receiverB := NewFanoutReceiver(bus, registryB, testLogger(), "instance-b")
	require.NoError(t, receiverA.Start(context.Background()))
	require.NoError(t, receiverB.Start(context.Background()))

	// Instance A dispatches for user 42, who is connected to instance B.
	d := NewDispatcher(bus, registryA, testLogger(), "instance-a", DispatcherConfig{Workers: 1, QueueSize: 4})
	d.EnqueueForUser(42, testNotification(7))
	d.Close()
	require.NoError(t, bus.Close()) // waits for handler fan-out

	waitFor(t, func() bool { return chB.writeCount() == 1 }, "cross-instance delivery")
}

func TestMemoryBus_PublishReachesAllSubscribers(t *testing.T) {
	bus := NewMemoryBus()

	got := make(chan []byte, 2)
	handler := func(data []byte) { got <- data }
	require.NoError(t, bus.Subscribe(context.Background(), handler))
	require.NoError(t, bus.Subscribe(context.Background(), handler))

	require.NoError(t, bus.Publish(context.Background(), []byte("ping")))
	require.NoError(t, bus.Close())

	require.Len(t, got, 2)
}
