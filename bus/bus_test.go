package bus_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/moleculadb/insertdest/bus"
)

func TestChannelBusRecordsAndForwardsSends(t *testing.T) {
	b := bus.NewChannelBus(4)
	require.NoError(t, b.Send(context.Background(), "worker-1", "scheduler-1", []byte("payload")))

	sent := b.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, "worker-1", sent[0].SenderClientID)
	require.Equal(t, "scheduler-1", sent[0].ReceiverClientID)
	require.Equal(t, []byte("payload"), sent[0].Payload)

	select {
	case env := <-b.Received:
		require.Equal(t, sent[0], env)
	default:
		t.Fatal("expected envelope on Received channel")
	}
}

func TestFailingBusReturnsErr(t *testing.T) {
	want := context.DeadlineExceeded
	b := &bus.FailingBus{Err: want}
	err := b.Send(context.Background(), "a", "b", nil)
	require.ErrorIs(t, err, want)
}
