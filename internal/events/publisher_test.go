package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublish(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	ctx := context.Background()

	sub := rdb.Subscribe(ctx, Channel(EventInvoiceCreated), ChannelAll)
	t.Cleanup(func() { _ = sub.Close() })
	for confirmed := 0; confirmed < 2; {
		msg, err := sub.ReceiveTimeout(ctx, time.Second)
		require.NoError(t, err)
		if _, ok := msg.(*redis.Subscription); ok {
			confirmed++
		}
	}

	err := NewPublisher(rdb).Publish(ctx, SettlementEvent{
		EventType:     EventInvoiceCreated,
		OrderNumber:   "ORD-1",
		InvoiceStatus: "success",
		InvoiceNo:     "INV-1",
		Total:         "180.00",
	})
	require.NoError(t, err)

	channels := map[string]SettlementEvent{}
	for i := 0; i < 2; i++ {
		msg, err := sub.ReceiveTimeout(ctx, time.Second)
		require.NoError(t, err)
		m, ok := msg.(*redis.Message)
		require.True(t, ok)

		var event SettlementEvent
		require.NoError(t, json.Unmarshal([]byte(m.Payload), &event))
		channels[m.Channel] = event
	}

	require.Contains(t, channels, "settlement:events:invoice.created")
	require.Contains(t, channels, "settlement:events:all")
	event := channels[ChannelAll]
	assert.Equal(t, "ORD-1", event.OrderNumber)
	assert.NotEmpty(t, event.EventID)
	assert.False(t, event.Timestamp.IsZero())
}

func TestPublish_NilClientIsNoop(t *testing.T) {
	assert.NoError(t, NewPublisher(nil).Publish(context.Background(), SettlementEvent{EventType: EventInvoiceFailed}))
}
