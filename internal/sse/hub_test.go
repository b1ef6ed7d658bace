package sse

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_BroadcastReachesAllClients(t *testing.T) {
	hub := NewHub()
	a := hub.Register("admin-a")
	b := hub.Register("admin-b")
	assert.Equal(t, 2, hub.ClientCount())

	hub.Broadcast(&SettlementEvent{
		Event:     "settlement.transfer.settled",
		BookingID: "bk_1",
		Amount:    218_295,
		Timestamp: time.Now(),
	})

	for _, c := range []*Client{a, b} {
		select {
		case data := <-c.Events:
			var ev SettlementEvent
			require.NoError(t, json.Unmarshal(data, &ev))
			assert.Equal(t, "bk_1", ev.BookingID)
			assert.Equal(t, int64(218_295), ev.Amount)
		default:
			t.Fatalf("client %s did not receive the event", c.ID)
		}
	}
}

func TestHub_UnregisterClosesChannel(t *testing.T) {
	hub := NewHub()
	c := hub.Register("admin-a")
	hub.Unregister("admin-a")

	_, open := <-c.Events
	assert.False(t, open)
	assert.Equal(t, 0, hub.ClientCount())

	// Unregistering twice is harmless.
	hub.Unregister("admin-a")
}

func TestHub_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub()
	c := hub.Register("slow-admin")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			hub.Broadcast(&SettlementEvent{Event: "settlement.stage.enqueued", BookingID: "bk_1"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a slow client")
	}
	assert.Equal(t, 64, len(c.Events), "buffer holds its capacity and drops the rest")
}

func TestHubBroadcaster_SkipsWithoutClients(t *testing.T) {
	hub := NewHub()
	b := NewHubBroadcaster(hub)

	// No clients: must not panic or block.
	b.BroadcastSettlement(&SettlementEvent{Event: "settlement.dispute.opened", BookingID: "bk_1"})

	c := hub.Register("admin-a")
	b.BroadcastSettlement(&SettlementEvent{Event: "settlement.dispute.opened", BookingID: "bk_1"})
	assert.Equal(t, 1, len(c.Events))
}
