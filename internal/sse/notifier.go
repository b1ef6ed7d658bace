package sse

// EventBroadcaster is the interface services use to push settlement events
// to connected admin streams.
type EventBroadcaster interface {
	BroadcastSettlement(event *SettlementEvent)
}

// HubBroadcaster implements EventBroadcaster using the SSE Hub.
type HubBroadcaster struct {
	hub *Hub
}

// NewHubBroadcaster creates a broadcaster backed by the given Hub.
func NewHubBroadcaster(hub *Hub) *HubBroadcaster {
	return &HubBroadcaster{hub: hub}
}

func (b *HubBroadcaster) BroadcastSettlement(event *SettlementEvent) {
	if b.hub.ClientCount() == 0 {
		return
	}
	b.hub.Broadcast(event)
}

// NopBroadcaster is a no-op implementation for when SSE is not needed.
type NopBroadcaster struct{}

func (NopBroadcaster) BroadcastSettlement(event *SettlementEvent) {}
