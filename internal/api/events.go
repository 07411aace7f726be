package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/streamrelay/internal/events"
)

// registerSSERoutes exposes the live event feed over Server-Sent Events.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream state changes, metrics snapshots, forward progress and pool changes",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"stream-state-changed": events.StreamStateChangedEvent{},
		"stream-metrics":       events.StreamMetricsEvent{},
		"forward-progress":     events.ForwardProgressEvent{},
		"config-reloaded":      events.ConfigReloadedEvent{},
		"pool-resized":         events.PoolResizedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 10)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.StreamStateChangedEvent](s.bus, eventCh),
			events.SubscribeToChannel[events.StreamMetricsEvent](s.bus, eventCh),
			events.SubscribeToChannel[events.ForwardProgressEvent](s.bus, eventCh),
			events.SubscribeToChannel[events.ConfigReloadedEvent](s.bus, eventCh),
			events.SubscribeToChannel[events.PoolResizedEvent](s.bus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-eventCh:
				if err := send.Data(ev); err != nil {
					return
				}
			}
		}
	})
}
