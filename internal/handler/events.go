package handler

import (
	"context"
	"io"
	"time"

	"github.com/sde1000/quicktill-sub001/internal/infra"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const eventKeepAlive = 30 * time.Second

// EventSource is satisfied by infra.Notifier.
type EventSource interface {
	Subscribe(ctx context.Context, channel string, fn func(payload string))
}

// EventsHandler streams barcode scans and user-token swipes to a terminal
// as server-sent events.
type EventsHandler struct{ src EventSource }

func NewEventsHandler(src EventSource) *EventsHandler {
	return &EventsHandler{src: src}
}

// Stream godoc
// @Summary Stream scan events (server-sent events)
// @Tags terminal
// @Produce text/event-stream
// @Security BearerAuth
// @Success 200 {string} string "event stream"
// @Router /v1/events [get]
func (h *EventsHandler) Stream(c *gin.Context) {
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	events := make(chan string, 16)
	for _, channel := range []string{infra.ChannelBarcode, infra.ChannelUserToken} {
		go h.src.Subscribe(ctx, channel, func(payload string) {
			select {
			case events <- payload:
			default:
				log.Warn().Msg("event stream client is slow; dropping scan")
			}
		})
	}

	ticker := time.NewTicker(eventKeepAlive)
	defer ticker.Stop()
	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case p := <-events:
			c.SSEvent("scan", p)
		case <-ticker.C:
			c.SSEvent("ping", "")
		}
		return true
	})
}
