package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GoSim-25-26J-441/template-registry/internal/logging"
	projectdomain "github.com/GoSim-25-26J-441/template-registry/internal/projects/domain"
	"github.com/GoSim-25-26J-441/template-registry/internal/templates/domain"
)

// StreamTemplateEvents streams build updates for a template using Server-Sent
// Events. The stream ends when the build reaches a terminal status, the
// template is deleted or the client disconnects.
func (h *Handler) StreamTemplateEvents(c *gin.Context) {
	project, ok := currentProject(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	tpl, err := h.svc.GetTemplate(ctx, project, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "InternalError",
			"message": "streaming unsupported",
		})
		return
	}

	var events <-chan domain.Event
	if h.subscriber != nil {
		events, err = h.subscriber.Subscribe(ctx, project.ID, tpl.ID)
		if err != nil {
			logging.Op(ctx, "StreamTemplateEvents").WithError(err).Warn("subscribe failed, falling back to polling")
			events = nil
		} else {
			// Changes published before the subscription started are only
			// visible in the store.
			tpl, err = h.svc.GetTemplate(ctx, project, tpl.ID)
			if err != nil {
				respondError(c, err)
				return
			}
		}
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	send := func(event string, payload interface{}) {
		data, _ := json.Marshal(payload)
		fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, data)
		flusher.Flush()
	}

	send("initial", gin.H{"template": tpl})
	if tpl.BuildStatus.IsTerminal() {
		return
	}

	if events != nil {
		h.forwardEvents(ctx, c, flusher, events, send)
		return
	}
	h.pollTemplate(ctx, c, flusher, project, tpl, send)
}

func (h *Handler) forwardEvents(ctx context.Context, c *gin.Context, flusher http.Flusher, events <-chan domain.Event, send func(string, interface{})) {
	keepAlive := time.NewTicker(h.keepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-keepAlive.C:
			fmt.Fprint(c.Writer, ": keep-alive\n\n")
			flusher.Flush()

		case ev, ok := <-events:
			if !ok {
				return
			}
			send(string(ev.Type), ev)
			if ev.Type == domain.EventDeleted || ev.Status.IsTerminal() {
				return
			}
		}
	}
}

func (h *Handler) pollTemplate(ctx context.Context, c *gin.Context, flusher http.Flusher, project projectdomain.Project, tpl *domain.Template, send func(string, interface{})) {
	keepAlive := time.NewTicker(h.keepAlive)
	defer keepAlive.Stop()

	poll := time.NewTicker(h.pollInterval)
	defer poll.Stop()

	lastUpdatedAt := tpl.UpdatedAt
	lastStatus := tpl.BuildStatus

	for {
		select {
		case <-ctx.Done():
			return

		case <-keepAlive.C:
			fmt.Fprint(c.Writer, ": keep-alive\n\n")
			flusher.Flush()

		case <-poll.C:
			current, err := h.svc.GetTemplate(ctx, project, tpl.ID)
			if err != nil {
				if errors.Is(err, domain.ErrTemplateNotFound) {
					send(string(domain.EventDeleted), domain.NewEvent(domain.EventDeleted, tpl))
					return
				}
				continue
			}

			if current.UpdatedAt.After(lastUpdatedAt) || current.BuildStatus != lastStatus {
				lastUpdatedAt = current.UpdatedAt
				typ := domain.EventUpdated
				if current.BuildStatus != lastStatus {
					typ = domain.EventStatusChanged
				}
				lastStatus = current.BuildStatus

				send(string(typ), domain.NewEvent(typ, current))
				if current.BuildStatus.IsTerminal() {
					return
				}
			}
		}
	}
}
