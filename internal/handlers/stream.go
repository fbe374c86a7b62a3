package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"stepchess/internal/game"
)

const heartbeatEvery = 15 * time.Second

// HandleSSE handles Server-Sent Events for real-time game updates
func (h *Handler) HandleSSE(c *fiber.Ctx) error {
	g, err := h.Engine.GetGame(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	hub := h.Engine.Hub()
	ch, stop := hub.Watch(g.ID)
	initial, err := json.Marshal(game.StateOf(g, hub.WatcherCount(g.ID)))
	if err != nil {
		stop()
		return err
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	done := h.done.Done()
	log := h.Log.With(zap.String("game", g.ID), zap.String("caller", CallerID(c)))
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer stop()
		if !writeEvent(w, initial) {
			return
		}
		ticker := time.NewTicker(heartbeatEvery)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				// heartbeat
				if !writeEvent(w, []byte("{}")) {
					log.Debug("watcher gone")
					return
				}
			case msg, ok := <-ch:
				if !ok || !writeEvent(w, msg) {
					return
				}
			}
		}
	})
	return nil
}

// writeEvent reports false once the client is gone.
func writeEvent(w *bufio.Writer, data []byte) bool {
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return false
	}
	return w.Flush() == nil
}
