package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// AppOptions configure the HTTP surface.
type AppOptions struct {
	GatewayToken   string
	RequestTimeout time.Duration
}

// NewApp builds the fiber app with every route registered.
func NewApp(h *Handler, opts AppOptions) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "stepchess",
		DisableStartupMessage: true,
		ErrorHandler:          ErrorHandler(h.Log),
		BodyLimit:             64 * 1024,
	})
	app.Use(recover.New())
	app.Use(RequestLog(h.Log))

	app.Get("/healthz", h.HandleHealth)

	api := app.Group("/", GatewayAuth(opts.GatewayToken))
	api.Get("/games/:id/stream", Identity(), h.HandleSSE)

	timed := api.Group("/", Timeout(opts.RequestTimeout))
	// public reads
	timed.Get("/presets", h.HandlePresets)
	timed.Get("/leaderboard", h.HandleLeaderboard)
	timed.Get("/leaderboard/:playerID", h.HandlePlayerRecord)
	timed.Get("/games/:id", h.HandleGet)

	secured := timed.Group("/", Identity())
	secured.Post("/games", h.HandleNew)
	secured.Post("/games/:id/join", h.HandleJoin)
	secured.Post("/games/:id/moves", h.HandleMove)
	secured.Post("/games/:id/end", h.HandleEnd)
	secured.Post("/games/:id/steps", h.HandleSubmitSteps)
	secured.Get("/games/:id/steps", h.HandleBalance)

	secured.Post("/queue", h.HandleEnterQueue)
	secured.Delete("/queue", h.HandleLeaveQueue)
	secured.Get("/queue/notification", h.HandleNotification)

	return app
}
