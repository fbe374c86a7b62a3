package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"stepchess/internal/apperr"
	"stepchess/internal/game"
	"stepchess/internal/leaderboard"
	"stepchess/internal/ledger"
	"stepchess/internal/logging"
	"stepchess/internal/matchmaking"
	"stepchess/internal/model"
)

// Handler contains dependencies for HTTP handlers
type Handler struct {
	Engine      *game.Engine
	Ledger      *ledger.Ledger
	Pairer      *matchmaking.Pairer
	Leaderboard *leaderboard.Accumulator
	Log         *zap.Logger

	// Commit and BuildDate are reported by /healthz.
	Commit    string
	BuildDate string

	// done ends open streams on shutdown
	done context.Context
}

// NewHandler creates a new handler instance. Streams end when ctx is done.
func NewHandler(ctx context.Context, h Handler) *Handler {
	h.Log = logging.OrNop(h.Log)
	h.done = ctx
	return &h
}

type createBody struct {
	Preset string `json:"preset"`
	Mode   string `json:"mode"`
}

type moveBody struct {
	game.MoveRequest
	// UCI is a shorthand for from, to and promotion, e.g. "e7e8q".
	UCI string `json:"uci,omitempty"`
}

type endBody struct {
	Outcome string `json:"outcome"`
}

type stepsBody struct {
	Delta int64 `json:"delta"`
}

// HandleHealth reports liveness and the running build
func (h *Handler) HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"ok": true, "commit": h.Commit, "buildDate": h.BuildDate})
}

// HandlePresets lists the preset catalogue
func (h *Handler) HandlePresets(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"ok": true, "presets": h.Engine.Presets().All()})
}

// HandleNew creates a waiting game owned by the caller
func (h *Handler) HandleNew(c *fiber.Ctx) error {
	var body createBody
	if err := parseBody(c, &body); err != nil {
		return err
	}
	g, err := h.Engine.CreateGame(c.UserContext(), CallerID(c), body.Preset, body.Mode)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true, "game": g})
}

// HandleGet returns a game
func (h *Handler) HandleGet(c *fiber.Ctx) error {
	g, err := h.Engine.GetGame(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true, "game": g})
}

// HandleJoin seats the caller as black
func (h *Handler) HandleJoin(c *fiber.Ctx) error {
	g, err := h.Engine.JoinGame(c.UserContext(), CallerID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true, "game": g})
}

// HandleMove processes a chess move
func (h *Handler) HandleMove(c *fiber.Ctx) error {
	var body moveBody
	if err := parseBody(c, &body); err != nil {
		return err
	}
	req := body.MoveRequest
	if body.UCI != "" {
		req = splitUCI(body.UCI, req.KingCapture)
	}
	req.From = strings.ToLower(strings.TrimSpace(req.From))
	req.To = strings.ToLower(strings.TrimSpace(req.To))
	req.Promotion = strings.ToLower(strings.TrimSpace(req.Promotion))

	res, err := h.Engine.MakeMove(c.UserContext(), CallerID(c), c.Params("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true, "result": res})
}

// HandleEnd finishes a game with the given outcome
func (h *Handler) HandleEnd(c *fiber.Ctx) error {
	var body endBody
	if err := parseBody(c, &body); err != nil {
		return err
	}
	g, err := h.Engine.EndGame(c.UserContext(), CallerID(c), c.Params("id"), body.Outcome)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true, "game": g})
}

// HandleSubmitSteps credits walked steps to the caller
func (h *Handler) HandleSubmitSteps(c *fiber.Ctx) error {
	var body stepsBody
	if err := parseBody(c, &body); err != nil {
		return err
	}
	bal, err := h.Ledger.Earn(c.UserContext(), CallerID(c), c.Params("id"), body.Delta)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true, "balance": bal})
}

// HandleBalance returns the caller's steps in a game they play in
func (h *Handler) HandleBalance(c *fiber.Ctx) error {
	ctx := c.UserContext()
	g, err := h.Engine.GetGame(ctx, c.Params("id"))
	if err != nil {
		return err
	}
	caller := CallerID(c)
	if _, ok := g.ColorOf(caller); !ok {
		return apperr.New(apperr.CodeNotAPlayer, "caller is not a player in this game")
	}
	bal, err := h.Ledger.Balance(ctx, g.ID, caller)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true, "balance": bal})
}

// HandleEnterQueue puts the caller in the matchmaking queue
func (h *Handler) HandleEnterQueue(c *fiber.Ctx) error {
	entry, err := h.Pairer.EnterQueue(c.UserContext(), CallerID(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"ok": true, "entry": entry})
}

// HandleLeaveQueue withdraws the caller from the queue
func (h *Handler) HandleLeaveQueue(c *fiber.Ctx) error {
	removed, err := h.Pairer.LeaveQueue(c.UserContext(), CallerID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true, "removed": removed})
}

// HandleNotification consumes the caller's match notification
func (h *Handler) HandleNotification(c *fiber.Ctx) error {
	n, err := h.Pairer.TakeNotification(c.UserContext(), CallerID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true, "notification": n})
}

// HandleLeaderboard lists the top players
func (h *Handler) HandleLeaderboard(c *fiber.Ctx) error {
	top, err := h.Leaderboard.Top(c.UserContext(), c.QueryInt("limit"))
	if err != nil {
		return err
	}
	if top == nil {
		top = []model.LeaderboardRecord{}
	}
	return c.JSON(fiber.Map{"ok": true, "players": top})
}

// HandlePlayerRecord returns one player's counters
func (h *Handler) HandlePlayerRecord(c *fiber.Ctx) error {
	r, err := h.Leaderboard.Record(c.UserContext(), c.Params("playerID"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true, "record": r})
}

func parseBody(c *fiber.Ctx, v any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(v); err != nil {
		return apperr.Wrap(apperr.CodeInvalidArgument, "bad json", err)
	}
	return nil
}
