package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"stepchess/internal/apperr"
	"stepchess/internal/game"
	"stepchess/pkg/utils"
)

const (
	callerKey    = "user_id"
	requestIDKey = "request_id"
)

// CallerID returns the identity the gateway attached to the request.
func CallerID(c *fiber.Ctx) string {
	id, _ := c.Locals(callerKey).(string)
	return id
}

// Identity reads X-User-ID. Requests without it are rejected with
// MISSING_CALLER.
func Identity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := strings.TrimSpace(c.Get("X-User-ID"))
		if id == "" {
			return apperr.New(apperr.CodeMissingCaller, "missing X-User-ID, requests must come through the gateway")
		}
		c.Locals(callerKey, id)
		return c.Next()
	}
}

// GatewayAuth checks the bearer token the gateway sends. An empty token
// disables the check.
func GatewayAuth(token string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token == "" {
			return c.Next()
		}
		got := strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		if got != token {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"ok":    false,
				"error": "invalid gateway authentication token",
			})
		}
		return c.Next()
	}
}

// Timeout bounds the handler's context.
func Timeout(d time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), d)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// RequestLog tags each request with an id and logs it once served.
func RequestLog(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		id := c.Get(fiber.HeaderXRequestID)
		if id == "" {
			id = utils.RandomHex(8)
		}
		c.Locals(requestIDKey, id)
		c.Set(fiber.HeaderXRequestID, id)

		err := c.Next()
		if err != nil {
			// render now so the logged status is the one sent
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}
		log.Debug("request",
			zap.String("id", id),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.String("ip", ClientIP(c)),
			zap.String("caller", CallerID(c)),
			zap.Duration("took", time.Since(start)),
		)
		return nil
	}
}

// ErrorHandler renders errors as {"ok": false, "code", "error", "metadata"}.
// Internal details only go to the log.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"ok": false, "error": fe.Message})
		}
		ae := apperr.From(err)
		switch ae.Code.Kind() {
		case apperr.KindInternal, apperr.KindUnavailable:
			log.Error("request failed",
				zap.String("path", c.Path()),
				zap.String("code", string(ae.Code)),
				zap.Error(err),
			)
		}
		body := fiber.Map{"ok": false, "code": ae.Code, "error": ae.UserMessage()}
		if len(ae.Metadata) > 0 && ae.Code.Kind() != apperr.KindInternal {
			body["metadata"] = ae.Metadata
		}
		return c.Status(ae.Code.HTTPStatus()).JSON(body)
	}
}

// ClientIP extracts the client IP from the request
func ClientIP(c *fiber.Ctx) string {
	if ips := c.IPs(); len(ips) > 0 {
		return strings.TrimSpace(ips[0])
	}
	return c.IP()
}

// splitUCI turns "e2e4" or "e7e8q" into a move request.
func splitUCI(uci string, kingCapture bool) game.MoveRequest {
	uci = strings.ToLower(strings.TrimSpace(uci))
	req := game.MoveRequest{KingCapture: kingCapture}
	if len(uci) < 4 {
		req.From = uci
		return req
	}
	req.From, req.To = uci[:2], uci[2:4]
	if len(uci) > 4 {
		req.Promotion = uci[4:]
	}
	return req
}
