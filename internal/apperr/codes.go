// Package apperr provides the machine-readable error taxonomy shared by every
// operation.
package apperr

import "github.com/gofiber/fiber/v2"

// Code is a machine-readable error code.
type Code string

const (
	CodeUnknown Code = "UNKNOWN"

	// Caller input errors
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeUnknownPreset   Code = "UNKNOWN_PRESET"
	CodeUnknownCostMode Code = "UNKNOWN_COST_MODE"
	CodeInvalidSquare   Code = "INVALID_SQUARE"
	CodeInvalidPromo    Code = "INVALID_PROMOTION"
	CodeInvalidOutcome  Code = "INVALID_OUTCOME"
	CodeInvalidDelta    Code = "INVALID_DELTA"
	CodeDeltaExceedsCap Code = "DELTA_EXCEEDS_CAP"
	CodeNoPieceAtOrigin Code = "NO_PIECE_AT_ORIGIN"
	CodeIllegalMove     Code = "ILLEGAL_MOVE"
	CodeMissingCaller   Code = "MISSING_CALLER"

	// Lookup errors
	CodeGameNotFound Code = "GAME_NOT_FOUND"
	CodeNoMatchYet   Code = "NO_MATCH_YET"

	// Permission errors
	CodeNotAPlayer Code = "NOT_A_PLAYER"
	CodeSelfJoin   Code = "SELF_JOIN"

	// State errors
	CodeActiveGameExists  Code = "ACTIVE_GAME_EXISTS"
	CodeGameNotWaiting    Code = "GAME_NOT_WAITING"
	CodeGameNotActive     Code = "GAME_NOT_ACTIVE"
	CodeGameFinished      Code = "GAME_FINISHED"
	CodeInsufficientSteps Code = "INSUFFICIENT_STEPS"
	CodeHourlyCapReached  Code = "HOURLY_CAP_REACHED"

	// Infrastructure errors
	CodeStoreUnavailable  Code = "STORE_UNAVAILABLE"
	CodeOracleUnavailable Code = "ORACLE_UNAVAILABLE"
	CodeMirrorWrite       Code = "MIRROR_WRITE_FAILED"
	CodeTimeout           Code = "TIMEOUT"

	// Integrity errors
	CodeCorruptBoard Code = "CORRUPT_BOARD"
	CodeInternal     Code = "INTERNAL"
)

// Kind groups codes by how callers should react to them.
type Kind string

const (
	KindInvalidArgument    Kind = "invalid_argument"
	KindNotFound           Kind = "not_found"
	KindPermissionDenied   Kind = "permission_denied"
	KindFailedPrecondition Kind = "failed_precondition"
	KindUnavailable        Kind = "unavailable"
	KindInternal           Kind = "internal"
)

// Kind maps a code onto its category.
func (c Code) Kind() Kind {
	switch c {
	case CodeInvalidArgument,
		CodeUnknownPreset,
		CodeUnknownCostMode,
		CodeInvalidSquare,
		CodeInvalidPromo,
		CodeInvalidOutcome,
		CodeInvalidDelta,
		CodeDeltaExceedsCap,
		CodeNoPieceAtOrigin,
		CodeIllegalMove,
		CodeMissingCaller:
		return KindInvalidArgument

	case CodeGameNotFound, CodeNoMatchYet:
		return KindNotFound

	case CodeNotAPlayer, CodeSelfJoin:
		return KindPermissionDenied

	case CodeActiveGameExists,
		CodeGameNotWaiting,
		CodeGameNotActive,
		CodeGameFinished,
		CodeInsufficientSteps,
		CodeHourlyCapReached:
		return KindFailedPrecondition

	case CodeStoreUnavailable, CodeOracleUnavailable, CodeMirrorWrite, CodeTimeout:
		return KindUnavailable

	default:
		return KindInternal
	}
}

// HTTPStatus maps a code to the status the transport answers with.
func (c Code) HTTPStatus() int {
	switch c.Kind() {
	case KindInvalidArgument:
		return fiber.StatusBadRequest
	case KindNotFound:
		return fiber.StatusNotFound
	case KindPermissionDenied:
		return fiber.StatusForbidden
	case KindFailedPrecondition:
		if c == CodeInsufficientSteps {
			return fiber.StatusPaymentRequired
		}
		return fiber.StatusConflict
	case KindUnavailable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}
