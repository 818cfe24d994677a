package codes

import (
	"github.com/go-kratos/kratos/v2/errors"
)

// Reasons are stable and are sent to clients in error pushes.
const (
	ReasonNotYourTurn       = "NOT_YOUR_TURN"
	ReasonIllegalPlacement  = "ILLEGAL_PLACEMENT"
	ReasonInvalidPhase      = "INVALID_PHASE"
	ReasonMalformedAction   = "MALFORMED_ACTION"
	ReasonUnknownGame       = "UNKNOWN_GAME"
	ReasonUnsupportedAction = "UNSUPPORTED_ACTION"
	ReasonNotEnoughPlayers  = "NOT_ENOUGH_PLAYERS"
	ReasonInternal          = "INTERNAL"
)

var (
	ErrNotYourTurn       = errors.New(409, ReasonNotYourTurn, "not your turn")
	ErrIllegalPlacement  = errors.New(422, ReasonIllegalPlacement, "illegal tile placement")
	ErrInvalidPhase      = errors.New(409, ReasonInvalidPhase, "action not allowed in current phase")
	ErrMalformedAction   = errors.New(400, ReasonMalformedAction, "malformed action")
	ErrUnknownGame       = errors.New(404, ReasonUnknownGame, "unknown game")
	ErrUnsupportedAction = errors.New(400, ReasonUnsupportedAction, "unsupported action")
	ErrNotEnoughPlayers  = errors.New(409, ReasonNotEnoughPlayers, "not enough players")
	ErrInternal          = errors.New(500, ReasonInternal, "internal error")
)
