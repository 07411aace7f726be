package api

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/streamrelay/internal/relay"
)

// mapRelayError translates supervisor errors into HTTP status errors.
func mapRelayError(err error) error {
	switch {
	case errors.Is(err, relay.ErrStreamNotFound), errors.Is(err, relay.ErrTaskNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, relay.ErrStreamExists):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, relay.ErrStreamRunning):
		return huma.Error409Conflict(err.Error())
	default:
		return huma.Error400BadRequest(err.Error())
	}
}
