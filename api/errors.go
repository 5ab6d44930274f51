package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/grove/pkg/ai"
	"github.com/papercomputeco/grove/pkg/session"
	"github.com/papercomputeco/grove/pkg/storage"
	"github.com/papercomputeco/grove/pkg/tree"
	"github.com/papercomputeco/grove/pkg/turn"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var (
		invalidParent tree.InvalidParentError
		notFound      tree.NotFoundError
		invalidOffset tree.InvalidOffsetError
		storeMissing  storage.NotFoundError
		configErr     *ai.ConfigError
		transportErr  *ai.TransportError
		syncErr       *session.SyncError
		fiberErr      *fiber.Error
	)

	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	case errors.As(err, &notFound), errors.As(err, &storeMissing):
		return fiber.StatusNotFound
	case errors.As(err, &invalidParent), errors.As(err, &invalidOffset),
		errors.Is(err, tree.ErrRootDeletion), errors.Is(err, tree.ErrEmptyComment),
		errors.Is(err, turn.ErrEmptyInput):
		return fiber.StatusBadRequest
	case errors.Is(err, turn.ErrTurnInProgress):
		return fiber.StatusConflict
	case errors.Is(err, session.ErrSignedOut):
		return fiber.StatusUnauthorized
	case errors.As(err, &configErr):
		return fiber.StatusServiceUnavailable
	case errors.As(err, &transportErr), errors.As(err, &syncErr),
		errors.Is(err, tree.ErrEmptyTurn):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// errorHandler renders handler errors as ErrorResponse.
func errorHandler(c *fiber.Ctx, err error) error {
	return c.Status(statusFor(err)).JSON(ErrorResponse{Error: err.Error()})
}
