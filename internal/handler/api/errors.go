package api

import (
	"context"
	"errors"
	"net/http"

	domrepo "QullaScan/internal/domain/repository"
	"QullaScan/internal/service/swr"
	"QullaScan/internal/service/universe"
	"QullaScan/internal/services/indicators"
	"QullaScan/internal/usecase"
	xhttp "QullaScan/pkg/http"
)

var (
	errTooManyRequests      = errors.New("too many requests")
	errQueueFull            = errors.New("revalidation queue full")
	errRevalidationDisabled = errors.New("revalidation disabled")
	errNewsDisabled         = errors.New("news disabled")
)

// toAppError maps domain errors onto HTTP statuses.
func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, domrepo.ErrSymbolNotFound):
		return xhttp.NotFoundError("symbol not found").WithError(err)
	case errors.Is(err, usecase.ErrSymbolNotCached):
		return xhttp.NotFoundError("symbol not in the last scan").WithError(err)
	case errors.Is(err, usecase.ErrNoScanYet):
		return xhttp.NotFoundError("no scan has completed yet").WithError(err)
	case errors.Is(err, indicators.ErrInsufficientHistory):
		return xhttp.NewAppError("ERR_INSUFFICIENT_HISTORY", "symbol", "not enough price history", http.StatusUnprocessableEntity).WithError(err)
	case errors.Is(err, swr.ErrRevalidationInFlight):
		return xhttp.NewAppError("ERR_IN_FLIGHT", "symbol", "refresh already running", http.StatusConflict).WithError(err)
	case errors.Is(err, domrepo.ErrRateLimited), errors.Is(err, errTooManyRequests):
		return xhttp.TooManyRequestsError("too many requests, retry later").WithError(err)
	case errors.Is(err, errQueueFull):
		return xhttp.UnavailableError("ERR_QUEUE_FULL", "revalidation queue is full").WithError(err)
	case errors.Is(err, usecase.ErrArchiveDisabled), errors.Is(err, errRevalidationDisabled), errors.Is(err, errNewsDisabled):
		return xhttp.UnavailableError("ERR_DISABLED", err.Error()).WithError(err)
	case errors.Is(err, universe.ErrEmptyUniverse):
		return xhttp.UnavailableError("ERR_UNIVERSE", "no symbols available").WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.NewAppError("ERR_TIMEOUT", "", "upstream timed out", http.StatusGatewayTimeout).WithError(err)
	default:
		return xhttp.InternalError("internal error").WithError(err)
	}
}
