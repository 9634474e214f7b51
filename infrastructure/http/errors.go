package http

import (
	stderrors "errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"studyrooms/errors"
)

// httpError maps the core's error taxonomy onto HTTP status codes.
// Caller errors stay 4xx; only persistence failures surface as 500.
func httpError(err error) *echo.HTTPError {
	switch {
	case stderrors.Is(err, errors.ErrInvalidIdentity):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case stderrors.Is(err, errors.ErrUnknownSession):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case stderrors.Is(err, errors.ErrTenantMismatch),
		stderrors.Is(err, errors.ErrNotAMember):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case stderrors.Is(err, errors.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
