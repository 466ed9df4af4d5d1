package http

import (
	"errors"
	"net/http"
	"strconv"

	"collateral-loans/internal/adapter/middleware"
	domainAccount "collateral-loans/internal/domain/account"
	domainLoan "collateral-loans/internal/domain/loan"
	"collateral-loans/internal/domain/settlement"
	ucAccount "collateral-loans/internal/usecase/account"
	ucLoan "collateral-loans/internal/usecase/loan"

	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// statusFor maps a usecase error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domainLoan.ErrNotFound):
		return http.StatusNotFound
	case domainLoan.IsValidation(err),
		errors.Is(err, domainAccount.ErrInvalidAddress),
		errors.Is(err, ucAccount.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, domainLoan.ErrWrongCaller), errors.Is(err, domainLoan.ErrSelfFunding):
		return http.StatusForbidden
	case domainLoan.Code(err) != "":
		return http.StatusConflict
	case errors.Is(err, settlement.ErrTransferFailed):
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c echo.Context, err error) error {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		zerolog.Ctx(c.Request().Context()).Error().Err(err).Str("path", c.Path()).Msg("request failed")
		return c.JSON(status, ErrorResponse{Error: "internal error", Code: "Internal"})
	}
	code := ucLoan.ErrorCode(err)
	if code == "Internal" {
		code = ""
	}
	return c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func validationFailed(c echo.Context, err error) error {
	return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
		Error:   "validation failed",
		Details: ToFieldErrors(err),
	})
}

// callerFrom reads the calling account from the Ax-Account header.
func callerFrom(c echo.Context) (common.Address, bool) {
	raw := c.Request().Header.Get(middleware.HeaderAccount)
	if !common.IsHexAddress(raw) {
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func loanIDParam(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil
}

func addressParam(c echo.Context) (common.Address, bool) {
	raw := c.Param("address")
	if !common.IsHexAddress(raw) {
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}
