package http

import (
	"net/http"

	"collateral-loans/internal/usecase/loan"
	"collateral-loans/pkg/wei"

	"github.com/labstack/echo/v4"
)

type LoanHandler struct{ uc *loan.Usecase }

func NewLoanHandler(uc *loan.Usecase) *LoanHandler { return &LoanHandler{uc: uc} }

// Amounts travel as decimal strings of base units.
type requestLoanReq struct {
	Collateral   string `json:"collateral"    validate:"required,uint256"`
	InterestRate uint64 `json:"interest_rate"`
	Duration     uint64 `json:"duration"`
}

type valueReq struct {
	Value string `json:"value" validate:"required,uint256"`
}

func (h *LoanHandler) RequestLoan(c echo.Context) error {
	caller, ok := callerFrom(c)
	if !ok {
		return badRequest(c, "missing or invalid Ax-Account header")
	}
	var req requestLoanReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(c, err)
	}
	collateral, _ := wei.Parse(req.Collateral)

	dto, err := h.uc.Request(c.Request().Context(), loan.RequestLoanInput{
		Caller:       caller,
		Value:        collateral.Big(),
		InterestRate: req.InterestRate,
		Duration:     req.Duration,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, dto)
}

// bindValue reads caller, loan id and the attached value shared by fund and repay.
func bindValue(c echo.Context) (in loan.FundLoanInput, ok bool, err error) {
	id, ok := loanIDParam(c)
	if !ok {
		return in, false, badRequest(c, "invalid loan id")
	}
	caller, ok := callerFrom(c)
	if !ok {
		return in, false, badRequest(c, "missing or invalid Ax-Account header")
	}
	var req valueReq
	if err := c.Bind(&req); err != nil {
		return in, false, badRequest(c, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return in, false, validationFailed(c, err)
	}
	v, _ := wei.Parse(req.Value)
	return loan.FundLoanInput{LoanID: id, Caller: caller, Value: v.Big()}, true, nil
}

func (h *LoanHandler) FundLoan(c echo.Context) error {
	in, ok, err := bindValue(c)
	if !ok {
		return err
	}
	dto, err := h.uc.Fund(c.Request().Context(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) RepayLoan(c echo.Context) error {
	in, ok, err := bindValue(c)
	if !ok {
		return err
	}
	dto, err := h.uc.Repay(c.Request().Context(), loan.RepayLoanInput(in))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) ClaimCollateral(c echo.Context) error {
	id, ok := loanIDParam(c)
	if !ok {
		return badRequest(c, "invalid loan id")
	}
	caller, ok := callerFrom(c)
	if !ok {
		return badRequest(c, "missing or invalid Ax-Account header")
	}
	dto, err := h.uc.Claim(c.Request().Context(), loan.ClaimCollateralInput{LoanID: id, Caller: caller})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) GetLoan(c echo.Context) error {
	id, ok := loanIDParam(c)
	if !ok {
		return badRequest(c, "invalid loan id")
	}
	dto, err := h.uc.Get(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) ListLoanEvents(c echo.Context) error {
	id, ok := loanIDParam(c)
	if !ok {
		return badRequest(c, "invalid loan id")
	}
	out, err := h.uc.Events(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *LoanHandler) ListAccountLoans(c echo.Context) error {
	addr, ok := addressParam(c)
	if !ok {
		return badRequest(c, "invalid address")
	}
	out, err := h.uc.ListByAccount(c.Request().Context(), addr)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
