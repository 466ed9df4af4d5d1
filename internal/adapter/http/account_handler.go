package http

import (
	"net/http"

	"collateral-loans/internal/usecase/account"
	"collateral-loans/pkg/wei"

	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"
)

type AccountHandler struct{ uc *account.Usecase }

func NewAccountHandler(uc *account.Usecase) *AccountHandler { return &AccountHandler{uc: uc} }

type depositReq struct {
	Address string `param:"address" validate:"required,eth_addr"`
	Amount  string `json:"amount"   validate:"required,uint256"`
}

func (h *AccountHandler) GetAccount(c echo.Context) error {
	addr, ok := addressParam(c)
	if !ok {
		return badRequest(c, "invalid address")
	}
	dto, err := h.uc.Get(c.Request().Context(), addr)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *AccountHandler) Deposit(c echo.Context) error {
	var req depositReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(c, err)
	}
	amount, _ := wei.Parse(req.Amount)

	dto, err := h.uc.Deposit(c.Request().Context(), account.DepositInput{
		Address: common.HexToAddress(req.Address),
		Amount:  amount.Big(),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}
