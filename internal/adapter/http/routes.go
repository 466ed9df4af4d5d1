package http

import "github.com/labstack/echo/v4"

// Register mounts the service API. mutating wraps every state-changing route (idempotency).
func Register(e *echo.Echo, h *Handler, loans *LoanHandler, accounts *AccountHandler, mutating ...echo.MiddlewareFunc) {
	e.GET("/health", h.Health)

	e.POST("/loans", loans.RequestLoan, mutating...)
	e.GET("/loans/:id", loans.GetLoan)
	e.GET("/loans/:id/events", loans.ListLoanEvents)
	e.POST("/loans/:id/fund", loans.FundLoan, mutating...)
	e.POST("/loans/:id/repay", loans.RepayLoan, mutating...)
	e.POST("/loans/:id/claim", loans.ClaimCollateral, mutating...)

	e.GET("/accounts/:address", accounts.GetAccount)
	e.GET("/accounts/:address/loans", loans.ListAccountLoans)
	e.POST("/accounts/:address/deposit", accounts.Deposit, mutating...)
}
