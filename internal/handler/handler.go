package handler

import (
	stderrors "errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"mealcard/internal/auth"
	"mealcard/internal/errors"
	"mealcard/internal/model"
)

// InsufficientFundsResponse is returned with 402 when a debit was refused.
// Entry is the failed attempt that was recorded.
type InsufficientFundsResponse struct {
	Error string             `json:"error"`
	Code  string             `json:"code"`
	Entry *model.LedgerEntry `json:"entry"`
}

// AmountRequest carries a money amount as a decimal string.
type AmountRequest struct {
	Amount string `json:"amount" validate:"required"`
}

func errorResponse(err error) error {
	httpErr := errors.MapErrorToHTTP(err)
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
}

// entryError reports a refused debit together with its failed entry.
func entryError(c echo.Context, entry *model.LedgerEntry, err error) error {
	if entry != nil && stderrors.Is(err, errors.ErrInsufficientFunds) {
		return c.JSON(http.StatusPaymentRequired, InsufficientFundsResponse{
			Error: errors.ErrInsufficientFunds.Reason,
			Code:  string(errors.KindInsufficientFunds),
			Entry: entry,
		})
	}
	return errorResponse(err)
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_REQUEST",
		})
	}

	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: err.Error(),
			Code:  "VALIDATION_ERROR",
		})
	}
	return nil
}

func uuidParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid " + name,
			Code:  "INVALID_UUID",
		})
	}
	return id, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid amount",
			Code:  string(errors.KindInvalidAmount),
		})
	}
	return amount, nil
}

// limitParam reads the optional limit query parameter; 0 means the default.
func limitParam(c echo.Context) (int, error) {
	var limit int
	if err := echo.QueryParamsBinder(c).Int("limit", &limit).BindError(); err != nil || limit < 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid limit",
			Code:  "VALIDATION_ERROR",
		})
	}
	return limit, nil
}

func caller(c echo.Context) (auth.Identity, error) {
	id, ok := auth.FromContext(c.Request().Context())
	if !ok {
		return auth.Identity{}, echo.NewHTTPError(http.StatusUnauthorized, errors.ErrorResponse{
			Error: "missing identity",
			Code:  "UNAUTHORIZED",
		})
	}
	return id, nil
}

// canRead reports whether id may see card. Staff see every card.
func canRead(id auth.Identity, card *model.Card) bool {
	return id.IsStaff() || card.HolderID == id.AccountID
}
