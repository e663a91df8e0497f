package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"mealcard/internal/errors"
	"mealcard/internal/service"
)

// TransactionHandler handles debits and ledger history.
type TransactionHandler struct {
	transactionService service.TransactionService
	historyService     service.HistoryService
	cardService        service.CardService
}

// NewTransactionHandler creates a new transaction handler.
func NewTransactionHandler(
	transactionService service.TransactionService,
	historyService service.HistoryService,
	cardService service.CardService,
) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
		historyService:     historyService,
		cardService:        cardService,
	}
}

// PurchaseRequest represents a direct purchase request.
type PurchaseRequest struct {
	Amount string `json:"amount" validate:"required"`
	Note   string `json:"note" validate:"max=255"`
}

// Purchase godoc
// @Summary Debit an amount from a card
// @Tags transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Card ID"
// @Param request body PurchaseRequest true "Purchase data"
// @Success 201 {object} model.LedgerEntry
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 402 {object} InsufficientFundsResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /cards/{id}/purchase [post]
func (h *TransactionHandler) Purchase(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	cardID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req PurchaseRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return err
	}

	entry, err := h.transactionService.Purchase(c.Request().Context(), cardID, amount, req.Note, id.AccountID)
	if err != nil {
		return entryError(c, entry, err)
	}
	return c.JSON(http.StatusCreated, entry)
}

// Finalize godoc
// @Summary Charge the card for its selection
// @Description Debits the selection total and clears the selection in one step.
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Card ID"
// @Success 201 {object} model.LedgerEntry
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 402 {object} InsufficientFundsResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /cards/{id}/finalize [post]
func (h *TransactionHandler) Finalize(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	cardID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	entry, err := h.transactionService.FinalizeCartPurchase(c.Request().Context(), cardID, id.AccountID)
	if err != nil {
		return entryError(c, entry, err)
	}
	return c.JSON(http.StatusCreated, entry)
}

// ListCardEntries godoc
// @Summary List a card's ledger entries, most recent first
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Card ID"
// @Param limit query int false "Maximum entries (default and cap 200)"
// @Success 200 {array} model.LedgerEntry
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /cards/{id}/entries [get]
func (h *TransactionHandler) ListCardEntries(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	cardID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	limit, err := limitParam(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	card, err := h.cardService.GetCard(ctx, cardID)
	if err != nil {
		return errorResponse(err)
	}
	if !canRead(id, card) {
		return errorResponse(errors.ErrNotCardHolder)
	}

	entries, err := h.historyService.ListByCard(ctx, cardID, limit)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, entries)
}

// ListRecentEntries godoc
// @Summary List the most recent ledger entries across all cards
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Maximum entries (default and cap 50)"
// @Success 200 {array} model.LedgerEntry
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /entries/recent [get]
func (h *TransactionHandler) ListRecentEntries(c echo.Context) error {
	limit, err := limitParam(c)
	if err != nil {
		return err
	}

	entries, err := h.historyService.ListRecent(c.Request().Context(), limit)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, entries)
}
