package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"mealcard/internal/service"
)

// TopUpHandler handles top-up requests and their approval.
type TopUpHandler struct {
	topUpService service.TopUpService
}

// NewTopUpHandler creates a new top-up handler.
func NewTopUpHandler(topUpService service.TopUpService) *TopUpHandler {
	return &TopUpHandler{topUpService: topUpService}
}

// ProcessTopUpRequest carries an approver's decision.
type ProcessTopUpRequest struct {
	Action string `json:"action" validate:"required,oneof=approve reject"`
	Note   string `json:"note" validate:"max=255"`
}

// RequestTopUp godoc
// @Summary Request a top-up for a card
// @Description The request is pending until an approver processes it, unless auto-approval is enabled.
// @Tags top-ups
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Card ID"
// @Param request body AmountRequest true "Top-up amount"
// @Success 201 {object} service.TopUpResult
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /cards/{id}/top-ups [post]
func (h *TopUpHandler) RequestTopUp(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	cardID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req AmountRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return err
	}

	result, err := h.topUpService.RequestTopUp(c.Request().Context(), id, cardID, amount)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusCreated, result)
}

// ListPending godoc
// @Summary List pending top-up requests, oldest first
// @Tags top-ups
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Maximum requests"
// @Success 200 {array} model.TopUpRequest
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /top-ups/pending [get]
func (h *TopUpHandler) ListPending(c echo.Context) error {
	limit, err := limitParam(c)
	if err != nil {
		return err
	}

	requests, err := h.topUpService.ListPending(c.Request().Context(), limit)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, requests)
}

// ProcessTopUp godoc
// @Summary Approve or reject a pending top-up request
// @Tags top-ups
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Top-up request ID"
// @Param request body ProcessTopUpRequest true "Decision"
// @Success 200 {object} service.TopUpResult
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /top-ups/{id}/process [post]
func (h *TopUpHandler) ProcessTopUp(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	requestID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req ProcessTopUpRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	result, err := h.topUpService.ProcessTopUp(c.Request().Context(), id, requestID, service.Decision(req.Action), req.Note)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, result)
}
