package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"mealcard/internal/errors"
	"mealcard/internal/service"
)

// CardHandler handles card and selection endpoints.
type CardHandler struct {
	cardService service.CardService
}

// NewCardHandler creates a new card handler.
func NewCardHandler(cardService service.CardService) *CardHandler {
	return &CardHandler{cardService: cardService}
}

// CreateCardRequest represents a card creation request.
type CreateCardRequest struct {
	HolderID  string `json:"holder_id" validate:"required,uuid"`
	HolderRef string `json:"holder_ref" validate:"required,max=64"`
}

// StageItemRequest adds an item to the selection at one of its prices.
type StageItemRequest struct {
	ItemID    string `json:"item_id" validate:"required,uuid"`
	UnitPrice string `json:"unit_price" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=0,lte=100"`
}

// UnstageItemRequest identifies a selection line. Quantity only applies
// to the decrement endpoint and defaults to one.
type UnstageItemRequest struct {
	ItemID    string `json:"item_id" validate:"required,uuid"`
	UnitPrice string `json:"unit_price" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=0,lte=100"`
}

// CreateCard godoc
// @Summary Issue a card to a holder
// @Tags cards
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateCardRequest true "Card data"
// @Success 201 {object} model.Card
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /cards [post]
func (h *CardHandler) CreateCard(c echo.Context) error {
	var req CreateCardRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	card, err := h.cardService.CreateCard(c.Request().Context(), uuid.MustParse(req.HolderID), req.HolderRef)
	if err != nil {
		return errorResponse(err)
	}

	return c.JSON(http.StatusCreated, card)
}

// GetCard godoc
// @Summary Get a card with its selection
// @Tags cards
// @Produce json
// @Security BearerAuth
// @Param id path string true "Card ID"
// @Success 200 {object} model.Card
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /cards/{id} [get]
func (h *CardHandler) GetCard(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	cardID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	card, err := h.cardService.GetCard(c.Request().Context(), cardID)
	if err != nil {
		return errorResponse(err)
	}
	if !canRead(id, card) {
		return errorResponse(errors.ErrNotCardHolder)
	}

	return c.JSON(http.StatusOK, card)
}

// GetCardByNumber godoc
// @Summary Look up a card by its number
// @Tags cards
// @Produce json
// @Security BearerAuth
// @Param number path string true "Card number (MC-XXXXXXXX)"
// @Success 200 {object} model.Card
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /cards/number/{number} [get]
func (h *CardHandler) GetCardByNumber(c echo.Context) error {
	card, err := h.cardService.GetCardByNumber(c.Request().Context(), c.Param("number"))
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, card)
}

// GetCardsByHolder godoc
// @Summary List the cards of a holder
// @Tags cards
// @Produce json
// @Security BearerAuth
// @Param holderRef path string true "Holder reference"
// @Success 200 {array} model.Card
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /cards/holder/{holderRef} [get]
func (h *CardHandler) GetCardsByHolder(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	holderRef := c.Param("holderRef")
	if !id.IsStaff() && id.HolderRef != holderRef {
		return errorResponse(errors.ErrNotCardHolder)
	}

	cards, err := h.cardService.GetCardsByHolder(c.Request().Context(), holderRef)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, cards)
}

// StageItem godoc
// @Summary Add an item to the card's selection
// @Tags selection
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Card ID"
// @Param request body StageItemRequest true "Item and unit price"
// @Success 200 {object} model.Card
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /cards/{id}/items [post]
func (h *CardHandler) StageItem(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	cardID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req StageItemRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	unitPrice, err := parseAmount(req.UnitPrice)
	if err != nil {
		return err
	}

	card, err := h.cardService.StageItem(c.Request().Context(), id, cardID, uuid.MustParse(req.ItemID), unitPrice, req.Quantity)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, card)
}

// UnstageItem godoc
// @Summary Remove a line from the card's selection
// @Tags selection
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Card ID"
// @Param request body UnstageItemRequest true "Line to remove"
// @Success 200 {object} model.Card
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /cards/{id}/items [delete]
func (h *CardHandler) UnstageItem(c echo.Context) error {
	return h.unstage(c, service.UnstageAll)
}

// DecrementItem godoc
// @Summary Decrease the quantity of a selection line
// @Description Removes the line when its quantity reaches zero.
// @Tags selection
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Card ID"
// @Param request body UnstageItemRequest true "Line and quantity"
// @Success 200 {object} model.Card
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /cards/{id}/items/decrement [post]
func (h *CardHandler) DecrementItem(c echo.Context) error {
	return h.unstage(c, service.UnstageDecrement)
}

func (h *CardHandler) unstage(c echo.Context, mode service.UnstageMode) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	cardID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req UnstageItemRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	unitPrice, err := parseAmount(req.UnitPrice)
	if err != nil {
		return err
	}

	card, err := h.cardService.UnstageItem(c.Request().Context(), id, cardID, uuid.MustParse(req.ItemID), unitPrice, mode, req.Quantity)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, card)
}

// GetSelection godoc
// @Summary Show the card's selection and total
// @Tags selection
// @Produce json
// @Security BearerAuth
// @Param id path string true "Card ID"
// @Success 200 {object} service.Selection
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /cards/{id}/selection [get]
func (h *CardHandler) GetSelection(c echo.Context) error {
	cardID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	selection, err := h.cardService.GetSelection(c.Request().Context(), cardID)
	if err != nil {
		return errorResponse(err)
	}
	return c.JSON(http.StatusOK, selection)
}
