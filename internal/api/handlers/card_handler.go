package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"soomhub/market/internal/services"
	"soomhub/market/internal/utils"
)

// CardHandler serves the card type catalogue and users' saved bank cards.
type CardHandler struct {
	cardTypeService services.ICardTypeService
	bankCardService services.IBankCardService
}

func NewCardHandler(cardTypeService services.ICardTypeService, bankCardService services.IBankCardService) *CardHandler {
	return &CardHandler{cardTypeService: cardTypeService, bankCardService: bankCardService}
}

type CardTypeRequest struct {
	Name   *string `json:"name" binding:"omitempty,min=1,max=60"`
	NameAr *string `json:"name_ar" binding:"omitempty,max=60"`
	Code   *string `json:"code" binding:"omitempty,oneof=visa mastercard mada amex"`
	Active *bool   `json:"active"`
}

func (r CardTypeRequest) input() services.CardTypeInput {
	return services.CardTypeInput{Name: r.Name, NameAr: r.NameAr, Code: r.Code, Active: r.Active}
}

type CreateBankCardRequest struct {
	CardTypeID  string `json:"card_type_id" binding:"required,sixid"`
	HolderName  string `json:"holder_name" binding:"required,max=120"`
	Number      string `json:"number" binding:"required,min=12,max=23"`
	ExpiryMonth int    `json:"expiry_month" binding:"required,min=1,max=12"`
	ExpiryYear  int    `json:"expiry_year" binding:"required,min=2000,max=2100"`
	IsDefault   bool   `json:"is_default"`
}

type UpdateBankCardRequest struct {
	HolderName  *string `json:"holder_name" binding:"omitempty,min=1,max=120"`
	ExpiryMonth *int    `json:"expiry_month" binding:"omitempty,min=1,max=12"`
	ExpiryYear  *int    `json:"expiry_year" binding:"omitempty,min=2000,max=2100"`
	IsDefault   *bool   `json:"is_default"`
}

// ListCardTypes handles GET /v1/card-types (active types only).
func (h *CardHandler) ListCardTypes(c *gin.Context) {
	types, err := h.cardTypeService.ListCardTypes(c.Request.Context(), true)
	if err != nil {
		respondError(c, err, "Failed to list card types")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": types})
}

// AdminListCardTypes handles GET /v1/admin/card-types, inactive types included.
func (h *CardHandler) AdminListCardTypes(c *gin.Context) {
	types, err := h.cardTypeService.ListCardTypes(c.Request.Context(), false)
	if err != nil {
		respondError(c, err, "Failed to list card types")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": types})
}

func (h *CardHandler) CreateCardType(c *gin.Context) {
	var req CardTypeRequest
	if !bindJSON(c, &req) {
		return
	}
	ct, err := h.cardTypeService.CreateCardType(c.Request.Context(), req.input())
	if err != nil {
		respondError(c, err, "Failed to create card type")
		return
	}
	c.JSON(http.StatusCreated, ct)
}

func (h *CardHandler) UpdateCardType(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req CardTypeRequest
	if !bindJSON(c, &req) {
		return
	}
	ct, err := h.cardTypeService.UpdateCardType(c.Request.Context(), id, req.input())
	if err != nil {
		respondError(c, err, "Failed to update card type")
		return
	}
	c.JSON(http.StatusOK, ct)
}

func (h *CardHandler) DeleteCardType(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.cardTypeService.DeleteCardType(c.Request.Context(), id); err != nil {
		respondError(c, err, "Failed to delete card type")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CardHandler) ListBankCards(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	cards, err := h.bankCardService.ListBankCards(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "Failed to list bank cards")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": cards})
}

// CreateBankCard handles POST /v1/bank-cards. Only the last four digits are kept.
func (h *CardHandler) CreateBankCard(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req CreateBankCardRequest
	if !bindJSON(c, &req) {
		return
	}
	cardTypeID, _ := utils.ParseSixID(req.CardTypeID)

	card, err := h.bankCardService.CreateBankCard(c.Request.Context(), userID, services.BankCardInput{
		CardTypeID:  cardTypeID,
		HolderName:  req.HolderName,
		Number:      req.Number,
		ExpiryMonth: req.ExpiryMonth,
		ExpiryYear:  req.ExpiryYear,
		IsDefault:   req.IsDefault,
	})
	if err != nil {
		respondError(c, err, "Failed to save bank card")
		return
	}
	c.JSON(http.StatusCreated, card)
}

func (h *CardHandler) GetBankCard(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	cardID, ok := paramID(c, "id")
	if !ok {
		return
	}
	card, err := h.bankCardService.FindBankCard(c.Request.Context(), cardID, userID)
	if err != nil {
		respondError(c, err, "Failed to retrieve bank card")
		return
	}
	c.JSON(http.StatusOK, card)
}

func (h *CardHandler) UpdateBankCard(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	cardID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req UpdateBankCardRequest
	if !bindJSON(c, &req) {
		return
	}
	card, err := h.bankCardService.UpdateBankCard(c.Request.Context(), cardID, userID, services.BankCardUpdate{
		HolderName:  req.HolderName,
		ExpiryMonth: req.ExpiryMonth,
		ExpiryYear:  req.ExpiryYear,
		IsDefault:   req.IsDefault,
	})
	if err != nil {
		respondError(c, err, "Failed to update bank card")
		return
	}
	c.JSON(http.StatusOK, card)
}

func (h *CardHandler) DeleteBankCard(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	cardID, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.bankCardService.DeleteBankCard(c.Request.Context(), cardID, userID); err != nil {
		respondError(c, err, "Failed to delete bank card")
		return
	}
	c.Status(http.StatusNoContent)
}
