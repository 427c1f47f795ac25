package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"soomhub/market/internal/services"
)

// PromoCodeHandler serves admin management and user checks of promo codes.
type PromoCodeHandler struct {
	promoCodeService services.IPromoCodeService
}

func NewPromoCodeHandler(promoCodeService services.IPromoCodeService) *PromoCodeHandler {
	return &PromoCodeHandler{promoCodeService: promoCodeService}
}

type CreatePromoCodeRequest struct {
	Code            string    `json:"code" binding:"required,min=3,max=32,alphanum"`
	DiscountPercent int       `json:"discount_percent" binding:"required,min=1,max=100"`
	MaxUses         int       `json:"max_uses" binding:"required,min=1"`
	StartDate       time.Time `json:"start_date" binding:"required"`
	EndDate         time.Time `json:"end_date" binding:"required,gtfield=StartDate"`
}

func (h *PromoCodeHandler) CreatePromoCode(c *gin.Context) {
	var req CreatePromoCodeRequest
	if !bindJSON(c, &req) {
		return
	}
	promo, err := h.promoCodeService.CreatePromoCode(c.Request.Context(), services.PromoCodeInput{
		Code:            req.Code,
		DiscountPercent: req.DiscountPercent,
		MaxUses:         req.MaxUses,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
	})
	if err != nil {
		respondError(c, err, "Failed to create promo code")
		return
	}
	c.JSON(http.StatusCreated, promo)
}

func (h *PromoCodeHandler) ListPromoCodes(c *gin.Context) {
	promos, next, err := h.promoCodeService.ListPromoCodes(c.Request.Context(), pageFromQuery(c))
	if err != nil {
		respondError(c, err, "Failed to list promo codes")
		return
	}
	respondPage(c, promos, next)
}

// DeactivatePromoCode handles DELETE /v1/admin/promo-codes/:code.
func (h *PromoCodeHandler) DeactivatePromoCode(c *gin.Context) {
	if err := h.promoCodeService.DeactivatePromoCode(c.Request.Context(), c.Param("code")); err != nil {
		respondError(c, err, "Failed to deactivate promo code")
		return
	}
	c.Status(http.StatusNoContent)
}

// CheckPromoCode handles GET /v1/promo-codes/:code without consuming a use.
func (h *PromoCodeHandler) CheckPromoCode(c *gin.Context) {
	promo, err := h.promoCodeService.CheckPromoCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err, "Failed to check promo code")
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": promo.Code, "discount_percent": promo.DiscountPercent, "end_date": promo.EndDate})
}

// RedeemPromoCode handles POST /v1/promo-codes/:code/redeem. An exhausted code answers 409.
func (h *PromoCodeHandler) RedeemPromoCode(c *gin.Context) {
	promo, err := h.promoCodeService.RedeemPromoCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err, "Failed to redeem promo code")
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": promo.Code, "discount_percent": promo.DiscountPercent})
}
