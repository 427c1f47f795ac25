package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"soomhub/market/internal/models"
	"soomhub/market/internal/services"
)

// AuctionHandler serves bids and the auction ledger of a listing.
type AuctionHandler struct {
	auctionService services.IAuctionService
}

func NewAuctionHandler(auctionService services.IAuctionService) *AuctionHandler {
	return &AuctionHandler{auctionService: auctionService}
}

type BidRequest struct {
	Amount *models.Amount `json:"amount" binding:"required"`
}

// ListAuctions handles GET /v1/listings/:id/auctions, highest bid first.
func (h *AuctionHandler) ListAuctions(c *gin.Context) {
	listingID, ok := paramID(c, "id")
	if !ok {
		return
	}
	entries, err := h.auctionService.ListAuctionHistory(c.Request.Context(), listingID)
	if err != nil {
		respondError(c, err, "Failed to list bids")
		return
	}
	if entries == nil {
		entries = []models.AuctionHistory{}
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}

// PlaceBid handles POST /v1/listings/:id/auctions.
func (h *AuctionHandler) PlaceBid(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	listingID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req BidRequest
	if !bindJSON(c, &req) {
		return
	}
	entry, err := h.auctionService.PlaceBid(c.Request.Context(), listingID, userID, *req.Amount)
	if err != nil {
		respondError(c, err, "Failed to place bid")
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (h *AuctionHandler) GetAuction(c *gin.Context) {
	auctionID, ok := paramID(c, "id")
	if !ok {
		return
	}
	entry, err := h.auctionService.FindAuctionByID(c.Request.Context(), auctionID)
	if err != nil {
		respondError(c, err, "Failed to retrieve bid")
		return
	}
	c.JSON(http.StatusOK, entry)
}

// UpdateBid handles PUT /v1/auctions/:id for the bidder.
func (h *AuctionHandler) UpdateBid(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	auctionID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req BidRequest
	if !bindJSON(c, &req) {
		return
	}
	entry, err := h.auctionService.UpdateBid(c.Request.Context(), auctionID, userID, *req.Amount)
	if err != nil {
		respondError(c, err, "Failed to update bid")
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *AuctionHandler) DeleteBid(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	auctionID, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.auctionService.DeleteBid(c.Request.Context(), auctionID, userID, isAdmin(c)); err != nil {
		respondError(c, err, "Failed to delete bid")
		return
	}
	c.Status(http.StatusNoContent)
}

// ValidateAuction handles POST /v1/auctions/:id/validate for the seller or an admin.
func (h *AuctionHandler) ValidateAuction(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	auctionID, ok := paramID(c, "id")
	if !ok {
		return
	}
	entry, err := h.auctionService.ValidateAuction(c.Request.Context(), auctionID, userID, isAdmin(c))
	if err != nil {
		respondError(c, err, "Failed to validate bid")
		return
	}
	c.JSON(http.StatusOK, entry)
}
