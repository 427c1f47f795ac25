package handlers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"soomhub/market/internal/models"
	"soomhub/market/internal/services"
	"soomhub/market/internal/utils"
)

// ImageEnqueuer schedules processing of an uploaded listing image.
type ImageEnqueuer interface {
	EnqueueImage(ctx context.Context, listingID utils.SixID, key string) error
}

// ListingHandler handles REST requests for listings and their images.
type ListingHandler struct {
	listingService services.IListingService
	images         ImageEnqueuer
}

func NewListingHandler(listingService services.IListingService, images ImageEnqueuer) *ListingHandler {
	return &ListingHandler{listingService: listingService, images: images}
}

type CreateListingRequest struct {
	Title          string                 `json:"title" binding:"required,max=200"`
	TitleAr        string                 `json:"title_ar" binding:"max=200"`
	Description    string                 `json:"description" binding:"max=20000"`
	Category       models.ListingCategory `json:"category" binding:"required"`
	Price          *models.Amount         `json:"price" binding:"required"`
	MinimumBid     *models.Amount         `json:"minimum_bid"`
	AuctionEnabled bool                   `json:"auction_enabled"`
	Publish        bool                   `json:"publish"`
}

type UpdateListingRequest struct {
	Title          *string                 `json:"title" binding:"omitempty,min=1,max=200"`
	TitleAr        *string                 `json:"title_ar" binding:"omitempty,max=200"`
	Description    *string                 `json:"description" binding:"omitempty,max=20000"`
	Category       *models.ListingCategory `json:"category"`
	Price          *models.Amount          `json:"price"`
	MinimumBid     *models.Amount          `json:"minimum_bid"`
	AuctionEnabled *bool                   `json:"auction_enabled"`
	IsDraft        *bool                   `json:"is_draft"`
}

type ImageUploadRequest struct {
	Filename    string `json:"filename" binding:"required,max=255"`
	ContentType string `json:"content_type" binding:"required"`
}

type ConfirmImageRequest struct {
	ObjectKey string `json:"object_key" binding:"required"`
}

// ListListings handles GET /v1/listings?category=&seller_id=&auction=. Drafts are never listed here.
func (h *ListingHandler) ListListings(c *gin.Context) {
	filter := services.ListingFilter{Category: models.ListingCategory(c.Query("category"))}
	if filter.Category != "" && !filter.Category.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category"})
		return
	}
	if s := c.Query("seller_id"); s != "" {
		sellerID, err := utils.ParseSixID(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid seller_id format"})
			return
		}
		filter.SellerID = &sellerID
	}
	if s := c.Query("auction"); s != "" {
		auction, err := strconv.ParseBool(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid auction flag"})
			return
		}
		filter.AuctionEnabled = &auction
	}

	listings, next, err := h.listingService.ListListings(c.Request.Context(), filter, pageFromQuery(c))
	if err != nil {
		respondError(c, err, "Failed to list listings")
		return
	}
	respondPage(c, listings, next)
}

// ListMyListings handles GET /v1/listings/mine, drafts included.
func (h *ListingHandler) ListMyListings(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	filter := services.ListingFilter{SellerID: &userID, IncludeDrafts: true}
	listings, next, err := h.listingService.ListListings(c.Request.Context(), filter, pageFromQuery(c))
	if err != nil {
		respondError(c, err, "Failed to list listings")
		return
	}
	respondPage(c, listings, next)
}

// GetListing handles GET /v1/listings/:id. Drafts are hidden from the public.
func (h *ListingHandler) GetListing(c *gin.Context) {
	listingID, ok := paramID(c, "id")
	if !ok {
		return
	}
	listing, err := h.listingService.FindListingByID(c.Request.Context(), listingID)
	if err != nil {
		respondError(c, err, "Failed to retrieve listing")
		return
	}
	if listing.IsDraft {
		respondError(c, services.ErrNotFound, "")
		return
	}
	c.JSON(http.StatusOK, listing)
}

// GetListingBySlug handles GET /v1/listings/slug/:slug.
func (h *ListingHandler) GetListingBySlug(c *gin.Context) {
	listing, err := h.listingService.FindListingBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err, "Failed to retrieve listing")
		return
	}
	if listing.IsDraft {
		respondError(c, services.ErrNotFound, "")
		return
	}
	c.JSON(http.StatusOK, listing)
}

func (h *ListingHandler) CreateListing(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req CreateListingRequest
	if !bindJSON(c, &req) {
		return
	}
	in := services.ListingInput{
		Title:          req.Title,
		TitleAr:        req.TitleAr,
		Description:    req.Description,
		Category:       req.Category,
		Price:          *req.Price,
		AuctionEnabled: req.AuctionEnabled,
		Publish:        req.Publish,
	}
	if req.MinimumBid != nil {
		in.MinimumBid = *req.MinimumBid
	}

	listing, err := h.listingService.CreateListing(c.Request.Context(), userID, in)
	if err != nil {
		respondError(c, err, "Failed to create listing")
		return
	}
	c.JSON(http.StatusCreated, listing)
}

func (h *ListingHandler) UpdateListing(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	listingID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req UpdateListingRequest
	if !bindJSON(c, &req) {
		return
	}
	listing, err := h.listingService.UpdateListing(c.Request.Context(), listingID, userID, services.ListingUpdate{
		Title:          req.Title,
		TitleAr:        req.TitleAr,
		Description:    req.Description,
		Category:       req.Category,
		Price:          req.Price,
		MinimumBid:     req.MinimumBid,
		AuctionEnabled: req.AuctionEnabled,
		IsDraft:        req.IsDraft,
	})
	if err != nil {
		respondError(c, err, "Failed to update listing")
		return
	}
	c.JSON(http.StatusOK, listing)
}

// DeleteListing handles DELETE /v1/listings/:id for the owner or an admin.
func (h *ListingHandler) DeleteListing(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	listingID, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.listingService.DeleteListing(c.Request.Context(), listingID, userID, isAdmin(c)); err != nil {
		respondError(c, err, "Failed to delete listing")
		return
	}
	c.Status(http.StatusNoContent)
}

// RequestImageUpload handles POST /v1/listings/:id/images and returns a presigned PUT URL.
func (h *ListingHandler) RequestImageUpload(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	listingID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req ImageUploadRequest
	if !bindJSON(c, &req) {
		return
	}
	url, key, err := h.listingService.PresignImageUpload(c.Request.Context(), listingID, userID, req.Filename, req.ContentType)
	if err != nil {
		respondError(c, err, "Failed to generate upload URL")
		return
	}
	c.JSON(http.StatusOK, gin.H{"upload_url": url, "object_key": key})
}

// ConfirmImageUpload handles POST /v1/listings/:id/images/confirm and schedules processing.
func (h *ListingHandler) ConfirmImageUpload(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	listingID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req ConfirmImageRequest
	if !bindJSON(c, &req) {
		return
	}

	listing, err := h.listingService.FindListingByID(c.Request.Context(), listingID)
	if err != nil {
		respondError(c, err, "Failed to retrieve listing")
		return
	}
	if listing.UserID != userID {
		respondError(c, services.ErrForbidden, "")
		return
	}
	// Keys are issued under uploads/<owner>/<listing>/ by RequestImageUpload.
	prefix := fmt.Sprintf("uploads/%s/%s/", userID, listingID)
	if !strings.HasPrefix(req.ObjectKey, prefix) || strings.Contains(req.ObjectKey, "..") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Object key does not belong to this listing"})
		return
	}

	if err := h.images.EnqueueImage(c.Request.Context(), listingID, req.ObjectKey); err != nil {
		log.Printf("ERROR enqueuing image processing for key %s, listing %s: %v", req.ObjectKey, listingID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to schedule image processing"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "Image upload confirmed, processing scheduled."})
}
