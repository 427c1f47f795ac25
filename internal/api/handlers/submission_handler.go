package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"soomhub/market/internal/models"
	"soomhub/market/internal/services"
	"soomhub/market/internal/utils"
)

// SubmissionHandler serves SOOMs: offers, counter offers, seller responses and sale validation.
type SubmissionHandler struct {
	submissionService services.ISubmissionService
	listingService    services.IListingService
}

func NewSubmissionHandler(submissionService services.ISubmissionService, listingService services.IListingService) *SubmissionHandler {
	return &SubmissionHandler{submissionService: submissionService, listingService: listingService}
}

type SubmissionRequest struct {
	Amount *models.Amount `json:"amount" binding:"required"`
}

type DecisionRequest struct {
	Response models.ResponseDecision `json:"response" binding:"required,oneof=accepted rejected"`
}

type ValidationResult struct {
	Submission *models.Submission     `json:"submission"`
	Auction    *models.AuctionHistory `json:"auction_history"`
}

func scopeFromQuery(c *gin.Context) (models.SubmissionScope, bool) {
	scope := models.SubmissionScope(c.Query("scope"))
	if !scope.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid scope"})
		return "", false
	}
	return scope, true
}

// loadForParty fetches a submission the caller is a party to, or any submission for an admin.
func (h *SubmissionHandler) loadForParty(c *gin.Context) (*models.Submission, bool) {
	userID, ok := currentUser(c)
	if !ok {
		return nil, false
	}
	subID, ok := paramID(c, "id")
	if !ok {
		return nil, false
	}
	sub, err := h.submissionService.FindSubmissionByID(c.Request.Context(), subID)
	if err != nil {
		respondError(c, err, "Failed to retrieve submission")
		return nil, false
	}
	if !sub.IsParty(userID) && !isAdmin(c) {
		respondError(c, services.ErrForbidden, "")
		return nil, false
	}
	return sub, true
}

// CreateSubmission handles POST /v1/listings/:id/submissions.
func (h *SubmissionHandler) CreateSubmission(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	listingID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req SubmissionRequest
	if !bindJSON(c, &req) {
		return
	}
	sub, err := h.submissionService.CreateSubmission(c.Request.Context(), listingID, userID, *req.Amount)
	if err != nil {
		respondError(c, err, "Failed to create submission")
		return
	}
	c.JSON(http.StatusCreated, sub)
}

// ListListingSubmissions handles GET /v1/listings/:id/submissions for the seller.
func (h *SubmissionHandler) ListListingSubmissions(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	listingID, ok := paramID(c, "id")
	if !ok {
		return
	}
	scope, ok := scopeFromQuery(c)
	if !ok {
		return
	}
	listing, err := h.listingService.FindListingByID(c.Request.Context(), listingID)
	if err != nil {
		respondError(c, err, "Failed to retrieve listing")
		return
	}
	if listing.UserID != userID && !isAdmin(c) {
		respondError(c, services.ErrForbidden, "")
		return
	}

	subs, next, err := h.submissionService.ListSubmissions(c.Request.Context(),
		services.SubmissionQuery{ListingID: &listingID, Scope: scope}, pageFromQuery(c))
	if err != nil {
		respondError(c, err, "Failed to list submissions")
		return
	}
	respondPage(c, subs, next)
}

// ListMySubmissions handles GET /v1/submissions/mine for the buyer.
func (h *SubmissionHandler) ListMySubmissions(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	scope, ok := scopeFromQuery(c)
	if !ok {
		return
	}
	subs, next, err := h.submissionService.ListSubmissions(c.Request.Context(),
		services.SubmissionQuery{BuyerID: &userID, Scope: scope}, pageFromQuery(c))
	if err != nil {
		respondError(c, err, "Failed to list submissions")
		return
	}
	respondPage(c, subs, next)
}

// AdminListSubmissions handles GET /v1/admin/submissions?scope=&listing_id=.
func (h *SubmissionHandler) AdminListSubmissions(c *gin.Context) {
	scope, ok := scopeFromQuery(c)
	if !ok {
		return
	}
	q := services.SubmissionQuery{Scope: scope}
	if s := c.Query("listing_id"); s != "" {
		listingID, err := utils.ParseSixID(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing_id format"})
			return
		}
		q.ListingID = &listingID
	}
	subs, next, err := h.submissionService.ListSubmissions(c.Request.Context(), q, pageFromQuery(c))
	if err != nil {
		respondError(c, err, "Failed to list submissions")
		return
	}
	respondPage(c, subs, next)
}

func (h *SubmissionHandler) GetSubmission(c *gin.Context) {
	sub, ok := h.loadForParty(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sub)
}

// RespondToSubmission handles POST /v1/submissions/:id/respond for the seller.
func (h *SubmissionHandler) RespondToSubmission(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	subID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req DecisionRequest
	if !bindJSON(c, &req) {
		return
	}
	sub, resp, err := h.submissionService.RespondToSubmission(c.Request.Context(), subID, userID, req.Response)
	if err != nil {
		respondError(c, err, "Failed to respond to submission")
		return
	}
	c.JSON(http.StatusOK, gin.H{"submission": sub, "response": resp})
}

func (h *SubmissionHandler) ListResponses(c *gin.Context) {
	sub, ok := h.loadForParty(c)
	if !ok {
		return
	}
	responses, err := h.submissionService.ListResponses(c.Request.Context(), sub.ID)
	if err != nil {
		respondError(c, err, "Failed to list responses")
		return
	}
	if responses == nil {
		responses = []models.SubmissionResponse{}
	}
	c.JSON(http.StatusOK, gin.H{"data": responses})
}

// CounterOffer handles POST /v1/submissions/:id/negotiations.
func (h *SubmissionHandler) CounterOffer(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	subID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req SubmissionRequest
	if !bindJSON(c, &req) {
		return
	}
	neg, err := h.submissionService.CounterOffer(c.Request.Context(), subID, userID, *req.Amount)
	if err != nil {
		respondError(c, err, "Failed to send counter offer")
		return
	}
	c.JSON(http.StatusCreated, neg)
}

func (h *SubmissionHandler) ListNegotiations(c *gin.Context) {
	sub, ok := h.loadForParty(c)
	if !ok {
		return
	}
	negs, err := h.submissionService.ListNegotiations(c.Request.Context(), sub.ID)
	if err != nil {
		respondError(c, err, "Failed to list counter offers")
		return
	}
	if negs == nil {
		negs = []models.SoomNegotiation{}
	}
	c.JSON(http.StatusOK, gin.H{"data": negs})
}

// RespondToNegotiation handles POST /v1/negotiations/:id/respond for the receiver.
func (h *SubmissionHandler) RespondToNegotiation(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	negID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req DecisionRequest
	if !bindJSON(c, &req) {
		return
	}
	neg, err := h.submissionService.RespondToNegotiation(c.Request.Context(), negID, userID, req.Response)
	if err != nil {
		respondError(c, err, "Failed to respond to counter offer")
		return
	}
	c.JSON(http.StatusOK, neg)
}

// ValidateSale handles POST /v1/submissions/:id/validate for the seller or an admin.
// An expired window answers 410 and a repeated validation 409.
func (h *SubmissionHandler) ValidateSale(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	subID, ok := paramID(c, "id")
	if !ok {
		return
	}
	sub, entry, err := h.submissionService.ValidateSale(c.Request.Context(), subID, userID, isAdmin(c))
	if err != nil {
		respondError(c, err, "Failed to validate sale")
		return
	}
	c.JSON(http.StatusOK, ValidationResult{Submission: sub, Auction: entry})
}
