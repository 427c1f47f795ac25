package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"soomhub/market/internal/api/middleware"
	"soomhub/market/internal/auth"
	"soomhub/market/internal/services"
	"soomhub/market/internal/utils"
)

// errorStatuses maps service sentinels to HTTP statuses. First match wins.
var errorStatuses = []struct {
	status int
	errs   []error
}{
	{http.StatusNotFound, []error{services.ErrNotFound}},
	{http.StatusForbidden, []error{services.ErrForbidden, services.ErrOwnListing}},
	{http.StatusGone, []error{services.ErrValidationExpired}},
	{http.StatusUnauthorized, []error{services.ErrInvalidCredentials, services.ErrInvalidToken}},
	{http.StatusConflict, []error{
		services.ErrAlreadyValidated,
		services.ErrAuctionAlreadyValidated,
		services.ErrSubmissionNotPending,
		services.ErrSubmissionNotAccepted,
		services.ErrOpenNegotiation,
		services.ErrNegotiationClosed,
		services.ErrValidationBusy,
		services.ErrBidBusy,
		services.ErrListingUnavailable,
		services.ErrAuctionDisabled,
		services.ErrBidTooLow,
		services.ErrPromoUnavailable,
		services.ErrPromoCodeTaken,
		services.ErrCardTypeTaken,
		services.ErrEmailTaken,
	}},
	{http.StatusBadRequest, []error{
		services.ErrInvalidInput,
		services.ErrBelowMinimumSoom,
		services.ErrCardRejected,
		services.ErrCardExpired,
		services.ErrCaptchaFailed,
		auth.ErrWeakPassword,
	}},
}

// StatusForError returns the HTTP status a service error maps to.
func StatusForError(err error) int {
	for _, row := range errorStatuses {
		if lo.ContainsBy(row.errs, func(target error) bool { return errors.Is(err, target) }) {
			return row.status
		}
	}
	return http.StatusInternalServerError
}

// respondError writes {"error": ...}. Internal errors are logged and replaced by fallback.
func respondError(c *gin.Context, err error, fallback string) {
	status := StatusForError(err)
	switch status {
	case http.StatusInternalServerError:
		_ = c.Error(err)
		log.Printf("ERROR %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(status, gin.H{"error": fallback})
	case http.StatusNotFound:
		c.JSON(status, gin.H{"error": "Not found"})
	default:
		c.JSON(status, gin.H{"error": err.Error()})
	}
}

// paramID parses a SixID path parameter, answering 400 when it is malformed.
func paramID(c *gin.Context, name string) (utils.SixID, bool) {
	id, err := utils.ParseSixID(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name + " format"})
		return utils.SixID{}, false
	}
	return id, true
}

// currentUser returns the authenticated caller. Routes using it sit behind AuthMiddleware.
func currentUser(c *gin.Context) (utils.SixID, bool) {
	id, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
	}
	return id, ok
}

func pageFromQuery(c *gin.Context) services.Page {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(services.DefaultPageSize)))
	if err != nil {
		limit = services.DefaultPageSize
	}
	return services.Page{Limit: limit, Cursor: c.Query("cursor")}
}

// respondPage writes a list page with its continuation cursor.
func respondPage[T any](c *gin.Context, items []T, nextCursor string) {
	if items == nil {
		items = []T{}
	}
	c.JSON(http.StatusOK, gin.H{
		"data":        items,
		"next_cursor": nextCursor,
	})
}

func isAdmin(c *gin.Context) bool {
	return middleware.IsAdmin(c)
}
