package services

import (
	"errors"

	"go.mongodb.org/mongo-driver/mongo"

	"soomhub/market/internal/models"
)

var (
	// ErrNotFound aliases the driver's sentinel so callers can use either.
	ErrNotFound = mongo.ErrNoDocuments

	ErrForbidden            = errors.New("not allowed to act on this resource")
	ErrInvalidInput         = errors.New("invalid input")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrEmailTaken           = errors.New("email is already registered")
	ErrCaptchaFailed        = errors.New("captcha verification failed")
	ErrListingUnavailable   = errors.New("listing is not open for offers")
	ErrOwnListing           = errors.New("sellers cannot bid on their own listing")
	ErrSubmissionNotPending = errors.New("submission is no longer pending")
	ErrOpenNegotiation      = errors.New("a counter offer is already awaiting a response")
	ErrNegotiationClosed    = errors.New("counter offer has already been answered")
	ErrAuctionDisabled      = errors.New("listing does not accept auction bids")
	ErrBidTooLow            = errors.New("bid does not beat the current highest bid")
	ErrPromoUnavailable     = errors.New("promo code is not valid")
	ErrPromoCodeTaken       = errors.New("promo code already exists")
	ErrCardTypeTaken        = errors.New("card type code already exists")
	ErrCardRejected         = errors.New("card number is not valid")
	ErrCardExpired          = errors.New("card has expired")
	ErrValidationBusy       = errors.New("sale validation is already in progress")
	ErrBidBusy              = errors.New("another bid on this listing is being recorded")

	ErrAlreadyValidated        = models.ErrSaleAlreadyValidated
	ErrValidationExpired       = models.ErrValidationExpired
	ErrSubmissionNotAccepted   = models.ErrSubmissionNotAccepted
	ErrBelowMinimumSoom        = models.ErrBelowMinimumSoom
	ErrAuctionAlreadyValidated = models.ErrAuctionAlreadyValidated
)
