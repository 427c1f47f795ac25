package models

import (
	"errors"
	"time"

	"soomhub/market/internal/utils"
)

// ValidationWindow is how long after acceptance a sale may still be validated.
const ValidationWindow = 5 * 24 * time.Hour

// SubmissionStatus is the seller's decision state of a SOOM.
type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "pending"
	SubmissionAccepted SubmissionStatus = "accepted"
	SubmissionRejected SubmissionStatus = "rejected"
)

var (
	ErrSubmissionNotAccepted = errors.New("submission has not been accepted")
	ErrSaleAlreadyValidated  = errors.New("sale has already been validated")
	ErrValidationExpired     = errors.New("validation window has expired")
	ErrBelowMinimumSoom      = errors.New("amount is below the minimum soom")
)

// Submission is a buyer's negotiated offer (SOOM) on a listing.
type Submission struct {
	ID                utils.SixID      `bson:"_id,omitempty" json:"id,omitempty"`
	ListingID         utils.SixID      `bson:"listing_id" json:"listing_id"`
	UserID            utils.SixID      `bson:"user_id" json:"user_id"`     // Buyer
	SellerID          utils.SixID      `bson:"seller_id" json:"seller_id"` // Denormalized from the listing
	Amount            Amount           `bson:"amount" json:"amount"`
	MinSoom           Amount           `bson:"min_soom" json:"min_soom"` // Listing minimum bid at creation time
	Status            SubmissionStatus `bson:"status" json:"status"`
	AcceptanceDate    *time.Time       `bson:"acceptance_date,omitempty" json:"acceptance_date,omitempty"`
	SaleValidated     bool             `bson:"sale_validated" json:"sale_validated"`
	SaleValidatedAt   *time.Time       `bson:"sale_validated_at,omitempty" json:"sale_validated_at,omitempty"`
	ValidatorID       *utils.SixID     `bson:"validator_id,omitempty" json:"validator_id,omitempty"`
	ReminderSentAt    *time.Time       `bson:"reminder_sent_at,omitempty" json:"-"`
	// OpenNegotiationID is set while a counter offer awaits an answer.
	OpenNegotiationID *utils.SixID     `bson:"open_negotiation_id,omitempty" json:"open_negotiation_id,omitempty"`
	CreatedAt         time.Time        `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time        `bson:"updated_at" json:"updated_at"`
}

// ValidationDeadline is acceptance_date plus the validation window.
// ok is false when the submission was never accepted.
func (s *Submission) ValidationDeadline() (deadline time.Time, ok bool) {
	if s.AcceptanceDate == nil {
		return time.Time{}, false
	}
	return s.AcceptanceDate.Add(ValidationWindow), true
}

// IsValidationExpired is true once now is strictly after the deadline.
func (s *Submission) IsValidationExpired(now time.Time) bool {
	deadline, ok := s.ValidationDeadline()
	if !ok {
		return false
	}
	return now.After(deadline)
}

// CanBeValidated reports whether the sale may be confirmed at now.
func (s *Submission) CanBeValidated(now time.Time) bool {
	return s.ValidationBlocker(now) == nil
}

// ValidationBlocker returns the reason the sale cannot be validated at now, or nil.
func (s *Submission) ValidationBlocker(now time.Time) error {
	switch {
	case s.SaleValidated:
		return ErrSaleAlreadyValidated
	case s.Status != SubmissionAccepted || s.AcceptanceDate == nil:
		return ErrSubmissionNotAccepted
	case s.IsValidationExpired(now):
		return ErrValidationExpired
	}
	return nil
}

// MeetsMinimum reports whether amount satisfies the submission's minimum soom.
func (s *Submission) MeetsMinimum(amount Amount) bool {
	return !amount.LessThan(s.MinSoom)
}

// IsParty is true for the buyer and the seller.
func (s *Submission) IsParty(userID utils.SixID) bool {
	return userID == s.UserID || userID == s.SellerID
}

// Counterparty returns the other side of the negotiation for a party.
func (s *Submission) Counterparty(userID utils.SixID) (utils.SixID, bool) {
	switch userID {
	case s.UserID:
		return s.SellerID, true
	case s.SellerID:
		return s.UserID, true
	}
	return utils.SixID{}, false
}

// SubmissionScope names a predefined subset of submissions.
type SubmissionScope string

const (
	ScopeAll               SubmissionScope = ""
	ScopePending           SubmissionScope = "pending"
	ScopeAccepted          SubmissionScope = "accepted"
	ScopeRejected          SubmissionScope = "rejected"
	ScopeValidated         SubmissionScope = "validated"
	ScopePendingValidation SubmissionScope = "pending_validation"
)

func (sc SubmissionScope) Valid() bool {
	switch sc {
	case ScopeAll, ScopePending, ScopeAccepted, ScopeRejected, ScopeValidated, ScopePendingValidation:
		return true
	}
	return false
}

// Matches evaluates the scope against a single submission in memory.
func (sc SubmissionScope) Matches(s *Submission) bool {
	switch sc {
	case ScopeAll:
		return true
	case ScopePending:
		return s.Status == SubmissionPending
	case ScopeAccepted:
		return s.Status == SubmissionAccepted
	case ScopeRejected:
		return s.Status == SubmissionRejected
	case ScopeValidated:
		return s.SaleValidated
	case ScopePendingValidation:
		return s.Status == SubmissionAccepted && !s.SaleValidated
	}
	return false
}

// ResponseDecision is the seller's answer to a submission or a counter offer.
type ResponseDecision string

const (
	DecisionAccepted ResponseDecision = "accepted"
	DecisionRejected ResponseDecision = "rejected"
)

func (d ResponseDecision) Valid() bool {
	return d == DecisionAccepted || d == DecisionRejected
}

// SubmissionStatus maps a decision to the submission status it produces.
func (d ResponseDecision) SubmissionStatus() SubmissionStatus {
	if d == DecisionAccepted {
		return SubmissionAccepted
	}
	return SubmissionRejected
}

// SubmissionResponse records the seller's decision on a submission.
type SubmissionResponse struct {
	ID           utils.SixID      `bson:"_id,omitempty" json:"id,omitempty"`
	SubmissionID utils.SixID      `bson:"submission_id" json:"submission_id"`
	BuyerID      utils.SixID      `bson:"buyer_id" json:"buyer_id"`
	ResponderID  utils.SixID      `bson:"responder_id" json:"responder_id"`
	Response     ResponseDecision `bson:"response" json:"response"`
	ResponseDate time.Time        `bson:"response_date" json:"response_date"`
}

// SoomNegotiation is one counter offer round on a submission.
type SoomNegotiation struct {
	ID           utils.SixID       `bson:"_id,omitempty" json:"id,omitempty"`
	SubmissionID utils.SixID       `bson:"submission_id" json:"submission_id"`
	SenderID     utils.SixID       `bson:"sender_id" json:"sender_id"`
	ReceiverID   utils.SixID       `bson:"receiver_id" json:"receiver_id"`
	OfferAmount  Amount            `bson:"offer_amount" json:"offer_amount"`
	Response     *ResponseDecision `bson:"response" json:"response"` // nil until answered
	RespondedAt  *time.Time        `bson:"responded_at,omitempty" json:"responded_at,omitempty"`
	CreatedAt    time.Time         `bson:"created_at" json:"created_at"`
}

// IsOpen is true while the receiver has not answered.
func (n *SoomNegotiation) IsOpen() bool {
	return n.Response == nil
}
