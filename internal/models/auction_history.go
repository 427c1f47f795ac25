package models

import (
	"errors"
	"fmt"
	"time"

	"soomhub/market/internal/utils"
)

var ErrAuctionAlreadyValidated = errors.New("auction entry has already been validated")

// AuctionHistory is the ledger entry for a bid, and for a confirmed sale once validated.
type AuctionHistory struct {
	ID           utils.SixID  `bson:"_id,omitempty" json:"id,omitempty"`
	ListingID    utils.SixID  `bson:"listing_id" json:"listing_id"`
	SubmissionID *utils.SixID `bson:"submission_id,omitempty" json:"submission_id,omitempty"` // Set when produced by a validated SOOM
	SellerID     utils.SixID  `bson:"seller_id" json:"seller_id"`
	BuyerID      utils.SixID  `bson:"buyer_id" json:"buyer_id"`
	BidAmount    Amount       `bson:"bid_amount" json:"bid_amount"`
	BidDate      time.Time    `bson:"bid_date" json:"bid_date"`
	Validated    bool         `bson:"validated" json:"validated"`
	ValidatedAt  *time.Time   `bson:"validated_at,omitempty" json:"validated_at,omitempty"`
	ValidatorID  *utils.SixID `bson:"validator_id,omitempty" json:"validator_id,omitempty"`
	CreatedAt    time.Time    `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `bson:"updated_at" json:"updated_at"`
	Deleted      bool         `bson:"deleted" json:"-"`
}

// MarkValidated confirms the entry. validated_at never precedes bid_date.
func (a *AuctionHistory) MarkValidated(validatorID utils.SixID, at time.Time) error {
	if a.Validated {
		return ErrAuctionAlreadyValidated
	}
	if at.Before(a.BidDate) {
		return fmt.Errorf("validation time %s precedes bid date %s", at.Format(time.RFC3339), a.BidDate.Format(time.RFC3339))
	}
	a.Validated = true
	a.ValidatedAt = &at
	a.ValidatorID = &validatorID
	a.UpdatedAt = at
	return nil
}

// CheckInvariant verifies that validated_at is present exactly when validated is set
// and is not earlier than bid_date.
func (a *AuctionHistory) CheckInvariant() error {
	if !a.Validated {
		if a.ValidatedAt != nil {
			return errors.New("validated_at set on an unvalidated entry")
		}
		return nil
	}
	if a.ValidatedAt == nil {
		return errors.New("validated entry has no validated_at")
	}
	if a.ValidatedAt.Before(a.BidDate) {
		return errors.New("validated_at precedes bid_date")
	}
	return nil
}
