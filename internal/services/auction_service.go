package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"soomhub/market/internal/cache"
	"soomhub/market/internal/db"
	"soomhub/market/internal/models"
	"soomhub/market/internal/utils"
)

// IAuctionService manages direct bids on auction enabled listings.
type IAuctionService interface {
	PlaceBid(ctx context.Context, listingID, bidderID utils.SixID, amount models.Amount) (*models.AuctionHistory, error)
	FindAuctionByID(ctx context.Context, auctionID utils.SixID) (*models.AuctionHistory, error)
	ListAuctionHistory(ctx context.Context, listingID utils.SixID) ([]models.AuctionHistory, error)
	UpdateBid(ctx context.Context, auctionID, bidderID utils.SixID, amount models.Amount) (*models.AuctionHistory, error)
	DeleteBid(ctx context.Context, auctionID, actorID utils.SixID, isAdmin bool) error
	ValidateAuction(ctx context.Context, auctionID, validatorID utils.SixID, isAdmin bool) (*models.AuctionHistory, error)
}

type auctionService struct {
	db       *mongo.Database
	listings IListingService
	locker   cache.Locker
	now      func() time.Time
}

// NewAuctionService creates the bid ledger service. locker may be nil.
func NewAuctionService(db *mongo.Database, listings IListingService, locker cache.Locker) IAuctionService {
	return &auctionService{db: db, listings: listings, locker: locker, now: mongoNow}
}

func (s *auctionService) collection() *mongo.Collection {
	return s.db.Collection(db.AuctionHistoriesCollection)
}

// lockListing serializes bid writes on one listing so "beats the highest bid" holds.
func (s *auctionService) lockListing(ctx context.Context, listingID utils.SixID) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	unlock, err := s.locker.Lock(ctx, "listing-bids:"+listingID.String())
	if err != nil {
		if errors.Is(err, cache.ErrLockBusy) {
			return nil, ErrBidBusy
		}
		return nil, err
	}
	return func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			log.Printf("Warning: %v", err)
		}
	}, nil
}

// highestBid returns the highest live bid on a listing other than exclude, or nil.
func (s *auctionService) highestBid(ctx context.Context, listingID utils.SixID, exclude *utils.SixID) (*models.AuctionHistory, error) {
	filter := bson.M{"listing_id": listingID, "deleted": false}
	if exclude != nil {
		filter["_id"] = bson.M{"$ne": *exclude}
	}
	var top models.AuctionHistory
	err := s.collection().FindOne(ctx, filter, options.FindOne().SetSort(bson.D{{Key: "bid_amount", Value: -1}})).Decode(&top)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("error finding highest bid on listing %s: %w", listingID, err)
	}
	return &top, nil
}

func (s *auctionService) checkAmount(ctx context.Context, listing *models.Listing, amount models.Amount, exclude *utils.SixID) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: bid must be positive", ErrInvalidInput)
	}
	if err := amount.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if amount.LessThan(listing.MinimumBid) {
		return ErrBelowMinimumSoom
	}
	top, err := s.highestBid(ctx, listing.ID, exclude)
	if err != nil {
		return err
	}
	if top != nil && !amount.GreaterThan(top.BidAmount) {
		return ErrBidTooLow
	}
	return nil
}

// PlaceBid records a bid that reaches the minimum bid and beats the current highest one.
func (s *auctionService) PlaceBid(ctx context.Context, listingID, bidderID utils.SixID, amount models.Amount) (*models.AuctionHistory, error) {
	listing, err := s.listings.FindListingByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.IsDraft {
		return nil, ErrListingUnavailable
	}
	if !listing.AuctionEnabled {
		return nil, ErrAuctionDisabled
	}
	if listing.UserID == bidderID {
		return nil, ErrOwnListing
	}

	release, err := s.lockListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.checkAmount(ctx, listing, amount, nil); err != nil {
		return nil, err
	}

	now := s.now()
	var entry *models.AuctionHistory
	err = db.Try(ctx, func() error {
		entry = &models.AuctionHistory{
			ID:        utils.NewSixID(),
			ListingID: listingID,
			SellerID:  listing.UserID,
			BuyerID:   bidderID,
			BidAmount: amount,
			BidDate:   now,
			CreatedAt: now,
			UpdatedAt: now,
		}
		_, insertErr := s.collection().InsertOne(ctx, entry)
		return insertErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert bid on listing %s: %w", listingID, err)
	}
	return entry, nil
}

func (s *auctionService) FindAuctionByID(ctx context.Context, auctionID utils.SixID) (*models.AuctionHistory, error) {
	var entry models.AuctionHistory
	if err := s.collection().FindOne(ctx, bson.M{"_id": auctionID, "deleted": false}).Decode(&entry); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding auction entry %s: %w", auctionID, err)
	}
	return &entry, nil
}

// ListAuctionHistory returns the live entries of a listing, highest bid first.
func (s *auctionService) ListAuctionHistory(ctx context.Context, listingID utils.SixID) ([]models.AuctionHistory, error) {
	cursor, err := s.collection().Find(ctx,
		bson.M{"listing_id": listingID, "deleted": false},
		options.Find().SetSort(bson.D{{Key: "bid_amount", Value: -1}, {Key: "bid_date", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("error listing auction history of %s: %w", listingID, err)
	}
	defer cursor.Close(ctx)

	entries := []models.AuctionHistory{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("error decoding auction history: %w", err)
	}
	return entries, nil
}

// UpdateBid changes the amount of the bidder's own unvalidated bid.
func (s *auctionService) UpdateBid(ctx context.Context, auctionID, bidderID utils.SixID, amount models.Amount) (*models.AuctionHistory, error) {
	entry, err := s.FindAuctionByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if entry.BuyerID != bidderID {
		return nil, ErrForbidden
	}
	if entry.Validated {
		return nil, ErrAuctionAlreadyValidated
	}
	listing, err := s.listings.FindListingByID(ctx, entry.ListingID)
	if err != nil {
		return nil, err
	}

	release, err := s.lockListing(ctx, entry.ListingID)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.checkAmount(ctx, listing, amount, &auctionID); err != nil {
		return nil, err
	}

	var updated models.AuctionHistory
	err = s.collection().FindOneAndUpdate(ctx,
		bson.M{"_id": auctionID, "buyer_id": bidderID, "validated": false, "deleted": false},
		bson.M{"$set": bson.M{"bid_amount": amount, "updated_at": s.now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrAuctionAlreadyValidated
		}
		return nil, fmt.Errorf("failed to update bid %s: %w", auctionID, err)
	}
	return &updated, nil
}

// DeleteBid soft deletes an unvalidated bid. The bidder or an admin may do so.
func (s *auctionService) DeleteBid(ctx context.Context, auctionID, actorID utils.SixID, isAdmin bool) error {
	entry, err := s.FindAuctionByID(ctx, auctionID)
	if err != nil {
		return err
	}
	if !isAdmin && entry.BuyerID != actorID {
		return ErrForbidden
	}
	if entry.Validated {
		return ErrAuctionAlreadyValidated
	}
	res, err := s.collection().UpdateOne(ctx,
		bson.M{"_id": auctionID, "validated": false, "deleted": false},
		bson.M{"$set": bson.M{"deleted": true, "updated_at": s.now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to delete bid %s: %w", auctionID, err)
	}
	if res.MatchedCount == 0 {
		return ErrAuctionAlreadyValidated
	}
	return nil
}

// ValidateAuction confirms a bid as a sale. Only the seller or an admin may, and only once.
func (s *auctionService) ValidateAuction(ctx context.Context, auctionID, validatorID utils.SixID, isAdmin bool) (*models.AuctionHistory, error) {
	entry, err := s.FindAuctionByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && entry.SellerID != validatorID {
		return nil, ErrForbidden
	}
	now := s.now()
	if err := entry.MarkValidated(validatorID, now); err != nil {
		return nil, err
	}

	var updated models.AuctionHistory
	err = s.collection().FindOneAndUpdate(ctx,
		bson.M{"_id": auctionID, "validated": false, "deleted": false},
		bson.M{"$set": bson.M{
			"validated":    true,
			"validated_at": now,
			"validator_id": validatorID,
			"updated_at":   now,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrAuctionAlreadyValidated
		}
		return nil, fmt.Errorf("failed to validate auction entry %s: %w", auctionID, err)
	}
	return &updated, nil
}
