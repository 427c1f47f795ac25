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

// SubmissionQuery selects submissions for list operations. Zero fields do not filter.
type SubmissionQuery struct {
	ListingID *utils.SixID
	BuyerID   *utils.SixID
	SellerID  *utils.SixID
	Scope     models.SubmissionScope
}

// ISubmissionService covers the SOOM lifecycle: offer, counter offers, seller response and sale validation.
type ISubmissionService interface {
	CreateSubmission(ctx context.Context, listingID, buyerID utils.SixID, amount models.Amount) (*models.Submission, error)
	FindSubmissionByID(ctx context.Context, submissionID utils.SixID) (*models.Submission, error)
	ListSubmissions(ctx context.Context, q SubmissionQuery, page Page) ([]models.Submission, string, error)
	RespondToSubmission(ctx context.Context, submissionID, responderID utils.SixID, decision models.ResponseDecision) (*models.Submission, *models.SubmissionResponse, error)
	ListResponses(ctx context.Context, submissionID utils.SixID) ([]models.SubmissionResponse, error)
	CounterOffer(ctx context.Context, submissionID, senderID utils.SixID, amount models.Amount) (*models.SoomNegotiation, error)
	FindNegotiationByID(ctx context.Context, negotiationID utils.SixID) (*models.SoomNegotiation, error)
	RespondToNegotiation(ctx context.Context, negotiationID, responderID utils.SixID, decision models.ResponseDecision) (*models.SoomNegotiation, error)
	ListNegotiations(ctx context.Context, submissionID utils.SixID) ([]models.SoomNegotiation, error)
	ValidateSale(ctx context.Context, submissionID, validatorID utils.SixID, isAdmin bool) (*models.Submission, *models.AuctionHistory, error)
	FindDueForReminder(ctx context.Context, now time.Time, lead time.Duration) ([]models.Submission, error)
	MarkReminderSent(ctx context.Context, submissionID utils.SixID, at time.Time) (bool, error)
}

type submissionService struct {
	db       *mongo.Database
	listings IListingService
	locker   cache.Locker
	notifier INotifier
	now      func() time.Time
}

// NewSubmissionService wires the SOOM lifecycle. locker and notifier may be nil.
func NewSubmissionService(db *mongo.Database, listings IListingService, locker cache.Locker, notifier INotifier) ISubmissionService {
	return &submissionService{
		db:       db,
		listings: listings,
		locker:   locker,
		notifier: notifier,
		now:      mongoNow,
	}
}

func (s *submissionService) submissions() *mongo.Collection {
	return s.db.Collection(db.SubmissionsCollection)
}

func (s *submissionService) negotiations() *mongo.Collection {
	return s.db.Collection(db.NegotiationsCollection)
}

// ScopeFilter translates a scope into its Mongo filter.
func ScopeFilter(scope models.SubmissionScope) (bson.M, error) {
	switch scope {
	case models.ScopeAll:
		return bson.M{}, nil
	case models.ScopePending:
		return bson.M{"status": models.SubmissionPending}, nil
	case models.ScopeAccepted:
		return bson.M{"status": models.SubmissionAccepted}, nil
	case models.ScopeRejected:
		return bson.M{"status": models.SubmissionRejected}, nil
	case models.ScopeValidated:
		return bson.M{"sale_validated": true}, nil
	case models.ScopePendingValidation:
		return bson.M{"status": models.SubmissionAccepted, "sale_validated": false}, nil
	}
	return nil, fmt.Errorf("%w: unknown scope %q", ErrInvalidInput, scope)
}

// validatableFilter repeats every CanBeValidated condition so the write itself is the guard.
func validatableFilter(submissionID utils.SixID, now time.Time) bson.M {
	return bson.M{
		"_id":             submissionID,
		"status":          models.SubmissionAccepted,
		"sale_validated":  false,
		"acceptance_date": bson.M{"$gte": now.Add(-models.ValidationWindow)},
	}
}

// CreateSubmission records a buyer's offer. The listing must be published, not the buyer's own,
// and the amount must reach the listing's minimum bid, which is frozen as min_soom.
func (s *submissionService) CreateSubmission(ctx context.Context, listingID, buyerID utils.SixID, amount models.Amount) (*models.Submission, error) {
	listing, err := s.listings.FindListingByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.IsDraft {
		return nil, ErrListingUnavailable
	}
	if listing.UserID == buyerID {
		return nil, ErrOwnListing
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if err := amount.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if amount.LessThan(listing.MinimumBid) {
		return nil, ErrBelowMinimumSoom
	}

	now := s.now()
	var sub *models.Submission
	err = db.Try(ctx, func() error {
		sub = &models.Submission{
			ID:        utils.NewSixID(),
			ListingID: listingID,
			UserID:    buyerID,
			SellerID:  listing.UserID,
			Amount:    amount,
			MinSoom:   listing.MinimumBid,
			Status:    models.SubmissionPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		_, insertErr := s.submissions().InsertOne(ctx, sub)
		return insertErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert submission on listing %s: %w", listingID, err)
	}

	if s.notifier != nil {
		s.notifier.SubmissionReceived(ctx, sub, listing)
	}
	return sub, nil
}

func (s *submissionService) FindSubmissionByID(ctx context.Context, submissionID utils.SixID) (*models.Submission, error) {
	var sub models.Submission
	if err := s.submissions().FindOne(ctx, bson.M{"_id": submissionID}).Decode(&sub); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding submission %s: %w", submissionID, err)
	}
	return &sub, nil
}

func (s *submissionService) ListSubmissions(ctx context.Context, q SubmissionQuery, page Page) ([]models.Submission, string, error) {
	filter, err := ScopeFilter(q.Scope)
	if err != nil {
		return nil, "", err
	}
	if q.ListingID != nil {
		filter["listing_id"] = *q.ListingID
	}
	if q.BuyerID != nil {
		filter["user_id"] = *q.BuyerID
	}
	if q.SellerID != nil {
		filter["seller_id"] = *q.SellerID
	}
	filter = page.apply(filter)

	cursor, err := s.submissions().Find(ctx, filter, page.findOptions())
	if err != nil {
		return nil, "", fmt.Errorf("error listing submissions: %w", err)
	}
	defer cursor.Close(ctx)

	subs := []models.Submission{}
	if err := cursor.All(ctx, &subs); err != nil {
		return nil, "", fmt.Errorf("error decoding submissions: %w", err)
	}
	subs, next := trimPage(subs, page, func(sub models.Submission) (time.Time, utils.SixID) { return sub.CreatedAt, sub.ID })
	return subs, next, nil
}

// RespondToSubmission lets the seller accept or reject a pending submission.
// Acceptance stamps acceptance_date, which opens the validation window.
func (s *submissionService) RespondToSubmission(ctx context.Context, submissionID, responderID utils.SixID, decision models.ResponseDecision) (*models.Submission, *models.SubmissionResponse, error) {
	if !decision.Valid() {
		return nil, nil, fmt.Errorf("%w: unknown response %q", ErrInvalidInput, decision)
	}
	current, err := s.FindSubmissionByID(ctx, submissionID)
	if err != nil {
		return nil, nil, err
	}
	if current.SellerID != responderID {
		return nil, nil, ErrForbidden
	}
	if current.Status != models.SubmissionPending {
		return nil, nil, ErrSubmissionNotPending
	}

	now := s.now()
	set := bson.M{"status": decision.SubmissionStatus(), "updated_at": now}
	if decision == models.DecisionAccepted {
		set["acceptance_date"] = now
	}

	var updated models.Submission
	err = s.submissions().FindOneAndUpdate(ctx,
		bson.M{"_id": submissionID, "status": models.SubmissionPending},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil, ErrSubmissionNotPending
		}
		return nil, nil, fmt.Errorf("failed to respond to submission %s: %w", submissionID, err)
	}

	var resp *models.SubmissionResponse
	err = db.Try(ctx, func() error {
		resp = &models.SubmissionResponse{
			ID:           utils.NewSixID(),
			SubmissionID: submissionID,
			BuyerID:      updated.UserID,
			ResponderID:  responderID,
			Response:     decision,
			ResponseDate: now,
		}
		_, insertErr := s.db.Collection(db.SubmissionResponsesCollection).InsertOne(ctx, resp)
		return insertErr
	})
	if err != nil {
		log.Printf("CRITICAL: submission %s moved to %s but its response record failed: %v", submissionID, updated.Status, err)
		return nil, nil, fmt.Errorf("failed to record response to submission %s: %w", submissionID, err)
	}

	if s.notifier != nil {
		if listing, lerr := s.listings.FindListingByID(ctx, updated.ListingID); lerr == nil {
			s.notifier.SubmissionResponded(ctx, &updated, listing, decision)
		} else {
			log.Printf("Warning: not notifying buyer of submission %s: %v", submissionID, lerr)
		}
	}
	return &updated, resp, nil
}

func (s *submissionService) ListResponses(ctx context.Context, submissionID utils.SixID) ([]models.SubmissionResponse, error) {
	cursor, err := s.db.Collection(db.SubmissionResponsesCollection).Find(ctx,
		bson.M{"submission_id": submissionID},
		options.Find().SetSort(bson.D{{Key: "response_date", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("error listing responses of submission %s: %w", submissionID, err)
	}
	defer cursor.Close(ctx)

	responses := []models.SubmissionResponse{}
	if err := cursor.All(ctx, &responses); err != nil {
		return nil, fmt.Errorf("error decoding responses: %w", err)
	}
	return responses, nil
}

// CounterOffer opens a negotiation round from one party of a pending submission to the other.
// Only one round may be open at a time: the round is inserted, then claims the submission's
// open_negotiation_id with a conditional update, and is removed again if the claim fails.
func (s *submissionService) CounterOffer(ctx context.Context, submissionID, senderID utils.SixID, amount models.Amount) (*models.SoomNegotiation, error) {
	sub, err := s.FindSubmissionByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	receiverID, ok := sub.Counterparty(senderID)
	if !ok {
		return nil, ErrForbidden
	}
	if sub.Status != models.SubmissionPending {
		return nil, ErrSubmissionNotPending
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: offer amount must be positive", ErrInvalidInput)
	}
	if err := amount.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !sub.MeetsMinimum(amount) {
		return nil, ErrBelowMinimumSoom
	}

	now := s.now()
	var neg *models.SoomNegotiation
	err = db.Try(ctx, func() error {
		neg = &models.SoomNegotiation{
			ID:           utils.NewSixID(),
			SubmissionID: submissionID,
			SenderID:     senderID,
			ReceiverID:   receiverID,
			OfferAmount:  amount,
			CreatedAt:    now,
		}
		_, insertErr := s.negotiations().InsertOne(ctx, neg)
		return insertErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert negotiation on submission %s: %w", submissionID, err)
	}

	res, err := s.submissions().UpdateOne(ctx,
		bson.M{"_id": submissionID, "status": models.SubmissionPending, "open_negotiation_id": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"open_negotiation_id": neg.ID, "updated_at": now}},
	)
	if err != nil || res.MatchedCount == 0 {
		s.discardNegotiation(ctx, neg.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to open negotiation on submission %s: %w", submissionID, err)
		}
		latest, ferr := s.FindSubmissionByID(ctx, submissionID)
		if ferr != nil {
			return nil, ferr
		}
		if latest.Status != models.SubmissionPending {
			return nil, ErrSubmissionNotPending
		}
		return nil, ErrOpenNegotiation
	}

	if s.notifier != nil {
		if listing, lerr := s.listings.FindListingByID(ctx, sub.ListingID); lerr == nil {
			s.notifier.CounterOfferReceived(ctx, neg, listing)
		} else {
			log.Printf("Warning: not notifying receiver of negotiation %s: %v", neg.ID, lerr)
		}
	}
	return neg, nil
}

// discardNegotiation removes a round that lost the race for the submission's open slot.
func (s *submissionService) discardNegotiation(ctx context.Context, negotiationID utils.SixID) {
	if _, err := s.negotiations().DeleteOne(context.WithoutCancel(ctx), bson.M{"_id": negotiationID}); err != nil {
		log.Printf("ERROR removing orphaned negotiation %s: %v", negotiationID, err)
	}
}

func (s *submissionService) FindNegotiationByID(ctx context.Context, negotiationID utils.SixID) (*models.SoomNegotiation, error) {
	var neg models.SoomNegotiation
	if err := s.negotiations().FindOne(ctx, bson.M{"_id": negotiationID}).Decode(&neg); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding negotiation %s: %w", negotiationID, err)
	}
	return &neg, nil
}

// RespondToNegotiation answers an open round. Accepting moves the submission amount to the offer;
// the submission itself stays pending until the seller responds to it.
func (s *submissionService) RespondToNegotiation(ctx context.Context, negotiationID, responderID utils.SixID, decision models.ResponseDecision) (*models.SoomNegotiation, error) {
	if !decision.Valid() {
		return nil, fmt.Errorf("%w: unknown response %q", ErrInvalidInput, decision)
	}
	neg, err := s.FindNegotiationByID(ctx, negotiationID)
	if err != nil {
		return nil, err
	}
	if neg.ReceiverID != responderID {
		return nil, ErrForbidden
	}
	if !neg.IsOpen() {
		return nil, ErrNegotiationClosed
	}
	sub, err := s.FindSubmissionByID(ctx, neg.SubmissionID)
	if err != nil {
		return nil, err
	}
	if sub.Status != models.SubmissionPending {
		return nil, ErrSubmissionNotPending
	}

	now := s.now()
	var answered models.SoomNegotiation
	err = s.negotiations().FindOneAndUpdate(ctx,
		bson.M{"_id": negotiationID, "response": nil},
		bson.M{"$set": bson.M{"response": decision, "responded_at": now}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&answered)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNegotiationClosed
		}
		return nil, fmt.Errorf("failed to answer negotiation %s: %w", negotiationID, err)
	}

	update := bson.M{"$unset": bson.M{"open_negotiation_id": ""}, "$set": bson.M{"updated_at": now}}
	if decision == models.DecisionAccepted {
		update["$set"] = bson.M{"amount": answered.OfferAmount, "updated_at": now}
	}
	res, err := s.submissions().UpdateOne(ctx,
		bson.M{"_id": neg.SubmissionID, "status": models.SubmissionPending, "open_negotiation_id": negotiationID},
		update,
	)
	if err != nil {
		log.Printf("CRITICAL: negotiation %s answered %s but submission %s was not updated: %v", negotiationID, decision, neg.SubmissionID, err)
		return nil, fmt.Errorf("failed to apply negotiation %s: %w", negotiationID, err)
	}
	if res.MatchedCount == 0 {
		// The seller answered the submission first.
		s.reopenNegotiation(ctx, negotiationID, now)
		return nil, ErrSubmissionNotPending
	}
	return &answered, nil
}

// reopenNegotiation undoes an answer written at respondedAt.
func (s *submissionService) reopenNegotiation(ctx context.Context, negotiationID utils.SixID, respondedAt time.Time) {
	_, err := s.negotiations().UpdateOne(context.WithoutCancel(ctx),
		bson.M{"_id": negotiationID, "responded_at": respondedAt},
		bson.M{"$set": bson.M{"response": nil}, "$unset": bson.M{"responded_at": ""}},
	)
	if err != nil {
		log.Printf("CRITICAL: failed to reopen negotiation %s after a lost race: %v", negotiationID, err)
	}
}

func (s *submissionService) ListNegotiations(ctx context.Context, submissionID utils.SixID) ([]models.SoomNegotiation, error) {
	cursor, err := s.negotiations().Find(ctx,
		bson.M{"submission_id": submissionID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("error listing negotiations of submission %s: %w", submissionID, err)
	}
	defer cursor.Close(ctx)

	negs := []models.SoomNegotiation{}
	if err := cursor.All(ctx, &negs); err != nil {
		return nil, fmt.Errorf("error decoding negotiations: %w", err)
	}
	return negs, nil
}

// ValidateSale confirms an accepted submission inside its validation window and writes the
// validated ledger entry. Concurrent validators are serialized by a distributed lock, and the
// update itself only matches a still validatable submission, so exactly one caller wins.
func (s *submissionService) ValidateSale(ctx context.Context, submissionID, validatorID utils.SixID, isAdmin bool) (*models.Submission, *models.AuctionHistory, error) {
	sub, err := s.FindSubmissionByID(ctx, submissionID)
	if err != nil {
		return nil, nil, err
	}
	if !isAdmin && sub.SellerID != validatorID {
		return nil, nil, ErrForbidden
	}
	if err := sub.ValidationBlocker(s.now()); err != nil {
		return nil, nil, err
	}

	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, "submission:"+submissionID.String())
		if err != nil {
			if errors.Is(err, cache.ErrLockBusy) {
				return nil, nil, ErrValidationBusy
			}
			return nil, nil, err
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				log.Printf("Warning: %v", err)
			}
		}()
	}

	now := s.now()
	var validated models.Submission
	err = s.submissions().FindOneAndUpdate(ctx,
		validatableFilter(submissionID, now),
		bson.M{"$set": bson.M{
			"sale_validated":    true,
			"sale_validated_at": now,
			"validator_id":      validatorID,
			"updated_at":        now,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&validated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil, s.validationLoser(ctx, submissionID, now)
		}
		return nil, nil, fmt.Errorf("failed to validate submission %s: %w", submissionID, err)
	}

	entry := &models.AuctionHistory{
		ListingID:    validated.ListingID,
		SubmissionID: &validated.ID,
		SellerID:     validated.SellerID,
		BuyerID:      validated.UserID,
		BidAmount:    validated.Amount,
		BidDate:      validated.CreatedAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := entry.MarkValidated(validatorID, now); err != nil {
		s.revertValidation(ctx, submissionID, now)
		return nil, nil, err
	}
	err = db.Try(ctx, func() error {
		entry.ID = utils.NewSixID()
		_, insertErr := s.db.Collection(db.AuctionHistoriesCollection).InsertOne(ctx, entry)
		return insertErr
	})
	if err != nil {
		if db.IsDuplicateOnIndex(err, db.AuctionSubmissionIndex) {
			log.Printf("Warning: ledger entry for submission %s already exists", submissionID)
			return nil, nil, ErrAlreadyValidated
		}
		s.revertValidation(ctx, submissionID, now)
		return nil, nil, fmt.Errorf("failed to record sale of submission %s: %w", submissionID, err)
	}

	if s.notifier != nil {
		if listing, lerr := s.listings.FindListingByID(ctx, validated.ListingID); lerr == nil {
			s.notifier.SaleValidated(ctx, &validated, listing)
		} else {
			log.Printf("Warning: not notifying parties of validated sale %s: %v", submissionID, lerr)
		}
	}
	return &validated, entry, nil
}

// validationLoser explains why the conditional update matched nothing.
func (s *submissionService) validationLoser(ctx context.Context, submissionID utils.SixID, now time.Time) error {
	latest, err := s.FindSubmissionByID(ctx, submissionID)
	if err != nil {
		return err
	}
	if blocker := latest.ValidationBlocker(now); blocker != nil {
		return blocker
	}
	return ErrAlreadyValidated
}

// revertValidation undoes this call's own validation stamp when the ledger write failed.
func (s *submissionService) revertValidation(ctx context.Context, submissionID utils.SixID, stampedAt time.Time) {
	_, err := s.submissions().UpdateOne(context.WithoutCancel(ctx),
		bson.M{"_id": submissionID, "sale_validated": true, "sale_validated_at": stampedAt},
		bson.M{
			"$set":   bson.M{"sale_validated": false},
			"$unset": bson.M{"sale_validated_at": "", "validator_id": ""},
		},
	)
	if err != nil {
		log.Printf("CRITICAL: submission %s is marked validated without a ledger entry: %v", submissionID, err)
	}
}

// FindDueForReminder returns accepted, unvalidated submissions whose window closes within lead
// of now and whose seller has not been reminded yet.
func (s *submissionService) FindDueForReminder(ctx context.Context, now time.Time, lead time.Duration) ([]models.Submission, error) {
	filter := bson.M{
		"status":           models.SubmissionAccepted,
		"sale_validated":   false,
		"reminder_sent_at": bson.M{"$exists": false},
		"acceptance_date": bson.M{
			"$gte": now.Add(-models.ValidationWindow),
			"$lte": now.Add(lead - models.ValidationWindow),
		},
	}
	cursor, err := s.submissions().Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "acceptance_date", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("error finding submissions due for reminder: %w", err)
	}
	defer cursor.Close(ctx)

	subs := []models.Submission{}
	if err := cursor.All(ctx, &subs); err != nil {
		return nil, fmt.Errorf("error decoding submissions: %w", err)
	}
	return subs, nil
}

// MarkReminderSent stamps reminder_sent_at once. It reports false when another sweep got there first.
func (s *submissionService) MarkReminderSent(ctx context.Context, submissionID utils.SixID, at time.Time) (bool, error) {
	res, err := s.submissions().UpdateOne(ctx,
		bson.M{"_id": submissionID, "reminder_sent_at": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"reminder_sent_at": at}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark reminder of submission %s: %w", submissionID, err)
	}
	return res.ModifiedCount == 1, nil
}
