package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"soomhub/market/internal/cache"
	"soomhub/market/internal/db"
	"soomhub/market/internal/models"
	"soomhub/market/internal/utils"
)

type submissionFixture struct {
	db       *mongo.Database
	svc      ISubmissionService
	listings IListingService
	notifier *recordingNotifier
	listing  *models.Listing
	seller   utils.SixID
	buyer    utils.SixID
}

func setupSubmissionService(t *testing.T) *submissionFixture {
	t.Helper()
	database := setupServiceDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	listings := NewListingService(database, testConfig(), nil, nil)
	notifier := new(recordingNotifier).allowAll()
	f := &submissionFixture{
		db:       database,
		svc:      NewSubmissionService(database, listings, cache.NewRedisLocker(rdb, 2*time.Second), notifier),
		listings: listings,
		notifier: notifier,
		seller:   utils.NewSixID(),
		buyer:    utils.NewSixID(),
	}
	f.listing = publishedListing(t, listings, f.seller, "1000")
	return f
}

func (f *submissionFixture) acceptedSubmission(t *testing.T, amount string) *models.Submission {
	t.Helper()
	ctx := context.Background()
	sub, err := f.svc.CreateSubmission(ctx, f.listing.ID, f.buyer, mustAmount(t, amount))
	require.NoError(t, err)
	accepted, _, err := f.svc.RespondToSubmission(ctx, sub.ID, f.seller, models.DecisionAccepted)
	require.NoError(t, err)
	return accepted
}

func TestSubmissionService_CreateGuards(t *testing.T) {
	f := setupSubmissionService(t)
	ctx := context.Background()

	_, err := f.svc.CreateSubmission(ctx, f.listing.ID, f.seller, mustAmount(t, "5000"))
	assert.ErrorIs(t, err, ErrOwnListing)

	_, err = f.svc.CreateSubmission(ctx, f.listing.ID, f.buyer, mustAmount(t, "999.99"))
	assert.ErrorIs(t, err, ErrBelowMinimumSoom)

	_, err = f.svc.CreateSubmission(ctx, utils.NewSixID(), f.buyer, mustAmount(t, "5000"))
	assert.ErrorIs(t, err, ErrNotFound)

	draft, err := f.listings.CreateListing(ctx, f.seller, ListingInput{Title: "Draft", Category: models.CategoryService, Price: mustAmount(t, "1")})
	require.NoError(t, err)
	_, err = f.svc.CreateSubmission(ctx, draft.ID, f.buyer, mustAmount(t, "5000"))
	assert.ErrorIs(t, err, ErrListingUnavailable)

	sub, err := f.svc.CreateSubmission(ctx, f.listing.ID, f.buyer, mustAmount(t, "1000"))
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionPending, sub.Status)
	assert.Equal(t, f.seller, sub.SellerID)
	assert.True(t, sub.MinSoom.Equal(f.listing.MinimumBid.Decimal))
	f.notifier.AssertCalled(t, "SubmissionReceived", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmissionService_RespondOnlyOnce(t *testing.T) {
	f := setupSubmissionService(t)
	ctx := context.Background()
	sub, err := f.svc.CreateSubmission(ctx, f.listing.ID, f.buyer, mustAmount(t, "1500"))
	require.NoError(t, err)

	_, _, err = f.svc.RespondToSubmission(ctx, sub.ID, f.buyer, models.DecisionAccepted)
	assert.ErrorIs(t, err, ErrForbidden)

	updated, resp, err := f.svc.RespondToSubmission(ctx, sub.ID, f.seller, models.DecisionRejected)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionRejected, updated.Status)
	assert.Nil(t, updated.AcceptanceDate)
	assert.Equal(t, f.buyer, resp.BuyerID)

	_, _, err = f.svc.RespondToSubmission(ctx, sub.ID, f.seller, models.DecisionAccepted)
	assert.ErrorIs(t, err, ErrSubmissionNotPending)

	responses, err := f.svc.ListResponses(ctx, sub.ID)
	require.NoError(t, err)
	assert.Len(t, responses, 1)
}

func TestSubmissionService_CounterOfferSingleOpenRound(t *testing.T) {
	f := setupSubmissionService(t)
	ctx := context.Background()
	sub, err := f.svc.CreateSubmission(ctx, f.listing.ID, f.buyer, mustAmount(t, "1200"))
	require.NoError(t, err)

	_, err = f.svc.CounterOffer(ctx, sub.ID, utils.NewSixID(), mustAmount(t, "1500"))
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.CounterOffer(ctx, sub.ID, f.seller, mustAmount(t, "900"))
	assert.ErrorIs(t, err, ErrBelowMinimumSoom)

	neg, err := f.svc.CounterOffer(ctx, sub.ID, f.seller, mustAmount(t, "1500"))
	require.NoError(t, err)
	assert.Equal(t, f.buyer, neg.ReceiverID)
	assert.True(t, neg.IsOpen())

	_, err = f.svc.CounterOffer(ctx, sub.ID, f.buyer, mustAmount(t, "1300"))
	assert.ErrorIs(t, err, ErrOpenNegotiation)

	_, err = f.svc.RespondToNegotiation(ctx, neg.ID, f.seller, models.DecisionAccepted)
	assert.ErrorIs(t, err, ErrForbidden, "only the receiver answers")

	answered, err := f.svc.RespondToNegotiation(ctx, neg.ID, f.buyer, models.DecisionAccepted)
	require.NoError(t, err)
	require.NotNil(t, answered.Response)
	assert.Equal(t, models.DecisionAccepted, *answered.Response)

	_, err = f.svc.RespondToNegotiation(ctx, neg.ID, f.buyer, models.DecisionRejected)
	assert.ErrorIs(t, err, ErrNegotiationClosed)

	latest, err := f.svc.FindSubmissionByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.True(t, latest.Amount.Equal(mustAmount(t, "1500").Decimal))
	assert.Nil(t, latest.OpenNegotiationID)
	assert.Equal(t, models.SubmissionPending, latest.Status)

	// The slot is free again.
	_, err = f.svc.CounterOffer(ctx, sub.ID, f.buyer, mustAmount(t, "1400"))
	require.NoError(t, err)
	negs, err := f.svc.ListNegotiations(ctx, sub.ID)
	require.NoError(t, err)
	assert.Len(t, negs, 2)
}

func TestSubmissionService_NegotiationAnswerLosesToSellerResponse(t *testing.T) {
	f := setupSubmissionService(t)
	ctx := context.Background()
	sub, err := f.svc.CreateSubmission(ctx, f.listing.ID, f.buyer, mustAmount(t, "1200"))
	require.NoError(t, err)
	neg, err := f.svc.CounterOffer(ctx, sub.ID, f.seller, mustAmount(t, "1800"))
	require.NoError(t, err)

	// The seller accepts the submission right after the pending check of the buyer's answer.
	impl := f.svc.(*submissionService)
	accepted := false
	impl.now = func() time.Time {
		if !accepted {
			accepted = true
			_, err := f.db.Collection(db.SubmissionsCollection).UpdateOne(ctx,
				bson.M{"_id": sub.ID},
				bson.M{"$set": bson.M{"status": models.SubmissionAccepted, "acceptance_date": mongoNow()}},
			)
			require.NoError(t, err)
		}
		return mongoNow()
	}

	_, err = f.svc.RespondToNegotiation(ctx, neg.ID, f.buyer, models.DecisionAccepted)
	assert.ErrorIs(t, err, ErrSubmissionNotPending)

	stored, err := f.svc.FindNegotiationByID(ctx, neg.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsOpen())
	assert.Nil(t, stored.RespondedAt)

	latest, err := f.svc.FindSubmissionByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionAccepted, latest.Status)
	assert.True(t, latest.Amount.Equal(mustAmount(t, "1200").Decimal))
}

func TestSubmissionService_ConcurrentCounterOffers(t *testing.T) {
	f := setupSubmissionService(t)
	ctx := context.Background()
	sub, err := f.svc.CreateSubmission(ctx, f.listing.ID, f.buyer, mustAmount(t, "1200"))
	require.NoError(t, err)

	offer := mustAmount(t, "1600")
	const n = 6
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.CounterOffer(ctx, sub.ID, f.seller, offer)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, ErrOpenNegotiation)
	}
	assert.Equal(t, 1, wins)

	negs, err := f.svc.ListNegotiations(ctx, sub.ID)
	require.NoError(t, err)
	assert.Len(t, negs, 1, "losing rounds are removed")
}

func TestSubmissionService_ValidateSale(t *testing.T) {
	f := setupSubmissionService(t)
	ctx := context.Background()

	pending, err := f.svc.CreateSubmission(ctx, f.listing.ID, f.buyer, mustAmount(t, "2000"))
	require.NoError(t, err)
	_, _, err = f.svc.ValidateSale(ctx, pending.ID, f.seller, false)
	assert.ErrorIs(t, err, ErrSubmissionNotAccepted)

	sub := f.acceptedSubmission(t, "2500")
	_, _, err = f.svc.ValidateSale(ctx, sub.ID, f.buyer, false)
	assert.ErrorIs(t, err, ErrForbidden)

	validated, entry, err := f.svc.ValidateSale(ctx, sub.ID, f.seller, false)
	require.NoError(t, err)
	assert.True(t, validated.SaleValidated)
	require.NotNil(t, validated.SaleValidatedAt)
	assert.True(t, entry.Validated)
	assert.NoError(t, entry.CheckInvariant())
	assert.Equal(t, sub.ID, *entry.SubmissionID)
	assert.True(t, entry.BidAmount.Equal(mustAmount(t, "2500").Decimal))

	_, _, err = f.svc.ValidateSale(ctx, sub.ID, utils.NewSixID(), true)
	assert.ErrorIs(t, err, ErrAlreadyValidated)

	validatedOnly, _, err := f.svc.ListSubmissions(ctx, SubmissionQuery{BuyerID: &f.buyer, Scope: models.ScopeValidated}, Page{})
	require.NoError(t, err)
	assert.Len(t, validatedOnly, 1)
	pendingOnly, _, err := f.svc.ListSubmissions(ctx, SubmissionQuery{BuyerID: &f.buyer, Scope: models.ScopePending}, Page{})
	require.NoError(t, err)
	assert.Len(t, pendingOnly, 1)
}

func TestSubmissionService_ValidateSaleExpired(t *testing.T) {
	f := setupSubmissionService(t)
	ctx := context.Background()
	sub := f.acceptedSubmission(t, "2500")

	past := time.Now().UTC().Add(-models.ValidationWindow - time.Minute)
	_, err := f.db.Collection(db.SubmissionsCollection).UpdateOne(ctx, bson.M{"_id": sub.ID}, bson.M{"$set": bson.M{"acceptance_date": past}})
	require.NoError(t, err)

	_, _, err = f.svc.ValidateSale(ctx, sub.ID, f.seller, false)
	assert.ErrorIs(t, err, ErrValidationExpired)
}

func TestSubmissionService_ConcurrentValidateSale(t *testing.T) {
	f := setupSubmissionService(t)
	ctx := context.Background()
	sub := f.acceptedSubmission(t, "3000")

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = f.svc.ValidateSale(ctx, sub.ID, f.seller, false)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, errors.Is(err, ErrAlreadyValidated) || errors.Is(err, ErrValidationBusy), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, wins)

	n64, err := f.db.Collection(db.AuctionHistoriesCollection).CountDocuments(ctx, bson.M{"submission_id": sub.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n64)
}

func TestSubmissionService_Reminders(t *testing.T) {
	f := setupSubmissionService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	due := f.acceptedSubmission(t, "2000")
	closing := now.Add(-models.ValidationWindow + 2*time.Hour)
	_, err := f.db.Collection(db.SubmissionsCollection).UpdateOne(ctx, bson.M{"_id": due.ID}, bson.M{"$set": bson.M{"acceptance_date": closing}})
	require.NoError(t, err)
	f.acceptedSubmission(t, "2100") // accepted just now, not due yet

	subs, err := f.svc.FindDueForReminder(ctx, now, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, due.ID, subs[0].ID)

	marked, err := f.svc.MarkReminderSent(ctx, due.ID, now)
	require.NoError(t, err)
	assert.True(t, marked)
	marked, err = f.svc.MarkReminderSent(ctx, due.ID, now)
	require.NoError(t, err)
	assert.False(t, marked)

	subs, err = f.svc.FindDueForReminder(ctx, now, 24*time.Hour)
	require.NoError(t, err)
	assert.Empty(t, subs)
}
