package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"soomhub/market/internal/config"
	"soomhub/market/internal/db"
	"soomhub/market/internal/models"
	"soomhub/market/internal/utils"
)

var testCollections = []string{
	db.UsersCollection,
	db.ListingsCollection,
	db.SubmissionsCollection,
	db.SubmissionResponsesCollection,
	db.NegotiationsCollection,
	db.AuctionHistoriesCollection,
	db.PromoCodesCollection,
	db.CardTypesCollection,
	db.BankCardsCollection,
	db.LicensePlatesCollection,
	db.EmailTemplatesCollection,
}

// setupServiceDB returns a clean test database with production indexes.
func setupServiceDB(t *testing.T) *mongo.Database {
	t.Helper()
	database := utils.SetupTestDB(t, "soom_services_test", testCollections...)
	require.NoError(t, db.EnsureIndexes(context.Background(), database))
	return database
}

func testConfig() *config.Config {
	return &config.Config{CurrencyCode: "AED", DefaultLocale: models.LocaleEN, AppName: "Soom"}
}

func mustAmount(t *testing.T, s string) models.Amount {
	t.Helper()
	a, err := models.NewAmount(s)
	require.NoError(t, err)
	return a
}

// publishedListing creates a published listing owned by sellerID.
func publishedListing(t *testing.T, listings IListingService, sellerID utils.SixID, minBid string) *models.Listing {
	t.Helper()
	listing, err := listings.CreateListing(context.Background(), sellerID, ListingInput{
		Title:      "Dubai Q 55",
		Category:   models.CategoryLicensePlate,
		Price:      mustAmount(t, "90000"),
		MinimumBid: mustAmount(t, minBid),
		Publish:    true,
	})
	require.NoError(t, err)
	return listing
}
