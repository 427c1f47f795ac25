package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names.
const (
	UsersCollection               = "users"
	ListingsCollection            = "listings"
	SubmissionsCollection         = "submissions"
	SubmissionResponsesCollection = "submission_responses"
	NegotiationsCollection        = "soom_negotiations"
	AuctionHistoriesCollection    = "auction_histories"
	PromoCodesCollection          = "promo_codes"
	CardTypesCollection           = "card_types"
	BankCardsCollection           = "bank_cards"
	LicensePlatesCollection       = "license_plates"
	EmailTemplatesCollection      = "email_templates"
)

// AuctionSubmissionIndex guarantees at most one ledger entry per validated submission.
const AuctionSubmissionIndex = "submission_id_1"

var indexes = map[string][]mongo.IndexModel{
	UsersCollection: {
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	},
	ListingsCollection: {
		{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "category", Value: 1}, {Key: "created_at", Value: -1}}},
	},
	SubmissionsCollection: {
		{Keys: bson.D{{Key: "listing_id", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "seller_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "sale_validated", Value: 1}, {Key: "acceptance_date", Value: 1}}},
	},
	SubmissionResponsesCollection: {
		{Keys: bson.D{{Key: "submission_id", Value: 1}, {Key: "response_date", Value: 1}}},
	},
	NegotiationsCollection: {
		{Keys: bson.D{{Key: "submission_id", Value: 1}, {Key: "created_at", Value: 1}}},
	},
	AuctionHistoriesCollection: {
		{Keys: bson.D{{Key: "listing_id", Value: 1}, {Key: "bid_amount", Value: -1}}},
		{
			Keys: bson.D{{Key: "submission_id", Value: 1}},
			Options: options.Index().
				SetName(AuctionSubmissionIndex).
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"submission_id": bson.M{"$exists": true}}),
		},
	},
	PromoCodesCollection: {
		{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)},
	},
	CardTypesCollection: {
		{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)},
	},
	BankCardsCollection: {
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "deleted", Value: 1}}},
	},
	LicensePlatesCollection: {
		{Keys: bson.D{{Key: "listing_id", Value: 1}}, Options: options.Index().SetUnique(true)},
	},
	EmailTemplatesCollection: {
		{Keys: bson.D{{Key: "template_id", Value: 1}, {Key: "locale", Value: 1}}, Options: options.Index().SetUnique(true)},
	},
}

// EnsureIndexes creates the indexes every service relies on. Creating an existing index is a no-op.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	for collection, models := range indexes {
		if _, err := db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", collection, err)
		}
	}
	return nil
}
