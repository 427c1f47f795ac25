package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"soomhub/market/internal/cache"
	"soomhub/market/internal/config"
	"soomhub/market/internal/db"
	"soomhub/market/internal/models"
	"soomhub/market/internal/storage"
	"soomhub/market/internal/utils"
)

const listingSlugIndex = "slug_1"

// ListingInput carries the client supplied fields of a new listing.
type ListingInput struct {
	Title          string
	TitleAr        string
	Description    string
	Category       models.ListingCategory
	Price          models.Amount
	MinimumBid     models.Amount
	AuctionEnabled bool
	Publish        bool
}

// ListingUpdate holds the owner editable fields. Nil fields are left unchanged.
// Setting IsDraft to false publishes the listing; a published listing cannot go back to draft.
type ListingUpdate struct {
	Title          *string
	TitleAr        *string
	Description    *string
	Category       *models.ListingCategory
	Price          *models.Amount
	MinimumBid     *models.Amount
	AuctionEnabled *bool
	IsDraft        *bool
}

// ListingFilter narrows ListListings. Drafts are only listed for their seller.
type ListingFilter struct {
	Category       models.ListingCategory
	SellerID       *utils.SixID
	AuctionEnabled *bool
	IncludeDrafts  bool
}

// IListingService defines the interface for listing-related operations.
type IListingService interface {
	CreateListing(ctx context.Context, sellerID utils.SixID, in ListingInput) (*models.Listing, error)
	FindListingByID(ctx context.Context, listingID utils.SixID) (*models.Listing, error)
	FindListingBySlug(ctx context.Context, slug string) (*models.Listing, error)
	ListListings(ctx context.Context, filter ListingFilter, page Page) ([]models.Listing, string, error)
	UpdateListing(ctx context.Context, listingID, userID utils.SixID, upd ListingUpdate) (*models.Listing, error)
	DeleteListing(ctx context.Context, listingID, actorID utils.SixID, isAdmin bool) error
	AddImageToListing(ctx context.Context, listingID utils.SixID, imageKey string) error
	PresignImageUpload(ctx context.Context, listingID, userID utils.SixID, filename, contentType string) (url, key string, err error)
}

// listingService implements IListingService.
type listingService struct {
	db        *mongo.Database
	cfg       *config.Config
	cache     cache.ListingCache
	storage   storage.IS3Storage
	sanitizer *bluemonday.Policy
	now       func() time.Time
}

// NewListingService creates a new ListingService. cache and store may be nil.
func NewListingService(db *mongo.Database, cfg *config.Config, listingCache cache.ListingCache, store storage.IS3Storage) IListingService {
	return &listingService{
		db:        db,
		cfg:       cfg,
		cache:     listingCache,
		storage:   store,
		sanitizer: bluemonday.UGCPolicy(),
		now:       mongoNow,
	}
}

func (s *listingService) collection() *mongo.Collection {
	return s.db.Collection(db.ListingsCollection)
}

// slugTaken reports whether another live or deleted listing already holds candidate.
func (s *listingService) slugTaken(ctx context.Context, self utils.SixID) func(string) (bool, error) {
	return func(candidate string) (bool, error) {
		filter := bson.M{"slug": candidate}
		if !self.IsZero() {
			filter["_id"] = bson.M{"$ne": self}
		}
		n, err := s.collection().CountDocuments(ctx, filter, options.Count().SetLimit(1))
		if err != nil {
			return false, fmt.Errorf("failed to check slug %q: %w", candidate, err)
		}
		return n > 0, nil
	}
}

// retryOnSlugOrID retries when a concurrent writer took the same slug or id.
func retryOnSlugOrID(err error) bool {
	return db.IsIDCollision(err) || db.IsDuplicateOnIndex(err, listingSlugIndex)
}

// CreateListing inserts a listing with a slug derived from its title.
func (s *listingService) CreateListing(ctx context.Context, sellerID utils.SixID, in ListingInput) (*models.Listing, error) {
	now := s.now()
	listing := &models.Listing{
		UserID:         sellerID,
		Title:          strings.TrimSpace(in.Title),
		TitleAr:        strings.TrimSpace(in.TitleAr),
		Description:    s.sanitizer.Sanitize(in.Description),
		Category:       in.Category,
		Price:          in.Price,
		MinimumBid:     in.MinimumBid,
		CurrencyCode:   s.cfg.CurrencyCode,
		AuctionEnabled: in.AuctionEnabled,
		Images:         []string{},
		IsDraft:        !in.Publish,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if in.Publish {
		listing.PublishedAt = &now
	}
	if err := listing.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	err := db.WithRetries(ctx, func() error {
		listing.ID = utils.NewSixID()
		slug, err := utils.UniqueSlug(utils.Slugify(listing.Title), "listing", s.slugTaken(ctx, utils.SixID{}))
		if err != nil {
			return err
		}
		listing.Slug = slug
		_, err = s.collection().InsertOne(ctx, listing)
		return err
	}, db.DefaultMaxRetries, retryOnSlugOrID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert new listing for user %s: %w", sellerID, err)
	}
	return listing, nil
}

// FindListingByID finds a non-deleted listing, drafts included. It does NOT check ownership.
func (s *listingService) FindListingByID(ctx context.Context, listingID utils.SixID) (*models.Listing, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, listingID); ok {
			return cached, nil
		}
	}
	listing, err := s.findOne(ctx, bson.M{"_id": listingID, "deleted": false})
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, listing); err != nil {
			log.Printf("Warning: failed to cache listing %s: %v", listingID, err)
		}
	}
	return listing, nil
}

func (s *listingService) FindListingBySlug(ctx context.Context, slug string) (*models.Listing, error) {
	return s.findOne(ctx, bson.M{"slug": strings.ToLower(slug), "deleted": false})
}

func (s *listingService) findOne(ctx context.Context, filter bson.M) (*models.Listing, error) {
	var listing models.Listing
	if err := s.collection().FindOne(ctx, filter).Decode(&listing); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding listing: %w", err)
	}
	return &listing, nil
}

func (s *listingService) ListListings(ctx context.Context, f ListingFilter, page Page) ([]models.Listing, string, error) {
	filter := bson.M{"deleted": false}
	if !f.IncludeDrafts {
		filter["is_draft"] = false
	}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	if f.SellerID != nil {
		filter["user_id"] = *f.SellerID
	}
	if f.AuctionEnabled != nil {
		filter["auction_enabled"] = *f.AuctionEnabled
	}
	filter = page.apply(filter)

	cursor, err := s.collection().Find(ctx, filter, page.findOptions())
	if err != nil {
		return nil, "", fmt.Errorf("error listing listings: %w", err)
	}
	defer cursor.Close(ctx)

	listings := []models.Listing{}
	if err := cursor.All(ctx, &listings); err != nil {
		return nil, "", fmt.Errorf("error decoding listings: %w", err)
	}
	listings, next := trimPage(listings, page, func(l models.Listing) (time.Time, utils.SixID) { return l.CreatedAt, l.ID })
	return listings, next, nil
}

// UpdateListing applies upd to a listing owned by userID and re-derives the slug when the title changes.
func (s *listingService) UpdateListing(ctx context.Context, listingID, userID utils.SixID, upd ListingUpdate) (*models.Listing, error) {
	current, err := s.findOne(ctx, bson.M{"_id": listingID, "deleted": false})
	if err != nil {
		return nil, err
	}
	if current.UserID != userID {
		return nil, ErrForbidden
	}

	next := *current
	set := bson.M{}
	if upd.Title != nil {
		next.Title = strings.TrimSpace(*upd.Title)
		set["title"] = next.Title
	}
	if upd.TitleAr != nil {
		next.TitleAr = strings.TrimSpace(*upd.TitleAr)
		set["title_ar"] = next.TitleAr
	}
	if upd.Description != nil {
		next.Description = s.sanitizer.Sanitize(*upd.Description)
		set["description"] = next.Description
	}
	if upd.Category != nil {
		next.Category = *upd.Category
		set["category"] = next.Category
	}
	if upd.Price != nil {
		next.Price = *upd.Price
		set["price"] = next.Price
	}
	if upd.MinimumBid != nil {
		next.MinimumBid = *upd.MinimumBid
		set["minimum_bid"] = next.MinimumBid
	}
	if upd.AuctionEnabled != nil {
		next.AuctionEnabled = *upd.AuctionEnabled
		set["auction_enabled"] = next.AuctionEnabled
	}
	if upd.IsDraft != nil {
		if *upd.IsDraft && !current.IsDraft {
			return nil, fmt.Errorf("%w: a published listing cannot return to draft", ErrInvalidInput)
		}
		if !*upd.IsDraft && current.IsDraft {
			now := s.now()
			next.IsDraft = false
			next.PublishedAt = &now
			set["is_draft"] = false
			set["published_at"] = now
		}
	}
	if err := next.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	titleChanged := next.Title != current.Title
	var updated models.Listing
	err = db.WithRetries(ctx, func() error {
		if titleChanged {
			slug, err := utils.UniqueSlug(utils.Slugify(next.Title), "listing", s.slugTaken(ctx, listingID))
			if err != nil {
				return err
			}
			set["slug"] = slug
		}
		set["updated_at"] = s.now()
		return s.collection().FindOneAndUpdate(ctx,
			bson.M{"_id": listingID, "user_id": userID, "deleted": false},
			bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated)
	}, db.DefaultMaxRetries, retryOnSlugOrID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update listing %s: %w", listingID, err)
	}
	s.invalidate(ctx, listingID)
	return &updated, nil
}

// DeleteListing soft deletes a listing. Only the seller or an admin may do so.
func (s *listingService) DeleteListing(ctx context.Context, listingID, actorID utils.SixID, isAdmin bool) error {
	filter := bson.M{"_id": listingID, "deleted": false}
	if !isAdmin {
		current, err := s.findOne(ctx, filter)
		if err != nil {
			return err
		}
		if current.UserID != actorID {
			return ErrForbidden
		}
	}
	res, err := s.collection().UpdateOne(ctx, filter, bson.M{"$set": bson.M{"deleted": true, "updated_at": s.now()}})
	if err != nil {
		return fmt.Errorf("failed to delete listing %s: %w", listingID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	s.invalidate(ctx, listingID)
	return nil
}

// AddImageToListing appends an uploaded image key. Adding a key twice is a no-op.
func (s *listingService) AddImageToListing(ctx context.Context, listingID utils.SixID, imageKey string) error {
	res, err := s.collection().UpdateOne(ctx,
		bson.M{"_id": listingID, "deleted": false},
		bson.M{
			"$addToSet": bson.M{"images": imageKey},
			"$set":      bson.M{"updated_at": s.now()},
		},
	)
	if err != nil {
		return fmt.Errorf("db error adding image %s to listing %s: %w", imageKey, listingID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	if res.ModifiedCount == 0 {
		log.Printf("Image key %s already present on listing %s", imageKey, listingID)
	}
	s.invalidate(ctx, listingID)
	return nil
}

// PresignImageUpload returns an upload URL for the listing owner.
func (s *listingService) PresignImageUpload(ctx context.Context, listingID, userID utils.SixID, filename, contentType string) (string, string, error) {
	if s.storage == nil {
		return "", "", errors.New("object storage is not configured")
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", "", fmt.Errorf("%w: content type must be an image", ErrInvalidInput)
	}
	listing, err := s.findOne(ctx, bson.M{"_id": listingID, "deleted": false})
	if err != nil {
		return "", "", err
	}
	if listing.UserID != userID {
		return "", "", ErrForbidden
	}
	return s.storage.GeneratePresignedPutURL(ctx, userID.String(), listingID.String(), filename, contentType)
}

func (s *listingService) invalidate(ctx context.Context, listingID utils.SixID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, listingID); err != nil {
		log.Printf("Warning: failed to invalidate cached listing %s: %v", listingID, err)
	}
}
