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

	"soomhub/market/internal/db"
	"soomhub/market/internal/models"
	"soomhub/market/internal/storage"
	"soomhub/market/internal/utils"
)

type LicensePlateInput struct {
	Emirate   string
	Code      string
	Number    string
	PlateType models.PlateType
}

// PlateRenderer draws a plate image.
type PlateRenderer interface {
	Render(plate *models.LicensePlate) ([]byte, error)
}

// ILicensePlateService stores the plate details of license_plate listings.
type ILicensePlateService interface {
	SaveLicensePlate(ctx context.Context, listingID, userID utils.SixID, in LicensePlateInput) (*models.LicensePlate, error)
	FindLicensePlateByID(ctx context.Context, id utils.SixID) (*models.LicensePlate, error)
	FindLicensePlateByListing(ctx context.Context, listingID utils.SixID) (*models.LicensePlate, error)
	GeneratePlateImage(ctx context.Context, plate *models.LicensePlate)
}

type licensePlateService struct {
	db        *mongo.Database
	listings  IListingService
	renderer  PlateRenderer
	storage   storage.IS3Storage
	imageType string
	now       func() time.Time
}

// NewLicensePlateService creates the plate service. renderer and store may be nil, which disables plate images.
func NewLicensePlateService(db *mongo.Database, listings IListingService, renderer PlateRenderer, store storage.IS3Storage, imageContentType string) ILicensePlateService {
	return &licensePlateService{
		db:        db,
		listings:  listings,
		renderer:  renderer,
		storage:   store,
		imageType: imageContentType,
		now:       mongoNow,
	}
}

func (s *licensePlateService) collection() *mongo.Collection {
	return s.db.Collection(db.LicensePlatesCollection)
}

// SaveLicensePlate creates or replaces the plate of a listing, then generates its image.
// The image step never fails the save.
func (s *licensePlateService) SaveLicensePlate(ctx context.Context, listingID, userID utils.SixID, in LicensePlateInput) (*models.LicensePlate, error) {
	listing, err := s.listings.FindListingByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.UserID != userID {
		return nil, ErrForbidden
	}
	if listing.Category != models.CategoryLicensePlate {
		return nil, fmt.Errorf("%w: listing is not a license plate listing", ErrInvalidInput)
	}

	plate := &models.LicensePlate{
		Emirate:   in.Emirate,
		Code:      in.Code,
		Number:    in.Number,
		PlateType: in.PlateType,
	}
	plate.Normalize()
	if err := plate.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	now := s.now()
	var saved models.LicensePlate
	err = db.Try(ctx, func() error {
		return s.collection().FindOneAndUpdate(ctx,
			bson.M{"listing_id": listingID},
			bson.M{
				"$set": bson.M{
					"emirate":    plate.Emirate,
					"code":       plate.Code,
					"number":     plate.Number,
					"plate_type": plate.PlateType,
					"user_id":    userID,
					"updated_at": now,
				},
				"$setOnInsert": bson.M{
					"_id":        utils.NewSixID(),
					"created_at": now,
				},
			},
			options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
		).Decode(&saved)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save license plate of listing %s: %w", listingID, err)
	}

	s.GeneratePlateImage(ctx, &saved)
	return &saved, nil
}

// GeneratePlateImage renders and uploads the plate picture and records its key on success.
// Failures are logged and swallowed.
func (s *licensePlateService) GeneratePlateImage(ctx context.Context, plate *models.LicensePlate) {
	if s.renderer == nil || s.storage == nil {
		log.Printf("Warning: plate image generation disabled, skipping plate %s", plate.ID)
		return
	}
	data, err := s.renderer.Render(plate)
	if err != nil {
		log.Printf("Warning: failed to render plate %s: %v", plate.ID, err)
		return
	}
	key := fmt.Sprintf("plates/%s/%s.png", plate.ListingID, plate.ID)
	if err := s.storage.PutObject(ctx, key, s.imageType, data); err != nil {
		log.Printf("Warning: failed to upload plate image %s: %v", key, err)
		return
	}
	_, err = s.collection().UpdateOne(ctx,
		bson.M{"_id": plate.ID},
		bson.M{"$set": bson.M{"image_key": key}},
	)
	if err != nil {
		log.Printf("Warning: failed to record plate image %s: %v", key, err)
		return
	}
	plate.ImageKey = key
}

func (s *licensePlateService) FindLicensePlateByID(ctx context.Context, id utils.SixID) (*models.LicensePlate, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *licensePlateService) FindLicensePlateByListing(ctx context.Context, listingID utils.SixID) (*models.LicensePlate, error) {
	return s.findOne(ctx, bson.M{"listing_id": listingID})
}

func (s *licensePlateService) findOne(ctx context.Context, filter bson.M) (*models.LicensePlate, error) {
	var plate models.LicensePlate
	if err := s.collection().FindOne(ctx, filter).Decode(&plate); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding license plate: %w", err)
	}
	return &plate, nil
}
