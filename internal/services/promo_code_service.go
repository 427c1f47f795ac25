package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"soomhub/market/internal/db"
	"soomhub/market/internal/models"
	"soomhub/market/internal/utils"
)

const promoCodeIndex = "code_1"

type PromoCodeInput struct {
	Code            string
	DiscountPercent int
	MaxUses         int
	StartDate       time.Time
	EndDate         time.Time
}

// IPromoCodeService manages discount codes.
type IPromoCodeService interface {
	CreatePromoCode(ctx context.Context, in PromoCodeInput) (*models.PromoCode, error)
	ListPromoCodes(ctx context.Context, page Page) ([]models.PromoCode, string, error)
	FindByCode(ctx context.Context, code string) (*models.PromoCode, error)
	DeactivatePromoCode(ctx context.Context, code string) error
	CheckPromoCode(ctx context.Context, code string) (*models.PromoCode, error)
	RedeemPromoCode(ctx context.Context, code string) (*models.PromoCode, error)
}

type promoCodeService struct {
	db  *mongo.Database
	now func() time.Time
}

func NewPromoCodeService(db *mongo.Database) IPromoCodeService {
	return &promoCodeService{db: db, now: mongoNow}
}

func (s *promoCodeService) collection() *mongo.Collection {
	return s.db.Collection(db.PromoCodesCollection)
}

func (in PromoCodeInput) validate() error {
	switch {
	case models.NormalizePromoCode(in.Code) == "":
		return fmt.Errorf("%w: code is required", ErrInvalidInput)
	case in.DiscountPercent < 1 || in.DiscountPercent > 100:
		return fmt.Errorf("%w: discount must be between 1 and 100 percent", ErrInvalidInput)
	case in.MaxUses < 1:
		return fmt.Errorf("%w: max uses must be positive", ErrInvalidInput)
	case in.EndDate.Before(in.StartDate):
		return fmt.Errorf("%w: end date precedes start date", ErrInvalidInput)
	}
	return nil
}

func (s *promoCodeService) CreatePromoCode(ctx context.Context, in PromoCodeInput) (*models.PromoCode, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var promo *models.PromoCode
	err := db.Try(ctx, func() error {
		promo = &models.PromoCode{
			ID:              utils.NewSixID(),
			Code:            models.NormalizePromoCode(in.Code),
			DiscountPercent: in.DiscountPercent,
			Status:          models.PromoCodeActive,
			MaxUses:         in.MaxUses,
			StartDate:       in.StartDate.UTC(),
			EndDate:         in.EndDate.UTC(),
			CreatedAt:       s.now(),
		}
		_, insertErr := s.collection().InsertOne(ctx, promo)
		return insertErr
	})
	if err != nil {
		if db.IsDuplicateOnIndex(err, promoCodeIndex) {
			return nil, ErrPromoCodeTaken
		}
		return nil, fmt.Errorf("failed to insert promo code: %w", err)
	}
	return promo, nil
}

func (s *promoCodeService) ListPromoCodes(ctx context.Context, page Page) ([]models.PromoCode, string, error) {
	cursor, err := s.collection().Find(ctx, page.apply(bson.M{}), page.findOptions())
	if err != nil {
		return nil, "", fmt.Errorf("error listing promo codes: %w", err)
	}
	defer cursor.Close(ctx)

	promos := []models.PromoCode{}
	if err := cursor.All(ctx, &promos); err != nil {
		return nil, "", fmt.Errorf("error decoding promo codes: %w", err)
	}
	promos, next := trimPage(promos, page, func(p models.PromoCode) (time.Time, utils.SixID) { return p.CreatedAt, p.ID })
	return promos, next, nil
}

func (s *promoCodeService) FindByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	var promo models.PromoCode
	err := s.collection().FindOne(ctx, bson.M{"code": models.NormalizePromoCode(code)}).Decode(&promo)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding promo code: %w", err)
	}
	return &promo, nil
}

func (s *promoCodeService) DeactivatePromoCode(ctx context.Context, code string) error {
	res, err := s.collection().UpdateOne(ctx,
		bson.M{"code": models.NormalizePromoCode(code)},
		bson.M{"$set": bson.M{"status": models.PromoCodeInactive}},
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate promo code: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// CheckPromoCode returns the code when it can be used right now.
func (s *promoCodeService) CheckPromoCode(ctx context.Context, code string) (*models.PromoCode, error) {
	promo, err := s.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !promo.IsValid(s.now()) {
		return nil, ErrPromoUnavailable
	}
	return promo, nil
}

// RedeemPromoCode consumes one use. The filter carries every IsValid condition, so
// concurrent redemptions can never push used_count past max_uses.
func (s *promoCodeService) RedeemPromoCode(ctx context.Context, code string) (*models.PromoCode, error) {
	now := s.now()
	normalized := models.NormalizePromoCode(code)
	var promo models.PromoCode
	err := s.collection().FindOneAndUpdate(ctx,
		bson.M{
			"code":       normalized,
			"status":     models.PromoCodeActive,
			"start_date": bson.M{"$lte": now},
			"end_date":   bson.M{"$gte": now},
			"$expr":      bson.M{"$lt": bson.A{"$used_count", "$max_uses"}},
		},
		bson.M{"$inc": bson.M{"used_count": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&promo)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			if _, ferr := s.FindByCode(ctx, normalized); ferr != nil {
				return nil, ferr
			}
			return nil, ErrPromoUnavailable
		}
		return nil, fmt.Errorf("failed to redeem promo code: %w", err)
	}
	return &promo, nil
}
