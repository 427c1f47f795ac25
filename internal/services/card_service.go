package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"soomhub/market/internal/db"
	"soomhub/market/internal/models"
	"soomhub/market/internal/utils"
)

const cardTypeCodeIndex = "code_1"

// CardTypeInput holds admin supplied card type fields. Nil pointers are left unchanged on update.
type CardTypeInput struct {
	Name   *string
	NameAr *string
	Code   *string
	Active *bool
}

// ICardTypeService is the admin catalogue of accepted card networks.
type ICardTypeService interface {
	CreateCardType(ctx context.Context, in CardTypeInput) (*models.CardType, error)
	ListCardTypes(ctx context.Context, activeOnly bool) ([]models.CardType, error)
	FindCardTypeByID(ctx context.Context, id utils.SixID) (*models.CardType, error)
	UpdateCardType(ctx context.Context, id utils.SixID, in CardTypeInput) (*models.CardType, error)
	DeleteCardType(ctx context.Context, id utils.SixID) error
}

type cardTypeService struct {
	db  *mongo.Database
	now func() time.Time
}

func NewCardTypeService(db *mongo.Database) ICardTypeService {
	return &cardTypeService{db: db, now: mongoNow}
}

func (s *cardTypeService) collection() *mongo.Collection {
	return s.db.Collection(db.CardTypesCollection)
}

func normalizeCardCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

func (s *cardTypeService) CreateCardType(ctx context.Context, in CardTypeInput) (*models.CardType, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" || in.Code == nil || normalizeCardCode(*in.Code) == "" {
		return nil, fmt.Errorf("%w: name and code are required", ErrInvalidInput)
	}
	ct := &models.CardType{
		Name:      strings.TrimSpace(*in.Name),
		Code:      normalizeCardCode(*in.Code),
		Active:    true,
		CreatedAt: s.now(),
	}
	if in.NameAr != nil {
		ct.NameAr = strings.TrimSpace(*in.NameAr)
	}
	if in.Active != nil {
		ct.Active = *in.Active
	}
	err := db.Try(ctx, func() error {
		ct.ID = utils.NewSixID()
		_, insertErr := s.collection().InsertOne(ctx, ct)
		return insertErr
	})
	if err != nil {
		if db.IsDuplicateOnIndex(err, cardTypeCodeIndex) {
			return nil, ErrCardTypeTaken
		}
		return nil, fmt.Errorf("failed to insert card type: %w", err)
	}
	return ct, nil
}

func (s *cardTypeService) ListCardTypes(ctx context.Context, activeOnly bool) ([]models.CardType, error) {
	filter := bson.M{"deleted": false}
	if activeOnly {
		filter["active"] = true
	}
	cursor, err := s.collection().Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("error listing card types: %w", err)
	}
	defer cursor.Close(ctx)

	types := []models.CardType{}
	if err := cursor.All(ctx, &types); err != nil {
		return nil, fmt.Errorf("error decoding card types: %w", err)
	}
	return types, nil
}

func (s *cardTypeService) FindCardTypeByID(ctx context.Context, id utils.SixID) (*models.CardType, error) {
	var ct models.CardType
	if err := s.collection().FindOne(ctx, bson.M{"_id": id, "deleted": false}).Decode(&ct); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding card type %s: %w", id, err)
	}
	return &ct, nil
}

func (s *cardTypeService) UpdateCardType(ctx context.Context, id utils.SixID, in CardTypeInput) (*models.CardType, error) {
	set := bson.M{}
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
		}
		set["name"] = strings.TrimSpace(*in.Name)
	}
	if in.NameAr != nil {
		set["name_ar"] = strings.TrimSpace(*in.NameAr)
	}
	if in.Code != nil {
		if normalizeCardCode(*in.Code) == "" {
			return nil, fmt.Errorf("%w: code is required", ErrInvalidInput)
		}
		set["code"] = normalizeCardCode(*in.Code)
	}
	if in.Active != nil {
		set["active"] = *in.Active
	}
	if len(set) == 0 {
		return s.FindCardTypeByID(ctx, id)
	}

	var ct models.CardType
	err := s.collection().FindOneAndUpdate(ctx,
		bson.M{"_id": id, "deleted": false},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&ct)
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			return nil, ErrNotFound
		case db.IsDuplicateOnIndex(err, cardTypeCodeIndex):
			return nil, ErrCardTypeTaken
		}
		return nil, fmt.Errorf("failed to update card type %s: %w", id, err)
	}
	return &ct, nil
}

// DeleteCardType soft deletes the type and renames its code so it can be reused.
func (s *cardTypeService) DeleteCardType(ctx context.Context, id utils.SixID) error {
	res, err := s.collection().UpdateOne(ctx,
		bson.M{"_id": id, "deleted": false},
		bson.M{"$set": bson.M{"deleted": true, "active": false, "code": "deleted-" + id.String()}},
	)
	if err != nil {
		return fmt.Errorf("failed to delete card type %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// BankCardInput is what a user submits to save a card. The full number is checked and dropped.
type BankCardInput struct {
	CardTypeID  utils.SixID
	HolderName  string
	Number      string
	ExpiryMonth int
	ExpiryYear  int
	IsDefault   bool
}

// BankCardUpdate holds the editable fields of a saved card.
type BankCardUpdate struct {
	HolderName  *string
	ExpiryMonth *int
	ExpiryYear  *int
	IsDefault   *bool
}

// IBankCardService stores card references scoped to their owner.
type IBankCardService interface {
	CreateBankCard(ctx context.Context, userID utils.SixID, in BankCardInput) (*models.BankCard, error)
	ListBankCards(ctx context.Context, userID utils.SixID) ([]models.BankCard, error)
	FindBankCard(ctx context.Context, cardID, userID utils.SixID) (*models.BankCard, error)
	UpdateBankCard(ctx context.Context, cardID, userID utils.SixID, upd BankCardUpdate) (*models.BankCard, error)
	DeleteBankCard(ctx context.Context, cardID, userID utils.SixID) error
}

type bankCardService struct {
	db        *mongo.Database
	cardTypes ICardTypeService
	now       func() time.Time
}

func NewBankCardService(db *mongo.Database, cardTypes ICardTypeService) IBankCardService {
	return &bankCardService{db: db, cardTypes: cardTypes, now: mongoNow}
}

func (s *bankCardService) collection() *mongo.Collection {
	return s.db.Collection(db.BankCardsCollection)
}

// DigitsOnly strips the spaces and dashes users type inside card numbers.
func DigitsOnly(number string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(number))
}

func (s *bankCardService) CreateBankCard(ctx context.Context, userID utils.SixID, in BankCardInput) (*models.BankCard, error) {
	number := DigitsOnly(in.Number)
	if !models.LuhnValid(number) {
		return nil, ErrCardRejected
	}
	now := s.now()
	if models.CardExpired(in.ExpiryMonth, in.ExpiryYear, now) {
		return nil, ErrCardExpired
	}
	if strings.TrimSpace(in.HolderName) == "" {
		return nil, fmt.Errorf("%w: holder name is required", ErrInvalidInput)
	}
	ct, err := s.cardTypes.FindCardTypeByID(ctx, in.CardTypeID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown card type", ErrInvalidInput)
		}
		return nil, err
	}
	if !ct.Active {
		return nil, fmt.Errorf("%w: card type %s is not accepted", ErrInvalidInput, ct.Code)
	}

	count, err := s.collection().CountDocuments(ctx, bson.M{"user_id": userID, "deleted": false})
	if err != nil {
		return nil, fmt.Errorf("error counting cards of user %s: %w", userID, err)
	}

	card := &models.BankCard{
		UserID:      userID,
		CardTypeID:  ct.ID,
		HolderName:  strings.TrimSpace(in.HolderName),
		Last4:       number[len(number)-4:],
		ExpiryMonth: in.ExpiryMonth,
		ExpiryYear:  in.ExpiryYear,
		IsDefault:   in.IsDefault || count == 0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = db.Try(ctx, func() error {
		card.ID = utils.NewSixID()
		_, insertErr := s.collection().InsertOne(ctx, card)
		return insertErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert bank card for user %s: %w", userID, err)
	}
	if card.IsDefault {
		if err := s.unsetOtherDefaults(ctx, userID, card.ID); err != nil {
			return nil, err
		}
	}
	return card, nil
}

func (s *bankCardService) unsetOtherDefaults(ctx context.Context, userID, keep utils.SixID) error {
	_, err := s.collection().UpdateMany(ctx,
		bson.M{"user_id": userID, "_id": bson.M{"$ne": keep}, "is_default": true},
		bson.M{"$set": bson.M{"is_default": false, "updated_at": s.now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to unset default cards of user %s: %w", userID, err)
	}
	return nil
}

func (s *bankCardService) ListBankCards(ctx context.Context, userID utils.SixID) ([]models.BankCard, error) {
	cursor, err := s.collection().Find(ctx,
		bson.M{"user_id": userID, "deleted": false},
		options.Find().SetSort(bson.D{{Key: "is_default", Value: -1}, {Key: "created_at", Value: -1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("error listing cards of user %s: %w", userID, err)
	}
	defer cursor.Close(ctx)

	cards := []models.BankCard{}
	if err := cursor.All(ctx, &cards); err != nil {
		return nil, fmt.Errorf("error decoding cards: %w", err)
	}
	return cards, nil
}

// FindBankCard returns ErrNotFound for cards owned by someone else.
func (s *bankCardService) FindBankCard(ctx context.Context, cardID, userID utils.SixID) (*models.BankCard, error) {
	var card models.BankCard
	err := s.collection().FindOne(ctx, bson.M{"_id": cardID, "user_id": userID, "deleted": false}).Decode(&card)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding card %s: %w", cardID, err)
	}
	return &card, nil
}

func (s *bankCardService) UpdateBankCard(ctx context.Context, cardID, userID utils.SixID, upd BankCardUpdate) (*models.BankCard, error) {
	current, err := s.FindBankCard(ctx, cardID, userID)
	if err != nil {
		return nil, err
	}
	set := bson.M{"updated_at": s.now()}
	if upd.HolderName != nil {
		if strings.TrimSpace(*upd.HolderName) == "" {
			return nil, fmt.Errorf("%w: holder name is required", ErrInvalidInput)
		}
		set["holder_name"] = strings.TrimSpace(*upd.HolderName)
	}
	month, year := current.ExpiryMonth, current.ExpiryYear
	if upd.ExpiryMonth != nil {
		month = *upd.ExpiryMonth
	}
	if upd.ExpiryYear != nil {
		year = *upd.ExpiryYear
	}
	if month != current.ExpiryMonth || year != current.ExpiryYear {
		if models.CardExpired(month, year, s.now()) {
			return nil, ErrCardExpired
		}
		set["expiry_month"] = month
		set["expiry_year"] = year
	}
	if upd.IsDefault != nil {
		set["is_default"] = *upd.IsDefault
	}

	var card models.BankCard
	err = s.collection().FindOneAndUpdate(ctx,
		bson.M{"_id": cardID, "user_id": userID, "deleted": false},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&card)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update card %s: %w", cardID, err)
	}
	if card.IsDefault {
		if err := s.unsetOtherDefaults(ctx, userID, card.ID); err != nil {
			return nil, err
		}
	}
	return &card, nil
}

func (s *bankCardService) DeleteBankCard(ctx context.Context, cardID, userID utils.SixID) error {
	res, err := s.collection().UpdateOne(ctx,
		bson.M{"_id": cardID, "user_id": userID, "deleted": false},
		bson.M{"$set": bson.M{"deleted": true, "is_default": false, "updated_at": s.now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to delete card %s: %w", cardID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
