package models

import (
	"errors"
	"strings"
	"time"

	"soomhub/market/internal/utils"
)

// ListingCategory is the marketplace vertical a listing belongs to.
type ListingCategory string

const (
	CategoryMotorcycle   ListingCategory = "motorcycle"
	CategorySparePart    ListingCategory = "spare_part"
	CategoryLicensePlate ListingCategory = "license_plate"
	CategoryService      ListingCategory = "service"
)

func (c ListingCategory) Valid() bool {
	switch c {
	case CategoryMotorcycle, CategorySparePart, CategoryLicensePlate, CategoryService:
		return true
	}
	return false
}

var (
	ErrNegativePrice      = errors.New("price must not be negative")
	ErrNegativeMinimumBid = errors.New("minimum bid must not be negative")
	ErrInvalidCategory    = errors.New("invalid listing category")
	ErrEmptyTitle         = errors.New("title is required")
)

// Listing represents a sellable item.
type Listing struct {
	ID             utils.SixID     `bson:"_id,omitempty" json:"id,omitempty"`
	UserID         utils.SixID     `bson:"user_id" json:"user_id"`
	Title          string          `bson:"title" json:"title"`
	TitleAr        string          `bson:"title_ar,omitempty" json:"title_ar,omitempty"`
	Slug           string          `bson:"slug" json:"slug"` // Derived from Title on write
	Description    string          `bson:"description" json:"description"`
	Category       ListingCategory `bson:"category" json:"category"`
	Price          Amount          `bson:"price" json:"price"`
	MinimumBid     Amount          `bson:"minimum_bid" json:"minimum_bid"`
	CurrencyCode   string          `bson:"currency_code" json:"currency_code"`
	AuctionEnabled bool            `bson:"auction_enabled" json:"auction_enabled"`
	Images         []string        `bson:"images" json:"images"` // S3 keys
	IsDraft        bool            `bson:"is_draft" json:"is_draft"`
	PublishedAt    *time.Time      `bson:"published_at,omitempty" json:"published_at,omitempty"`
	CreatedAt      time.Time       `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `bson:"updated_at" json:"updated_at"`
	Deleted        bool            `bson:"deleted" json:"-"` // Soft delete flag
}

// Validate checks the write-time invariants of a listing.
func (l *Listing) Validate() error {
	if strings.TrimSpace(l.Title) == "" {
		return ErrEmptyTitle
	}
	if !l.Category.Valid() {
		return ErrInvalidCategory
	}
	if l.Price.IsNegative() {
		return ErrNegativePrice
	}
	if l.MinimumBid.IsNegative() {
		return ErrNegativeMinimumBid
	}
	if err := l.Price.Validate(); err != nil {
		return err
	}
	if err := l.MinimumBid.Validate(); err != nil {
		return err
	}
	return nil
}

// LocalizedTitle returns the Arabic title for "ar" when one is set.
func (l *Listing) LocalizedTitle(locale string) string {
	if locale == LocaleAR && l.TitleAr != "" {
		return l.TitleAr
	}
	return l.Title
}
