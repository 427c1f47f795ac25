package models

import (
	"strings"
	"time"

	"soomhub/market/internal/utils"
)

type PromoCodeStatus string

const (
	PromoCodeActive   PromoCodeStatus = "active"
	PromoCodeInactive PromoCodeStatus = "inactive"
)

// PromoCode is a discount code with a bounded number of uses inside a date range.
type PromoCode struct {
	ID              utils.SixID     `bson:"_id,omitempty" json:"id,omitempty"`
	Code            string          `bson:"code" json:"code"`
	DiscountPercent int             `bson:"discount_percent" json:"discount_percent"`
	Status          PromoCodeStatus `bson:"status" json:"status"`
	UsedCount       int             `bson:"used_count" json:"used_count"`
	MaxUses         int             `bson:"max_uses" json:"max_uses"`
	StartDate       time.Time       `bson:"start_date" json:"start_date"`
	EndDate         time.Time       `bson:"end_date" json:"end_date"`
	CreatedAt       time.Time       `bson:"created_at" json:"created_at"`
}

// IsValid is true when the code is active, has uses left and now lies in [StartDate, EndDate].
func (p *PromoCode) IsValid(now time.Time) bool {
	return p.Status == PromoCodeActive &&
		p.UsedCount < p.MaxUses &&
		!now.Before(p.StartDate) &&
		!now.After(p.EndDate)
}

// NormalizePromoCode canonicalizes user input for lookups.
func NormalizePromoCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
