package models

import (
	"time"

	"soomhub/market/internal/utils"
)

// CardType is a card network the marketplace accepts.
type CardType struct {
	ID        utils.SixID `bson:"_id,omitempty" json:"id,omitempty"`
	Name      string      `bson:"name" json:"name"`
	NameAr    string      `bson:"name_ar,omitempty" json:"name_ar,omitempty"`
	Code      string      `bson:"code" json:"code"` // visa, mastercard, mada, amex
	Active    bool        `bson:"active" json:"active"`
	CreatedAt time.Time   `bson:"created_at" json:"created_at"`
	Deleted   bool        `bson:"deleted" json:"-"`
}

// BankCard is a saved card reference. Only the last four digits are kept.
type BankCard struct {
	ID          utils.SixID `bson:"_id,omitempty" json:"id,omitempty"`
	UserID      utils.SixID `bson:"user_id" json:"user_id"`
	CardTypeID  utils.SixID `bson:"card_type_id" json:"card_type_id"`
	HolderName  string      `bson:"holder_name" json:"holder_name"`
	Last4       string      `bson:"last4" json:"last4"`
	ExpiryMonth int         `bson:"expiry_month" json:"expiry_month"`
	ExpiryYear  int         `bson:"expiry_year" json:"expiry_year"`
	IsDefault   bool        `bson:"is_default" json:"is_default"`
	CreatedAt   time.Time   `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `bson:"updated_at" json:"updated_at"`
	Deleted     bool        `bson:"deleted" json:"-"`
}

// IsExpired is true after the last instant of the expiry month (UTC).
func (c *BankCard) IsExpired(now time.Time) bool {
	return CardExpired(c.ExpiryMonth, c.ExpiryYear, now)
}

func CardExpired(month, year int, now time.Time) bool {
	if month < 1 || month > 12 {
		return true
	}
	firstOfNext := time.Date(year, time.Month(month)+1, 1, 0, 0, 0, 0, time.UTC)
	return !now.UTC().Before(firstOfNext)
}

// LuhnValid checks a card number (digits only) with the Luhn checksum.
func LuhnValid(number string) bool {
	if len(number) < 12 || len(number) > 19 {
		return false
	}
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		c := number[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
