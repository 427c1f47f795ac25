package models

import (
	"errors"
	"strings"
	"time"

	"soomhub/market/internal/utils"
)

type PlateType string

const (
	PlatePrivate    PlateType = "private"
	PlateCommercial PlateType = "commercial"
	PlateMotorcycle PlateType = "motorcycle"
	PlateClassic    PlateType = "classic"
)

func (t PlateType) Valid() bool {
	switch t {
	case PlatePrivate, PlateCommercial, PlateMotorcycle, PlateClassic:
		return true
	}
	return false
}

// LicensePlate describes the plate sold by a license_plate listing.
type LicensePlate struct {
	ID        utils.SixID `bson:"_id,omitempty" json:"id,omitempty"`
	ListingID utils.SixID `bson:"listing_id" json:"listing_id"`
	UserID    utils.SixID `bson:"user_id" json:"user_id"`
	Emirate   string      `bson:"emirate" json:"emirate"` // e.g. DUBAI, ABU DHABI
	Code      string      `bson:"code" json:"code"`       // Letter or numeric plate code
	Number    string      `bson:"number" json:"number"`
	PlateType PlateType   `bson:"plate_type" json:"plate_type"`
	ImageKey  string      `bson:"image_key,omitempty" json:"image_key,omitempty"`
	CreatedAt time.Time   `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time   `bson:"updated_at" json:"updated_at"`
}

// Normalize uppercases and trims the printable fields.
func (p *LicensePlate) Normalize() {
	p.Emirate = strings.ToUpper(strings.TrimSpace(p.Emirate))
	p.Code = strings.ToUpper(strings.TrimSpace(p.Code))
	p.Number = strings.TrimSpace(p.Number)
}

func (p *LicensePlate) Validate() error {
	if p.Emirate == "" {
		return errors.New("emirate is required")
	}
	if p.Number == "" || len(p.Number) > 5 {
		return errors.New("plate number must have 1 to 5 characters")
	}
	for _, r := range p.Number {
		if r < '0' || r > '9' {
			return errors.New("plate number must be numeric")
		}
	}
	if len(p.Code) > 3 {
		return errors.New("plate code must have at most 3 characters")
	}
	if !p.PlateType.Valid() {
		return errors.New("invalid plate type")
	}
	return nil
}

// Label is the text printed on the plate image, e.g. "DUBAI A 12345".
func (p *LicensePlate) Label() string {
	parts := []string{p.Emirate}
	if p.Code != "" {
		parts = append(parts, p.Code)
	}
	parts = append(parts, p.Number)
	return strings.Join(parts, " ")
}
