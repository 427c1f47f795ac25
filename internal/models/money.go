package models

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Amount is a monetary value in the marketplace currency. It is stored as BSON Decimal128
// so range queries and sorts in MongoDB compare numerically, and it travels as a JSON string.
type Amount struct {
	decimal.Decimal
}

// ErrAmountOutOfRange is returned for amounts MongoDB cannot store as Decimal128.
var ErrAmountOutOfRange = errors.New("amount is out of range")

// NewAmount parses a decimal string such as "1250.50".
func NewAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	a := Amount{d}
	if err := a.Validate(); err != nil {
		return Amount{}, err
	}
	return a, nil
}

// Validate reports ErrAmountOutOfRange when the value has more than 34 significant digits
// or an exponent Decimal128 cannot hold.
func (a Amount) Validate() error {
	if a.IsZero() {
		return nil
	}
	// Bound the exponent before String expands it into digits.
	exp := int(a.Exponent())
	if exp > primitive.MaxDecimal128Exp+34 || exp < primitive.MinDecimal128Exp-a.NumDigits() {
		return fmt.Errorf("%w: exponent %d", ErrAmountOutOfRange, exp)
	}
	if _, err := primitive.ParseDecimal128(a.Decimal.String()); err != nil {
		return fmt.Errorf("%w: %v", ErrAmountOutOfRange, err)
	}
	return nil
}

// UnmarshalJSON accepts the same inputs as decimal.Decimal and rejects out of range values.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	next := Amount{d}
	if err := next.Validate(); err != nil {
		return err
	}
	*a = next
	return nil
}

// MustAmount is NewAmount for literals known to be valid.
func MustAmount(s string) Amount {
	a, err := NewAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

func AmountFromInt(n int64) Amount {
	return Amount{decimal.NewFromInt(n)}
}

func (a Amount) LessThan(b Amount) bool {
	return a.Decimal.LessThan(b.Decimal)
}

func (a Amount) GreaterThan(b Amount) bool {
	return a.Decimal.GreaterThan(b.Decimal)
}

// MarshalBSONValue encodes the amount as Decimal128.
func (a Amount) MarshalBSONValue() (bsontype.Type, []byte, error) {
	d128, err := primitive.ParseDecimal128(a.Decimal.String())
	if err != nil {
		return 0, nil, fmt.Errorf("amount %s does not fit Decimal128: %w", a.Decimal.String(), err)
	}
	return bson.MarshalValue(d128)
}

// UnmarshalBSONValue decodes Decimal128, and numeric types written by hand in the shell.
func (a *Amount) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	switch t {
	case bson.TypeNull:
		*a = Amount{}
		return nil
	case bson.TypeDecimal128:
		d, err := decimal.NewFromString(raw.Decimal128().String())
		if err != nil {
			return fmt.Errorf("invalid Decimal128 amount: %w", err)
		}
		*a = Amount{d}
		return nil
	case bson.TypeDouble:
		*a = Amount{decimal.NewFromFloat(raw.Double())}
		return nil
	case bson.TypeInt32:
		*a = Amount{decimal.NewFromInt32(raw.Int32())}
		return nil
	case bson.TypeInt64:
		*a = Amount{decimal.NewFromInt(raw.Int64())}
		return nil
	default:
		return fmt.Errorf("invalid BSON type for Amount: %s", t)
	}
}
