package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activePromoInput(code string, maxUses int) PromoCodeInput {
	now := time.Now().UTC()
	return PromoCodeInput{
		Code:            code,
		DiscountPercent: 15,
		MaxUses:         maxUses,
		StartDate:       now.Add(-time.Hour),
		EndDate:         now.Add(24 * time.Hour),
	}
}

func TestPromoCodeService_CreateAndCheck(t *testing.T) {
	svc := NewPromoCodeService(setupServiceDB(t))
	ctx := context.Background()

	promo, err := svc.CreatePromoCode(ctx, activePromoInput(" ramadan10 ", 5))
	require.NoError(t, err)
	assert.Equal(t, "RAMADAN10", promo.Code)

	_, err = svc.CreatePromoCode(ctx, activePromoInput("Ramadan10", 5))
	assert.ErrorIs(t, err, ErrPromoCodeTaken)

	got, err := svc.CheckPromoCode(ctx, "ramadan10")
	require.NoError(t, err)
	assert.Equal(t, promo.ID, got.ID)

	require.NoError(t, svc.DeactivatePromoCode(ctx, "RAMADAN10"))
	_, err = svc.CheckPromoCode(ctx, "RAMADAN10")
	assert.ErrorIs(t, err, ErrPromoUnavailable)

	_, err = svc.CheckPromoCode(ctx, "NOPE")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPromoCodeService_CreateInvalid(t *testing.T) {
	svc := NewPromoCodeService(setupServiceDB(t))
	ctx := context.Background()

	in := activePromoInput("BAD", 1)
	in.DiscountPercent = 0
	_, err := svc.CreatePromoCode(ctx, in)
	assert.ErrorIs(t, err, ErrInvalidInput)

	in = activePromoInput("BAD", 1)
	in.EndDate = in.StartDate.Add(-time.Minute)
	_, err = svc.CreatePromoCode(ctx, in)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPromoCodeService_RedeemNeverExceedsMaxUses(t *testing.T) {
	svc := NewPromoCodeService(setupServiceDB(t))
	ctx := context.Background()
	_, err := svc.CreatePromoCode(ctx, activePromoInput("LIMITED", 3))
	require.NoError(t, err)

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.RedeemPromoCode(ctx, "limited")
		}(i)
	}
	wg.Wait()

	redeemed := 0
	for _, err := range errs {
		if err == nil {
			redeemed++
			continue
		}
		assert.ErrorIs(t, err, ErrPromoUnavailable)
	}
	assert.Equal(t, 3, redeemed)

	promo, err := svc.FindByCode(ctx, "LIMITED")
	require.NoError(t, err)
	assert.Equal(t, 3, promo.UsedCount)
}

func TestPromoCodeService_RedeemOutsideWindow(t *testing.T) {
	svc := NewPromoCodeService(setupServiceDB(t))
	ctx := context.Background()

	in := activePromoInput("LATER", 5)
	in.StartDate = time.Now().UTC().Add(time.Hour)
	in.EndDate = in.StartDate.Add(time.Hour)
	_, err := svc.CreatePromoCode(ctx, in)
	require.NoError(t, err)

	_, err = svc.RedeemPromoCode(ctx, "LATER")
	assert.ErrorIs(t, err, ErrPromoUnavailable)
	_, err = svc.RedeemPromoCode(ctx, "MISSING")
	assert.ErrorIs(t, err, ErrNotFound)
}
